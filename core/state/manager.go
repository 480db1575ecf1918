package state

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"nftmarket/storage"
)

var errInvalidSnapshot = errors.New("state: invalid snapshot id")

type pendingValue struct {
	value   []byte
	deleted bool
}

type journalEntry struct {
	key     string
	prev    pendingValue
	hadPrev bool
}

// Manager provides keyed, RLP-encoded access to the marketplace state. Writes
// are buffered in memory and journaled so a request can be rolled back to any
// snapshot; Commit flushes the buffer to the backing database in one batch.
//
// Manager is not safe for concurrent use.
type Manager struct {
	db      storage.Database
	pending map[string]pendingValue
	journal []journalEntry
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{
		db:      db,
		pending: make(map[string]pendingValue),
	}
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func (m *Manager) read(hashed []byte) ([]byte, error) {
	if entry, ok := m.pending[string(hashed)]; ok {
		if entry.deleted {
			return nil, nil
		}
		return entry.value, nil
	}
	data, err := m.db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (m *Manager) write(hashed []byte, value pendingValue) {
	key := string(hashed)
	prev, hadPrev := m.pending[key]
	m.journal = append(m.journal, journalEntry{key: key, prev: prev, hadPrev: hadPrev})
	m.pending[key] = value
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 before it reaches the database.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.write(kvKey(key), pendingValue{value: encoded})
	return nil
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.read(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the value stored under key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	m.write(kvKey(key), pendingValue{deleted: true})
	return nil
}

// Snapshot returns an identifier for the current journal position.
func (m *Manager) Snapshot() int {
	return len(m.journal)
}

// RevertToSnapshot undoes every write performed after the snapshot was taken.
func (m *Manager) RevertToSnapshot(id int) error {
	if id < 0 || id > len(m.journal) {
		return errInvalidSnapshot
	}
	for i := len(m.journal) - 1; i >= id; i-- {
		entry := m.journal[i]
		if entry.hadPrev {
			m.pending[entry.key] = entry.prev
			continue
		}
		delete(m.pending, entry.key)
	}
	m.journal = m.journal[:id]
	return nil
}

// Dirty reports the number of keys with uncommitted changes.
func (m *Manager) Dirty() int {
	return len(m.pending)
}

// Commit persists every buffered write in a single atomic batch and clears
// the journal.
func (m *Manager) Commit() error {
	if len(m.pending) == 0 {
		m.journal = m.journal[:0]
		return nil
	}
	batch := storage.NewBatch()
	for key, entry := range m.pending {
		if entry.deleted {
			batch.Delete([]byte(key))
			continue
		}
		batch.Put([]byte(key), entry.value)
	}
	if err := m.db.Write(batch); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	m.pending = make(map[string]pendingValue)
	m.journal = m.journal[:0]
	return nil
}

// Discard drops every uncommitted write.
func (m *Manager) Discard() {
	m.pending = make(map[string]pendingValue)
	m.journal = m.journal[:0]
}
