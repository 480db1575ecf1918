package collectibles

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Storage abstracts the subset of state manager functionality required by the
// in-process token contracts.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

// Kind identifies the token standard a deployed contract implements.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindERC721
	KindERC721A
	KindERC1155
	KindERC20
)

func (k Kind) String() string {
	switch k {
	case KindERC721:
		return "ERC721"
	case KindERC721A:
		return "ERC721A"
	case KindERC1155:
		return "ERC1155"
	case KindERC20:
		return "ERC20"
	default:
		return "unknown"
	}
}

// ParseKind maps a standard name onto its Kind.
func ParseKind(raw string) (Kind, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "ERC721":
		return KindERC721, nil
	case "ERC721A":
		return KindERC721A, nil
	case "ERC1155":
		return KindERC1155, nil
	case "ERC20":
		return KindERC20, nil
	default:
		return KindUnknown, fmt.Errorf("collectibles: unknown standard %q", raw)
	}
}

// ERC721Receiver is implemented by accounts that want to vet inbound unique
// token transfers.
type ERC721Receiver interface {
	OnERC721Received(operator, from common.Address, tokenID *big.Int) error
}

// ERC1155Receiver is implemented by accounts that want to vet inbound
// quantity token transfers.
type ERC1155Receiver interface {
	OnERC1155Received(operator, from common.Address, id, amount *big.Int) error
}

type contractMeta struct {
	Kind   uint8
	Name   string
	Symbol string
}

var (
	deployNonceKey = []byte("collectibles/deploy-nonce")
	metaPrefix     = []byte("collectibles/meta/")
)

func contractKey(contract common.Address, field string, parts ...[]byte) []byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, "collectibles/"...)
	buf = append(buf, contract.Bytes()...)
	buf = append(buf, '/')
	buf = append(buf, field...)
	for _, part := range parts {
		buf = append(buf, '/')
		buf = append(buf, part...)
	}
	return buf
}

func metaKey(contract common.Address) []byte {
	return append(append([]byte(nil), metaPrefix...), contract.Bytes()...)
}

// Registry deploys and resolves the token contracts living in marketplace
// state. Receiver hooks are wired at start-up and are not persisted.
type Registry struct {
	store     Storage
	receivers map[common.Address]interface{}
}

// NewRegistry returns a registry backed by store.
func NewRegistry(store Storage) *Registry {
	return &Registry{store: store, receivers: make(map[common.Address]interface{})}
}

// RegisterReceiver installs the transfer hooks for addr. The receiver may
// implement ERC721Receiver, ERC1155Receiver or both.
func (r *Registry) RegisterReceiver(addr common.Address, receiver interface{}) {
	if receiver == nil {
		delete(r.receivers, addr)
		return
	}
	r.receivers[addr] = receiver
}

// Deploy creates a new contract of the supplied kind and returns its address.
func (r *Registry) Deploy(kind Kind, name, symbol string) (common.Address, error) {
	if r == nil || r.store == nil {
		return common.Address{}, fmt.Errorf("collectibles: state not configured")
	}
	if kind == KindUnknown || kind > KindERC20 {
		return common.Address{}, fmt.Errorf("collectibles: cannot deploy kind %d", kind)
	}
	var nonce uint64
	if _, err := r.store.KVGet(deployNonceKey, &nonce); err != nil {
		return common.Address{}, err
	}
	nonce++
	var raw [8]byte
	binary.BigEndian.PutUint64(raw[:], nonce)
	addr := common.BytesToAddress(ethcrypto.Keccak256([]byte("collectibles/contract/"), raw[:]))
	meta := contractMeta{Kind: uint8(kind), Name: strings.TrimSpace(name), Symbol: strings.TrimSpace(symbol)}
	if err := r.store.KVPut(metaKey(addr), &meta); err != nil {
		return common.Address{}, err
	}
	if err := r.store.KVPut(deployNonceKey, nonce); err != nil {
		return common.Address{}, err
	}
	return addr, nil
}

// Kind reports the standard implemented by contract. Unknown addresses yield
// KindUnknown without an error.
func (r *Registry) Kind(contract common.Address) (Kind, error) {
	meta, ok, err := r.meta(contract)
	if err != nil || !ok {
		return KindUnknown, err
	}
	return Kind(meta.Kind), nil
}

// Name returns the contract's human readable name and symbol.
func (r *Registry) Name(contract common.Address) (string, string, error) {
	meta, ok, err := r.meta(contract)
	if err != nil {
		return "", "", err
	}
	if !ok {
		return "", "", fmt.Errorf("collectibles: contract %s not deployed", contract.Hex())
	}
	return meta.Name, meta.Symbol, nil
}

func (r *Registry) meta(contract common.Address) (contractMeta, bool, error) {
	var meta contractMeta
	if r == nil || r.store == nil {
		return meta, false, fmt.Errorf("collectibles: state not configured")
	}
	ok, err := r.store.KVGet(metaKey(contract), &meta)
	return meta, ok, err
}

func (r *Registry) expect(contract common.Address, kinds ...Kind) error {
	kind, err := r.Kind(contract)
	if err != nil {
		return err
	}
	for _, k := range kinds {
		if kind == k {
			return nil
		}
	}
	return fmt.Errorf("collectibles: %s is a %s contract", contract.Hex(), kind)
}

// ERC721 binds the unique-ownership interface of contract.
func (r *Registry) ERC721(contract common.Address) (*ERC721, error) {
	if err := r.expect(contract, KindERC721, KindERC721A); err != nil {
		return nil, err
	}
	return &ERC721{registry: r, address: contract}, nil
}

// ERC1155 binds the quantity-bearing interface of contract.
func (r *Registry) ERC1155(contract common.Address) (*ERC1155, error) {
	if err := r.expect(contract, KindERC1155); err != nil {
		return nil, err
	}
	return &ERC1155{registry: r, address: contract}, nil
}

// ERC20 binds the fungible token interface of contract.
func (r *Registry) ERC20(contract common.Address) (*ERC20, error) {
	if err := r.expect(contract, KindERC20); err != nil {
		return nil, err
	}
	return &ERC20{registry: r, address: contract}, nil
}

func (r *Registry) loadBig(key []byte) (*big.Int, error) {
	out := new(big.Int)
	ok, err := r.store.KVGet(key, out)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return out, nil
}

func (r *Registry) storeBig(key []byte, v *big.Int) error {
	if v == nil || v.Sign() == 0 {
		return r.store.KVDelete(key)
	}
	return r.store.KVPut(key, v)
}

func (r *Registry) loadAddress(key []byte) (common.Address, error) {
	var addr common.Address
	if _, err := r.store.KVGet(key, &addr); err != nil {
		return common.Address{}, err
	}
	return addr, nil
}

func (r *Registry) loadFlag(key []byte) (bool, error) {
	var flag bool
	if _, err := r.store.KVGet(key, &flag); err != nil {
		return false, err
	}
	return flag, nil
}
