package bank

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	nerrors "nftmarket/core/errors"
)

// Storage abstracts the subset of state manager functionality required by the
// native currency ledger.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var balancePrefix = []byte("bank/native/")

func balanceKey(addr common.Address) []byte {
	buf := make([]byte, len(balancePrefix)+common.AddressLength)
	copy(buf, balancePrefix)
	copy(buf[len(balancePrefix):], addr.Bytes())
	return buf
}

// Ledger tracks native currency balances. Every movement is a debit/credit
// pair against the same state so it participates in request rollback.
type Ledger struct {
	store Storage
}

// NewLedger returns a ledger backed by the supplied store.
func NewLedger(store Storage) *Ledger {
	return &Ledger{store: store}
}

// Balance returns the native balance held by addr.
func (l *Ledger) Balance(addr common.Address) (*big.Int, error) {
	if l == nil || l.store == nil {
		return nil, fmt.Errorf("bank: state not configured")
	}
	balance := new(big.Int)
	ok, err := l.store.KVGet(balanceKey(addr), balance)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return balance, nil
}

func (l *Ledger) setBalance(addr common.Address, amount *big.Int) error {
	return l.store.KVPut(balanceKey(addr), amount)
}

// Credit mints native currency to addr. It backs genesis allocations and the
// devnet faucet.
func (l *Ledger) Credit(addr common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("bank: credit amount must be non-negative")
	}
	current, err := l.Balance(addr)
	if err != nil {
		return err
	}
	return l.setBalance(addr, new(big.Int).Add(current, amount))
}

// Transfer moves amount from one account to another.
func (l *Ledger) Transfer(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("bank: negative transfer amount")
	}
	fromBal, err := l.Balance(from)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("bank: %w: have %s, need %s", nerrors.ErrInsufficientBalance, fromBal, amount)
	}
	if from == to {
		return nil
	}
	toBal, err := l.Balance(to)
	if err != nil {
		return err
	}
	if err := l.setBalance(from, new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	return l.setBalance(to, new(big.Int).Add(toBal, amount))
}
