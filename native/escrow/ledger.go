package escrow

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	nerrors "nftmarket/core/errors"
)

var (
	errNilState = errors.New("escrow ledger: state not configured")
	errNilBank  = errors.New("escrow ledger: native bank not configured")
	errNilToken = errors.New("escrow ledger: settlement token not configured")
	errHoldGone = errors.New("escrow ledger: hold exceeds tracked balance")
)

// Storage abstracts the subset of state manager functionality required by the
// ledger.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// NativeBank moves native currency between accounts.
type NativeBank interface {
	Balance(addr common.Address) (*big.Int, error)
	Transfer(from, to common.Address, amount *big.Int) error
}

// SettlementToken is the fungible token capability set the ledger consumes.
type SettlementToken interface {
	BalanceOf(account common.Address) (*big.Int, error)
	Transfer(caller, to common.Address, amount *big.Int) error
	TransferFrom(caller, from, to common.Address, amount *big.Int) error
}

var (
	heldTotalKey     = []byte("escrow/held/total")
	heldAccountPref  = []byte("escrow/held/account/")
	accruedKeyPrefix = []byte("escrow/accrued/")
)

func heldAccountKey(addr common.Address) []byte {
	return append(append([]byte(nil), heldAccountPref...), addr.Bytes()...)
}

func accruedKey(currency Currency) []byte {
	return append(append([]byte(nil), accruedKeyPrefix...), currency...)
}

// Ledger tracks the currency the marketplace vault holds on behalf of others:
// settlement token holds backing pending offers, and fee accruals per
// currency. All funds physically sit on the vault account.
type Ledger struct {
	store Storage
	vault common.Address
	bank  NativeBank
	token SettlementToken
}

// NewLedger returns a ledger operating the vault account.
func NewLedger(store Storage, vault common.Address, bank NativeBank, token SettlementToken) *Ledger {
	return &Ledger{store: store, vault: vault, bank: bank, token: token}
}

// Vault returns the account holding escrowed funds.
func (l *Ledger) Vault() common.Address { return l.vault }

func (l *Ledger) loadBig(key []byte) (*big.Int, error) {
	if l == nil || l.store == nil {
		return nil, errNilState
	}
	out := new(big.Int)
	ok, err := l.store.KVGet(key, out)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return out, nil
}

func (l *Ledger) storeBig(key []byte, v *big.Int) error {
	return l.store.KVPut(key, v)
}

func addChecked(a, b *big.Int) (*big.Int, error) {
	x, overflow := uint256.FromBig(a)
	if overflow {
		return nil, nerrors.ErrFeeOverflow
	}
	y, overflow := uint256.FromBig(b)
	if overflow {
		return nil, nerrors.ErrFeeOverflow
	}
	sum, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, nerrors.ErrFeeOverflow
	}
	return sum.ToBig(), nil
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("escrow: amount must be positive")
	}
	return nil
}

// HeldTotal returns the settlement token amount currently held for pending
// offers across every listing.
func (l *Ledger) HeldTotal() (*big.Int, error) {
	return l.loadBig(heldTotalKey)
}

// HeldBy returns the settlement token amount held on behalf of account.
func (l *Ledger) HeldBy(account common.Address) (*big.Int, error) {
	return l.loadBig(heldAccountKey(account))
}

func (l *Ledger) adjustHold(account common.Address, delta *big.Int) error {
	total, err := l.HeldTotal()
	if err != nil {
		return err
	}
	mine, err := l.HeldBy(account)
	if err != nil {
		return err
	}
	if delta.Sign() >= 0 {
		if total, err = addChecked(total, delta); err != nil {
			return err
		}
		if mine, err = addChecked(mine, delta); err != nil {
			return err
		}
	} else {
		total = new(big.Int).Add(total, delta)
		mine = new(big.Int).Add(mine, delta)
		if total.Sign() < 0 || mine.Sign() < 0 {
			return errHoldGone
		}
	}
	if err := l.storeBig(heldTotalKey, total); err != nil {
		return err
	}
	return l.storeBig(heldAccountKey(account), mine)
}

// Hold pulls amount of the settlement token from account into the vault
// using the allowance account granted to the vault.
func (l *Ledger) Hold(account common.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if l.token == nil {
		return errNilToken
	}
	if err := l.adjustHold(account, amount); err != nil {
		return err
	}
	if err := l.token.TransferFrom(l.vault, account, l.vault, amount); err != nil {
		return fmt.Errorf("%w: %w", nerrors.ErrTransferRejected, err)
	}
	return nil
}

// Refund releases a hold back to the account it was taken from.
func (l *Ledger) Refund(account common.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if err := l.adjustHold(account, new(big.Int).Neg(amount)); err != nil {
		return err
	}
	return l.Pay(CurrencyToken, account, amount)
}

// Consume releases a hold without moving funds; the tokens stay in the vault
// for the caller to distribute.
func (l *Ledger) Consume(account common.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	return l.adjustHold(account, new(big.Int).Neg(amount))
}

// Collect pulls a payment into the vault.
func (l *Ledger) Collect(currency Currency, from common.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	switch currency {
	case CurrencyNative:
		if l.bank == nil {
			return errNilBank
		}
		return l.bank.Transfer(from, l.vault, amount)
	case CurrencyToken:
		if l.token == nil {
			return errNilToken
		}
		if err := l.token.TransferFrom(l.vault, from, l.vault, amount); err != nil {
			return fmt.Errorf("%w: %w", nerrors.ErrTransferRejected, err)
		}
		return nil
	default:
		return fmt.Errorf("escrow: unsupported currency %s", currency)
	}
}

// Pay pushes amount out of the vault to to. Zero amounts are a no-op.
func (l *Ledger) Pay(currency Currency, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("escrow: negative payout")
	}
	switch currency {
	case CurrencyNative:
		if l.bank == nil {
			return errNilBank
		}
		return l.bank.Transfer(l.vault, to, amount)
	case CurrencyToken:
		if l.token == nil {
			return errNilToken
		}
		if err := l.token.Transfer(l.vault, to, amount); err != nil {
			return fmt.Errorf("%w: %w", nerrors.ErrTransferRejected, err)
		}
		return nil
	default:
		return fmt.Errorf("escrow: unsupported currency %s", currency)
	}
}

// Accrued returns the fee balance accrued in currency.
func (l *Ledger) Accrued(currency Currency) (*big.Int, error) {
	return l.loadBig(accruedKey(currency))
}

// Accrue adds amount to the fee pool of currency. The funds must already sit
// in the vault.
func (l *Ledger) Accrue(currency Currency, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("escrow: negative accrual")
	}
	current, err := l.Accrued(currency)
	if err != nil {
		return err
	}
	next, err := addChecked(current, amount)
	if err != nil {
		return err
	}
	return l.storeBig(accruedKey(currency), next)
}

// Sweep pays the whole fee pool of currency to to and returns the amount.
func (l *Ledger) Sweep(currency Currency, to common.Address) (*big.Int, error) {
	amount, err := l.Accrued(currency)
	if err != nil {
		return nil, err
	}
	if amount.Sign() == 0 {
		return amount, nil
	}
	if err := l.storeBig(accruedKey(currency), big.NewInt(0)); err != nil {
		return nil, err
	}
	if err := l.Pay(currency, to, amount); err != nil {
		return nil, err
	}
	return amount, nil
}
