package fees

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	nerrors "nftmarket/core/errors"
	"nftmarket/core/events"
	"nftmarket/native/escrow"
)

// MaxBps is the denominator of every fee rate.
const MaxBps uint32 = 10_000

var (
	errNilState  = errors.New("fee controller: state not configured")
	errNilLedger = errors.New("fee controller: ledger not configured")
)

var rateKey = []byte("fees/market/bps")

// ApplyResult summarises the split of a gross settlement amount.
type ApplyResult struct {
	Fee *big.Int
	Net *big.Int
}

// Apply splits gross into the marketplace fee, floor(gross*bps/10000), and
// the remainder owed to the seller. Amounts outside the 256-bit range are
// rejected with ErrFeeOverflow.
func Apply(gross *big.Int, bps uint32) (ApplyResult, error) {
	result := ApplyResult{Fee: big.NewInt(0), Net: big.NewInt(0)}
	if bps > MaxBps {
		return result, nerrors.ErrInvalidFee
	}
	if gross == nil || gross.Sign() <= 0 {
		return result, nil
	}
	amount, overflow := uint256.FromBig(gross)
	if overflow {
		return result, nerrors.ErrFeeOverflow
	}
	fee, overflow := new(uint256.Int).MulDivOverflow(amount, uint256.NewInt(uint64(bps)), uint256.NewInt(uint64(MaxBps)))
	if overflow {
		return result, nerrors.ErrFeeOverflow
	}
	result.Fee = fee.ToBig()
	result.Net = new(uint256.Int).Sub(amount, fee).ToBig()
	return result, nil
}

// Storage abstracts the subset of state manager functionality required by the
// controller.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Accrual is the fee pool the controller routes fees into.
type Accrual interface {
	Accrue(currency escrow.Currency, amount *big.Int) error
	Accrued(currency escrow.Currency) (*big.Int, error)
	Sweep(currency escrow.Currency, to common.Address) (*big.Int, error)
}

// Controller owns the marketplace fee rate and the operator-only withdrawal
// path for accrued fees.
type Controller struct {
	store       Storage
	operator    common.Address
	defaultRate uint32
	ledger      Accrual
	emitter     events.Emitter
}

// NewController returns a controller administered by operator. defaultBps is
// reported until SetFees persists a rate.
func NewController(store Storage, operator common.Address, defaultBps uint32, ledger Accrual) *Controller {
	return &Controller{
		store:       store,
		operator:    operator,
		defaultRate: defaultBps,
		ledger:      ledger,
		emitter:     events.NoopEmitter{},
	}
}

// SetEmitter configures the event emitter used for fee notifications.
func (c *Controller) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		c.emitter = events.NoopEmitter{}
		return
	}
	c.emitter = emitter
}

// Operator returns the account allowed to administer fees.
func (c *Controller) Operator() common.Address { return c.operator }

// Rate returns the active fee rate in basis points.
func (c *Controller) Rate() (uint32, error) {
	if c == nil || c.store == nil {
		return 0, errNilState
	}
	var stored uint64
	ok, err := c.store.KVGet(rateKey, &stored)
	if err != nil {
		return 0, err
	}
	if !ok {
		return c.defaultRate, nil
	}
	return uint32(stored), nil
}

// SetFees updates the fee rate. Only the operator may call it.
func (c *Controller) SetFees(caller common.Address, bps uint32) error {
	if c == nil || c.store == nil {
		return errNilState
	}
	if caller != c.operator {
		return nerrors.ErrNotOperator
	}
	if bps > MaxBps {
		return nerrors.ErrInvalidFee
	}
	previous, err := c.Rate()
	if err != nil {
		return err
	}
	if err := c.store.KVPut(rateKey, uint64(bps)); err != nil {
		return err
	}
	c.emitter.Emit(events.FeesUpdated{Operator: caller, OldBps: previous, NewBps: bps})
	return nil
}

// Settle splits gross at the current rate and accrues the fee in currency.
// The funds must already sit in the vault.
func (c *Controller) Settle(currency escrow.Currency, gross *big.Int) (fee, net *big.Int, err error) {
	if c.ledger == nil {
		return nil, nil, errNilLedger
	}
	bps, err := c.Rate()
	if err != nil {
		return nil, nil, err
	}
	split, err := Apply(gross, bps)
	if err != nil {
		return nil, nil, err
	}
	if err := c.ledger.Accrue(currency, split.Fee); err != nil {
		return nil, nil, err
	}
	return split.Fee, split.Net, nil
}

// Balance returns the fees accrued in currency and not yet withdrawn.
func (c *Controller) Balance(currency escrow.Currency) (*big.Int, error) {
	if c.ledger == nil {
		return nil, errNilLedger
	}
	return c.ledger.Accrued(currency)
}

// Withdraw sweeps every fee accrued in currency to the operator.
func (c *Controller) Withdraw(caller common.Address, currency escrow.Currency) (*big.Int, error) {
	if caller != c.operator {
		return nil, nerrors.ErrNotOperator
	}
	if c.ledger == nil {
		return nil, errNilLedger
	}
	amount, err := c.ledger.Sweep(currency, c.operator)
	if err != nil {
		return nil, err
	}
	if amount.Sign() > 0 {
		c.emitter.Emit(events.FeesWithdrawn{Operator: caller, Currency: string(currency), Amount: new(big.Int).Set(amount)})
	}
	return amount, nil
}

// WithdrawEthFees sweeps fees accrued from fixed-price sales.
func (c *Controller) WithdrawEthFees(caller common.Address) (*big.Int, error) {
	return c.Withdraw(caller, escrow.CurrencyNative)
}

// WithdrawTokenFees sweeps fees accrued from accepted offers.
func (c *Controller) WithdrawTokenFees(caller common.Address) (*big.Int, error) {
	return c.Withdraw(caller, escrow.CurrencyToken)
}
