package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	nerrors "nftmarket/core/errors"
	"nftmarket/core/events"
	"nftmarket/core/state"
	"nftmarket/native/bank"
	"nftmarket/native/collectibles"
	nativecommon "nftmarket/native/common"
	"nftmarket/native/escrow"
	"nftmarket/native/fees"
	"nftmarket/native/market"
	"nftmarket/native/token"
	"nftmarket/observability"
	telemetry "nftmarket/observability/otel"
	"nftmarket/storage"
)

// MarketplaceAddress is the account that custodies listed assets and holds
// escrowed funds.
var MarketplaceAddress = common.BytesToAddress(ethcrypto.Keccak256([]byte("nftmarket/marketplace")))

var settlementTokenKey = []byte("core/settlement-token")

var errNilDatabase = errors.New("processor: database not configured")

// Options configures a Processor.
type Options struct {
	Operator common.Address
	// SettlementToken selects an already deployed ERC20. When zero the
	// processor deploys one on first start and records it in state.
	SettlementToken common.Address
	FeeBps          uint32
	Engine          market.Config
	Pauses          nativecommon.PauseView
	Logger          *slog.Logger
	Now             func() int64
}

// Processor serialises marketplace requests over a shared state. Every request
// runs against a state snapshot and either commits in full, events included,
// or leaves no trace.
type Processor struct {
	mu sync.Mutex

	db         storage.Database
	state      *state.Manager
	registry   *collectibles.Registry
	bank       *bank.Ledger
	adapter    *token.Adapter
	ledger     *escrow.Ledger
	fees       *fees.Controller
	engine     *market.Engine
	buffer     *events.Buffer
	settlement *collectibles.ERC20

	pauses  nativecommon.PauseView
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *observability.MarketMetrics
	otlp    *telemetry.MarketInstruments
}

// NewProcessor wires the marketplace components over db.
func NewProcessor(db storage.Database, opts Options) (*Processor, error) {
	if db == nil {
		return nil, errNilDatabase
	}
	if opts.Operator == (common.Address{}) {
		return nil, fmt.Errorf("processor: operator not configured")
	}
	if opts.FeeBps > fees.MaxBps {
		return nil, nerrors.ErrInvalidFee
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	manager := state.NewManager(db)
	registry := collectibles.NewRegistry(manager)
	adapter := token.NewAdapter(token.FromRegistry(registry), MarketplaceAddress)
	registry.RegisterReceiver(MarketplaceAddress, adapter)

	p := &Processor{
		db:       db,
		state:    manager,
		registry: registry,
		bank:     bank.NewLedger(manager),
		adapter:  adapter,
		buffer:   &events.Buffer{},
		pauses:   opts.Pauses,
		logger:   logger.With(slog.String("component", "market")),
		tracer:   otel.Tracer("nftmarket/core"),
		metrics:  observability.Market(),
	}
	if inst, err := telemetry.NewMarketInstruments(); err == nil {
		p.otlp = inst
	} else {
		p.logger.Warn("otlp instruments unavailable", slog.String("error", err.Error()))
	}

	settlement, err := p.bootstrapSettlement(opts.SettlementToken)
	if err != nil {
		manager.Discard()
		return nil, err
	}
	p.settlement = settlement
	p.ledger = escrow.NewLedger(manager, MarketplaceAddress, p.bank, settlement)
	p.fees = fees.NewController(manager, opts.Operator, opts.FeeBps, p.ledger)
	p.fees.SetEmitter(p.buffer)

	engine := market.NewEngine(opts.Engine)
	engine.SetState(manager)
	engine.SetCustody(adapter)
	engine.SetEscrow(p.ledger)
	engine.SetFees(p.fees)
	engine.SetEmitter(p.buffer)
	if opts.Now != nil {
		engine.SetNowFunc(opts.Now)
	}
	p.engine = engine
	return p, nil
}

func (p *Processor) bootstrapSettlement(configured common.Address) (*collectibles.ERC20, error) {
	var recorded common.Address
	ok, err := p.state.KVGet(settlementTokenKey, &recorded)
	if err != nil {
		return nil, err
	}
	switch {
	case ok && configured != (common.Address{}) && configured != recorded:
		return nil, fmt.Errorf("processor: settlement token %s does not match recorded %s", configured.Hex(), recorded.Hex())
	case ok:
		return p.registry.ERC20(recorded)
	case configured != (common.Address{}):
		recorded = configured
	default:
		recorded, err = p.registry.Deploy(collectibles.KindERC20, "Settlement Token", "STL")
		if err != nil {
			return nil, err
		}
	}
	erc20, err := p.registry.ERC20(recorded)
	if err != nil {
		return nil, err
	}
	if err := p.state.KVPut(settlementTokenKey, recorded); err != nil {
		return nil, err
	}
	if err := p.state.Commit(); err != nil {
		return nil, err
	}
	p.logger.Info("settlement token recorded", slog.String("token", recorded.Hex()))
	return erc20, nil
}

// Close releases the underlying database.
func (p *Processor) Close() {
	if p == nil || p.db == nil {
		return
	}
	p.db.Close()
}

type request struct {
	operation string
	caller    common.Address
	listing   uint64
	guarded   bool
}

var outcomeClasses = []struct {
	err   error
	label string
}{
	{nerrors.ErrNotOwner, "not_owner"},
	{nerrors.ErrOfferClosed, "offer_closed"},
	{nerrors.ErrWrongAmount, "wrong_amount"},
	{nerrors.ErrAmountZero, "amount_zero"},
	{nerrors.ErrCancelTooEarly, "cancel_too_early"},
	{nerrors.ErrOfferTooLow, "offer_too_low"},
	{nerrors.ErrOfferExpired, "offer_expired"},
	{nerrors.ErrOfferNotFound, "offer_not_found"},
	{nerrors.ErrReentrantCall, "reentrant_call"},
	{nerrors.ErrDirectTransferNotAllowed, "direct_transfer"},
	{nerrors.ErrTransferRejected, "transfer_rejected"},
	{nerrors.ErrUnsupportedStandard, "unsupported_standard"},
	{nerrors.ErrNotOperator, "not_operator"},
	{nerrors.ErrInvalidFee, "invalid_fee"},
	{nerrors.ErrFeeOverflow, "fee_overflow"},
	{nerrors.ErrInsufficientBalance, "insufficient_balance"},
	{nerrors.ErrModulePaused, "paused"},
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	for _, class := range outcomeClasses {
		if errors.Is(err, class.err) {
			return class.label
		}
	}
	return "error"
}

// run executes fn as one all-or-nothing request.
func (p *Processor) run(ctx context.Context, req request, fn func() error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	requestID := uuid.NewString()
	ctx, span := p.tracer.Start(ctx, "market."+req.operation, trace.WithAttributes(
		attribute.String("request.id", requestID),
		attribute.String("caller", req.caller.Hex()),
		attribute.Int64("listing", int64(req.listing)),
	))
	defer span.End()
	started := time.Now()

	err := p.execute(req, fn)

	result := outcome(err)
	elapsed := time.Since(started)
	p.metrics.Observe(req.operation, result, elapsed)
	p.otlp.Record(ctx, req.operation, result, elapsed.Seconds())
	attrs := []any{
		slog.String("requestId", requestID),
		slog.String("operation", req.operation),
		slog.String("caller", req.caller.Hex()),
		slog.Uint64("listing", req.listing),
		slog.String("outcome", result),
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
		p.logger.Warn("market request rejected", append(attrs, slog.String("error", err.Error()))...)
		return err
	}
	span.SetStatus(codes.Ok, "")
	p.logger.Debug("market request committed", attrs...)
	return nil
}

func (p *Processor) execute(req request, fn func() error) error {
	if req.guarded {
		if err := nativecommon.Guard(p.pauses, nativecommon.ModuleMarket); err != nil {
			return err
		}
	}
	snapshot := p.state.Snapshot()
	mark := p.buffer.Len()
	if err := fn(); err != nil {
		p.rollback(snapshot, mark)
		return err
	}
	committed := p.buffer.Drain()
	if err := p.appendEvents(committed); err != nil {
		p.state.Discard()
		return err
	}
	if err := p.state.Commit(); err != nil {
		p.state.Discard()
		return err
	}
	for _, evt := range committed {
		observability.Events().RecordEvent(evt.Type)
	}
	return nil
}

func (p *Processor) rollback(snapshot, mark int) {
	if err := p.state.RevertToSnapshot(snapshot); err != nil {
		p.logger.Error("state revert failed", slog.String("error", err.Error()))
		p.state.Discard()
	}
	p.buffer.Truncate(mark)
}

// read runs fn under the request lock without committing anything.
func (p *Processor) read(fn func() error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fn()
}

// CreateSale lists tokenID of contract at price.
func (p *Processor) CreateSale(ctx context.Context, caller, contract common.Address, tokenID, price *big.Int) (*market.Listing, error) {
	var listing *market.Listing
	err := p.run(ctx, request{operation: "create_sale", caller: caller, guarded: true}, func() error {
		var err error
		listing, err = p.engine.CreateSale(caller, contract, tokenID, price)
		return err
	})
	if err != nil {
		return nil, err
	}
	return listing, nil
}

// ModifySale changes the price of an open listing.
func (p *Processor) ModifySale(ctx context.Context, caller common.Address, id uint64, price *big.Int) error {
	return p.run(ctx, request{operation: "modify_sale", caller: caller, listing: id, guarded: true}, func() error {
		return p.engine.ModifySale(caller, id, price)
	})
}

// CancelSale withdraws an open listing.
func (p *Processor) CancelSale(ctx context.Context, caller common.Address, id uint64) error {
	return p.run(ctx, request{operation: "cancel_sale", caller: caller, listing: id, guarded: true}, func() error {
		return p.engine.CancelSale(caller, id)
	})
}

// BuySale purchases an open listing, attaching value in native currency.
func (p *Processor) BuySale(ctx context.Context, caller common.Address, id uint64, value *big.Int) error {
	err := p.run(ctx, request{operation: "buy_sale", caller: caller, listing: id, guarded: true}, func() error {
		return p.engine.BuySale(caller, id, value)
	})
	if err == nil {
		p.metrics.RecordSettlement(string(escrow.CurrencyNative), value)
	}
	return err
}

// MakeOffer escrows amount of the settlement token as a bid on listing id.
func (p *Processor) MakeOffer(ctx context.Context, caller common.Address, id uint64, amount *big.Int, durationSeconds uint64) (uint64, error) {
	var index uint64
	err := p.run(ctx, request{operation: "make_offer", caller: caller, listing: id, guarded: true}, func() error {
		var err error
		index, err = p.engine.MakeOffer(caller, id, amount, durationSeconds)
		return err
	})
	return index, err
}

// CancelOffer refunds the caller's bid at index. It stays available while the
// market is paused so bidders can always recover funds.
func (p *Processor) CancelOffer(ctx context.Context, caller common.Address, id, index uint64) error {
	return p.run(ctx, request{operation: "cancel_offer", caller: caller, listing: id}, func() error {
		return p.engine.CancelOffer(caller, id, index)
	})
}

// AcceptOffer settles listing id against the bid at index.
func (p *Processor) AcceptOffer(ctx context.Context, caller common.Address, id, index uint64) error {
	var amount *big.Int
	err := p.run(ctx, request{operation: "accept_offer", caller: caller, listing: id, guarded: true}, func() error {
		offer, err := p.engine.GetOffer(id, index)
		if err != nil {
			return err
		}
		amount = offer.Amount
		return p.engine.AcceptOffer(caller, id, index)
	})
	if err == nil {
		p.metrics.RecordSettlement(string(escrow.CurrencyToken), amount)
	}
	return err
}

// SetFees updates the marketplace fee rate.
func (p *Processor) SetFees(ctx context.Context, caller common.Address, bps uint32) error {
	return p.run(ctx, request{operation: "set_fees", caller: caller}, func() error {
		return p.fees.SetFees(caller, bps)
	})
}

// WithdrawFees sweeps the fees accrued in currency to the operator.
func (p *Processor) WithdrawFees(ctx context.Context, caller common.Address, currency escrow.Currency) (*big.Int, error) {
	var amount *big.Int
	err := p.run(ctx, request{operation: "withdraw_fees", caller: caller}, func() error {
		var err error
		amount, err = p.fees.Withdraw(caller, currency)
		return err
	})
	if err != nil {
		return nil, err
	}
	return amount, nil
}

// WithdrawEthFees sweeps native currency fees.
func (p *Processor) WithdrawEthFees(ctx context.Context, caller common.Address) (*big.Int, error) {
	return p.WithdrawFees(ctx, caller, escrow.CurrencyNative)
}

// WithdrawTokenFees sweeps settlement token fees.
func (p *Processor) WithdrawTokenFees(ctx context.Context, caller common.Address) (*big.Int, error) {
	return p.WithdrawFees(ctx, caller, escrow.CurrencyToken)
}

// GetListing returns listing id with its offers.
func (p *Processor) GetListing(id uint64) (*market.Listing, error) {
	var listing *market.Listing
	err := p.read(func() error {
		var err error
		listing, err = p.engine.GetListing(id)
		return err
	})
	return listing, err
}

// ListingCount returns the number of listings ever created.
func (p *Processor) ListingCount() (uint64, error) {
	var count uint64
	err := p.read(func() error {
		var err error
		count, err = p.engine.ListingCount()
		return err
	})
	return count, err
}

// MarketFeeRate returns the fee rate in basis points.
func (p *Processor) MarketFeeRate() (uint32, error) {
	var rate uint32
	err := p.read(func() error {
		var err error
		rate, err = p.fees.Rate()
		return err
	})
	return rate, err
}

// FeeBalance returns the withdrawable fees accrued in currency.
func (p *Processor) FeeBalance(currency escrow.Currency) (*big.Int, error) {
	var balance *big.Int
	err := p.read(func() error {
		var err error
		balance, err = p.fees.Balance(currency)
		return err
	})
	return balance, err
}

// HeldTotal returns the settlement token amount backing live offers.
func (p *Processor) HeldTotal() (*big.Int, error) {
	var held *big.Int
	err := p.read(func() error {
		var err error
		held, err = p.ledger.HeldTotal()
		return err
	})
	return held, err
}

// Operator returns the fee administrator.
func (p *Processor) Operator() common.Address { return p.fees.Operator() }

// SettlementToken returns the address of the offer currency.
func (p *Processor) SettlementToken() common.Address { return p.settlement.Address() }
