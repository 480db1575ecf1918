package market

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	nerrors "nftmarket/core/errors"
	"nftmarket/core/events"
	"nftmarket/native/escrow"
	"nftmarket/native/token"
)

// DefaultCancelLock is the minimum age of an offer before its sender may
// withdraw it.
const DefaultCancelLock = 48 * time.Hour

var (
	errNilState   = errors.New("market engine: state not configured")
	errNilCustody = errors.New("market engine: custody not configured")
	errNilEscrow  = errors.New("market engine: escrow ledger not configured")
	errNilFees    = errors.New("market engine: fee controller not configured")
)

var (
	listingCountKey  = []byte("market/listing/count")
	listingKeyPrefix = "market/listing/"
	offerKeyPrefix   = "market/offer/"
)

func listingKey(id uint64) []byte {
	return []byte(listingKeyPrefix + strconv.FormatUint(id, 10))
}

func offerKey(id, index uint64) []byte {
	return []byte(offerKeyPrefix + strconv.FormatUint(id, 10) + "/" + strconv.FormatUint(index, 10))
}

// Storage abstracts the subset of state manager functionality required by the
// engine.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Custody moves listed assets in and out of the marketplace account.
type Custody interface {
	Address() common.Address
	Resolve(contract common.Address) (token.Standard, error)
	IsOwner(contract common.Address, id *big.Int, account common.Address, std token.Standard) (bool, error)
	CustodyTransfer(contract common.Address, id *big.Int, from, to common.Address, std token.Standard, quantity *big.Int) error
}

// Escrow holds bid funds and moves payments through the vault.
type Escrow interface {
	Hold(account common.Address, amount *big.Int) error
	Refund(account common.Address, amount *big.Int) error
	Consume(account common.Address, amount *big.Int) error
	Collect(currency escrow.Currency, from common.Address, amount *big.Int) error
	Pay(currency escrow.Currency, to common.Address, amount *big.Int) error
}

// Fees splits a settlement and accrues the marketplace share.
type Fees interface {
	Settle(currency escrow.Currency, gross *big.Int) (fee, net *big.Int, err error)
}

// Config tunes engine behaviour.
type Config struct {
	CancelLock         time.Duration
	Policy             BidPolicy
	EnforceOfferExpiry bool
}

// DefaultConfig returns the configuration the marketplace ships with.
func DefaultConfig() Config {
	return Config{CancelLock: DefaultCancelLock, Policy: BidPolicyOpen}
}

// Engine implements the listing and offer lifecycle: listings move from open
// to closed exactly once, assets sit in custody while open and every bid is
// backed by an escrow hold until it is canceled or accepted.
type Engine struct {
	state    Storage
	custody  Custody
	escrow   Escrow
	fees     Fees
	emitter  events.Emitter
	cfg      Config
	nowFn    func() int64
	inFlight bool
}

// NewEngine creates an engine with a no-op emitter. Callers wire state and
// collaborators through the setters.
func NewEngine(cfg Config) *Engine {
	if cfg.Policy == "" {
		cfg.Policy = BidPolicyOpen
	}
	if cfg.CancelLock < 0 {
		cfg.CancelLock = 0
	}
	return &Engine{
		emitter: events.NoopEmitter{},
		cfg:     cfg,
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state Storage) { e.state = state }

// SetCustody configures the token adapter.
func (e *Engine) SetCustody(custody Custody) { e.custody = custody }

// SetEscrow configures the escrow ledger.
func (e *Engine) SetEscrow(ledger Escrow) { e.escrow = ledger }

// SetFees configures the fee controller.
func (e *Engine) SetFees(fees Fees) { e.fees = fees }

// SetNowFunc overrides the time source used by the engine.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// Config returns the active engine configuration.
func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() uint64 {
	if e == nil || e.nowFn == nil {
		return uint64(time.Now().Unix())
	}
	ts := e.nowFn()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

// enter guards write operations against nested calls issued from token
// receiver hooks while a transfer is in progress.
func (e *Engine) enter() (func(), error) {
	if e.inFlight {
		return nil, nerrors.ErrReentrantCall
	}
	if e.state == nil {
		return nil, errNilState
	}
	if e.custody == nil {
		return nil, errNilCustody
	}
	if e.escrow == nil {
		return nil, errNilEscrow
	}
	if e.fees == nil {
		return nil, errNilFees
	}
	e.inFlight = true
	return func() { e.inFlight = false }, nil
}

// ListingCount returns the number of listings ever created, which is also the
// highest allocated id.
func (e *Engine) ListingCount() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	var count uint64
	if _, err := e.state.KVGet(listingCountKey, &count); err != nil {
		return 0, err
	}
	return count, nil
}

func (e *Engine) loadListing(id uint64) (*Listing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	listing := new(Listing)
	ok, err := e.state.KVGet(listingKey(id), listing)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Unknown ids read as a zero record: no seller, nothing open.
		return &Listing{ID: id, TokenID: big.NewInt(0), Quantity: big.NewInt(0), Price: big.NewInt(0)}, nil
	}
	return listing, nil
}

func (e *Engine) storeListing(listing *Listing) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	record := *listing
	record.Offers = nil
	return e.state.KVPut(listingKey(listing.ID), &record)
}

func (e *Engine) loadOffer(id, index uint64) (Offer, error) {
	var offer Offer
	ok, err := e.state.KVGet(offerKey(id, index), &offer)
	if err != nil {
		return Offer{}, err
	}
	if !ok || offer.Amount == nil {
		offer.Amount = big.NewInt(0)
	}
	return offer, nil
}

func (e *Engine) storeOffer(id, index uint64, offer Offer) error {
	if offer.Amount == nil {
		offer.Amount = big.NewInt(0)
	}
	return e.state.KVPut(offerKey(id, index), &offer)
}

// GetListing returns the listing with its offer arena. Unknown ids return a
// zero record whose seller is the zero address.
func (e *Engine) GetListing(id uint64) (*Listing, error) {
	listing, err := e.loadListing(id)
	if err != nil {
		return nil, err
	}
	listing.Offers = make([]Offer, 0, listing.OfferCount)
	for i := uint64(0); i < listing.OfferCount; i++ {
		offer, err := e.loadOffer(id, i)
		if err != nil {
			return nil, err
		}
		listing.Offers = append(listing.Offers, offer)
	}
	return listing, nil
}

// GetOffer returns a single bid slot.
func (e *Engine) GetOffer(id, index uint64) (Offer, error) {
	if e == nil || e.state == nil {
		return Offer{}, errNilState
	}
	return e.loadOffer(id, index)
}

// CreateSale escrows the caller's asset and opens a fixed-price listing.
func (e *Engine) CreateSale(caller, contract common.Address, tokenID, price *big.Int) (*Listing, error) {
	release, err := e.enter()
	if err != nil {
		return nil, err
	}
	defer release()

	if tokenID == nil || tokenID.Sign() < 0 {
		return nil, fmt.Errorf("market: invalid token id")
	}
	if price == nil || price.Sign() < 0 {
		return nil, fmt.Errorf("market: price must not be negative")
	}
	std, err := e.custody.Resolve(contract)
	if err != nil {
		return nil, err
	}
	owns, err := e.custody.IsOwner(contract, tokenID, caller, std)
	if err != nil {
		return nil, err
	}
	if !owns {
		return nil, nerrors.ErrNotOwner
	}
	count, err := e.ListingCount()
	if err != nil {
		return nil, err
	}
	listing := &Listing{
		ID:        count + 1,
		Seller:    caller,
		Contract:  contract,
		TokenID:   new(big.Int).Set(tokenID),
		Standard:  std,
		Quantity:  big.NewInt(1),
		Price:     new(big.Int).Set(price),
		CreatedAt: e.now(),
	}
	if err := e.state.KVPut(listingCountKey, listing.ID); err != nil {
		return nil, err
	}
	if err := e.storeListing(listing); err != nil {
		return nil, err
	}
	if err := e.custody.CustodyTransfer(contract, tokenID, caller, e.custody.Address(), std, listing.Quantity); err != nil {
		return nil, err
	}
	e.emit(events.SaleCreated{
		ListingID: listing.ID,
		Seller:    caller,
		TokenID:   listing.TokenID,
		Contract:  contract,
		Standard:  std.String(),
		Price:     listing.Price,
	})
	return listing.Copy(), nil
}

func (e *Engine) sellerListing(caller common.Address, id uint64) (*Listing, error) {
	listing, err := e.loadListing(id)
	if err != nil {
		return nil, err
	}
	if !listing.Exists() || listing.Seller != caller {
		return nil, nerrors.ErrNotOwner
	}
	if listing.Closed {
		return nil, nerrors.ErrOfferClosed
	}
	return listing, nil
}

// ModifySale changes the fixed price of an open listing.
func (e *Engine) ModifySale(caller common.Address, id uint64, price *big.Int) error {
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()

	listing, err := e.sellerListing(caller, id)
	if err != nil {
		return err
	}
	if price == nil || price.Sign() < 0 {
		return fmt.Errorf("market: price must not be negative")
	}
	previous := listing.Price
	listing.Price = new(big.Int).Set(price)
	if err := e.storeListing(listing); err != nil {
		return err
	}
	e.emit(events.SaleModified{ListingID: id, OldPrice: previous, NewPrice: listing.Price})
	return nil
}

// CancelSale closes an open listing and returns the asset to the seller.
// Pending offers stay refundable through CancelOffer.
func (e *Engine) CancelSale(caller common.Address, id uint64) error {
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()

	listing, err := e.sellerListing(caller, id)
	if err != nil {
		return err
	}
	listing.Closed = true
	if err := e.storeListing(listing); err != nil {
		return err
	}
	if err := e.custody.CustodyTransfer(listing.Contract, listing.TokenID, e.custody.Address(), listing.Seller, listing.Standard, listing.Quantity); err != nil {
		return err
	}
	e.emit(events.SaleCanceled{ListingID: id})
	return nil
}

// BuySale settles an open listing at its fixed price. value is the native
// amount the caller attaches and must equal the price exactly.
func (e *Engine) BuySale(caller common.Address, id uint64, value *big.Int) error {
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()

	listing, err := e.loadListing(id)
	if err != nil {
		return err
	}
	if !listing.Open() {
		return nerrors.ErrOfferClosed
	}
	if value == nil || value.Cmp(listing.Price) != 0 {
		return nerrors.ErrWrongAmount
	}
	listing.Closed = true
	listing.Buyer = caller
	if err := e.storeListing(listing); err != nil {
		return err
	}
	if value.Sign() > 0 {
		if err := e.escrow.Collect(escrow.CurrencyNative, caller, value); err != nil {
			return err
		}
	}
	if _, err := e.settle(escrow.CurrencyNative, listing, caller, value); err != nil {
		return err
	}
	e.emit(events.SaleSuccessful{
		ListingID: id,
		Seller:    listing.Seller,
		Buyer:     caller,
		Price:     cloneBig(value),
		Currency:  string(escrow.CurrencyNative),
	})
	return nil
}

// settle pays the seller net of fees out of funds already in the vault and
// delivers the asset to buyer. It returns the fee retained.
func (e *Engine) settle(currency escrow.Currency, listing *Listing, buyer common.Address, gross *big.Int) (*big.Int, error) {
	fee, net, err := e.fees.Settle(currency, gross)
	if err != nil {
		return nil, err
	}
	if err := e.escrow.Pay(currency, listing.Seller, net); err != nil {
		return nil, err
	}
	if err := e.custody.CustodyTransfer(listing.Contract, listing.TokenID, e.custody.Address(), buyer, listing.Standard, listing.Quantity); err != nil {
		return nil, err
	}
	return fee, nil
}

// MakeOffer escrows amount of the settlement token from caller as a bid on an
// open listing and returns the bid index.
func (e *Engine) MakeOffer(caller common.Address, id uint64, amount *big.Int, durationSeconds uint64) (uint64, error) {
	release, err := e.enter()
	if err != nil {
		return 0, err
	}
	defer release()

	listing, err := e.loadListing(id)
	if err != nil {
		return 0, err
	}
	if !listing.Open() {
		return 0, nerrors.ErrOfferClosed
	}
	if amount == nil || amount.Sign() <= 0 {
		return 0, nerrors.ErrAmountZero
	}

	var (
		displaced      Offer
		displacedIndex uint64
		hasDisplaced   bool
	)
	if e.cfg.Policy == BidPolicyHighest {
		displaced, displacedIndex, hasDisplaced, err = e.liveOffer(listing)
		if err != nil {
			return 0, err
		}
		if hasDisplaced && amount.Cmp(displaced.Amount) <= 0 {
			return 0, nerrors.ErrOfferTooLow
		}
	}

	now := e.now()
	index := listing.OfferCount
	offer := Offer{
		Sender:    caller,
		Amount:    new(big.Int).Set(amount),
		PlacedAt:  now,
		ExpiresAt: now + durationSeconds,
	}
	listing.OfferCount++
	if err := e.storeOffer(id, index, offer); err != nil {
		return 0, err
	}
	if hasDisplaced {
		if err := e.storeOffer(id, displacedIndex, Offer{}); err != nil {
			return 0, err
		}
	}
	if err := e.storeListing(listing); err != nil {
		return 0, err
	}
	if err := e.escrow.Hold(caller, amount); err != nil {
		return 0, err
	}
	if hasDisplaced {
		if err := e.escrow.Refund(displaced.Sender, displaced.Amount); err != nil {
			return 0, err
		}
		e.emit(events.OfferCanceled{
			ListingID: id,
			Index:     displacedIndex,
			Sender:    displaced.Sender,
			Amount:    displaced.Amount,
			Reason:    "outbid",
		})
	}
	e.emit(events.OfferMade{
		ListingID: id,
		Index:     index,
		Sender:    caller,
		Amount:    offer.Amount,
		ExpiresAt: offer.ExpiresAt,
	})
	return index, nil
}

// liveOffer returns the single live offer kept under the highest-bid policy.
func (e *Engine) liveOffer(listing *Listing) (Offer, uint64, bool, error) {
	for i := listing.OfferCount; i > 0; i-- {
		offer, err := e.loadOffer(listing.ID, i-1)
		if err != nil {
			return Offer{}, 0, false, err
		}
		if offer.Live() {
			return offer, i - 1, true, nil
		}
	}
	return Offer{}, 0, false, nil
}

// CancelOffer refunds a bid to its sender once the cancel lock has elapsed.
// It works on closed listings so outbid or unaccepted bidders can always
// recover their funds.
func (e *Engine) CancelOffer(caller common.Address, id, index uint64) error {
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()

	listing, err := e.loadListing(id)
	if err != nil {
		return err
	}
	if index >= listing.OfferCount {
		return nerrors.ErrNotOwner
	}
	offer, err := e.loadOffer(id, index)
	if err != nil {
		return err
	}
	if offer.Sender == (common.Address{}) || offer.Sender != caller {
		return nerrors.ErrNotOwner
	}
	if offer.Accepted {
		return nerrors.ErrOfferNotFound
	}
	lock := uint64(e.cfg.CancelLock / time.Second)
	now := e.now()
	if now < offer.PlacedAt || now-offer.PlacedAt < lock {
		return nerrors.ErrCancelTooEarly
	}
	if err := e.storeOffer(id, index, Offer{}); err != nil {
		return err
	}
	if err := e.escrow.Refund(caller, offer.Amount); err != nil {
		return err
	}
	e.emit(events.OfferCanceled{ListingID: id, Index: index, Sender: caller, Amount: offer.Amount})
	return nil
}

// AcceptOffer settles an open listing against the bid at index. The bid's
// hold funds the sale; every other bid stays escrowed for its sender.
func (e *Engine) AcceptOffer(caller common.Address, id, index uint64) error {
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()

	listing, err := e.sellerListing(caller, id)
	if err != nil {
		return err
	}
	if index >= listing.OfferCount {
		return nerrors.ErrOfferNotFound
	}
	offer, err := e.loadOffer(id, index)
	if err != nil {
		return err
	}
	if !offer.Live() {
		return nerrors.ErrOfferNotFound
	}
	if e.cfg.EnforceOfferExpiry && offer.ExpiresAt > offer.PlacedAt && e.now() > offer.ExpiresAt {
		return nerrors.ErrOfferExpired
	}
	offer.Accepted = true
	listing.Closed = true
	if err := e.storeOffer(id, index, offer); err != nil {
		return err
	}
	if err := e.storeListing(listing); err != nil {
		return err
	}
	if err := e.escrow.Consume(offer.Sender, offer.Amount); err != nil {
		return err
	}
	fee, err := e.settle(escrow.CurrencyToken, listing, offer.Sender, offer.Amount)
	if err != nil {
		return err
	}
	e.emit(events.OfferAccepted{
		ListingID: id,
		Index:     index,
		Seller:    listing.Seller,
		Sender:    offer.Sender,
		Amount:    offer.Amount,
		Fee:       fee,
	})
	e.emit(events.SaleSuccessful{
		ListingID: id,
		Seller:    listing.Seller,
		Buyer:     offer.Sender,
		Price:     cloneBig(offer.Amount),
		Currency:  string(escrow.CurrencyToken),
	})
	return nil
}
