package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"nftmarket/core/types"
)

const (
	TypeSaleCreated    = "market.sale.created"
	TypeSaleModified   = "market.sale.modified"
	TypeSaleCanceled   = "market.sale.canceled"
	TypeSaleSuccessful = "market.sale.successful"
	TypeOfferMade      = "market.offer.made"
	TypeOfferCanceled  = "market.offer.canceled"
	TypeOfferAccepted  = "market.offer.accepted"
	TypeFeesUpdated    = "market.fees.updated"
	TypeFeesWithdrawn  = "market.fees.withdrawn"
)

// SaleCreated is emitted once an asset has been escrowed and listed.
type SaleCreated struct {
	ListingID uint64
	Seller    common.Address
	TokenID   *big.Int
	Contract  common.Address
	Standard  string
	Price     *big.Int
}

func (SaleCreated) EventType() string { return TypeSaleCreated }

func (e SaleCreated) Event() *types.Event {
	return &types.Event{
		Type: TypeSaleCreated,
		Attributes: map[string]string{
			"id":       uintToString(e.ListingID),
			"seller":   e.Seller.Hex(),
			"tokenId":  formatAmount(e.TokenID),
			"contract": e.Contract.Hex(),
			"standard": normalizeAsset(e.Standard),
			"price":    formatAmount(e.Price),
		},
	}
}

// SaleModified records a price change on an open listing.
type SaleModified struct {
	ListingID uint64
	OldPrice  *big.Int
	NewPrice  *big.Int
}

func (SaleModified) EventType() string { return TypeSaleModified }

func (e SaleModified) Event() *types.Event {
	return &types.Event{
		Type: TypeSaleModified,
		Attributes: map[string]string{
			"id":       uintToString(e.ListingID),
			"oldPrice": formatAmount(e.OldPrice),
			"price":    formatAmount(e.NewPrice),
		},
	}
}

// SaleCanceled is emitted when the seller withdraws a listing.
type SaleCanceled struct {
	ListingID uint64
}

func (SaleCanceled) EventType() string { return TypeSaleCanceled }

func (e SaleCanceled) Event() *types.Event {
	return &types.Event{
		Type:       TypeSaleCanceled,
		Attributes: map[string]string{"id": uintToString(e.ListingID)},
	}
}

// SaleSuccessful is emitted for every settlement, fixed price or accepted
// offer. Price is the gross amount in the settlement currency.
type SaleSuccessful struct {
	ListingID uint64
	Seller    common.Address
	Buyer     common.Address
	Price     *big.Int
	Currency  string
}

func (SaleSuccessful) EventType() string { return TypeSaleSuccessful }

func (e SaleSuccessful) Event() *types.Event {
	attrs := map[string]string{
		"id":     uintToString(e.ListingID),
		"seller": e.Seller.Hex(),
		"buyer":  e.Buyer.Hex(),
		"price":  formatAmount(e.Price),
	}
	if currency := normalizeAsset(e.Currency); currency != "" {
		attrs["currency"] = currency
	}
	return &types.Event{Type: TypeSaleSuccessful, Attributes: attrs}
}

// OfferMade is emitted when a bid is escrowed against a listing.
type OfferMade struct {
	ListingID uint64
	Index     uint64
	Sender    common.Address
	Amount    *big.Int
	ExpiresAt uint64
}

func (OfferMade) EventType() string { return TypeOfferMade }

func (e OfferMade) Event() *types.Event {
	return &types.Event{
		Type: TypeOfferMade,
		Attributes: map[string]string{
			"id":        uintToString(e.ListingID),
			"index":     uintToString(e.Index),
			"sender":    e.Sender.Hex(),
			"amount":    formatAmount(e.Amount),
			"expiresAt": uintToString(e.ExpiresAt),
		},
	}
}

// OfferCanceled is emitted when a bid is refunded, either by its sender or
// because a higher bid displaced it.
type OfferCanceled struct {
	ListingID uint64
	Index     uint64
	Sender    common.Address
	Amount    *big.Int
	Reason    string
}

func (OfferCanceled) EventType() string { return TypeOfferCanceled }

func (e OfferCanceled) Event() *types.Event {
	attrs := map[string]string{
		"id":     uintToString(e.ListingID),
		"index":  uintToString(e.Index),
		"sender": e.Sender.Hex(),
		"amount": formatAmount(e.Amount),
	}
	if e.Reason != "" {
		attrs["reason"] = e.Reason
	}
	return &types.Event{Type: TypeOfferCanceled, Attributes: attrs}
}

// OfferAccepted is emitted when the seller settles a listing against a bid.
type OfferAccepted struct {
	ListingID uint64
	Index     uint64
	Seller    common.Address
	Sender    common.Address
	Amount    *big.Int
	Fee       *big.Int
}

func (OfferAccepted) EventType() string { return TypeOfferAccepted }

func (e OfferAccepted) Event() *types.Event {
	return &types.Event{
		Type: TypeOfferAccepted,
		Attributes: map[string]string{
			"id":     uintToString(e.ListingID),
			"index":  uintToString(e.Index),
			"seller": e.Seller.Hex(),
			"sender": e.Sender.Hex(),
			"amount": formatAmount(e.Amount),
			"fee":    formatAmount(e.Fee),
		},
	}
}

// FeesUpdated records a change of the marketplace fee rate.
type FeesUpdated struct {
	Operator common.Address
	OldBps   uint32
	NewBps   uint32
}

func (FeesUpdated) EventType() string { return TypeFeesUpdated }

func (e FeesUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeFeesUpdated,
		Attributes: map[string]string{
			"operator": e.Operator.Hex(),
			"oldBps":   uintToString(uint64(e.OldBps)),
			"bps":      uintToString(uint64(e.NewBps)),
		},
	}
}

// FeesWithdrawn records a sweep of accrued fees to the operator.
type FeesWithdrawn struct {
	Operator common.Address
	Currency string
	Amount   *big.Int
}

func (FeesWithdrawn) EventType() string { return TypeFeesWithdrawn }

func (e FeesWithdrawn) Event() *types.Event {
	return &types.Event{
		Type: TypeFeesWithdrawn,
		Attributes: map[string]string{
			"operator": e.Operator.Hex(),
			"currency": normalizeAsset(e.Currency),
			"amount":   formatAmount(e.Amount),
		},
	}
}
