package market

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"nftmarket/native/token"
)

// BidPolicy selects how competing offers on a listing relate to each other.
type BidPolicy string

const (
	// BidPolicyOpen keeps every offer as an independent claim; none has to
	// exceed another.
	BidPolicyOpen BidPolicy = "open"
	// BidPolicyHighest keeps a single live offer per listing. A new offer
	// must exceed it and the displaced bidder is refunded immediately.
	BidPolicyHighest BidPolicy = "highest"
)

// ParseBidPolicy normalises raw into a BidPolicy. Empty input selects the open
// policy.
func ParseBidPolicy(raw string) (BidPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(BidPolicyOpen):
		return BidPolicyOpen, nil
	case string(BidPolicyHighest):
		return BidPolicyHighest, nil
	default:
		return "", fmt.Errorf("market: unknown bid policy %q", raw)
	}
}

// Listing is a sale order for one escrowed asset.
type Listing struct {
	ID         uint64
	Seller     common.Address
	Buyer      common.Address
	Contract   common.Address
	TokenID    *big.Int
	Standard   token.Standard
	Quantity   *big.Int
	Price      *big.Int
	Closed     bool
	CreatedAt  uint64
	OfferCount uint64
	// Offers is populated by GetListing and never persisted with the record.
	Offers []Offer `rlp:"-"`
}

// Exists reports whether the record names a real listing.
func (l *Listing) Exists() bool {
	return l != nil && l.Seller != (common.Address{})
}

// Open reports whether the listing still accepts purchases and offers.
func (l *Listing) Open() bool {
	return l.Exists() && !l.Closed
}

// Copy returns a deep copy of the listing.
func (l *Listing) Copy() *Listing {
	if l == nil {
		return nil
	}
	out := *l
	out.TokenID = cloneBig(l.TokenID)
	out.Quantity = cloneBig(l.Quantity)
	out.Price = cloneBig(l.Price)
	if l.Offers != nil {
		out.Offers = make([]Offer, len(l.Offers))
		for i := range l.Offers {
			out.Offers[i] = l.Offers[i].Copy()
		}
	}
	return &out
}

// Offer is a bid slot. A cleared slot has a zero sender and a zero amount;
// an accepted slot keeps its amount for audit.
type Offer struct {
	Sender    common.Address
	Amount    *big.Int
	PlacedAt  uint64
	ExpiresAt uint64
	Accepted  bool
}

// Live reports whether the slot still backs an escrow hold.
func (o Offer) Live() bool {
	return o.Sender != (common.Address{}) && !o.Accepted && o.Amount != nil && o.Amount.Sign() > 0
}

// Copy returns a deep copy of the offer.
func (o Offer) Copy() Offer {
	o.Amount = cloneBig(o.Amount)
	return o
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
