package token

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	nerrors "nftmarket/core/errors"
	"nftmarket/native/collectibles"
)

// UniqueCollection is the capability set consumed from unique-ownership
// collections.
type UniqueCollection interface {
	OwnerOf(id *big.Int) (common.Address, error)
	SafeTransferFrom(caller, from, to common.Address, id *big.Int) error
}

// QuantityCollection is the capability set consumed from quantity-bearing
// collections.
type QuantityCollection interface {
	BalanceOf(account common.Address, id *big.Int) (*big.Int, error)
	SafeTransferFrom(caller, from, to common.Address, id, amount *big.Int) error
}

// Resolver locates collections by address.
type Resolver interface {
	Kind(contract common.Address) (collectibles.Kind, error)
	Unique(contract common.Address) (UniqueCollection, error)
	Quantity(contract common.Address) (QuantityCollection, error)
}

type registryResolver struct {
	reg *collectibles.Registry
}

// FromRegistry exposes the in-process collections through the Resolver
// interface.
func FromRegistry(reg *collectibles.Registry) Resolver {
	return registryResolver{reg: reg}
}

func (r registryResolver) Kind(contract common.Address) (collectibles.Kind, error) {
	return r.reg.Kind(contract)
}

func (r registryResolver) Unique(contract common.Address) (UniqueCollection, error) {
	c, err := r.reg.ERC721(contract)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r registryResolver) Quantity(contract common.Address) (QuantityCollection, error) {
	c, err := r.reg.ERC1155(contract)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// lane carries the capability functions of one custody model.
type lane interface {
	isOwner(contract common.Address, id *big.Int, account common.Address) (bool, error)
	transfer(operator, contract common.Address, id *big.Int, from, to common.Address, quantity *big.Int) error
}

type uniqueLane struct{ resolver Resolver }

func (l uniqueLane) isOwner(contract common.Address, id *big.Int, account common.Address) (bool, error) {
	c, err := l.resolver.Unique(contract)
	if err != nil {
		return false, err
	}
	owner, err := c.OwnerOf(id)
	if err != nil {
		return false, nil
	}
	return owner == account, nil
}

func (l uniqueLane) transfer(operator, contract common.Address, id *big.Int, from, to common.Address, _ *big.Int) error {
	c, err := l.resolver.Unique(contract)
	if err != nil {
		return err
	}
	return c.SafeTransferFrom(operator, from, to, id)
}

type quantityLane struct{ resolver Resolver }

func (l quantityLane) isOwner(contract common.Address, id *big.Int, account common.Address) (bool, error) {
	c, err := l.resolver.Quantity(contract)
	if err != nil {
		return false, err
	}
	balance, err := c.BalanceOf(account, id)
	if err != nil {
		return false, err
	}
	return balance.Sign() > 0, nil
}

func (l quantityLane) transfer(operator, contract common.Address, id *big.Int, from, to common.Address, quantity *big.Int) error {
	c, err := l.resolver.Quantity(contract)
	if err != nil {
		return err
	}
	if quantity == nil || quantity.Sign() <= 0 {
		quantity = big.NewInt(1)
	}
	return c.SafeTransferFrom(operator, from, to, id, quantity)
}

// Adapter performs ownership checks and custodial transfers for every
// supported standard on behalf of the marketplace account. It also acts as the
// marketplace's receiver hook and only admits assets it is pulling itself.
type Adapter struct {
	resolver Resolver
	self     common.Address
	lanes    map[Standard]lane
	pulling  bool
}

// NewAdapter returns an adapter operating as the custody account self.
func NewAdapter(resolver Resolver, self common.Address) *Adapter {
	return &Adapter{
		resolver: resolver,
		self:     self,
		lanes: map[Standard]lane{
			StandardERC721:  uniqueLane{resolver: resolver},
			StandardERC1155: quantityLane{resolver: resolver},
		},
	}
}

// Address returns the custody account.
func (a *Adapter) Address() common.Address { return a.self }

// Resolve detects the custody model of contract.
func (a *Adapter) Resolve(contract common.Address) (Standard, error) {
	kind, err := a.resolver.Kind(contract)
	if err != nil {
		return StandardUnknown, err
	}
	switch kind {
	case collectibles.KindERC721, collectibles.KindERC721A:
		return StandardERC721, nil
	case collectibles.KindERC1155:
		return StandardERC1155, nil
	default:
		return StandardUnknown, fmt.Errorf("%w: %s", nerrors.ErrUnsupportedStandard, contract.Hex())
	}
}

func (a *Adapter) lane(std Standard) (lane, error) {
	l, ok := a.lanes[std]
	if !ok {
		return nil, fmt.Errorf("%w: %s", nerrors.ErrUnsupportedStandard, std)
	}
	return l, nil
}

// IsOwner reports whether account currently owns (ERC721) or holds a
// positive balance of (ERC1155) the token.
func (a *Adapter) IsOwner(contract common.Address, id *big.Int, account common.Address, std Standard) (bool, error) {
	l, err := a.lane(std)
	if err != nil {
		return false, err
	}
	return l.isOwner(contract, id, account)
}

// CustodyTransfer moves quantity units of the token from from to to using the
// approval previously granted to the marketplace. Token-layer rejections are
// returned with their original message and classified as ErrTransferRejected.
func (a *Adapter) CustodyTransfer(contract common.Address, id *big.Int, from, to common.Address, std Standard, quantity *big.Int) error {
	l, err := a.lane(std)
	if err != nil {
		return err
	}
	if to == a.self {
		a.pulling = true
		defer func() { a.pulling = false }()
	}
	if err := l.transfer(a.self, contract, id, from, to, quantity); err != nil {
		return fmt.Errorf("%w: %w", nerrors.ErrTransferRejected, err)
	}
	return nil
}

func (a *Adapter) admit(operator common.Address) error {
	if a.pulling && operator == a.self {
		return nil
	}
	return nerrors.ErrDirectTransferNotAllowed
}

// OnERC721Received rejects unique tokens the marketplace did not pull itself.
func (a *Adapter) OnERC721Received(operator, _ common.Address, _ *big.Int) error {
	return a.admit(operator)
}

// OnERC1155Received rejects quantity tokens the marketplace did not pull
// itself.
func (a *Adapter) OnERC1155Received(operator, _ common.Address, _, _ *big.Int) error {
	return a.admit(operator)
}
