package collectibles

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ERC721 is a unique-ownership collection. ERC721A collections share the same
// semantics; they only differ in how the original project minted batches.
type ERC721 struct {
	registry *Registry
	address  common.Address
}

// Address returns the contract address.
func (c *ERC721) Address() common.Address { return c.address }

func (c *ERC721) ownerKey(id *big.Int) []byte {
	return contractKey(c.address, "owner", id.Bytes())
}

func (c *ERC721) approvalKey(id *big.Int) []byte {
	return contractKey(c.address, "approved", id.Bytes())
}

func (c *ERC721) operatorKey(owner, operator common.Address) []byte {
	return contractKey(c.address, "operator", owner.Bytes(), operator.Bytes())
}

func (c *ERC721) balanceKey(owner common.Address) []byte {
	return contractKey(c.address, "balance", owner.Bytes())
}

func (c *ERC721) supplyKey() []byte {
	return contractKey(c.address, "supply")
}

// TotalSupply returns the number of minted tokens. Token ids are assigned
// sequentially starting at 1.
func (c *ERC721) TotalSupply() (*big.Int, error) {
	return c.registry.loadBig(c.supplyKey())
}

// Mint issues quantity consecutive tokens to to and returns the first id.
func (c *ERC721) Mint(to common.Address, quantity uint64) (*big.Int, error) {
	if to == (common.Address{}) {
		return nil, ErrERC721ZeroAddress
	}
	supply, err := c.TotalSupply()
	if err != nil {
		return nil, err
	}
	first := new(big.Int).Add(supply, big.NewInt(1))
	for i := uint64(0); i < quantity; i++ {
		id := new(big.Int).Add(first, new(big.Int).SetUint64(i))
		if err := c.registry.store.KVPut(c.ownerKey(id), to); err != nil {
			return nil, err
		}
	}
	if err := c.addBalance(to, int64(quantity)); err != nil {
		return nil, err
	}
	next := new(big.Int).Add(supply, new(big.Int).SetUint64(quantity))
	if err := c.registry.storeBig(c.supplyKey(), next); err != nil {
		return nil, err
	}
	return first, nil
}

// OwnerOf returns the current owner of id.
func (c *ERC721) OwnerOf(id *big.Int) (common.Address, error) {
	if id == nil || id.Sign() <= 0 {
		return common.Address{}, ErrERC721InvalidToken
	}
	owner, err := c.registry.loadAddress(c.ownerKey(id))
	if err != nil {
		return common.Address{}, err
	}
	if owner == (common.Address{}) {
		return common.Address{}, ErrERC721InvalidToken
	}
	return owner, nil
}

// BalanceOf returns the number of tokens held by owner.
func (c *ERC721) BalanceOf(owner common.Address) (*big.Int, error) {
	return c.registry.loadBig(c.balanceKey(owner))
}

func (c *ERC721) addBalance(owner common.Address, delta int64) error {
	balance, err := c.BalanceOf(owner)
	if err != nil {
		return err
	}
	return c.registry.storeBig(c.balanceKey(owner), balance.Add(balance, big.NewInt(delta)))
}

// Approve lets to transfer id on behalf of its owner.
func (c *ERC721) Approve(caller, to common.Address, id *big.Int) error {
	owner, err := c.OwnerOf(id)
	if err != nil {
		return err
	}
	if caller != owner {
		operator, err := c.IsApprovedForAll(owner, caller)
		if err != nil {
			return err
		}
		if !operator {
			return ErrERC721NotApproved
		}
	}
	if to == (common.Address{}) {
		return c.registry.store.KVDelete(c.approvalKey(id))
	}
	return c.registry.store.KVPut(c.approvalKey(id), to)
}

// GetApproved returns the single-token approval for id.
func (c *ERC721) GetApproved(id *big.Int) (common.Address, error) {
	if _, err := c.OwnerOf(id); err != nil {
		return common.Address{}, err
	}
	return c.registry.loadAddress(c.approvalKey(id))
}

// SetApprovalForAll grants or revokes operator rights over every token caller
// owns.
func (c *ERC721) SetApprovalForAll(caller, operator common.Address, approved bool) error {
	if caller == operator {
		return ErrERC721ApproveToCaller
	}
	if !approved {
		return c.registry.store.KVDelete(c.operatorKey(caller, operator))
	}
	return c.registry.store.KVPut(c.operatorKey(caller, operator), true)
}

// IsApprovedForAll reports whether operator may manage owner's tokens.
func (c *ERC721) IsApprovedForAll(owner, operator common.Address) (bool, error) {
	return c.registry.loadFlag(c.operatorKey(owner, operator))
}

func (c *ERC721) isApprovedOrOwner(spender, owner common.Address, id *big.Int) (bool, error) {
	if spender == owner {
		return true, nil
	}
	approved, err := c.registry.loadAddress(c.approvalKey(id))
	if err != nil {
		return false, err
	}
	if approved == spender {
		return true, nil
	}
	return c.IsApprovedForAll(owner, spender)
}

// SafeTransferFrom moves id from from to to. caller must be the owner, the
// approved address or an operator. When to registered a receiver hook it is
// consulted before any state changes and may veto the transfer.
func (c *ERC721) SafeTransferFrom(caller, from, to common.Address, id *big.Int) error {
	owner, err := c.OwnerOf(id)
	if err != nil {
		return err
	}
	allowed, err := c.isApprovedOrOwner(caller, owner, id)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrERC721NotApproved
	}
	if owner != from {
		return ErrERC721IncorrectOwner
	}
	if to == (common.Address{}) {
		return ErrERC721ZeroAddress
	}
	if hook, ok := c.registry.receivers[to].(ERC721Receiver); ok {
		if err := hook.OnERC721Received(caller, from, new(big.Int).Set(id)); err != nil {
			return err
		}
	}
	if err := c.registry.store.KVDelete(c.approvalKey(id)); err != nil {
		return err
	}
	if err := c.registry.store.KVPut(c.ownerKey(id), to); err != nil {
		return err
	}
	if err := c.addBalance(from, -1); err != nil {
		return err
	}
	return c.addBalance(to, 1)
}
