package collectibles

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ERC1155 is a quantity-bearing collection.
type ERC1155 struct {
	registry *Registry
	address  common.Address
}

// Address returns the contract address.
func (c *ERC1155) Address() common.Address { return c.address }

func (c *ERC1155) balanceKey(account common.Address, id *big.Int) []byte {
	return contractKey(c.address, "balance", id.Bytes(), account.Bytes())
}

func (c *ERC1155) supplyKey(id *big.Int) []byte {
	return contractKey(c.address, "supply", id.Bytes())
}

func (c *ERC1155) operatorKey(owner, operator common.Address) []byte {
	return contractKey(c.address, "operator", owner.Bytes(), operator.Bytes())
}

// BalanceOf returns the units of id held by account.
func (c *ERC1155) BalanceOf(account common.Address, id *big.Int) (*big.Int, error) {
	if id == nil {
		return big.NewInt(0), nil
	}
	return c.registry.loadBig(c.balanceKey(account, id))
}

// TotalSupply returns the minted units of id.
func (c *ERC1155) TotalSupply(id *big.Int) (*big.Int, error) {
	return c.registry.loadBig(c.supplyKey(id))
}

// Mint issues amount units of id to to.
func (c *ERC1155) Mint(to common.Address, id, amount *big.Int) error {
	if to == (common.Address{}) {
		return ErrERC1155ZeroAddress
	}
	if id == nil || amount == nil || amount.Sign() <= 0 {
		return nil
	}
	balance, err := c.BalanceOf(to, id)
	if err != nil {
		return err
	}
	if err := c.registry.storeBig(c.balanceKey(to, id), balance.Add(balance, amount)); err != nil {
		return err
	}
	supply, err := c.TotalSupply(id)
	if err != nil {
		return err
	}
	return c.registry.storeBig(c.supplyKey(id), supply.Add(supply, amount))
}

// SetApprovalForAll grants or revokes operator rights over caller's balances.
func (c *ERC1155) SetApprovalForAll(caller, operator common.Address, approved bool) error {
	if !approved {
		return c.registry.store.KVDelete(c.operatorKey(caller, operator))
	}
	return c.registry.store.KVPut(c.operatorKey(caller, operator), true)
}

// IsApprovedForAll reports whether operator may move owner's balances.
func (c *ERC1155) IsApprovedForAll(owner, operator common.Address) (bool, error) {
	return c.registry.loadFlag(c.operatorKey(owner, operator))
}

// SafeTransferFrom moves amount units of id from from to to.
func (c *ERC1155) SafeTransferFrom(caller, from, to common.Address, id, amount *big.Int) error {
	if caller != from {
		approved, err := c.IsApprovedForAll(from, caller)
		if err != nil {
			return err
		}
		if !approved {
			return ErrERC1155NotApproved
		}
	}
	if to == (common.Address{}) {
		return ErrERC1155ZeroAddress
	}
	if id == nil || amount == nil || amount.Sign() <= 0 {
		return ErrERC1155InsufficientBal
	}
	fromBal, err := c.BalanceOf(from, id)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return ErrERC1155InsufficientBal
	}
	if hook, ok := c.registry.receivers[to].(ERC1155Receiver); ok {
		if err := hook.OnERC1155Received(caller, from, new(big.Int).Set(id), new(big.Int).Set(amount)); err != nil {
			return err
		}
	}
	if from == to {
		return nil
	}
	toBal, err := c.BalanceOf(to, id)
	if err != nil {
		return err
	}
	if err := c.registry.storeBig(c.balanceKey(from, id), fromBal.Sub(fromBal, amount)); err != nil {
		return err
	}
	return c.registry.storeBig(c.balanceKey(to, id), toBal.Add(toBal, amount))
}
