package collectibles

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ERC20 is the fungible settlement token.
type ERC20 struct {
	registry *Registry
	address  common.Address
}

// Address returns the contract address.
func (c *ERC20) Address() common.Address { return c.address }

func (c *ERC20) balanceKey(account common.Address) []byte {
	return contractKey(c.address, "balance", account.Bytes())
}

func (c *ERC20) allowanceKey(owner, spender common.Address) []byte {
	return contractKey(c.address, "allowance", owner.Bytes(), spender.Bytes())
}

func (c *ERC20) supplyKey() []byte {
	return contractKey(c.address, "supply")
}

// BalanceOf returns the balance of account.
func (c *ERC20) BalanceOf(account common.Address) (*big.Int, error) {
	return c.registry.loadBig(c.balanceKey(account))
}

// TotalSupply returns the amount minted so far.
func (c *ERC20) TotalSupply() (*big.Int, error) {
	return c.registry.loadBig(c.supplyKey())
}

// Allowance returns how much spender may pull from owner.
func (c *ERC20) Allowance(owner, spender common.Address) (*big.Int, error) {
	return c.registry.loadBig(c.allowanceKey(owner, spender))
}

// Mint credits amount to to. It is the devnet faucet and is not part of the
// production surface.
func (c *ERC20) Mint(to common.Address, amount *big.Int) error {
	if to == (common.Address{}) {
		return ErrERC20ZeroAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	balance, err := c.BalanceOf(to)
	if err != nil {
		return err
	}
	if err := c.registry.storeBig(c.balanceKey(to), balance.Add(balance, amount)); err != nil {
		return err
	}
	supply, err := c.TotalSupply()
	if err != nil {
		return err
	}
	return c.registry.storeBig(c.supplyKey(), supply.Add(supply, amount))
}

// Approve sets the allowance spender may pull from caller.
func (c *ERC20) Approve(caller, spender common.Address, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	return c.registry.storeBig(c.allowanceKey(caller, spender), amount)
}

// Transfer moves amount from caller to to.
func (c *ERC20) Transfer(caller, to common.Address, amount *big.Int) error {
	return c.move(caller, to, amount)
}

// TransferFrom moves amount from from to to using caller's allowance.
func (c *ERC20) TransferFrom(caller, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	if caller != from {
		allowance, err := c.Allowance(from, caller)
		if err != nil {
			return err
		}
		if allowance.Cmp(amount) < 0 {
			return ErrERC20InsufficientAllow
		}
		if err := c.registry.storeBig(c.allowanceKey(from, caller), allowance.Sub(allowance, amount)); err != nil {
			return err
		}
	}
	return c.move(from, to, amount)
}

func (c *ERC20) move(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	if to == (common.Address{}) {
		return ErrERC20ZeroAddress
	}
	fromBal, err := c.BalanceOf(from)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return ErrERC20InsufficientBal
	}
	if from == to {
		return nil
	}
	toBal, err := c.BalanceOf(to)
	if err != nil {
		return err
	}
	if err := c.registry.storeBig(c.balanceKey(from), fromBal.Sub(fromBal, amount)); err != nil {
		return err
	}
	return c.registry.storeBig(c.balanceKey(to), toBal.Add(toBal, amount))
}
