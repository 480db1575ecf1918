package core

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"nftmarket/native/collectibles"
)

// Devnet helpers drive the in-process token contracts so a local data dir can
// be exercised end to end. They bypass the market pause switch.

// DeployCollection deploys a token contract of kind.
func (p *Processor) DeployCollection(ctx context.Context, kind collectibles.Kind, name, symbol string) (common.Address, error) {
	var addr common.Address
	err := p.run(ctx, request{operation: "deploy"}, func() error {
		var err error
		addr, err = p.registry.Deploy(kind, name, symbol)
		return err
	})
	return addr, err
}

// Mint721 mints quantity sequential tokens of an ERC721 or ERC721A contract
// to to and returns the first id.
func (p *Processor) Mint721(ctx context.Context, contract, to common.Address, quantity uint64) (*big.Int, error) {
	var first *big.Int
	err := p.run(ctx, request{operation: "mint721", caller: to}, func() error {
		nft, err := p.registry.ERC721(contract)
		if err != nil {
			return err
		}
		first, err = nft.Mint(to, quantity)
		return err
	})
	return first, err
}

// Mint1155 mints amount units of id to to.
func (p *Processor) Mint1155(ctx context.Context, contract, to common.Address, id, amount *big.Int) error {
	return p.run(ctx, request{operation: "mint1155", caller: to}, func() error {
		multi, err := p.registry.ERC1155(contract)
		if err != nil {
			return err
		}
		return multi.Mint(to, id, amount)
	})
}

// Faucet mints settlement tokens to to.
func (p *Processor) Faucet(ctx context.Context, to common.Address, amount *big.Int) error {
	return p.run(ctx, request{operation: "faucet", caller: to}, func() error {
		return p.settlement.Mint(to, amount)
	})
}

// Fund credits native currency to to.
func (p *Processor) Fund(ctx context.Context, to common.Address, amount *big.Int) error {
	return p.run(ctx, request{operation: "fund", caller: to}, func() error {
		return p.bank.Credit(to, amount)
	})
}

// ApproveCollection grants the marketplace operator rights over owner's
// tokens in contract.
func (p *Processor) ApproveCollection(ctx context.Context, owner, contract common.Address) error {
	return p.run(ctx, request{operation: "approve_collection", caller: owner}, func() error {
		kind, err := p.registry.Kind(contract)
		if err != nil {
			return err
		}
		switch kind {
		case collectibles.KindERC721, collectibles.KindERC721A:
			nft, err := p.registry.ERC721(contract)
			if err != nil {
				return err
			}
			return nft.SetApprovalForAll(owner, MarketplaceAddress, true)
		case collectibles.KindERC1155:
			multi, err := p.registry.ERC1155(contract)
			if err != nil {
				return err
			}
			return multi.SetApprovalForAll(owner, MarketplaceAddress, true)
		default:
			return fmt.Errorf("processor: %s is not an NFT collection", contract.Hex())
		}
	})
}

// ApproveSettlement sets the marketplace's settlement token allowance over
// owner's balance.
func (p *Processor) ApproveSettlement(ctx context.Context, owner common.Address, amount *big.Int) error {
	return p.run(ctx, request{operation: "approve_settlement", caller: owner}, func() error {
		return p.settlement.Approve(owner, MarketplaceAddress, amount)
	})
}

// NativeBalance returns the native currency balance of addr.
func (p *Processor) NativeBalance(addr common.Address) (*big.Int, error) {
	var bal *big.Int
	err := p.read(func() error {
		var err error
		bal, err = p.bank.Balance(addr)
		return err
	})
	return bal, err
}

// SettlementBalance returns the settlement token balance of addr.
func (p *Processor) SettlementBalance(addr common.Address) (*big.Int, error) {
	var bal *big.Int
	err := p.read(func() error {
		var err error
		bal, err = p.settlement.BalanceOf(addr)
		return err
	})
	return bal, err
}

// Holding returns how many units of id in contract account holds.
func (p *Processor) Holding(contract common.Address, id *big.Int, account common.Address) (*big.Int, error) {
	var held *big.Int
	err := p.read(func() error {
		kind, err := p.registry.Kind(contract)
		if err != nil {
			return err
		}
		switch kind {
		case collectibles.KindERC721, collectibles.KindERC721A:
			nft, err := p.registry.ERC721(contract)
			if err != nil {
				return err
			}
			owner, err := nft.OwnerOf(id)
			if err != nil {
				return err
			}
			held = big.NewInt(0)
			if owner == account {
				held.SetInt64(1)
			}
			return nil
		case collectibles.KindERC1155:
			multi, err := p.registry.ERC1155(contract)
			if err != nil {
				return err
			}
			held, err = multi.BalanceOf(account, id)
			return err
		default:
			return fmt.Errorf("processor: %s is not an NFT collection", contract.Hex())
		}
	})
	return held, err
}
