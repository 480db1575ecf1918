package token

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	nerrors "nftmarket/core/errors"
	"nftmarket/core/state"
	"nftmarket/native/collectibles"
	"nftmarket/storage"
)

var (
	market = common.HexToAddress("0x00000000000000000000000000000000000000ee")
	seller = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	other  = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

type fixture struct {
	reg     *collectibles.Registry
	adapter *Adapter
	nft     *collectibles.ERC721
	multi   *collectibles.ERC1155
	erc20   common.Address
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := collectibles.NewRegistry(state.NewManager(storage.NewMemDB()))
	adapter := NewAdapter(FromRegistry(reg), market)
	reg.RegisterReceiver(market, adapter)

	addr721, _ := reg.Deploy(collectibles.KindERC721, "721test", "721")
	addr1155, _ := reg.Deploy(collectibles.KindERC1155, "1155test", "1155")
	addr20, _ := reg.Deploy(collectibles.KindERC20, "Settlement", "STL")
	nft, _ := reg.ERC721(addr721)
	multi, _ := reg.ERC1155(addr1155)
	if _, err := nft.Mint(seller, 3); err != nil {
		t.Fatalf("mint 721: %v", err)
	}
	if err := multi.Mint(seller, big.NewInt(1), big.NewInt(20)); err != nil {
		t.Fatalf("mint 1155: %v", err)
	}
	return &fixture{reg: reg, adapter: adapter, nft: nft, multi: multi, erc20: addr20}
}

func TestResolve(t *testing.T) {
	f := newFixture(t)
	std, err := f.adapter.Resolve(f.nft.Address())
	if err != nil || std != StandardERC721 {
		t.Fatalf("expected ERC721, got %v err=%v", std, err)
	}
	std, err = f.adapter.Resolve(f.multi.Address())
	if err != nil || std != StandardERC1155 {
		t.Fatalf("expected ERC1155, got %v err=%v", std, err)
	}
	if _, err := f.adapter.Resolve(f.erc20); !errors.Is(err, nerrors.ErrUnsupportedStandard) {
		t.Fatalf("expected unsupported standard for ERC20, got %v", err)
	}
	if _, err := f.adapter.Resolve(common.HexToAddress("0x1234")); !errors.Is(err, nerrors.ErrUnsupportedStandard) {
		t.Fatalf("expected unsupported standard for unknown contract, got %v", err)
	}
}

func TestIsOwner(t *testing.T) {
	f := newFixture(t)
	id := big.NewInt(1)
	cases := []struct {
		name     string
		contract common.Address
		account  common.Address
		std      Standard
		want     bool
	}{
		{"721 owner", f.nft.Address(), seller, StandardERC721, true},
		{"721 stranger", f.nft.Address(), other, StandardERC721, false},
		{"1155 holder", f.multi.Address(), seller, StandardERC1155, true},
		{"1155 empty balance", f.multi.Address(), other, StandardERC1155, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := f.adapter.IsOwner(tc.contract, id, tc.account, tc.std)
			if err != nil {
				t.Fatalf("is owner: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
	if ok, _ := f.adapter.IsOwner(f.nft.Address(), big.NewInt(404), seller, StandardERC721); ok {
		t.Fatalf("missing token must not be owned")
	}
}

func TestCustodyTransferRequiresApproval(t *testing.T) {
	f := newFixture(t)
	id := big.NewInt(1)
	err := f.adapter.CustodyTransfer(f.nft.Address(), id, seller, market, StandardERC721, nil)
	if !errors.Is(err, nerrors.ErrTransferRejected) || !errors.Is(err, collectibles.ErrERC721NotApproved) {
		t.Fatalf("expected transfer rejected with token reason, got %v", err)
	}
	if err := f.nft.SetApprovalForAll(seller, market, true); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := f.adapter.CustodyTransfer(f.nft.Address(), id, seller, market, StandardERC721, nil); err != nil {
		t.Fatalf("custody transfer: %v", err)
	}
	if owner, _ := f.nft.OwnerOf(id); owner != market {
		t.Fatalf("expected marketplace custody, got %s", owner.Hex())
	}
	if err := f.adapter.CustodyTransfer(f.nft.Address(), id, market, other, StandardERC721, nil); err != nil {
		t.Fatalf("release: %v", err)
	}
	if owner, _ := f.nft.OwnerOf(id); owner != other {
		t.Fatalf("expected release to %s, got %s", other.Hex(), owner.Hex())
	}
}

func TestCustodyTransferQuantity(t *testing.T) {
	f := newFixture(t)
	id := big.NewInt(1)
	if err := f.multi.SetApprovalForAll(seller, market, true); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := f.adapter.CustodyTransfer(f.multi.Address(), id, seller, market, StandardERC1155, big.NewInt(1)); err != nil {
		t.Fatalf("custody transfer: %v", err)
	}
	held, _ := f.multi.BalanceOf(market, id)
	left, _ := f.multi.BalanceOf(seller, id)
	if held.Int64() != 1 || left.Int64() != 19 {
		t.Fatalf("unexpected balances market=%s seller=%s", held, left)
	}
}

func TestDirectTransferRejected(t *testing.T) {
	f := newFixture(t)
	err := f.nft.SafeTransferFrom(seller, seller, market, big.NewInt(2))
	if !errors.Is(err, nerrors.ErrDirectTransferNotAllowed) {
		t.Fatalf("expected direct transfer rejection, got %v", err)
	}
	if owner, _ := f.nft.OwnerOf(big.NewInt(2)); owner != seller {
		t.Fatalf("rejected transfer changed ownership")
	}
	err = f.multi.SafeTransferFrom(seller, seller, market, big.NewInt(1), big.NewInt(1))
	if !errors.Is(err, nerrors.ErrDirectTransferNotAllowed) {
		t.Fatalf("expected direct transfer rejection, got %v", err)
	}
}

func TestParseStandard(t *testing.T) {
	for raw, want := range map[string]Standard{"erc721": StandardERC721, "ERC721A": StandardERC721, " ERC1155 ": StandardERC1155} {
		got, err := ParseStandard(raw)
		if err != nil || got != want {
			t.Fatalf("parse %q: got %v err=%v", raw, got, err)
		}
	}
	if _, err := ParseStandard("ERC20"); err == nil {
		t.Fatalf("expected error for ERC20")
	}
	if StandardUnknown.Valid() {
		t.Fatalf("unknown standard must be invalid")
	}
}
