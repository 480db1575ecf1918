package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

const (
	testOperator = "0x00000000000000000000000000000000000000f1"
	testSeller   = "0x00000000000000000000000000000000000000a1"
	testBuyer    = "0x00000000000000000000000000000000000000b1"
)

type cli struct {
	t      *testing.T
	config string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "nftmarket.toml")
	body := fmt.Sprintf("DataDir = %q\nOperator = %q\nFeeBps = 200\nLogLevel = \"error\"\n",
		filepath.Join(dir, "data"), testOperator)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return &cli{t: t, config: path}
}

func (c *cli) exec(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(append([]string{"--config", c.config}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func (c *cli) ok(out interface{}, args ...string) {
	c.t.Helper()
	code, stdout, stderr := c.exec(args...)
	require.Equalf(c.t, 0, code, "%v: %s", args, stderr)
	if out != nil {
		require.NoError(c.t, json.Unmarshal([]byte(stdout), out))
	}
}

func TestFixedPriceSaleThroughCLI(t *testing.T) {
	c := newCLI(t)

	var deployed map[string]string
	c.ok(&deployed, "deploy", "--kind", "erc721", "--name", "Art", "--symbol", "ART")
	contract := deployed["contract"]
	require.True(t, common.IsHexAddress(contract))

	var minted map[string]string
	c.ok(&minted, "mint721", "--contract", contract, "--to", testSeller)
	tokenID := minted["firstId"]
	require.Equal(t, tokenID, minted["lastId"])

	c.ok(nil, "fund", "--to", testBuyer, "--amount", "5")
	c.ok(nil, "approve", "--from", testSeller, "--contract", contract)

	var created listingView
	c.ok(&created, "create", "--from", testSeller, "--contract", contract, "--token-id", tokenID, "--price", "1.5")
	require.Equal(t, uint64(1), created.ID)
	require.Equal(t, "1.5", created.Price)
	require.False(t, created.Closed)

	code, _, stderr := c.exec("buy", "--from", testBuyer, "--id", "1", "--value", "1")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "Error:")

	c.ok(nil, "buy", "--from", testBuyer, "--id", "1", "--value", "1.5")

	var listing listingView
	c.ok(&listing, "listing", "--id", "1")
	require.True(t, listing.Closed)
	require.Equal(t, common.HexToAddress(testBuyer), common.HexToAddress(listing.Buyer))

	var balances map[string]string
	c.ok(&balances, "balance", "--account", testSeller)
	require.Equal(t, "1.47", balances["native"])
	c.ok(&balances, "balance", "--account", testBuyer)
	require.Equal(t, "3.5", balances["native"])

	var feeBalance map[string]string
	c.ok(&feeBalance, "fee-balance", "--currency", "native")
	require.Equal(t, "0.03", feeBalance["amount"])

	code, _, _ = c.exec("withdraw-fees", "--from", testSeller)
	require.Equal(t, 1, code)

	var withdrawn map[string]string
	c.ok(&withdrawn, "withdraw-fees", "--from", testOperator)
	require.Equal(t, "0.03", withdrawn["amount"])

	var count map[string]uint64
	c.ok(&count, "count")
	require.Equal(t, uint64(1), count["count"])
}

func TestOfferFlowThroughCLI(t *testing.T) {
	c := newCLI(t)

	var deployed map[string]string
	c.ok(&deployed, "deploy", "--kind", "ERC1155", "--name", "Items", "--symbol", "ITM")
	contract := deployed["contract"]
	c.ok(nil, "mint1155", "--contract", contract, "--to", testSeller, "--token-id", "7", "--amount", "3")
	c.ok(nil, "approve", "--from", testSeller, "--contract", contract)
	c.ok(nil, "create", "--from", testSeller, "--contract", contract, "--token-id", "7", "--price", "10")

	c.ok(nil, "faucet", "--to", testBuyer, "--amount", "4")
	c.ok(nil, "approve", "--from", testBuyer, "--amount", "4")

	var offer map[string]interface{}
	c.ok(&offer, "offer", "--from", testBuyer, "--id", "1", "--amount", "2")
	require.Equal(t, float64(0), offer["index"])

	var held map[string]string
	c.ok(&held, "held")
	require.Equal(t, "2", held["held"])

	code, _, stderr := c.exec("cancel-offer", "--from", testBuyer, "--id", "1", "--index", "0")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "Error:")

	c.ok(nil, "accept", "--from", testSeller, "--id", "1", "--index", "0")

	var listing listingView
	c.ok(&listing, "listing", "--id", "1")
	require.True(t, listing.Closed)
	require.Len(t, listing.Offers, 1)
	require.True(t, listing.Offers[0].Accepted)
	require.Equal(t, "ERC1155", listing.Standard)

	var balances map[string]string
	c.ok(&balances, "balance", "--account", testSeller)
	require.Equal(t, "1.96", balances["settlement"])

	var events []struct {
		Sequence uint64 `json:"sequence"`
		Type     string `json:"type"`
	}
	c.ok(&events, "events", "--limit", "0")
	require.NotEmpty(t, events)
	require.Equal(t, uint64(1), events[0].Sequence)
}

func TestUsageErrors(t *testing.T) {
	c := newCLI(t)

	code, _, stderr := c.exec()
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "Usage:")

	code, _, stderr = c.exec("explode")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "Unknown command: explode")

	code, _, stderr = c.exec("create", "--from", "seller")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "--from must be a hex address")

	code, _, stderr = c.exec("approve", "--from", testSeller)
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "--contract or --amount is required")

	code, _, stderr = c.exec("deploy", "--kind", "ERC20")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "NFT standard")
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		raw  string
		want string
		err  bool
	}{
		{raw: "1", want: "1000000000000000000"},
		{raw: "1.5", want: "1500000000000000000"},
		{raw: "0.000000000000000001", want: "1"},
		{raw: "0", want: "0"},
		{raw: "0.0000000000000000001", err: true},
		{raw: "-1", err: true},
		{raw: "abc", err: true},
		{raw: " ", err: true},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := parseAmount(tc.raw)
			if tc.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got.String())
		})
	}
}

func TestFormatAmount(t *testing.T) {
	v, ok := new(big.Int).SetString("1470000000000000000", 10)
	require.True(t, ok)
	require.Equal(t, "1.47", formatAmount(v))
	require.Equal(t, "0", formatAmount(nil))
	require.Equal(t, "0.000000000000000001", formatAmount(big.NewInt(1)))
}
