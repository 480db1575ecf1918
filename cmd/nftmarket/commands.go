package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/big"

	"nftmarket/core"
	"nftmarket/native/collectibles"
	"nftmarket/native/escrow"
	"nftmarket/native/market"
)

type command func(ctx context.Context, proc *core.Processor, args []string, stdout, stderr io.Writer) int

var commands map[string]command

func init() {
	commands = map[string]command{
		"listing":       runListing,
		"count":         runCount,
		"fee-rate":      runFeeRate,
		"fee-balance":   runFeeBalance,
		"held":          runHeld,
		"events":        runEvents,
		"balance":       runBalance,
		"create":        runCreate,
		"modify":        runModify,
		"cancel":        runCancel,
		"buy":           runBuy,
		"offer":         runOffer,
		"cancel-offer":  runCancelOffer,
		"accept":        runAccept,
		"set-fees":      runSetFees,
		"withdraw-fees": runWithdrawFees,
		"deploy":        runDeploy,
		"mint721":       runMint721,
		"mint1155":      runMint1155,
		"faucet":        runFaucet,
		"fund":          runFund,
		"approve":       runApprove,
	}
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, usage())
	}
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string, stderr io.Writer) bool {
	if err := fs.Parse(args); err != nil {
		return false
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "Error: unexpected positional arguments")
		return false
	}
	return true
}

func writeJSON(w io.Writer, v interface{}) int {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return 1
	}
	return 0
}

type offerView struct {
	Index     uint64 `json:"index"`
	Sender    string `json:"sender"`
	Amount    string `json:"amount"`
	PlacedAt  uint64 `json:"placedAt"`
	ExpiresAt uint64 `json:"expiresAt"`
	Accepted  bool   `json:"accepted"`
	Live      bool   `json:"live"`
}

type listingView struct {
	ID        uint64      `json:"id"`
	Seller    string      `json:"seller"`
	Buyer     string      `json:"buyer"`
	Contract  string      `json:"contract"`
	TokenID   string      `json:"tokenId"`
	Standard  string      `json:"standard"`
	Quantity  string      `json:"quantity"`
	Price     string      `json:"price"`
	Closed    bool        `json:"closed"`
	CreatedAt uint64      `json:"createdAt"`
	Offers    []offerView `json:"offers"`
}

func newListingView(l *market.Listing) listingView {
	view := listingView{
		ID:        l.ID,
		Seller:    l.Seller.Hex(),
		Buyer:     l.Buyer.Hex(),
		Contract:  l.Contract.Hex(),
		TokenID:   l.TokenID.String(),
		Standard:  l.Standard.String(),
		Quantity:  l.Quantity.String(),
		Price:     formatAmount(l.Price),
		Closed:    l.Closed,
		CreatedAt: l.CreatedAt,
		Offers:    make([]offerView, 0, len(l.Offers)),
	}
	for i, offer := range l.Offers {
		view.Offers = append(view.Offers, offerView{
			Index:     uint64(i),
			Sender:    offer.Sender.Hex(),
			Amount:    formatAmount(offer.Amount),
			PlacedAt:  offer.PlacedAt,
			ExpiresAt: offer.ExpiresAt,
			Accepted:  offer.Accepted,
			Live:      offer.Live(),
		})
	}
	return view
}

func runListing(_ context.Context, proc *core.Processor, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("listing", stderr)
	id := fs.Uint64("id", 0, "listing id")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if *id == 0 {
		return printError(stderr, "--id is required")
	}
	listing, err := proc.GetListing(*id)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return writeJSON(stdout, newListingView(listing))
}

func runCount(_ context.Context, proc *core.Processor, args []string, stdout, stderr io.Writer) int {
	if !parseFlags(newFlagSet("count", stderr), args, stderr) {
		return 1
	}
	count, err := proc.ListingCount()
	if err != nil {
		return printError(stderr, err.Error())
	}
	return writeJSON(stdout, map[string]uint64{"count": count})
}

func runFeeRate(_ context.Context, proc *core.Processor, args []string, stdout, stderr io.Writer) int {
	if !parseFlags(newFlagSet("fee-rate", stderr), args, stderr) {
		return 1
	}
	rate, err := proc.MarketFeeRate()
	if err != nil {
		return printError(stderr, err.Error())
	}
	return writeJSON(stdout, map[string]interface{}{"bps": rate, "operator": proc.Operator().Hex()})
}

func runFeeBalance(_ context.Context, proc *core.Processor, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("fee-balance", stderr)
	currencyRaw := fs.String("currency", string(escrow.CurrencyNative), "NATIVE or TOKEN")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	currency, err := escrow.NormalizeCurrency(*currencyRaw)
	if err != nil {
		return printError(stderr, err.Error())
	}
	balance, err := proc.FeeBalance(currency)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return writeJSON(stdout, map[string]string{"currency": string(currency), "amount": formatAmount(balance)})
}

func runHeld(_ context.Context, proc *core.Processor, args []string, stdout, stderr io.Writer) int {
	if !parseFlags(newFlagSet("held", stderr), args, stderr) {
		return 1
	}
	held, err := proc.HeldTotal()
	if err != nil {
		return printError(stderr, err.Error())
	}
	return writeJSON(stdout, map[string]string{"held": formatAmount(held), "token": proc.SettlementToken().Hex()})
}

func runEvents(_ context.Context, proc *core.Processor, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("events", stderr)
	from := fs.Uint64("from", 1, "first sequence number")
	limit := fs.Uint64("limit", 50, "maximum number of events, 0 for all")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	logged, err := proc.Events(*from, *limit)
	if err != nil {
		return printError(stderr, err.Error())
	}
	type eventView struct {
		Sequence   uint64            `json:"sequence"`
		Type       string            `json:"type"`
		Attributes map[string]string `json:"attributes"`
	}
	out := make([]eventView, 0, len(logged))
	for _, evt := range logged {
		out = append(out, eventView{Sequence: evt.Sequence, Type: evt.Event.Type, Attributes: evt.Event.Attributes})
	}
	return writeJSON(stdout, out)
}

func runBalance(_ context.Context, proc *core.Processor, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("balance", stderr)
	accountRaw := fs.String("account", "", "account address")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	account, err := parseAddress("account", *accountRaw)
	if err != nil {
		return printError(stderr, err.Error())
	}
	native, err := proc.NativeBalance(account)
	if err != nil {
		return printError(stderr, err.Error())
	}
	tokens, err := proc.SettlementBalance(account)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return writeJSON(stdout, map[string]string{
		"account":    account.Hex(),
		"native":     formatAmount(native),
		"settlement": formatAmount(tokens),
	})
}

func runCreate(ctx context.Context, proc *core.Processor, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("create", stderr)
	fromRaw := fs.String("from", "", "seller address")
	contractRaw := fs.String("contract", "", "collection address")
	tokenRaw := fs.String("token-id", "", "token id")
	priceRaw := fs.String("price", "", "fixed price in native currency")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	from, err := parseAddress("from", *fromRaw)
	if err != nil {
		return printError(stderr, err.Error())
	}
	contract, err := parseAddress("contract", *contractRaw)
	if err != nil {
		return printError(stderr, err.Error())
	}
	tokenID, err := parseTokenID(*tokenRaw)
	if err != nil {
		return printError(stderr, err.Error())
	}
	price, err := parseAmount(*priceRaw)
	if err != nil {
		return printError(stderr, err.Error())
	}
	listing, err := proc.CreateSale(ctx, from, contract, tokenID, price)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return writeJSON(stdout, newListingView(listing))
}

func runModify(ctx context.Context, proc *core.Processor, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("modify", stderr)
	fromRaw := fs.String("from", "", "seller address")
	id := fs.Uint64("id", 0, "listing id")
	priceRaw := fs.String("price", "", "new price in native currency")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	from, err := parseAddress("from", *fromRaw)
	if err != nil {
		return printError(stderr, err.Error())
	}
	price, err := parseAmount(*priceRaw)
	if err != nil {
		return printError(stderr, err.Error())
	}
	if err := proc.ModifySale(ctx, from, *id, price); err != nil {
		return printError(stderr, err.Error())
	}
	return writeJSON(stdout, map[string]interface{}{"id": *id, "price": formatAmount(price)})
}

func runCancel(ctx context.Context, proc *core.Processor, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("cancel", stderr)
	fromRaw := fs.String("from", "", "seller address")
	id := fs.Uint64("id", 0, "listing id")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	from, err := parseAddress("from", *fromRaw)
	if err != nil {
		return printError(stderr, err.Error())
	}
	if err := proc.CancelSale(ctx, from, *id); err != nil {
		return printError(stderr, err.Error())
	}
	return writeJSON(stdout, map[string]interface{}{"id": *id, "closed": true})
}

func runBuy(ctx context.Context, proc *core.Processor, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("buy", stderr)
	fromRaw := fs.String("from", "", "buyer address")
	id := fs.Uint64("id", 0, "listing id")
	valueRaw := fs.String("value", "", "native amount attached, must equal the price")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	from, err := parseAddress("from", *fromRaw)
	if err != nil {
		return printError(stderr, err.Error())
	}
	value, err := parseAmount(*valueRaw)
	if err != nil {
		return printError(stderr, err.Error())
	}
	if err := proc.BuySale(ctx, from, *id, value); err != nil {
		return printError(stderr, err.Error())
	}
	return writeJSON(stdout, map[string]interface{}{"id": *id, "buyer": from.Hex()})
}

func runOffer(ctx context.Context, proc *core.Processor, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("offer", stderr)
	fromRaw := fs.String("from", "", "bidder address")
	id := fs.Uint64("id", 0, "listing id")
	amountRaw := fs.String("amount", "", "bid in settlement tokens")
	duration := fs.Uint64("duration", 7*24*60*60, "offer lifetime in seconds")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	from, err := parseAddress("from", *fromRaw)
	if err != nil {
		return printError(stderr, err.Error())
	}
	amount, err := parseAmount(*amountRaw)
	if err != nil {
		return printError(stderr, err.Error())
	}
	index, err := proc.MakeOffer(ctx, from, *id, amount, *duration)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return writeJSON(stdout, map[string]interface{}{"id": *id, "index": index, "amount": formatAmount(amount)})
}

func runCancelOffer(ctx context.Context, proc *core.Processor, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("cancel-offer", stderr)
	fromRaw := fs.String("from", "", "bidder address")
	id := fs.Uint64("id", 0, "listing id")
	index := fs.Uint64("index", 0, "offer index")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	from, err := parseAddress("from", *fromRaw)
	if err != nil {
		return printError(stderr, err.Error())
	}
	if err := proc.CancelOffer(ctx, from, *id, *index); err != nil {
		return printError(stderr, err.Error())
	}
	return writeJSON(stdout, map[string]interface{}{"id": *id, "index": *index, "refunded": true})
}

func runAccept(ctx context.Context, proc *core.Processor, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("accept", stderr)
	fromRaw := fs.String("from", "", "seller address")
	id := fs.Uint64("id", 0, "listing id")
	index := fs.Uint64("index", 0, "offer index")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	from, err := parseAddress("from", *fromRaw)
	if err != nil {
		return printError(stderr, err.Error())
	}
	if err := proc.AcceptOffer(ctx, from, *id, *index); err != nil {
		return printError(stderr, err.Error())
	}
	return writeJSON(stdout, map[string]interface{}{"id": *id, "index": *index, "accepted": true})
}

func runSetFees(ctx context.Context, proc *core.Processor, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("set-fees", stderr)
	fromRaw := fs.String("from", "", "operator address")
	bps := fs.Uint("bps", 0, "fee in basis points")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	from, err := parseAddress("from", *fromRaw)
	if err != nil {
		return printError(stderr, err.Error())
	}
	if *bps > 10_000 {
		return printError(stderr, "--bps must be <= 10000")
	}
	if err := proc.SetFees(ctx, from, uint32(*bps)); err != nil {
		return printError(stderr, err.Error())
	}
	return writeJSON(stdout, map[string]uint{"bps": *bps})
}

func runWithdrawFees(ctx context.Context, proc *core.Processor, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("withdraw-fees", stderr)
	fromRaw := fs.String("from", "", "operator address")
	currencyRaw := fs.String("currency", string(escrow.CurrencyNative), "NATIVE or TOKEN")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	from, err := parseAddress("from", *fromRaw)
	if err != nil {
		return printError(stderr, err.Error())
	}
	currency, err := escrow.NormalizeCurrency(*currencyRaw)
	if err != nil {
		return printError(stderr, err.Error())
	}
	amount, err := proc.WithdrawFees(ctx, from, currency)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return writeJSON(stdout, map[string]string{"currency": string(currency), "amount": formatAmount(amount)})
}

func runDeploy(ctx context.Context, proc *core.Processor, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("deploy", stderr)
	kindRaw := fs.String("kind", "ERC721", "ERC721, ERC721A or ERC1155")
	name := fs.String("name", "", "collection name")
	symbol := fs.String("symbol", "", "collection symbol")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	kind, err := collectibles.ParseKind(*kindRaw)
	if err != nil {
		return printError(stderr, err.Error())
	}
	if kind == collectibles.KindERC20 {
		return printError(stderr, "--kind must name an NFT standard")
	}
	addr, err := proc.DeployCollection(ctx, kind, *name, *symbol)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return writeJSON(stdout, map[string]string{"contract": addr.Hex(), "kind": kind.String()})
}

func runMint721(ctx context.Context, proc *core.Processor, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("mint721", stderr)
	contractRaw := fs.String("contract", "", "collection address")
	toRaw := fs.String("to", "", "recipient address")
	quantity := fs.Uint64("quantity", 1, "number of tokens")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if *quantity == 0 {
		return printError(stderr, "--quantity must be positive")
	}
	contract, err := parseAddress("contract", *contractRaw)
	if err != nil {
		return printError(stderr, err.Error())
	}
	to, err := parseAddress("to", *toRaw)
	if err != nil {
		return printError(stderr, err.Error())
	}
	first, err := proc.Mint721(ctx, contract, to, *quantity)
	if err != nil {
		return printError(stderr, err.Error())
	}
	last := new(big.Int).Add(first, new(big.Int).SetUint64(*quantity-1))
	return writeJSON(stdout, map[string]string{"firstId": first.String(), "lastId": last.String()})
}

func runMint1155(ctx context.Context, proc *core.Processor, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("mint1155", stderr)
	contractRaw := fs.String("contract", "", "collection address")
	toRaw := fs.String("to", "", "recipient address")
	tokenRaw := fs.String("token-id", "", "token id")
	amount := fs.Uint64("amount", 1, "units to mint")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	contract, err := parseAddress("contract", *contractRaw)
	if err != nil {
		return printError(stderr, err.Error())
	}
	to, err := parseAddress("to", *toRaw)
	if err != nil {
		return printError(stderr, err.Error())
	}
	tokenID, err := parseTokenID(*tokenRaw)
	if err != nil {
		return printError(stderr, err.Error())
	}
	if err := proc.Mint1155(ctx, contract, to, tokenID, new(big.Int).SetUint64(*amount)); err != nil {
		return printError(stderr, err.Error())
	}
	return writeJSON(stdout, map[string]interface{}{"tokenId": tokenID.String(), "amount": *amount})
}

func runFaucet(ctx context.Context, proc *core.Processor, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("faucet", stderr)
	toRaw := fs.String("to", "", "recipient address")
	amountRaw := fs.String("amount", "", "settlement tokens to mint")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	to, err := parseAddress("to", *toRaw)
	if err != nil {
		return printError(stderr, err.Error())
	}
	amount, err := parseAmount(*amountRaw)
	if err != nil {
		return printError(stderr, err.Error())
	}
	if err := proc.Faucet(ctx, to, amount); err != nil {
		return printError(stderr, err.Error())
	}
	return writeJSON(stdout, map[string]string{"to": to.Hex(), "amount": formatAmount(amount)})
}

func runFund(ctx context.Context, proc *core.Processor, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("fund", stderr)
	toRaw := fs.String("to", "", "recipient address")
	amountRaw := fs.String("amount", "", "native amount to credit")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	to, err := parseAddress("to", *toRaw)
	if err != nil {
		return printError(stderr, err.Error())
	}
	amount, err := parseAmount(*amountRaw)
	if err != nil {
		return printError(stderr, err.Error())
	}
	if err := proc.Fund(ctx, to, amount); err != nil {
		return printError(stderr, err.Error())
	}
	return writeJSON(stdout, map[string]string{"to": to.Hex(), "amount": formatAmount(amount)})
}

func runApprove(ctx context.Context, proc *core.Processor, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("approve", stderr)
	fromRaw := fs.String("from", "", "owner address")
	contractRaw := fs.String("contract", "", "collection to approve for listing")
	amountRaw := fs.String("amount", "", "settlement token allowance for offers")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	from, err := parseAddress("from", *fromRaw)
	if err != nil {
		return printError(stderr, err.Error())
	}
	switch {
	case *contractRaw != "" && *amountRaw != "":
		return printError(stderr, "use either --contract or --amount")
	case *contractRaw != "":
		contract, err := parseAddress("contract", *contractRaw)
		if err != nil {
			return printError(stderr, err.Error())
		}
		if err := proc.ApproveCollection(ctx, from, contract); err != nil {
			return printError(stderr, err.Error())
		}
		return writeJSON(stdout, map[string]string{"owner": from.Hex(), "contract": contract.Hex(), "operator": core.MarketplaceAddress.Hex()})
	case *amountRaw != "":
		amount, err := parseAmount(*amountRaw)
		if err != nil {
			return printError(stderr, err.Error())
		}
		if err := proc.ApproveSettlement(ctx, from, amount); err != nil {
			return printError(stderr, err.Error())
		}
		return writeJSON(stdout, map[string]string{"owner": from.Hex(), "allowance": formatAmount(amount)})
	default:
		return printError(stderr, "--contract or --amount is required")
	}
}
