package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"nftmarket/config"
	"nftmarket/core"
	nativecommon "nftmarket/native/common"
	"nftmarket/native/market"
	"nftmarket/observability/logging"
	telemetry "nftmarket/observability/otel"
	"nftmarket/storage"
)

const defaultConfigPath = "./nftmarket.toml"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("nftmarket", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { fmt.Fprintln(stderr, usage()) }
	configPath := global.String("config", defaultConfigPath, "path to the TOML or YAML configuration file")
	if err := global.Parse(args); err != nil {
		return 1
	}
	rest := global.Args()
	if len(rest) == 0 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		fmt.Fprintf(stderr, "Unknown command: %s\n", rest[0])
		fmt.Fprintln(stderr, usage())
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return printError(stderr, fmt.Sprintf("load config: %v", err))
	}
	logger := logging.SetupWithOptions("nftmarket", cfg.Environment, logging.Options{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  50,
		MaxBackups: 5,
		MaxAgeDays: 14,
		Output:     stderr,
	})

	ctx := context.Background()
	if cfg.Telemetry.Enabled() {
		shutdown, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName:     "nftmarket",
			Environment:     cfg.Environment,
			Endpoint:        cfg.Telemetry.Endpoint,
			Insecure:        cfg.Telemetry.Insecure,
			Headers:         telemetry.ParseHeaders(cfg.Telemetry.Headers),
			Metrics:         cfg.Telemetry.Metrics,
			Traces:          cfg.Telemetry.Traces,
			Operator:        cfg.Operator,
			SettlementToken: cfg.SettlementToken,
		})
		if err != nil {
			return printError(stderr, fmt.Sprintf("telemetry: %v", err))
		}
		logger.Debug("telemetry enabled",
			slog.String("endpoint", cfg.Telemetry.Endpoint),
			logging.MaskHeaders("otel_headers", cfg.Telemetry.Headers))
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(flushCtx)
		}()
	}

	proc, err := openProcessor(cfg, logger)
	if err != nil {
		return printError(stderr, err.Error())
	}
	defer proc.Close()

	return cmd(ctx, proc, rest[1:], stdout, stderr)
}

func openProcessor(cfg *config.Config, logger *slog.Logger) (*core.Processor, error) {
	params := cfg.Market()
	policy, err := market.ParseBidPolicy(params.BidPolicy)
	if err != nil {
		return nil, err
	}
	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open data dir %s: %w", cfg.DataDir, err)
	}
	logger.Debug("data dir opened", logging.MaskField("datadir", cfg.DataDir))
	proc, err := core.NewProcessor(db, core.Options{
		Operator:        params.Operator,
		SettlementToken: params.SettlementToken,
		FeeBps:          params.FeeBps,
		Engine: market.Config{
			CancelLock:         params.CancelLock,
			Policy:             policy,
			EnforceOfferExpiry: params.EnforceOfferExpiry,
		},
		Pauses: nativecommon.Pauses{nativecommon.ModuleMarket: params.Paused},
		Logger: logger,
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return proc, nil
}

func printError(w io.Writer, msg string) int {
	fmt.Fprintf(w, "Error: %s\n", msg)
	return 1
}

func usage() string {
	return strings.TrimSpace(`Usage:
  nftmarket [--config path] <command> [flags]

Queries:
  listing       Show a listing and its offers (--id)
  count         Number of listings ever created
  fee-rate      Current marketplace fee in basis points
  fee-balance   Withdrawable fees (--currency NATIVE|TOKEN)
  held          Settlement tokens escrowed for live offers
  events        Committed events (--from, --limit)
  balance       Native and settlement balances (--account)

Market:
  create        List an NFT (--from --contract --token-id --price)
  modify        Change a listing price (--from --id --price)
  cancel        Withdraw a listing (--from --id)
  buy           Buy at the fixed price (--from --id --value)
  offer         Bid in the settlement token (--from --id --amount --duration)
  cancel-offer  Refund a bid after the cancel lock (--from --id --index)
  accept        Accept a bid (--from --id --index)
  set-fees      Set the fee rate (--from --bps)
  withdraw-fees Sweep accrued fees (--from --currency)

Devnet:
  deploy        Deploy a collection (--kind ERC721|ERC721A|ERC1155 --name --symbol)
  mint721       Mint unique tokens (--contract --to --quantity)
  mint1155      Mint quantity tokens (--contract --to --token-id --amount)
  faucet        Mint settlement tokens (--to --amount)
  fund          Credit native currency (--to --amount)
  approve       Approve the marketplace (--from, --contract or --amount)

Amounts are decimal values with 18 decimals (1.5 = 1500000000000000000).
`)
}
