package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" api-key = secret ,bad, =empty,tenant=market")
	require.Equal(t, map[string]string{"api-key": "secret", "tenant": "market"}, headers)
	require.Empty(t, ParseHeaders(""))
}

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), Config{})
	require.Error(t, err)
}

func TestInitWithoutExporters(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "nftmarket", Operator: "0x01"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestResourceAttributes(t *testing.T) {
	attrs := resourceAttributes(Config{ServiceName: "nftmarket", Environment: "devnet", SettlementToken: "0xabc"})
	keys := make([]string, 0, len(attrs))
	for _, kv := range attrs {
		keys = append(keys, string(kv.Key))
	}
	require.ElementsMatch(t, []string{"service.name", "deployment.environment", "nftmarket.settlement_token"}, keys)
}

func TestInstrumentsOnNoopProvider(t *testing.T) {
	inst, err := NewMarketInstruments()
	require.NoError(t, err)
	inst.Record(context.Background(), "buy_sale", "success", 0.01)
	var nilInst *MarketInstruments
	nilInst.Record(context.Background(), "buy_sale", "success", 0.01)
}
