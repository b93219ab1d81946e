package interfaces

import (
	"context"
	"encoding/json"

	"kline-relay/src/models"
)

// -----------------------------------------------------------------------------
// IMarketData covers the one-shot REST lookups of the provider.
// -----------------------------------------------------------------------------

type IMarketData interface {

	// -----------------------------------------------------------------------------

	// LatestKline returns the most recent kline for symbol in the provider's array form.
	LatestKline(ctx context.Context, symbol string, interval string) (json.RawMessage, error)

	// -----------------------------------------------------------------------------

	// ExchangeSymbols lists every symbol known to the exchange.
	ExchangeSymbols(ctx context.Context) ([]models.MSymbolInfo, error)
}

// -----------------------------------------------------------------------------
// IPairCatalog serves the trading pair picker.
// -----------------------------------------------------------------------------

type IPairCatalog interface {
	Pairs(ctx context.Context, query string) ([]models.MPair, error)
}
