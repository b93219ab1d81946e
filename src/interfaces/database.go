package interfaces

import (
	"context"
	"time"

	"kline-relay/src/models"
)

// -----------------------------------------------------------------------------
// IDatabase defines the contract for the exchange symbol cache.
// -----------------------------------------------------------------------------

type IDatabase interface {

	// -----------------------------------------------------------------------------

	// Initialize opens the connection and creates missing tables.
	Initialize(ctx context.Context) error

	// -----------------------------------------------------------------------------

	// LoadSymbols returns the cached listing. An empty cache yields a zero FetchedAt.
	LoadSymbols(ctx context.Context) (models.MSymbolSnapshot, error)

	// -----------------------------------------------------------------------------

	// ReplaceSymbols swaps the cached listing atomically.
	ReplaceSymbols(ctx context.Context, symbols []models.MSymbolInfo, fetchedAt time.Time) error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
