package interfaces

import (
	"context"

	"kline-relay/src/models"
)

// -----------------------------------------------------------------------------
// IUpstream opens multiplexed kline streams at the market-data provider.
// -----------------------------------------------------------------------------

type IUpstream interface {

	// -----------------------------------------------------------------------------

	// OpenStream subscribes to the given symbols. ctx bounds the handshake only.
	OpenStream(ctx context.Context, symbols []string, interval string) (IUpstreamStream, error)

	// -----------------------------------------------------------------------------

	// Enabled reports whether the provider can open streams at all.
	Enabled() bool
}

// -----------------------------------------------------------------------------
// IUpstreamStream is one open provider subscription.
// -----------------------------------------------------------------------------

type IUpstreamStream interface {

	// -----------------------------------------------------------------------------

	// Events yields decoded updates. It is closed when the stream ends, either
	// after Terminate or because the provider dropped the connection.
	Events() <-chan models.MKlineEvent

	// -----------------------------------------------------------------------------

	// Terminate closes the stream and waits until Events is closed or ctx is done.
	// Calling it more than once is safe.
	Terminate(ctx context.Context) error
}
