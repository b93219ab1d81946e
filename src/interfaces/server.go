package interfaces

import "context"

// -----------------------------------------------------------------------------
// IServer is a long-running listener owned by main.
// -----------------------------------------------------------------------------

type IServer interface {

	// -----------------------------------------------------------------------------
	// Start blocks until the server stops
	Start() error

	// -----------------------------------------------------------------------------
	// Stop the server gracefully
	Stop(ctx context.Context) error
}
