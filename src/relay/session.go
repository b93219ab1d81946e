package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"kline-relay/src/models"
)

var (
	// ErrSessionClosed is returned by Session.Send once the connection is gone.
	ErrSessionClosed = errors.New("session closed")
	// ErrSlowSession is returned by Session.Send when the outbound queue is full.
	ErrSlowSession = errors.New("session send queue full")
	// ErrUnknownSession is returned for a session that is not registered.
	ErrUnknownSession = errors.New("session not registered")
	// ErrUnionLimit is returned when a change would grow the upstream union past its cap.
	ErrUnionLimit = errors.New("upstream symbol limit reached")
)

// Session is one downstream connection as seen by the relay.
// Send must not block and must be safe for concurrent use.
type Session interface {
	ID() string
	Send(payload []byte) error
}

// -----------------------------------------------------------------------------

// NormalizeSymbol trims and uppercases a symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// NormalizeSymbols returns the sorted, deduplicated, uppercased symbols
// with empty entries removed. The result is never nil.
func NormalizeSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		n := NormalizeSymbol(s)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// -----------------------------------------------------------------------------

// ParseCommand decodes a client message.
func ParseCommand(raw []byte) (models.MSubscribeCommand, error) {
	var cmd models.MSubscribeCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return cmd, fmt.Errorf("malformed message: %w", err)
	}
	switch cmd.Action {
	case models.ActionSubscribe, models.ActionAdd, models.ActionUnsubscribe:
	default:
		return cmd, fmt.Errorf("unknown action %q", cmd.Action)
	}
	if cmd.Symbols == nil {
		return cmd, fmt.Errorf("action %q requires a symbols list", cmd.Action)
	}
	return cmd, nil
}

// -----------------------------------------------------------------------------

// Resolve turns a command into the session's next desired set.
// add and unsubscribe are deltas on current; subscribe replaces it.
func Resolve(cmd models.MSubscribeCommand, current []string) []string {
	switch cmd.Action {
	case models.ActionAdd:
		return NormalizeSymbols(append(append([]string{}, current...), cmd.Symbols...))
	case models.ActionUnsubscribe:
		drop := make(map[string]struct{}, len(cmd.Symbols))
		for _, s := range NormalizeSymbols(cmd.Symbols) {
			drop[s] = struct{}{}
		}
		next := make([]string, 0, len(current))
		for _, s := range current {
			if _, ok := drop[s]; !ok {
				next = append(next, s)
			}
		}
		return NormalizeSymbols(next)
	default:
		return NormalizeSymbols(cmd.Symbols)
	}
}
