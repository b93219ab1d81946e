package models

// MRelayStatus is a point-in-time view of the relay.
type MRelayStatus struct {
	State           string   `json:"state"`
	UpstreamEnabled bool     `json:"upstream_enabled"`
	Interval        string   `json:"interval"`
	Sessions        int      `json:"sessions"`
	ActiveSymbols   []string `json:"active_symbols"`
	StreamSymbols   []string `json:"stream_symbols"`
	Restarts        uint64   `json:"restarts"`
	OpenFailures    uint64   `json:"open_failures"`
	StreamDrops     uint64   `json:"stream_drops"`
	LastError       string   `json:"last_error,omitempty"`
	StateSince      int64    `json:"state_since"`
}

type MSessionInfo struct {
	ID      string   `json:"id"`
	Symbols []string `json:"symbols"`
}
