package models

import "time"

// MSymbolInfo is one entry of the exchange symbol listing.
type MSymbolInfo struct {
	Symbol     string `json:"symbol"`
	Status     string `json:"status"`
	BaseAsset  string `json:"base_asset"`
	QuoteAsset string `json:"quote_asset"`
	TickSize   string `json:"tick_size,omitempty"`
}

// MSymbolSnapshot is a cached symbol listing.
type MSymbolSnapshot struct {
	Symbols   []MSymbolInfo
	FetchedAt time.Time
}

type MPairAvatar struct {
	Src string `json:"src"`
	Alt string `json:"alt"`
}

// MPair is the select-box entry returned by /api/pairs.
type MPair struct {
	Label    string      `json:"label"`
	Value    string      `json:"value"`
	Avatar   MPairAvatar `json:"avatar"`
	TickSize string      `json:"tick_size,omitempty"`
}
