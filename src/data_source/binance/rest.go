package binance

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"kline-relay/src/helpers"
	"kline-relay/src/interfaces"
	"kline-relay/src/logger"
	"kline-relay/src/models"
)

// Client serves the one-shot REST lookups.
type Client struct {
	cfg     models.MBinanceConfig
	network interfaces.INetworkManager
	log     *logger.Logger
}

var _ interfaces.IMarketData = (*Client)(nil)

type exchangeInfo struct {
	Symbols []struct {
		Symbol     string `json:"symbol"`
		Status     string `json:"status"`
		BaseAsset  string `json:"baseAsset"`
		QuoteAsset string `json:"quoteAsset"`
		Filters    []struct {
			FilterType string `json:"filterType"`
			TickSize   string `json:"tickSize"`
		} `json:"filters"`
	} `json:"symbols"`
}

// -----------------------------------------------------------------------------

func NewClient(cfg *models.MConfig, network interfaces.INetworkManager, log *logger.Logger) *Client {
	return &Client{cfg: cfg.Binance, network: network, log: log}
}

func (c *Client) endpoint(path string) string {
	return strings.TrimRight(c.cfg.RestURL, "/") + path
}

func (c *Client) headers() map[string]string {
	return map[string]string{apiKeyHeader: c.cfg.APIKey}
}

// -----------------------------------------------------------------------------

// LatestKline returns the newest kline row for symbol as the provider sent it.
func (c *Client) LatestKline(ctx context.Context, symbol string, interval string) (json.RawMessage, error) {
	if !c.cfg.HasCredentials() {
		return nil, helpers.ErrProviderDisabled
	}

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	body, err := c.network.Get(ctx, c.endpoint("/api/v3/klines"), map[string]string{
		"symbol":   symbol,
		"interval": interval,
		"limit":    "1",
	}, c.headers())
	if err != nil {
		return nil, helpers.NewUpstreamError("failed to fetch klines for "+symbol, err)
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, helpers.NewUpstreamError("failed to decode klines for "+symbol, err)
	}
	if len(rows) == 0 {
		return nil, helpers.NewUpstreamError("no klines returned for "+symbol, nil)
	}
	return rows[len(rows)-1], nil
}

// -----------------------------------------------------------------------------

// ExchangeSymbols lists every symbol of the exchange with its price tick.
func (c *Client) ExchangeSymbols(ctx context.Context) ([]models.MSymbolInfo, error) {
	if !c.cfg.HasCredentials() {
		return nil, helpers.ErrProviderDisabled
	}

	body, err := c.network.Get(ctx, c.endpoint("/api/v3/exchangeInfo"), nil, c.headers())
	if err != nil {
		return nil, helpers.NewUpstreamError("failed to fetch exchange info", err)
	}

	var info exchangeInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, helpers.NewUpstreamError("failed to decode exchange info", err)
	}

	out := make([]models.MSymbolInfo, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		sym := models.MSymbolInfo{
			Symbol:     s.Symbol,
			Status:     s.Status,
			BaseAsset:  s.BaseAsset,
			QuoteAsset: s.QuoteAsset,
		}
		for _, f := range s.Filters {
			if f.FilterType != "PRICE_FILTER" {
				continue
			}
			tick, err := normalizeTick(f.TickSize)
			if err != nil {
				c.log.Debug("Bad tick size for %s: %v", s.Symbol, err)
				break
			}
			sym.TickSize = tick
		}
		out = append(out, sym)
	}
	c.log.Debug("Fetched %d exchange symbols", len(out))
	return out, nil
}

// normalizeTick drops trailing zeros, "0.01000000" becomes "0.01".
func normalizeTick(raw string) (string, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return "", errors.Wrap(err, "tick size")
	}
	return d.String(), nil
}
