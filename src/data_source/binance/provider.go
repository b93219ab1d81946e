package binance

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"kline-relay/src/helpers"
	"kline-relay/src/interfaces"
	"kline-relay/src/logger"
	"kline-relay/src/models"
)

// MaxStreams is the provider limit on streams per connection.
const MaxStreams = 1024

const apiKeyHeader = "X-MBX-APIKEY"

// Provider opens combined kline streams on the Binance websocket API.
type Provider struct {
	cfg    models.MBinanceConfig
	buffer int
	dialer *websocket.Dialer
	log    *logger.Logger
}

var _ interfaces.IUpstream = (*Provider)(nil)

// -----------------------------------------------------------------------------

func NewProvider(cfg *models.MConfig, log *logger.Logger) *Provider {
	return &Provider{
		cfg:    cfg.Binance,
		buffer: cfg.Relay.EventBuffer,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: time.Duration(cfg.Binance.HandshakeTimeoutSeconds) * time.Second,
		},
		log: log,
	}
}

// -----------------------------------------------------------------------------

func (p *Provider) Enabled() bool {
	return p.cfg.HasCredentials()
}

// -----------------------------------------------------------------------------

// StreamURL builds the combined stream URL for symbols.
func StreamURL(base string, symbols []string, interval string) string {
	names := make([]string, len(symbols))
	for i, sym := range symbols {
		names[i] = StreamName(sym, interval)
	}
	return fmt.Sprintf("%s/stream?streams=%s", strings.TrimRight(base, "/"), strings.Join(names, "/"))
}

// -----------------------------------------------------------------------------

func (p *Provider) OpenStream(ctx context.Context, symbols []string, interval string) (interfaces.IUpstreamStream, error) {
	if !p.Enabled() {
		return nil, helpers.ErrProviderDisabled
	}
	if len(symbols) == 0 {
		return nil, helpers.NewValidationError("at least one symbol is required")
	}
	if len(symbols) > MaxStreams {
		return nil, helpers.NewValidationError(fmt.Sprintf("%d symbols exceed the limit of %d streams per connection", len(symbols), MaxStreams))
	}

	url := StreamURL(p.cfg.WSURL, symbols, interval)
	header := http.Header{}
	header.Set(apiKeyHeader, p.cfg.APIKey)

	conn, resp, err := p.dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (handshake status %d)", err, resp.StatusCode)
		}
		return nil, helpers.NewUpstreamError("failed to open kline stream", err)
	}

	p.log.Info("Connected kline stream for %d symbols", len(symbols))
	return newStream(conn, append([]string(nil), symbols...), p.buffer, p.log), nil
}
