package binance

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"kline-relay/src/models"
)

// envelope is the combined-stream wrapper: {"stream":"btcusdt@kline_1m","data":{...}}.
type envelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// -----------------------------------------------------------------------------

// DecodeKlineMessage parses one websocket frame. Both the combined-stream
// envelope and a bare kline event are accepted. Raw on the result is the
// kline event exactly as the provider sent it.
func DecodeKlineMessage(msg []byte) (models.MKlineEvent, error) {
	var ev models.MKlineEvent

	payload := msg
	stream := ""
	if bytes.Contains(msg, []byte(`"stream"`)) {
		var env envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			return ev, errors.Wrap(err, "decode envelope")
		}
		if len(env.Data) == 0 {
			return ev, errors.Errorf("envelope for %q has no data", env.Stream)
		}
		payload, stream = env.Data, env.Stream
	}

	if err := json.Unmarshal(payload, &ev); err != nil {
		return ev, errors.Wrap(err, "decode kline event")
	}
	if ev.EventType != "kline" {
		return ev, errors.Errorf("unexpected event type %q", ev.EventType)
	}
	if ev.Symbol == "" {
		ev.Symbol = ev.Kline.Symbol
	}
	if ev.Symbol == "" {
		ev.Symbol = symbolFromStream(stream)
	}
	if ev.Symbol == "" {
		return ev, errors.New("kline event without symbol")
	}
	ev.Symbol = strings.ToUpper(ev.Symbol)

	for field, v := range map[string]string{
		"open":   ev.Kline.Open,
		"close":  ev.Kline.Close,
		"high":   ev.Kline.High,
		"low":    ev.Kline.Low,
		"volume": ev.Kline.Volume,
	} {
		if _, err := decimal.NewFromString(v); err != nil {
			return ev, errors.Wrapf(err, "%s %s", ev.Symbol, field)
		}
	}

	ev.Raw = append(json.RawMessage(nil), payload...)
	return ev, nil
}

// -----------------------------------------------------------------------------

// StreamName returns the kline stream name for symbol, e.g. "btcusdt@kline_1m".
func StreamName(symbol, interval string) string {
	return strings.ToLower(symbol) + "@kline_" + interval
}

func symbolFromStream(stream string) string {
	if stream == "" {
		return ""
	}
	parts := strings.Split(stream, "@")
	return strings.ToUpper(parts[0])
}
