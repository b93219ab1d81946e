package binance

import (
	"testing"
)

const klineEvent = `{"e":"kline","E":1700000000123,"s":"BTCUSDT","k":{"t":1700000000000,"T":1700000059999,"s":"BTCUSDT","i":"1m","f":100,"L":200,"o":"35000.10","c":"35010.00","h":"35020.00","l":"34990.00","v":"12.5","n":101,"x":false,"q":"437500.0","V":"6.0","Q":"210000.0","B":"0"}}`

func TestDecodeCombinedEnvelope(t *testing.T) {
	msg := []byte(`{"stream":"btcusdt@kline_1m","data":` + klineEvent + `}`)
	ev, err := DecodeKlineMessage(msg)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Symbol != "BTCUSDT" || ev.Kline.Interval != "1m" || ev.Kline.TradeCount != 101 {
		t.Fatalf("event = %+v", ev)
	}
	if string(ev.Raw) != klineEvent {
		t.Fatalf("raw = %s", ev.Raw)
	}
}

func TestDecodeBareEvent(t *testing.T) {
	ev, err := DecodeKlineMessage([]byte(klineEvent))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Kline.Close != "35010.00" || ev.EventTime != 1700000000123 {
		t.Fatalf("event = %+v", ev)
	}
}

func TestDecodeSymbolFromStreamName(t *testing.T) {
	msg := []byte(`{"stream":"ethusdt@kline_1m","data":{"e":"kline","k":{"o":"1","c":"1","h":"1","l":"1","v":"0"}}}`)
	ev, err := DecodeKlineMessage(msg)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Symbol != "ETHUSDT" {
		t.Fatalf("symbol = %q", ev.Symbol)
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := map[string]string{
		"not json":       `hello`,
		"other event":    `{"e":"trade","s":"BTCUSDT","k":{}}`,
		"no symbol":      `{"e":"kline","k":{"o":"1","c":"1","h":"1","l":"1","v":"1"}}`,
		"bad price":      `{"e":"kline","s":"BTCUSDT","k":{"o":"abc","c":"1","h":"1","l":"1","v":"1"}}`,
		"empty envelope": `{"stream":"btcusdt@kline_1m"}`,
		"subscribe ack":  `{"result":null,"id":1}`,
	}
	for name, msg := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeKlineMessage([]byte(msg)); err == nil {
				t.Fatalf("expected error for %s", msg)
			}
		})
	}
}

func TestStreamURL(t *testing.T) {
	got := StreamURL("wss://stream.binance.com:9443/", []string{"BTCUSDT", "ETHUSDT"}, "1m")
	want := "wss://stream.binance.com:9443/stream?streams=btcusdt@kline_1m/ethusdt@kline_1m"
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}
