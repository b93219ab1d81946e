package relay

import (
	"fmt"
	"testing"

	"kline-relay/src/models"
)

func TestNormalizeSymbols(t *testing.T) {
	got := NormalizeSymbols([]string{" ethusdt", "BTCUSDT", "", "btcusdt", "  "})
	if fmt.Sprint(got) != "[BTCUSDT ETHUSDT]" {
		t.Fatalf("got %v", got)
	}
	if got := NormalizeSymbols(nil); got == nil || len(got) != 0 {
		t.Fatalf("nil input gave %#v", got)
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		action  string
		symbols int
		wantErr bool
	}{
		{"subscribe", `{"action":"subscribe","symbols":["BTCUSDT","ETHUSDT"]}`, models.ActionSubscribe, 2, false},
		{"empty list clears", `{"action":"subscribe","symbols":[]}`, models.ActionSubscribe, 0, false},
		{"add", `{"action":"add","symbols":["SOLUSDT"]}`, models.ActionAdd, 1, false},
		{"unsubscribe", `{"action":"unsubscribe","symbols":["SOLUSDT"]}`, models.ActionUnsubscribe, 1, false},
		{"extra fields", `{"action":"subscribe","symbols":["X"],"id":7}`, models.ActionSubscribe, 1, false},
		{"not json", `subscribe BTCUSDT`, "", 0, true},
		{"missing symbols", `{"action":"subscribe"}`, "", 0, true},
		{"null symbols", `{"action":"add","symbols":null}`, "", 0, true},
		{"symbols not array", `{"action":"subscribe","symbols":"BTCUSDT"}`, "", 0, true},
		{"unknown action", `{"action":"SUBSCRIBE","symbols":["BTCUSDT"]}`, "", 0, true},
		{"missing action", `{"symbols":["BTCUSDT"]}`, "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := ParseCommand([]byte(tt.raw))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", cmd)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cmd.Action != tt.action || len(cmd.Symbols) != tt.symbols {
				t.Fatalf("got %+v", cmd)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	current := []string{"BTCUSDT", "ETHUSDT"}
	tests := []struct {
		cmd  models.MSubscribeCommand
		want string
	}{
		{models.MSubscribeCommand{Action: models.ActionSubscribe, Symbols: []string{"solusdt"}}, "[SOLUSDT]"},
		{models.MSubscribeCommand{Action: models.ActionSubscribe, Symbols: []string{}}, "[]"},
		{models.MSubscribeCommand{Action: models.ActionAdd, Symbols: []string{"ethusdt", "SOLUSDT"}}, "[BTCUSDT ETHUSDT SOLUSDT]"},
		{models.MSubscribeCommand{Action: models.ActionUnsubscribe, Symbols: []string{"btcusdt", "DOGEUSDT"}}, "[ETHUSDT]"},
	}
	for _, tt := range tests {
		if got := fmt.Sprint(Resolve(tt.cmd, current)); got != tt.want {
			t.Errorf("%s %v: got %s, want %s", tt.cmd.Action, tt.cmd.Symbols, got, tt.want)
		}
	}
	if fmt.Sprint(current) != "[BTCUSDT ETHUSDT]" {
		t.Fatalf("Resolve modified current: %v", current)
	}
}

func TestDeltaCommandsMatchReplace(t *testing.T) {
	r := NewRegistry()
	delta, replace := newSession("delta"), newSession("replace")
	r.Register(delta)
	r.Register(replace)

	steps := []models.MSubscribeCommand{
		{Action: models.ActionAdd, Symbols: []string{"BTCUSDT"}},
		{Action: models.ActionAdd, Symbols: []string{"ETHUSDT", "SOLUSDT"}},
		{Action: models.ActionUnsubscribe, Symbols: []string{"BTCUSDT"}},
	}
	for _, cmd := range steps {
		r.SetDesired(delta, Resolve(cmd, r.Desired(delta)))
	}
	r.SetDesired(replace, Resolve(models.MSubscribeCommand{
		Action:  models.ActionSubscribe,
		Symbols: []string{"SOLUSDT", "ETHUSDT"},
	}, r.Desired(replace)))

	if fmt.Sprint(r.Desired(delta)) != fmt.Sprint(r.Desired(replace)) {
		t.Fatalf("delta %v != replace %v", r.Desired(delta), r.Desired(replace))
	}
}
