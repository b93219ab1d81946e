package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"kline-relay/src/helpers"
	"kline-relay/src/interfaces"
	"kline-relay/src/logger"
	"kline-relay/src/models"

	"github.com/prometheus/client_golang/prometheus"
)

// -----------------------------------------------------------------------------
// Fake upstream
// -----------------------------------------------------------------------------

// fakeUpstream records every open and terminate as "open:A,B" /
// "terminate:A,B" / "open-failed:A,B" in call order.
type fakeUpstream struct {
	mu       sync.Mutex
	disabled bool
	ops      []string
	streams  []*fakeStream
	failOpen error
	openGate chan struct{}
	gated    int
}

func newFakeUpstream() *fakeUpstream { return &fakeUpstream{} }

func (u *fakeUpstream) Enabled() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return !u.disabled
}

func (u *fakeUpstream) OpenStream(ctx context.Context, symbols []string, interval string) (interfaces.IUpstreamStream, error) {
	u.mu.Lock()
	gate := u.openGate
	if gate != nil {
		u.gated++
	}
	u.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	key := strings.Join(symbols, ",")
	if u.disabled {
		u.ops = append(u.ops, "open-failed:"+key)
		return nil, helpers.ErrProviderDisabled
	}
	if u.failOpen != nil {
		err := u.failOpen
		u.failOpen = nil
		u.ops = append(u.ops, "open-failed:"+key)
		return nil, err
	}
	s := &fakeStream{up: u, key: key, events: make(chan models.MKlineEvent, 256)}
	u.streams = append(u.streams, s)
	u.ops = append(u.ops, "open:"+key)
	return s, nil
}

func (u *fakeUpstream) failNextOpen(err error) {
	u.mu.Lock()
	u.failOpen = err
	u.mu.Unlock()
}

func (u *fakeUpstream) setGate(gate chan struct{}) {
	u.mu.Lock()
	u.openGate = gate
	u.mu.Unlock()
}

func (u *fakeUpstream) record(op string) {
	u.mu.Lock()
	u.ops = append(u.ops, op)
	u.mu.Unlock()
}

func (u *fakeUpstream) Ops() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.ops...)
}

// pendingOpens counts OpenStream calls that reached the gate.
func (u *fakeUpstream) pendingOpens() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.gated
}

func (u *fakeUpstream) latest() *fakeStream {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.streams) == 0 {
		return nil
	}
	return u.streams[len(u.streams)-1]
}

type fakeStream struct {
	up      *fakeUpstream
	key     string
	mu      sync.Mutex
	closed  bool
	termErr error
	events  chan models.MKlineEvent
}

func (s *fakeStream) Events() <-chan models.MKlineEvent { return s.events }

func (s *fakeStream) Terminate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if s.termErr != nil {
		s.up.record("terminate-failed:" + s.key)
		return s.termErr
	}
	s.closed = true
	close(s.events)
	s.up.record("terminate:" + s.key)
	return nil
}

// failTerminate makes the next Terminate calls fail with err.
func (s *fakeStream) failTerminate(err error) {
	s.mu.Lock()
	s.termErr = err
	s.mu.Unlock()
}

// push delivers ev unless the stream is already closed.
func (s *fakeStream) push(ev models.MKlineEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.events <- ev
	return true
}

// drop simulates the provider closing the connection.
func (s *fakeStream) drop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
}

// -----------------------------------------------------------------------------
// Fake session
// -----------------------------------------------------------------------------

type fakeSession struct {
	id     string
	mu     sync.Mutex
	msgs   []string
	closed bool
	full   bool
}

func newSession(id string) *fakeSession { return &fakeSession{id: id} }

func (s *fakeSession) ID() string { return s.id }

func (s *fakeSession) Send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.full {
		return ErrSlowSession
	}
	s.msgs = append(s.msgs, string(payload))
	return nil
}

func (s *fakeSession) Messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.msgs...)
}

func (s *fakeSession) setClosed() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *fakeSession) setFull(full bool) {
	s.mu.Lock()
	s.full = full
	s.mu.Unlock()
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func kline(symbol string, start int64) models.MKlineEvent {
	ev := models.MKlineEvent{
		EventType: "kline",
		EventTime: start + 1,
		Symbol:    symbol,
		Kline: models.MKline{
			StartTime: start,
			CloseTime: start + 59999,
			Symbol:    symbol,
			Interval:  "1m",
			Open:      "1.0",
			Close:     "1.1",
			High:      "1.2",
			Low:       "0.9",
			Volume:    "10",
		},
	}
	raw, _ := json.Marshal(ev)
	ev.Raw = raw
	return ev
}

func subscribe(symbols ...string) []byte {
	b, _ := json.Marshal(models.MSubscribeCommand{Action: models.ActionSubscribe, Symbols: append([]string{}, symbols...)})
	return b
}

func testConfig() *models.MConfig {
	return &models.MConfig{
		Binance: models.MBinanceConfig{Interval: "1m"},
		Relay: models.MRelayConfig{
			OpenTimeoutMs:        2000,
			TerminateTimeoutMs:   1000,
			MaxSymbolsPerSession: 10,
		},
	}
}

// testRelay wraps a running Relay and counts aggregator handoffs.
type testRelay struct {
	*Relay
	up       *fakeUpstream
	handoffs atomic.Int32
}

func newTestRelay(t *testing.T, up *fakeUpstream) *testRelay {
	t.Helper()
	return newTestRelayWithConfig(t, up, testConfig())
}

func newTestRelayWithConfig(t *testing.T, up *fakeUpstream, cfg *models.MConfig) *testRelay {
	t.Helper()
	r := New(up, cfg, logger.NewNop())
	tr := &testRelay{Relay: r, up: up}
	r.aggregator.handoff = func(union []string) {
		tr.handoffs.Add(1)
		r.controller.Apply(union)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = r.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return tr
}

func waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

// upstreamFailures reads relay_upstream_failures_total{stage} from the default registry.
func upstreamFailures(t *testing.T, stage string) float64 {
	t.Helper()
	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "relay_upstream_failures_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "stage" && l.GetValue() == stage {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func opsEqual(got []string, want ...string) bool {
	return fmt.Sprint(got) == fmt.Sprint(want)
}

func waitOps(t *testing.T, up *fakeUpstream, want ...string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if opsEqual(up.Ops(), want...) {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("upstream ops = %v, want %v", up.Ops(), want)
}
