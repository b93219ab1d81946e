package grpc_control

import (
	"context"
	"net"
	"testing"

	"kline-relay/src/logger"
	"kline-relay/src/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type fakeRelay struct {
	enabled bool
	resyncs int
}

func (f *fakeRelay) Status() models.MRelayStatus {
	return models.MRelayStatus{
		State:           "STREAMING",
		UpstreamEnabled: f.enabled,
		Interval:        "1m",
		Sessions:        2,
		ActiveSymbols:   []string{"BTCUSDT", "ETHUSDT"},
		StreamSymbols:   []string{"BTCUSDT", "ETHUSDT"},
		Restarts:        3,
	}
}

func (f *fakeRelay) Sessions() []models.MSessionInfo {
	return []models.MSessionInfo{
		{ID: "ws-1", Symbols: []string{"BTCUSDT"}},
		{ID: "ws-2", Symbols: []string{"ETHUSDT"}},
	}
}

func (f *fakeRelay) UpstreamEnabled() bool { return f.enabled }
func (f *fakeRelay) Resync() { f.resyncs++ }

func newTestClient(t *testing.T, relay RelayController) *RelayControlClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterRelayControlServer(srv, NewControlService(relay, logger.NewNop()))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewRelayControlClient(conn)
}

func TestGetStatus(t *testing.T) {
	client := newTestClient(t, &fakeRelay{enabled: true})

	st, err := client.GetStatus(context.Background())
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	m := st.AsMap()
	if m["state"] != "STREAMING" || m["restarts"] != float64(3) {
		t.Fatalf("status = %v", m)
	}
	if syms, ok := m["active_symbols"].([]interface{}); !ok || len(syms) != 2 {
		t.Fatalf("active_symbols = %v", m["active_symbols"])
	}
}

func TestListSessions(t *testing.T) {
	client := newTestClient(t, &fakeRelay{enabled: true})

	resp, err := client.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	m := resp.AsMap()
	sessions, _ := m["sessions"].([]interface{})
	if m["count"] != float64(2) || len(sessions) != 2 {
		t.Fatalf("sessions = %v", m)
	}
	first, _ := sessions[0].(map[string]interface{})
	if first["id"] != "ws-1" {
		t.Fatalf("first session = %v", first)
	}
}

func TestResync(t *testing.T) {
	relay := &fakeRelay{enabled: true}
	client := newTestClient(t, relay)

	resp, err := client.Resync(context.Background())
	if err != nil {
		t.Fatalf("Resync: %v", err)
	}
	if relay.resyncs != 1 || resp.AsMap()["state"] != "STREAMING" {
		t.Fatalf("resyncs = %d, resp = %v", relay.resyncs, resp.AsMap())
	}
}

func TestResyncWithoutCredentials(t *testing.T) {
	relay := &fakeRelay{}
	client := newTestClient(t, relay)

	_, err := client.Resync(context.Background())
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("err = %v", err)
	}
	if relay.resyncs != 0 {
		t.Fatal("resync ran without credentials")
	}
}
