package grpc_control

import (
	"context"
	"encoding/json"

	"kline-relay/src/logger"
	"kline-relay/src/models"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// RelayController is the part of the relay exposed to operators.
type RelayController interface {
	Status() models.MRelayStatus
	Sessions() []models.MSessionInfo
	UpstreamEnabled() bool
	Resync()
}

// ControlService implements RelayControlServer
type ControlService struct {
	Relay  RelayController
	Logger *logger.Logger
}

var _ RelayControlServer = (*ControlService)(nil)

func NewControlService(relay RelayController, log *logger.Logger) *ControlService {
	return &ControlService{Relay: relay, Logger: log}
}

// -----------------------------------------------------------------------------

func (s *ControlService) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return toStruct(s.Relay.Status())
}

// -----------------------------------------------------------------------------

func (s *ControlService) ListSessions(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	sessions := s.Relay.Sessions()
	return toStruct(map[string]interface{}{
		"count":    len(sessions),
		"sessions": sessions,
	})
}

// -----------------------------------------------------------------------------

// Resync reopens the upstream stream for the current demand. It is the
// operator path out of IDLE after an upstream failure.
func (s *ControlService) Resync(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if !s.Relay.UpstreamEnabled() {
		return nil, status.Error(codes.FailedPrecondition, "binance credentials are not configured")
	}

	s.Relay.Resync()
	st := s.Relay.Status()
	s.Logger.Info("gRPC: Resync requested for %d symbols", len(st.ActiveSymbols))
	return toStruct(map[string]interface{}{
		"state":          st.State,
		"active_symbols": st.ActiveSymbols,
	})
}

// -----------------------------------------------------------------------------

// toStruct goes through JSON so struct tags decide the field names.
func toStruct(v interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encode: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode: %v", err)
	}
	return out, nil
}
