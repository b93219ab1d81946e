package relay

import (
	"context"
	"errors"
	"time"

	"kline-relay/src/interfaces"
	"kline-relay/src/logger"
	"kline-relay/src/metrics"
	"kline-relay/src/models"
)

// Relay multiplexes client subscriptions onto one upstream stream.
// The transport calls the On* hooks; Run drives the upstream side.
type Relay struct {
	log        *logger.Logger
	upstream   interfaces.IUpstream
	maxSymbols int
	maxUnion   int

	registry   *Registry
	aggregator *Aggregator
	controller *Controller
	dispatcher *Dispatcher
}

// -----------------------------------------------------------------------------

func New(upstream interfaces.IUpstream, cfg *models.MConfig, log *logger.Logger) *Relay {
	r := &Relay{
		log:        log,
		upstream:   upstream,
		maxSymbols: cfg.Relay.MaxSymbolsPerSession,
		maxUnion:   cfg.Relay.MaxUpstreamSymbols,
		registry:   NewRegistry(),
	}

	r.dispatcher = NewDispatcher(r.registry, r.OnDisconnect, log.Named("Dispatcher"))
	r.controller = NewController(upstream, func(ev models.MKlineEvent) { r.dispatcher.Dispatch(ev) }, ControllerOptions{
		Interval:         cfg.Binance.Interval,
		OpenTimeout:      time.Duration(cfg.Relay.OpenTimeoutMs) * time.Millisecond,
		TerminateTimeout: time.Duration(cfg.Relay.TerminateTimeoutMs) * time.Millisecond,
	}, log.Named("StreamController"))
	r.aggregator = NewAggregator(r.registry, r.controller.Apply)
	r.controller.OnFailure(r.aggregator.Reset)
	r.registry.OnChange(r.onRegistryChanged)

	return r
}

// -----------------------------------------------------------------------------

func (r *Relay) onRegistryChanged() {
	metrics.SessionsActive.Set(float64(r.registry.Len()))
	r.aggregator.OnRegistryChanged()
	metrics.ActiveSymbols.Set(float64(len(r.registry.Union())))
}

// -----------------------------------------------------------------------------

// Run blocks until ctx is done, then closes the upstream stream.
func (r *Relay) Run(ctx context.Context) error {
	if !r.upstream.Enabled() {
		r.log.Warning("Binance API credentials missing. Relay will not connect upstream.")
	}
	return r.controller.Run(ctx)
}

// -----------------------------------------------------------------------------
// Transport hooks
// -----------------------------------------------------------------------------

func (r *Relay) OnConnect(s Session) {
	if r.registry.Register(s) {
		r.log.Info("Client connected: %s", s.ID())
	}
}

// -----------------------------------------------------------------------------

// OnMessage applies one client command. Commands of a session arrive
// sequentially, so reading and replacing its desired set cannot interleave
// with another command of the same session.
func (r *Relay) OnMessage(s Session, raw []byte) {
	cmd, err := ParseCommand(raw)
	if err != nil {
		metrics.SessionMessages.WithLabelValues("ignored").Inc()
		r.log.Warning("Ignoring message from %s: %v", s.ID(), err)
		return
	}

	next := Resolve(cmd, r.registry.Desired(s))
	if r.maxSymbols > 0 && len(next) > r.maxSymbols {
		metrics.SessionMessages.WithLabelValues("ignored").Inc()
		r.log.Warning("Ignoring %s from %s: %d symbols exceeds limit of %d", cmd.Action, s.ID(), len(next), r.maxSymbols)
		return
	}

	change, err := r.registry.SetDesiredWithin(s, next, r.maxUnion)
	switch {
	case errors.Is(err, ErrUnionLimit):
		metrics.SessionMessages.WithLabelValues("ignored").Inc()
		r.log.Warning("Ignoring %s from %s: upstream is capped at %d symbols", cmd.Action, s.ID(), r.maxUnion)
		return
	case err != nil:
		r.log.Debug("Ignoring message from unregistered session %s", s.ID())
		return
	}
	metrics.SessionMessages.WithLabelValues("applied").Inc()
	r.log.Info("Client %s %s -> %v (acquired %v, released %v)", s.ID(), cmd.Action, next, change.Acquired, change.Released)
}

// -----------------------------------------------------------------------------

// OnDisconnect may be called from both the close and error paths.
func (r *Relay) OnDisconnect(s Session) {
	if r.registry.Unregister(s) {
		r.log.Info("Client disconnected: %s", s.ID())
	}
}

// -----------------------------------------------------------------------------

func (r *Relay) OnError(s Session, err error) {
	r.log.Warning("Client %s error: %v", s.ID(), err)
	r.OnDisconnect(s)
}

// -----------------------------------------------------------------------------
// Introspection and control
// -----------------------------------------------------------------------------

func (r *Relay) Status() models.MRelayStatus {
	st := models.MRelayStatus{
		UpstreamEnabled: r.upstream.Enabled(),
		Sessions:        r.registry.Len(),
		ActiveSymbols:   r.registry.Union(),
	}
	r.controller.fillStatus(&st)
	return st
}

func (r *Relay) Sessions() []models.MSessionInfo {
	return r.registry.Snapshot()
}

func (r *Relay) State() State {
	return r.controller.State()
}

func (r *Relay) UpstreamEnabled() bool {
	return r.upstream.Enabled()
}

// Resync hands the current union to the controller even if it did not
// change, reopening the stream after a failure.
func (r *Relay) Resync() {
	r.log.Info("Resync requested")
	r.aggregator.Reset()
	r.aggregator.OnRegistryChanged()
}
