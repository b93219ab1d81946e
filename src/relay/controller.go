package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"kline-relay/src/interfaces"
	"kline-relay/src/logger"
	"kline-relay/src/metrics"
	"kline-relay/src/models"
)

// State of the upstream subscription.
type State int32

const (
	StateIdle State = iota
	StateStreaming
	StateRestarting
)

func (s State) String() string {
	switch s {
	case StateStreaming:
		return "STREAMING"
	case StateRestarting:
		return "RESTARTING"
	default:
		return "IDLE"
	}
}

var errStreamLost = errors.New("stream closed by provider")

// ControllerOptions bound the upstream calls.
type ControllerOptions struct {
	Interval         string
	OpenTimeout      time.Duration
	TerminateTimeout time.Duration
}

// -----------------------------------------------------------------------------

// Controller owns the single upstream stream. All transitions run on the Run
// goroutine; Apply only drops the latest union into a one-slot mailbox.
type Controller struct {
	upstream  interfaces.IUpstream
	dispatch  func(models.MKlineEvent)
	onFailure func()
	opts      ControllerOptions
	log       *logger.Logger

	notify     chan struct{}
	pendMu     sync.Mutex
	pending    []string
	hasPending bool

	statusMu     sync.RWMutex
	state        State
	stateSince   time.Time
	current      []string
	lastErr      string
	restarts     uint64
	openFailures uint64
	streamDrops  uint64
}

// -----------------------------------------------------------------------------

func NewController(upstream interfaces.IUpstream, dispatch func(models.MKlineEvent), opts ControllerOptions, log *logger.Logger) *Controller {
	return &Controller{
		upstream:   upstream,
		dispatch:   dispatch,
		opts:       opts,
		log:        log,
		notify:     make(chan struct{}, 1),
		stateSince: time.Now().UTC(),
	}
}

// -----------------------------------------------------------------------------

// OnFailure registers a hook run after an open or terminate failure.
// It must be set before Run.
func (c *Controller) OnFailure(fn func()) {
	c.onFailure = fn
}

// -----------------------------------------------------------------------------

// Apply queues union as the desired upstream set. Only the latest queued
// union is kept; it never blocks.
func (c *Controller) Apply(union []string) {
	cp := append([]string(nil), union...)

	c.pendMu.Lock()
	c.pending = cp
	c.hasPending = true
	c.pendMu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
}

func (c *Controller) take() ([]string, bool) {
	c.pendMu.Lock()
	defer c.pendMu.Unlock()
	if !c.hasPending {
		return nil, false
	}
	union := c.pending
	c.pending, c.hasPending = nil, false
	return union, true
}

// -----------------------------------------------------------------------------

// Run serves the mailbox and pumps upstream events until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	var stream interfaces.IUpstreamStream
	var events <-chan models.MKlineEvent

	for {
		select {
		case <-ctx.Done():
			if stream != nil {
				if err := c.terminate(stream, events); err != nil {
					c.log.Warning("Terminate on shutdown failed: %v", err)
				}
				c.setIdle("")
			}
			return nil

		case <-c.notify:
			union, ok := c.take()
			if !ok {
				continue
			}
			stream, events = c.apply(ctx, stream, events, union)

		case ev, ok := <-events:
			if !ok {
				stream, events = c.streamLost(ctx, stream)
				continue
			}
			c.dispatch(ev)
		}
	}
}

// -----------------------------------------------------------------------------

func (c *Controller) apply(ctx context.Context, stream interfaces.IUpstreamStream, events <-chan models.MKlineEvent, union []string) (interfaces.IUpstreamStream, <-chan models.MKlineEvent) {
	if stream != nil && canonicalKey(c.Current()) == canonicalKey(union) {
		return stream, events
	}

	restart := stream != nil
	if stream != nil {
		if len(union) > 0 {
			c.setState(StateRestarting)
		}
		c.log.Info("Terminating stream for %v", c.Current())
		if err := c.terminate(stream, events); err != nil {
			c.fail("terminate", err)
			return nil, nil
		}
	}

	if len(union) == 0 {
		c.setIdle("")
		c.log.Info("No active subscriptions. Stream is idle.")
		return nil, nil
	}

	c.log.Info("Starting stream for %v", union)
	openCtx, cancel := context.WithTimeout(ctx, c.opts.OpenTimeout)
	next, err := c.upstream.OpenStream(openCtx, union, c.opts.Interval)
	cancel()
	if err != nil {
		c.fail("open", err)
		return nil, nil
	}

	c.setStreaming(union, restart)
	return next, next.Events()
}

// -----------------------------------------------------------------------------

// terminate stops stream and forwards the events it had already received.
// Late events for unwanted symbols are filtered by the dispatcher.
func (c *Controller) terminate(stream interfaces.IUpstreamStream, events <-chan models.MKlineEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.TerminateTimeout)
	defer cancel()

	if err := stream.Terminate(ctx); err != nil {
		return err
	}
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			c.dispatch(ev)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// -----------------------------------------------------------------------------

// streamLost makes one immediate reopen attempt after the provider closed
// the stream. A queued union takes precedence over the lost one. If the
// reopen fails the controller goes idle like any other open failure.
func (c *Controller) streamLost(ctx context.Context, stream interfaces.IUpstreamStream) (interfaces.IUpstreamStream, <-chan models.MKlineEvent) {
	termCtx, cancel := context.WithTimeout(context.Background(), c.opts.TerminateTimeout)
	_ = stream.Terminate(termCtx)
	cancel()

	union := c.Current()
	c.log.Warning("Upstream stream for %v lost: %v", union, errStreamLost)
	metrics.UpstreamFailures.WithLabelValues("stream").Inc()
	c.statusMu.Lock()
	c.streamDrops++
	c.lastErr = errStreamLost.Error()
	c.statusMu.Unlock()

	if queued, ok := c.take(); ok {
		union = queued
	}
	if len(union) > 0 {
		c.setState(StateRestarting)
	}
	return c.apply(ctx, nil, nil, union)
}

// -----------------------------------------------------------------------------

// fail runs the failure hook before the counters and state change.
func (c *Controller) fail(stage string, err error) {
	c.log.Error("Upstream %s failed, going idle: %v", stage, err)
	metrics.UpstreamFailures.WithLabelValues(stage).Inc()

	if c.onFailure != nil {
		c.onFailure()
	}

	c.statusMu.Lock()
	if stage == "open" {
		c.openFailures++
	}
	c.statusMu.Unlock()
	c.setIdle(err.Error())
}

// -----------------------------------------------------------------------------

func (c *Controller) setState(s State) {
	c.statusMu.Lock()
	c.state = s
	c.stateSince = time.Now().UTC()
	c.statusMu.Unlock()
	metrics.UpstreamState.Set(float64(s))
}

func (c *Controller) setIdle(lastErr string) {
	c.statusMu.Lock()
	c.current = nil
	if lastErr != "" {
		c.lastErr = lastErr
	}
	c.statusMu.Unlock()
	c.setState(StateIdle)
}

func (c *Controller) setStreaming(union []string, restart bool) {
	c.statusMu.Lock()
	c.current = union
	if restart {
		c.restarts++
	}
	c.statusMu.Unlock()
	c.setState(StateStreaming)

	if restart {
		metrics.UpstreamRestarts.Inc()
	}
}

// -----------------------------------------------------------------------------

func (c *Controller) State() State {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.state
}

// Current returns the symbols of the open stream, nil when idle.
func (c *Controller) Current() []string {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return append([]string(nil), c.current...)
}

// fillStatus copies the controller fields into st.
func (c *Controller) fillStatus(st *models.MRelayStatus) {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	st.State = c.state.String()
	st.StateSince = c.stateSince.Unix()
	st.StreamSymbols = append([]string{}, c.current...)
	st.Restarts = c.restarts
	st.OpenFailures = c.openFailures
	st.StreamDrops = c.streamDrops
	st.LastError = c.lastErr
	st.Interval = c.opts.Interval
}
