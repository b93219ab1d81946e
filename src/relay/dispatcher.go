package relay

import (
	"errors"

	"kline-relay/src/logger"
	"kline-relay/src/metrics"
	"kline-relay/src/models"
)

// Dispatcher delivers upstream events to the sessions that want them.
// It is called from the controller goroutine only, so per-symbol order
// follows upstream order.
type Dispatcher struct {
	registry *Registry
	onClosed func(Session)
	log      *logger.Logger
}

// -----------------------------------------------------------------------------

func NewDispatcher(registry *Registry, onClosed func(Session), log *logger.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, onClosed: onClosed, log: log}
}

// -----------------------------------------------------------------------------

// Dispatch sends ev to every session whose desired set holds its symbol and
// returns the number of successful sends. Events nobody wants are dropped.
func (d *Dispatcher) Dispatch(ev models.MKlineEvent) int {
	symbol := NormalizeSymbol(ev.Symbol)
	metrics.UpdatesReceived.WithLabelValues(symbol).Inc()

	payload, err := ev.Payload()
	if err != nil {
		d.log.Error("Failed to encode update for %s: %v", symbol, err)
		metrics.UpdatesDropped.WithLabelValues("encode").Inc()
		return 0
	}

	delivered := 0
	var closed []Session
	targets := d.registry.ForEachTarget(symbol, func(s Session) {
		switch err := s.Send(payload); {
		case err == nil:
			delivered++
		case errors.Is(err, ErrSessionClosed):
			closed = append(closed, s)
		case errors.Is(err, ErrSlowSession):
			metrics.UpdatesDropped.WithLabelValues("slow").Inc()
			d.log.Debug("Session %s is lagging, dropped %s update", s.ID(), symbol)
		default:
			metrics.UpdatesDropped.WithLabelValues("error").Inc()
			d.log.Warning("Send to session %s failed: %v", s.ID(), err)
		}
	})

	if targets == 0 {
		metrics.UpdatesDropped.WithLabelValues("stale").Inc()
		d.log.Debug("Dropped %s update, no interested sessions", symbol)
		return 0
	}
	metrics.UpdatesDelivered.Add(float64(delivered))

	// unregister outside the registry read lock
	for _, s := range closed {
		metrics.UpdatesDropped.WithLabelValues("closed").Inc()
		if d.onClosed != nil {
			d.onClosed(s)
		}
	}
	return delivered
}
