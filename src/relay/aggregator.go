package relay

import (
	"strings"
	"sync"
)

// Aggregator detects changes of the global union and hands every new
// union to the controller exactly once.
type Aggregator struct {
	mu       sync.Mutex
	registry *Registry
	handoff  func(union []string)
	last     string
	valid    bool
}

// -----------------------------------------------------------------------------

// NewAggregator starts from the empty union, matching an idle controller.
func NewAggregator(registry *Registry, handoff func(union []string)) *Aggregator {
	return &Aggregator{
		registry: registry,
		handoff:  handoff,
		valid:    true,
	}
}

// -----------------------------------------------------------------------------

// OnRegistryChanged re-derives the union from the registry. The baseline is
// replaced before the handoff so a concurrent mutation compares against it.
func (a *Aggregator) OnRegistryChanged() {
	a.mu.Lock()
	defer a.mu.Unlock()

	union := a.registry.Union()
	key := canonicalKey(union)
	if a.valid && key == a.last {
		return
	}
	a.last = key
	a.valid = true
	a.handoff(union)
}

// -----------------------------------------------------------------------------

// Reset forgets the baseline so the next signal hands off even an unchanged union.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	a.valid = false
	a.mu.Unlock()
}

// -----------------------------------------------------------------------------

// canonicalKey expects a sorted, deduplicated slice.
func canonicalKey(symbols []string) string {
	return strings.Join(symbols, ",")
}
