package relay

import (
	"sort"
	"sync"

	"kline-relay/src/models"
)

// Change describes how one SetDesired call moved the global demand.
type Change struct {
	Acquired []string // symbols that went from zero to one interested session
	Released []string // symbols nobody wants anymore
}

// Registry maps every open session to its desired symbols and keeps a
// per-symbol index of interested sessions. The index size is the refcount.
type Registry struct {
	mu       sync.RWMutex
	sessions map[Session]map[string]struct{}
	bySymbol map[string]map[Session]struct{}
	onChange func()
}

// -----------------------------------------------------------------------------

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[Session]map[string]struct{}),
		bySymbol: make(map[string]map[Session]struct{}),
	}
}

// -----------------------------------------------------------------------------

// OnChange sets the callback run after every mutation, outside the lock.
func (r *Registry) OnChange(fn func()) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

func (r *Registry) signal() {
	r.mu.RLock()
	fn := r.onChange
	r.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// -----------------------------------------------------------------------------

// Register adds s with an empty desired set. It returns false if s was
// already present.
func (r *Registry) Register(s Session) bool {
	r.mu.Lock()
	if _, ok := r.sessions[s]; ok {
		r.mu.Unlock()
		return false
	}
	r.sessions[s] = make(map[string]struct{})
	r.mu.Unlock()

	r.signal()
	return true
}

// -----------------------------------------------------------------------------

// Unregister removes s. Once it returns no dispatch will reach s.
// It returns false if s was not registered.
func (r *Registry) Unregister(s Session) bool {
	r.mu.Lock()
	desired, ok := r.sessions[s]
	if !ok {
		r.mu.Unlock()
		return false
	}
	for sym := range desired {
		r.release(sym, s)
	}
	delete(r.sessions, s)
	r.mu.Unlock()

	r.signal()
	return true
}

// -----------------------------------------------------------------------------

// SetDesired atomically replaces the desired set of s with the normalized
// symbols. Unregistered sessions are ignored so a late message cannot
// resurrect a closed connection.
func (r *Registry) SetDesired(s Session, symbols []string) (Change, bool) {
	change, err := r.SetDesiredWithin(s, symbols, 0)
	return change, err == nil
}

// SetDesiredWithin is SetDesired with a cap on the global union. A change
// that would grow the union past maxUnion is rejected with ErrUnionLimit and
// leaves the registry untouched; maxUnion <= 0 means no cap.
func (r *Registry) SetDesiredWithin(s Session, symbols []string, maxUnion int) (Change, error) {
	next := NormalizeSymbols(symbols)

	r.mu.Lock()
	current, ok := r.sessions[s]
	if !ok {
		r.mu.Unlock()
		return Change{}, ErrUnknownSession
	}
	if maxUnion > 0 {
		if size, grows := r.projectedUnion(current, next); grows && size > maxUnion {
			r.mu.Unlock()
			return Change{}, ErrUnionLimit
		}
	}

	wanted := make(map[string]struct{}, len(next))
	var change Change
	for _, sym := range next {
		wanted[sym] = struct{}{}
		if _, had := current[sym]; had {
			continue
		}
		if r.acquire(sym, s) {
			change.Acquired = append(change.Acquired, sym)
		}
	}
	for sym := range current {
		if _, keep := wanted[sym]; keep {
			continue
		}
		if r.release(sym, s) {
			change.Released = append(change.Released, sym)
		}
	}
	r.sessions[s] = wanted
	r.mu.Unlock()

	sort.Strings(change.Released)
	r.signal()
	return change, nil
}

// projectedUnion returns the union size after a session moves from current to next,
// and whether any symbol would be new to the union. mu must be held.
func (r *Registry) projectedUnion(current map[string]struct{}, next []string) (int, bool) {
	size := len(r.bySymbol)
	added := 0
	wanted := make(map[string]struct{}, len(next))
	for _, sym := range next {
		wanted[sym] = struct{}{}
		if _, ok := r.bySymbol[sym]; !ok {
			added++
		}
	}
	for sym := range current {
		if _, keep := wanted[sym]; !keep && len(r.bySymbol[sym]) == 1 {
			size--
		}
	}
	return size + added, added > 0
}

// acquire and release must be called with mu held. They report whether the
// symbol crossed the zero boundary.
func (r *Registry) acquire(sym string, s Session) bool {
	set, ok := r.bySymbol[sym]
	if !ok {
		set = make(map[Session]struct{})
		r.bySymbol[sym] = set
	}
	set[s] = struct{}{}
	return !ok
}

func (r *Registry) release(sym string, s Session) bool {
	set := r.bySymbol[sym]
	delete(set, s)
	if len(set) == 0 {
		delete(r.bySymbol, sym)
		return true
	}
	return false
}

// -----------------------------------------------------------------------------

// Union returns the sorted set of symbols wanted by at least one session.
func (r *Registry) Union() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.bySymbol))
	for sym := range r.bySymbol {
		out = append(out, sym)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// -----------------------------------------------------------------------------

// Refs returns how many sessions want sym.
func (r *Registry) Refs(sym string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySymbol[sym])
}

// -----------------------------------------------------------------------------

// Desired returns the sorted desired set of s, or nil if s is unknown.
func (r *Registry) Desired(s Session) []string {
	r.mu.RLock()
	set, ok := r.sessions[s]
	if !ok {
		r.mu.RUnlock()
		return nil
	}
	out := make([]string, 0, len(set))
	for sym := range set {
		out = append(out, sym)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// -----------------------------------------------------------------------------

// ForEachTarget calls fn for every session wanting sym while holding the read
// lock, so fn must not block or call back into the registry. It returns the
// number of sessions visited.
func (r *Registry) ForEachTarget(sym string, fn func(Session)) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.bySymbol[sym]
	for s := range set {
		fn(s)
	}
	return len(set)
}

// -----------------------------------------------------------------------------

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// -----------------------------------------------------------------------------

// Snapshot lists sessions ordered by ID.
func (r *Registry) Snapshot() []models.MSessionInfo {
	r.mu.RLock()
	out := make([]models.MSessionInfo, 0, len(r.sessions))
	for s, set := range r.sessions {
		syms := make([]string, 0, len(set))
		for sym := range set {
			syms = append(syms, sym)
		}
		sort.Strings(syms)
		out = append(out, models.MSessionInfo{ID: s.ID(), Symbols: syms})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
