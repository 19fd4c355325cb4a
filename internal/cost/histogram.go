package cost

import "sync"

// Histogram counts how many times each operator (keyed by its printable
// name, the token up to the first whitespace) was seen across every
// function in a module. It is shared across the module-level and every
// function-level pass for one compilation.
type Histogram struct {
	mu     sync.Mutex
	counts map[string]uint64
}

// NewHistogram returns an empty histogram.
func NewHistogram() *Histogram {
	return &Histogram{counts: make(map[string]uint64)}
}

// Incr adds one occurrence of the named operator.
func (h *Histogram) Incr(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.counts[name]++
}

// Snapshot returns a copy of the current counts, safe to retain after
// the pass that produced it has finished.
func (h *Histogram) Snapshot() map[string]uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]uint64, len(h.counts))
	for k, v := range h.counts {
		out[k] = v
	}
	return out
}
