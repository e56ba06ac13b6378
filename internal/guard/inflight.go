package guard

import (
	"sync"

	"github.com/fuelpoints/platform/internal/domain"
)

// InFlightGuard admits at most one outstanding attempt per key. A second
// Acquire for a key is refused until the holder calls Release.
type InFlightGuard struct {
	mu          sync.Mutex
	outstanding map[string]bool
}

// NewInFlightGuard creates an empty guard.
func NewInFlightGuard() *InFlightGuard {
	return &InFlightGuard{
		outstanding: make(map[string]bool),
	}
}

// Acquire claims key.
func (g *InFlightGuard) Acquire(key string) domain.GuardResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.outstanding[key] {
		return domain.GuardResult{
			Allowed: false,
			Reason:  "a submission for " + key + " is already in flight",
			Guard:   "in_flight",
		}
	}
	g.outstanding[key] = true
	return domain.GuardResult{Allowed: true}
}

// Release frees key. Releasing a key that is not held is a no-op.
func (g *InFlightGuard) Release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.outstanding, key)
}
