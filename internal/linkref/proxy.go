package linkref

import (
	"context"
	"sync"

	"github.com/zarrio/zarrio/api"
)

// State is a Proxy's resolution state (spec.md §4.3).
type State int32

const (
	StateUnresolved State = iota
	StateResolving
	StateResolved
	StateFailed
)

// Proxy is a lazily-resolved reference to a group, dataset, or attribute
// value at another location, possibly in another store. Resolution runs
// exactly once per Proxy regardless of how many callers invoke Resolve
// concurrently.
type Proxy struct {
	ref    *api.ObjectRef
	engine *Engine

	once  sync.Once
	mu    sync.RWMutex
	state State
	value api.Value
	err   error
}

// Target returns the reference this proxy resolves.
func (p *Proxy) Target() *api.ObjectRef { return p.ref }

// State reports the proxy's current resolution state without triggering
// resolution.
func (p *Proxy) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Resolve resolves the proxy's target, memoizing the outcome. Concurrent
// callers block on the first caller's resolution rather than each
// attempting their own (spec.md §4.3's single-flight requirement).
func (p *Proxy) Resolve(ctx context.Context) (api.Value, error) {
	p.once.Do(func() {
		p.setState(StateResolving)
		v, err := p.engine.resolve(ctx, p.ref)
		p.mu.Lock()
		defer p.mu.Unlock()
		if err != nil {
			p.state = StateFailed
			p.err = err
			return
		}
		p.state = StateResolved
		p.value = v
	})
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value, p.err
}

func (p *Proxy) setState(s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = s
}
