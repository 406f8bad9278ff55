package session

import (
	"context"
	"sync"

	"partscope/internal/inference"
)

// HealthChecker probes the inference backend.
type HealthChecker interface {
	CheckHealth(ctx context.Context) inference.Readiness
}

// Gate holds the application-wide backend readiness. It starts as
// connecting and moves to ready or error exactly once.
type Gate struct {
	mu        sync.RWMutex
	readiness inference.Readiness
	once      sync.Once
	listeners []func(inference.Readiness)
}

func NewGate() *Gate {
	return &Gate{readiness: inference.Connecting()}
}

// Probe runs the health check the first time it is called. Later calls
// return immediately; readiness is never re-checked.
func (g *Gate) Probe(ctx context.Context, checker HealthChecker) {
	g.once.Do(func() {
		readiness := checker.CheckHealth(ctx)

		g.mu.Lock()
		g.readiness = readiness
		listeners := append([]func(inference.Readiness){}, g.listeners...)
		g.mu.Unlock()

		for _, fn := range listeners {
			fn(readiness)
		}
	})
}

func (g *Gate) Readiness() inference.Readiness {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.readiness
}

// OnChange registers fn to be called once the probe has settled.
func (g *Gate) OnChange(fn func(inference.Readiness)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners = append(g.listeners, fn)
}
