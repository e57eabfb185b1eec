package featureflag

import (
	"context"
	"sync"
	"time"

	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/logger"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/metrics"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
)

// State is the load state of a Gate.
type State string

const (
	StateLoading       State = "loading"
	StateReady         State = "ready"
	StateReadyDefaults State = "ready_defaults"
)

// Gate holds the flag set of one tenant. It moves from loading to ready,
// or to ready_defaults when the source fails; only Refresh goes back to
// loading. A refreshing gate keeps answering from its previous set.
type Gate struct {
	tenantID string
	source   Source
	log      logger.Logger

	mu       sync.RWMutex
	state    State
	flags    Set
	resolved bool
	loadedAt time.Time
	loadErr  error
}

// NewGate creates a gate in the loading state.
func NewGate(tenantID string, source Source, log logger.Logger) *Gate {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Gate{
		tenantID: tenantID,
		source:   source,
		log:      log,
		state:    StateLoading,
	}
}

// Load fetches flags from the source. Failure substitutes the default
// table and is logged, never returned.
func (g *Gate) Load(ctx context.Context) State {
	ctx, span := telemetry.StartSpan(ctx, "featureflag.load",
		attribute.String("erp.tenant_id", g.tenantID),
		attribute.String("erp.flag_source", g.source.Name()))
	flags, err := g.source.Load(ctx, g.tenantID)
	telemetry.EndSpan(span, err)

	g.mu.Lock()
	defer g.mu.Unlock()

	g.loadedAt = time.Now()
	g.loadErr = err
	g.resolved = true
	if err != nil {
		g.flags = DefaultSet()
		g.state = StateReadyDefaults
		metrics.FeatureFlagLoadsTotal.WithLabelValues(g.source.Name(), "fallback").Inc()
		g.log.Warn("Feature flag load failed, using defaults",
			logger.String("tenant_id", g.tenantID),
			logger.String("source", g.source.Name()),
			logger.Error(err))
		return g.state
	}

	g.flags = flags.Clone()
	g.state = StateReady
	metrics.FeatureFlagLoadsTotal.WithLabelValues(g.source.Name(), "success").Inc()
	g.log.Debug("Feature flags loaded",
		logger.String("tenant_id", g.tenantID),
		logger.Int("flags", len(flags)))
	return g.state
}

// Refresh re-enters loading and loads again. Lookups during the reload
// still see the flags of the previous load.
func (g *Gate) Refresh(ctx context.Context) State {
	g.mu.Lock()
	g.state = StateLoading
	g.mu.Unlock()

	return g.Load(ctx)
}

// State returns the current load state.
func (g *Gate) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Resolved reports whether a load has completed at least once.
func (g *Gate) Resolved() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.resolved
}

// LastError returns the error of the most recent load, if any.
func (g *Gate) LastError() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.loadErr
}

// IsEnabled resolves key against the loaded set. Before the first load
// completes it returns false so that nothing gated is shown.
func (g *Gate) IsEnabled(key string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.resolved {
		return false
	}
	enabled, known := lookup(g.flags, key)
	if !known {
		metrics.FeatureFlagUnknownKeysTotal.WithLabelValues(NormalizeKey(key)).Inc()
	}
	return enabled
}

// Snapshot returns a copy of the effective flags: Defaults overlaid with
// the loaded set.
func (g *Gate) Snapshot() (Set, State) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := DefaultSet()
	for k, v := range g.flags {
		out[k] = v
	}
	return out, g.state
}

// Registry keeps one loaded Gate per tenant.
type Registry struct {
	source Source
	log    logger.Logger

	mu    sync.RWMutex
	gates map[string]*Gate
	group singleflight.Group
}

// NewRegistry creates an empty registry backed by source.
func NewRegistry(source Source, log logger.Logger) *Registry {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Registry{
		source: source,
		log:    log,
		gates:  make(map[string]*Gate),
	}
}

// Source returns the source the registry loads from.
func (r *Registry) Source() Source {
	return r.source
}

// Gate returns the loaded gate of tenantID, loading it on first use.
// Concurrent first requests for one tenant share a single load.
func (r *Registry) Gate(ctx context.Context, tenantID string) *Gate {
	r.mu.RLock()
	gate, ok := r.gates[tenantID]
	r.mu.RUnlock()
	if ok {
		return gate
	}

	v, _, _ := r.group.Do(tenantID, func() (interface{}, error) {
		r.mu.RLock()
		existing, ok := r.gates[tenantID]
		r.mu.RUnlock()
		if ok {
			return existing, nil
		}

		gate := NewGate(tenantID, r.source, r.log)
		gate.Load(ctx)

		r.mu.Lock()
		r.gates[tenantID] = gate
		r.mu.Unlock()
		return gate, nil
	})
	return v.(*Gate)
}

// IsEnabled is shorthand for Gate(ctx, tenantID).IsEnabled(key).
func (r *Registry) IsEnabled(ctx context.Context, tenantID, key string) bool {
	return r.Gate(ctx, tenantID).IsEnabled(key)
}

// Refresh reloads the gate of tenantID.
func (r *Registry) Refresh(ctx context.Context, tenantID string) *Gate {
	gate := r.Gate(ctx, tenantID)
	gate.Refresh(ctx)
	return gate
}
