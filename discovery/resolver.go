package discovery

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kbukum/meshnode/logger"
)

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	PollInterval  time.Duration
	CacheTTL      time.Duration
	LookupTimeout time.Duration
	Strategy      Strategy
	Services      []string
}

// instanceSet is the cached view of one name.
type instanceSet struct {
	instances []ServiceInstance // healthy only, sorted by ID
	known     bool
	fetchedAt time.Time
}

// Resolver maps a service name to one live instance. It is safe for
// concurrent use; the poll loop is the only background writer.
type Resolver struct {
	registry Registry
	cfg      ResolverConfig
	selector Selector
	log      *logger.Logger
	now      func() time.Time

	mu      sync.RWMutex
	sets    map[string]instanceSet
	lastErr error
	flight  singleflight.Group

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewResolver creates a Resolver over reg. Zero durations take the package defaults.
func NewResolver(reg Registry, cfg ResolverConfig, log *logger.Logger) (*Resolver, error) {
	if reg == nil {
		return nil, errors.New("discovery: resolver needs a registry")
	}
	sel, err := NewSelector(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = DefaultLookupTimeout
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Resolver{
		registry: reg,
		cfg:      cfg,
		selector: sel,
		log:      log.WithComponent("resolver"),
		now:      time.Now,
		sets:     make(map[string]instanceSet),
	}, nil
}

// Resolve returns one healthy instance of name chosen by the configured strategy.
func (r *Resolver) Resolve(ctx context.Context, name string) (ServiceInstance, error) {
	set, err := r.lookupSet(ctx, name)
	if err != nil {
		return ServiceInstance{}, err
	}
	return r.selector.Select(name, set.instances), nil
}

// Instances returns a copy of the full healthy set of name.
func (r *Resolver) Instances(ctx context.Context, name string) ([]ServiceInstance, error) {
	set, err := r.lookupSet(ctx, name)
	if err != nil {
		return nil, err
	}
	return slices.Clone(set.instances), nil
}

// Invalidate drops the cached set of name; the next Resolve performs a lookup.
func (r *Resolver) Invalidate(name string) {
	r.mu.Lock()
	delete(r.sets, name)
	r.mu.Unlock()
}

// Known returns the sorted names the resolver currently tracks.
func (r *Resolver) Known() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.sets))
	for name := range r.sets {
		names = append(names, name)
	}
	r.mu.RUnlock()
	slices.Sort(names)
	return names
}

// LastRefreshError returns the first error of the most recent poll round, or nil.
func (r *Resolver) LastRefreshError() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}

func (r *Resolver) lookupSet(ctx context.Context, name string) (instanceSet, error) {
	if name == "" {
		return instanceSet{}, ErrInvalidServiceName
	}

	r.mu.RLock()
	cached, ok := r.sets[name]
	r.mu.RUnlock()
	if ok && r.now().Sub(cached.fetchedAt) < r.cfg.CacheTTL {
		return nonEmpty(name, cached)
	}
	if err := ctx.Err(); err != nil {
		return instanceSet{}, fmt.Errorf("resolve %s: %w", name, err)
	}

	// One lookup per name runs at a time; it outlives a caller that gives up.
	ch := r.flight.DoChan(name, func() (any, error) {
		return r.reload(context.WithoutCancel(ctx), name)
	})
	select {
	case <-ctx.Done():
		return instanceSet{}, fmt.Errorf("resolve %s: %w", name, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return instanceSet{}, res.Err
		}
		return nonEmpty(name, res.Val.(instanceSet))
	}
}

// reload refreshes name from the registry. When the registry fails and a
// set is cached, that set is restamped and served from memory for another
// CacheTTL.
func (r *Resolver) reload(ctx context.Context, name string) (instanceSet, error) {
	fresh, err := r.refresh(ctx, name)
	if err == nil {
		return fresh, nil
	}

	r.mu.Lock()
	cached, ok := r.sets[name]
	age := r.now().Sub(cached.fetchedAt)
	if ok {
		cached.fetchedAt = r.now()
		r.sets[name] = cached
	}
	r.mu.Unlock()
	if !ok {
		return instanceSet{}, err
	}

	r.log.Warn("Registry lookup failed, serving stale instances", logger.Fields(
		logger.FieldService, name,
		logger.FieldError, err.Error(),
		"age_ms", age.Milliseconds(),
	))
	return cached, nil
}

func nonEmpty(name string, set instanceSet) (instanceSet, error) {
	if len(set.instances) == 0 {
		return instanceSet{}, noInstances(name, set.known)
	}
	return set, nil
}

func noInstances(name string, known bool) error {
	cause := ErrServiceNotFound
	if known {
		cause = ErrNoHealthyEndpoints
	}
	return fmt.Errorf("%w: %w: %s", ErrNoInstancesAvailable, cause, name)
}

// refresh queries the registry and stores the result. A failed query leaves
// the previous set untouched.
func (r *Resolver) refresh(ctx context.Context, name string) (instanceSet, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, r.cfg.LookupTimeout)
	defer cancel()

	found, err := r.registry.Lookup(lookupCtx, name)
	set := instanceSet{fetchedAt: r.now()}
	switch {
	case errors.Is(err, ErrServiceNotFound):
	case err != nil:
		return instanceSet{}, fmt.Errorf("%w: %s: %w", ErrRegistryUnreachable, name, err)
	default:
		set.known = true
		set.instances = healthyOnly(found)
	}

	r.mu.Lock()
	r.sets[name] = set
	r.mu.Unlock()
	return set, nil
}

// healthyOnly filters and orders instances so round-robin sees a stable sequence.
func healthyOnly(in []ServiceInstance) []ServiceInstance {
	out := make([]ServiceInstance, 0, len(in))
	for _, inst := range in {
		if inst.IsHealthy() {
			out = append(out, inst)
		}
	}
	slices.SortFunc(out, func(a, b ServiceInstance) int {
		return cmp.Or(cmp.Compare(a.ID, b.ID), cmp.Compare(a.HostPort(), b.HostPort()))
	})
	return out
}

// Start warms the cache for the configured services and launches the poll loop.
func (r *Resolver) Start(ctx context.Context) error {
	r.runMu.Lock()
	defer r.runMu.Unlock()
	if r.cancel != nil {
		return errors.New("discovery: resolver already started")
	}

	r.refreshAll(ctx)

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.poll(loopCtx, r.done)

	r.log.Debug("Resolver started", logger.Fields(
		"poll_interval", r.cfg.PollInterval.String(),
		"cache_ttl", r.cfg.CacheTTL.String(),
		"strategy", string(r.cfg.Strategy),
	))
	return nil
}

// Stop ends the poll loop and waits for it to exit. Safe to call twice.
func (r *Resolver) Stop() {
	r.runMu.Lock()
	defer r.runMu.Unlock()
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
	r.cancel = nil
}

func (r *Resolver) poll(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refreshAll(ctx)
		}
	}
}

func (r *Resolver) refreshAll(ctx context.Context) {
	names := r.Known()
	for _, s := range r.cfg.Services {
		if s != "" && !slices.Contains(names, s) {
			names = append(names, s)
		}
	}

	var first error
	for _, name := range names {
		if ctx.Err() != nil {
			return
		}
		if r.evictUnknown(name) {
			continue
		}
		set, err := r.refresh(ctx, name)
		if err != nil {
			r.log.Warn("Refresh failed, keeping previous instances", logger.ErrorFields("refresh "+name, err))
			if first == nil {
				first = err
			}
			continue
		}
		r.log.Debug("Instances refreshed", logger.Fields(
			logger.FieldService, name,
			"known", set.known,
			"instances", len(set.instances),
		))
	}

	r.mu.Lock()
	r.lastErr = first
	r.mu.Unlock()
}

// evictUnknown drops a cached "not found" answer for a name outside
// ResolverConfig.Services, so ad-hoc lookups of unknown names do not join
// the poll list. A later Resolve of that name looks it up again.
func (r *Resolver) evictUnknown(name string) bool {
	if slices.Contains(r.cfg.Services, name) {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.sets[name]
	if !ok || set.known {
		return false
	}
	delete(r.sets, name)
	return true
}
