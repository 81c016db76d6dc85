// Package redis implements discovery.Registry on Redis.
//
// Each instance is a JSON value under <prefix>:instance:<name>:<id> with a
// TTL that a heartbeat keeps refreshing. <prefix>:index:<name> lists the
// instance IDs of a name and <prefix>:services lists every name ever
// registered, which is how an unknown name is told apart from one whose
// instances all expired.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/meshnode/discovery"
	"github.com/kbukum/meshnode/logger"
)

func init() {
	discovery.RegisterProviderFactory("redis", func(_ discovery.Config, providerCfg any, log *logger.Logger) (discovery.Registry, error) {
		var cfg Config
		switch v := providerCfg.(type) {
		case *Config:
			cfg = *v
		case Config:
			cfg = v
		case nil:
		default:
			return nil, fmt.Errorf("redis provider: unexpected config type %T", providerCfg)
		}
		return NewProvider(cfg, log)
	})
}

// Provider implements discovery.Registry with go-redis.
type Provider struct {
	rdb     *goredis.Client
	ownsRDB bool
	cfg     Config
	log     *logger.Logger

	mu         sync.Mutex
	heartbeats map[string]*beat
	closed     bool
}

type beat struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (b *beat) stop() {
	b.cancel()
	<-b.done
}

var _ discovery.Registry = (*Provider)(nil)

// ErrClosed is returned by Register after Close.
var ErrClosed = errors.New("redis registry: provider closed")

// NewProvider connects to Redis with cfg.
func NewProvider(cfg Config, log *logger.Logger) (*Provider, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	p := NewProviderWithClient(rdb, cfg, log)
	p.ownsRDB = true
	return p, nil
}

// NewProviderWithClient wraps an existing client. Close does not close it.
func NewProviderWithClient(rdb *goredis.Client, cfg Config, log *logger.Logger) *Provider {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.NewNop()
	}
	return &Provider{
		rdb:        rdb,
		cfg:        cfg,
		log:        log.WithComponent("redis-registry"),
		heartbeats: make(map[string]*beat),
	}
}

func (p *Provider) servicesKey() string { return p.cfg.KeyPrefix + ":services" }

func (p *Provider) idsKey() string { return p.cfg.KeyPrefix + ":ids" }

func (p *Provider) indexKey(name string) string { return p.cfg.KeyPrefix + ":index:" + name }

func (p *Provider) instanceKey(name, id string) string {
	return p.cfg.KeyPrefix + ":instance:" + name + ":" + id
}

// Register writes the instance and starts a heartbeat that keeps its TTL
// alive. Nothing is written once the provider is closed.
func (p *Provider) Register(ctx context.Context, svc *discovery.ServiceInfo) error {
	if svc == nil || svc.Name == "" || svc.ID == "" {
		return fmt.Errorf("redis register: %w", discovery.ErrInvalidServiceName)
	}
	payload, err := json.Marshal(svc.Instance())
	if err != nil {
		return fmt.Errorf("redis register %q: %w", svc.ID, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if err := p.write(ctx, svc.Name, svc.ID, payload); err != nil {
		return fmt.Errorf("redis register %q: %w", svc.ID, err)
	}
	if b, ok := p.heartbeats[svc.ID]; ok {
		b.stop()
	}
	hbCtx, cancel := context.WithCancel(context.Background())
	b := &beat{cancel: cancel, done: make(chan struct{})}
	p.heartbeats[svc.ID] = b
	go p.heartbeat(hbCtx, b.done, svc.Name, svc.ID, payload)
	return nil
}

func (p *Provider) write(ctx context.Context, name, id string, payload []byte) error {
	_, err := p.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, p.instanceKey(name, id), payload, p.cfg.InstanceTTL)
		pipe.SAdd(ctx, p.indexKey(name), id)
		pipe.SAdd(ctx, p.servicesKey(), name)
		pipe.HSet(ctx, p.idsKey(), id, name)
		return nil
	})
	return err
}

func (p *Provider) heartbeat(ctx context.Context, done chan<- struct{}, name, id string, payload []byte) {
	defer close(done)
	ticker := time.NewTicker(p.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.write(ctx, name, id, payload); err != nil && ctx.Err() == nil {
				p.log.Warn("Heartbeat failed", logger.ErrorFields("heartbeat "+id, err))
			}
		}
	}
}

// Deregister stops the heartbeat and deletes the instance. The name stays known.
func (p *Provider) Deregister(ctx context.Context, serviceID string) error {
	p.mu.Lock()
	b, ok := p.heartbeats[serviceID]
	delete(p.heartbeats, serviceID)
	p.mu.Unlock()
	if ok {
		b.stop()
	}

	name, err := p.rdb.HGet(ctx, p.idsKey(), serviceID).Result()
	if errors.Is(err, goredis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis deregister %q: %w", serviceID, err)
	}

	_, err = p.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, p.instanceKey(name, serviceID))
		pipe.SRem(ctx, p.indexKey(name), serviceID)
		pipe.HDel(ctx, p.idsKey(), serviceID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis deregister %q: %w", serviceID, err)
	}
	return nil
}

// Lookup returns the live instances of name. IDs whose key has expired are
// pruned from the index.
func (p *Provider) Lookup(ctx context.Context, name string) ([]discovery.ServiceInstance, error) {
	known, err := p.rdb.SIsMember(ctx, p.servicesKey(), name).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lookup %q: %w", name, err)
	}
	if !known {
		return nil, fmt.Errorf("%w: %s", discovery.ErrServiceNotFound, name)
	}

	ids, err := p.rdb.SMembers(ctx, p.indexKey(name)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lookup %q: %w", name, err)
	}
	out := make([]discovery.ServiceInstance, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = p.instanceKey(name, id)
	}
	vals, err := p.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lookup %q: %w", name, err)
	}

	var expired []any
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		var inst discovery.ServiceInstance
		if err := json.Unmarshal([]byte(raw), &inst); err != nil {
			p.log.Warn("Skipping undecodable instance", logger.ErrorFields("decode "+keys[i], err))
			continue
		}
		out = append(out, inst)
	}

	if len(expired) > 0 {
		if err := p.rdb.SRem(ctx, p.indexKey(name), expired...).Err(); err != nil {
			p.log.Debug("Prune expired IDs failed", logger.ErrorFields("prune "+name, err))
		}
	}
	return out, nil
}

// Close stops every heartbeat and closes the client when the provider owns it.
func (p *Provider) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	beats := p.heartbeats
	p.heartbeats = make(map[string]*beat)
	p.mu.Unlock()

	for _, b := range beats {
		b.stop()
	}
	if p.ownsRDB {
		return p.rdb.Close()
	}
	return nil
}
