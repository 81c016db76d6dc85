// Package etcd implements discovery.Registry on etcd v3.
//
// Instances live under <prefix>/instances/<name>/<id> attached to a lease
// kept alive by the registering node. <prefix>/services/<name> is written
// without a lease and marks the name as known.
package etcd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/kbukum/meshnode/discovery"
	"github.com/kbukum/meshnode/logger"
)

func init() {
	discovery.RegisterProviderFactory("etcd", func(_ discovery.Config, providerCfg any, log *logger.Logger) (discovery.Registry, error) {
		var cfg Config
		switch v := providerCfg.(type) {
		case *Config:
			cfg = *v
		case Config:
			cfg = v
		case nil:
		default:
			return nil, fmt.Errorf("etcd provider: unexpected config type %T", providerCfg)
		}
		return NewProvider(cfg, log)
	})
}

// Provider implements discovery.Registry with the etcd v3 client.
type Provider struct {
	kv     clientv3.KV
	lease  clientv3.Lease
	closer io.Closer
	cfg    Config
	log    *logger.Logger

	mu         sync.Mutex
	registered map[string]*registration
	closed     bool
}

type registration struct {
	info   *discovery.ServiceInfo
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	leaseID clientv3.LeaseID
}

var _ discovery.Registry = (*Provider)(nil)

// NewProvider dials etcd.
func NewProvider(cfg Config, log *logger.Logger) (*Provider, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("etcd config: %w", err)
	}
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
		Username:    cfg.Username,
		Password:    cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("etcd client: %w", err)
	}
	return newProvider(cli, cli, cli, cfg, log), nil
}

func newProvider(kv clientv3.KV, lease clientv3.Lease, closer io.Closer, cfg Config, log *logger.Logger) *Provider {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.NewNop()
	}
	return &Provider{
		kv:         kv,
		lease:      lease,
		closer:     closer,
		cfg:        cfg,
		log:        log.WithComponent("etcd-registry"),
		registered: make(map[string]*registration),
	}
}

func (p *Provider) serviceKey(name string) string {
	return p.cfg.KeyPrefix + "/services/" + name
}

func (p *Provider) instancesPrefix(name string) string {
	return p.cfg.KeyPrefix + "/instances/" + name + "/"
}

func (p *Provider) instanceKey(name, id string) string {
	return p.instancesPrefix(name) + id
}

// Register puts the instance under a fresh lease and keeps the lease alive
// until Deregister or Close. A lost lease is re-acquired after RetryInterval.
func (p *Provider) Register(ctx context.Context, svc *discovery.ServiceInfo) error {
	if svc == nil || svc.Name == "" || svc.ID == "" {
		return fmt.Errorf("etcd register: %w", discovery.ErrInvalidServiceName)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("etcd register %q: provider closed", svc.ID)
	}
	prev := p.registered[svc.ID]
	delete(p.registered, svc.ID)
	p.mu.Unlock()
	if prev != nil {
		prev.stop()
	}

	kaCtx, cancel := context.WithCancel(context.Background())
	reg := &registration{info: svc, cancel: cancel, done: make(chan struct{})}
	keepAlive, err := p.put(ctx, kaCtx, reg)
	if err != nil {
		cancel()
		return fmt.Errorf("etcd register %q: %w", svc.ID, err)
	}

	p.mu.Lock()
	p.registered[svc.ID] = reg
	p.mu.Unlock()

	go p.maintain(kaCtx, reg, keepAlive)
	return nil
}

// put grants a lease, writes the instance and marker keys and starts the
// lease keep-alive stream, which runs until kaCtx is cancelled.
func (p *Provider) put(ctx, kaCtx context.Context, reg *registration) (<-chan *clientv3.LeaseKeepAliveResponse, error) {
	payload, err := json.Marshal(reg.info.Instance())
	if err != nil {
		return nil, err
	}
	grant, err := p.lease.Grant(ctx, p.cfg.leaseSeconds())
	if err != nil {
		return nil, fmt.Errorf("grant lease: %w", err)
	}
	if _, err := p.kv.Put(ctx, p.instanceKey(reg.info.Name, reg.info.ID), string(payload), clientv3.WithLease(grant.ID)); err != nil {
		return nil, fmt.Errorf("put instance: %w", err)
	}
	if _, err := p.kv.Put(ctx, p.serviceKey(reg.info.Name), reg.info.Name); err != nil {
		return nil, fmt.Errorf("put service marker: %w", err)
	}

	reg.mu.Lock()
	reg.leaseID = grant.ID
	reg.mu.Unlock()

	return p.lease.KeepAlive(kaCtx, grant.ID)
}

func (p *Provider) maintain(ctx context.Context, reg *registration, keepAlive <-chan *clientv3.LeaseKeepAliveResponse) {
	defer close(reg.done)
	for {
		for keepAlive != nil {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-keepAlive:
				if !ok {
					keepAlive = nil
				}
			}
		}

		p.log.Warn("Lease lost, re-registering", logger.Fields(logger.FieldInstance, reg.info.ID))
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.cfg.RetryInterval):
		}

		ch, err := p.put(ctx, ctx, reg)
		if err != nil {
			p.log.Warn("Re-registration failed", logger.ErrorFields("register "+reg.info.ID, err))
			continue
		}
		keepAlive = ch
	}
}

func (r *registration) stop() {
	r.cancel()
	<-r.done
}

func (r *registration) lease() clientv3.LeaseID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaseID
}

// Deregister deletes the instance key and revokes its lease when this
// provider registered it. Unknown IDs are ignored.
func (p *Provider) Deregister(ctx context.Context, serviceID string) error {
	p.mu.Lock()
	reg := p.registered[serviceID]
	delete(p.registered, serviceID)
	p.mu.Unlock()
	if reg == nil {
		return nil
	}
	reg.stop()

	if _, err := p.kv.Delete(ctx, p.instanceKey(reg.info.Name, serviceID)); err != nil {
		return fmt.Errorf("etcd deregister %q: %w", serviceID, err)
	}
	if id := reg.lease(); id != clientv3.NoLease {
		if _, err := p.lease.Revoke(ctx, id); err != nil {
			p.log.Debug("Lease revoke failed", logger.ErrorFields("revoke "+serviceID, err))
		}
	}
	return nil
}

// Lookup returns the instances under name's prefix.
func (p *Provider) Lookup(ctx context.Context, name string) ([]discovery.ServiceInstance, error) {
	resp, err := p.kv.Get(ctx, p.instancesPrefix(name), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("etcd lookup %q: %w", name, err)
	}

	out := make([]discovery.ServiceInstance, 0, len(resp.Kvs))
	if len(resp.Kvs) == 0 {
		marker, err := p.kv.Get(ctx, p.serviceKey(name), clientv3.WithCountOnly())
		if err != nil {
			return nil, fmt.Errorf("etcd lookup %q: %w", name, err)
		}
		if marker.Count == 0 {
			return nil, fmt.Errorf("%w: %s", discovery.ErrServiceNotFound, name)
		}
		return out, nil
	}

	for _, kv := range resp.Kvs {
		var inst discovery.ServiceInstance
		if err := json.Unmarshal(kv.Value, &inst); err != nil {
			p.log.Warn("Skipping undecodable instance", logger.ErrorFields("decode "+string(kv.Key), err))
			continue
		}
		if inst.ID == "" {
			inst.ID = strings.TrimPrefix(string(kv.Key), p.instancesPrefix(name))
		}
		out = append(out, inst)
	}
	return out, nil
}

// Close stops keep-alives and closes the client. Registered keys expire
// with their leases.
func (p *Provider) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	regs := p.registered
	p.registered = make(map[string]*registration)
	p.mu.Unlock()

	for _, reg := range regs {
		reg.stop()
	}
	if p.closer != nil {
		return p.closer.Close()
	}
	return nil
}
