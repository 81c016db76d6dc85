package etcd

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/kbukum/meshnode/discovery"
	"github.com/kbukum/meshnode/logger"
)

// fakeKV is an in-memory clientv3.KV covering Get, Put and Delete.
type fakeKV struct {
	clientv3.KV

	mu     sync.Mutex
	data   map[string]string
	getErr error
}

func newFakeKV() *fakeKV { return &fakeKV{data: make(map[string]string)} }

func (f *fakeKV) Put(_ context.Context, key, val string, _ ...clientv3.OpOption) (*clientv3.PutResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = val
	return &clientv3.PutResponse{}, nil
}

func (f *fakeKV) Get(_ context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}

	op := clientv3.OpGet(key, opts...)
	prefix := len(op.RangeBytes()) > 0

	var keys []string
	for k := range f.data {
		if k == key || (prefix && strings.HasPrefix(k, key)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	resp := &clientv3.GetResponse{Count: int64(len(keys))}
	if op.IsCountOnly() {
		return resp, nil
	}
	for _, k := range keys {
		resp.Kvs = append(resp.Kvs, &mvccpb.KeyValue{Key: []byte(k), Value: []byte(f.data[k])})
	}
	return resp, nil
}

func (f *fakeKV) Delete(_ context.Context, key string, _ ...clientv3.OpOption) (*clientv3.DeleteResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return &clientv3.DeleteResponse{}, nil
}

func (f *fakeKV) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok
}

// fakeLease hands out sequential lease IDs. Each keep-alive channel stays
// open until the test calls expire or the keep-alive context ends.
type fakeLease struct {
	clientv3.Lease

	mu      sync.Mutex
	next    clientv3.LeaseID
	grants  int
	revoked []clientv3.LeaseID
	streams map[clientv3.LeaseID]chan *clientv3.LeaseKeepAliveResponse
}

func newFakeLease() *fakeLease {
	return &fakeLease{streams: make(map[clientv3.LeaseID]chan *clientv3.LeaseKeepAliveResponse)}
}

func (f *fakeLease) Grant(_ context.Context, ttl int64) (*clientv3.LeaseGrantResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	f.grants++
	return &clientv3.LeaseGrantResponse{ID: f.next, TTL: ttl}, nil
}

func (f *fakeLease) KeepAlive(ctx context.Context, id clientv3.LeaseID) (<-chan *clientv3.LeaseKeepAliveResponse, error) {
	ch := make(chan *clientv3.LeaseKeepAliveResponse)
	f.mu.Lock()
	f.streams[id] = ch
	f.mu.Unlock()
	go func() {
		<-ctx.Done()
		f.expire(id)
	}()
	return ch, nil
}

func (f *fakeLease) Revoke(_ context.Context, id clientv3.LeaseID) (*clientv3.LeaseRevokeResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, id)
	return &clientv3.LeaseRevokeResponse{}, nil
}

// expire closes the keep-alive stream of id, as the client does when a
// lease is lost.
func (f *fakeLease) expire(id clientv3.LeaseID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.streams[id]; ok {
		close(ch)
		delete(f.streams, id)
	}
}

func (f *fakeLease) grantCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.grants
}

func newTestProvider(t *testing.T) (*Provider, *fakeKV, *fakeLease) {
	t.Helper()
	kv, lease := newFakeKV(), newFakeLease()
	p := newProvider(kv, lease, nil, Config{
		KeyPrefix:     "/test/",
		RetryInterval: 10 * time.Millisecond,
	}, logger.NewNop())
	t.Cleanup(func() { p.Close() })
	return p, kv, lease
}

func info(id string, port int) *discovery.ServiceInfo {
	return &discovery.ServiceInfo{ID: id, Name: "service2", Address: "10.0.0.2", Port: port, Scheme: "http"}
}

func TestRegisterAndLookup(t *testing.T) {
	p, kv, _ := newTestProvider(t)
	ctx := context.Background()

	for i, id := range []string{"a", "b"} {
		if err := p.Register(ctx, info(id, 8081+i)); err != nil {
			t.Fatalf("Register(%s): %v", id, err)
		}
	}
	if !kv.has("/test/services/service2") {
		t.Error("service marker not written")
	}

	got, err := p.Lookup(ctx, "service2")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d instances: %+v", len(got), got)
	}
	if got[0].ID != "a" || got[0].Port != 8081 || got[1].ID != "b" {
		t.Errorf("instances = %+v", got)
	}
	if got[0].HostPort() != "10.0.0.2:8081" {
		t.Errorf("HostPort = %s", got[0].HostPort())
	}
}

func TestLookupUnknownVersusEmpty(t *testing.T) {
	p, _, lease := newTestProvider(t)
	ctx := context.Background()

	if _, err := p.Lookup(ctx, "service2"); !errors.Is(err, discovery.ErrServiceNotFound) {
		t.Fatalf("unknown name: Lookup() = %v", err)
	}

	if err := p.Register(ctx, info("a", 8081)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := p.Deregister(ctx, "a"); err != nil {
		t.Fatalf("Deregister: %v", err)
	}

	got, err := p.Lookup(ctx, "service2")
	if err != nil {
		t.Fatalf("known name: Lookup() = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty set, got %+v", got)
	}

	lease.mu.Lock()
	defer lease.mu.Unlock()
	if len(lease.revoked) != 1 || lease.revoked[0] != 1 {
		t.Errorf("revoked = %v, want [1]", lease.revoked)
	}
}

func TestDeregisterUnknownID(t *testing.T) {
	p, _, _ := newTestProvider(t)
	if err := p.Deregister(context.Background(), "ghost"); err != nil {
		t.Errorf("Deregister(unknown) = %v", err)
	}
}

func TestLostLeaseIsReacquired(t *testing.T) {
	p, kv, lease := newTestProvider(t)
	if err := p.Register(context.Background(), info("a", 8081)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	kv.Delete(context.Background(), "/test/instances/service2/a")
	lease.expire(1)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if lease.grantCount() >= 2 && kv.has("/test/instances/service2/a") {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("instance not re-registered, grants=%d", lease.grantCount())
}

func TestLookupFailure(t *testing.T) {
	p, kv, _ := newTestProvider(t)
	kv.getErr = errors.New("connection refused")

	_, err := p.Lookup(context.Background(), "service2")
	if err == nil || errors.Is(err, discovery.ErrServiceNotFound) {
		t.Errorf("Lookup() = %v, want transport error", err)
	}
}

func TestRegisterAfterClose(t *testing.T) {
	p, _, _ := newTestProvider(t)
	p.Close()
	if err := p.Register(context.Background(), info("a", 8081)); err == nil {
		t.Error("expected error registering on a closed provider")
	}
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	cfg := Config{KeyPrefix: "/svc/"}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.KeyPrefix != "/svc" || cfg.leaseSeconds() != 30 {
		t.Errorf("cfg = %+v", cfg)
	}

	cfg = Config{KeyPrefix: "svc", LeaseTTL: 500 * time.Millisecond}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for relative prefix and sub-second lease")
	}
}
