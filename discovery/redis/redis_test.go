package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/meshnode/discovery"
	"github.com/kbukum/meshnode/logger"
)

func newTestProvider(t *testing.T) (*Provider, *miniredis.Miniredis) {
	t.Helper()
	mini := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { rdb.Close() })

	p := NewProviderWithClient(rdb, Config{
		KeyPrefix:         "test",
		InstanceTTL:       time.Second,
		HeartbeatInterval: 20 * time.Millisecond,
	}, logger.NewNop())
	t.Cleanup(func() { p.Close() })
	return p, mini
}

func info(id string, port int) *discovery.ServiceInfo {
	return &discovery.ServiceInfo{ID: id, Name: "service2", Address: "10.0.0.2", Port: port, Scheme: "http"}
}

func TestRegisterAndLookup(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()

	if err := p.Register(ctx, info("a", 8081)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := p.Register(ctx, info("b", 8082)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := p.Lookup(ctx, "service2")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d instances: %+v", len(got), got)
	}
	for _, inst := range got {
		if inst.Name != "service2" || inst.Health != discovery.HealthHealthy {
			t.Errorf("unexpected instance %+v", inst)
		}
	}
}

func TestLookupUnknownVersusEmpty(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()

	if _, err := p.Lookup(ctx, "service2"); !errors.Is(err, discovery.ErrServiceNotFound) {
		t.Fatalf("unknown name: Lookup() = %v", err)
	}

	p.Register(ctx, info("a", 8081))
	if err := p.Deregister(ctx, "a"); err != nil {
		t.Fatalf("Deregister: %v", err)
	}

	got, err := p.Lookup(ctx, "service2")
	if err != nil {
		t.Fatalf("known name: Lookup() = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty set after deregister, got %+v", got)
	}
}

func TestDeregisterUnknownID(t *testing.T) {
	p, _ := newTestProvider(t)
	if err := p.Deregister(context.Background(), "ghost"); err != nil {
		t.Errorf("Deregister(unknown) = %v", err)
	}
}

func TestExpiredInstanceIsPruned(t *testing.T) {
	p, mini := newTestProvider(t)
	ctx := context.Background()

	p.Register(ctx, info("a", 8081))
	// Stop heartbeats without deregistering, as a crashed node would.
	p.Close()
	mini.FastForward(2 * time.Second)

	got, err := p.Lookup(ctx, "service2")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expired instance returned: %+v", got)
	}
	members, _ := mini.Members(p.indexKey("service2"))
	if len(members) != 0 {
		t.Errorf("index not pruned: %v", members)
	}
}

func TestRegisterAfterCloseWritesNothing(t *testing.T) {
	p, mini := newTestProvider(t)
	p.Close()

	err := p.Register(context.Background(), info("a", 8081))
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("Register() = %v, want ErrClosed", err)
	}
	if mini.Exists(p.instanceKey("service2", "a")) {
		t.Error("instance key written after Close")
	}
	if members, _ := mini.Members(p.indexKey("service2")); len(members) != 0 {
		t.Errorf("index written after Close: %v", members)
	}
}

func TestHeartbeatRefreshesTTL(t *testing.T) {
	p, mini := newTestProvider(t)
	p.Register(context.Background(), info("a", 8081))

	key := p.instanceKey("service2", "a")
	mini.FastForward(600 * time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if mini.TTL(key) > 900*time.Millisecond {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("heartbeat did not refresh TTL, now %v", mini.TTL(key))
}

func TestLookupUnreachable(t *testing.T) {
	p, mini := newTestProvider(t)
	mini.Close()

	_, err := p.Lookup(context.Background(), "service2")
	if err == nil || errors.Is(err, discovery.ErrServiceNotFound) {
		t.Errorf("Lookup() = %v, want connection error", err)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{InstanceTTL: time.Second, HeartbeatInterval: 2 * time.Second}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when heartbeat is not shorter than TTL")
	}

	cfg = Config{}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
	if cfg.HeartbeatInterval != 10*time.Second {
		t.Errorf("HeartbeatInterval = %v", cfg.HeartbeatInterval)
	}
}
