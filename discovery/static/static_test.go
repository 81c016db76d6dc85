package static

import (
	"context"
	"errors"
	"testing"

	"github.com/kbukum/meshnode/discovery"
)

func TestNewProviderFromEndpoints(t *testing.T) {
	p := NewProvider([]discovery.StaticEndpoint{
		{Name: "service2", Address: "10.0.0.2", Port: 8081},
		{Name: "service2", ID: "b", Address: "10.0.0.3", Port: 8081, Unhealthy: true},
	})

	got, err := p.Lookup(context.Background(), "service2")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d instances", len(got))
	}
	if got[0].ID != "service2-10.0.0.2-8081" || got[0].Health != discovery.HealthHealthy {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].ID != "b" || got[1].Health != discovery.HealthUnhealthy {
		t.Errorf("second = %+v", got[1])
	}
}

func TestRegisterReplacesByID(t *testing.T) {
	p := NewProvider(nil)
	ctx := context.Background()

	p.Register(ctx, &discovery.ServiceInfo{ID: "a", Name: "service2", Address: "10.0.0.2", Port: 8081})
	p.Register(ctx, &discovery.ServiceInfo{ID: "a", Name: "service2", Address: "10.0.0.2", Port: 9090})

	got, _ := p.Lookup(ctx, "service2")
	if len(got) != 1 || got[0].Port != 9090 {
		t.Errorf("instances = %+v", got)
	}

	if err := p.Register(ctx, &discovery.ServiceInfo{ID: "x"}); !errors.Is(err, discovery.ErrInvalidServiceName) {
		t.Errorf("Register(no name) = %v", err)
	}
}

func TestDeregisterKeepsNameKnown(t *testing.T) {
	p := NewProvider([]discovery.StaticEndpoint{{Name: "service2", ID: "a", Address: "10.0.0.2", Port: 8081}})
	ctx := context.Background()

	if err := p.Deregister(ctx, "a"); err != nil {
		t.Fatalf("Deregister: %v", err)
	}
	got, err := p.Lookup(ctx, "service2")
	if err != nil || len(got) != 0 {
		t.Errorf("Lookup() = %v, %v; want empty set", got, err)
	}

	if _, err := p.Lookup(ctx, "nobody"); !errors.Is(err, discovery.ErrServiceNotFound) {
		t.Errorf("Lookup(unknown) = %v", err)
	}
}

func TestLookupReturnsCopy(t *testing.T) {
	p := NewProvider([]discovery.StaticEndpoint{{Name: "service2", ID: "a", Address: "10.0.0.2", Port: 8081}})
	got, _ := p.Lookup(context.Background(), "service2")
	got[0].Port = 1

	again, _ := p.Lookup(context.Background(), "service2")
	if again[0].Port != 8081 {
		t.Error("Lookup result aliases provider state")
	}
}

func TestFailLookupsAndCounting(t *testing.T) {
	p := NewProvider([]discovery.StaticEndpoint{{Name: "service2", ID: "a", Address: "10.0.0.2", Port: 8081}})
	ctx := context.Background()
	boom := errors.New("registry down")

	p.FailLookups(boom)
	if _, err := p.Lookup(ctx, "service2"); !errors.Is(err, boom) {
		t.Errorf("Lookup() = %v, want %v", err, boom)
	}
	p.FailLookups(nil)
	if _, err := p.Lookup(ctx, "service2"); err != nil {
		t.Errorf("Lookup() after recovery = %v", err)
	}
	if n := p.Lookups("service2"); n != 2 {
		t.Errorf("Lookups = %d, want 2", n)
	}

	p.SetHealth("a", discovery.HealthUnhealthy)
	got, _ := p.Lookup(ctx, "service2")
	if got[0].Health != discovery.HealthUnhealthy {
		t.Errorf("SetHealth not applied: %+v", got[0])
	}
}
