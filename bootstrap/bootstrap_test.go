package bootstrap

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/meshnode/component"
	"github.com/kbukum/meshnode/config"
	"github.com/kbukum/meshnode/logger"
)

type testConfig struct {
	config.ServiceConfig
}

type mockComponent struct {
	name     string
	startErr error
	stopErr  error
	health   component.Health
	started  bool
	stopped  bool
}

func (m *mockComponent) Name() string { return m.name }

func (m *mockComponent) Start(ctx context.Context) error {
	m.started = m.startErr == nil
	return m.startErr
}

func (m *mockComponent) Stop(ctx context.Context) error {
	m.stopped = true
	return m.stopErr
}

func (m *mockComponent) Health(ctx context.Context) component.Health { return m.health }

func newTestApp(t *testing.T, opts ...Option) *App[*testConfig] {
	t.Helper()
	cfg := &testConfig{ServiceConfig: config.ServiceConfig{Name: "service1", Version: "1.2.3"}}
	app, err := NewApp(cfg, append([]Option{WithLogger(logger.NewNop())}, opts...)...)
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	return app
}

func healthy(name string) *mockComponent {
	return &mockComponent{name: name, health: component.Health{Name: name, Status: component.StatusHealthy}}
}

func TestNewApp(t *testing.T) {
	app := newTestApp(t)
	if app.Name != "service1" || app.Version != "1.2.3" {
		t.Errorf("Name/Version = %q/%q", app.Name, app.Version)
	}
	if app.Cfg.Environment != "development" {
		t.Errorf("defaults not applied: %+v", app.Cfg.ServiceConfig)
	}
	if app.gracefulTimeout != DefaultGracefulTimeout {
		t.Errorf("gracefulTimeout = %v", app.gracefulTimeout)
	}
}

func TestNewAppValidation(t *testing.T) {
	if _, err := NewApp(&testConfig{}); err == nil {
		t.Error("expected error for missing name")
	}
}

func TestNewAppInitializesLoggerFromConfig(t *testing.T) {
	prev := logger.GetGlobalLogger()
	defer logger.SetGlobalLogger(prev)

	cfg := &testConfig{ServiceConfig: config.ServiceConfig{Name: "service1"}}
	app, err := NewApp(cfg)
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	if app.Logger == nil || app.Logger != logger.GetGlobalLogger() {
		t.Error("expected app logger to be the initialized global logger")
	}
}

func TestWithGracefulTimeout(t *testing.T) {
	app := newTestApp(t, WithGracefulTimeout(3*time.Second))
	if app.gracefulTimeout != 3*time.Second {
		t.Errorf("gracefulTimeout = %v", app.gracefulTimeout)
	}
}

func TestReadyCheck(t *testing.T) {
	app := newTestApp(t)
	if err := app.ReadyCheck(context.Background()); err != nil {
		t.Errorf("empty app should be ready: %v", err)
	}

	app.RegisterComponent(healthy("registry"))
	app.RegisterComponent(&mockComponent{name: "resolver", health: component.Health{
		Name: "resolver", Status: component.StatusDegraded, Message: "serving stale",
	}})
	if err := app.ReadyCheck(context.Background()); err != nil {
		t.Errorf("degraded should not block readiness: %v", err)
	}

	app.RegisterComponent(&mockComponent{name: "server", health: component.Health{
		Name: "server", Status: component.StatusUnhealthy, Message: "not listening",
	}})
	err := app.ReadyCheck(context.Background())
	if err == nil || !strings.Contains(err.Error(), "server (not listening)") {
		t.Errorf("ReadyCheck() = %v", err)
	}
}

func TestStartAndShutdownRunHooksInOrder(t *testing.T) {
	app := newTestApp(t)
	c := healthy("resolver")
	app.RegisterComponent(c)

	var calls []string
	record := func(name string) Hook {
		return func(ctx context.Context) error {
			calls = append(calls, name)
			return nil
		}
	}
	app.OnStart(record("start"))
	app.OnReady(record("ready"))
	app.OnStop(record("stop"))

	if err := app.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !c.started {
		t.Error("component not started")
	}
	if err := app.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if !c.stopped {
		t.Error("component not stopped")
	}
	if !slices.Equal(calls, []string{"start", "ready", "stop"}) {
		t.Errorf("hook order = %v", calls)
	}
}

func TestStartHookErrorStopsSequence(t *testing.T) {
	app := newTestApp(t)
	readyRan := false
	app.OnStart(func(ctx context.Context) error { return errors.New("boom") })
	app.OnReady(func(ctx context.Context) error { readyRan = true; return nil })

	err := app.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "start hook 0") {
		t.Fatalf("Start() = %v", err)
	}
	if readyRan {
		t.Error("ready hook must not run after a failed start hook")
	}
}

func TestShutdownJoinsErrors(t *testing.T) {
	app := newTestApp(t)
	stopErr := errors.New("stop failed")
	hookErr := errors.New("hook failed")
	app.RegisterComponent(&mockComponent{name: "server", stopErr: stopErr})
	app.OnStop(func(ctx context.Context) error { return hookErr })

	if err := app.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	err := app.Shutdown(context.Background())
	if !errors.Is(err, stopErr) || !errors.Is(err, hookErr) {
		t.Errorf("Shutdown() = %v, want both errors", err)
	}
}

func TestRunReturnsOnContextCancel(t *testing.T) {
	app := newTestApp(t)
	c := healthy("server")
	app.RegisterComponent(c)

	ctx, cancel := context.WithCancel(context.Background())
	app.OnReady(func(context.Context) error { cancel(); return nil })

	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if !c.stopped {
		t.Error("component not stopped on shutdown")
	}
}

func TestRunComponentStartError(t *testing.T) {
	app := newTestApp(t)
	first := healthy("registry")
	app.RegisterComponent(first)
	app.RegisterComponent(&mockComponent{name: "resolver", startErr: errors.New("no registry")})

	err := app.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "resolver") {
		t.Fatalf("Run() = %v", err)
	}
	if !first.stopped {
		t.Error("already started component should be stopped")
	}
}
