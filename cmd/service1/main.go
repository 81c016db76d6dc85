// Command service1 runs the service1 mesh node: it resolves service2
// through discovery and answers GET /service1/call-service2.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/kbukum/meshnode/bootstrap"
	"github.com/kbukum/meshnode/config"
	"github.com/kbukum/meshnode/discovery"
	"github.com/kbukum/meshnode/dispatch"
	"github.com/kbukum/meshnode/logger"
	"github.com/kbukum/meshnode/observability"
	"github.com/kbukum/meshnode/server"
	"github.com/kbukum/meshnode/service1"
	"github.com/kbukum/meshnode/version"

	_ "github.com/kbukum/meshnode/discovery/consul"
	_ "github.com/kbukum/meshnode/discovery/etcd"
	_ "github.com/kbukum/meshnode/discovery/redis"
	_ "github.com/kbukum/meshnode/discovery/static"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "service1: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var cfg Config
	if err := config.LoadConfig("service1", &cfg); err != nil {
		return err
	}
	if cfg.Version == "" {
		cfg.Version = version.Short()
	}

	app, err := bootstrap.NewApp(&cfg)
	if err != nil {
		return err
	}
	log := app.Logger

	obs := observability.NewComponent(cfg.Observability, cfg.Name, cfg.Version, cfg.Environment)
	disc := discovery.NewComponent(cfg.Discovery, cfg.providerConfig(), log)

	metrics, err := observability.NewMetrics(observability.Meter(cfg.Name))
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	dispatcher, err := dispatch.New(cfg.Dispatch, disc, metrics, log)
	if err != nil {
		return fmt.Errorf("dispatcher: %w", err)
	}

	srv := server.New(cfg.Server, log)
	srv.ApplyMiddleware(cfg.Name, metrics)
	srv.RegisterDefaultEndpoints(cfg.Name, app.Components.HealthAll)
	service1.NewHandler(cfg.Service1, dispatcher, log).Register(srv.GinEngine())

	if err := app.RegisterComponent(obs); err != nil {
		return err
	}
	if err := app.RegisterComponent(disc); err != nil {
		return err
	}
	if err := app.RegisterComponent(server.NewComponent(srv)); err != nil {
		return err
	}

	app.OnReady(func(context.Context) error {
		log.Info("Serving", logger.Fields(
			"addr", srv.Addr(),
			"route", service1.Route,
			"downstream", cfg.Service1.Downstream,
			"provider", cfg.Discovery.Provider,
			"build", version.Get().String(),
		))
		return nil
	})
	app.OnStop(func(context.Context) error {
		dispatcher.Close()
		return nil
	})

	return app.Run(ctx)
}
