// Package bootstrap wires a mesh node process together: it applies config
// defaults, initializes the logger, starts registered components in order,
// runs lifecycle hooks and shuts everything down on SIGINT/SIGTERM.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.RegisterComponent(registryComponent)
//	app.RegisterComponent(serverComponent)
//	app.OnStop(func(ctx context.Context) error { return telemetry.Shutdown(ctx) })
//	err = app.Run(context.Background())
package bootstrap
