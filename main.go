package main

import (
	"context"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"

	"github.com/rise-and-shine/filesmanager/cfgloader"
	"github.com/rise-and-shine/filesmanager/internal/app"
	"github.com/rise-and-shine/filesmanager/meta"
	"github.com/rise-and-shine/filesmanager/observability/alert"
	"github.com/rise-and-shine/filesmanager/observability/logger"
	"github.com/rise-and-shine/filesmanager/observability/tracing"
)

func main() {
	cfg := cfgloader.MustLoad[app.Config]()

	logger.SetGlobal(cfg.Logger)
	meta.SetServiceInfo(cfg.Service.Name, cfg.Service.Version)

	shutdownTracer, err := tracing.InitGlobalTracer(cfg.Tracing)
	if err != nil {
		logger.Fatalx(err)
	}

	if err = alert.SetGlobal(cfg.Alert, cfg.Service.Name, cfg.Service.Version); err != nil {
		// alerts are best-effort, the no-op provider stays installed
		logger.Named("main").Warnf("alerting disabled: %v", err)
	}

	ctx := context.Background()

	application, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatalx(err)
	}

	runCtx, stop := context.WithCancel(ctx)
	application.Start(runCtx)

	exitCode := <-gfshutdown.GracefulShutdown(ctx, cfg.ShutdownTimeout, map[string]gfshutdown.Operation{
		"application": func(ctx context.Context) error {
			defer stop()
			return application.Shutdown(ctx)
		},
		"tracer": shutdownTracer,
	})

	_ = logger.Sync()
	os.Exit(exitCode)
}
