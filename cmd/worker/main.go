package main

import (
	"log"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/yourorg/hubsync/internal/activities"
	"github.com/yourorg/hubsync/internal/app"
	"github.com/yourorg/hubsync/internal/config"
	"github.com/yourorg/hubsync/internal/logging"
	znmetrics "github.com/yourorg/hubsync/internal/metrics"
	"github.com/yourorg/hubsync/internal/types"
	"github.com/yourorg/hubsync/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config:", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("config:", err)
	}

	// Structured logger (zap)
	zl := logging.New(cfg.LogLevel)
	defer zl.Sync()

	// Metrics server
	znmetrics.Init()
	go func() {
		if err := znmetrics.Serve(cfg.MetricsAddr); err != nil {
			zl.Error("metrics server", zap.Error(err))
		}
	}()

	prov, err := app.Storage(cfg, zl)
	if err != nil {
		log.Fatal("storage:", err)
	}
	src, err := app.Registry(cfg, types.HubSource, zl)
	if err != nil {
		log.Fatal("source registry:", err)
	}
	dst, err := app.Registry(cfg, types.HubDestination, zl)
	if err != nil {
		log.Fatal("destination registry:", err)
	}

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress, Namespace: cfg.TemporalNamespace})
	if err != nil {
		log.Fatal("temporal client:", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	activities.Register(w, activities.New(activities.Config{
		Storage:     prov,
		Source:      src,
		Destination: dst,
		Log:         zl,
	}))
	w.RegisterWorkflow(workflow.SyncWorkflow)

	zl.Info("worker started",
		zap.String("namespace", cfg.TemporalNamespace),
		zap.String("taskQueue", cfg.TemporalTaskQueue),
		zap.String("source", src.Host()),
		zap.String("destination", dst.Host()),
		zap.String("metrics", cfg.MetricsAddr),
	)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatal("worker failed:", err)
	}
}
