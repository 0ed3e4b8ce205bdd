package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"finadvisor/internal/amqp"
	"finadvisor/internal/backend"
	"finadvisor/internal/cli"
	"finadvisor/internal/config"
	applog "finadvisor/internal/log"
	"finadvisor/internal/worker"
)

func main() {
	cfg, logger, err := cli.Bootstrap(applog.ComponentWorker, (*config.Config).ValidateMirror)
	if err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	if err := run(cfg, logger); err != nil {
		logger.Error("Mirror worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Mirror worker shutdown complete")
}

func run(cfg *config.Config, logger *applog.Logger) error {
	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	factory := backend.NewFactory(logger.Logger)

	mirrorCfg, err := backend.MirrorFromAppConfig(cfg)
	if err != nil {
		return err
	}
	mirror, err := factory.CreateBackend(ctx, mirrorCfg)
	if err != nil {
		return err
	}
	defer mirror.Close()

	// The primary store is only read, to catch up on events missed while down
	var source *backend.BackendResult
	if sourceCfg, err := backend.FromAppConfig(cfg); err == nil && sourceCfg.Type != backend.MemoryBackend {
		if source, err = factory.CreateBackend(ctx, sourceCfg); err != nil {
			logger.Warn("Primary store unavailable, skipping startup reconcile", applog.FieldError, err)
			source = nil
		} else {
			defer source.Close()
		}
	}

	var w *worker.MirrorWorker
	if source != nil {
		w = worker.NewMirrorWorker(mirror.Backend, source.Backend)
	} else {
		w = worker.NewMirrorWorker(mirror.Backend, nil)
	}

	logger.Info("Starting finadvisor-mirror",
		"mirror", mirror.Type.String(),
		"source", cfg.DataBackend)

	if err := w.StartupReconcile(ctx); err != nil {
		// Events still flow, the next reconcile catches up
		logger.Error("Startup reconcile failed", applog.FieldOperation, applog.OpMirror, applog.FieldError, err)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return err
	}
	defer client.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := client.ConsumeTransactionUpserted(gctx, w.HandleTransactionUpserted)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	return g.Wait()
}
