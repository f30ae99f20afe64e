package main

import (
	"context"
	"dotori/app/client/messenger"
	"dotori/app/client/sheets"
	"dotori/app/config"
	"dotori/app/server"
	"dotori/app/service/knowledge"
	"dotori/app/service/lookup"
	"dotori/app/service/pipeline"
	"dotori/app/service/reply"
	"dotori/app/util/mylog"
	"log/slog"
	"os"
	"os/signal"

	"github.com/gofiber/fiber/v2/log"
	"github.com/robfig/cron/v3"
	"github.com/samber/do"
)

func main() {
	di := do.New()
	defer di.Shutdown()
	defer log.Info("Waiting for services to finish...")

	mylog.Preinit()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	do.ProvideValue(di, appCtx)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	do.ProvideValue(di, cfg)

	if err = mylog.Init(cfg); err != nil {
		log.Fatalf("logging init failed: %v", err)
	}

	do.Provide(di, sheets.NewClient)
	do.Provide(di, messenger.NewClient)
	do.Provide(di, knowledge.New)
	do.Provide(di, lookup.New)
	do.Provide(di, reply.New)
	do.Provide(di, pipeline.New)
	do.Provide(di, server.New)

	// Degraded start is allowed: the pipeline retries the load lazily
	// on the first message if the tables are still empty.
	knowledgeSvc := do.MustInvoke[*knowledge.Service](di)
	if err = knowledgeSvc.Load(appCtx); err != nil {
		slog.Error("Initial knowledge load failed, starting with empty tables", "error", err)
	}

	scheduler := cron.New()
	if _, err = scheduler.AddFunc(cfg.Knowledge.RefreshCron, func() {
		if err := knowledgeSvc.Load(appCtx); err != nil {
			slog.Error("Scheduled knowledge refresh failed", "error", err)
		}
	}); err != nil {
		log.Fatalf("invalid refresh schedule %q: %v", cfg.Knowledge.RefreshCron, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	slog.Info("Service started", "port", cfg.Server.Port)

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt)
		<-sigint

		log.Info("Shutting down...")

		cancel()
	}()

	go func() {
		if err := do.MustInvoke[*server.Service](di).Run(appCtx); err != nil {
			slog.Error("Server stopped", "error", err)
			cancel()
		}
	}()

	<-appCtx.Done()
}
