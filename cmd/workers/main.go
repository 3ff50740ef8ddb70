package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"blue-carbon/mrv-portal/mrv-portal-backend/internal/config"
	"blue-carbon/mrv-portal/mrv-portal-backend/internal/credits"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "config.json", "path to config file")
	runOnce := flag.Bool("once", false, "run a single reconciliation pass and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := zap.NewProduction()
	if err != nil {
		panic("failed to build logger: " + err.Error())
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Mongo.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, mongooptions.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		logger.Fatal("failed to connect to mongo", zap.Error(err))
	}
	db := client.Database(cfg.Mongo.Database)

	worker := NewReconcileWorker(db, credits.NewLedger(db), logger, DefaultReconcileWorkerConfig())

	if *runOnce {
		worker.Run()
		return
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Worker.ReconcileSchedule, worker.Run); err != nil {
		logger.Fatal("invalid reconcile schedule",
			zap.String("schedule", cfg.Worker.ReconcileSchedule), zap.Error(err))
	}
	scheduler.Start()
	logger.Info("reconcile worker started",
		zap.String("schedule", cfg.Worker.ReconcileSchedule))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	stopCtx := scheduler.Stop()
	<-stopCtx.Done()
	if err := client.Disconnect(context.Background()); err != nil {
		logger.Error("failed to disconnect mongo", zap.Error(err))
	}
	logger.Info("reconcile worker stopped")
}
