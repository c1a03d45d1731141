package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/quantdesk/backtesting-backend/internal/binance"
	"github.com/quantdesk/backtesting-backend/internal/collector"
	"github.com/quantdesk/backtesting-backend/internal/config"
	"github.com/quantdesk/backtesting-backend/internal/logger"
	"github.com/quantdesk/backtesting-backend/internal/marketdata"
	"github.com/quantdesk/backtesting-backend/internal/migrations"
	"github.com/quantdesk/backtesting-backend/internal/postgres"
)

func main() {
	cfgPath := flag.String("config", "./configs/collector.yaml", "path to collector config")
	once := flag.Bool("once", false, "run a single batch and exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("can't detect .env file")
	}

	cfg, err := config.LoadCollectorConfig(*cfgPath)
	if err != nil {
		log.Fatalf("%s: can't load config", err)
	}

	zapLogger, loggerSync, err := logger.NewZapLogger(logger.ParseLevel(cfg.LogLevel))
	if err != nil {
		log.Fatalf("%s: can't init logger", err)
	}
	defer loggerSync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pgConfig := postgres.NewConfigFromEnv().Setup()
	zapLogger.Debugf("trying to connect to db with: %s", pgConfig)
	db, err := postgres.NewDB(pgConfig)
	if err != nil {
		zapLogger.Fatalf("%s: can't connect to db", err)
	}
	defer db.Close()

	if err := migrations.Apply(ctx, db); err != nil {
		zapLogger.Fatalf("%s: can't apply migrations", err)
	}

	client := binance.NewClient(cfg.Binance, zapLogger)
	defer client.Close()

	store := marketdata.NewStore(db, zapLogger)
	c := collector.New(client, store, cfg, zapLogger)

	if *once {
		if err := c.CollectOnce(ctx); err != nil {
			zapLogger.Fatalf("%s: batch failed", err)
		}
		zapLogger.Infof("batch finished")
		return
	}

	zapLogger.Infof("collector running with cron %q", cfg.CronSpec)
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		zapLogger.Errorf("%s: collector stopped", err)
	}

	zapLogger.Infof("collector shut down")
}
