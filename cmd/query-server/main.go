package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/quantdesk/backtesting-backend/internal/auth"
	"github.com/quantdesk/backtesting-backend/internal/backtest"
	"github.com/quantdesk/backtesting-backend/internal/config"
	"github.com/quantdesk/backtesting-backend/internal/logger"
	"github.com/quantdesk/backtesting-backend/internal/marketdata"
	"github.com/quantdesk/backtesting-backend/internal/migrations"
	"github.com/quantdesk/backtesting-backend/internal/postgres"
	"github.com/quantdesk/backtesting-backend/internal/server"
)

func main() {
	cfgPath := flag.String("config", "./configs/server.yaml", "path to server config")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("can't detect .env file")
	}

	cfg, err := config.LoadServerConfig(*cfgPath)
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

	engine := backtest.NewEngine(db, zapLogger)
	results := backtest.NewResultsStore(db, zapLogger)
	candles := marketdata.NewStore(db, zapLogger)
	verifier := auth.NewVerifier(cfg.JWTSecret, zapLogger)
	if verifier == nil {
		zapLogger.Warnf("JWT_SECRET is empty, token verification disabled")
	}

	handlers := server.NewHandlers(engine, results, candles, db, zapLogger)
	router := server.NewRouter(handlers, verifier, cfg.CORSAllowedOrigins, zapLogger)

	httpServer := server.NewHTTPServer(ctx, cfg.Port, router)
	zapLogger.Infof("query server listening on :%s", cfg.Port)
	if err := httpServer.Run(ctx); err != nil {
		zapLogger.Errorf("%s: server stopped", err)
	}

	zapLogger.Infof("query server shut down")
}
