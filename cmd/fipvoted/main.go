package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fipvote/config"
	"fipvote/native/votes"
	"fipvote/observability"
	"fipvote/observability/logging"
	"fipvote/oracle"
	"fipvote/server"
	"fipvote/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "path to service configuration")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("FIPVOTE_ENV"))
	logger := logging.Setup("fipvoted", env)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Error("load config", "err", err)
		os.Exit(1)
	}
	if env == "" && cfg.Env != "" {
		logger = logging.Setup("fipvoted", cfg.Env)
	}

	starters, err := cfg.Starters()
	if err != nil {
		logger.Error("parse bootstrap starters", "err", err)
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DBPath)
	if err != nil {
		logger.Error("open database", "path", cfg.DBPath, "err", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	chain, err := oracle.New(ctx, oracle.Config{
		MainnetURL:     cfg.Chain.MainnetRPC,
		CalibrationURL: cfg.Chain.CalibrationRPC,
		Timeout:        cfg.Chain.OracleTimeout(),
	})
	if err != nil {
		logger.Error("dial chain endpoints", "err", err)
		os.Exit(1)
	}
	defer chain.Close()

	engine := votes.NewEngine(db, chain)
	engine.SetMetrics(observability.Metrics())
	if err := engine.SeedStarters(starters); err != nil {
		logger.Error("seed vote starters", "err", err)
		os.Exit(1)
	}

	api := server.New(server.Config{
		Engine:     engine,
		Oracle:     chain,
		VoteLength: cfg.VoteLengthSeconds,
		Log:        logger,
	})

	httpServer := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      api.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		logger.Error("listen", "address", cfg.ListenAddress, "err", err)
		os.Exit(1)
	}

	go func() {
		logger.Info("listening", "address", listener.Addr().String(), "vote_length", cfg.VoteLengthSeconds)
		if serveErr := httpServer.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			logger.Error("serve", "err", serveErr)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", "err", err)
	}
}
