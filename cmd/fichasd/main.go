package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joseph-ayodele/fichas-scanner/internal/app"
	"github.com/joseph-ayodele/fichas-scanner/internal/common"
	"github.com/joseph-ayodele/fichas-scanner/internal/server"
)

func main() {
	configPath := flag.String("config", "", "TOML config file (env vars override it)")
	addr := flag.String("addr", "", "gRPC listen address (overrides GRPC_ADDR)")
	flag.Parse()

	cfg, err := common.LoadConfigFile(*configPath)
	if err != nil {
		common.NewLogger(common.LogConfig{}, os.Stderr).Error("failed to load config", "error", err)
		os.Exit(2)
	}
	if *addr != "" {
		cfg.Server.GRPCAddr = *addr
	}
	logger := common.NewLogger(cfg.Log, os.Stdout)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start scanner", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := a.HealthCheck(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("DB health OK")

	grpcServer, healthServer := a.GRPCServer()
	if err := server.Serve(ctx, grpcServer, healthServer, cfg.Server.GRPCAddr, logger); err != nil {
		logger.Error("grpc serve failed", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}
