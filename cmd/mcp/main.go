package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/richard-senior/matchpredictor/internal/app"
	"github.com/richard-senior/matchpredictor/internal/logger"
	"github.com/richard-senior/matchpredictor/pkg/config"
	"github.com/richard-senior/matchpredictor/pkg/server"
	"github.com/richard-senior/matchpredictor/pkg/transport"
)

// Runs the predictor as an MCP server over stdin and stdout
func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Failed to load config", err)
	}
	if *debug {
		cfg.Log.Level = "debug"
	}
	// stdout carries the protocol
	if cfg.Log.Output != "file" {
		cfg.Log.Output = "file"
	}

	a, err := app.Open(cfg)
	if err != nil {
		logger.Fatal("Failed to start", err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s := server.New(transport.NewStdioTransport(), a.Service, "Upcoming predictions")
	if err := s.Serve(ctx); err != nil {
		logger.Error("MCP server error", err)
		os.Exit(1)
	}
	logger.Info("MCP server shutting down")
}
