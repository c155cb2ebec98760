package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rapidcluster/rapid/internal/config"
	"github.com/rapidcluster/rapid/internal/core/observability/log"
	"github.com/rapidcluster/rapid/internal/injector"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the node's YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Println("Error loading config:", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Println("Invalid config:", err)
		os.Exit(1)
	}

	node, err := injector.InitializeNode(cfg)
	if err != nil {
		fmt.Println("Error constructing node:", err)
		os.Exit(1)
	}
	logger := log.New(log.LevelInfo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := node.Server.ListenAndServe(ctx, cfg.ListenAddress()); err != nil && ctx.Err() == nil {
			logger.Error("wsrpc server stopped", log.ErrorWithKey("cause", err))
		}
	}()

	metadata := cfg.StartupMetadata()
	if seed, ok := cfg.SeedEndpoint(); ok {
		joinCtx, joinCancel := context.WithTimeout(ctx, time.Minute)
		err := node.Service.Join(joinCtx, seed, metadata)
		joinCancel()
		if err != nil {
			logger.Error("failed to join cluster", log.ErrorWithKey("cause", err))
			cancel()
			os.Exit(1)
		}
		logger.Info("joined cluster", log.String("seed", seed.String()))
	} else {
		node.Service.StartSeed(metadata)
		logger.Info("started as seed", log.String("self", cfg.SelfEndpoint().String()))
	}

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM)
	<-stopCh

	node.Service.Leave()
	node.Service.Shutdown()
	cancel()
}
