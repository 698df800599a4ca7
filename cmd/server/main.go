package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/zappabad/stockpond/internal/app"
	"github.com/zappabad/stockpond/internal/config"
	"github.com/zappabad/stockpond/internal/logging"
	"github.com/zappabad/stockpond/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	addr := flag.String("addr", "", "listen address, overrides server.addr")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if err := logging.Setup(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "setup logging: %v\n", err)
		os.Exit(1)
	}
	defer logx.Close()

	// Create context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg, app.Options{})
	if err != nil {
		logx.Errorf("build app: %v", err)
		os.Exit(1)
	}
	defer a.Close()

	srv := server.New(cfg.Server, a.Playback, a.Notices, a.Catalog)
	if err := srv.Run(ctx); err != nil {
		logx.Errorf("server: %v", err)
		os.Exit(1)
	}
	logx.Info("shutdown complete")
}
