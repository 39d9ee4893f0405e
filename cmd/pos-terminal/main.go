package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"pos-terminal/internal/app/receipts"
	"pos-terminal/internal/app/terminal"
	"pos-terminal/internal/common/logger"
	"pos-terminal/internal/config"
)

func main() {
	mode := flag.String("mode", "", "terminal-service | receipt-subscriber")
	cfgPath := flag.String("config", "", "path to config.yaml (default: ./config.yaml)")
	port := flag.Int("port", 0, "terminal-service: http port, overrides terminal.port")
	flag.Parse()

	lg := logger.New("bootstrap")
	defer lg.Sync()
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	path := *cfgPath
	if path == "" {
		p, err := config.FindConfig()
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			lg.Error("fatal", err, nil)
			os.Exit(1)
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		lg.Error("config_load_failed", err, map[string]any{"path": path})
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Terminal.Port = *port
	}

	switch *mode {
	case "terminal-service":
		lg.Info("service_started", map[string]any{"service": "terminal-service", "port": cfg.Terminal.Port, "terminal_id": cfg.Terminal.ID})
		if err := terminal.Run(ctx, cfg, logger.New("terminal-service")); err != nil {
			lg.Error("fatal", err, nil)
			os.Exit(1)
		}
	case "receipt-subscriber":
		lg.Info("service_started", map[string]any{"service": "receipt-subscriber"})
		if err := receipts.Run(ctx, cfg, logger.New("receipt-subscriber")); err != nil {
			lg.Error("fatal", err, nil)
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, "--mode is required: terminal-service | receipt-subscriber")
		os.Exit(2)
	}
}
