package main

import (
	"fmt"
	"os"

	"github.com/danmuck/lampd/internal/config"
	"github.com/danmuck/lampd/internal/lamp"
	"github.com/danmuck/lampd/internal/observability"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "lampd: %v\n", err)
		os.Exit(1)
	}
	logger := observability.InitLogger("lampd", cfg.LogLevel)

	svc, err := lamp.NewService(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lampd: %v\n", err)
		os.Exit(1)
	}
	if err := svc.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "lampd: %v\n", err)
		os.Exit(1)
	}
}
