package main

import (
	"context"
	"fmt"
	"os"

	"github.com/congo-pay/custody/internal/app"
	"github.com/congo-pay/custody/internal/config"
	"github.com/congo-pay/custody/internal/logging"
)

func main() {
	open := func(ctx context.Context) (*app.App, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		return app.New(ctx, cfg, logging.NewText(os.Stderr, cfg.LogLevel))
	}
	if err := newRootCmd(open, os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}
