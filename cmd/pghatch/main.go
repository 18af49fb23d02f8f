package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pghatch/pghatch/internal/app"
	"github.com/pghatch/pghatch/internal/config"
)

// Exit codes: 0 normal shutdown, 1 unrecoverable initialization
// failure, 2 configuration error.
const (
	exitOK          = 0
	exitInitFailure = 1
	exitConfigError = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := &cobra.Command{
		Use:          "pghatch",
		Short:        "Projects a PostgreSQL schema as an HTTP API",
		SilenceUsage: true,
	}

	exitCode := exitOK
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := serve(cmd.Context())
			exitCode = code
			return err
		},
	}
	config.BindFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if exitCode == exitOK {
			exitCode = exitInitFailure
		}
		return exitCode
	}
	return exitCode
}

func serve(ctx context.Context) (int, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return exitConfigError, err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return exitInitFailure, err
	}
	defer logger.Sync()

	srv, err := app.New(ctx, cfg, logger)
	if err != nil {
		return exitInitFailure, fmt.Errorf("initialization failed: %w", err)
	}

	if err := srv.Run(ctx); err != nil {
		return exitInitFailure, err
	}
	return exitOK, nil
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.LogFormat == "console" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zcfg.Level = level
	return zcfg.Build()
}
