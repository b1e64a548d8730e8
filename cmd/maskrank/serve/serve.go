// Package servecmder provides the serve command running the maskrank API server.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/prefopt/maskrank/api"
	"github.com/prefopt/maskrank/pkg/config"
	"github.com/prefopt/maskrank/pkg/logger"
	"github.com/prefopt/maskrank/pkg/session/drivers"
)

type serveCommander struct {
	listen    string
	driver    string
	debug     bool
	configDir string
	logger    *zap.Logger
}

const serveLongDesc string = `Run the maskrank API server.

The server drives one learning session at a time over HTTP: create a
session from a candidate feature matrix, fetch batches of pairs to
annotate, submit preferences, and read back the ranking as it sharpens.

Listen address and session storage come from config.toml (or MASKRANK_*
environment variables); flags take precedence.

Examples:
  maskrank serve
  maskrank serve --listen :9090 --driver sqlite`

const serveShortDesc string = "Run the maskrank API server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			return cmder.run()
		},
	}

	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", "", "Address for API server to listen on")
	cmd.Flags().StringVar(&cmder.driver, "driver", "", "Session storage driver (fs, sqlite, postgres, inmemory)")

	return cmd
}

func (c *serveCommander) run() error {
	c.logger = logger.NewZap(c.debug)
	defer c.logger.Sync()

	v, err := config.InitViper(c.configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg := config.FromViper(v)

	if c.listen != "" {
		cfg.API.Listen = c.listen
	}
	if c.driver != "" {
		cfg.Sessions.Driver = c.driver
	}

	ctx := context.Background()
	store, err := drivers.NewStore(ctx, cfg.Sessions)
	if err != nil {
		return fmt.Errorf("creating session store: %w", err)
	}
	defer store.Close()

	c.logger.Info("using session storage",
		zap.String("driver", cfg.Sessions.Driver),
	)

	server := api.NewServer(
		api.Config{ListenAddr: cfg.API.Listen},
		cfg.LoopConfig(),
		store,
		c.logger,
	)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return server.Shutdown()
	}
}
