package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/sirupsen/logrus"

	"github.com/matheuscscp/jwks-fixture/internal/config"
	"github.com/matheuscscp/jwks-fixture/internal/constants"
	"github.com/matheuscscp/jwks-fixture/internal/logging"
	"github.com/matheuscscp/jwks-fixture/internal/server"
)

const shutdownTimeout = 10 * time.Second

type CLI struct {
	Config   string `help:"Path to the YAML config file." env:"JWKS_FIXTURE_CONFIG" type:"path"`
	Addr     string `help:"Address to listen on, overrides server.addr."`
	LogLevel string `help:"Log level." env:"LOG_LEVEL" default:"info"`
}

func (cli *CLI) Run(ctx context.Context) error {
	if err := logging.SetLevel(cli.LogLevel); err != nil {
		return err
	}

	conf, err := config.Load(cli.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cli.Addr != "" {
		conf.Server.Addr = cli.Addr
	}

	s, err := server.New(conf)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.WithField("addr", s.Addr).Info("serving")
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logrus.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var cli CLI
	cliCtx := kong.Parse(&cli,
		kong.Name(constants.JWKSFixture),
		kong.Description("Minimal identity provider that publishes a JWKS and mints valid or expired tokens."))
	cliCtx.BindTo(ctx, (*context.Context)(nil))

	if err := cliCtx.Run(); err != nil {
		logrus.WithError(err).Error("failed to run")
		os.Exit(1)
	}
}
