// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/tomtom215/adlink/docs" // Import generated swagger docs
	"github.com/tomtom215/adlink/internal/codec"
	"github.com/tomtom215/adlink/internal/config"
	"github.com/tomtom215/adlink/internal/logging"
	"github.com/tomtom215/adlink/internal/models"
)

func main() {
	genKey := flag.Bool("genkey", false, "print a new TOKEN_ENCRYPTION_KEY and exit")
	flag.Parse()

	if *genKey {
		if err := printMasterKey(os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})
	logging.Info().Msg("Starting adlink with supervisor tree")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer func() {
		if err := a.Close(); err != nil {
			logging.Error().Err(err).Msg("Error releasing resources")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	run(ctx, a)
	logging.Info().Msg("Application stopped gracefully")
}

// run serves the supervisor tree until ctx ends, then reports services that
// missed the shutdown deadline.
func run(ctx context.Context, a *app) {
	errCh := a.tree.ServeBackground(ctx)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	unstopped, _ := a.tree.UnstoppedServiceReport() //nolint:errcheck // report only
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}
}

// printMasterKey writes a fresh base64 master key for the secret codec.
func printMasterKey(w io.Writer) error {
	key, err := codec.GenerateMasterKey()
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	_, err = fmt.Fprintln(w, key)
	return err
}

func platformNames(ps []models.Platform) []string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = p.String()
	}
	return names
}
