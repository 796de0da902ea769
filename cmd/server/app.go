// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/adlink/internal/api"
	"github.com/tomtom215/adlink/internal/auth"
	"github.com/tomtom215/adlink/internal/codec"
	"github.com/tomtom215/adlink/internal/config"
	"github.com/tomtom215/adlink/internal/events"
	"github.com/tomtom215/adlink/internal/logging"
	"github.com/tomtom215/adlink/internal/oauth"
	"github.com/tomtom215/adlink/internal/providers"
	"github.com/tomtom215/adlink/internal/scheduler"
	"github.com/tomtom215/adlink/internal/store"
	"github.com/tomtom215/adlink/internal/supervisor"
	"github.com/tomtom215/adlink/internal/supervisor/services"
)

const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 60 * time.Second
)

// app holds everything main wires together.
type app struct {
	cfg       *config.Config
	store     store.Store
	publisher events.Publisher
	router    http.Handler
	tree      *supervisor.SupervisorTree
}

// eventPipe is the configured publisher plus, for the in-process backend,
// the subscriber side and its topics.
type eventPipe struct {
	publisher  events.Publisher
	subscriber message.Subscriber
	topics     []string
}

func openEvents(cfg config.EventsConfig) (*eventPipe, error) {
	if cfg.Backend == "gochannel" {
		pub, ch := events.NewGoChannel(cfg.TopicPrefix)
		return &eventPipe{publisher: pub, subscriber: ch, topics: pub.Topics()}, nil
	}
	pub, err := events.FromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &eventPipe{publisher: pub}, nil
}

// newApp builds every component from cfg. Resources opened before a failure
// are released before it returns.
func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	var closers []func() error
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				_ = closers[i]() //nolint:errcheck // already returning err
			}
		}
	}()

	secrets, err := codec.New(codec.Config{
		MasterKey: cfg.Security.EncryptionKey,
		Context:   cfg.Security.EncryptionContext,
	})
	if err != nil {
		return nil, fmt.Errorf("secret codec: %w", err)
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	closers = append(closers, st.Close)

	registry, err := providers.FromConfig(&cfg.Providers, nil)
	if err != nil {
		return nil, fmt.Errorf("providers: %w", err)
	}
	if len(registry.Platforms()) == 0 {
		logging.Warn().Msg("No ad platform is enabled; every connect request will fail")
	}

	pipe, err := openEvents(cfg.Events)
	if err != nil {
		return nil, fmt.Errorf("events: %w", err)
	}
	closers = append(closers, pipe.publisher.Close)

	security := logging.NewSecurityLogger()
	svc, err := oauth.NewService(oauth.Deps{
		Codec:     secrets,
		Providers: registry,
		Store:     st,
		Policies:  oauth.PoliciesFromConfig(&cfg.Providers),
		Publisher: pipe.publisher,
		Security:  security,
	})
	if err != nil {
		return nil, err
	}

	sessions, err := auth.NewSessionManager(cfg.Security.SessionSecret, cfg.Security.SessionCookieName)
	if err != nil {
		return nil, err
	}

	handler, err := api.NewHandler(api.Dependencies{
		Service:  svc,
		Sweeper:  scheduler.NewSweeper(svc, st, scheduler.ConfigFromScheduler(cfg.Scheduler)),
		Store:    st,
		Sessions: sessions,
		Config:   cfg,
		Security: security,
	})
	if err != nil {
		return nil, err
	}
	router := api.NewRouter(handler, api.NewLimits(api.MiddlewareConfigFromSecurity(&cfg.Security))).Setup()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("supervisor tree: %w", err)
	}

	reaper := scheduler.NewReaper(st, cfg.Scheduler.PendingReapInterval, nil)
	tree.AddDataService(services.NewLifecycleService("pending-reaper", reaper))

	if pipe.subscriber != nil {
		tree.AddMessagingService(services.NewEventAuditService(pipe.subscriber, pipe.topics, logging.WithComponent("event-audit")))
	}

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       idleTimeout,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Addr(), cfg.Server.ShutdownTimeout))

	logging.Info().
		Str("addr", cfg.Addr()).
		Str("environment", cfg.Server.Environment).
		Str("store", cfg.Store.Driver).
		Str("events", cfg.Events.Backend).
		Strs("platforms", platformNames(registry.Platforms())).
		Msg("Components initialized")

	return &app{
		cfg:       cfg,
		store:     st,
		publisher: pipe.publisher,
		router:    router,
		tree:      tree,
	}, nil
}

// Close releases the publisher and the store, in that order.
func (a *app) Close() error {
	return errors.Join(a.publisher.Close(), a.store.Close())
}
