// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

/*
Package supervisor runs the long-lived parts of adlink under suture v4.

The tree has one child supervisor per layer:

	RootSupervisor ("adlink")
	├── DataSupervisor ("data-layer")
	│   └── LifecycleService "pending-reaper"
	├── MessagingSupervisor ("messaging-layer")
	│   └── EventAuditService (gochannel events backend only)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Each layer counts failures independently, so a consumer that keeps
crashing backs off on its own while the API keeps serving. Supervisor
events (start, panic, backoff, stop timeout) are logged through
sutureslog.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
	    ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddDataService(services.NewLifecycleService("pending-reaper", reaper))
	tree.AddAPIService(services.NewHTTPServerService(srv, cfg.Addr(), cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = tree.Serve(ctx)

Refresh sweeps are not supervised here. They run on demand from the
/cron/{platform}-refresh endpoints, driven by an external scheduler.

See package services for the individual wrappers.
*/
package supervisor
