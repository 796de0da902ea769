// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

/*
Package services adapts adlink components to suture.Service.

  - HTTPServerService: ListenAndServe in a goroutine, graceful Shutdown
    with its own deadline when the Serve context ends.
  - LifecycleService: Start, wait, Stop for components such as
    *scheduler.Reaper.
  - EventAuditService: subscribes to every lifecycle topic on a watermill
    subscriber and logs each event.

Every wrapper returns ctx.Err() on a clean stop and a wrapped error on
failure, which tells the supervisor to restart it with backoff.
*/
package services
