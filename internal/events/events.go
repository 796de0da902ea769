// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

// Package events publishes connection lifecycle notifications so downstream
// services (reporting sync, dashboards) can react without polling.
//
// Events never carry token material. Publishing is best-effort: a failed
// publish is logged and counted, and the operation that produced the event
// still succeeds.
//
// Backends are chosen by config.EventsConfig.Backend:
//
//	none       Nop, the default
//	gochannel  in-process watermill GoChannel, for tests and single-node setups
//	nats       watermill-nats over core NATS
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/adlink/internal/models"
)

// Type names a lifecycle event. It is also the topic suffix.
type Type string

const (
	TypeConnected    Type = "connection.connected"
	TypeRefreshed    Type = "connection.refreshed"
	TypeNeedsReauth  Type = "connection.needs_reauth"
	TypeDisconnected Type = "connection.disconnected"
)

// AllTypes lists every event type.
var AllTypes = []Type{TypeConnected, TypeRefreshed, TypeNeedsReauth, TypeDisconnected}

// Event is one lifecycle notification.
type Event struct {
	ID                string          `json:"id"`
	Type              Type            `json:"type"`
	ConnectionID      string          `json:"connection_id"`
	UserID            string          `json:"user_id"`
	Platform          models.Platform `json:"platform"`
	ExternalAccountID string          `json:"external_account_id,omitempty"`
	TokenExpiresAt    *time.Time      `json:"token_expires_at,omitempty"`
	// Reconnect is set on connected events that updated an existing connection.
	Reconnect bool `json:"reconnect,omitempty"`
	// Reason explains needs_reauth events.
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// New builds an event for c.
func New(t Type, c *models.Connection, at time.Time) Event {
	return Event{
		ID:                uuid.NewString(),
		Type:              t,
		ConnectionID:      c.ID,
		UserID:            c.UserID,
		Platform:          c.Platform,
		ExternalAccountID: c.ExternalAccountID,
		TokenExpiresAt:    c.TokenExpiresAt,
		OccurredAt:        at.UTC(),
	}
}

// Marshal encodes the event payload.
func (e Event) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", e.Type, err)
	}
	return data, nil
}

// Unmarshal decodes an event payload.
func Unmarshal(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return e, fmt.Errorf("unmarshal event: %w", err)
	}
	return e, nil
}

// Publisher delivers lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (Nop) Close() error { return nil }
