// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/tomtom215/adlink/internal/events"
	"github.com/tomtom215/adlink/internal/metrics"
)

// ErrSubscriptionClosed is returned by EventAuditService.Serve when the
// subscriber closes its channels while the service is still running.
var ErrSubscriptionClosed = errors.New("event subscription closed")

// EventAuditService consumes lifecycle events and writes one structured log
// line per event. It is the in-process consumer for the gochannel backend.
type EventAuditService struct {
	sub    message.Subscriber
	topics []string
	logger zerolog.Logger
}

// NewEventAuditService subscribes to topics on sub when served.
//
//	pub, ch := events.NewGoChannel(cfg.Events.TopicPrefix)
//	tree.AddMessagingService(services.NewEventAuditService(ch, pub.Topics(), logger))
func NewEventAuditService(sub message.Subscriber, topics []string, logger zerolog.Logger) *EventAuditService {
	return &EventAuditService{sub: sub, topics: topics, logger: logger}
}

// Serve implements suture.Service.
func (s *EventAuditService) Serve(ctx context.Context) error {
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	merged := make(chan *message.Message)
	var wg sync.WaitGroup
	for _, topic := range s.topics {
		msgs, err := s.sub.Subscribe(subCtx, topic)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		wg.Add(1)
		go func(msgs <-chan *message.Message) {
			defer wg.Done()
			for msg := range msgs {
				select {
				case merged <- msg:
				case <-subCtx.Done():
					msg.Nack()
					return
				}
			}
		}(msgs)
	}
	drained := make(chan struct{})
	go func() {
		wg.Wait()
		close(drained)
	}()

	s.logger.Info().Strs("topics", s.topics).Msg("Event audit consumer started")
	for {
		select {
		case msg := <-merged:
			s.handle(msg)
		case <-drained:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return ErrSubscriptionClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// handle logs one message. Malformed payloads are acked as well; redelivery
// cannot fix them.
func (s *EventAuditService) handle(msg *message.Message) {
	defer msg.Ack()

	e, err := events.Unmarshal(msg.Payload)
	metrics.RecordEventConsumed(msg.Metadata.Get("event_type"), err)
	if err != nil {
		s.logger.Warn().Err(err).Str("message_id", msg.UUID).Msg("Dropping malformed lifecycle event")
		return
	}

	ev := s.logger.Info()
	if e.Type == events.TypeNeedsReauth {
		ev = s.logger.Warn().Str("reason", e.Reason)
	}
	if cid := msg.Metadata.Get("correlation_id"); cid != "" {
		ev = ev.Str("correlation_id", cid)
	}
	ev.Str("event", string(e.Type)).
		Str("event_id", e.ID).
		Str("platform", string(e.Platform)).
		Str("connection_id", e.ConnectionID).
		Str("user_id", e.UserID).
		Bool("reconnect", e.Reconnect).
		Time("occurred_at", e.OccurredAt).
		Msg("Lifecycle event")
}

// String implements fmt.Stringer for supervisor logs.
func (s *EventAuditService) String() string {
	return "event-audit"
}
