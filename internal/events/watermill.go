// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/adlink/internal/config"
	"github.com/tomtom215/adlink/internal/logging"
	"github.com/tomtom215/adlink/internal/metrics"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("publisher is closed")

// WatermillPublisher sends events through any watermill message.Publisher.
type WatermillPublisher struct {
	publisher   message.Publisher
	topicPrefix string

	mu     sync.RWMutex
	closed bool
}

// NewWatermillPublisher wraps pub. Topics are "<prefix>.<event type>".
func NewWatermillPublisher(pub message.Publisher, topicPrefix string) *WatermillPublisher {
	return &WatermillPublisher{publisher: pub, topicPrefix: topicPrefix}
}

// Topic returns the topic an event type is published on.
func (p *WatermillPublisher) Topic(t Type) string {
	if p.topicPrefix == "" {
		return string(t)
	}
	return p.topicPrefix + "." + string(t)
}

// Topics returns the topic of every event type, in AllTypes order.
func (p *WatermillPublisher) Topics() []string {
	topics := make([]string, len(AllTypes))
	for i, t := range AllTypes {
		topics[i] = p.Topic(t)
	}
	return topics
}

// Publish implements Publisher.
func (p *WatermillPublisher) Publish(ctx context.Context, e Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	data, err := e.Marshal()
	if err != nil {
		return err
	}
	msg := message.NewMessage(e.ID, data)
	msg.SetContext(ctx)
	msg.Metadata.Set("event_type", string(e.Type))
	msg.Metadata.Set("platform", string(e.Platform))
	msg.Metadata.Set("connection_id", e.ConnectionID)
	if cid := logging.CorrelationIDFromContext(ctx); cid != "" {
		msg.Metadata.Set("correlation_id", cid)
	}

	err = p.publisher.Publish(p.Topic(e.Type), msg)
	metrics.RecordEventPublished(string(e.Type), err)
	if err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

// Close implements Publisher.
func (p *WatermillPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}

// Watermill returns the underlying publisher.
func (p *WatermillPublisher) Watermill() message.Publisher {
	return p.publisher
}

// NewLoggerAdapter routes watermill logs through the service logger.
func NewLoggerAdapter() watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logging.NewSlogLogger())
}

// NewGoChannel creates an in-process pub/sub. The returned GoChannel doubles
// as a subscriber for local consumers and tests.
func NewGoChannel(topicPrefix string) (*WatermillPublisher, *gochannel.GoChannel) {
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, NewLoggerAdapter())
	return NewWatermillPublisher(ch, topicPrefix), ch
}

// NewNATS creates a publisher on core NATS at url.
func NewNATS(url, topicPrefix string) (*WatermillPublisher, error) {
	logger := NewLoggerAdapter()

	natsOpts := []natsgo.Option{
		natsgo.Name("adlink"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}
	return NewWatermillPublisher(pub, topicPrefix), nil
}

// FromConfig builds the Publisher selected by cfg.
func FromConfig(cfg config.EventsConfig) (Publisher, error) {
	switch cfg.Backend {
	case "", "none":
		return Nop{}, nil
	case "gochannel":
		pub, _ := NewGoChannel(cfg.TopicPrefix)
		return pub, nil
	case "nats":
		return NewNATS(cfg.NATSURL, cfg.TopicPrefix)
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}
