// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/adlink/internal/models"
)

// RedisPendingStore keeps pending connections in Redis so several replicas
// share them. Keys embed platform and owner, so a claim for the wrong user
// never touches another user's row.
type RedisPendingStore struct {
	client redis.UniversalClient
	prefix string
}

// OpenRedisPending connects to the Redis server at url
// (redis://[:password@]host:port/db) and verifies it answers.
func OpenRedisPending(ctx context.Context, url, prefix string) (*RedisPendingStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close() //nolint:errcheck // already returning the ping error
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisPendingStore(client, prefix), nil
}

// NewRedisPendingStore wraps an existing client.
func NewRedisPendingStore(client redis.UniversalClient, prefix string) *RedisPendingStore {
	if prefix == "" {
		prefix = "adlink"
	}
	return &RedisPendingStore{client: client, prefix: prefix}
}

func (s *RedisPendingStore) key(userID string, p models.Platform, id string) string {
	return s.prefix + ":pending:" + string(p) + ":" + userID + ":" + id
}

func (s *RedisPendingStore) decode(data []byte) (*models.PendingConnection, error) {
	var pc models.PendingConnection
	if err := json.Unmarshal(data, &pc); err != nil {
		return nil, fmt.Errorf("decode pending connection: %w", err)
	}
	return &pc, nil
}

// CreatePending implements PendingRepository.
func (s *RedisPendingStore) CreatePending(ctx context.Context, pc *models.PendingConnection) error {
	data, err := json.Marshal(pc)
	if err != nil {
		return fmt.Errorf("marshal pending connection: %w", err)
	}
	ttl := time.Until(pc.ExpiresAt) + PendingGrace
	if ttl <= 0 {
		ttl = 0
	}
	ok, err := s.client.SetNX(ctx, s.key(pc.UserID, pc.Platform, pc.ID), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("store pending connection: %w", err)
	}
	if !ok {
		return ErrDuplicate
	}
	return nil
}

// GetPending implements PendingRepository.
func (s *RedisPendingStore) GetPending(ctx context.Context, userID string, p models.Platform, id string) (*models.PendingConnection, error) {
	data, err := s.client.Get(ctx, s.key(userID, p, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pending connection: %w", err)
	}
	return s.decode(data)
}

// ClaimPending implements PendingRepository with GETDEL, which Redis runs
// atomically.
func (s *RedisPendingStore) ClaimPending(ctx context.Context, userID string, p models.Platform, id string) (*models.PendingConnection, error) {
	data, err := s.client.GetDel(ctx, s.key(userID, p, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("claim pending connection: %w", err)
	}
	return s.decode(data)
}

// DeletePending implements PendingRepository.
func (s *RedisPendingStore) DeletePending(ctx context.Context, userID string, p models.Platform, id string) error {
	n, err := s.client.Del(ctx, s.key(userID, p, id)).Result()
	if err != nil {
		return fmt.Errorf("delete pending connection: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteExpiredPending implements PendingRepository. Key TTLs do most of the
// work; the scan removes rows past ExpiresAt that are still inside their
// grace window.
func (s *RedisPendingStore) DeleteExpiredPending(ctx context.Context, now time.Time) (int, error) {
	count := 0
	iter := s.client.Scan(ctx, 0, s.prefix+":pending:*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := s.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return count, fmt.Errorf("get %s: %w", key, err)
		}
		pc, err := s.decode(data)
		if err == nil && !pc.ExpiresAt.Before(now) {
			continue
		}
		n, err := s.client.Del(ctx, key).Result()
		if err != nil {
			return count, fmt.Errorf("delete %s: %w", key, err)
		}
		count += int(n)
	}
	if err := iter.Err(); err != nil {
		return count, fmt.Errorf("scan pending connections: %w", err)
	}
	return count, nil
}

// Ping reports whether Redis answers.
func (s *RedisPendingStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *RedisPendingStore) Close() error {
	return s.client.Close()
}

var _ PendingRepository = (*RedisPendingStore)(nil)
