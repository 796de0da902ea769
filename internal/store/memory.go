// Adlink - Ad Platform Connection Lifecycle Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlink

package store

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/adlink/internal/models"
)

// MemoryStore keeps everything in process memory. Values are cloned on the
// way in and out so callers never share state with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	connections map[string]*models.Connection
	unique      map[string]string // connectionKey -> id
	pending     map[string]*models.PendingConnection
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		connections: make(map[string]*models.Connection),
		unique:      make(map[string]string),
		pending:     make(map[string]*models.PendingConnection),
	}
}

func connectionKey(userID string, p models.Platform, externalAccountID string) string {
	return userID + "\x00" + string(p) + "\x00" + externalAccountID
}

// CreateConnection implements ConnectionRepository.
func (s *MemoryStore) CreateConnection(ctx context.Context, c *models.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := connectionKey(c.UserID, c.Platform, c.ExternalAccountID)
	if _, taken := s.unique[key]; taken {
		return ErrDuplicate
	}
	if _, taken := s.connections[c.ID]; taken {
		return ErrDuplicate
	}
	s.connections[c.ID] = c.Clone()
	s.unique[key] = c.ID
	return nil
}

// GetConnection implements ConnectionRepository.
func (s *MemoryStore) GetConnection(ctx context.Context, userID, id string) (*models.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.connections[id]
	if !ok || c.UserID != userID {
		return nil, ErrNotFound
	}
	return c.Clone(), nil
}

// FindConnection implements ConnectionRepository.
func (s *MemoryStore) FindConnection(ctx context.Context, userID string, p models.Platform, externalAccountID string) (*models.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.unique[connectionKey(userID, p, externalAccountID)]
	if !ok {
		return nil, ErrNotFound
	}
	return s.connections[id].Clone(), nil
}

// ListConnections implements ConnectionRepository.
func (s *MemoryStore) ListConnections(ctx context.Context, userID string) ([]*models.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Connection
	for _, c := range s.connections {
		if c.UserID == userID {
			out = append(out, c.Clone())
		}
	}
	sortByCreation(out)
	return out, nil
}

// UpdateTokens implements ConnectionRepository.
func (s *MemoryStore) UpdateTokens(ctx context.Context, userID, id string, u TokenUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.connections[id]
	if !ok || c.UserID != userID {
		return ErrNotFound
	}
	applyUpdate(c, u)
	return nil
}

// SetStatus implements ConnectionRepository.
func (s *MemoryStore) SetStatus(ctx context.Context, userID, id string, status models.ConnectionStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.connections[id]
	if !ok || c.UserID != userID {
		return ErrNotFound
	}
	c.Status = status
	c.UpdatedAt = at.UTC()
	return nil
}

// DeleteConnection implements ConnectionRepository.
func (s *MemoryStore) DeleteConnection(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.connections[id]
	if !ok || c.UserID != userID {
		return ErrNotFound
	}
	delete(s.connections, id)
	delete(s.unique, connectionKey(c.UserID, c.Platform, c.ExternalAccountID))
	return nil
}

// ListExpiring implements ConnectionRepository.
func (s *MemoryStore) ListExpiring(ctx context.Context, p models.Platform, before time.Time, includeNullExpiry bool) ([]*models.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Connection
	for _, c := range s.connections {
		if expiring(c, p, before, includeNullExpiry) {
			out = append(out, c.Clone())
		}
	}
	sortByExpiry(out)
	return out, nil
}

// CreatePending implements PendingRepository.
func (s *MemoryStore) CreatePending(ctx context.Context, pc *models.PendingConnection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.pending[pc.ID]; taken {
		return ErrDuplicate
	}
	s.pending[pc.ID] = pc.Clone()
	return nil
}

// GetPending implements PendingRepository.
func (s *MemoryStore) GetPending(ctx context.Context, userID string, p models.Platform, id string) (*models.PendingConnection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pc, ok := s.pending[id]
	if !ok || pc.UserID != userID || pc.Platform != p {
		return nil, ErrNotFound
	}
	return pc.Clone(), nil
}

// ClaimPending implements PendingRepository.
func (s *MemoryStore) ClaimPending(ctx context.Context, userID string, p models.Platform, id string) (*models.PendingConnection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pc, ok := s.pending[id]
	if !ok || pc.UserID != userID || pc.Platform != p {
		return nil, ErrNotFound
	}
	delete(s.pending, id)
	return pc, nil
}

// DeletePending implements PendingRepository.
func (s *MemoryStore) DeletePending(ctx context.Context, userID string, p models.Platform, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pc, ok := s.pending[id]
	if !ok || pc.UserID != userID || pc.Platform != p {
		return ErrNotFound
	}
	delete(s.pending, id)
	return nil
}

// DeleteExpiredPending implements PendingRepository.
func (s *MemoryStore) DeleteExpiredPending(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, pc := range s.pending {
		if pc.ExpiresAt.Before(now) {
			delete(s.pending, id)
			n++
		}
	}
	return n, nil
}

// Ping implements Store.
func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
