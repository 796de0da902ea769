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

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/adlink/internal/models"
)

// Key prefixes for namespacing in BadgerDB.
const (
	badgerConnPrefix    = "conn:"
	badgerConnIdxPrefix = "conn_idx:"
	badgerConnUserIdx   = "conn_user:"
	badgerPendingPrefix = "pending:"
)

// badgerTxnRetries bounds retries of a transaction that lost a conflict.
const badgerTxnRetries = 3

// BadgerStore implements Store on an embedded BadgerDB directory. Pending
// rows carry a native TTL of ExpiresAt plus PendingGrace.
type BadgerStore struct {
	db *badger.DB
}

// connRecord is the stored form of a connection. Connection itself keeps
// ciphertexts out of its JSON encoding.
type connRecord struct {
	ID                     string     `json:"id"`
	UserID                 string     `json:"user_id"`
	Platform               string     `json:"platform"`
	ExternalAccountID      string     `json:"external_account_id"`
	AccountDisplayName     *string    `json:"account_display_name,omitempty"`
	AccessTokenCiphertext  string     `json:"access_token_ciphertext"`
	RefreshTokenCiphertext *string    `json:"refresh_token_ciphertext,omitempty"`
	TokenExpiresAt         *time.Time `json:"token_expires_at,omitempty"`
	Status                 string     `json:"status"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

func toRecord(c *models.Connection) connRecord {
	return connRecord{
		ID:                     c.ID,
		UserID:                 c.UserID,
		Platform:               string(c.Platform),
		ExternalAccountID:      c.ExternalAccountID,
		AccountDisplayName:     c.AccountDisplayName,
		AccessTokenCiphertext:  c.AccessTokenCiphertext,
		RefreshTokenCiphertext: c.RefreshTokenCiphertext,
		TokenExpiresAt:         c.TokenExpiresAt,
		Status:                 string(c.Status),
		CreatedAt:              c.CreatedAt.UTC(),
		UpdatedAt:              c.UpdatedAt.UTC(),
	}
}

func (r connRecord) connection() *models.Connection {
	c := &models.Connection{
		ID:                     r.ID,
		UserID:                 r.UserID,
		Platform:               models.Platform(r.Platform),
		ExternalAccountID:      r.ExternalAccountID,
		AccountDisplayName:     r.AccountDisplayName,
		AccessTokenCiphertext:  r.AccessTokenCiphertext,
		RefreshTokenCiphertext: r.RefreshTokenCiphertext,
		TokenExpiresAt:         r.TokenExpiresAt,
		Status:                 models.ConnectionStatus(r.Status),
		CreatedAt:              r.CreatedAt.UTC(),
		UpdatedAt:              r.UpdatedAt.UTC(),
	}
	if c.TokenExpiresAt != nil {
		t := c.TokenExpiresAt.UTC()
		c.TokenExpiresAt = &t
	}
	return c
}

// OpenBadger opens (or creates) a BadgerDB store at path.
func OpenBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	opts.ValueLogFileSize = 16 << 20
	opts.SyncWrites = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStoreFromDB wraps an already open BadgerDB.
func NewBadgerStoreFromDB(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func connKey(id string) []byte { return []byte(badgerConnPrefix + id) }

func connIdxKey(userID string, p models.Platform, ext string) []byte {
	return []byte(badgerConnIdxPrefix + connectionKey(userID, p, ext))
}

func connUserKey(userID, id string) []byte {
	return []byte(badgerConnUserIdx + userID + "\x00" + id)
}

func pendingKey(id string) []byte { return []byte(badgerPendingPrefix + id) }

// update runs fn in a read-write transaction, retrying on conflict.
func (s *BadgerStore) update(fn func(txn *badger.Txn) error) error {
	var err error
	for i := 0; i < badgerTxnRetries; i++ {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

// ownedConnection loads a connection and checks its owner.
func ownedConnection(txn *badger.Txn, userID, id string) (connRecord, error) {
	var r connRecord
	if err := getJSON(txn, connKey(id), &r); err != nil {
		return r, err
	}
	if r.UserID != userID {
		return r, ErrNotFound
	}
	return r, nil
}

// CreateConnection implements ConnectionRepository.
func (s *BadgerStore) CreateConnection(ctx context.Context, c *models.Connection) error {
	return s.update(func(txn *badger.Txn) error {
		idx := connIdxKey(c.UserID, c.Platform, c.ExternalAccountID)
		if _, err := txn.Get(idx); err == nil {
			return ErrDuplicate
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if _, err := txn.Get(connKey(c.ID)); err == nil {
			return ErrDuplicate
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if err := setJSON(txn, connKey(c.ID), toRecord(c)); err != nil {
			return fmt.Errorf("put connection: %w", err)
		}
		if err := txn.Set(idx, []byte(c.ID)); err != nil {
			return err
		}
		return txn.Set(connUserKey(c.UserID, c.ID), nil)
	})
}

// GetConnection implements ConnectionRepository.
func (s *BadgerStore) GetConnection(ctx context.Context, userID, id string) (*models.Connection, error) {
	var r connRecord
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		r, err = ownedConnection(txn, userID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.connection(), nil
}

// FindConnection implements ConnectionRepository.
func (s *BadgerStore) FindConnection(ctx context.Context, userID string, p models.Platform, externalAccountID string) (*models.Connection, error) {
	var r connRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(connIdxKey(userID, p, externalAccountID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		r, err = ownedConnection(txn, userID, string(id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.connection(), nil
}

// ListConnections implements ConnectionRepository.
func (s *BadgerStore) ListConnections(ctx context.Context, userID string) ([]*models.Connection, error) {
	var out []*models.Connection
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(badgerConnUserIdx + userID + "\x00")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			id := string(it.Item().Key()[len(prefix):])
			r, err := ownedConnection(txn, userID, id)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			out = append(out, r.connection())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	sortByCreation(out)
	return out, nil
}

// UpdateTokens implements ConnectionRepository.
func (s *BadgerStore) UpdateTokens(ctx context.Context, userID, id string, u TokenUpdate) error {
	return s.update(func(txn *badger.Txn) error {
		r, err := ownedConnection(txn, userID, id)
		if err != nil {
			return err
		}
		c := r.connection()
		applyUpdate(c, u)
		return setJSON(txn, connKey(id), toRecord(c))
	})
}

// SetStatus implements ConnectionRepository.
func (s *BadgerStore) SetStatus(ctx context.Context, userID, id string, status models.ConnectionStatus, at time.Time) error {
	return s.update(func(txn *badger.Txn) error {
		r, err := ownedConnection(txn, userID, id)
		if err != nil {
			return err
		}
		r.Status = string(status)
		r.UpdatedAt = at.UTC()
		return setJSON(txn, connKey(id), r)
	})
}

// DeleteConnection implements ConnectionRepository.
func (s *BadgerStore) DeleteConnection(ctx context.Context, userID, id string) error {
	return s.update(func(txn *badger.Txn) error {
		r, err := ownedConnection(txn, userID, id)
		if err != nil {
			return err
		}
		if err := txn.Delete(connKey(id)); err != nil {
			return err
		}
		if err := txn.Delete(connIdxKey(r.UserID, models.Platform(r.Platform), r.ExternalAccountID)); err != nil {
			return err
		}
		return txn.Delete(connUserKey(r.UserID, id))
	})
}

// ListExpiring implements ConnectionRepository.
func (s *BadgerStore) ListExpiring(ctx context.Context, p models.Platform, before time.Time, includeNullExpiry bool) ([]*models.Connection, error) {
	var out []*models.Connection
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(badgerConnPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var r connRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &r)
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			if c := r.connection(); expiring(c, p, before, includeNullExpiry) {
				out = append(out, c)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list expiring connections: %w", err)
	}
	sortByExpiry(out)
	return out, nil
}

// CreatePending implements PendingRepository.
func (s *BadgerStore) CreatePending(ctx context.Context, pc *models.PendingConnection) error {
	data, err := json.Marshal(pc)
	if err != nil {
		return fmt.Errorf("marshal pending connection: %w", err)
	}
	return s.update(func(txn *badger.Txn) error {
		key := pendingKey(pc.ID)
		if _, err := txn.Get(key); err == nil {
			return ErrDuplicate
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		entry := badger.NewEntry(key, data)
		if ttl := time.Until(pc.ExpiresAt) + PendingGrace; ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

func ownedPending(txn *badger.Txn, userID string, p models.Platform, id string) (*models.PendingConnection, error) {
	var pc models.PendingConnection
	if err := getJSON(txn, pendingKey(id), &pc); err != nil {
		return nil, err
	}
	if pc.UserID != userID || pc.Platform != p {
		return nil, ErrNotFound
	}
	return &pc, nil
}

// GetPending implements PendingRepository.
func (s *BadgerStore) GetPending(ctx context.Context, userID string, p models.Platform, id string) (*models.PendingConnection, error) {
	var pc *models.PendingConnection
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		pc, err = ownedPending(txn, userID, p, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pc, nil
}

// ClaimPending implements PendingRepository. The read and delete share one
// transaction; a concurrent claim of the same key fails with ErrConflict on
// commit and is reported as ErrNotFound.
func (s *BadgerStore) ClaimPending(ctx context.Context, userID string, p models.Platform, id string) (*models.PendingConnection, error) {
	var pc *models.PendingConnection
	err := s.db.Update(func(txn *badger.Txn) error {
		var err error
		pc, err = ownedPending(txn, userID, p, id)
		if err != nil {
			return err
		}
		return txn.Delete(pendingKey(id))
	})
	if errors.Is(err, badger.ErrConflict) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return pc, nil
}

// DeletePending implements PendingRepository.
func (s *BadgerStore) DeletePending(ctx context.Context, userID string, p models.Platform, id string) error {
	return s.update(func(txn *badger.Txn) error {
		if _, err := ownedPending(txn, userID, p, id); err != nil {
			return err
		}
		return txn.Delete(pendingKey(id))
	})
}

// DeleteExpiredPending implements PendingRepository. TTL removes most rows
// on its own; this catches rows stored without one and corrupted entries.
func (s *BadgerStore) DeleteExpiredPending(ctx context.Context, now time.Time) (int, error) {
	var expiredKeys [][]byte

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(badgerPendingPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()

			var pc models.PendingConnection
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &pc)
			})
			if err != nil || pc.ExpiresAt.Before(now) {
				expiredKeys = append(expiredKeys, item.KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan for expired pending connections: %w", err)
	}

	count := 0
	for _, key := range expiredKeys {
		if ctx.Err() != nil {
			return count, ctx.Err()
		}
		err := s.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(key)
		})
		if err == nil {
			count++
		}
	}
	return count, nil
}

// Ping implements Store.
func (s *BadgerStore) Ping(ctx context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger db is closed")
	}
	return nil
}

// Close implements Store.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

var _ Store = (*BadgerStore)(nil)
