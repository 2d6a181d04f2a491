package client

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/goliatone/go-folio-auth/token"
)

const (
	DefaultTokenKey    = "auth_token"
	DefaultSnapshotKey = "auth_identity"
)

// TokenStore holds the bearer token and a cached display identity derived
// from it. The snapshot is bound to the token by fingerprint and is ignored
// once the token changes.
type TokenStore struct {
	storage     Storage
	tokenKey    string
	snapshotKey string
}

type TokenStoreOption func(*TokenStore)

// WithKeys overrides the storage keys of both slots.
func WithKeys(tokenKey, snapshotKey string) TokenStoreOption {
	return func(s *TokenStore) {
		if tokenKey != "" {
			s.tokenKey = tokenKey
		}
		if snapshotKey != "" {
			s.snapshotKey = snapshotKey
		}
	}
}

func NewTokenStore(storage Storage, opts ...TokenStoreOption) *TokenStore {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	s := &TokenStore{
		storage:     storage,
		tokenKey:    DefaultTokenKey,
		snapshotKey: DefaultSnapshotKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type snapshot struct {
	Fingerprint string   `json:"fingerprint"`
	Identity    Identity `json:"identity"`
}

// Get returns the stored token. A missing or empty token reports false.
func (s *TokenStore) Get(ctx context.Context) (string, bool, error) {
	raw, ok, err := s.storage.Get(ctx, s.tokenKey)
	if err != nil {
		return "", false, storageError("get", s.tokenKey, err)
	}
	if !ok || raw == "" {
		return "", false, nil
	}
	return raw, true, nil
}

// Set stores raw. Any snapshot of a previous token is left in place and
// discarded by Snapshot on the fingerprint check.
func (s *TokenStore) Set(ctx context.Context, raw string) error {
	if raw == "" {
		return s.Remove(ctx)
	}
	if err := s.storage.Set(ctx, s.tokenKey, raw); err != nil {
		return storageError("set", s.tokenKey, err)
	}
	return nil
}

// Remove deletes the token and its snapshot.
func (s *TokenStore) Remove(ctx context.Context) error {
	if err := s.storage.Delete(ctx, s.tokenKey, s.snapshotKey); err != nil {
		return storageError("delete", s.tokenKey, err)
	}
	return nil
}

// SaveSnapshot caches identity for raw.
func (s *TokenStore) SaveSnapshot(ctx context.Context, raw string, identity Identity) error {
	data, err := json.Marshal(snapshot{
		Fingerprint: Fingerprint(raw),
		Identity:    identity,
	})
	if err != nil {
		return err
	}
	if err := s.storage.Set(ctx, s.snapshotKey, string(data)); err != nil {
		return storageError("set", s.snapshotKey, err)
	}
	return nil
}

// Snapshot returns the cached identity for raw. A snapshot that cannot be
// read or belongs to another token is deleted and reported as absent.
func (s *TokenStore) Snapshot(ctx context.Context, raw string) (Identity, bool, error) {
	data, ok, err := s.storage.Get(ctx, s.snapshotKey)
	if err != nil {
		return Identity{}, false, storageError("get", s.snapshotKey, err)
	}
	if !ok || data == "" {
		return Identity{}, false, nil
	}

	var snap snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil || !snap.usableFor(raw) {
		if err := s.storage.Delete(ctx, s.snapshotKey); err != nil {
			return Identity{}, false, storageError("delete", s.snapshotKey, err)
		}
		return Identity{}, false, nil
	}
	return snap.Identity, true, nil
}

// usableFor reports whether the snapshot belongs to raw and describes an
// authenticated user.
func (s snapshot) usableFor(raw string) bool {
	return s.Fingerprint == Fingerprint(raw) &&
		s.Identity.Authenticated &&
		s.Identity.UserID != ""
}

// Fingerprint is the hex SHA-256 of raw.
func Fingerprint(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func storageError(op, key string, err error) error {
	return token.WithCause(token.ErrStorageUnavailable, err, map[string]any{
		"op":  op,
		"key": key,
	})
}
