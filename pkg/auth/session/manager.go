// Package session tracks issued access tokens in Redis so they can be
// revoked before they expire.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	redislib "github.com/redis/go-redis/v9"
)

var errAccessIDRequired = errors.New("access id is required")

type sessionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// AccessSessionChecker is the read-only surface used by the auth middleware.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

// KeyFunc maps a token id (the JWT jti) to its store key.
type KeyFunc func(accessID string) string

// Manager keeps one key per live token, valued with the actor ID.
type Manager struct {
	store sessionStore
	key   KeyFunc
}

func NewManager(store sessionStore, key KeyFunc) (*Manager, error) {
	switch {
	case store == nil:
		return nil, errors.New("session store is required")
	case key == nil:
		return nil, errors.New("session key func is required")
	}
	return &Manager{store: store, key: key}, nil
}

func (m *Manager) keyFor(accessID string) (string, error) {
	accessID = strings.TrimSpace(accessID)
	if accessID == "" {
		return "", errAccessIDRequired
	}
	return m.key(accessID), nil
}

// Register marks accessID live for ttl, which should match the token expiry.
func (m *Manager) Register(ctx context.Context, accessID, actorID string, ttl time.Duration) error {
	key, err := m.keyFor(accessID)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		return errors.New("session ttl must be positive")
	}
	return m.store.Set(ctx, key, actorID, ttl)
}

// Revoke ends the session. Revoking an unknown id is not an error.
func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	key, err := m.keyFor(accessID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

// HasSession is false for revoked or expired tokens and errors only when
// the store cannot answer.
func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	key, err := m.keyFor(accessID)
	if err != nil {
		return false, err
	}
	_, err = m.store.Get(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redislib.Nil):
		return false, nil
	default:
		return false, err
	}
}
