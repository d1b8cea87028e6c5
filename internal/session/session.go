// Package session tracks which user is logged in for each caller.
//
// Sessions are keyed by a caller token (the MCP session id on the
// Streamable HTTP transport). Each key holds at most one identity; logging
// in again replaces it. Entries expire after the configured TTL, refreshed
// on every lookup.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// LocalKey is the key used for callers that carry no session token.
const LocalKey = "local"

// DefaultTTL is how long an idle session stays logged in.
const DefaultTTL = 12 * time.Hour

var (
	// ErrUnauthenticated is returned when no user is logged in for the key.
	ErrUnauthenticated = errors.New("session: no user is logged in")
	// ErrInvalidCredentials is returned when login verification fails.
	ErrInvalidCredentials = errors.New("session: invalid username or password")
)

// Verifier answers credential checks. *credentials.Store satisfies it.
type Verifier interface {
	Verify(ctx context.Context, username, password string) (bool, error)
}

// Manager maps session keys to logged-in usernames. mu orders the
// read-refresh in Current against Logout and Forget on the same key.
type Manager struct {
	verifier Verifier
	mu       sync.Mutex
	entries  *cache.Cache
	ttl      time.Duration
}

// NewManager returns a Manager whose sessions expire after ttl of inactivity.
func NewManager(v Verifier, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	cleanup := ttl / 4
	if cleanup < time.Minute {
		cleanup = time.Minute
	}
	return &Manager{
		verifier: v,
		entries:  cache.New(ttl, cleanup),
		ttl:      ttl,
	}
}

// Login verifies the credentials and binds username to key. A failed
// login leaves the existing binding untouched.
func (m *Manager) Login(ctx context.Context, key, username, password string) error {
	ok, err := m.verifier.Verify(ctx, username, password)
	if err != nil {
		return fmt.Errorf("session: login: %w", err)
	}
	if !ok {
		return ErrInvalidCredentials
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries.Set(normalize(key), username, cache.DefaultExpiration)
	return nil
}

// Logout clears the binding for key and returns the user that was logged
// out. ok is false when nobody was logged in.
func (m *Manager) Logout(key string) (user string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok = m.lookup(key)
	if ok {
		m.entries.Delete(normalize(key))
	}
	return user, ok
}

// Current returns the user bound to key and refreshes its expiry.
func (m *Manager) Current(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.lookup(key)
	if ok {
		m.entries.Set(normalize(key), user, cache.DefaultExpiration)
	}
	return user, ok
}

// Require is Current that reports ErrUnauthenticated when nobody is logged in.
func (m *Manager) Require(key string) (string, error) {
	user, ok := m.Current(key)
	if !ok {
		return "", ErrUnauthenticated
	}
	return user, nil
}

// Forget drops the binding for key without reporting. The server calls it
// when a transport session ends.
func (m *Manager) Forget(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries.Delete(normalize(key))
}

// Active returns the number of live sessions.
func (m *Manager) Active() int {
	return m.entries.ItemCount()
}

func (m *Manager) lookup(key string) (string, bool) {
	v, found := m.entries.Get(normalize(key))
	if !found {
		return "", false
	}
	user, ok := v.(string)
	return user, ok && user != ""
}

func normalize(key string) string {
	if key == "" {
		return LocalKey
	}
	return key
}

// ─── Context ─────────────────────────────────────────────────────────────────

type ctxKey int

const (
	userKey ctxKey = iota
	sessionKey
)

// WithUser returns a context carrying the resolved identity.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the identity placed by WithUser.
func UserFromContext(ctx context.Context) (string, bool) {
	user, ok := ctx.Value(userKey).(string)
	return user, ok && user != ""
}

// WithKey returns a context carrying the caller's session key.
func WithKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, sessionKey, key)
}

// KeyFromContext returns the session key placed by WithKey, or LocalKey.
func KeyFromContext(ctx context.Context) string {
	key, _ := ctx.Value(sessionKey).(string)
	return normalize(key)
}
