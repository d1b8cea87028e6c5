// Package credentials persists usernames with a bcrypt password digest.
package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/store"
)

// ErrEmptyCredentials is returned when username or password is blank.
var ErrEmptyCredentials = errors.New("credentials: username and password are required")

// dummyHash is compared against when the user does not exist so that
// unknown users and wrong passwords take similar time.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("notesmcp-dummy-password"), bcrypt.MinCost)

// Store is the credential store.
type Store struct {
	db   *store.DB
	cost int
}

// New returns a credential store over db.
func New(db *store.DB) *Store {
	return &Store{db: db, cost: bcrypt.DefaultCost}
}

// WithCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func (s *Store) WithCost(cost int) *Store {
	s.cost = cost
	return s
}

// Register stores username with a digest of password. Registering an
// existing username replaces its digest.
func (s *Store) Register(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", ErrEmptyCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("credentials: hash password: %w", err)
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO users (username, password_hash) VALUES (?, ?)
		 ON CONFLICT(username) DO UPDATE SET password_hash = excluded.password_hash`,
		username, string(hash),
	)
	if err != nil {
		return "", fmt.Errorf("credentials: register %q: %w", username, err)
	}
	return username, nil
}

// Verify reports whether password matches the stored digest for username.
// Unknown users and wrong passwords both yield false.
func (s *Store) Verify(ctx context.Context, username, password string) (bool, error) {
	var hash string
	err := s.db.QueryRow(ctx, `SELECT password_hash FROM users WHERE username = ?`, username).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("credentials: lookup %q: %w", username, err)
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil, nil
}
