// Package tenant manages API tenants and their keys.
//
// Keys are shown in plaintext exactly once at creation; only a SHA-256 hash
// is stored.
package tenant

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DefaultID identifies the tenant used when API authentication is disabled.
const DefaultID = "default"

var (
	ErrNotFound   = errors.New("tenant not found")
	ErrInvalidKey = errors.New("invalid API key")
)

// Tenant is one API consumer with its own source-config namespace and chat
// history.
type Tenant struct {
	ID        string
	Name      string
	Enabled   bool
	CreatedAt time.Time
}

// DB is the subset of pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists tenants. Safe for concurrent use.
type Store struct {
	db DB
}

// NewStore creates a tenant store over the given database.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Create registers a tenant and returns its plaintext API key. The key
// cannot be recovered later.
func (s *Store) Create(ctx context.Context, id, name string) (string, error) {
	key, err := generateKey()
	if err != nil {
		return "", err
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO tenants (id, name, api_key_hash)
		VALUES ($1, $2, $3)`,
		id, name, hashKey(key))
	if err != nil {
		return "", fmt.Errorf("failed to create tenant %q: %w", id, err)
	}
	return key, nil
}

// EnsureDefault creates the default tenant if it does not exist. Returns the
// plaintext key and true on first creation, empty and false when the tenant
// already exists.
func (s *Store) EnsureDefault(ctx context.Context) (string, bool, error) {
	_, err := s.Get(ctx, DefaultID)
	if err == nil {
		return "", false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", false, err
	}

	key, err := s.Create(ctx, DefaultID, "Default Tenant")
	if err != nil {
		return "", false, err
	}
	return key, true, nil
}

// Get looks up a tenant by id.
func (s *Store) Get(ctx context.Context, id string) (*Tenant, error) {
	var t Tenant
	err := s.db.QueryRow(ctx, `
		SELECT id, name, enabled, created_at
		FROM tenants
		WHERE id = $1`, id).Scan(&t.ID, &t.Name, &t.Enabled, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant %q: %w", id, err)
	}
	return &t, nil
}

// List returns all tenants ordered by creation time.
func (s *Store) List(ctx context.Context) ([]Tenant, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, enabled, created_at
		FROM tenants
		ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []Tenant
	for rows.Next() {
		var t Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Enabled, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	return tenants, nil
}

// ValidateAPIKey resolves a plaintext key to its enabled tenant. Unknown or
// disabled keys return ErrInvalidKey.
func (s *Store) ValidateAPIKey(ctx context.Context, key string) (*Tenant, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}

	var t Tenant
	err := s.db.QueryRow(ctx, `
		SELECT id, name, enabled, created_at
		FROM tenants
		WHERE api_key_hash = $1 AND enabled`, hashKey(key)).
		Scan(&t.ID, &t.Name, &t.Enabled, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidKey
	}
	if err != nil {
		return nil, fmt.Errorf("failed to validate API key: %w", err)
	}
	return &t, nil
}

func generateKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate API key: %w", err)
	}
	return "ld_" + hex.EncodeToString(buf), nil
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
