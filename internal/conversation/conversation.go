// Package conversation persists chat history per tenant and session.
package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Roles of a stored turn. The schema rejects anything else.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one stored message in a session.
type Turn struct {
	ID        uuid.UUID
	TenantID  string
	SessionID string
	Role      string
	Content   string
	CreatedAt time.Time
}

// DB is the subset of pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store reads and writes chat turns. Safe for concurrent use. Turns within a
// session are ordered by insertion time; concurrent appends to the same
// session from overlapping requests can interleave, so ordering across
// concurrent requests for one session is not guaranteed.
type Store struct {
	db DB
}

// NewStore creates a conversation store over the given database.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Append persists one turn and returns its generated id.
func (s *Store) Append(ctx context.Context, tenantID, sessionID, role, content string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.db.Exec(ctx, `
		INSERT INTO chat_messages (id, tenant_id, session_id, role, content)
		VALUES ($1, $2, $3, $4, $5)`,
		id, tenantID, sessionID, role, content)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to append turn: %w", err)
	}
	return id, nil
}

// History returns the most recent limit turns of a session in chronological
// order (oldest first). An unknown session yields an empty slice.
func (s *Store) History(ctx context.Context, tenantID, sessionID string, limit int) ([]Turn, error) {
	if limit < 1 {
		return nil, nil
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, tenant_id, session_id, role, content, created_at
		FROM chat_messages
		WHERE tenant_id = $1 AND session_id = $2
		ORDER BY created_at DESC
		LIMIT $3`,
		tenantID, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.TenantID, &t.SessionID, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	// The query selects the newest turns; flip them back to oldest-first
	// for prompt assembly.
	reverse(turns)
	return turns, nil
}

func reverse(turns []Turn) {
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
}
