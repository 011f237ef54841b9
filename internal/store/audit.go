package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aitorres/orion/internal/telemetry"
)

// Event is an audit log event type.
type Event string

const (
	EventLogin          Event = "LOGIN"
	EventLogout         Event = "LOGOUT"
	EventDelete         Event = "DELETE"
	EventTakedown       Event = "TAKEDOWN"
	EventUntakedown     Event = "UNTAKEDOWN"
	EventPasswordChange Event = "PASSWORD_CHANGE"
)

// Valid reports whether the event is one of the known types. The schema
// enforces the same set with a CHECK constraint.
func (e Event) Valid() bool {
	switch e {
	case EventLogin, EventLogout, EventDelete, EventTakedown, EventUntakedown, EventPasswordChange:
		return true
	}
	return false
}

// AuditEntry is a single audit log row. Username is joined in for display.
type AuditEntry struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	Event       Event     `json:"event"`
	Description string    `json:"description"`
}

// AppendAudit records an audit event for a user.
func (s *Store) AppendAudit(ctx context.Context, userID string, event Event, description string) (AuditEntry, error) {
	if !event.Valid() {
		return AuditEntry{}, fmt.Errorf("invalid audit event: %s", event)
	}
	entry := AuditEntry{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		UserID:      userID,
		Event:       event,
		Description: description,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, created_at, user_id, event, description) VALUES (?, ?, ?, ?, ?)`,
		entry.ID, entry.CreatedAt, entry.UserID, string(entry.Event), entry.Description)
	if err != nil {
		return AuditEntry{}, fmt.Errorf("append audit event: %w", err)
	}
	telemetry.ObserveAudit(string(entry.Event))
	return entry, nil
}

// ListAudit returns audit entries newest-first, paginated.
func (s *Store) ListAudit(ctx context.Context, limit, offset int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.created_at, a.user_id, u.username, a.event, COALESCE(a.description, '')
		 FROM audit_log a JOIN users u ON u.id = a.user_id
		 ORDER BY a.created_at DESC, a.id
		 LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list audit log: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var event string
		if err := rows.Scan(&e.ID, &e.CreatedAt, &e.UserID, &e.Username, &event, &e.Description); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Event = Event(event)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountAudit returns the total number of audit entries.
func (s *Store) CountAudit(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_log`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count audit log: %w", err)
	}
	return n, nil
}
