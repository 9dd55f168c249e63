package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Repository reads and writes outbox rows over the same database/sql
// connection the LISTEN/NOTIFY listener uses.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) InsertEvent(ctx context.Context, event Event) error {
	const q = `
		INSERT INTO outbox_events (id, game_id, event_type, payload)
		VALUES ($1, $2, $3, $4)`

	_, err := r.db.ExecContext(ctx, q, event.ID, event.GameID, event.EventType, []byte(event.Payload))
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

func (r *Repository) FetchByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	const q = `
		SELECT id, game_id, event_type, payload, created_at
		FROM outbox_events
		WHERE id = $1 AND sent_at IS NULL`

	var event Event
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&event.ID, &event.GameID, &event.EventType, (*[]byte)(&event.Payload), &event.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("outbox event not found or already sent")
		}
		return nil, fmt.Errorf("failed to fetch outbox event by ID: %w", err)
	}
	return &event, nil
}

func (r *Repository) FetchUnsent(ctx context.Context, limit int32) ([]Event, error) {
	const q = `
		SELECT id, game_id, event_type, payload, created_at
		FROM outbox_events
		WHERE sent_at IS NULL
		ORDER BY created_at
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var event Event
		if err := rows.Scan(&event.ID, &event.GameID, &event.EventType, (*[]byte)(&event.Payload), &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE outbox_events SET sent_at = now() WHERE id = $1 AND sent_at IS NULL`

	if _, err := r.db.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("failed to mark outbox event as sent: %w", err)
	}
	return nil
}
