package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/craftdeck/craftdeck-backend/internal/events/domain"
)

// LogRepository is the append-only log of every relayed envelope. It is
// bookkeeping, not a replay source; clients converge via the broker.
type LogRepository struct {
	db *pgxpool.Pool
}

// NewLogRepository creates a new event log repository.
func NewLogRepository(db *pgxpool.Pool) *LogRepository {
	return &LogRepository{db: db}
}

// Append inserts one envelope. Re-inserting an already-logged id is a
// no-op so at-least-once delivery does not duplicate rows.
func (r *LogRepository) Append(ctx context.Context, env domain.Envelope) error {
	const q = `
insert into events (id, type, payload, graph_ids, client_id, correlation_id, created_at)
values ($1, $2, $3, $4, $5, nullif($6, ''), $7)
on conflict (id) do nothing;
`
	_, err := r.db.Exec(ctx, q,
		env.ID,
		env.Data.Type,
		[]byte(env.Data.Payload),
		env.Data.GraphIDs,
		env.Data.ClientID,
		env.Data.CorrelationID,
		env.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append event %s: %w", env.ID, err)
	}
	return nil
}

// ListByGraph returns the newest envelopes addressed to a graph.
func (r *LogRepository) ListByGraph(ctx context.Context, graphID string, limit int) ([]domain.Envelope, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
select id, type, payload, graph_ids, client_id, coalesce(correlation_id, ''), created_at
from events
where $1 = any(graph_ids)
order by created_at desc
limit $2;
`
	rows, err := r.db.Query(ctx, q, graphID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events for graph %s: %w", graphID, err)
	}
	defer rows.Close()

	out := make([]domain.Envelope, 0, limit)
	for rows.Next() {
		var env domain.Envelope
		var payload []byte
		if err := rows.Scan(&env.ID, &env.Data.Type, &payload, &env.Data.GraphIDs,
			&env.Data.ClientID, &env.Data.CorrelationID, &env.CreatedAt); err != nil {
			return nil, err
		}
		env.Data.Payload = json.RawMessage(payload)
		out = append(out, env)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteOlderThan removes log rows created before the cutoff and reports
// how many went.
func (r *LogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `delete from events where created_at < $1;`
	tag, err := r.db.Exec(ctx, q, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}
	return tag.RowsAffected(), nil
}
