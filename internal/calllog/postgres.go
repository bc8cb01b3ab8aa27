package calllog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dechrm/callrelay/internal/domain"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS call_logs (
		id           BIGSERIAL PRIMARY KEY,
		room_id      TEXT NOT NULL,
		participants JSONB NOT NULL,
		media_kind   TEXT NOT NULL,
		started_at   TIMESTAMPTZ NOT NULL,
		ended_at     TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS call_logs_room_open ON call_logs (room_id) WHERE ended_at IS NULL`,
}

// Postgres persists call records through a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}

	return &Postgres{pool: pool}, nil
}

func (p *Postgres) RecordStart(ctx context.Context, session domain.CallSession) error {
	participants, err := json.Marshal(session.Participants)
	if err != nil {
		return fmt.Errorf("marshal participants: %w", err)
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO call_logs (room_id, participants, media_kind, started_at) VALUES ($1, $2, $3, $4)`,
		string(session.RoomID), participants, string(session.Media), session.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("insert call log: %w", err)
	}
	return nil
}

func (p *Postgres) RecordEnd(ctx context.Context, roomID domain.RoomID, endedAt time.Time) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE call_logs SET ended_at = $2 WHERE room_id = $1 AND ended_at IS NULL`,
		string(roomID), endedAt,
	)
	if err != nil {
		return fmt.Errorf("close call log: %w", err)
	}
	return nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}
