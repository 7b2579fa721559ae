// Package postgres archives committed changes to PostgreSQL.
//
// Interaction events are inserted once by ID. Profile and realm snapshots are
// upserted and only ever move forward in version, so redelivery and reordering
// across keys are harmless.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/okian/repdao/internal/domain/model"
)

const sinkName = "postgres"

// Schema creates the archive tables.
const Schema = `
CREATE TABLE IF NOT EXISTS interaction_events (
	id                UUID PRIMARY KEY,
	from_identity     TEXT        NOT NULL,
	to_identity       TEXT        NOT NULL,
	interaction_type  SMALLINT    NOT NULL,
	base_points       BIGINT      NOT NULL,
	note              TEXT        NOT NULL,
	note_digest       BYTEA       NOT NULL,
	category          SMALLINT    NOT NULL,
	delta             NUMERIC(20) NOT NULL,
	realm             TEXT,
	algorithm_version NUMERIC(20) NOT NULL,
	occurred_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS interaction_events_to_idx ON interaction_events (to_identity, occurred_at);
CREATE TABLE IF NOT EXISTS profile_snapshots (
	owner      TEXT PRIMARY KEY,
	version    NUMERIC(20) NOT NULL,
	snapshot   JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS realm_snapshots (
	name       TEXT PRIMARY KEY,
	version    NUMERIC(20) NOT NULL,
	snapshot   JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);`

const (
	insertEvent = `INSERT INTO interaction_events
	(id, from_identity, to_identity, interaction_type, base_points, note, note_digest, category, delta, realm, algorithm_version, occurred_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (id) DO NOTHING`

	upsertProfile = `INSERT INTO profile_snapshots (owner, version, snapshot, updated_at)
	VALUES ($1, $2, $3::jsonb, $4)
	ON CONFLICT (owner) DO UPDATE SET version = EXCLUDED.version, snapshot = EXCLUDED.snapshot, updated_at = EXCLUDED.updated_at
	WHERE profile_snapshots.version <= EXCLUDED.version`

	upsertRealm = `INSERT INTO realm_snapshots (name, version, snapshot, updated_at)
	VALUES ($1, $2, $3::jsonb, $4)
	ON CONFLICT (name) DO UPDATE SET version = EXCLUDED.version, snapshot = EXCLUDED.snapshot, updated_at = EXCLUDED.updated_at
	WHERE realm_snapshots.version <= EXCLUDED.version`
)

// Execer is the subset of pgxpool.Pool the sink needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Sink writes changes to PostgreSQL.
type Sink struct {
	db Execer
}

// New creates a sink over db.
func New(db Execer) *Sink {
	return &Sink{db: db}
}

// Connect opens a pool for dsn and verifies it answers.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, ErrNoDSN
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// Migrate creates the archive tables when they are missing.
func (s *Sink) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Name implements worker.Sink.
func (s *Sink) Name() string { return sinkName }

// Deliver archives the event and snapshots carried by c.
func (s *Sink) Deliver(ctx context.Context, c model.Change) error { //nolint:gocritic // hugeParam: matches the Sink interface
	if ev := c.Event; ev != nil {
		var realm any
		if ev.Realm != "" {
			realm = ev.Realm
		}
		_, err := s.db.Exec(ctx, insertEvent,
			ev.ID, string(ev.From), string(ev.To), int16(ev.Type), int64(ev.BasePoints),
			ev.Note, ev.NoteDigest[:], int16(ev.Category), fmt.Sprint(ev.Delta),
			realm, fmt.Sprint(ev.AlgorithmVersion), ev.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("%w: event %s: %w", ErrWrite, ev.ID, err)
		}
	}

	for _, p := range c.Profiles {
		if p == nil {
			continue
		}
		body, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode profile %s: %w", p.Owner, err)
		}
		if _, err := s.db.Exec(ctx, upsertProfile, string(p.Owner), fmt.Sprint(p.Version), string(body), c.At); err != nil {
			return fmt.Errorf("%w: profile %s: %w", ErrWrite, p.Owner, err)
		}
	}

	if r := c.Realm; r != nil {
		body, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode realm %s: %w", r.Name, err)
		}
		if _, err := s.db.Exec(ctx, upsertRealm, r.Name, fmt.Sprint(r.Algorithm.Version), string(body), c.At); err != nil {
			return fmt.Errorf("%w: realm %s: %w", ErrWrite, r.Name, err)
		}
	}
	return nil
}
