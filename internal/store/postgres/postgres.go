// Package postgres is the Postgres-backed chat message store.
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"chatrelay/internal/chat"
)

const (
	connectAttempts = 10
	connectBackoff  = 2 * time.Second
)

// Store persists chat messages in the chat_messages table.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ chat.Store = (*Store)(nil)

// NewPool connects to databaseURL, retrying while the server comes up.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse database url")
	}

	config.MaxConns = 20
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	var pool *pgxpool.Pool
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		pool, err = pgxpool.NewWithConfig(ctx, config)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				log.Info().Int("attempt", attempt).Msg("database connected")
				return pool, nil
			}
			pool.Close()
		}
		log.Warn().Err(err).Int("attempt", attempt).Int("max", connectAttempts).Msg("database connect failed")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectBackoff):
		}
	}
	return nil, errors.Wrapf(err, "connect after %d attempts", connectAttempts)
}

// Open connects, applies migrations and returns a ready store.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := NewPool(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return New(pool), nil
}

// New wraps an existing pool. Migrations are the caller's concern.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, now: time.Now}
}

// Insert stores d. The row is written in one statement so a failure leaves
// nothing behind.
func (s *Store) Insert(ctx context.Context, d chat.Draft) (chat.Message, error) {
	if err := d.Validate(); err != nil {
		return chat.Message{}, err
	}
	m := d.Stamp(s.now())
	_, err := s.pool.Exec(ctx, `
		INSERT INTO chat_messages (id, session_id, player_id, message, is_from_user, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, m.ID, m.SessionID, m.PlayerID, m.Body, m.FromUser, m.CreatedAt)
	if err != nil {
		return chat.Message{}, errors.Wrap(err, "postgres store: insert message")
	}
	return m, nil
}

func (s *Store) ListSince(ctx context.Context, key chat.Key, after time.Time) ([]chat.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, session_id, player_id, message, is_from_user, created_at
		FROM chat_messages
		WHERE session_id = $1 AND player_id = $2 AND created_at > $3
		ORDER BY created_at ASC, id ASC
	`, key.Session, key.Player, after.UTC())
	if err != nil {
		return nil, errors.Wrap(err, "postgres store: list since")
	}
	return collect(rows)
}

func (s *Store) List(ctx context.Context, key chat.Key) ([]chat.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, session_id, player_id, message, is_from_user, created_at
		FROM chat_messages
		WHERE session_id = $1 AND player_id = $2
		ORDER BY created_at ASC, id ASC
	`, key.Session, key.Player)
	if err != nil {
		return nil, errors.Wrap(err, "postgres store: list")
	}
	return collect(rows)
}

// Prune removes messages older than olderThan.
func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM chat_messages WHERE created_at < $1`, s.now().Add(-olderThan).UTC())
	if err != nil {
		return 0, errors.Wrap(err, "postgres store: prune")
	}
	return tag.RowsAffected(), nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func collect(rows pgx.Rows) ([]chat.Message, error) {
	msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (chat.Message, error) {
		var m chat.Message
		err := row.Scan(&m.ID, &m.SessionID, &m.PlayerID, &m.Body, &m.FromUser, &m.CreatedAt)
		m.CreatedAt = m.CreatedAt.UTC()
		return m, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "postgres store: scan messages")
	}
	return msgs, nil
}
