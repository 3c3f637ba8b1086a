// Package sqlite is the single-file chat message store.
package sqlite

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"chatrelay/internal/chat"
)

// Store keeps chat messages in a SQLite database. created_at is stored as
// unix microseconds so range filters compare integers.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ chat.Store = (*Store)(nil)

// Open opens dsn and creates the schema if needed.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("sqlite store: empty dsn")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite store: open")
	}
	// One writer at a time; readers share the same connection.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS chat_messages (
			id           TEXT PRIMARY KEY,
			session_id   TEXT NOT NULL,
			player_id    TEXT NOT NULL,
			message      TEXT NOT NULL,
			is_from_user INTEGER NOT NULL DEFAULT 0,
			created_at   INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_chat_messages_key_created
			ON chat_messages (session_id, player_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_chat_messages_created
			ON chat_messages (created_at);
	`)
	return errors.Wrap(err, "sqlite store: migrate")
}

func (s *Store) Insert(ctx context.Context, d chat.Draft) (chat.Message, error) {
	if err := d.Validate(); err != nil {
		return chat.Message{}, err
	}
	m := d.Stamp(s.now())
	fromUser := 0
	if m.FromUser {
		fromUser = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, session_id, player_id, message, is_from_user, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, m.ID, m.SessionID, m.PlayerID, m.Body, fromUser, m.CreatedAt.UnixMicro())
	if err != nil {
		return chat.Message{}, errors.Wrap(err, "sqlite store: insert message")
	}
	return m, nil
}

func (s *Store) ListSince(ctx context.Context, key chat.Key, after time.Time) ([]chat.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, player_id, message, is_from_user, created_at
		FROM chat_messages
		WHERE session_id = ? AND player_id = ? AND created_at > ?
		ORDER BY created_at ASC, rowid ASC
	`, key.Session, key.Player, after.UnixMicro())
	if err != nil {
		return nil, errors.Wrap(err, "sqlite store: list since")
	}
	return scanMessages(rows)
}

func (s *Store) List(ctx context.Context, key chat.Key) ([]chat.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, player_id, message, is_from_user, created_at
		FROM chat_messages
		WHERE session_id = ? AND player_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, key.Session, key.Player)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite store: list")
	}
	return scanMessages(rows)
}

func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan).UnixMicro()
	res, err := s.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "sqlite store: prune")
	}
	return res.RowsAffected()
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func scanMessages(rows *sql.Rows) ([]chat.Message, error) {
	defer rows.Close()
	var out []chat.Message
	for rows.Next() {
		var (
			m        chat.Message
			fromUser int
			created  int64
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.PlayerID, &m.Body, &fromUser, &created); err != nil {
			return nil, errors.Wrap(err, "sqlite store: scan message")
		}
		m.FromUser = fromUser != 0
		m.CreatedAt = time.UnixMicro(created).UTC()
		out = append(out, m)
	}
	return out, errors.Wrap(rows.Err(), "sqlite store: iterate messages")
}
