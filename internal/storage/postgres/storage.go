// Package postgres provides a PostgreSQL implementation of the storage interface.
// Name uniqueness is the participants primary key; message order is a BIGSERIAL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/mcoot/presencechat/internal/model"
	"github.com/mcoot/presencechat/internal/storage"
)

// uniqueViolation is the SQLSTATE for a unique constraint failure
const uniqueViolation = "23505"

// Storage is a PostgreSQL implementation of the storage interface
type Storage struct {
	db *sql.DB
}

// Open connects to PostgreSQL, applies migrations and returns a ready store
func Open(ctx context.Context, dsn string) (*Storage, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if err := Migrate(dsn); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewWithDB(db), nil
}

// NewWithDB creates a store over an existing handle. The schema must already exist.
func NewWithDB(db *sql.DB) *Storage {
	return &Storage{db: db}
}

// Close closes the database handle
func (s *Storage) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *Storage) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return storage.Unavailable("postgres ping", err)
	}
	return nil
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Participant operations

func (s *Storage) InsertParticipant(ctx context.Context, p *model.Participant) error {
	const query = `INSERT INTO participants (name, last_seen) VALUES ($1, $2)`

	_, err := s.db.ExecContext(ctx, query, p.Name, p.LastSeen.UTC())
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return model.ErrParticipantExists
		}
		return storage.Unavailable("postgres insert participant", err)
	}
	return nil
}

func (s *Storage) GetParticipant(ctx context.Context, name string) (*model.Participant, error) {
	const query = `SELECT name, last_seen FROM participants WHERE name = $1`

	var p model.Participant
	err := s.db.QueryRowContext(ctx, query, name).Scan(&p.Name, &p.LastSeen)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrParticipantNotFound
		}
		return nil, storage.Unavailable("postgres get participant", err)
	}
	p.LastSeen = p.LastSeen.UTC()
	return &p, nil
}

func (s *Storage) ListParticipants(ctx context.Context) ([]*model.Participant, error) {
	const query = `SELECT name, last_seen FROM participants ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, storage.Unavailable("postgres list participants", err)
	}
	defer rows.Close()

	participants := []*model.Participant{}
	for rows.Next() {
		var p model.Participant
		if err := rows.Scan(&p.Name, &p.LastSeen); err != nil {
			return nil, storage.Unavailable("postgres scan participant", err)
		}
		p.LastSeen = p.LastSeen.UTC()
		participants = append(participants, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable("postgres list participants", err)
	}
	return participants, nil
}

func (s *Storage) TouchParticipant(ctx context.Context, name string, seen time.Time) error {
	const query = `UPDATE participants SET last_seen = $2 WHERE name = $1`

	res, err := s.db.ExecContext(ctx, query, name, seen.UTC())
	if err != nil {
		return storage.Unavailable("postgres touch participant", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storage.Unavailable("postgres touch participant", err)
	}
	if n == 0 {
		return model.ErrParticipantNotFound
	}
	return nil
}

func (s *Storage) DeleteParticipants(ctx context.Context, names []string, seenBefore time.Time) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}

	const query = `
		DELETE FROM participants
		WHERE name = ANY($1) AND last_seen <= $2
		RETURNING name`

	rows, err := s.db.QueryContext(ctx, query, pq.Array(names), seenBefore.UTC())
	if err != nil {
		return nil, storage.Unavailable("postgres delete participants", err)
	}
	defer rows.Close()

	var deleted []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, storage.Unavailable("postgres scan deleted participant", err)
		}
		deleted = append(deleted, name)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable("postgres delete participants", err)
	}
	return deleted, nil
}

// Message operations

func (s *Storage) AppendMessage(ctx context.Context, m *model.Message) error {
	const query = `
		INSERT INTO messages (id, sender, recipient, body, kind, time, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING seq`

	err := s.db.QueryRowContext(ctx, query,
		m.ID, m.From, m.To, m.Text, string(m.Kind), m.Time, m.CreatedAt.UTC(),
	).Scan(&m.Seq)
	if err != nil {
		return storage.Unavailable("postgres append message", err)
	}
	return nil
}

func (s *Storage) ListMessages(ctx context.Context) ([]*model.Message, error) {
	const query = `
		SELECT seq, id, sender, recipient, body, kind, time, created_at
		FROM messages
		ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, storage.Unavailable("postgres list messages", err)
	}
	defer rows.Close()

	messages := []*model.Message{}
	for rows.Next() {
		var m model.Message
		var kind string
		if err := rows.Scan(&m.Seq, &m.ID, &m.From, &m.To, &m.Text, &kind, &m.Time, &m.CreatedAt); err != nil {
			return nil, storage.Unavailable("postgres scan message", err)
		}
		m.Kind = model.MessageKind(kind)
		m.CreatedAt = m.CreatedAt.UTC()
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable("postgres list messages", err)
	}
	return messages, nil
}
