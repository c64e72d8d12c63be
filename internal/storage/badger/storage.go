package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/mcoot/presencechat/internal/model"
	"github.com/mcoot/presencechat/internal/storage"
)

const (
	// seqBandwidth is how many message sequence numbers are leased per disk write
	seqBandwidth = 100
	// maxTxnRetries bounds retries of read-modify-write transactions on conflict
	maxTxnRetries = 5
)

// Storage is an embedded BadgerDB implementation of the storage interface.
// Participants are JSON values under "participant:{name}"; messages are JSON values
// under "message:{seq}" where seq comes from a badger sequence.
type Storage struct {
	db  *badger.DB
	seq *badger.Sequence
	log *slog.Logger
}

// Open opens (or creates) a badger database at path.
// An empty path opens an in-memory database.
func Open(path string, log *slog.Logger) (*Storage, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger open: %w", err)
	}
	return NewWithDB(db, log)
}

// NewWithDB creates a badger storage over an already opened database
func NewWithDB(db *badger.DB, log *slog.Logger) (*Storage, error) {
	seq, err := db.GetSequence([]byte(messageSeqKey), seqBandwidth)
	if err != nil {
		return nil, fmt.Errorf("badger sequence: %w", err)
	}
	return &Storage{db: db, seq: seq, log: log}, nil
}

// Close releases the leased sequence range and closes the database
func (s *Storage) Close() error {
	if err := s.seq.Release(); err != nil {
		s.log.Warn("failed to release message sequence", slog.String("error", err.Error()))
	}
	return s.db.Close()
}

// Ping reports whether the database is still open
func (s *Storage) Ping(ctx context.Context) error {
	if s.db.IsClosed() {
		return storage.Unavailable("badger ping", errors.New("database closed"))
	}
	return nil
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Participant operations

func (s *Storage) InsertParticipant(ctx context.Context, p *model.Participant) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(participantKey(p.Name))
		if err == nil {
			return model.ErrParticipantExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(participantKey(p.Name), data)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, model.ErrParticipantExists), errors.Is(err, badger.ErrConflict):
		// A conflicting commit means another writer created the same key first
		return model.ErrParticipantExists
	default:
		return storage.Unavailable("badger insert participant", err)
	}
}

func (s *Storage) GetParticipant(ctx context.Context, name string) (*model.Participant, error) {
	var p model.Participant
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(participantKey(name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &p)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, model.ErrParticipantNotFound
		}
		return nil, storage.Unavailable("badger get participant", err)
	}
	return &p, nil
}

func (s *Storage) ListParticipants(ctx context.Context) ([]*model.Participant, error) {
	var participants []*model.Participant
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(participantPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var p model.Participant
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &p)
			})
			if err != nil {
				return err
			}
			participants = append(participants, &p)
		}
		return nil
	})
	if err != nil {
		return nil, storage.Unavailable("badger list participants", err)
	}
	return participants, nil
}

func (s *Storage) TouchParticipant(ctx context.Context, name string, seen time.Time) error {
	err := s.retry(func(txn *badger.Txn) error {
		item, err := txn.Get(participantKey(name))
		if err != nil {
			return err
		}
		var p model.Participant
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &p) }); err != nil {
			return err
		}
		p.LastSeen = seen
		data, err := json.Marshal(&p)
		if err != nil {
			return err
		}
		return txn.Set(participantKey(name), data)
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return model.ErrParticipantNotFound
		}
		return storage.Unavailable("badger touch participant", err)
	}
	return nil
}

func (s *Storage) DeleteParticipants(ctx context.Context, names []string, seenBefore time.Time) ([]string, error) {
	var deleted []string
	err := s.retry(func(txn *badger.Txn) error {
		deleted = deleted[:0]
		for _, name := range names {
			item, err := txn.Get(participantKey(name))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			var p model.Participant
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &p) }); err != nil {
				return err
			}
			if p.LastSeen.After(seenBefore) {
				continue
			}
			if err := txn.Delete(participantKey(name)); err != nil {
				return err
			}
			deleted = append(deleted, name)
		}
		return nil
	})
	if err != nil {
		return nil, storage.Unavailable("badger delete participants", err)
	}
	return deleted, nil
}

// Message operations

func (s *Storage) AppendMessage(ctx context.Context, m *model.Message) error {
	next, err := s.seq.Next()
	if err != nil {
		return storage.Unavailable("badger next sequence", err)
	}
	// Sequences start at zero; Seq is one-based everywhere else
	m.Seq = int64(next) + 1

	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(uint64(m.Seq)), data)
	})
	if err != nil {
		return storage.Unavailable("badger append message", err)
	}
	return nil
}

func (s *Storage) ListMessages(ctx context.Context) ([]*model.Message, error) {
	var messages []*model.Message
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(messagePrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var m model.Message
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			})
			if err != nil {
				return err
			}
			messages = append(messages, &m)
		}
		return nil
	})
	if err != nil {
		return nil, storage.Unavailable("badger list messages", err)
	}
	return messages, nil
}

// retry runs fn in an update transaction, retrying when a concurrent commit conflicts
func (s *Storage) retry(fn func(txn *badger.Txn) error) error {
	var err error
	for range maxTxnRetries {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}
