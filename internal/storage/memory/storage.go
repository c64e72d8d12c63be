package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mcoot/presencechat/internal/model"
	"github.com/mcoot/presencechat/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	participants map[string]model.Participant
	messages     []model.Message
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		participants: make(map[string]model.Participant),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Participant operations

func (s *Storage) InsertParticipant(ctx context.Context, p *model.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.participants[p.Name]; ok {
		return model.ErrParticipantExists
	}
	s.participants[p.Name] = *p
	return nil
}

func (s *Storage) GetParticipant(ctx context.Context, name string) (*model.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[name]
	if !ok {
		return nil, model.ErrParticipantNotFound
	}
	return &p, nil
}

func (s *Storage) ListParticipants(ctx context.Context) ([]*model.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*model.Participant, 0, len(s.participants))
	for _, p := range s.participants {
		result = append(result, &p)
	}
	slices.SortFunc(result, func(a, b *model.Participant) int {
		return strings.Compare(a.Name, b.Name)
	})
	return result, nil
}

func (s *Storage) TouchParticipant(ctx context.Context, name string, seen time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[name]
	if !ok {
		return model.ErrParticipantNotFound
	}
	p.LastSeen = seen
	s.participants[name] = p
	return nil
}

func (s *Storage) DeleteParticipants(ctx context.Context, names []string, seenBefore time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted []string
	for _, name := range names {
		p, ok := s.participants[name]
		if !ok || p.LastSeen.After(seenBefore) {
			continue
		}
		delete(s.participants, name)
		deleted = append(deleted, name)
	}
	return deleted, nil
}

// Message operations

func (s *Storage) AppendMessage(ctx context.Context, m *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.Seq = int64(len(s.messages)) + 1
	s.messages = append(s.messages, *m)
	return nil
}

func (s *Storage) ListMessages(ctx context.Context) ([]*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*model.Message, len(s.messages))
	for i := range s.messages {
		m := s.messages[i]
		result[i] = &m
	}
	return result, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return nil
}

func (s *Storage) Close() error {
	return nil
}
