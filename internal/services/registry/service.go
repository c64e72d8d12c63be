package registry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"github.com/mcoot/presencechat/internal/dependencies/clock"
	"github.com/mcoot/presencechat/internal/model"
	"github.com/mcoot/presencechat/internal/services/validation"
	"github.com/mcoot/presencechat/internal/storage"
)

// JoinHook runs after a participant has been stored.
// It cannot fail the registration.
type JoinHook func(ctx context.Context, p *model.Participant)

// Service owns participant identity and liveness
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	logger  *slog.Logger
	onJoin  JoinHook
}

// New creates a new registry Service
func New(storage storage.Storage, clock clock.Clock, logger *slog.Logger) *Service {
	return &Service{
		storage: storage,
		clock:   clock,
		logger:  logger,
	}
}

// OnJoin sets the hook run after each successful registration.
// Passing nil disables it.
func (s *Service) OnJoin(hook JoinHook) {
	s.onJoin = hook
}

// Register validates name and stores a new participant seen now.
// A taken name fails with model.ErrParticipantExists and leaves the holder untouched.
func (s *Service) Register(ctx context.Context, name any) (*model.Participant, error) {
	validName, err := validation.ParticipantName(name)
	if err != nil {
		return nil, err
	}

	// The insert still rejects a name claimed between this check and the write
	_, err = s.storage.GetParticipant(ctx, validName)
	switch {
	case err == nil:
		return nil, model.ErrParticipantExists
	case !errors.Is(err, model.ErrParticipantNotFound):
		return nil, err
	}

	p := &model.Participant{
		Name:     validName,
		LastSeen: s.clock.Now(),
	}
	if err := s.storage.InsertParticipant(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("participant registered", "name", p.Name)

	if s.onJoin != nil {
		s.onJoin(ctx, p)
	}
	return p, nil
}

// Touch refreshes a participant's LastSeen. It never re-creates an evicted participant.
func (s *Service) Touch(ctx context.Context, name string) error {
	return s.storage.TouchParticipant(ctx, name, s.clock.Now())
}

// Get retrieves a participant by name
func (s *Service) Get(ctx context.Context, name string) (*model.Participant, error) {
	return s.storage.GetParticipant(ctx, name)
}

// List returns every participant
func (s *Service) List(ctx context.Context) ([]*model.Participant, error) {
	return s.storage.ListParticipants(ctx)
}

// FindStaleBefore returns participants whose LastSeen is at or before cutoff
func (s *Service) FindStaleBefore(ctx context.Context, cutoff time.Time) ([]*model.Participant, error) {
	participants, err := s.storage.ListParticipants(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Reject(participants, func(p *model.Participant, _ int) bool {
		return p.ActiveSince(cutoff)
	}), nil
}

// FindActiveSince returns participants whose LastSeen is after cutoff
func (s *Service) FindActiveSince(ctx context.Context, cutoff time.Time) ([]*model.Participant, error) {
	participants, err := s.storage.ListParticipants(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Filter(participants, func(p *model.Participant, _ int) bool {
		return p.ActiveSince(cutoff)
	}), nil
}

// RemoveStale deletes the named participants in one store call, skipping any
// that heartbeated after cutoff. It returns the names actually removed.
func (s *Service) RemoveStale(ctx context.Context, names []string, cutoff time.Time) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	return s.storage.DeleteParticipants(ctx, names, cutoff)
}
