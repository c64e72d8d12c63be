package ledger

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mcoot/presencechat/internal/dependencies/clock"
	"github.com/mcoot/presencechat/internal/metrics"
	"github.com/mcoot/presencechat/internal/model"
	"github.com/mcoot/presencechat/internal/services/validation"
	"github.com/mcoot/presencechat/internal/services/visibility"
	"github.com/mcoot/presencechat/internal/storage"
)

// Service creates and reads chat messages. History is append-only.
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a new ledger Service. metrics may be nil.
func New(storage storage.Storage, clock clock.Clock, metrics *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		storage: storage,
		clock:   clock,
		metrics: metrics,
		logger:  logger,
	}
}

// Post records a chat or private message from a registered participant.
// The sender is checked before the payload, so an unknown sender always
// fails with model.ErrUnknownSender. Payload values are decoded JSON, and
// a non-string is reported as a validation failure.
func (s *Service) Post(ctx context.Context, from string, to, text, kind any) (*model.Message, error) {
	if _, err := s.storage.GetParticipant(ctx, from); err != nil {
		if errors.Is(err, model.ErrParticipantNotFound) {
			return nil, model.ErrUnknownSender
		}
		return nil, err
	}

	draft, err := validation.Message(to, text, kind)
	if err != nil {
		return nil, err
	}

	return s.append(ctx, from, draft.To, draft.Text, draft.Kind)
}

// AppendSystemEvent records a status message about name, addressed to everyone.
// It skips the sender and payload checks.
func (s *Service) AppendSystemEvent(ctx context.Context, name, text string) (*model.Message, error) {
	return s.append(ctx, name, model.Broadcast, text, model.KindStatus)
}

// RecordJoin appends the join status for a newly registered participant.
// Failures are logged and never surface to the registering client.
func (s *Service) RecordJoin(ctx context.Context, p *model.Participant) {
	if _, err := s.AppendSystemEvent(ctx, p.Name, model.JoinText); err != nil {
		s.logger.Warn("failed to record join", "name", p.Name, "error", err)
	}
}

// All returns the full history in insertion order
func (s *Service) All(ctx context.Context) ([]*model.Message, error) {
	return s.storage.ListMessages(ctx)
}

// ListVisible returns the messages viewer may read, see visibility.Filter
func (s *Service) ListVisible(ctx context.Context, viewer string, limit *int) ([]*model.Message, error) {
	if limit != nil && *limit <= 0 {
		// Reject before touching the store
		return visibility.Filter(viewer, nil, limit)
	}

	messages, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return visibility.Filter(viewer, messages, limit)
}

func (s *Service) append(ctx context.Context, from, to, text string, kind model.MessageKind) (*model.Message, error) {
	now := s.clock.Now()
	m := &model.Message{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		Text:      text,
		Kind:      kind,
		Time:      now.Format(model.TimeLayout),
		CreatedAt: now,
	}
	if err := s.storage.AppendMessage(ctx, m); err != nil {
		return nil, err
	}

	s.metrics.MessageAppended(string(kind))
	s.logger.Debug("message appended", "id", m.ID, "seq", m.Seq, "type", kind)
	return m, nil
}
