package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/mcoot/presencechat/internal/model"
)

//go:generate go run go.uber.org/mock/mockgen -source=interface.go -destination=mocks/storage.go -package=mocks

// Storage is the document store shared by the request path and the presence sweeper.
// Single calls are atomic; sequences of calls are not.
type Storage interface {
	// Participant operations

	// InsertParticipant stores a new participant.
	// Returns model.ErrParticipantExists if the name is taken; existing data is never overwritten.
	InsertParticipant(ctx context.Context, p *model.Participant) error
	GetParticipant(ctx context.Context, name string) (*model.Participant, error)
	// ListParticipants returns every participant in an order stable for one call
	ListParticipants(ctx context.Context) ([]*model.Participant, error)
	// TouchParticipant sets LastSeen; returns model.ErrParticipantNotFound if absent
	TouchParticipant(ctx context.Context, name string, seen time.Time) error
	// DeleteParticipants removes, in one call, every named participant whose LastSeen
	// is not after seenBefore, and returns the names actually removed.
	DeleteParticipants(ctx context.Context, names []string, seenBefore time.Time) ([]string, error)

	// Message operations

	// AppendMessage stores a message and assigns its Seq
	AppendMessage(ctx context.Context, msg *model.Message) error
	// ListMessages returns the full history ordered by Seq
	ListMessages(ctx context.Context) ([]*model.Message, error)

	// Ping checks that the store is reachable
	Ping(ctx context.Context) error
	Close() error
}

// Unavailable marks a backend failure as model.ErrStoreUnavailable
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, model.ErrStoreUnavailable, err)
}
