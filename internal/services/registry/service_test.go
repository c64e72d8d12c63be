package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/mcoot/presencechat/internal/dependencies/mocks"
	"github.com/mcoot/presencechat/internal/model"
	"github.com/mcoot/presencechat/internal/storage/memory"
	storagemocks "github.com/mcoot/presencechat/internal/storage/mocks"
	"github.com/mcoot/presencechat/internal/testutil"
)

type ServiceSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *mocks.MockClock
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.service = New(s.storage, s.clock, testutil.NopLogger())
	s.ctx = context.Background()
}

// Register tests

func (s *ServiceSuite) TestRegisterSucceeds() {
	p, err := s.service.Register(s.ctx, "alice")
	s.Require().NoError(err)

	s.Equal("alice", p.Name)
	s.Equal(s.clock.Now(), p.LastSeen)

	stored, err := s.storage.GetParticipant(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(s.clock.Now(), stored.LastSeen)
}

func (s *ServiceSuite) TestRegisterTrimsName() {
	p, err := s.service.Register(s.ctx, "  alice  ")
	s.Require().NoError(err)
	s.Equal("alice", p.Name)
}

func (s *ServiceSuite) TestRegisterBlankNameFails() {
	_, err := s.service.Register(s.ctx, "   ")
	s.ErrorIs(err, model.ErrInvalid)

	all, err := s.storage.ListParticipants(s.ctx)
	s.Require().NoError(err)
	s.Empty(all)
}

func (s *ServiceSuite) TestRegisterDuplicateConflicts() {
	_, err := s.service.Register(s.ctx, "alice")
	s.Require().NoError(err)

	s.clock.Advance(5 * time.Second)
	_, err = s.service.Register(s.ctx, "alice")
	s.ErrorIs(err, model.ErrParticipantExists)

	// Holder keeps its original LastSeen
	stored, err := s.storage.GetParticipant(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(s.clock.Now().Add(-5*time.Second), stored.LastSeen)
}

func (s *ServiceSuite) TestRegisterTakenNameSkipsInsert() {
	ctrl := gomock.NewController(s.T())
	store := storagemocks.NewMockStorage(ctrl)
	store.EXPECT().GetParticipant(gomock.Any(), "alice").
		Return(&model.Participant{Name: "alice", LastSeen: s.clock.Now()}, nil)
	store.EXPECT().InsertParticipant(gomock.Any(), gomock.Any()).Times(0)

	svc := New(store, s.clock, testutil.NopLogger())
	_, err := svc.Register(s.ctx, " alice ")
	s.ErrorIs(err, model.ErrParticipantExists)
}

func (s *ServiceSuite) TestRegisterRacedInsertStillConflicts() {
	ctrl := gomock.NewController(s.T())
	store := storagemocks.NewMockStorage(ctrl)
	// Another request claims the name between the lookup and the insert
	store.EXPECT().GetParticipant(gomock.Any(), "alice").Return(nil, model.ErrParticipantNotFound)
	store.EXPECT().InsertParticipant(gomock.Any(), gomock.Any()).Return(model.ErrParticipantExists)

	svc := New(store, s.clock, testutil.NopLogger())
	_, err := svc.Register(s.ctx, "alice")
	s.ErrorIs(err, model.ErrParticipantExists)
}

func (s *ServiceSuite) TestRegisterNonStringNameFails() {
	_, err := s.service.Register(s.ctx, 42.0)

	var verr *model.ValidationError
	s.Require().ErrorAs(err, &verr)
	s.Equal([]string{"name must be a string"}, verr.Details)
}

func (s *ServiceSuite) TestRegisterNamesAreCaseSensitive() {
	_, err := s.service.Register(s.ctx, "alice")
	s.Require().NoError(err)
	_, err = s.service.Register(s.ctx, "Alice")
	s.NoError(err)
}

func (s *ServiceSuite) TestJoinHookRunsAfterInsert() {
	var joined []string
	s.service.OnJoin(func(ctx context.Context, p *model.Participant) {
		_, err := s.storage.GetParticipant(ctx, p.Name)
		s.NoError(err, "hook must see the stored participant")
		joined = append(joined, p.Name)
	})

	_, err := s.service.Register(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal([]string{"alice"}, joined)
}

func (s *ServiceSuite) TestJoinHookSkippedOnFailure() {
	calls := 0
	s.service.OnJoin(func(context.Context, *model.Participant) { calls++ })

	_, _ = s.service.Register(s.ctx, "")
	_, _ = s.service.Register(s.ctx, "alice")
	_, _ = s.service.Register(s.ctx, "alice")

	s.Equal(1, calls)
}

func (s *ServiceSuite) TestConcurrentRegisterHasOneWinner() {
	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)

	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.Register(s.ctx, "alice")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	successes, conflicts := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, model.ErrParticipantExists):
			conflicts++
		}
	}
	s.Equal(1, successes)
	s.Equal(n-1, conflicts)
}

// Touch tests

func (s *ServiceSuite) TestTouchRefreshesLastSeen() {
	_, err := s.service.Register(s.ctx, "alice")
	s.Require().NoError(err)

	s.clock.Advance(7 * time.Second)
	s.Require().NoError(s.service.Touch(s.ctx, "alice"))

	p, err := s.service.Get(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(s.clock.Now(), p.LastSeen)
}

func (s *ServiceSuite) TestTouchUnknownFailsWithoutCreating() {
	err := s.service.Touch(s.ctx, "ghost")
	s.ErrorIs(err, model.ErrParticipantNotFound)

	_, err = s.service.Get(s.ctx, "ghost")
	s.ErrorIs(err, model.ErrParticipantNotFound)
}

// Stale tests

func (s *ServiceSuite) TestFindStaleBefore() {
	_, _ = s.service.Register(s.ctx, "old")
	s.clock.Advance(10 * time.Second)
	_, _ = s.service.Register(s.ctx, "edge")
	s.clock.Advance(time.Second)
	_, _ = s.service.Register(s.ctx, "fresh")

	stale, err := s.service.FindStaleBefore(s.ctx, s.clock.Now().Add(-time.Second))
	s.Require().NoError(err)

	names := make([]string, len(stale))
	for i, p := range stale {
		names[i] = p.Name
	}
	s.ElementsMatch([]string{"old", "edge"}, names)
}

func (s *ServiceSuite) TestFindActiveSince() {
	_, _ = s.service.Register(s.ctx, "old")
	s.clock.Advance(10 * time.Second)
	_, _ = s.service.Register(s.ctx, "edge")
	s.clock.Advance(time.Second)
	_, _ = s.service.Register(s.ctx, "fresh")

	// edge was seen exactly at the cutoff, so it is not active
	active, err := s.service.FindActiveSince(s.ctx, s.clock.Now().Add(-time.Second))
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal("fresh", active[0].Name)
}

func (s *ServiceSuite) TestRemoveStaleSkipsRefreshed() {
	_, _ = s.service.Register(s.ctx, "alice")
	_, _ = s.service.Register(s.ctx, "bob")
	cutoff := s.clock.Now()

	s.clock.Advance(time.Second)
	s.Require().NoError(s.service.Touch(s.ctx, "bob"))

	removed, err := s.service.RemoveStale(s.ctx, []string{"alice", "bob"}, cutoff)
	s.Require().NoError(err)
	s.Equal([]string{"alice"}, removed)

	_, err = s.service.Get(s.ctx, "bob")
	s.NoError(err)
}

func (s *ServiceSuite) TestRemoveStaleEmptyIsNoop() {
	ctrl := gomock.NewController(s.T())
	store := storagemocks.NewMockStorage(ctrl)
	store.EXPECT().DeleteParticipants(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	svc := New(store, s.clock, testutil.NopLogger())
	removed, err := svc.RemoveStale(s.ctx, nil, s.clock.Now())
	s.NoError(err)
	s.Empty(removed)
}

func (s *ServiceSuite) TestStoreFailurePropagates() {
	ctrl := gomock.NewController(s.T())
	store := storagemocks.NewMockStorage(ctrl)
	down := errors.Join(model.ErrStoreUnavailable, errors.New("connection refused"))
	gomock.InOrder(
		store.EXPECT().GetParticipant(gomock.Any(), "alice").Return(nil, down),
		store.EXPECT().GetParticipant(gomock.Any(), "bob").Return(nil, model.ErrParticipantNotFound),
		store.EXPECT().InsertParticipant(gomock.Any(), gomock.Any()).Return(down),
	)
	store.EXPECT().ListParticipants(gomock.Any()).Return(nil, down).Times(2)

	svc := New(store, s.clock, testutil.NopLogger())

	_, err := svc.Register(s.ctx, "alice")
	s.ErrorIs(err, model.ErrStoreUnavailable)

	_, err = svc.Register(s.ctx, "bob")
	s.ErrorIs(err, model.ErrStoreUnavailable)

	_, err = svc.FindStaleBefore(s.ctx, s.clock.Now())
	s.ErrorIs(err, model.ErrStoreUnavailable)

	_, err = svc.FindActiveSince(s.ctx, s.clock.Now())
	s.ErrorIs(err, model.ErrStoreUnavailable)
}
