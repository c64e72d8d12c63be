package presence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/mcoot/presencechat/internal/dependencies/mocks"
	"github.com/mcoot/presencechat/internal/metrics"
	"github.com/mcoot/presencechat/internal/model"
	"github.com/mcoot/presencechat/internal/services/ledger"
	"github.com/mcoot/presencechat/internal/services/registry"
	"github.com/mcoot/presencechat/internal/storage"
	"github.com/mcoot/presencechat/internal/storage/memory"
	storagemocks "github.com/mcoot/presencechat/internal/storage/mocks"
	"github.com/mcoot/presencechat/internal/testutil"
)

type SweeperSuite struct {
	suite.Suite
	storage  *memory.Storage
	clock    *mocks.MockClock
	registry *registry.Service
	ledger   *ledger.Service
	metrics  *metrics.Metrics
	sweeper  *Sweeper
	ctx      context.Context
}

func TestSweeperSuite(t *testing.T) {
	suite.Run(t, new(SweeperSuite))
}

func (s *SweeperSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.ctx = context.Background()
	s.build(s.storage)
}

func (s *SweeperSuite) TearDownTest() {
	s.sweeper.Stop()
}

func (s *SweeperSuite) build(store storage.Storage) {
	logger := testutil.NopLogger()
	s.registry = registry.New(store, s.clock, logger)
	s.ledger = ledger.New(store, s.clock, nil, logger)
	s.metrics = metrics.New()
	s.sweeper = New(s.registry, s.ledger, s.clock, s.metrics, DefaultConfig(), logger)
}

func (s *SweeperSuite) register(name string) {
	_, err := s.registry.Register(s.ctx, name)
	s.Require().NoError(err)
}

func (s *SweeperSuite) statusMessages() []*model.Message {
	all, err := s.ledger.All(s.ctx)
	s.Require().NoError(err)
	var out []*model.Message
	for _, m := range all {
		if m.Kind == model.KindStatus {
			out = append(out, m)
		}
	}
	return out
}

func (s *SweeperSuite) activeGauge() float64 {
	families, err := s.metrics.Registry().Gather()
	s.Require().NoError(err)
	for _, f := range families {
		if f.GetName() == "presencechat_participants" {
			return f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	s.FailNow("participants gauge not registered")
	return 0
}

// SweepOnce tests

func (s *SweeperSuite) TestEvictsOnlyStale() {
	s.register("alice")
	s.register("bob")

	s.clock.Advance(8 * time.Second)
	s.Require().NoError(s.registry.Touch(s.ctx, "bob"))
	s.clock.Advance(3 * time.Second)

	evicted, err := s.sweeper.SweepOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"alice"}, evicted)

	_, err = s.registry.Get(s.ctx, "alice")
	s.ErrorIs(err, model.ErrParticipantNotFound)
	_, err = s.registry.Get(s.ctx, "bob")
	s.NoError(err)

	status := s.statusMessages()
	s.Require().Len(status, 1)
	s.Equal("alice", status[0].From)
	s.Equal(model.Broadcast, status[0].To)
	s.Equal(model.LeaveText, status[0].Text)
}

func (s *SweeperSuite) TestGaugeCountsSurvivors() {
	s.register("alice")
	s.register("bob")
	s.clock.Advance(8 * time.Second)
	s.register("carol")
	s.clock.Advance(3 * time.Second)

	evicted, err := s.sweeper.SweepOnce(s.ctx)
	s.Require().NoError(err)
	s.ElementsMatch([]string{"alice", "bob"}, evicted)
	s.Equal(1.0, s.activeGauge())
}

func (s *SweeperSuite) TestGaugeFailureDoesNotFailSweep() {
	ctrl := gomock.NewController(s.T())
	store := storagemocks.NewMockStorage(ctrl)
	s.build(store)

	gomock.InOrder(
		store.EXPECT().ListParticipants(gomock.Any()).Return([]*model.Participant{}, nil),
		store.EXPECT().ListParticipants(gomock.Any()).Return(nil, storage.Unavailable("list", errors.New("down"))),
	)

	evicted, err := s.sweeper.SweepOnce(s.ctx)
	s.NoError(err)
	s.Empty(evicted)
}

func (s *SweeperSuite) TestThresholdIsInclusive() {
	s.register("alice")
	s.clock.Advance(DefaultInactivityThreshold)

	evicted, err := s.sweeper.SweepOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"alice"}, evicted)
}

func (s *SweeperSuite) TestJustUnderThresholdSurvives() {
	s.register("alice")
	s.clock.Advance(DefaultInactivityThreshold - time.Millisecond)

	evicted, err := s.sweeper.SweepOnce(s.ctx)
	s.Require().NoError(err)
	s.Empty(evicted)
}

func (s *SweeperSuite) TestNothingToSweep() {
	evicted, err := s.sweeper.SweepOnce(s.ctx)
	s.Require().NoError(err)
	s.Empty(evicted)
	s.Empty(s.statusMessages())
}

func (s *SweeperSuite) TestOneLeaveMessagePerEviction() {
	for _, name := range []string{"a", "b", "c"} {
		s.register(name)
	}
	s.clock.Advance(time.Minute)

	evicted, err := s.sweeper.SweepOnce(s.ctx)
	s.Require().NoError(err)
	s.ElementsMatch([]string{"a", "b", "c"}, evicted)

	froms := make([]string, 0, 3)
	for _, m := range s.statusMessages() {
		froms = append(froms, m.From)
	}
	s.ElementsMatch([]string{"a", "b", "c"}, froms)

	// A second sweep finds nothing new
	evicted, err = s.sweeper.SweepOnce(s.ctx)
	s.Require().NoError(err)
	s.Empty(evicted)
	s.Len(s.statusMessages(), 3)
}

func (s *SweeperSuite) TestHeartbeatAfterListSurvives() {
	ctrl := gomock.NewController(s.T())
	store := storagemocks.NewMockStorage(ctrl)
	s.build(store)

	stale := &model.Participant{Name: "alice", LastSeen: s.clock.Now().Add(-time.Minute)}
	refreshed := &model.Participant{Name: "alice", LastSeen: s.clock.Now()}
	gomock.InOrder(
		store.EXPECT().ListParticipants(gomock.Any()).Return([]*model.Participant{stale}, nil),
		// alice heartbeated between the read and the delete, so the guarded delete skips her
		store.EXPECT().DeleteParticipants(gomock.Any(), []string{"alice"}, s.clock.Now().Add(-DefaultInactivityThreshold)).
			Return(nil, nil),
		store.EXPECT().ListParticipants(gomock.Any()).Return([]*model.Participant{refreshed}, nil),
	)
	store.EXPECT().AppendMessage(gomock.Any(), gomock.Any()).Times(0)

	evicted, err := s.sweeper.SweepOnce(s.ctx)
	s.Require().NoError(err)
	s.Empty(evicted)
	s.Equal(1.0, s.activeGauge())
}

func (s *SweeperSuite) TestListFailureReturnsError() {
	ctrl := gomock.NewController(s.T())
	store := storagemocks.NewMockStorage(ctrl)
	s.build(store)

	store.EXPECT().ListParticipants(gomock.Any()).
		Return(nil, storage.Unavailable("list", errors.New("down")))
	store.EXPECT().DeleteParticipants(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	_, err := s.sweeper.SweepOnce(s.ctx)
	s.ErrorIs(err, model.ErrStoreUnavailable)
}

func (s *SweeperSuite) TestDepartureFailureStillEvictsOthers() {
	ctrl := gomock.NewController(s.T())
	store := storagemocks.NewMockStorage(ctrl)
	s.build(store)

	old := s.clock.Now().Add(-time.Minute)
	gomock.InOrder(
		store.EXPECT().ListParticipants(gomock.Any()).Return([]*model.Participant{
			{Name: "a", LastSeen: old},
			{Name: "b", LastSeen: old},
		}, nil),
		store.EXPECT().DeleteParticipants(gomock.Any(), gomock.Any(), gomock.Any()).Return([]string{"a", "b"}, nil),
		store.EXPECT().AppendMessage(gomock.Any(), gomock.Any()).Return(storage.Unavailable("append", errors.New("down"))),
		store.EXPECT().AppendMessage(gomock.Any(), gomock.Any()).Return(nil),
		store.EXPECT().ListParticipants(gomock.Any()).Return(nil, nil),
	)

	evicted, err := s.sweeper.SweepOnce(s.ctx)
	s.Equal([]string{"a", "b"}, evicted)
	s.ErrorIs(err, model.ErrStoreUnavailable)
}

// Loop tests

func (s *SweeperSuite) TestLoopSweepsOnTick() {
	s.register("alice")
	s.sweeper.Start(s.ctx)

	s.clock.Advance(11 * time.Second)
	s.clock.Tick()

	s.Eventually(func() bool {
		_, err := s.storage.GetParticipant(s.ctx, "alice")
		return errors.Is(err, model.ErrParticipantNotFound)
	}, time.Second, 5*time.Millisecond)
}

func (s *SweeperSuite) TestLoopSurvivesFailedCycle() {
	ctrl := gomock.NewController(s.T())
	store := storagemocks.NewMockStorage(ctrl)
	s.build(store)

	swept := make(chan struct{})
	var once sync.Once
	gomock.InOrder(
		store.EXPECT().ListParticipants(gomock.Any()).Return(nil, storage.Unavailable("list", errors.New("down"))),
		store.EXPECT().ListParticipants(gomock.Any()).DoAndReturn(
			func(context.Context) ([]*model.Participant, error) {
				once.Do(func() { close(swept) })
				return []*model.Participant{}, nil
			}).MinTimes(1),
	)

	s.sweeper.Start(s.ctx)
	s.clock.Tick()
	s.Eventually(func() bool {
		select {
		case <-swept:
			return true
		default:
			// Dropped if the previous tick is still buffered
			s.clock.Tick()
			return false
		}
	}, time.Second, 10*time.Millisecond)

	s.sweeper.Stop()
	ctrl.Finish()
}

func (s *SweeperSuite) TestStopEndsLoop() {
	s.sweeper.Start(s.ctx)
	s.Equal(1, s.clock.Tickers())

	s.sweeper.Stop()
	s.Equal(0, s.clock.Tickers())

	// Stop is idempotent
	s.sweeper.Stop()
}

func (s *SweeperSuite) TestStartTwiceRunsOneLoop() {
	s.sweeper.Start(s.ctx)
	s.sweeper.Start(s.ctx)
	s.Equal(1, s.clock.Tickers())
}

func (s *SweeperSuite) TestContextCancelEndsLoop() {
	ctx, cancel := context.WithCancel(s.ctx)
	s.sweeper.Start(ctx)
	cancel()

	s.Eventually(func() bool { return s.clock.Tickers() == 0 }, time.Second, 5*time.Millisecond)
}
