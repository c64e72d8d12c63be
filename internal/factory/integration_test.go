package factory

import (
	"context"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/presencechat/internal/config"
	"github.com/mcoot/presencechat/internal/model"
)

type IntegrationSuite struct {
	suite.Suite
	app *TestApp
	ctx context.Context
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupTest() {
	s.app = NewTestApp()
	s.ctx = context.Background()
}

func (s *IntegrationSuite) TearDownTest() {
	s.NoError(s.app.Close())
}

func (s *IntegrationSuite) participantNames() []string {
	all, err := s.app.Registry.List(s.ctx)
	s.Require().NoError(err)
	return lo.Map(all, func(p *model.Participant, _ int) string { return p.Name })
}

// Test: duplicate registration conflicts
func (s *IntegrationSuite) TestRegisterTwiceConflicts() {
	_, err := s.app.Registry.Register(s.ctx, "alice")
	s.Require().NoError(err)

	_, err = s.app.Registry.Register(s.ctx, "alice")
	s.ErrorIs(err, model.ErrParticipantExists)
	s.Equal([]string{"alice"}, s.participantNames())
}

// Test: posting as an unregistered sender fails
func (s *IntegrationSuite) TestPostFromUnknownSender() {
	_, err := s.app.Registry.Register(s.ctx, "alice")
	s.Require().NoError(err)

	_, err = s.app.Ledger.Post(s.ctx, "bob", "alice", "hi", "chat")
	s.ErrorIs(err, model.ErrUnknownSender)
}

// Test: a stale participant is swept and leaves a status message
func (s *IntegrationSuite) TestSweepEvictsStaleParticipant() {
	s.app.SuppressJoinMessages()
	_, err := s.app.Registry.Register(s.ctx, "alice")
	s.Require().NoError(err)
	s.app.MockClock.Advance(12 * time.Second)

	_, err = s.app.Sweeper.SweepOnce(s.ctx)
	s.Require().NoError(err)

	s.Empty(s.participantNames())

	all, err := s.app.Ledger.All(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 1)
	s.Equal("alice", all[0].From)
	s.Equal(model.KindStatus, all[0].Kind)
	s.Equal(model.LeaveText, all[0].Text)
}

// Test: private messages are hidden from third parties
func (s *IntegrationSuite) TestThirdPartySeesOnlyBroadcasts() {
	s.app.SuppressJoinMessages()
	for _, name := range []string{"alice", "carol", "dave"} {
		_, err := s.app.Registry.Register(s.ctx, name)
		s.Require().NoError(err)
	}

	for _, text := range []string{"one", "two", "three"} {
		_, err := s.app.Ledger.Post(s.ctx, "alice", model.Broadcast, text, "chat")
		s.Require().NoError(err)
	}
	_, err := s.app.Ledger.Post(s.ctx, "alice", "carol", "secret", "private")
	s.Require().NoError(err)

	visible, err := s.app.Ledger.ListVisible(s.ctx, "dave", nil)
	s.Require().NoError(err)
	s.Equal([]string{"one", "two", "three"}, lo.Map(visible, func(m *model.Message, _ int) string { return m.Text }))
}

// Test: registration records a join message
func (s *IntegrationSuite) TestRegisterRecordsJoin() {
	_, err := s.app.Registry.Register(s.ctx, "alice")
	s.Require().NoError(err)

	all, err := s.app.Ledger.All(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 1)
	s.Equal("alice", all[0].From)
	s.Equal(model.Broadcast, all[0].To)
	s.Equal(model.JoinText, all[0].Text)
	s.Equal(model.KindStatus, all[0].Kind)
}

// Test: heartbeats keep a participant online across sweeps
func (s *IntegrationSuite) TestHeartbeatKeepsParticipantOnline() {
	_, err := s.app.Registry.Register(s.ctx, "alice")
	s.Require().NoError(err)

	for range 5 {
		s.app.MockClock.Advance(8 * time.Second)
		s.Require().NoError(s.app.Registry.Touch(s.ctx, "alice"))
		_, err := s.app.Sweeper.SweepOnce(s.ctx)
		s.Require().NoError(err)
	}
	s.Equal([]string{"alice"}, s.participantNames())

	// An evicted participant cannot heartbeat back in
	s.app.MockClock.Advance(time.Minute)
	_, err = s.app.Sweeper.SweepOnce(s.ctx)
	s.Require().NoError(err)
	s.ErrorIs(s.app.Registry.Touch(s.ctx, "alice"), model.ErrParticipantNotFound)

	// but may register again
	_, err = s.app.Registry.Register(s.ctx, "alice")
	s.NoError(err)
}

// Test: a full session as seen by two participants
func (s *IntegrationSuite) TestConversationFlow() {
	_, err := s.app.Registry.Register(s.ctx, "alice")
	s.Require().NoError(err)
	s.app.MockClock.Advance(time.Second)
	_, err = s.app.Registry.Register(s.ctx, "bob")
	s.Require().NoError(err)

	_, err = s.app.Ledger.Post(s.ctx, "alice", model.Broadcast, "hi all", "chat")
	s.Require().NoError(err)
	_, err = s.app.Ledger.Post(s.ctx, "bob", "alice", "hi alice", "private")
	s.Require().NoError(err)

	aliceView, err := s.app.Ledger.ListVisible(s.ctx, "alice", nil)
	s.Require().NoError(err)
	s.Len(aliceView, 4)

	limit := 2
	latest, err := s.app.Ledger.ListVisible(s.ctx, "alice", &limit)
	s.Require().NoError(err)
	s.Equal([]string{"hi alice", "hi all"}, lo.Map(latest, func(m *model.Message, _ int) string { return m.Text }))
}

func TestNewUsesMemoryByDefault(t *testing.T) {
	app, err := New(context.Background(), Config{})
	require.NoError(t, err)
	defer app.Close()

	_, err = app.Registry.Register(context.Background(), "alice")
	require.NoError(t, err)
}

func TestNewRejectsMissingBackendSettings(t *testing.T) {
	for _, storageType := range []string{
		config.StorageRedis, config.StorageBadger, config.StorageMongo, config.StoragePostgres, "nope",
	} {
		t.Run(storageType, func(t *testing.T) {
			_, err := New(context.Background(), Config{StorageType: storageType})
			require.Error(t, err)
		})
	}
}

func TestNewWithBadger(t *testing.T) {
	app, err := New(context.Background(), Config{
		StorageType: config.StorageBadger,
		BadgerPath:  t.TempDir(),
	})
	require.NoError(t, err)
	defer app.Close()

	_, err = app.Registry.Register(context.Background(), "alice")
	require.NoError(t, err)
}

func TestConfigFrom(t *testing.T) {
	c := &config.Config{
		StorageType:         config.StorageMongo,
		MongoURI:            "mongodb://db:27017",
		MongoDatabase:       "chat",
		SweepInterval:       3 * time.Second,
		InactivityThreshold: 2 * time.Second,
	}

	cfg := ConfigFrom(c, nil)

	require.NotNil(t, cfg.MongoConfig)
	assert.Equal(t, "mongodb://db:27017", cfg.MongoConfig.URI)
	assert.Equal(t, "chat", cfg.MongoConfig.Database)
	assert.Nil(t, cfg.RedisConfig)
	assert.Equal(t, 3*time.Second, cfg.Presence.Interval)
	assert.Equal(t, 2*time.Second, cfg.Presence.InactivityThreshold)
}
