// Package storagetest holds the behaviour suite every storage adapter must pass.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/presencechat/internal/model"
	"github.com/mcoot/presencechat/internal/storage"
)

// Suite exercises a storage.Storage implementation.
// Adapters embed it and set NewStorage in SetupTest.
type Suite struct {
	suite.Suite
	Storage storage.Storage
	Ctx     context.Context
	Now     time.Time
}

// Init prepares the suite for one test with a fresh store
func (s *Suite) Init(store storage.Storage) {
	s.Storage = store
	s.Ctx = context.Background()
	// Millisecond precision survives every backend
	s.Now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

func (s *Suite) participant(name string, lastSeen time.Time) *model.Participant {
	return &model.Participant{Name: name, LastSeen: lastSeen}
}

func (s *Suite) message(from, to, text string) *model.Message {
	return &model.Message{
		ID:        fmt.Sprintf("%s-%s-%s", from, to, text),
		From:      from,
		To:        to,
		Text:      text,
		Kind:      model.KindChat,
		Time:      s.Now.Format(model.TimeLayout),
		CreatedAt: s.Now,
	}
}

// Participant tests

func (s *Suite) TestInsertAndGetParticipant() {
	err := s.Storage.InsertParticipant(s.Ctx, s.participant("alice", s.Now))
	s.Require().NoError(err)

	p, err := s.Storage.GetParticipant(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal("alice", p.Name)
	s.True(s.Now.Equal(p.LastSeen))
}

func (s *Suite) TestGetParticipantNotFound() {
	_, err := s.Storage.GetParticipant(s.Ctx, "nobody")
	s.ErrorIs(err, model.ErrParticipantNotFound)
}

func (s *Suite) TestInsertDuplicateParticipantIsRejected() {
	s.Require().NoError(s.Storage.InsertParticipant(s.Ctx, s.participant("alice", s.Now)))

	err := s.Storage.InsertParticipant(s.Ctx, s.participant("alice", s.Now.Add(time.Minute)))
	s.ErrorIs(err, model.ErrParticipantExists)

	// Original document is untouched
	p, err := s.Storage.GetParticipant(s.Ctx, "alice")
	s.Require().NoError(err)
	s.True(s.Now.Equal(p.LastSeen))
}

func (s *Suite) TestParticipantNamesAreCaseSensitive() {
	s.Require().NoError(s.Storage.InsertParticipant(s.Ctx, s.participant("alice", s.Now)))
	s.Require().NoError(s.Storage.InsertParticipant(s.Ctx, s.participant("Alice", s.Now)))

	participants, err := s.Storage.ListParticipants(s.Ctx)
	s.Require().NoError(err)
	s.Len(participants, 2)
}

func (s *Suite) TestConcurrentInsertSameNameOnlyOneWins() {
	const attempts = 8
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Storage.InsertParticipant(s.Ctx, s.participant("alice", s.Now))
		}()
	}
	wg.Wait()
	close(errs)

	successes := 0
	for err := range errs {
		if err == nil {
			successes++
			continue
		}
		s.ErrorIs(err, model.ErrParticipantExists)
	}
	s.Equal(1, successes)
}

func (s *Suite) TestListParticipants() {
	for _, name := range []string{"carol", "alice", "bob"} {
		s.Require().NoError(s.Storage.InsertParticipant(s.Ctx, s.participant(name, s.Now)))
	}

	participants, err := s.Storage.ListParticipants(s.Ctx)
	s.Require().NoError(err)

	names := make([]string, len(participants))
	for i, p := range participants {
		names[i] = p.Name
	}
	s.ElementsMatch([]string{"alice", "bob", "carol"}, names)
}

func (s *Suite) TestListParticipantsEmpty() {
	participants, err := s.Storage.ListParticipants(s.Ctx)
	s.Require().NoError(err)
	s.Empty(participants)
}

func (s *Suite) TestTouchParticipant() {
	s.Require().NoError(s.Storage.InsertParticipant(s.Ctx, s.participant("alice", s.Now)))

	later := s.Now.Add(5 * time.Second)
	s.Require().NoError(s.Storage.TouchParticipant(s.Ctx, "alice", later))

	p, err := s.Storage.GetParticipant(s.Ctx, "alice")
	s.Require().NoError(err)
	s.True(later.Equal(p.LastSeen))
}

func (s *Suite) TestTouchParticipantNotFound() {
	err := s.Storage.TouchParticipant(s.Ctx, "ghost", s.Now)
	s.ErrorIs(err, model.ErrParticipantNotFound)

	// Touch never creates
	_, err = s.Storage.GetParticipant(s.Ctx, "ghost")
	s.ErrorIs(err, model.ErrParticipantNotFound)
}

func (s *Suite) TestDeleteParticipantsRemovesOnlyStale() {
	s.Require().NoError(s.Storage.InsertParticipant(s.Ctx, s.participant("alice", s.Now.Add(-20*time.Second))))
	s.Require().NoError(s.Storage.InsertParticipant(s.Ctx, s.participant("bob", s.Now.Add(-10*time.Second))))
	s.Require().NoError(s.Storage.InsertParticipant(s.Ctx, s.participant("carol", s.Now)))

	cutoff := s.Now.Add(-10 * time.Second)
	deleted, err := s.Storage.DeleteParticipants(s.Ctx, []string{"alice", "bob", "carol"}, cutoff)
	s.Require().NoError(err)
	s.ElementsMatch([]string{"alice", "bob"}, deleted)

	participants, err := s.Storage.ListParticipants(s.Ctx)
	s.Require().NoError(err)
	s.Require().Len(participants, 1)
	s.Equal("carol", participants[0].Name)
}

func (s *Suite) TestDeleteParticipantsSkipsRefreshed() {
	s.Require().NoError(s.Storage.InsertParticipant(s.Ctx, s.participant("alice", s.Now.Add(-20*time.Second))))

	// Heartbeat lands between the sweeper's read and its delete
	s.Require().NoError(s.Storage.TouchParticipant(s.Ctx, "alice", s.Now))

	deleted, err := s.Storage.DeleteParticipants(s.Ctx, []string{"alice"}, s.Now.Add(-10*time.Second))
	s.Require().NoError(err)
	s.Empty(deleted)

	_, err = s.Storage.GetParticipant(s.Ctx, "alice")
	s.NoError(err)
}

func (s *Suite) TestDeleteParticipantsIgnoresUnknownNames() {
	deleted, err := s.Storage.DeleteParticipants(s.Ctx, []string{"ghost"}, s.Now)
	s.Require().NoError(err)
	s.Empty(deleted)
}

func (s *Suite) TestDeleteParticipantsEmptySet() {
	deleted, err := s.Storage.DeleteParticipants(s.Ctx, nil, s.Now)
	s.Require().NoError(err)
	s.Empty(deleted)
}

// Message tests

func (s *Suite) TestAppendAssignsIncreasingSeq() {
	first := s.message("alice", model.Broadcast, "one")
	second := s.message("bob", model.Broadcast, "two")

	s.Require().NoError(s.Storage.AppendMessage(s.Ctx, first))
	s.Require().NoError(s.Storage.AppendMessage(s.Ctx, second))

	s.Positive(first.Seq)
	s.Greater(second.Seq, first.Seq)
}

func (s *Suite) TestListMessagesInInsertionOrder() {
	texts := []string{"one", "two", "three", "four"}
	for _, text := range texts {
		s.Require().NoError(s.Storage.AppendMessage(s.Ctx, s.message("alice", model.Broadcast, text)))
	}

	messages, err := s.Storage.ListMessages(s.Ctx)
	s.Require().NoError(err)
	s.Require().Len(messages, len(texts))
	for i, m := range messages {
		s.Equal(texts[i], m.Text)
		s.Equal("alice", m.From)
		s.Equal(model.Broadcast, m.To)
		s.Equal(model.KindChat, m.Kind)
		s.Equal("12:00:00", m.Time)
		if i > 0 {
			s.Greater(m.Seq, messages[i-1].Seq)
		}
	}
}

func (s *Suite) TestListMessagesEmpty() {
	messages, err := s.Storage.ListMessages(s.Ctx)
	s.Require().NoError(err)
	s.Empty(messages)
}

func (s *Suite) TestConcurrentAppendsAreAllStored() {
	const posts = 20
	var wg sync.WaitGroup
	for i := range posts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m := s.message("alice", model.Broadcast, fmt.Sprintf("msg-%d", i))
			s.NoError(s.Storage.AppendMessage(s.Ctx, m))
		}()
	}
	wg.Wait()

	messages, err := s.Storage.ListMessages(s.Ctx)
	s.Require().NoError(err)
	s.Len(messages, posts)

	seen := make(map[int64]bool, posts)
	for _, m := range messages {
		s.False(seen[m.Seq], "duplicate seq %d", m.Seq)
		seen[m.Seq] = true
	}
}

func (s *Suite) TestPing() {
	s.NoError(s.Storage.Ping(s.Ctx))
}
