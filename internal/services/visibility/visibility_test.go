package visibility

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/presencechat/internal/model"
)

type FilterSuite struct {
	suite.Suite
	messages []*model.Message
}

func TestFilterSuite(t *testing.T) {
	suite.Run(t, new(FilterSuite))
}

func (s *FilterSuite) SetupTest() {
	s.messages = []*model.Message{
		s.msg(1, "alice", model.Broadcast, model.KindStatus),
		s.msg(2, "alice", model.Broadcast, model.KindChat),
		s.msg(3, "alice", "bob", model.KindPrivate),
		s.msg(4, "bob", "alice", model.KindPrivate),
		s.msg(5, "carol", "bob", model.KindPrivate),
		s.msg(6, "bob", model.Broadcast, model.KindChat),
		s.msg(7, "dave", model.Broadcast, model.KindStatus),
	}
}

func (s *FilterSuite) msg(seq int64, from, to string, kind model.MessageKind) *model.Message {
	return &model.Message{Seq: seq, From: from, To: to, Text: "m", Kind: kind}
}

func seqs(msgs []*model.Message) []int64 {
	return lo.Map(msgs, func(m *model.Message, _ int) int64 { return m.Seq })
}

func intPtr(n int) *int { return &n }

func (s *FilterSuite) TestUnlimitedIsChronological() {
	got, err := Filter("alice", s.messages, nil)
	s.Require().NoError(err)
	s.Equal([]int64{1, 2, 3, 4, 6, 7}, seqs(got))
}

func (s *FilterSuite) TestPrivateHiddenFromThirdParty() {
	got, err := Filter("dave", s.messages, nil)
	s.Require().NoError(err)
	s.Equal([]int64{1, 2, 6, 7}, seqs(got))
}

func (s *FilterSuite) TestRecipientSeesPrivate() {
	got, err := Filter("bob", s.messages, nil)
	s.Require().NoError(err)
	s.Equal([]int64{1, 2, 3, 4, 5, 6, 7}, seqs(got))
}

func (s *FilterSuite) TestStatusVisibleRegardlessOfTarget() {
	s.messages = append(s.messages, s.msg(8, "erin", "someone-else", model.KindStatus))

	got, err := Filter("zed", s.messages, nil)
	s.Require().NoError(err)
	s.Contains(seqs(got), int64(8))
}

func (s *FilterSuite) TestLimitReturnsNewestFirst() {
	got, err := Filter("alice", s.messages, intPtr(3))
	s.Require().NoError(err)
	s.Equal([]int64{7, 6, 4}, seqs(got))
}

func (s *FilterSuite) TestLimitLargerThanVisible() {
	got, err := Filter("dave", s.messages, intPtr(50))
	s.Require().NoError(err)
	s.Equal([]int64{7, 6, 2, 1}, seqs(got))
}

func (s *FilterSuite) TestLimitOne() {
	got, err := Filter("carol", s.messages, intPtr(1))
	s.Require().NoError(err)
	s.Equal([]int64{7}, seqs(got))
}

func (s *FilterSuite) TestNonPositiveLimitRejected() {
	for _, n := range []int{0, -1} {
		got, err := Filter("alice", s.messages, intPtr(n))
		s.Nil(got)
		s.ErrorIs(err, model.ErrInvalidLimit)
	}
}

func (s *FilterSuite) TestEmptyHistory() {
	got, err := Filter("alice", nil, nil)
	s.Require().NoError(err)
	s.Empty(got)

	got, err = Filter("alice", []*model.Message{}, intPtr(2))
	s.Require().NoError(err)
	s.Empty(got)
}

func (s *FilterSuite) TestInputNotReordered() {
	_, err := Filter("alice", s.messages, intPtr(2))
	s.Require().NoError(err)
	s.Equal([]int64{1, 2, 3, 4, 5, 6, 7}, seqs(s.messages))
}
