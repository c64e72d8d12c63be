package response

import (
	"time"

	"github.com/samber/lo"

	"github.com/mcoot/presencechat/internal/model"
)

// Participant represents a participant in API responses
type Participant struct {
	Name     string    `json:"name"`
	LastSeen time.Time `json:"last_seen"`
}

// ParticipantFromModel converts a model.Participant to a response Participant
func ParticipantFromModel(p *model.Participant) Participant {
	return Participant{
		Name:     p.Name,
		LastSeen: p.LastSeen,
	}
}

// ParticipantsFromModel converts a participant list; never nil
func ParticipantsFromModel(ps []*model.Participant) []Participant {
	return lo.Map(ps, func(p *model.Participant, _ int) Participant {
		return ParticipantFromModel(p)
	})
}

// Message represents a chat message in API responses
type Message struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Text      string    `json:"text"`
	Type      string    `json:"type"`
	Time      string    `json:"time"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageFromModel converts model.Message
func MessageFromModel(m *model.Message) Message {
	return Message{
		ID:        m.ID,
		Seq:       m.Seq,
		From:      m.From,
		To:        m.To,
		Text:      m.Text,
		Type:      string(m.Kind),
		Time:      m.Time,
		CreatedAt: m.CreatedAt,
	}
}

// MessagesFromModel converts a message list; never nil
func MessagesFromModel(ms []*model.Message) []Message {
	return lo.Map(ms, func(m *model.Message, _ int) Message {
		return MessageFromModel(m)
	})
}

// Status is a simple acknowledgement
type Status struct {
	Status string `json:"status"`
}
