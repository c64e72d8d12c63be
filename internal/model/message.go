package model

import "time"

// Broadcast is the reserved target addressing every participant
const Broadcast = "Todos"

// System texts recorded for presence transitions
const (
	JoinText  = "entra na sala..."
	LeaveText = "sai da sala..."
)

// TimeLayout is the display format of Message.Time
const TimeLayout = "15:04:05"

// MessageKind distinguishes public, private and system messages
type MessageKind string

const (
	KindChat    MessageKind = "chat"
	KindPrivate MessageKind = "private"
	KindStatus  MessageKind = "status" // system generated, never postable
)

// Message is an immutable chat entry.
// Seq is assigned by the store on insertion and defines retrieval order.
type Message struct {
	ID        string      `json:"id" bson:"id"`
	Seq       int64       `json:"seq" bson:"seq"`
	From      string      `json:"from" bson:"from"`
	To        string      `json:"to" bson:"to"`
	Text      string      `json:"text" bson:"text"`
	Kind      MessageKind `json:"type" bson:"type"`
	Time      string      `json:"time" bson:"time"`
	CreatedAt time.Time   `json:"created_at" bson:"createdAt"`
}

// VisibleTo reports whether viewer may read the message
func (m *Message) VisibleTo(viewer string) bool {
	return m.Kind == KindStatus ||
		m.To == Broadcast ||
		m.From == viewer ||
		m.To == viewer
}
