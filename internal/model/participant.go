package model

import "time"

// Participant is a chat user currently considered online
type Participant struct {
	Name     string    `json:"name" bson:"name"`
	LastSeen time.Time `json:"last_seen" bson:"lastSeen"`
}

// ActiveSince reports whether the participant was seen strictly after cutoff.
// A participant seen exactly at cutoff is stale.
func (p *Participant) ActiveSince(cutoff time.Time) bool {
	return p.LastSeen.After(cutoff)
}
