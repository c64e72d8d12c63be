package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationErrorMatchesInvalid(t *testing.T) {
	err := NewValidationError("to is required", "text is required")

	assert.ErrorIs(t, err, ErrInvalid)
	assert.NotErrorIs(t, err, ErrInvalidLimit)
	assert.Equal(t, "invalid input: to is required; text is required", err.Error())
}

func TestLimitErrorMatchesBoth(t *testing.T) {
	err := fmt.Errorf("list messages: %w", NewLimitError("limit must be greater than zero"))

	assert.ErrorIs(t, err, ErrInvalidLimit)
	assert.ErrorIs(t, err, ErrInvalid)

	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, []string{"limit must be greater than zero"}, ve.Details)
}

func TestMessageVisibleTo(t *testing.T) {
	tests := []struct {
		name    string
		msg     Message
		viewer  string
		visible bool
	}{
		{"broadcast", Message{From: "alice", To: Broadcast, Kind: KindChat}, "dave", true},
		{"private to viewer", Message{From: "alice", To: "dave", Kind: KindPrivate}, "dave", true},
		{"private from viewer", Message{From: "dave", To: "carol", Kind: KindPrivate}, "dave", true},
		{"private to someone else", Message{From: "alice", To: "carol", Kind: KindPrivate}, "dave", false},
		{"status targeted elsewhere", Message{From: "alice", To: "carol", Kind: KindStatus}, "dave", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.visible, tt.msg.VisibleTo(tt.viewer))
		})
	}
}
