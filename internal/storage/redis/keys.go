package redis

import "fmt"

// participantsKey returns the sorted set of participant names scored by last-seen millis
func participantsKey(prefix string) string {
	return fmt.Sprintf("%s:participants", prefix)
}

// messagesKey returns the list holding the message log in insertion order
func messagesKey(prefix string) string {
	return fmt.Sprintf("%s:messages", prefix)
}
