package badger

import "fmt"

const (
	participantPrefix = "participant:"
	messagePrefix     = "message:"
	messageSeqKey     = "seq:messages"
)

func participantKey(name string) []byte {
	return []byte(participantPrefix + name)
}

// messageKey zero-pads the sequence so lexicographic order is insertion order
func messageKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", messagePrefix, seq))
}
