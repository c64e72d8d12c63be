package mongo

import "time"

// Config holds MongoDB connection settings
type Config struct {
	// URI is the MongoDB connection string (e.g., mongodb://localhost:27017)
	URI      string
	Database string

	ConnectTimeout time.Duration
}

// DefaultConfig returns sensible defaults for MongoDB configuration
func DefaultConfig() Config {
	return Config{
		URI:            "mongodb://localhost:27017",
		Database:       "presencechat",
		ConnectTimeout: 5 * time.Second,
	}
}

// Collection names
const (
	participantsCollection = "participants"
	messagesCollection     = "messages"
	countersCollection     = "counters"
)
