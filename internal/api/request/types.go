package request

// UserHeader names the participant acting on a request
const UserHeader = "User"

// RegisterRequest is the request body for registering a participant.
// Fields decode as raw JSON values so validation can report a wrong type.
type RegisterRequest struct {
	Name any `json:"name"`
}

// PostMessageRequest is the request body for posting a message.
// The sender comes from the User header.
type PostMessageRequest struct {
	To   any `json:"to"`
	Text any `json:"text"`
	Type any `json:"type"`
}
