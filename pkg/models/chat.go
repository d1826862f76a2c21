package models

// Role follows the chat-model convention.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat message sent upstream.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest carries everything the gateway needs for one call:
// the system prompt, the raw user query and the sampling temperature.
// No conversation history is kept between requests.
type CompletionRequest struct {
	System      string
	Query       string
	Temperature float64
}

// Messages returns the two ordered messages of the request.
func (r CompletionRequest) Messages() []Message {
	return []Message{
		{Role: RoleSystem, Content: r.System},
		{Role: RoleUser, Content: r.Query},
	}
}

// TextStream yields reply fragments as they arrive from the model.
//
// Next advances to the next non-empty fragment and reports whether one is
// available. Err returns the error that stopped the stream, if any. Close
// releases the stream and cancels the underlying request when it is still
// in flight; it is safe to call more than once.
type TextStream interface {
	Next() bool
	Text() string
	Err() error
	Close() error
}
