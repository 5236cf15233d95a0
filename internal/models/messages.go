package models

// Role identifies the author of a chat message.
type Role string

// Chat roles accepted by the chat endpoint and the generation clients.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation. The caller resends the full history on every request.
type Message struct {
	Role    Role   `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content" validate:"no_null_bytes"`
}

// ChatRequest is the body of POST /api/chat: the conversation, oldest first.
type ChatRequest []Message

// FragmentStream is a lazy, finite, non-restartable sequence of generated text fragments.
//
// Next advances to the next fragment and reports whether one is available. When Next returns
// false the stream is exhausted or failed; Err tells which. Close releases the upstream stream
// and may be called at any point, including more than once.
type FragmentStream interface {
	Next() bool
	Current() string
	Err() error
	Close() error
}
