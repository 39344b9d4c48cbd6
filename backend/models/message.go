package models

// Role identifies the author of a conversation message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// IsValid reports whether r is one of the supported roles
func (r Role) IsValid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is a single turn of a conversation. The ordered sequence a caller
// submits is the whole conversation; nothing is kept between requests.
type Message struct {
	Role    Role   `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content"`
}

// NewSystemMessage creates a message authored by the system role
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// LastMessage returns the final message of a conversation.
// ok is false when the conversation is empty.
func LastMessage(messages []Message) (msg Message, ok bool) {
	if len(messages) == 0 {
		return Message{}, false
	}
	return messages[len(messages)-1], true
}
