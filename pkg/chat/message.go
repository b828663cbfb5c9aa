// Package chat holds the conversation model: messages, the transcript and history trimming
package chat

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Conversational reports whether messages with this role are kept in a transcript.
func (r Role) Conversational() bool {
	return r == RoleUser || r == RoleAssistant
}

type Message struct {
	Role    Role
	Content string
}

func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}
