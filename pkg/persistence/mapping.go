package persistence

import "github.com/sealor/ollama-chat/pkg/chat"

func NewMessagesFromChat(messages []chat.Message) []Message {
	fileMessages := make([]Message, 0, len(messages))
	for _, m := range messages {
		fileMessages = append(fileMessages, Message{Role: string(m.Role), Content: m.Content})
	}
	return fileMessages
}

// NewChatFromMessages skips entries whose role does not belong in a transcript.
func NewChatFromMessages(messages []Message) []chat.Message {
	chatMessages := make([]chat.Message, 0, len(messages))
	for _, m := range messages {
		switch chat.Role(m.Role) {
		case chat.RoleUser:
			chatMessages = append(chatMessages, chat.UserMessage(m.Content))
		case chat.RoleAssistant:
			chatMessages = append(chatMessages, chat.AssistantMessage(m.Content))
		}
	}
	return chatMessages
}
