package inference

import (
	"github.com/openai/openai-go/v3"
	"github.com/sealor/ollama-chat/pkg/chat"
)

func NewParamsFromChat(messages []chat.Message, sampling Sampling) openai.ChatCompletionNewParams {
	var params openai.ChatCompletionNewParams

	params.Model = sampling.Model
	params.Temperature = openai.Float(sampling.Temperature)
	params.TopP = openai.Float(sampling.TopP)
	if sampling.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(sampling.MaxTokens))
	}

	for _, m := range messages {
		switch m.Role {
		case chat.RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case chat.RoleUser:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		case chat.RoleAssistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		}
	}

	return params
}
