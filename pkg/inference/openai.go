package inference

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/packages/ssestream"
	"github.com/sealor/ollama-chat/pkg/chat"
)

// OpenAIClient talks to the OpenAI-compatible API that Ollama serves under /v1.
type OpenAIClient struct {
	host   string
	client openai.Client
	logger *slog.Logger
}

func NewOpenAIClient(host string, opts Options) *OpenAIClient {
	host = strings.TrimRight(host, "/")
	return &OpenAIClient{
		host:   host,
		client: newOpenAIClient(host+"/v1/", opts),
		logger: opts.logger(),
	}
}

// Health checks the Ollama banner when present and otherwise falls back to listing models,
// so plain OpenAI-compatible servers pass too.
func (c *OpenAIClient) Health(ctx context.Context) error {
	if err := checkBanner(ctx, c.client, c.host); err == nil {
		return nil
	}
	if _, err := c.Models(ctx); err != nil {
		return fmt.Errorf("%w at %s: %w", ErrServerUnreachable, c.host, err)
	}
	return nil
}

func (c *OpenAIClient) Models(ctx context.Context) ([]string, error) {
	page, err := c.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}

	var names []string
	for _, m := range page.Data {
		names = append(names, m.ID)
	}
	return names, nil
}

func (c *OpenAIClient) Stream(ctx context.Context, messages []chat.Message, sampling Sampling) (Stream, error) {
	stream := c.client.Chat.Completions.NewStreaming(ctx, NewParamsFromChat(messages, sampling))
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}
	return &sseStream{stream: stream}, nil
}

type sseStream struct {
	stream  *ssestream.Stream[openai.ChatCompletionChunk]
	current string
}

func (s *sseStream) Next() bool {
	for s.stream.Next() {
		chunk := s.stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if content := chunk.Choices[0].Delta.Content; len(content) > 0 {
			s.current = content
			return true
		}
	}
	return false
}

func (s *sseStream) Current() string {
	return s.current
}

func (s *sseStream) Err() error {
	return s.stream.Err()
}

func (s *sseStream) Close() error {
	return s.stream.Close()
}
