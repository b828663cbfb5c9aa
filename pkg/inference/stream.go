package inference

import (
	"context"

	"github.com/sealor/ollama-chat/pkg/chat"
)

// Stream is a lazy, finite, non-restartable sequence of reply fragments.
//
//	for stream.Next() {
//		fmt.Print(stream.Current())
//	}
//	err := stream.Err()
type Stream interface {
	Next() bool
	Current() string
	Err() error
	Close() error
}

type Streamer interface {
	Stream(ctx context.Context, messages []chat.Message, sampling Sampling) (Stream, error)
}

// Backend is everything the front-end needs from an inference server.
type Backend interface {
	Streamer
	Health(ctx context.Context) error
	Models(ctx context.Context) ([]string, error)
}
