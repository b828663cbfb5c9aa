// Package session drives one chat conversation: idle -> awaiting_reply -> idle.
//
// A Session owns the transcript. Each user submission becomes a Turn whose
// fragments are pulled one at a time; Finish stores the reply and returns the
// session to idle. Only one turn can be in flight.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sealor/ollama-chat/pkg/chat"
	"github.com/sealor/ollama-chat/pkg/inference"
	"github.com/sealor/ollama-chat/pkg/persistence"
)

type State int

const (
	StateIdle State = iota
	StateAwaitingReply
)

func (s State) String() string {
	if s == StateAwaitingReply {
		return "awaiting_reply"
	}
	return "idle"
}

var (
	ErrEmptyInput     = errors.New("empty input")
	ErrTurnInProgress = errors.New("a reply is still streaming")
	ErrForeignTurn    = errors.New("turn does not belong to this session")
)

// ErrorReply is the assistant content stored when a turn fails.
func ErrorReply(err error) string {
	return fmt.Sprintf("⚠️ Error talking to model: `%v`", err)
}

type Session struct {
	Sampling  inference.Sampling
	KeepTurns int

	// AutosavePath, when set, receives the whole transcript after every finished turn.
	AutosavePath string

	streamer   inference.Streamer
	transcript *chat.Transcript
	state      State
	current    *Turn
	logger     *slog.Logger
}

func New(streamer inference.Streamer, sampling inference.Sampling, keepTurns int, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		Sampling:   sampling,
		KeepTurns:  keepTurns,
		streamer:   streamer,
		transcript: chat.NewTranscript(),
		logger:     logger,
	}
}

func (s *Session) State() State {
	return s.state
}

func (s *Session) Messages() []chat.Message {
	return s.transcript.Messages()
}

func (s *Session) Clear() error {
	if s.state != StateIdle {
		return ErrTurnInProgress
	}
	s.transcript.Clear()
	return nil
}

// Replace swaps in a loaded transcript.
func (s *Session) Replace(messages []chat.Message) error {
	if s.state != StateIdle {
		return ErrTurnInProgress
	}
	s.transcript.Replace(messages)
	return nil
}

// Request builds the payload for a new user text. The text joins the history
// before trimming, so it counts toward the keep window.
func (s *Session) Request(text string) []chat.Message {
	history := append(s.transcript.Messages(), chat.UserMessage(text))
	return chat.Trim(history, s.Sampling.SystemPrompt, s.KeepTurns)
}

// Begin stores the user text and opens the reply stream. A failure to open the
// stream is not returned here: the turn is already complete and Finish stores the
// error as the reply.
func (s *Session) Begin(ctx context.Context, text string) (*Turn, error) {
	if s.state != StateIdle {
		return nil, ErrTurnInProgress
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	s.transcript.Append(chat.UserMessage(text))
	messages := chat.Trim(s.transcript.Messages(), s.Sampling.SystemPrompt, s.KeepTurns)

	ctx, cancel := context.WithCancel(ctx)
	turn := &Turn{ID: uuid.NewString(), cancel: cancel, started: time.Now()}
	s.state = StateAwaitingReply
	s.current = turn

	s.logger.Debug("turn started",
		"turn_id", turn.ID,
		"model", s.Sampling.Model,
		"request_messages", len(messages),
		"transcript_messages", s.transcript.Len(),
	)

	stream, err := s.streamer.Stream(ctx, messages, s.Sampling)
	if err != nil {
		turn.fail(err)
	} else {
		turn.stream = stream
	}
	return turn, nil
}

// Finish stores the reply of turn as an assistant message and returns to idle.
// Unconsumed fragments are discarded.
func (s *Session) Finish(turn *Turn) (chat.Message, error) {
	if turn == nil || turn != s.current {
		return chat.Message{}, ErrForeignTurn
	}
	turn.close()

	content := turn.Reply()
	if turn.err != nil {
		content = ErrorReply(turn.err)
		s.logger.Warn("turn failed", "turn_id", turn.ID, "error", turn.err)
	}
	reply := chat.AssistantMessage(content)
	s.transcript.Append(reply)

	s.state = StateIdle
	s.current = nil

	s.logger.Debug("turn finished",
		"turn_id", turn.ID,
		"fragments", turn.fragments,
		"reply_bytes", len(content),
		"duration", time.Since(turn.started),
	)

	if s.AutosavePath != "" {
		if err := persistence.SaveTranscript(s.AutosavePath, s.transcript.Messages()); err != nil {
			return reply, fmt.Errorf("autosave %s: %w", s.AutosavePath, err)
		}
	}
	return reply, nil
}

// Submit runs one complete turn, calling display with the running reply after
// every fragment and once more with the error text if the turn failed.
func (s *Session) Submit(ctx context.Context, text string, display func(reply string)) (chat.Message, error) {
	turn, err := s.Begin(ctx, text)
	if err != nil {
		return chat.Message{}, err
	}

	for turn.Next() {
		display(turn.Reply())
	}

	reply, err := s.Finish(turn)
	if turn.Err() != nil {
		display(reply.Content)
	}
	return reply, err
}
