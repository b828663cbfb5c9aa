package tui

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sealor/ollama-chat/pkg/chat"
	"github.com/sealor/ollama-chat/pkg/inference"
	"github.com/sealor/ollama-chat/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sliceStream struct {
	fragments []string
	err       error
	current   string
}

func (s *sliceStream) Next() bool {
	if len(s.fragments) == 0 {
		return false
	}
	s.current, s.fragments = s.fragments[0], s.fragments[1:]
	return true
}

func (s *sliceStream) Current() string { return s.current }
func (s *sliceStream) Err() error      { return s.err }
func (s *sliceStream) Close() error    { return nil }

type oneShot struct {
	stream *sliceStream
}

func (o oneShot) Stream(context.Context, []chat.Message, inference.Sampling) (inference.Stream, error) {
	return o.stream, nil
}

func newTestModel(t *testing.T, stream *sliceStream) Model {
	t.Helper()
	s := session.New(oneShot{stream: stream}, inference.Sampling{Model: "gemma3:1b", SystemPrompt: "sys"}, 10, slog.New(slog.DiscardHandler))
	controls := &session.Controls{Session: s, ChatsDir: filepath.Join(t.TempDir(), "chats")}
	return NewModel(context.Background(), controls)
}

func enter(t *testing.T, m Model, text string) (Model, tea.Cmd) {
	t.Helper()
	m.input.SetValue(text)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model), cmd
}

// drain feeds fragment messages back into the model until the turn is finished.
func drain(t *testing.T, m Model, cmd tea.Cmd) (Model, []string) {
	t.Helper()
	var partials []string
	for cmd != nil {
		msg, ok := cmd().(fragmentMsg)
		require.True(t, ok)
		next, c := m.Update(msg)
		m, cmd = next.(Model), c
		if msg.more {
			partials = append(partials, m.partial)
		}
	}
	return m, partials
}

func TestModel_StreamsReplyIntoTranscript(t *testing.T) {
	m := newTestModel(t, &sliceStream{fragments: []string{"Hi", " there"}})

	m, cmd := enter(t, m, "hello")
	require.NotNil(t, cmd)
	assert.NotNil(t, m.turn)
	assert.Equal(t, session.StateAwaitingReply, m.controls.Session.State())
	assert.Contains(t, m.View(), "thinking…")

	m, partials := drain(t, m, cmd)

	assert.Equal(t, []string{"Hi", "Hi there"}, partials)
	assert.Nil(t, m.turn)
	assert.Equal(t, []chat.Message{chat.UserMessage("hello"), chat.AssistantMessage("Hi there")}, m.controls.Session.Messages())
	assert.Contains(t, m.View(), "Hi there")
	assert.Empty(t, m.input.Value())
}

func TestModel_IgnoresInputWhileStreaming(t *testing.T) {
	m := newTestModel(t, &sliceStream{fragments: []string{"a"}})

	m, cmd := enter(t, m, "first")
	require.NotNil(t, cmd)

	m, second := enter(t, m, "second")
	assert.Nil(t, second)
	assert.Equal(t, "second", m.input.Value())

	m, _ = drain(t, m, cmd)
	assert.Len(t, m.controls.Session.Messages(), 2)
}

func TestModel_FailedTurnShowsError(t *testing.T) {
	m := newTestModel(t, &sliceStream{err: errors.New("boom")})

	m, cmd := enter(t, m, "hello")
	m, _ = drain(t, m, cmd)

	msgs := m.controls.Session.Messages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1].Content, "boom")
	assert.Contains(t, m.View(), "boom")
}

func TestModel_Commands(t *testing.T) {
	m := newTestModel(t, &sliceStream{})

	m, cmd := enter(t, m, "/maxtokens 256")
	assert.Nil(t, cmd)
	assert.Equal(t, 256, m.controls.Session.Sampling.MaxTokens)
	assert.Contains(t, m.View(), "Max tokens set to 256")

	m, cmd = enter(t, m, "/bogus")
	assert.Nil(t, cmd)
	assert.True(t, m.noticeErr)

	m, cmd = enter(t, m, "/quit")
	require.NotNil(t, cmd)
	assert.True(t, m.quitting)
	assert.Empty(t, m.View())
}

func TestModel_WindowResize(t *testing.T) {
	m := newTestModel(t, &sliceStream{})

	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = next.(Model)

	assert.Equal(t, 80, m.viewport.Width)
	assert.Equal(t, 21, m.viewport.Height)
}

// cancelStream yields its fragments until the request context is canceled.
type cancelStream struct {
	ctx       context.Context
	fragments []string
	current   string
	closed    bool
}

func (s *cancelStream) Next() bool {
	if s.ctx.Err() != nil || len(s.fragments) == 0 {
		return false
	}
	s.current, s.fragments = s.fragments[0], s.fragments[1:]
	return true
}

func (s *cancelStream) Current() string { return s.current }
func (s *cancelStream) Err() error      { return s.ctx.Err() }
func (s *cancelStream) Close() error    { s.closed = true; return nil }

type cancelStreamer struct {
	stream *cancelStream
}

func (c *cancelStreamer) Stream(ctx context.Context, _ []chat.Message, _ inference.Sampling) (inference.Stream, error) {
	c.stream.ctx = ctx
	return c.stream, nil
}

func TestModel_CtrlCWhileStreamingFinishesTurn(t *testing.T) {
	streamer := &cancelStreamer{stream: &cancelStream{fragments: []string{"par", "tial", "never"}}}
	s := session.New(streamer, inference.Sampling{Model: "gemma3:1b", SystemPrompt: "sys"}, 10, slog.New(slog.DiscardHandler))
	m := NewModel(context.Background(), &session.Controls{Session: s, ChatsDir: filepath.Join(t.TempDir(), "chats")})

	m, cmd := enter(t, m, "hello")
	require.NotNil(t, cmd)
	next, cmd := m.Update(cmd())
	m = next.(Model)
	require.NotNil(t, cmd)

	next, quit := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m = next.(Model)
	assert.Nil(t, quit)
	assert.True(t, m.quitting)
	assert.Equal(t, session.StateAwaitingReply, s.State())

	msg, ok := cmd().(fragmentMsg)
	require.True(t, ok)
	assert.False(t, msg.more)

	next, quit = m.Update(msg)
	m = next.(Model)
	require.NotNil(t, quit)
	assert.IsType(t, tea.QuitMsg{}, quit())

	assert.Nil(t, m.turn)
	assert.Equal(t, session.StateIdle, s.State())
	assert.True(t, streamer.stream.closed)
	assert.Equal(t, []chat.Message{
		chat.UserMessage("hello"),
		chat.AssistantMessage(session.ErrorReply(context.Canceled)),
	}, s.Messages())
}

func TestModel_CtrlCWhenIdleQuits(t *testing.T) {
	m := newTestModel(t, &sliceStream{})

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, next.(Model).quitting)
}
