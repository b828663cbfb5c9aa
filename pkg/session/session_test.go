package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sealor/ollama-chat/pkg/chat"
	"github.com/sealor/ollama-chat/pkg/inference"
	"github.com/sealor/ollama-chat/pkg/persistence"
	"github.com/sealor/ollama-chat/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampling = inference.Sampling{
	Model:        "gemma3:1b",
	Temperature:  0.7,
	TopP:         0.9,
	MaxTokens:    512,
	SystemPrompt: "sys",
}

var quiet = slog.New(slog.DiscardHandler)

type fakeStream struct {
	fragments []string
	err       error
	pos       int
	closed    bool
}

func (s *fakeStream) Next() bool {
	if s.pos >= len(s.fragments) {
		return false
	}
	s.pos++
	return true
}

func (s *fakeStream) Current() string { return s.fragments[s.pos-1] }

func (s *fakeStream) Err() error {
	if s.pos >= len(s.fragments) {
		return s.err
	}
	return nil
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

type fakeStreamer struct {
	stream   *fakeStream
	openErr  error
	requests [][]chat.Message
}

func (f *fakeStreamer) Stream(_ context.Context, messages []chat.Message, _ inference.Sampling) (inference.Stream, error) {
	f.requests = append(f.requests, messages)
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.stream, nil
}

func TestSubmit_StreamsAndStoresTurn(t *testing.T) {
	streamer := &fakeStreamer{stream: &fakeStream{fragments: []string{"Hi", " there"}}}
	s := session.New(streamer, sampling, 10, quiet)

	var shown []string
	reply, err := s.Submit(context.Background(), "hello", func(r string) { shown = append(shown, r) })
	require.NoError(t, err)

	assert.Equal(t, []string{"Hi", "Hi there"}, shown)
	assert.Equal(t, chat.AssistantMessage("Hi there"), reply)
	assert.Equal(t, []chat.Message{chat.UserMessage("hello"), chat.AssistantMessage("Hi there")}, s.Messages())
	assert.Equal(t, session.StateIdle, s.State())
	assert.True(t, streamer.stream.closed)
}

func TestSubmit_FirstRequestPayloadOverHTTP(t *testing.T) {
	var payload struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		fmt.Fprintln(w, `{"message":{"content":"Hello!"},"done":true}`)
	}))
	defer srv.Close()

	client := inference.NewClient(srv.URL, inference.Options{Timeout: 5 * time.Second, Logger: quiet})
	s := session.New(client, sampling, 10, quiet)

	reply, err := s.Submit(context.Background(), "hello", func(string) {})
	require.NoError(t, err)
	assert.Equal(t, "Hello!", reply.Content)

	require.Len(t, payload.Messages, 2)
	assert.Equal(t, "system", payload.Messages[0].Role)
	assert.Equal(t, "sys", payload.Messages[0].Content)
	assert.Equal(t, "user", payload.Messages[1].Role)
	assert.Equal(t, "hello", payload.Messages[1].Content)
}

func TestSubmit_MidStreamFailureBecomesReply(t *testing.T) {
	streamer := &fakeStreamer{stream: &fakeStream{fragments: []string{"par", "tial"}, err: errors.New("connection reset by peer")}}
	s := session.New(streamer, sampling, 10, quiet)
	require.NoError(t, s.Replace([]chat.Message{chat.UserMessage("old"), chat.AssistantMessage("older")}))

	var last string
	reply, err := s.Submit(context.Background(), "hello", func(r string) { last = r })
	require.NoError(t, err)

	assert.Contains(t, reply.Content, "connection reset by peer")
	assert.Equal(t, reply.Content, last)

	msgs := s.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, chat.UserMessage("hello"), msgs[2])
	assert.Equal(t, chat.RoleAssistant, msgs[3].Role)
	assert.Equal(t, session.StateIdle, s.State())
}

func TestSubmit_OpenFailureBecomesReply(t *testing.T) {
	streamer := &fakeStreamer{openErr: errors.New("dial tcp 127.0.0.1:11434: connection refused")}
	s := session.New(streamer, sampling, 10, quiet)

	reply, err := s.Submit(context.Background(), "hello", func(string) {})
	require.NoError(t, err)

	assert.Equal(t, session.ErrorReply(streamer.openErr), reply.Content)
	assert.Len(t, s.Messages(), 2)

	_, err = s.Submit(context.Background(), "again", func(string) {})
	assert.NoError(t, err, "session continues after a failed turn")
	assert.Len(t, s.Messages(), 4)
}

func TestBegin_RejectsEmptyInput(t *testing.T) {
	s := session.New(&fakeStreamer{}, sampling, 10, quiet)

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := s.Begin(context.Background(), text)
		assert.ErrorIs(t, err, session.ErrEmptyInput)
	}
	assert.Empty(t, s.Messages())
}

func TestBegin_SingleTurnInFlight(t *testing.T) {
	streamer := &fakeStreamer{stream: &fakeStream{fragments: []string{"a"}}}
	s := session.New(streamer, sampling, 10, quiet)

	turn, err := s.Begin(context.Background(), "one")
	require.NoError(t, err)
	assert.Equal(t, session.StateAwaitingReply, s.State())
	assert.NotEmpty(t, turn.ID)

	_, err = s.Begin(context.Background(), "two")
	assert.ErrorIs(t, err, session.ErrTurnInProgress)
	assert.ErrorIs(t, s.Clear(), session.ErrTurnInProgress)

	for turn.Next() {
	}
	_, err = s.Finish(turn)
	require.NoError(t, err)

	_, err = s.Finish(turn)
	assert.ErrorIs(t, err, session.ErrForeignTurn)
}

func TestFinish_EarlyKeepsPartialReply(t *testing.T) {
	stream := &fakeStream{fragments: []string{"a", "b", "c"}}
	s := session.New(&fakeStreamer{stream: stream}, sampling, 10, quiet)

	turn, err := s.Begin(context.Background(), "q")
	require.NoError(t, err)
	require.True(t, turn.Next())

	reply, err := s.Finish(turn)
	require.NoError(t, err)
	assert.Equal(t, "a", reply.Content)
	assert.True(t, stream.closed)
	assert.False(t, turn.Next())
}

func TestRequest_TrimsHistoryAndAppendsNewText(t *testing.T) {
	streamer := &fakeStreamer{stream: &fakeStream{}}
	s := session.New(streamer, sampling, 1, quiet)
	require.NoError(t, s.Replace([]chat.Message{
		chat.UserMessage("q1"), chat.AssistantMessage("a1"),
		chat.UserMessage("q2"), chat.AssistantMessage("a2"),
	}))

	_, err := s.Submit(context.Background(), "q3", func(string) {})
	require.NoError(t, err)

	require.Len(t, streamer.requests, 1)
	assert.Equal(t, []chat.Message{
		chat.SystemMessage("sys"),
		chat.AssistantMessage("a2"),
		chat.UserMessage("q3"),
	}, streamer.requests[0])
}

func TestRequest_ZeroKeepSendsOnlySystemPrompt(t *testing.T) {
	streamer := &fakeStreamer{stream: &fakeStream{}}
	s := session.New(streamer, sampling, 0, quiet)
	require.NoError(t, s.Replace([]chat.Message{chat.UserMessage("q1"), chat.AssistantMessage("a1")}))

	assert.Equal(t, []chat.Message{chat.SystemMessage("sys")}, s.Request("q2"))

	_, err := s.Submit(context.Background(), "q2", func(string) {})
	require.NoError(t, err)
	require.Len(t, streamer.requests, 1)
	assert.Equal(t, []chat.Message{chat.SystemMessage("sys")}, streamer.requests[0])
}

func TestRequest_MatchesBeginPayload(t *testing.T) {
	streamer := &fakeStreamer{stream: &fakeStream{}}
	s := session.New(streamer, sampling, 2, quiet)
	require.NoError(t, s.Replace([]chat.Message{
		chat.UserMessage("q1"), chat.AssistantMessage("a1"),
		chat.UserMessage("q2"), chat.AssistantMessage("a2"),
	}))
	expected := s.Request("q3")

	_, err := s.Submit(context.Background(), "q3", func(string) {})
	require.NoError(t, err)
	require.Len(t, streamer.requests, 1)
	assert.Equal(t, expected, streamer.requests[0])
	assert.Equal(t, []chat.Message{
		chat.SystemMessage("sys"),
		chat.AssistantMessage("a1"),
		chat.UserMessage("q2"),
		chat.AssistantMessage("a2"),
		chat.UserMessage("q3"),
	}, expected)
}

func TestFinish_Autosave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	s := session.New(&fakeStreamer{stream: &fakeStream{fragments: []string{"ok"}}}, sampling, 10, quiet)
	s.AutosavePath = path

	_, err := s.Submit(context.Background(), "hi", func(string) {})
	require.NoError(t, err)

	saved, err := persistence.LoadTranscript(path)
	require.NoError(t, err)
	assert.Equal(t, []chat.Message{chat.UserMessage("hi"), chat.AssistantMessage("ok")}, saved)
}
