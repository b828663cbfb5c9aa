package session

import (
	"context"
	"strings"
	"time"

	"github.com/sealor/ollama-chat/pkg/inference"
)

// Turn is one in-flight reply. It is not safe for concurrent use, except Cancel.
type Turn struct {
	ID string

	cancel    context.CancelFunc
	stream    inference.Stream
	reply     strings.Builder
	err       error
	done      bool
	fragments int
	started   time.Time
}

// Next pulls the next fragment into the reply buffer. It returns false once the
// stream ended or failed.
func (t *Turn) Next() bool {
	if t.done {
		return false
	}
	if t.stream.Next() {
		t.reply.WriteString(t.stream.Current())
		t.fragments++
		return true
	}
	if err := t.stream.Err(); err != nil {
		t.err = err
	}
	t.close()
	return false
}

// Reply is the text received so far.
func (t *Turn) Reply() string {
	return t.reply.String()
}

func (t *Turn) Err() error {
	return t.err
}

func (t *Turn) Done() bool {
	return t.done
}

// Cancel aborts the reply stream. A Next blocked in another goroutine returns
// false with the context error; Finish then stores the turn as failed.
func (t *Turn) Cancel() {
	if t.cancel != nil {
		t.cancel()
	}
}

func (t *Turn) fail(err error) {
	t.err = err
	t.done = true
}

func (t *Turn) close() {
	t.done = true
	if t.stream != nil {
		t.stream.Close()
		t.stream = nil
	}
	t.Cancel()
}
