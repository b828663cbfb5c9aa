package inference

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
)

const maxLineSize = 1 << 20

// ServerError is an error object the server sent inside an otherwise successful stream.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return "server error: " + e.Message
}

type ndjsonStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	logger  *slog.Logger

	current string
	err     error
	done    bool
}

func newNDJSONStream(body io.ReadCloser, logger *slog.Logger) *ndjsonStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &ndjsonStream{body: body, scanner: scanner, logger: logger}
}

func (s *ndjsonStream) Next() bool {
	if s.done {
		return false
	}

	for s.scanner.Scan() {
		chunk := DecodeChunk(s.scanner.Bytes())
		switch chunk.Kind {
		case ChunkMalformed:
			if len(s.scanner.Bytes()) > 0 {
				s.logger.Debug("skipping malformed chunk", "line", s.scanner.Text())
			}
		case ChunkFailed:
			s.done = true
			s.err = &ServerError{Message: chunk.Text}
			return false
		case ChunkFragment:
			if chunk.Text != "" {
				s.current = chunk.Text
				return true
			}
		case ChunkDone:
			s.done = true
			if chunk.Text != "" {
				s.current = chunk.Text
				return true
			}
			return false
		}
	}

	s.done = true
	if err := s.scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		s.err = err
	}
	return false
}

func (s *ndjsonStream) Current() string {
	return s.current
}

func (s *ndjsonStream) Err() error {
	return s.err
}

func (s *ndjsonStream) Close() error {
	s.done = true
	return s.body.Close()
}
