package persistence

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sealor/ollama-chat/pkg/chat"
)

const Extension = ".json"

var ErrInvalidName = errors.New("invalid transcript name")

// DefaultName returns a timestamped file name like chat_20250101_120000.json.
func DefaultName(now time.Time) string {
	return "chat_" + now.Format("20060102_150405") + Extension
}

// ResolvePath turns an operator-supplied name into a path inside dir.
// Names may not contain spaces or path separators; the extension is optional.
func ResolvePath(dir, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, " \t/\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if filepath.Ext(name) != Extension {
		name += Extension
	}
	return filepath.Join(dir, name), nil
}

func SaveTranscript(path string, messages []chat.Message) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewMessagesFromChat(messages)); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o640)
}

func LoadTranscript(path string) ([]chat.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var fileMessages []Message
	if err = json.Unmarshal(data, &fileMessages); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return NewChatFromMessages(fileMessages), nil
}

// TryToResumeTranscript loads path, treating a missing file as an empty transcript.
func TryToResumeTranscript(path string) ([]chat.Message, error) {
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return LoadTranscript(path)
}

// ListTranscripts returns the transcript files in dir, sorted by name.
// A missing directory yields no files.
func ListTranscripts(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*"+Extension))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}
