package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sealor/ollama-chat/pkg/config"
	"github.com/sealor/ollama-chat/pkg/persistence"
)

const Help = `Commands:
  /clear            start a new conversation
  /save [name]      save the transcript (default chat_<timestamp>.json)
  /load <name>      replace the transcript with a saved one
  /files            list saved transcripts
  /models           list installed models
  /model <name>     switch model
  /system [text]    show or set the system prompt
  /temp <v>         temperature, 0.0 to 1.5
  /topp <v>         top-p, 0.1 to 1.0
  /maxtokens <n>    tokens to generate, 64 to 2048
  /keep <n>         history turns sent with each request
  /settings         show the current settings
  /settings save <path>  write the current settings as a YAML file for -config
  /quit             leave`

var ErrUnknownCommand = errors.New("unknown command")

// Result is what a command wants the surface to do next.
type Result struct {
	Output string
	// Reset is set when the transcript was replaced and must be redrawn.
	Reset bool
	Quit  bool
}

// Controls are the operator actions available next to chatting.
type Controls struct {
	Session  *Session
	ChatsDir string
	// Settings holds the startup values that /settings save keeps for keys the session does not own.
	Settings config.Settings
	Models   func(ctx context.Context) ([]string, error)
	Now      func() time.Time
}

func IsCommand(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "/")
}

func (c *Controls) Execute(ctx context.Context, line string) (Result, error) {
	name, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/help", "/?":
		return Result{Output: Help}, nil
	case "/quit", "/exit":
		return Result{Quit: true}, nil
	case "/clear":
		if err := c.Session.Clear(); err != nil {
			return Result{}, err
		}
		return Result{Output: "Conversation cleared.", Reset: true}, nil
	case "/save":
		return c.save(arg)
	case "/load":
		return c.load(arg)
	case "/files":
		return c.files()
	case "/models":
		return c.models(ctx)
	case "/model":
		if arg == "" {
			return Result{Output: "Model: " + c.Session.Sampling.Model}, nil
		}
		c.Session.Sampling.Model = arg
		return Result{Output: "Model set to " + arg}, nil
	case "/system":
		if arg == "" {
			return Result{Output: "System prompt: " + c.Session.Sampling.SystemPrompt}, nil
		}
		c.Session.Sampling.SystemPrompt = arg
		return Result{Output: "System prompt updated."}, nil
	case "/temp":
		v, err := parseFloat(arg, config.ValidateTemperature)
		if err != nil {
			return Result{}, err
		}
		c.Session.Sampling.Temperature = v
		return Result{Output: fmt.Sprintf("Temperature set to %v", v)}, nil
	case "/topp":
		v, err := parseFloat(arg, config.ValidateTopP)
		if err != nil {
			return Result{}, err
		}
		c.Session.Sampling.TopP = v
		return Result{Output: fmt.Sprintf("Top-p set to %v", v)}, nil
	case "/maxtokens":
		v, err := parseInt(arg, config.ValidateMaxTokens)
		if err != nil {
			return Result{}, err
		}
		c.Session.Sampling.MaxTokens = v
		return Result{Output: fmt.Sprintf("Max tokens set to %d", v)}, nil
	case "/keep":
		v, err := parseInt(arg, config.ValidateKeepTurns)
		if err != nil {
			return Result{}, err
		}
		c.Session.KeepTurns = v
		return Result{Output: fmt.Sprintf("Keeping the last %d turns", v)}, nil
	case "/settings":
		if sub, path, _ := strings.Cut(arg, " "); sub == "save" {
			return c.saveSettings(strings.TrimSpace(path))
		}
		return Result{Output: c.settings()}, nil
	}
	return Result{}, fmt.Errorf("%w %s, try /help", ErrUnknownCommand, name)
}

func (c *Controls) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// resolve accepts bare names as well as paths printed by /files.
func (c *Controls) resolve(name string) (string, error) {
	if filepath.Dir(name) == filepath.Clean(c.ChatsDir) {
		name = filepath.Base(name)
	}
	return persistence.ResolvePath(c.ChatsDir, name)
}

func (c *Controls) save(name string) (Result, error) {
	if name == "" {
		name = persistence.DefaultName(c.now())
	}
	path, err := c.resolve(name)
	if err != nil {
		return Result{}, err
	}
	if err = persistence.SaveTranscript(path, c.Session.Messages()); err != nil {
		return Result{}, fmt.Errorf("save %s: %w", path, err)
	}
	return Result{Output: "Saved to " + path}, nil
}

func (c *Controls) load(name string) (Result, error) {
	if name == "" {
		return Result{}, errors.New("usage: /load <name>")
	}
	path, err := c.resolve(name)
	if err != nil {
		return Result{}, err
	}
	messages, err := persistence.LoadTranscript(path)
	if err != nil {
		return Result{}, fmt.Errorf("load %s: %w", path, err)
	}
	if err = c.Session.Replace(messages); err != nil {
		return Result{}, err
	}
	return Result{Output: "Loaded " + path, Reset: true}, nil
}

func (c *Controls) files() (Result, error) {
	paths, err := persistence.ListTranscripts(c.ChatsDir)
	if err != nil {
		return Result{}, err
	}
	if len(paths) == 0 {
		return Result{Output: "No saved transcripts in " + c.ChatsDir}, nil
	}
	return Result{Output: strings.Join(paths, "\n")}, nil
}

func (c *Controls) models(ctx context.Context) (Result, error) {
	var names []string
	if c.Models != nil {
		var err error
		names, err = c.Models(ctx)
		if err != nil {
			c.Session.logger.Warn("model list unavailable", "error", err)
		}
	}
	if len(names) == 0 {
		names = []string{c.Session.Sampling.Model}
	}

	var b strings.Builder
	for _, name := range names {
		marker := "  "
		if name == c.Session.Sampling.Model {
			marker = "* "
		}
		b.WriteString(marker + name + "\n")
	}
	return Result{Output: strings.TrimRight(b.String(), "\n")}, nil
}

func (c *Controls) settings() string {
	s := c.Session.Sampling
	return fmt.Sprintf("model=%s temperature=%v top_p=%v max_tokens=%d keep_turns=%d\nsystem: %s",
		s.Model, s.Temperature, s.TopP, s.MaxTokens, c.Session.KeepTurns, s.SystemPrompt)
}

// Current merges the session's sampling and keep-count into the startup settings.
func (c *Controls) Current() config.Settings {
	current := c.Settings
	current.Model = c.Session.Sampling.Model
	current.SystemPrompt = c.Session.Sampling.SystemPrompt
	current.Temperature = c.Session.Sampling.Temperature
	current.TopP = c.Session.Sampling.TopP
	current.MaxTokens = c.Session.Sampling.MaxTokens
	current.KeepTurns = c.Session.KeepTurns
	if current.ChatsDir == "" {
		current.ChatsDir = c.ChatsDir
	}
	return current
}

func (c *Controls) saveSettings(path string) (Result, error) {
	if path == "" {
		return Result{}, errors.New("usage: /settings save <path>")
	}
	if err := config.Save(path, c.Current()); err != nil {
		return Result{}, fmt.Errorf("save settings %s: %w", path, err)
	}
	return Result{Output: "Settings written to " + path}, nil
}

func parseFloat(arg string, validate func(float64) error) (float64, error) {
	v, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", arg)
	}
	return v, validate(v)
}

func parseInt(arg string, validate func(int) error) (int, error) {
	v, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("not a whole number: %q", arg)
	}
	return v, validate(v)
}
