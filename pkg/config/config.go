// Package config loads the chat front-end settings from YAML and validates them.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sealor/ollama-chat/pkg/inference"
	"gopkg.in/yaml.v3"
)

const (
	ProtocolOllama = "ollama"
	ProtocolOpenAI = "openai"

	DefaultModel        = "gemma3:1b"
	DefaultSystemPrompt = "You are a helpful, concise assistant."
	DefaultKeepTurns    = 10
	DefaultChatsDir     = "chats"
)

var (
	ErrOutOfRange      = errors.New("value out of range")
	ErrUnknownProtocol = errors.New("unknown protocol")
)

type Settings struct {
	Host         string        `yaml:"host"`
	Protocol     string        `yaml:"protocol"`
	Model        string        `yaml:"model"`
	SystemPrompt string        `yaml:"system_prompt"`
	Temperature  float64       `yaml:"temperature"`
	TopP         float64       `yaml:"top_p"`
	MaxTokens    int           `yaml:"max_tokens"`
	KeepTurns    int           `yaml:"keep_turns"`
	ChatsDir     string        `yaml:"chats_dir"`
	Timeout      time.Duration `yaml:"timeout"`
}

func Default() Settings {
	return Settings{
		Host:         inference.DefaultHost,
		Protocol:     ProtocolOllama,
		Model:        DefaultModel,
		SystemPrompt: DefaultSystemPrompt,
		Temperature:  0.7,
		TopP:         0.9,
		MaxTokens:    512,
		KeepTurns:    DefaultKeepTurns,
		ChatsDir:     DefaultChatsDir,
		Timeout:      inference.DefaultTimeout,
	}
}

// Load reads a YAML settings file on top of base. Keys missing from the file keep base values.
func Load(path string, base Settings) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, err
	}

	settings := base
	if err = yaml.Unmarshal(data, &settings); err != nil {
		return base, fmt.Errorf("parse %s: %w", path, err)
	}
	return settings, nil
}

func Save(path string, settings Settings) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o640)
}

func (s Settings) Validate() error {
	if s.Protocol != ProtocolOllama && s.Protocol != ProtocolOpenAI {
		return fmt.Errorf("%w: %q", ErrUnknownProtocol, s.Protocol)
	}
	if s.Host == "" {
		return errors.New("host must not be empty")
	}
	if s.ChatsDir == "" {
		return errors.New("chats_dir must not be empty")
	}
	return errors.Join(
		ValidateTemperature(s.Temperature),
		ValidateTopP(s.TopP),
		ValidateMaxTokens(s.MaxTokens),
		ValidateKeepTurns(s.KeepTurns),
	)
}

func (s Settings) Sampling() inference.Sampling {
	return inference.Sampling{
		Model:        s.Model,
		Temperature:  s.Temperature,
		TopP:         s.TopP,
		MaxTokens:    s.MaxTokens,
		SystemPrompt: s.SystemPrompt,
	}
}

func ValidateTemperature(v float64) error {
	return checkRange("temperature", v, 0, 1.5)
}

func ValidateTopP(v float64) error {
	return checkRange("top_p", v, 0.1, 1.0)
}

func ValidateMaxTokens(v int) error {
	return checkRange("max_tokens", float64(v), 64, 2048)
}

// ValidateKeepTurns accepts zero, which sends only the system prompt.
func ValidateKeepTurns(v int) error {
	if v < 0 {
		return fmt.Errorf("%w: keep_turns %d must not be negative", ErrOutOfRange, v)
	}
	return nil
}

func checkRange(name string, v, lo, hi float64) error {
	if v < lo || v > hi {
		return fmt.Errorf("%w: %s %v not in [%v, %v]", ErrOutOfRange, name, v, lo, hi)
	}
	return nil
}

// ChooseModel picks preferred when it is installed, otherwise the first available
// model. With nothing available the preferred name is used as is.
func ChooseModel(preferred string, available []string) string {
	if len(available) == 0 {
		return preferred
	}
	for _, name := range available {
		if name == preferred {
			return name
		}
	}
	return available[0]
}
