package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sealor/ollama-chat/pkg/config"
	"github.com/sealor/ollama-chat/pkg/console"
	"github.com/sealor/ollama-chat/pkg/inference"
	"github.com/sealor/ollama-chat/pkg/persistence"
	"github.com/sealor/ollama-chat/pkg/session"
	"github.com/sealor/ollama-chat/pkg/tui"
)

const startupTimeout = 5 * time.Second

func GetEnv(name, fallback string) string {
	value, ok := os.LookupEnv(name)
	if ok {
		return value
	} else {
		return fallback
	}
}

type flags struct {
	configFile  string
	userMessage string
	sessionFile string
	activeLog   bool
	activeTUI   bool
}

// parseSettings applies, in order: defaults, OLLAMA_HOST, the -config file and explicitly set flags.
func parseSettings(args []string) (config.Settings, flags, error) {
	defaults := config.Default()
	defaults.Host = GetEnv("OLLAMA_HOST", defaults.Host)

	fs := flag.NewFlagSet("ollama-chat", flag.ContinueOnError)
	var f flags
	fs.StringVar(&f.configFile, "config", "", "YAML settings file")
	fs.StringVar(&f.userMessage, "message", "", "Send one user message, print the reply and exit")
	fs.StringVar(&f.sessionFile, "session-file", "", "Use this file to save and resume the transcript")
	fs.BoolVar(&f.activeLog, "log", false, "Activate debug logging")
	fs.BoolVar(&f.activeTUI, "tui", false, "Use the full-screen interface")

	var cli config.Settings
	fs.StringVar(&cli.Host, "api", defaults.Host, "URL of the inference server")
	fs.StringVar(&cli.Protocol, "protocol", defaults.Protocol, "API flavour: ollama or openai")
	fs.StringVar(&cli.Model, "model", defaults.Model, "Technical name of the LLM")
	fs.StringVar(&cli.SystemPrompt, "system", defaults.SystemPrompt, "System message")
	fs.Float64Var(&cli.Temperature, "temperature", defaults.Temperature, "Sampling temperature (0.0-1.5)")
	fs.Float64Var(&cli.TopP, "top-p", defaults.TopP, "Nucleus sampling (0.1-1.0)")
	fs.IntVar(&cli.MaxTokens, "max-tokens", defaults.MaxTokens, "Maximum tokens to generate (64-2048)")
	fs.IntVar(&cli.KeepTurns, "keep", defaults.KeepTurns, "History turns sent with each request")
	fs.StringVar(&cli.ChatsDir, "chats", defaults.ChatsDir, "Directory for saved transcripts")
	fs.DurationVar(&cli.Timeout, "timeout", defaults.Timeout, "Connect and response header timeout")

	if err := fs.Parse(args); err != nil {
		return config.Settings{}, f, err
	}

	settings := defaults
	if f.configFile != "" {
		var err error
		if settings, err = config.Load(f.configFile, defaults); err != nil {
			return config.Settings{}, f, err
		}
	}

	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "api":
			settings.Host = cli.Host
		case "protocol":
			settings.Protocol = cli.Protocol
		case "model":
			settings.Model = cli.Model
		case "system":
			settings.SystemPrompt = cli.SystemPrompt
		case "temperature":
			settings.Temperature = cli.Temperature
		case "top-p":
			settings.TopP = cli.TopP
		case "max-tokens":
			settings.MaxTokens = cli.MaxTokens
		case "keep":
			settings.KeepTurns = cli.KeepTurns
		case "chats":
			settings.ChatsDir = cli.ChatsDir
		case "timeout":
			settings.Timeout = cli.Timeout
		}
	})

	return settings, f, settings.Validate()
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func newBackend(settings config.Settings, debug bool, logger *slog.Logger) inference.Backend {
	opts := inference.Options{
		Timeout: settings.Timeout,
		Debug:   debug,
		Logger:  logger,
	}
	if settings.Protocol == config.ProtocolOpenAI {
		opts.APIKey = GetEnv("OPENAI_API_KEY", "")
		return inference.NewOpenAIClient(settings.Host, opts)
	}
	return inference.NewClient(settings.Host, opts)
}

// pickModel degrades to the configured model when the server can't list its models.
func pickModel(ctx context.Context, backend inference.Backend, preferred string, logger *slog.Logger) string {
	ctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	models, err := backend.Models(ctx)
	if err != nil {
		logger.Warn("model list unavailable, using default", "model", preferred, "error", err)
		return preferred
	}
	return config.ChooseModel(preferred, models)
}

func main() {
	settings, f, err := parseSettings(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalln("ERROR:", err)
	}

	logger := newLogger(f.activeLog)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	backend := newBackend(settings, f.activeLog, logger)

	healthCtx, healthCancel := context.WithTimeout(ctx, startupTimeout)
	err = backend.Health(healthCtx)
	healthCancel()
	if err != nil {
		log.Fatalf("ERROR: %v\nStart the server with `ollama serve`.", err)
	}

	settings.Model = pickModel(ctx, backend, settings.Model, logger)

	s := session.New(backend, settings.Sampling(), settings.KeepTurns, logger)
	if f.sessionFile != "" {
		messages, err := persistence.TryToResumeTranscript(f.sessionFile)
		if err != nil {
			log.Fatalln("ERROR:", err)
		}
		if err = s.Replace(messages); err != nil {
			log.Fatalln("ERROR:", err)
		}
		s.AutosavePath = f.sessionFile
	}

	controls := &session.Controls{
		Session:  s,
		ChatsDir: settings.ChatsDir,
		Settings: settings,
		Models:   backend.Models,
	}

	if err = run(ctx, controls, settings, f); err != nil {
		log.Fatalln("ERROR:", err)
	}
}

func run(ctx context.Context, controls *session.Controls, settings config.Settings, f flags) error {
	if f.userMessage != "" {
		c := &console.Console{Controls: controls, Output: os.Stdout}
		return c.Ask(ctx, f.userMessage)
	}

	if f.activeTUI {
		return tui.Run(ctx, controls)
	}

	input, output := console.NewLineReader(os.Stdin, os.Stdout, "> ")
	c := &console.Console{Controls: controls, Input: input, Output: output}
	fmt.Fprintf(output, "Chatting with %s at %s (Ctrl-D to quit)\n", settings.Model, settings.Host)
	return c.Run(ctx)
}
