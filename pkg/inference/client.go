package inference

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sealor/ollama-chat/pkg/chat"
	"github.com/tidwall/gjson"
)

const (
	DefaultHost    = "http://127.0.0.1:11434"
	DefaultTimeout = 300 * time.Second

	healthMarker = "Ollama is running"
	chatPath     = "api/chat"
	tagsPath     = "api/tags"
)

var ErrServerUnreachable = errors.New("inference server not reachable")

type Options struct {
	// Timeout bounds connecting and waiting for response headers, not the whole stream.
	Timeout time.Duration
	APIKey  string
	Debug   bool
	Logger  *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	dialer := &net.Dialer{Timeout: timeout}
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			ResponseHeaderTimeout: timeout,
		},
	}
}

func newOpenAIClient(baseURL string, opts Options) openai.Client {
	options := []option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(newHTTPClient(opts.Timeout)),
		option.WithMaxRetries(0),
	}
	if opts.APIKey != "" {
		options = append(options, option.WithAPIKey(opts.APIKey))
	}
	if opts.Debug {
		options = append(options, option.WithDebugLog(nil))
	}
	return openai.NewClient(options...)
}

// Client talks to the Ollama native API.
type Client struct {
	host   string
	client openai.Client
	logger *slog.Logger
}

func NewClient(host string, opts Options) *Client {
	host = strings.TrimRight(host, "/")
	return &Client{
		host:   host,
		client: newOpenAIClient(host+"/", opts),
		logger: opts.logger(),
	}
}

// Health requests GET / and expects the server's "Ollama is running" banner.
func (c *Client) Health(ctx context.Context) error {
	return checkBanner(ctx, c.client, c.host)
}

func checkBanner(ctx context.Context, client openai.Client, host string) error {
	var res *http.Response
	if err := client.Get(ctx, "/", nil, &res); err != nil {
		return fmt.Errorf("%w at %s: %w", ErrServerUnreachable, host, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 4096))
	if err != nil {
		return fmt.Errorf("%w at %s: %w", ErrServerUnreachable, host, err)
	}
	if res.StatusCode != http.StatusOK || !strings.Contains(string(body), healthMarker) {
		return fmt.Errorf("%w at %s: unexpected answer %d %q", ErrServerUnreachable, host, res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// Models lists the names of the locally installed models.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	var body []byte
	if err := c.client.Get(ctx, tagsPath, nil, &body); err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("list models: invalid JSON response")
	}

	var names []string
	for _, m := range gjson.GetBytes(body, "models").Array() {
		if name := m.Get("name").String(); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumPredict  int     `json:"num_predict"`
}

func newChatRequest(messages []chat.Message, sampling Sampling) chatRequest {
	request := chatRequest{
		Model:    sampling.Model,
		Messages: make([]chatMessage, 0, len(messages)),
		Stream:   true,
		Options: chatOptions{
			Temperature: sampling.Temperature,
			TopP:        sampling.TopP,
			NumPredict:  sampling.MaxTokens,
		},
	}
	for _, m := range messages {
		request.Messages = append(request.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}
	return request
}

// Stream posts messages to /api/chat and returns the reply fragments as they arrive.
func (c *Client) Stream(ctx context.Context, messages []chat.Message, sampling Sampling) (Stream, error) {
	var res *http.Response
	err := c.client.Post(ctx, chatPath, newChatRequest(messages, sampling), &res)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}
	if res == nil {
		return nil, errors.New("chat request: no response")
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		defer res.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, fmt.Errorf("chat request: API error (%d): %s", res.StatusCode, strings.TrimSpace(string(msg)))
	}
	return newNDJSONStream(res.Body, c.logger), nil
}
