// Package inference streams chat completions from a local inference server.
//
// Two backends share one Stream contract:
//   - Client speaks the Ollama native API (/api/chat, newline-delimited JSON).
//   - OpenAIClient speaks the OpenAI-compatible API (/v1/chat/completions, SSE).
//
// Both are built on the openai-go HTTP client with retries disabled, so any
// network failure, non-2xx status or timeout reaches the caller exactly once.
package inference
