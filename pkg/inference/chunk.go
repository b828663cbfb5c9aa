package inference

import (
	"bytes"

	"github.com/tidwall/gjson"
)

type ChunkKind int

const (
	// ChunkMalformed is a blank line or anything that is not a JSON object.
	ChunkMalformed ChunkKind = iota
	// ChunkFragment carries generated text; the stream continues.
	ChunkFragment
	// ChunkDone ends the stream. It may still carry a last piece of text.
	ChunkDone
	// ChunkFailed is an {"error": "..."} object sent by the server mid-stream.
	ChunkFailed
)

func (k ChunkKind) String() string {
	switch k {
	case ChunkFragment:
		return "fragment"
	case ChunkDone:
		return "done"
	case ChunkFailed:
		return "failed"
	default:
		return "malformed"
	}
}

type Chunk struct {
	Kind ChunkKind
	Text string
}

var dataPrefix = []byte("data:")

// DecodeChunk classifies one line of an Ollama /api/chat response.
func DecodeChunk(line []byte) Chunk {
	line = bytes.TrimSpace(line)
	line = bytes.TrimSpace(bytes.TrimPrefix(line, dataPrefix))
	if len(line) == 0 || !gjson.ValidBytes(line) {
		return Chunk{Kind: ChunkMalformed}
	}

	obj := gjson.ParseBytes(line)
	if !obj.IsObject() {
		return Chunk{Kind: ChunkMalformed}
	}

	if e := obj.Get("error"); e.Exists() {
		return Chunk{Kind: ChunkFailed, Text: e.String()}
	}

	text := obj.Get("message.content").String()
	if obj.Get("done").Bool() {
		return Chunk{Kind: ChunkDone, Text: text}
	}
	return Chunk{Kind: ChunkFragment, Text: text}
}
