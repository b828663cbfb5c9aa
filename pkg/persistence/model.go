// Package persistence handles mapping and JSON serialization of transcripts
package persistence

// Message is one entry of a transcript file: a JSON array of {role, content}.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
