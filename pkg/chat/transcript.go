package chat

// Transcript is the ordered user/assistant history of one session.
// The system prompt is never stored here; Trim adds it per request.
type Transcript struct {
	messages []Message
}

func NewTranscript(messages ...Message) *Transcript {
	t := &Transcript{}
	t.Replace(messages)
	return t
}

func (t *Transcript) Append(m Message) {
	if !m.Role.Conversational() {
		return
	}
	t.messages = append(t.messages, m)
}

// Messages returns a copy so callers can't reorder the stored history.
func (t *Transcript) Messages() []Message {
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t *Transcript) Len() int {
	return len(t.messages)
}

func (t *Transcript) Clear() {
	t.messages = nil
}

// Replace swaps the whole history, dropping anything that isn't a user or assistant message.
func (t *Transcript) Replace(messages []Message) {
	t.messages = nil
	for _, m := range messages {
		t.Append(m)
	}
}
