package chat

// Trim builds a request history: one system message followed by at most the
// last 2*keepTurns user/assistant messages of history, oldest first.
//
// The window is positional. Long messages are not shortened, so a small
// keepTurns does not guarantee the request fits the model context.
func Trim(history []Message, systemPrompt string, keepTurns int) []Message {
	nonSystem := make([]Message, 0, len(history))
	for _, m := range history {
		if m.Role.Conversational() {
			nonSystem = append(nonSystem, m)
		}
	}

	keep := 2 * keepTurns
	if keep < 0 {
		keep = 0
	}
	if len(nonSystem) > keep {
		nonSystem = nonSystem[len(nonSystem)-keep:]
	}

	out := make([]Message, 0, len(nonSystem)+1)
	out = append(out, SystemMessage(systemPrompt))
	return append(out, nonSystem...)
}
