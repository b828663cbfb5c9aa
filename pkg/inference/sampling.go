package inference

// Sampling is the per-session request configuration chosen by the operator.
type Sampling struct {
	Model        string
	Temperature  float64
	TopP         float64
	MaxTokens    int
	SystemPrompt string
}
