package llm

import "context"

// MockClient is a scripted Client for tests. Responses are returned in
// order; when the script runs out the last entry repeats.
type MockClient struct {
	Responses []string
	Err       error
	Prompts   []string
}

// Complete returns the next scripted response, recording the prompt.
func (m *MockClient) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "", nil
	}
	idx := len(m.Prompts) - 1
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	return m.Responses[idx], nil
}

// CallCount returns how many completions were requested.
func (m *MockClient) CallCount() int {
	return len(m.Prompts)
}
