package llm

import "context"

// MockRound scripts one completion round of a Mock client.
type MockRound struct {
	Text      string
	ToolCalls []ToolCall
	Err       error
}

// Mock replays scripted rounds in order. Requests are recorded so tests
// can assert on the context the service built. Replace with the OpenAI
// client for production use.
type Mock struct {
	Rounds   []MockRound
	Requests []Request

	next int
}

func (m *Mock) StreamCompletion(ctx context.Context, req Request, onText func(string) error) (*Result, error) {
	m.Requests = append(m.Requests, req)

	if m.next >= len(m.Rounds) {
		return &Result{}, nil
	}
	round := m.Rounds[m.next]
	m.next++

	if round.Err != nil {
		return nil, round.Err
	}
	if round.Text != "" {
		if err := onText(round.Text); err != nil {
			return nil, err
		}
	}
	return &Result{Text: round.Text, ToolCalls: round.ToolCalls}, nil
}

var _ Client = (*Mock)(nil)
