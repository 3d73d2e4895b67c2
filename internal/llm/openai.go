package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"holding-backend/internal/apperr"

	"github.com/sashabaranov/go-openai"
)

// OpenAI implements Client over the OpenAI chat completions API with
// streaming and tool calling.
type OpenAI struct {
	client *openai.Client
	model  string
}

func NewOpenAI(apiKey, model string) *OpenAI {
	if model == "" {
		model = openai.GPT4oMini
		log.Printf("⚠️  OPENAI_MODEL not set, defaulting to %s", model)
	}
	return &OpenAI{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (o *OpenAI) StreamCompletion(ctx context.Context, req Request, onText func(string) error) (*Result, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.Messages {
		msg := openai.ChatCompletionMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		messages = append(messages, msg)
	}

	var tools []openai.Tool
	for _, t := range req.Tools {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	stream, err := o.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: messages,
		Tools:    tools,
	})
	if err != nil {
		return nil, apperr.Upstream("openai stream: %v", err)
	}
	defer stream.Close()

	var (
		result Result
		// Tool call fragments arrive indexed; arguments build up
		// across deltas.
		calls []ToolCall
	)
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperr.Upstream("openai stream recv: %v", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta

		if delta.Content != "" {
			result.Text += delta.Content
			if err := onText(delta.Content); err != nil {
				return nil, err
			}
		}

		for _, tc := range delta.ToolCalls {
			idx := len(calls) - 1
			if tc.Index != nil {
				idx = *tc.Index
			}
			for len(calls) <= idx {
				calls = append(calls, ToolCall{})
			}
			if idx < 0 {
				return nil, apperr.Upstream("openai stream: tool call delta without index")
			}
			if tc.ID != "" {
				calls[idx].ID = tc.ID
			}
			if tc.Function.Name != "" {
				calls[idx].Name = tc.Function.Name
			}
			calls[idx].Arguments += tc.Function.Arguments
		}
	}

	result.ToolCalls = calls
	return &result, nil
}

var _ Client = (*OpenAI)(nil)

// String identifies the backing model, for logs.
func (o *OpenAI) String() string {
	return fmt.Sprintf("openai:%s", o.model)
}
