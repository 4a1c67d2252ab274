package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient adapts the Anthropic messages API to the Client interface.
type AnthropicClient struct {
	client anthropic.Client
	model  string
}

// NewAnthropicClient creates an Anthropic-backed client for the given model.
func NewAnthropicClient(apiKey, model string) *AnthropicClient {
	return &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (c *AnthropicClient) Name() string { return "anthropic" }

// Complete performs one messages call.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	maxTokens := int64(req.MaxTokens)
	if maxTokens == 0 {
		maxTokens = 1024
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classifyAnthropic(err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return &Completion{
		Text: text,
		Metadata: map[string]string{
			"provider":      "anthropic",
			"model":         model,
			"response_id":   resp.ID,
			"stop_reason":   string(resp.StopReason),
			"input_tokens":  fmt.Sprintf("%d", resp.Usage.InputTokens),
			"output_tokens": fmt.Sprintf("%d", resp.Usage.OutputTokens),
		},
	}, nil
}

func classifyAnthropic(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Err: err}
	}
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return &Error{Kind: kindFromStatus(apierr.StatusCode), Err: err}
	}
	return &Error{Kind: KindUnknown, Err: err}
}
