package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClient adapts the OpenAI chat completion API to the Client interface.
type OpenAIClient struct {
	client openai.Client
	model  string
}

// NewOpenAIClient creates an OpenAI-backed client for the given model.
func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	return &OpenAIClient{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (c *OpenAIClient) Name() string { return "openai" }

// Complete performs one chat completion call.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	var msgs []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	msgs = append(msgs, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: msgs,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classifyOpenAI(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &Error{Kind: KindUnknown, Err: errors.New("empty choices in response")}
	}

	return &Completion{
		Text: resp.Choices[0].Message.Content,
		Metadata: map[string]string{
			"provider":      "openai",
			"model":         model,
			"response_id":   resp.ID,
			"finish_reason": string(resp.Choices[0].FinishReason),
			"input_tokens":  fmt.Sprintf("%d", resp.Usage.PromptTokens),
			"output_tokens": fmt.Sprintf("%d", resp.Usage.CompletionTokens),
		},
	}, nil
}

func classifyOpenAI(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Err: err}
	}
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return &Error{Kind: kindFromStatus(apierr.StatusCode), Err: err}
	}
	return &Error{Kind: KindUnknown, Err: err}
}

// kindFromStatus maps an HTTP status to an error kind. 4xx responses other
// than 408/429 are permanent rejections; everything else is transient.
func kindFromStatus(status int) ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusRequestTimeout:
		return KindTimeout
	case status >= 400 && status < 500:
		return KindRejected
	default:
		return KindUnknown
	}
}
