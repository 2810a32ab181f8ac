package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"

	"curio/internal/config"
)

var (
	// ErrNoOutput marks a completion that came back with no choices or
	// empty content.
	ErrNoOutput = errors.New("model returned no output")
	// ErrBadOutput marks output that is not valid JSON despite JSON mode.
	ErrBadOutput = errors.New("model returned malformed output")
)

// Request is one text-generation call. JSONMode asks the provider to
// constrain the entire output to a single JSON object; callers must still
// defend against output that violates the constraint.
type Request struct {
	System      string
	Prompt      string
	JSONMode    bool
	Temperature float64
	MaxTokens   int64
}

// Generator is the narrow interface over the text-generation collaborator,
// substitutable with any provider.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Client generates text through an OpenAI-compatible chat-completion API.
// The API key is taken from the environment by the SDK.
type Client struct {
	oai   openai.Client
	model string
}

// NewClient builds a Client from the AI config. A custom base URL allows
// pointing at any OpenAI-compatible provider.
func NewClient(cfg config.AIConfig) *Client {
	var opts []option.RequestOption
	if strings.TrimSpace(cfg.BaseUrl) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseUrl))
	}
	model := cfg.Model
	if strings.TrimSpace(model) == "" {
		model = "gpt-3.5-turbo"
	}
	return &Client{oai: openai.NewClient(opts...), model: model}
}

func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.Prompt),
		},
		Model:       c.model,
		Temperature: openai.Float(req.Temperature),
		MaxTokens:   openai.Int(req.MaxTokens),
	}
	if req.JSONMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	completion, err := c.oai.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to get AI completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", ErrNoOutput
	}
	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return "", ErrNoOutput
	}
	return content, nil
}
