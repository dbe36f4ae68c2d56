package translate

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
)

const systemPrompt = "You translate subtitle lines. Reply with the translation of the user's text only, " +
	"with no quotes, notes or explanations. Keep the line length similar to the original."

// OpenAIClient translates with a chat completion model. Any OpenAI-compatible
// endpoint works via baseURL.
type OpenAIClient struct {
	client oai.Client
	model  string
}

// NewOpenAIClient creates a client. baseURL may be empty for api.openai.com.
func NewOpenAIClient(apiKey, model, baseURL string, timeout time.Duration) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: api key must not be empty")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if timeout > 0 {
		opts = append(opts, option.WithHTTPClient(&http.Client{Timeout: timeout}))
	}
	return &OpenAIClient{client: oai.NewClient(opts...), model: model}, nil
}

func (c *OpenAIClient) Name() string { return "openai" }

func (c *OpenAIClient) Translate(ctx context.Context, text, source, target string) (string, error) {
	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(systemPrompt),
			oai.UserMessage(fmt.Sprintf("Translate from %s to %s:\n%s", source, target, text)),
		},
		Temperature: param.NewOpt(0.0),
	}
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai completion: no choices returned")
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", fmt.Errorf("openai completion: empty translation")
	}
	return out, nil
}
