package explain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultAnthropicModel is used when no model is configured.
const DefaultAnthropicModel = "claude-sonnet-4-5"

// Anthropic explains passages with the Claude Messages API.
type Anthropic struct {
	client anthropic.Client
	model  string
	log    *slog.Logger
}

// NewAnthropic creates a provider. An empty apiKey falls back to the
// ANTHROPIC_API_KEY environment variable read by the SDK.
func NewAnthropic(apiKey, model string, logger *slog.Logger, opts ...option.RequestOption) *Anthropic {
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if model == "" {
		model = DefaultAnthropicModel
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Anthropic{
		client: anthropic.NewClient(opts...),
		model:  model,
		log:    logger.With("provider", "anthropic"),
	}
}

func (a *Anthropic) Name() string { return "anthropic" }

func (a *Anthropic) Explain(ctx context.Context, req Request) (string, error) {
	maxTokens := int64(1024)
	if req.Detailed {
		maxTokens = 4096
	}

	a.log.DebugContext(ctx, "anthropic request", slog.String("model", a.model), slog.Bool("detailed", req.Detailed))
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(BuildPrompt(req))),
		},
	})
	if err != nil {
		return "", wrapError(a.Name(), err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		b.WriteString(block.Text)
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", wrapError(a.Name(), fmt.Errorf("empty response"))
	}
	return text, nil
}
