package explain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const DefaultOllamaURL = "http://localhost:11434"

// Ollama calls a local Ollama server through /api/generate.
type Ollama struct {
	baseURL    string
	model      string
	httpClient *http.Client
	log        *slog.Logger
}

// NewOllama creates a client for the server at baseURL. An empty baseURL
// uses DefaultOllamaURL.
func NewOllama(baseURL, model string, logger *slog.Logger) *Ollama {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Ollama{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		log:        logger.With("provider", "ollama"),
	}
}

func (o *Ollama) Name() string { return "ollama" }

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

// generateOptions returns sampling options; summaries run cooler and shorter.
func generateOptions(detailed bool) map[string]any {
	if detailed {
		return map[string]any{"temperature": 0.3, "top_p": 0.9, "num_predict": 6000, "repeat_penalty": 1.1}
	}
	return map[string]any{"temperature": 0.1, "top_p": 0.8, "num_predict": 2000, "repeat_penalty": 1.0}
}

func (o *Ollama) Explain(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:   o.model,
		Prompt:  BuildPrompt(req),
		Stream:  false,
		Options: generateOptions(req.Detailed),
	})
	if err != nil {
		return "", fmt.Errorf("ollama: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ollama: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	o.log.DebugContext(ctx, "ollama request", slog.String("model", o.model), slog.Bool("detailed", req.Detailed))
	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return "", wrapError(o.Name(), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", wrapError(o.Name(), fmt.Errorf("read body: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return "", wrapError(o.Name(), fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var out generateResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", wrapError(o.Name(), fmt.Errorf("decode json: %w", err))
	}
	if out.Error != "" {
		return "", wrapError(o.Name(), fmt.Errorf("server error: %s", out.Error))
	}
	text := strings.TrimSpace(out.Response)
	if text == "" {
		return "", wrapError(o.Name(), fmt.Errorf("empty response"))
	}
	return text, nil
}
