package summarizer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	openaigo "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/kaiwa-dev/kaiwa/internal/domain"
)

const maxRetries = 2

// Client summarizes conversations through an OpenAI-compatible API.
type Client struct {
	client openaigo.Client
	model  string
}

// NewClient creates a summarization client.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	httpClient := &http.Client{Timeout: timeout}
	return &Client{
		client: openaigo.NewClient(
			option.WithBaseURL(strings.TrimRight(baseURL, "/")),
			option.WithAPIKey(apiKey),
			option.WithHTTPClient(httpClient),
			option.WithMaxRetries(maxRetries),
			option.WithRequestTimeout(timeout),
		),
		model: model,
	}
}

// Summarize sends the transcript to the model and parses the JSON result.
func (c *Client) Summarize(ctx context.Context, category string, transcript []domain.Utterance) (*Result, error) {
	if len(transcript) == 0 {
		return nil, fmt.Errorf("empty transcript")
	}

	system := `You summarize recorded conversations.
Write the summary in the predominant language of the conversation.
Return ONLY a JSON object like:
{"summary": "...", "highlights": [{"category": "...", "text": "..."}]}`

	var sb strings.Builder
	if category != "" {
		fmt.Fprintf(&sb, "Category: %s\n\n", category)
	}
	sb.WriteString("Conversation:\n")
	for _, u := range transcript {
		fmt.Fprintf(&sb, "%s: %s\n", u.Speaker, u.Content)
	}

	resp, err := c.client.Chat.Completions.New(ctx, openaigo.ChatCompletionNewParams{
		Model: openaigo.ChatModel(c.model),
		Messages: []openaigo.ChatCompletionMessageParamUnion{
			openaigo.SystemMessage(system),
			openaigo.UserMessage(sb.String()),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("summarization request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("summarization returned empty choices")
	}

	raw := extractJSONFromText(resp.Choices[0].Message.Content)
	var result Result
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("summarization returned invalid json: %w (raw=%s)", err, raw)
	}
	if strings.TrimSpace(result.Summary) == "" {
		return nil, fmt.Errorf("summarization returned empty summary")
	}
	return &result, nil
}

// extractJSONFromText strips markdown code fences that models sometimes wrap
// around JSON output.
func extractJSONFromText(s string) string {
	raw := strings.TrimSpace(s)
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	rest := strings.TrimSpace(strings.TrimPrefix(raw, "```"))
	if i := strings.Index(rest, "\n"); i >= 0 {
		rest = rest[i+1:]
	}
	if i := strings.LastIndex(rest, "```"); i >= 0 {
		rest = rest[:i]
	}
	return strings.TrimSpace(rest)
}
