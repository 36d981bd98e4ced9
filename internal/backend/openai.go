package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/datasen-project/datasen/internal/prompt"
)

const systemPreamble = "You are DataSen, a data analysis assistant. " +
	"Answer questions about the loaded dataset using its structural summary below. " +
	"Be concise and ground every claim in the summary."

// OpenAI invokes an OpenAI-compatible chat-completions endpoint.
type OpenAI struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

// OpenAIOptions configures an OpenAI invoker.
type OpenAIOptions struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// NewOpenAI creates an invoker for an OpenAI-compatible API.
func NewOpenAI(opts OpenAIOptions) *OpenAI {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &OpenAI{
		endpoint: opts.Endpoint,
		apiKey:   opts.APIKey,
		model:    opts.Model,
		client:   &http.Client{Timeout: opts.Timeout},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Invoke serializes the payload as chat messages and returns the first
// completion choice.
func (o *OpenAI) Invoke(ctx context.Context, p *prompt.Payload) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:    o.model,
		Messages: messagesFromPayload(p),
	})
	if err != nil {
		return "", fmt.Errorf("marshaling chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling model endpoint: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading model response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("decoding model response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return "", fmt.Errorf("model endpoint returned %d: %s", resp.StatusCode, parsed.Error.Message)
		}
		return "", fmt.Errorf("model endpoint returned %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("model response contained no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// messagesFromPayload is the single place the structured payload becomes
// provider wire format: system preamble + dataset summary, then the turn
// history, then the new question.
func messagesFromPayload(p *prompt.Payload) []chatMessage {
	msgs := make([]chatMessage, 0, 2*len(p.RecentTurns)+2)

	system := systemPreamble
	if s := prompt.RenderSummary(p.Summary); s != "" {
		system += "\n\n" + s
	}
	msgs = append(msgs, chatMessage{Role: "system", Content: system})

	for _, t := range p.RecentTurns {
		msgs = append(msgs, chatMessage{Role: "user", Content: t.Question})
		msgs = append(msgs, chatMessage{Role: "assistant", Content: t.Answer})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: p.Question})
	return msgs
}
