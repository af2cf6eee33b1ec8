package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
)

// chatCompletionRetries bounds transient-failure retries against the
// completion endpoint.
const chatCompletionRetries = 2

// Message is one turn of a chat completion conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SystemMessage builds a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: "system", Content: content}
}

// UserMessage builds a user-role message.
func UserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

// Client produces chat completions. Implementations must be safe for
// concurrent use.
type Client interface {
	// Completion sends the message sequence to the model and returns
	// the assistant's reply along with the total token usage of the
	// call.
	Completion(ctx context.Context, msgs []Message,
		model string) (string, int, error)
}

// OpenAIConfig packages the knobs of the OpenAI-compatible client.
type OpenAIConfig struct {
	// APIKey is the bearer token sent with each request.
	APIKey string

	// BaseURL is the API root, e.g. "https://api.openai.com/v1".
	// Pointing it at a compatible proxy is supported.
	BaseURL string
}

// OpenAIClient implements Client over the OpenAI chat completion REST
// API, or any endpoint that speaks the same protocol.
type OpenAIClient struct {
	cfg OpenAIConfig

	http *http.Client
}

// A compile-time check that OpenAIClient satisfies Client.
var _ Client = (*OpenAIClient)(nil)

// NewOpenAIClient creates an OpenAI-compatible completion client with
// retrying transport.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = chatCompletionRetries
	retryClient.Logger = nil

	return &OpenAIClient{
		cfg:  cfg,
		http: retryClient.StandardClient(),
	}
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`

	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`

	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Completion implements Client.
func (c *OpenAIClient) Completion(ctx context.Context, msgs []Message,
	model string) (string, int, error) {

	body, err := json.Marshal(chatRequest{
		Model:    model,
		Messages: msgs,
	})
	if err != nil {
		return "", 0, fmt.Errorf("unable to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost,
		c.cfg.BaseURL+"/chat/completions",
		bytes.NewReader(body),
	)
	if err != nil {
		return "", 0, fmt.Errorf("unable to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return "", 0, fmt.Errorf("unable to decode completion: %w",
			err)
	}

	if chat.Error != nil {
		return "", 0, fmt.Errorf("completion rejected: %s: %s",
			chat.Error.Type, chat.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("completion: unexpected status %d",
			resp.StatusCode)
	}
	if len(chat.Choices) == 0 {
		return "", 0, fmt.Errorf("completion returned no choices")
	}

	return chat.Choices[0].Message.Content, chat.Usage.TotalTokens, nil
}
