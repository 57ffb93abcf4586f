package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dvmoura/anota/internal/config"
	"github.com/dvmoura/anota/internal/httpkit"
)

// OpenAIClient is a client for an OpenAI-compatible chat completions API.
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOpenAIClient creates a new client for an OpenAI-compatible provider.
func NewOpenAIClient(baseURL, apiKey string, logger *slog.Logger) *OpenAIClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		logger:  logger.With("provider", "openai"),
		// No global timeout — tool-heavy completions can be slow.
		// Rely on ctx deadlines for timeout control.
		httpClient: httpkit.NewClient(httpkit.WithTimeout(0)),
	}
}

// OpenAI wire types. Tool call arguments cross the wire as a JSON
// string; the neutral types use map[string]any, so both directions
// convert here.

type openaiRequest struct {
	Model          string                `json:"model"`
	Messages       []openaiMessage       `json:"messages"`
	Tools          []map[string]any      `json:"tools,omitempty"`
	ToolChoice     string                `json:"tool_choice,omitempty"`
	ResponseFormat *openaiResponseFormat `json:"response_format,omitempty"`
}

type openaiResponseFormat struct {
	Type string `json:"type"`
}

type openaiMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []openaiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openaiToolCall struct {
	ID       string `json:"id,omitempty"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openaiResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      openaiMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Chat sends a chat completion request.
func (c *OpenAIClient) Chat(ctx context.Context, req *Request) (*ChatResponse, error) {
	wireReq := openaiRequest{
		Model:      req.Model,
		Messages:   toWireMessages(req.Messages),
		Tools:      req.Tools,
		ToolChoice: req.ToolChoice,
	}
	if req.ResponseFormat != "" {
		wireReq.ResponseFormat = &openaiResponseFormat{Type: req.ResponseFormat}
	}

	jsonData, err := json.Marshal(wireReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	c.logger.Log(ctx, config.LevelTrace, "request payload", "json", string(jsonData))

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body := httpkit.ReadErrorBody(resp.Body, 4096)
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, body)
	}

	var wireResp openaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&wireResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if wireResp.Error != nil {
		return nil, fmt.Errorf("provider error: %s", wireResp.Error.Message)
	}
	if len(wireResp.Choices) == 0 {
		return nil, fmt.Errorf("provider returned no choices")
	}

	msg, err := fromWireMessage(wireResp.Choices[0].Message)
	if err != nil {
		return nil, err
	}

	return &ChatResponse{
		Model:        wireResp.Model,
		Message:      msg,
		InputTokens:  wireResp.Usage.PromptTokens,
		OutputTokens: wireResp.Usage.CompletionTokens,
	}, nil
}

// Ping checks if the provider is reachable.
func (c *OpenAIClient) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API error %d", resp.StatusCode)
	}
	return nil
}

func toWireMessages(messages []Message) []openaiMessage {
	wire := make([]openaiMessage, len(messages))
	for i, m := range messages {
		wire[i] = openaiMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			var wtc openaiToolCall
			wtc.ID = tc.ID
			wtc.Type = "function"
			wtc.Function.Name = tc.Function.Name
			args, err := json.Marshal(tc.Function.Arguments)
			if err != nil {
				args = []byte("{}")
			}
			wtc.Function.Arguments = string(args)
			wire[i].ToolCalls = append(wire[i].ToolCalls, wtc)
		}
	}
	return wire
}

func fromWireMessage(wm openaiMessage) (Message, error) {
	msg := Message{
		Role:       wm.Role,
		Content:    wm.Content,
		ToolCallID: wm.ToolCallID,
	}
	for _, wtc := range wm.ToolCalls {
		var tc ToolCall
		tc.ID = wtc.ID
		tc.Function.Name = wtc.Function.Name
		if wtc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(wtc.Function.Arguments), &tc.Function.Arguments); err != nil {
				return Message{}, fmt.Errorf("decode tool call arguments for %s: %w", wtc.Function.Name, err)
			}
		}
		msg.ToolCalls = append(msg.ToolCalls, tc)
	}
	return msg, nil
}
