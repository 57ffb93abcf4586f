// Package llm provides the LLM provider client.
package llm

// Message represents a chat message for the LLM.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // For tool responses
}

// ToolCall represents a tool call from the model.
type ToolCall struct {
	ID       string `json:"id,omitempty"` // Provider-assigned ID for tool_result correlation
	Function struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"function"`
}

// NewToolCall builds a ToolCall. Mostly useful in tests; production
// tool calls arrive from the provider already populated.
func NewToolCall(id, name string, args map[string]any) ToolCall {
	var tc ToolCall
	tc.ID = id
	tc.Function.Name = name
	tc.Function.Arguments = args
	return tc
}

// Request is a provider-neutral chat completion request.
// Wire format conversion happens at the provider boundary (openai.go).
type Request struct {
	Model    string
	Messages []Message

	// Tools are OpenAI-style function specs, as produced by the tool
	// registry. Empty means no tool calling.
	Tools []map[string]any

	// ToolChoice is "", "auto", or "none".
	ToolChoice string

	// ResponseFormat is "" or "json_object" to force strict JSON output.
	ResponseFormat string
}

// ChatResponse is the unified response from the provider.
type ChatResponse struct {
	Model   string
	Message Message

	// Token usage (provider-neutral)
	InputTokens  int
	OutputTokens int
}
