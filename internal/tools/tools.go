// Package tools defines the tools the worker model can call and the
// execution boundary between the model and the datastore.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dvmoura/anota/internal/store"
)

// Tool represents a callable tool.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
	ReadOnly    bool           `json:"-"`
	Handler     func(ctx context.Context, userID string, args map[string]any) (string, error) `json:"-"`
}

// Registry holds available tools.
type Registry struct {
	tools  map[string]*Tool
	store  *store.Store
	logger *slog.Logger
}

// NewRegistry creates a tool registry backed by the datastore.
func NewRegistry(logger *slog.Logger, st *store.Store) *Registry {
	r := &Registry{
		tools:  make(map[string]*Tool),
		store:  st,
		logger: logger.With("component", "tools"),
	}
	r.registerBuiltins()
	return r
}

func (r *Registry) registerBuiltins() {
	r.Register(r.manageCollectionsTool())
	r.Register(r.manageTasksTool())
	r.Register(r.manageRemindersTool())
	r.Register(r.saveMemoryTool())
	r.Register(r.queryMessagesTool())
}

// Register adds a tool to the registry.
func (r *Registry) Register(t *Tool) {
	r.tools[t.Name] = t
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) *Tool {
	return r.tools[name]
}

// Specs returns OpenAI-style function specs for the named tools,
// skipping names that don't exist.
func (r *Registry) Specs(names ...string) []map[string]any {
	var result []map[string]any
	for _, name := range names {
		t := r.tools[name]
		if t == nil {
			continue
		}
		result = append(result, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			},
		})
	}
	return result
}

// ReadOnlyNames returns the names of tools that never mutate state.
func (r *Registry) ReadOnlyNames() []string {
	var names []string
	for name, t := range r.tools {
		if t.ReadOnly {
			names = append(names, name)
		}
	}
	return names
}

// AllNames returns every registered tool name.
func (r *Registry) AllNames() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Execute runs a tool and always returns a well-formed string result.
// Errors are encoded as a JSON payload instead of propagating, so the
// calling model can read the failure and retry with corrected
// arguments. Every invocation is audited; audit write failures never
// abort the call itself.
func (r *Registry) Execute(ctx context.Context, userID, name string, args map[string]any) string {
	tool := r.tools[name]
	if tool == nil {
		r.logger.Warn("unknown tool requested", "tool", name, "user_id", userID)
		return errorPayload((&UnknownToolError{Name: name}).Error())
	}

	argsJSON, _ := json.Marshal(args)
	callID, err := r.store.RecordToolCall(userID, name, string(argsJSON))
	if err != nil {
		r.logger.Warn("tool audit write failed", "tool", name, "error", err)
	}

	result, err := tool.Handler(ctx, userID, args)
	if err != nil {
		r.logger.Warn("tool execution failed",
			"tool", name, "user_id", userID, "args", string(argsJSON), "error", err)
		result = errorPayload(err.Error())
	} else {
		r.logger.Debug("tool executed", "tool", name, "user_id", userID)
	}

	if callID != "" {
		errText := ""
		if err != nil {
			errText = err.Error()
		}
		if aerr := r.store.CompleteToolCall(callID, result, errText); aerr != nil {
			r.logger.Warn("tool audit completion failed", "tool", name, "error", aerr)
		}
	}
	return result
}

func errorPayload(msg string) string {
	out, _ := json.Marshal(map[string]string{"error": msg})
	return string(out)
}

func okPayload(v any) string {
	out, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf(`{"status":"ok","detail":%q}`, fmt.Sprint(v))
	}
	return string(out)
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}
