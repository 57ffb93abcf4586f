package worker

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvmoura/anota/internal/router"
)

// Output is the validated result of a worker turn.
type Output struct {
	Response    string         `json:"response"`
	Data        any            `json:"data,omitempty"`
	Constraints map[string]any `json:"constraints,omitempty"`

	// List-normalization fields.
	Action   string `json:"action,omitempty"`
	ListName string `json:"list_name,omitempty"`
}

const genericApology = "Desculpa, algo deu errado ao processar sua mensagem. Pode tentar de novo?"

// Validate parses the worker's raw content against the schema the
// routing decision demands. Parsing never fails outward: schema
// mismatches go through a lenient recovery pass, and if that also
// fails the output degrades to a plain response so the user never sees
// a raw parse error.
func Validate(rawContent string, route *router.Output) *Output {
	raw := strings.TrimSpace(rawContent)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	if route.Intent == router.IntentListNormalization {
		return validateListNormalization(raw)
	}
	return validateGeneric(raw, route)
}

func validateListNormalization(raw string) *Output {
	var out Output
	if err := json.Unmarshal([]byte(raw), &out); err == nil &&
		out.Action != "" && validListData(out.Data) {
		if out.Response == "" {
			out.Response = synthesizeListResponse(&out)
		}
		return &out
	}

	// Recovery: accept any JSON object that carries action and data,
	// whatever else it got wrong.
	var loose map[string]any
	if err := json.Unmarshal([]byte(raw), &loose); err == nil {
		action, _ := loose["action"].(string)
		data := loose["data"]
		if action != "" && validListData(data) {
			out := &Output{Action: action, Data: data}
			out.ListName, _ = loose["list_name"].(string)
			if resp, ok := loose["response"].(string); ok && resp != "" {
				out.Response = resp
			} else {
				out.Response = synthesizeListResponse(out)
			}
			return out
		}
	}

	return degraded(raw)
}

// validListData accepts the two shapes a worker legitimately emits:
// an array of plain strings, or an array of {content, status?} objects.
func validListData(data any) bool {
	list, ok := data.([]any)
	if !ok || len(list) == 0 {
		return false
	}
	for _, entry := range list {
		switch v := entry.(type) {
		case string:
		case map[string]any:
			if content, ok := v["content"].(string); !ok || content == "" {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func synthesizeListResponse(out *Output) string {
	name := out.ListName
	if name == "" {
		name = "sua lista"
	}
	n := 0
	if list, ok := out.Data.([]any); ok {
		n = len(list)
	}
	return fmt.Sprintf("Pronto! Criei %s com %d itens.", name, n)
}

func validateGeneric(raw string, route *router.Output) *Output {
	// Chat mode legitimately produces free text.
	if route.Mode == router.ModeChat || !looksLikeJSON(raw) {
		return &Output{Response: raw}
	}

	var out Output
	if err := json.Unmarshal([]byte(raw), &out); err == nil && out.Response != "" {
		return &out
	}

	// Recovery: any present response field is accepted as-is.
	var loose map[string]any
	if err := json.Unmarshal([]byte(raw), &loose); err == nil {
		if resp, ok := loose["response"].(string); ok && resp != "" {
			out := &Output{Response: resp, Data: loose["data"]}
			if c, ok := loose["constraints"].(map[string]any); ok {
				out.Constraints = c
			}
			return out
		}
	}

	return degraded(raw)
}

func looksLikeJSON(raw string) bool {
	return strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "[")
}

func degraded(raw string) *Output {
	if raw == "" || looksLikeJSON(raw) {
		return &Output{Response: genericApology}
	}
	return &Output{Response: raw}
}
