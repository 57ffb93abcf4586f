package worker

import (
	"encoding/json"
	"fmt"
)

// Render turns a validated output into the reply text. When the
// worker set data_only or strict_output, the structured data replaces
// the narrative response entirely: the user asked for the data, not
// commentary about it.
func Render(out *Output) string {
	if dataOnly(out) && out.Data != nil {
		switch v := out.Data.(type) {
		case string:
			return v
		default:
			if pretty, err := json.MarshalIndent(v, "", "  "); err == nil {
				return string(pretty)
			}
			return fmt.Sprint(v)
		}
	}
	return out.Response
}

func dataOnly(out *Output) bool {
	if out.Constraints == nil {
		return false
	}
	for _, key := range []string{"data_only", "strict_output"} {
		if v, ok := out.Constraints[key].(bool); ok && v {
			return true
		}
	}
	return false
}
