// Package router classifies inbound messages into a processing mode.
// A zero-cost heuristic pass handles the common phrasings; everything
// else falls through to an LLM classification call.
package router

import "github.com/dvmoura/anota/internal/snapshot"

// Processing modes.
const (
	ModeCapture         = "CAPTURE"
	ModeQuery           = "QUERY"
	ModeTransform       = "TRANSFORM"
	ModeChat            = "CHAT"
	ModeWhatsAppSummary = "WHATSAPP_SUMMARY"
)

// Intents produced by the heuristic pass.
const (
	IntentListNormalization = "list_normalization"
	IntentAgendaCheck       = "agenda_check"
	IntentListView          = "list_view"
	IntentAddItem           = "add_item"
	IntentReminderCreate    = "reminder_create"
	IntentDataProcessing    = "data_processing"
	IntentGeneral           = "general"
)

// Output is one routing decision. Produced fresh for each turn, never
// persisted.
type Output struct {
	Mode         string         `json:"mode"`
	Intent       string         `json:"intent"`
	Confidence   float64        `json:"confidence"`
	Entities     map[string]any `json:"entities,omitempty"`
	DirectAction bool           `json:"direct_action,omitempty"`
}

// Context is what the router can see beyond the raw text.
type Context struct {
	Snapshot *snapshot.ActiveContext
}
