package router

import "strings"

// rule is one heuristic pattern. Rules are evaluated in declaration
// order and the first match wins, so list creation is checked before
// item capture: "faz uma lista de compras: leite" must classify as a
// list, not as adding "uma lista de compras: leite" to something.
type rule struct {
	name  string
	match func(q string) bool
	build func(q string, rctx Context) *Output
}

var heuristicRules = []rule{
	{
		name: "list_create",
		match: func(q string) bool {
			return containsAny(q,
				"faz uma lista", "faça uma lista", "fazer uma lista",
				"cria uma lista", "criar uma lista", "crie uma lista",
				"monta uma lista", "nova lista",
				"make a list", "create a list", "new list")
		},
		build: func(q string, _ Context) *Output {
			return &Output{Mode: ModeTransform, Intent: IntentListNormalization, Confidence: 0.95}
		},
	},
	{
		name: "agenda_check",
		match: func(q string) bool {
			return containsAny(q,
				"o que eu tenho hoje", "o que tenho hoje", "minha agenda",
				"agenda de hoje", "compromissos de hoje",
				"what do i have today", "my agenda")
		},
		build: func(q string, _ Context) *Output {
			return &Output{Mode: ModeQuery, Intent: IntentAgendaCheck, Confidence: 1.0, DirectAction: true}
		},
	},
	{
		name: "list_view",
		// Triggers stay verb-anchored: a bare "minha lista" would also
		// match capture phrasings like "adiciona leite na minha lista"
		// and hijack them into a read-only direct action.
		match: func(q string) bool {
			return containsAny(q,
				"mostra a lista", "mostrar a lista", "ver a lista",
				"lê a lista", "le a lista", "abre a lista",
				"mostra minha lista", "ver minha lista", "cadê minha lista", "cade minha lista",
				"show the list", "view the list", "read the list",
				"show my list", "view my list")
		},
		build: func(q string, rctx Context) *Output {
			out := &Output{Mode: ModeQuery, Intent: IntentListView, Confidence: 1.0, DirectAction: true}
			if rctx.Snapshot != nil && rctx.Snapshot.ActiveList != nil {
				out.Entities = map[string]any{"list_id": rctx.Snapshot.ActiveList.ID}
			}
			return out
		},
	},
	{
		name: "add_item",
		match: func(q string) bool {
			return hasAnyPrefix(q,
				"adiciona ", "adicionar ", "acrescenta ", "inclui ",
				"compra ", "comprar ", "anota ",
				"add ", "buy ", "include ")
		},
		build: func(q string, _ Context) *Output {
			return &Output{
				Mode:       ModeCapture,
				Intent:     IntentAddItem,
				Confidence: 0.9,
				Entities:   map[string]any{"items": []string{stripAddVerb(q)}},
			}
		},
	},
	{
		name: "reminder_create",
		match: func(q string) bool {
			return containsAny(q,
				"me lembra", "me lembre", "lembre-me", "não esquece", "nao esquece",
				"remind me", "remember to")
		},
		build: func(q string, _ Context) *Output {
			return &Output{Mode: ModeCapture, Intent: IntentReminderCreate, Confidence: 0.9}
		},
	},
	{
		name: "data_processing",
		match: func(q string) bool {
			return containsAny(q, "agrupa", "agrupar", "soma ", "somar ", "csv", "group by", "sum up")
		},
		build: func(q string, _ Context) *Output {
			return &Output{Mode: ModeTransform, Intent: IntentDataProcessing, Confidence: 0.9}
		},
	},
}

// Route runs the heuristic pass. A nil return means no pattern
// matched and the caller should fall through to the LLM router.
func Route(text string, rctx Context) *Output {
	q := strings.ToLower(strings.TrimSpace(text))
	if q == "" {
		return nil
	}
	for _, r := range heuristicRules {
		if r.match(q) {
			return r.build(q, rctx)
		}
	}
	return nil
}

func containsAny(q string, patterns ...string) bool {
	for _, p := range patterns {
		if strings.Contains(q, p) {
			return true
		}
	}
	return false
}

func hasAnyPrefix(q string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(q, p) {
			return true
		}
	}
	return false
}

// stripAddVerb drops the leading capture verb so the entity carries
// only the item text.
func stripAddVerb(q string) string {
	verbs := []string{
		"adiciona ", "adicionar ", "acrescenta ", "inclui ",
		"compra ", "comprar ", "anota ",
		"add ", "buy ", "include ",
	}
	for _, v := range verbs {
		if strings.HasPrefix(q, v) {
			return strings.TrimSpace(strings.TrimPrefix(q, v))
		}
	}
	return strings.TrimSpace(q)
}
