// Package agent wires the full inbound pipeline: deduplication,
// session resolution, context assembly, routing, the worker loop, and
// reply rendering.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dvmoura/anota/internal/llm"
	"github.com/dvmoura/anota/internal/router"
	"github.com/dvmoura/anota/internal/session"
	"github.com/dvmoura/anota/internal/snapshot"
	"github.com/dvmoura/anota/internal/store"
	"github.com/dvmoura/anota/internal/worker"
)

// historyLimit caps how much rolling history is replayed to the model.
const historyLimit = 20

// Inbound is one normalized inbound message, whatever the transport.
type Inbound struct {
	UserID            string
	ThreadID          string
	Text              string
	MediaURL          string
	MediaType         string
	ProviderMessageID string
}

// Result is the outcome of one pipeline run.
type Result struct {
	Reply     string
	Duplicate bool
}

// Pipeline processes inbound messages end to end.
type Pipeline struct {
	store     *store.Store
	dedup     *session.Deduplicator
	sessions  *session.Manager
	snapshots *snapshot.Builder
	llmRouter *router.LLMRouter
	worker    *worker.Dispatcher
	logger    *slog.Logger
}

func NewPipeline(
	logger *slog.Logger,
	st *store.Store,
	dedup *session.Deduplicator,
	sessions *session.Manager,
	snapshots *snapshot.Builder,
	llmRouter *router.LLMRouter,
	dispatcher *worker.Dispatcher,
) *Pipeline {
	return &Pipeline{
		store:     st,
		dedup:     dedup,
		sessions:  sessions,
		snapshots: snapshots,
		llmRouter: llmRouter,
		worker:    dispatcher,
		logger:    logger.With("component", "pipeline"),
	}
}

// HandleInbound runs the full pipeline for one message and returns the
// reply. Duplicate deliveries short-circuit to a no-op success.
func (p *Pipeline) HandleInbound(ctx context.Context, in Inbound) (*Result, error) {
	if in.UserID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if in.ThreadID == "" {
		in.ThreadID = "direct"
	}

	seen, err := p.dedup.Seen(in.ProviderMessageID)
	if err != nil {
		return nil, fmt.Errorf("dedup lookup: %w", err)
	}
	if seen {
		return &Result{Duplicate: true}, nil
	}

	now := time.Now()
	conv, rotated, err := p.sessions.Resolve(in.UserID, in.ThreadID, in.Text, now)
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}

	// History is captured before the inbound turn is persisted so the
	// new user text reaches the provider exactly once, as the current
	// turn, never also as the tail of the history.
	history, err := p.history(conv.ID)
	if err != nil {
		p.logger.Warn("history unavailable", "error", err)
	}

	_, inserted, err := p.store.InsertMessage(&store.Message{
		ConversationID:    conv.ID,
		UserID:            in.UserID,
		Role:              "user",
		Content:           in.Text,
		MediaURL:          in.MediaURL,
		MediaType:         in.MediaType,
		ProviderMessageID: in.ProviderMessageID,
	})
	if err != nil {
		return nil, fmt.Errorf("persist inbound: %w", err)
	}
	// A concurrent redelivery can pass the Seen pre-check on both
	// handlers; the unique index decides the winner and the loser must
	// not run the worker a second time.
	if !inserted && in.ProviderMessageID != "" {
		return &Result{Duplicate: true}, nil
	}

	// An explicit "new topic" needs no model turn.
	if rotated && session.IsNewTopicCommand(in.Text) {
		return p.reply(conv, in.UserID, "Beleza, assunto novo! O que você quer fazer?")
	}

	snap := p.snapshots.Build(ctx, in.UserID)
	rctx := router.Context{Snapshot: snap}

	decision := router.Route(in.Text, rctx)
	if decision == nil {
		decision = p.llmRouter.Route(ctx, in.Text, rctx, history)
	}
	p.logger.Info("message routed",
		"conversation_id", conv.ID,
		"mode", decision.Mode,
		"intent", decision.Intent,
		"confidence", decision.Confidence,
		"direct", decision.DirectAction)

	if decision.DirectAction {
		if text, ok := p.directAction(decision, snap); ok {
			return p.reply(conv, in.UserID, text)
		}
		// Fall through to the worker when the fast path can't answer.
	}

	// Per-user settings (custom prompt, model, bot mode) shape the
	// worker turn; a failed lookup degrades to defaults.
	user, uerr := p.store.GetUser(in.UserID)
	if uerr != nil || user == nil {
		if uerr != nil {
			p.logger.Warn("user settings unavailable", "user_id", in.UserID, "error", uerr)
		}
		user = &store.User{ID: in.UserID}
	}

	rawContent, err := p.worker.Run(ctx, user, decision, in.Text, snap, history)
	if err != nil {
		return nil, fmt.Errorf("worker: %w", err)
	}

	out := worker.Validate(rawContent, decision)

	if decision.Intent == router.IntentListNormalization && out.Action != "" {
		if aerr := p.applyListAction(in.UserID, out); aerr != nil {
			p.logger.Error("list action failed", "action", out.Action, "error", aerr)
			out.Response = "Não consegui salvar sua lista agora. Pode tentar de novo?"
		}
	}

	return p.reply(conv, in.UserID, worker.Render(out))
}

// reply persists the outbound turn and wraps it in a Result. A failed
// write is logged but does not withhold the reply from the user.
func (p *Pipeline) reply(conv *store.Conversation, userID, text string) (*Result, error) {
	if _, _, err := p.store.InsertMessage(&store.Message{
		ConversationID: conv.ID,
		UserID:         userID,
		Role:           "assistant",
		Content:        text,
	}); err != nil {
		p.logger.Error("persist outbound failed", "conversation_id", conv.ID, "error", err)
	}
	return &Result{Reply: text}, nil
}

// history loads the conversation's recent turns as model messages.
// Tool turns are not persisted, so this is plain user/assistant text.
func (p *Pipeline) history(conversationID string) ([]llm.Message, error) {
	msgs, err := p.store.ConversationMessages(conversationID, historyLimit)
	if err != nil {
		return nil, err
	}
	history := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, llm.Message{Role: m.Role, Content: m.Content})
	}
	return history, nil
}

// directAction answers high-confidence queries straight from the
// snapshot, skipping the model entirely.
func (p *Pipeline) directAction(decision *router.Output, snap *snapshot.ActiveContext) (string, bool) {
	switch decision.Intent {
	case router.IntentAgendaCheck:
		return renderAgenda(snap), true
	case router.IntentListView:
		if snap.ActiveList == nil {
			return "Você não tem nenhuma lista ativa no momento.", true
		}
		return renderList(snap.ActiveList), true
	default:
		return "", false
	}
}

func renderAgenda(snap *snapshot.ActiveContext) string {
	if len(snap.UrgentReminders) == 0 && len(snap.TopTasks) == 0 {
		return "Sua agenda está livre por enquanto!"
	}

	var sb strings.Builder
	if len(snap.UrgentReminders) > 0 {
		sb.WriteString("Lembretes das próximas 24h:\n")
		for _, r := range snap.UrgentReminders {
			fmt.Fprintf(&sb, "• %s — %s\n", r.Title, r.DueAt.Format("02/01 15:04"))
		}
	}
	if len(snap.TopTasks) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("Tarefas abertas:\n")
		for _, t := range snap.TopTasks {
			fmt.Fprintf(&sb, "• %s\n", t.Title)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func renderList(list *snapshot.ActiveList) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s:\n", list.Name)
	for _, item := range list.Items {
		fmt.Fprintf(&sb, "• %s\n", strings.TrimPrefix(strings.TrimPrefix(item, "- [ ] "), "- [x] "))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// applyListAction persists a normalized list emitted by the worker.
// Normalization runs without tools, so the pipeline is the one writing
// the result.
func (p *Pipeline) applyListAction(userID string, out *worker.Output) error {
	items := itemsFromData(out.Data)
	if len(items) == 0 {
		return fmt.Errorf("normalized list has no items")
	}
	name := out.ListName
	if name == "" {
		name = "Lista"
	}

	switch out.Action {
	case "create_collection":
		coll, _, err := p.store.FindOrCreateCollection(userID, name)
		if err != nil {
			return err
		}
		for _, item := range items {
			if _, err := p.store.AddCollectionItem(coll.ID, item); err != nil {
				return err
			}
		}
		return nil
	case "create_checklist":
		_, err := p.store.CreateTask(userID, name, items, true)
		return err
	default:
		return fmt.Errorf("unknown list action %q", out.Action)
	}
}

// itemsFromData accepts both data shapes the validator admits.
func itemsFromData(data any) []string {
	list, ok := data.([]any)
	if !ok {
		return nil
	}
	var items []string
	for _, entry := range list {
		switch v := entry.(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				items = append(items, s)
			}
		case map[string]any:
			if content, ok := v["content"].(string); ok && strings.TrimSpace(content) != "" {
				items = append(items, strings.TrimSpace(content))
			}
		}
	}
	return items
}
