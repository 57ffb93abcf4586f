package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dvmoura/anota/internal/llm"
)

const routerInstruction = `Você é um classificador de mensagens. Classifique a mensagem do usuário em exatamente um modo:
- CAPTURE: o usuário quer registrar algo (item, lembrete, anotação)
- QUERY: o usuário quer consultar dados existentes (listas, tarefas, agenda)
- TRANSFORM: o usuário quer estruturar ou transformar dados (criar listas, agrupar, somar)
- CHAT: conversa geral, sem ação sobre dados
- WHATSAPP_SUMMARY: o usuário pede um resumo de conversas

Responda SOMENTE com JSON estrito:
{"mode": "...", "intent": "...", "confidence": 0.0}`

// LLMRouter is the fallback classifier, invoked only when the
// heuristic pass abstains. It always returns a usable Output.
type LLMRouter struct {
	client        llm.Client
	model         string
	fallbackModel string
	logger        *slog.Logger
}

func NewLLMRouter(logger *slog.Logger, client llm.Client, model, fallbackModel string) *LLMRouter {
	return &LLMRouter{
		client:        client,
		model:         model,
		fallbackModel: fallbackModel,
		logger:        logger.With("component", "llm_router"),
	}
}

// Route classifies the message via the provider. The fast model is
// tried first; on provider failure the same prompt is retried once
// against the fallback model. If both fail the decision degrades to
// CHAT rather than failing the turn.
func (r *LLMRouter) Route(ctx context.Context, text string, rctx Context, history []llm.Message) *Output {
	req := r.buildRequest(r.model, text, rctx, history)

	resp, err := r.client.Chat(ctx, req)
	if err != nil && r.fallbackModel != "" && r.fallbackModel != r.model {
		r.logger.Warn("router model failed, retrying with fallback",
			"model", r.model, "fallback", r.fallbackModel, "error", err)
		req.Model = r.fallbackModel
		resp, err = r.client.Chat(ctx, req)
	}
	if err != nil {
		r.logger.Error("llm routing failed, defaulting to chat", "error", err)
		return normalize(&Output{})
	}

	out, perr := parseOutput(resp.Message.Content)
	if perr != nil {
		r.logger.Warn("unparseable router response, defaulting to chat",
			"error", perr, "raw", resp.Message.Content)
		return normalize(&Output{})
	}

	out = normalize(out)
	r.logger.Debug("message routed",
		"mode", out.Mode, "intent", out.Intent, "confidence", out.Confidence)
	return out
}

func (r *LLMRouter) buildRequest(model, text string, rctx Context, history []llm.Message) *llm.Request {
	var sb strings.Builder
	sb.WriteString(routerInstruction)
	if rctx.Snapshot != nil {
		if snap, err := json.Marshal(rctx.Snapshot); err == nil {
			sb.WriteString("\n\nContexto ativo do usuário:\n")
			sb.Write(snap)
		}
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: sb.String()})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: "user", Content: text})

	return &llm.Request{
		Model:          model,
		Messages:       messages,
		ResponseFormat: "json_object",
	}
}

func parseOutput(raw string) (*Output, error) {
	raw = strings.TrimSpace(raw)
	// Models occasionally wrap JSON in a code fence despite the format
	// directive.
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var out Output
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &out); err != nil {
		return nil, fmt.Errorf("parse router output: %w", err)
	}
	return &out, nil
}

// normalize fills missing fields so callers never branch on absence.
func normalize(out *Output) *Output {
	switch out.Mode {
	case ModeCapture, ModeQuery, ModeTransform, ModeChat, ModeWhatsAppSummary:
	default:
		out.Mode = ModeChat
	}
	if out.Intent == "" {
		out.Intent = IntentGeneral
	}
	if out.Confidence <= 0 || out.Confidence > 1 {
		out.Confidence = 0.5
	}
	return out
}
