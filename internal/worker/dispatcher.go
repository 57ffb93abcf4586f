// Package worker runs the per-turn LLM loop: mode-specific instruction
// assembly, bounded tool calling, output validation, and rendering.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dvmoura/anota/internal/llm"
	"github.com/dvmoura/anota/internal/router"
	"github.com/dvmoura/anota/internal/snapshot"
	"github.com/dvmoura/anota/internal/store"
	"github.com/dvmoura/anota/internal/tools"
)

// maxToolRounds bounds the tool-calling loop. Exceeding it forces
// termination with whatever content the model last produced.
const maxToolRounds = 5

// Dispatcher assembles the worker prompt and drives the provider loop.
type Dispatcher struct {
	client   llm.Client
	registry *tools.Registry
	model    string
	logger   *slog.Logger
}

func NewDispatcher(logger *slog.Logger, client llm.Client, registry *tools.Registry, model string) *Dispatcher {
	return &Dispatcher{
		client:   client,
		registry: registry,
		model:    model,
		logger:   logger.With("component", "worker"),
	}
}

// Run executes one worker turn and returns the model's final raw
// content. Provider failures are returned as-is: a partially applied
// tool sequence must not be silently retried against another model, so
// unlike the router there is no fallback here.
//
// user carries per-user settings: a custom system prompt and bot mode
// extend the instruction block, and a model preference overrides the
// configured worker model. user must be non-nil with at least ID set.
func (d *Dispatcher) Run(ctx context.Context, user *store.User, route *router.Output, text string, snap *snapshot.ActiveContext, history []llm.Message) (string, error) {
	instruction := d.buildInstruction(route, snap, user)
	toolSpecs := d.toolsForMode(route)

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: instruction})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: "user", Content: text})

	model := d.model
	if user.Model != "" {
		model = user.Model
	}

	req := &llm.Request{
		Model:    model,
		Messages: messages,
		Tools:    toolSpecs,
	}
	if wantsJSON(route) {
		req.ResponseFormat = "json_object"
	}

	var content string
	for round := 0; round < maxToolRounds; round++ {
		resp, err := d.client.Chat(ctx, req)
		if err != nil {
			return "", fmt.Errorf("worker provider call: %w", err)
		}
		content = resp.Message.Content

		if len(resp.Message.ToolCalls) == 0 {
			return content, nil
		}

		d.logger.Debug("tool round",
			"round", round+1, "calls", len(resp.Message.ToolCalls), "mode", route.Mode)

		req.Messages = append(req.Messages, resp.Message)
		for _, call := range resp.Message.ToolCalls {
			result := d.registry.Execute(ctx, user.ID, call.Function.Name, call.Function.Arguments)
			req.Messages = append(req.Messages, llm.Message{
				Role:       "tool",
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}

	d.logger.Warn("tool loop cap reached, returning partial content",
		"user_id", user.ID, "mode", route.Mode)
	return content, nil
}

func wantsJSON(route *router.Output) bool {
	switch route.Mode {
	case router.ModeQuery, router.ModeTransform:
		return true
	default:
		return false
	}
}

// toolsForMode selects the tool subset the model may call.
func (d *Dispatcher) toolsForMode(route *router.Output) []map[string]any {
	switch route.Mode {
	case router.ModeChat:
		// Read-only plus memory capture; chat must not mutate lists.
		names := append(d.registry.ReadOnlyNames(), "save_memory")
		return d.registry.Specs(names...)
	case router.ModeQuery, router.ModeWhatsAppSummary:
		return d.registry.Specs(d.registry.ReadOnlyNames()...)
	case router.ModeCapture:
		return d.registry.Specs(d.registry.AllNames()...)
	case router.ModeTransform:
		// Normalization emits structured output directly; tools would
		// only add nondeterminism.
		return nil
	default:
		return nil
	}
}

const sharedConstraints = `Regras gerais:
- Responda sempre em português brasileiro, em tom direto e amigável.
- Agora são %s. Resolva expressões de tempo relativas (amanhã, daqui a 2 horas) para horários absolutos a partir desse instante.
- Você só age em nome do próprio usuário; nunca invente dados que não vieram do usuário ou das ferramentas.`

func (d *Dispatcher) buildInstruction(route *router.Output, snap *snapshot.ActiveContext, user *store.User) string {
	var sb strings.Builder

	switch {
	case route.Mode == router.ModeTransform && route.Intent == router.IntentListNormalization:
		sb.WriteString(listNormalizationInstruction)
	case route.Mode == router.ModeTransform:
		sb.WriteString(transformInstruction)
	case route.Mode == router.ModeQuery:
		sb.WriteString(queryInstruction)
	case route.Mode == router.ModeCapture:
		sb.WriteString(captureInstruction)
	case route.Mode == router.ModeWhatsAppSummary:
		sb.WriteString(summaryInstruction)
	default:
		sb.WriteString(chatInstruction)
	}

	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, sharedConstraints, time.Now().Format("Monday, 2006-01-02 15:04 (MST)"))

	if user.BotMode == "quiet" {
		sb.WriteString("\n- Modo silencioso: confirme em no máximo uma frase curta, sem emojis.")
	}
	if user.SystemPrompt != "" {
		sb.WriteString("\n\nInstruções adicionais do usuário:\n")
		sb.WriteString(user.SystemPrompt)
	}

	if snap != nil {
		if data, err := json.Marshal(snap); err == nil {
			sb.WriteString("\n\nContexto ativo do usuário:\n")
			sb.Write(data)
			if route.Mode == router.ModeTransform && route.Intent == router.IntentListNormalization {
				sb.WriteString("\n" + contextIsolationRule)
			}
		}
	}

	return sb.String()
}

const chatInstruction = `Você é a Anota, uma assistente pessoal por mensagens. Converse naturalmente.
Se o usuário mencionar um fato durável sobre si (preferências, datas, pessoas), salve com save_memory.
Nunca emita JSON ou estruturas de dados fora de uma chamada de ferramenta.`

const queryInstruction = `Você é a Anota. O usuário quer consultar os dados dele.
Use as ferramentas de leitura para buscar; responda APENAS com base nos resultados das ferramentas, nunca invente dados.
Responda com JSON estrito: {"response": "texto para o usuário", "data": <dados consultados ou null>}`

const captureInstruction = `Você é a Anota. O usuário quer registrar algo (item, lembrete ou anotação).
Antes de gravar um item, verifique se ele pertence semanticamente à lista ativa do contexto:
- Pertence: adicione à lista ativa.
- Não pertence: crie ou selecione uma lista mais adequada.
- Ambíguo: pergunte ao usuário em vez de adivinhar.
Respeite o tipo da lista ativa: um checklist é atualizado via manage_tasks (itens endereçados pelo texto), uma coleção via manage_collections.
Depois das ferramentas, responda com JSON estrito: {"response": "confirmação curta para o usuário", "data": null}`

const transformInstruction = `Você é a Anota. Transforme os dados do usuário conforme pedido (agrupar, somar, converter).
Campos ausentes devem ser null, nunca inventados.
Responda com JSON estrito: {"response": "texto para o usuário", "data": <resultado estruturado>, "constraints": {"data_only": true} quando o usuário pedir só os dados}`

const summaryInstruction = `Você é a Anota. Resuma as conversas solicitadas de forma compacta: decisões, pendências e datas.
Use as ferramentas de leitura para buscar o histórico.
Responda com JSON estrito: {"response": "resumo para o usuário", "data": null}`

const listNormalizationInstruction = `Você é a Anota. O usuário está ditando uma lista. Extraia SOMENTE os itens presentes no texto; nunca invente sub-itens.
Decida o tipo da lista pela permanência do assunto:
- Assunto durável (compras recorrentes, leituras, projetos) → "collection"
- Uso único e efêmero (mercado de hoje, mala de viagem) → "checklist"
Responda com JSON estrito:
{"action": "create_collection" ou "create_checklist", "list_name": "nome curto", "data": ["item 1", "item 2"], "response": "confirmação para o usuário"}`

const contextIsolationRule = `Use o contexto ativo acima SOMENTE para detectar conflitos (ex.: lista com o mesmo nome já existe). NÃO use o contexto para escolher o nome ou o destino da nova lista, a menos que o texto do usuário cite esse contexto explicitamente.`
