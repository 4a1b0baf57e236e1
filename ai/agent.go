// Package ai implements the AI action's dispatcher (spec component C11's
// AIDispatcher dependency): a single-turn chat call against a provider
// ChatModel, with per-call cost and token accounting. Grounded on the
// teacher's graph/model (now ai/model) ChatModel adapters and graph/cost.go
// CostTracker, generalized from a graph node's model call to a workflow AI
// action's call.
package ai

import (
	"context"
	"fmt"

	"github.com/certo-ventures/loom/ai/model"
	"github.com/certo-ventures/loom/workflow/executor"
)

// MetricsRecorder receives per-call cost and token counts, satisfied by
// *metrics.Metrics.
type MetricsRecorder interface {
	RecordAICost(modelName string, costUSD float64, inputTokens, outputTokens int)
}

// ModelResolver returns the ChatModel a workflow AI action should use for
// the requested model name, e.g. dispatching "gpt-4o" to the openai
// adapter and "claude-3-5-sonnet-20241022" to the anthropic adapter.
type ModelResolver func(modelName string) (model.ChatModel, error)

// Agent implements workflow/executor.AIDispatcher: it resolves the
// requested model, issues a single-turn chat call, and records cost.
type Agent struct {
	Resolve ModelResolver
	Cost    *CostTracker
	Metrics MetricsRecorder
}

// NewAgent builds an Agent around resolve, tracking cost with its own
// CostTracker in currency "USD" unless metrics is non-nil, in which case
// recorded cost is also forwarded there.
func NewAgent(resolve ModelResolver, metricsRecorder MetricsRecorder) *Agent {
	return &Agent{
		Resolve: resolve,
		Cost:    NewCostTracker("USD"),
		Metrics: metricsRecorder,
	}
}

// DispatchAI implements workflow/executor.AIDispatcher. It sends message
// (with systemPrompt, if any, as a preceding system message) to the named
// model and returns a map with "text" and "toolCalls" for the executor's
// expression evaluator to index into via @actions('name').text.
func (a *Agent) DispatchAI(ctx context.Context, message, systemPrompt, modelName string, temperature float64) (any, error) {
	chatModel, err := a.Resolve(modelName)
	if err != nil {
		return nil, fmt.Errorf("ai: resolve model %q: %w", modelName, err)
	}

	var messages []model.Message
	if systemPrompt != "" {
		messages = append(messages, model.Message{Role: model.RoleSystem, Content: systemPrompt})
	}
	messages = append(messages, model.Message{Role: model.RoleUser, Content: message})

	out, err := chatModel.Chat(ctx, messages, nil)
	if err != nil {
		return nil, fmt.Errorf("ai: chat %q: %w", modelName, err)
	}

	cost := a.Cost.Record(modelName, out.Usage.InputTokens, out.Usage.OutputTokens, executor.InstanceIDFromContext(ctx), executor.ActionNameFromContext(ctx))
	if a.Metrics != nil {
		a.Metrics.RecordAICost(modelName, cost, out.Usage.InputTokens, out.Usage.OutputTokens)
	}

	result := map[string]any{
		"text": out.Text,
	}
	if len(out.ToolCalls) > 0 {
		calls := make([]map[string]any, len(out.ToolCalls))
		for i, tc := range out.ToolCalls {
			calls[i] = map[string]any{"name": tc.Name, "input": tc.Input}
		}
		result["toolCalls"] = calls
	}
	return result, nil
}

// ResolveByProvider returns a ModelResolver that dispatches to one of the
// given ChatModel instances keyed by exact model name, erroring on an
// unregistered name. Grounded on the teacher's pattern of a provider-keyed
// map of adapters (graph/model's per-provider constructors).
func ResolveByProvider(models map[string]model.ChatModel) ModelResolver {
	return func(modelName string) (model.ChatModel, error) {
		m, ok := models[modelName]
		if !ok {
			return nil, fmt.Errorf("ai: no model registered for %q", modelName)
		}
		return m, nil
	}
}
