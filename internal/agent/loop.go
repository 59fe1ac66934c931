package agent

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/nomadai/concierge/internal/errors"
	"github.com/nomadai/concierge/internal/llmtypes"
	"github.com/nomadai/concierge/internal/logging"
	"github.com/nomadai/concierge/internal/metrics"
	"github.com/nomadai/concierge/internal/tools"
	"github.com/nomadai/concierge/internal/worker_pool"
)

// loopOutput is what one run of the reasoning loop produced
type loopOutput struct {
	history    []llmtypes.Message
	answer     string
	iterations int
	toolCalls  int
	exhausted  bool
}

// run alternates model calls and tool dispatch until the model answers
// in plain text or the iteration ceiling is reached
func (a *Agent) run(ctx context.Context, sessionID, language string, history []llmtypes.Message) (loopOutput, error) {
	out := loopOutput{history: history}

	prompt := a.basePrompt
	if language != "" {
		rendered, err := a.systemPrompt(language)
		if err != nil {
			a.logger.Warn("Failed to render localized system prompt",
				logging.String("language", language),
				logging.Error(err))
		} else {
			prompt = rendered
		}
	}

	var lastText string
	for out.iterations < a.cfg.MaxIterations {
		out.iterations++
		iteration := out.iterations

		a.logger.Debug("Calling LLM",
			logging.String("session_id", sessionID),
			logging.Int("iteration", iteration),
			logging.Int("messages", len(out.history)))

		resp, err := a.llm.GenerateCompletion(ctx, llmtypes.CompletionRequest{
			SystemPrompt: prompt,
			Messages:     out.history,
			Tools:        a.catalog,
			MaxTokens:    a.cfg.MaxTokens,
			Temperature:  a.cfg.Temperature,
		})
		if err != nil {
			a.logger.Error("LLM call failed",
				logging.String("session_id", sessionID),
				logging.Int("iteration", iteration),
				logging.Error(err))
			return out, err
		}

		a.logger.Debug("LLM response received",
			logging.Int("iteration", iteration),
			logging.Int("tool_calls", len(resp.ToolCalls)),
			logging.Int("content_length", len(resp.Content)))

		if !resp.HasToolCalls() {
			answer := strings.TrimSpace(resp.Content)
			if answer == "" {
				// An empty final message is treated like an exhausted loop.
				break
			}
			out.answer = answer
			out.history = append(out.history, llmtypes.Message{Role: llmtypes.RoleAssistant, Content: answer})
			return out, nil
		}

		calls := assignCallIDs(resp.ToolCalls, iteration)
		assistant := resp.AsMessage()
		assistant.ToolCalls = calls
		out.history = append(out.history, assistant)
		if text := strings.TrimSpace(resp.Content); text != "" {
			lastText = text
		}

		for i, result := range a.dispatchAll(ctx, sessionID, calls) {
			out.history = append(out.history, llmtypes.Message{
				Role:       llmtypes.RoleToolResult,
				Content:    result,
				ToolCallID: calls[i].ID,
			})
		}
		out.toolCalls += len(calls)
	}

	out.exhausted = true
	out.answer = lastText
	if out.answer == "" {
		out.answer = a.fallback()
	}
	a.logger.Warn("Agent loop ended without a final answer",
		logging.String("session_id", sessionID),
		logging.Int("iterations", out.iterations),
		logging.Int("tool_calls", out.toolCalls))
	out.history = append(out.history, llmtypes.Message{Role: llmtypes.RoleAssistant, Content: out.answer})
	return out, nil
}

// assignCallIDs fills in missing call ids so every tool_result can be
// correlated, including across iterations
func assignCallIDs(calls []llmtypes.ToolCall, iteration int) []llmtypes.ToolCall {
	out := make([]llmtypes.ToolCall, len(calls))
	seen := make(map[string]bool, len(calls))
	for i, call := range calls {
		if call.ID == "" || seen[call.ID] {
			call.ID = fmt.Sprintf("call_%d_%d", iteration, i)
		}
		seen[call.ID] = true
		out[i] = call
	}
	return out
}

// dispatchAll runs a batch of tool calls and returns one result string per
// call, in request order. Batches run in parallel only when enabled and
// every tool in the batch is marked concurrency safe.
func (a *Agent) dispatchAll(ctx context.Context, sessionID string, calls []llmtypes.ToolCall) []string {
	if a.cfg.ParallelTools && len(calls) > 1 && a.batchIsConcurrent(calls) {
		tasks := make([]worker_pool.Task[string], len(calls))
		for i, call := range calls {
			call := call
			tasks[i] = func(ctx context.Context) (string, error) {
				return a.dispatch(ctx, sessionID, call), nil
			}
		}
		results := worker_pool.Run(ctx, a.pool, tasks)
		out := make([]string, len(results))
		for i, r := range results {
			if r.Error != nil {
				out[i] = "Error: " + r.Error.Error()
				continue
			}
			out[i] = r.Value
		}
		return out
	}

	out := make([]string, len(calls))
	for i, call := range calls {
		out[i] = a.dispatch(ctx, sessionID, call)
	}
	return out
}

func (a *Agent) batchIsConcurrent(calls []llmtypes.ToolCall) bool {
	for _, call := range calls {
		tool, ok := a.tools.Get(call.Name)
		if !ok || !tools.IsConcurrencySafe(tool) {
			return false
		}
	}
	return true
}

// dispatch invokes one tool. Failures are logged in full and reported to
// the model as a short error string.
func (a *Agent) dispatch(ctx context.Context, sessionID string, call llmtypes.ToolCall) string {
	a.logger.Debug("Executing tool",
		logging.String("tool", call.Name),
		logging.String("call_id", call.ID))

	start := a.now()
	result, err := a.tools.Dispatch(ctx, call.Name, call.Arguments)
	latency := a.now().Sub(start)

	outcome := metrics.OutcomeOK
	fields := map[string]interface{}{"tool": call.Name, "call_id": call.ID}
	if err != nil {
		kind := apperrors.KindOf(err)
		outcome = metrics.OutcomeError
		fields["error_kind"] = kind.String()
		a.metrics.RecordError(kind.String())
		a.logger.Warn("Tool call failed",
			logging.String("session_id", sessionID),
			logging.String("tool", call.Name),
			logging.Error(err))
		result = a.toolErrorText(err)
	}
	a.metrics.Emit(metrics.Event{
		Name:      "tool_dispatched",
		SessionID: sessionID,
		Latency:   latency,
		Outcome:   outcome,
		Fields:    fields,
	})
	return result
}

// toolErrorText is the failure string shown to the model
func (a *Agent) toolErrorText(err error) string {
	if apperrors.Is(err, apperrors.KindUnknownTool) {
		names := make([]string, len(a.catalog))
		for i, def := range a.catalog {
			names[i] = def.Name
		}
		return fmt.Sprintf("Error: %s. Available tools: %s", err.Error(), strings.Join(names, ", "))
	}
	return "Error: " + firstLine(err.Error())
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return tools.TruncateString(s, 300)
}
