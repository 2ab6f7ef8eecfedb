package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"

	"adpulse/internal/store"
	"adpulse/pkg/llm"
	"adpulse/pkg/logging"
)

const (
	// Bounds the model's tool-call recursion within one turn.
	defaultMaxToolRounds = 5
	// Tool calls in one batch run concurrently up to this limit.
	defaultToolConcurrency = 3
	// Final answers shorter than this trigger the fallback chain when a
	// tool also came back empty or failed.
	minAnswerChars = 20
)

// threadStore is the slice of the store the orchestrator persists through.
type threadStore interface {
	titleStore
	CreateThread(ctx context.Context, orgID, userID, externalRef string) (store.Thread, error)
	GetThread(ctx context.Context, orgID, threadID string) (store.Thread, error)
	GetThreadMessages(ctx context.Context, orgID, threadID string, limit int) ([]store.ThreadMessage, error)
	AddThreadMessage(ctx context.Context, orgID, threadID, role, content string, toolCalls json.RawMessage) (string, error)
	TouchThread(ctx context.Context, orgID, threadID string, newMessages int) error
}

// ToolCallLog is one audit entry persisted with the assistant message.
type ToolCallLog struct {
	Name          string `json:"name"`
	Args          string `json:"args"`
	ResultPreview string `json:"result_preview"`
}

// TurnRequest is one inbound user turn.
type TurnRequest struct {
	OrgID    string
	UserID   string
	ThreadID string
	Message  string
}

type OrchestratorConfig struct {
	Provider        llm.Provider
	Dispatcher      *Dispatcher
	Threads         threadStore
	Enricher        *Enricher
	Fallbacks       *FallbackChain
	Titler          *Titler
	Logger          logging.Logger
	MaxRounds       int
	ToolConcurrency int
}

// Orchestrator drives one streaming conversation turn: enrichment, the
// model stream, mid-stream tool batches, the fallback chain and turn
// persistence.
type Orchestrator struct {
	provider        llm.Provider
	dispatcher      *Dispatcher
	threads         threadStore
	enricher        *Enricher
	fallbacks       *FallbackChain
	titler          *Titler
	logger          logging.Logger
	tools           []llm.Tool
	maxRounds       int
	toolConcurrency int
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	maxRounds := cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = defaultMaxToolRounds
	}
	concurrency := cfg.ToolConcurrency
	if concurrency <= 0 {
		concurrency = defaultToolConcurrency
	}
	var tools []llm.Tool
	if cfg.Dispatcher != nil {
		tools = cfg.Dispatcher.Tools()
	}
	return &Orchestrator{
		provider:        cfg.Provider,
		dispatcher:      cfg.Dispatcher,
		threads:         cfg.Threads,
		enricher:        cfg.Enricher,
		fallbacks:       cfg.Fallbacks,
		titler:          cfg.Titler,
		logger:          cfg.Logger,
		tools:           tools,
		maxRounds:       maxRounds,
		toolConcurrency: concurrency,
	}
}

// SendMessage runs one turn and writes events to the sink. A sink failure
// (caller disconnect) stops forwarding only: in-flight tools finish and
// the accumulated text is persisted as on a normal completion.
func (o *Orchestrator) SendMessage(ctx context.Context, req TurnRequest, sink EventSink) error {
	if o == nil || o.provider == nil {
		return errors.New("llm provider is required")
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return errors.New("message is required")
	}

	out := &guardedSink{sink: sink}
	// Tool execution and persistence outlive a caller disconnect.
	detached := context.WithoutCancel(ctx)

	thread, firstTurn, err := o.resolveThread(ctx, req, out)
	if err != nil {
		turnsTotal.WithLabelValues("error").Inc()
		out.send(Event{Type: EventError, Content: "conversation unavailable"})
		return err
	}

	history, err := o.threads.GetThreadMessages(ctx, req.OrgID, thread.ID, 20)
	if err != nil {
		turnsTotal.WithLabelValues("error").Inc()
		out.send(Event{Type: EventError, Content: "failed to load conversation history"})
		return err
	}

	// The original message is the persisted user turn; enrichment only
	// rewrites what the model sees.
	if _, err := o.threads.AddThreadMessage(ctx, req.OrgID, thread.ID, "user", req.Message, nil); err != nil {
		turnsTotal.WithLabelValues("error").Inc()
		out.send(Event{Type: EventError, Content: "failed to persist message"})
		return err
	}

	prompt := req.Message
	if o.enricher != nil {
		prompt = o.enricher.Enrich(ctx, req.OrgID, req.Message)
	}
	messages := buildPromptMessages(history, prompt)

	var response strings.Builder
	var auditLog []ToolCallLog
	sawToolProblem := false
	var streamErr error

rounds:
	for round := 0; round < o.maxRounds; round++ {
		stream, err := o.provider.Complete(ctx, messages, o.tools)
		if err != nil {
			streamErr = err
			break
		}

		var pending []llm.ToolCall
		for {
			chunk, err := stream.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				_ = stream.Close()
				streamErr = err
				break rounds
			}
			if chunk.Content != "" {
				response.WriteString(chunk.Content)
				out.send(Event{Type: EventTextDelta, Content: chunk.Content})
			}
			if len(chunk.ToolCalls) > 0 {
				pending = mergeToolCalls(pending, chunk.ToolCalls)
			}
		}
		_ = stream.Close()

		if len(pending) == 0 {
			break
		}

		results := o.executeBatch(detached, req.OrgID, pending, out)
		for i, call := range pending {
			out.send(Event{Type: EventToolResult, ToolName: call.Name})
			if results[i] == "" || isErrorPayload(results[i]) {
				sawToolProblem = true
			}
			messages = append(messages, llm.Message{
				Role:       "tool",
				Content:    results[i],
				Name:       call.Name,
				ToolCallID: call.ID,
			})
			auditLog = append(auditLog, ToolCallLog{
				Name:          call.Name,
				Args:          call.Arguments,
				ResultPreview: resultPreview(results[i]),
			})
		}
	}

	final := strings.TrimSpace(response.String())

	if streamErr == nil && len(final) < minAnswerChars && sawToolProblem && o.fallbacks != nil {
		if answer := o.fallbacks.Answer(detached, req.OrgID, req.Message); answer != "" {
			final = answer
			out.send(Event{Type: EventTextDelta, Content: answer})
		}
	}

	newMessages := 1
	if final != "" {
		var logJSON json.RawMessage
		if len(auditLog) > 0 {
			logJSON, _ = json.Marshal(auditLog)
		}
		if _, err := o.threads.AddThreadMessage(detached, req.OrgID, thread.ID, "assistant", final, logJSON); err != nil {
			// The caller already has the text; losing the record must not
			// retract the answer.
			o.logger.WithError(err).WithField("thread_id", thread.ID).Error("Failed to persist assistant message")
		} else {
			newMessages = 2
		}
	}
	if err := o.threads.TouchThread(detached, req.OrgID, thread.ID, newMessages); err != nil {
		o.logger.WithError(err).WithField("thread_id", thread.ID).Warn("Failed to update thread metadata")
	}

	if streamErr != nil {
		o.logger.WithError(streamErr).WithField("thread_id", thread.ID).Warn("Model stream failed")
		turnsTotal.WithLabelValues("error").Inc()
		out.send(Event{Type: EventError, Content: "the model stream failed"})
		return nil
	}

	if firstTurn && final != "" && o.titler != nil {
		o.titler.GenerateAsync(req.OrgID, thread.ID, req.Message)
	}

	turnsTotal.WithLabelValues("ok").Inc()
	out.send(Event{Type: EventDone, ThreadID: thread.ID})
	return nil
}

// resolveThread loads an existing thread or creates one, establishing the
// external model thread ref exactly once.
func (o *Orchestrator) resolveThread(ctx context.Context, req TurnRequest, out *guardedSink) (store.Thread, bool, error) {
	if req.ThreadID != "" {
		thread, err := o.threads.GetThread(ctx, req.OrgID, req.ThreadID)
		if err != nil {
			return store.Thread{}, false, fmt.Errorf("resolve thread: %w", err)
		}
		return thread, thread.MessageCount == 0, nil
	}

	externalRef := ""
	if creator, ok := o.provider.(llm.ThreadCreator); ok {
		ref, err := creator.CreateThread(ctx)
		if err != nil {
			o.logger.WithError(err).Warn("Remote thread creation failed, using local ref")
		} else {
			externalRef = ref
		}
	}
	if externalRef == "" {
		externalRef = "local-" + uuid.NewString()
	}

	thread, err := o.threads.CreateThread(ctx, req.OrgID, req.UserID, externalRef)
	if err != nil {
		return store.Thread{}, false, fmt.Errorf("create thread: %w", err)
	}
	out.send(Event{Type: EventThreadCreated, ThreadID: thread.ID})
	return thread, true, nil
}

// executeBatch runs one batch of tool calls concurrently. Results land at
// the call's original position so submission order matches request order,
// and every call gets exactly one result.
func (o *Orchestrator) executeBatch(ctx context.Context, orgID string, calls []llm.ToolCall, out *guardedSink) []string {
	for _, call := range calls {
		event := Event{Type: EventToolCall, ToolName: call.Name}
		if json.Valid([]byte(call.Arguments)) {
			event.ToolArgs = json.RawMessage(call.Arguments)
		}
		out.send(event)
	}

	results := make([]string, len(calls))
	sem := make(chan struct{}, o.toolConcurrency)
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call llm.ToolCall) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = o.dispatcher.Execute(ctx, orgID, call)
		}(i, call)
	}
	wg.Wait()
	return results
}

func buildPromptMessages(history []store.ThreadMessage, userMessage string) []llm.Message {
	messages := []llm.Message{{Role: "system", Content: SystemPrompt}}
	for _, msg := range history {
		if msg.Role == "" || msg.Content == "" {
			continue
		}
		messages = append(messages, llm.Message{Role: msg.Role, Content: msg.Content})
	}
	return append(messages, llm.Message{Role: "user", Content: userMessage})
}

// mergeToolCalls collects tool calls across streaming chunks. Providers
// emit the full argument string accumulated so far under a stable call ID,
// so a repeated ID replaces the earlier arguments; new IDs are appended.
func mergeToolCalls(existing, incoming []llm.ToolCall) []llm.ToolCall {
	for _, inc := range incoming {
		found := false
		for i, ex := range existing {
			if ex.ID != "" && ex.ID == inc.ID {
				existing[i].Arguments = inc.Arguments
				if inc.Name != "" {
					existing[i].Name = inc.Name
				}
				found = true
				break
			}
		}
		if !found {
			existing = append(existing, inc)
		}
	}
	return existing
}

func isErrorPayload(result string) bool {
	var parsed struct {
		Error string `json:"error"`
	}
	return json.Unmarshal([]byte(result), &parsed) == nil && parsed.Error != ""
}

func resultPreview(result string) string {
	if len(result) > 200 {
		return result[:200]
	}
	return result
}

// guardedSink drops events after the first send failure so a caller
// disconnect stops forwarding without aborting the turn.
type guardedSink struct {
	sink    EventSink
	dropped bool
}

func (g *guardedSink) send(event Event) {
	if g.sink == nil || g.dropped {
		return
	}
	if err := g.sink.Send(event); err != nil {
		g.dropped = true
	}
}
