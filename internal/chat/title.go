package chat

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"adpulse/pkg/llm"
	"adpulse/pkg/logging"
)

const titlePrompt = `Produce a short conversation title (3 to 5 words) from the user's first message.
Respond with a JSON object: {"title": "<title>"}.`

type titleStore interface {
	SetThreadTitle(ctx context.Context, orgID, threadID, title string) error
}

// Titler names a thread after its first completed turn. Generation runs
// asynchronously and never blocks or fails a response.
type Titler struct {
	structured llm.StructuredProvider
	threads    titleStore
	logger     logging.Logger
	timeout    time.Duration
}

func NewTitler(structured llm.StructuredProvider, threads titleStore, logger logging.Logger) *Titler {
	return &Titler{structured: structured, threads: threads, logger: logger, timeout: 15 * time.Second}
}

// GenerateAsync fires title generation in the background.
func (t *Titler) GenerateAsync(orgID, threadID, firstMessage string) {
	if t == nil || t.structured == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()
		if err := t.generate(ctx, orgID, threadID, firstMessage); err != nil && t.logger != nil {
			t.logger.WithError(err).WithField("thread_id", threadID).Warn("Thread title generation failed")
		}
	}()
}

func (t *Titler) generate(ctx context.Context, orgID, threadID, firstMessage string) error {
	if len(firstMessage) > 200 {
		firstMessage = firstMessage[:200]
	}
	raw, err := t.structured.CompleteStructured(ctx, []llm.Message{
		{Role: "system", Content: titlePrompt},
		{Role: "user", Content: firstMessage},
	})
	if err != nil {
		return err
	}
	var parsed struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return err
	}
	title := strings.Trim(strings.TrimSpace(parsed.Title), `"`)
	if title == "" {
		return nil
	}
	return t.threads.SetThreadTitle(ctx, orgID, threadID, title)
}
