package chat

import "encoding/json"

// Event types emitted on the NDJSON stream, in the order a caller can
// expect them: thread_created (new threads only), interleaved text_delta /
// tool_call / tool_result, then exactly one error or done.
const (
	EventThreadCreated = "thread_created"
	EventTextDelta     = "text_delta"
	EventToolCall      = "tool_call"
	EventToolResult    = "tool_result"
	EventError         = "error"
	EventDone          = "done"
)

// Event is one frame of the conversation stream.
type Event struct {
	Type     string          `json:"type"`
	Content  string          `json:"content,omitempty"`
	ToolName string          `json:"tool_name,omitempty"`
	ToolArgs json.RawMessage `json:"tool_args,omitempty"`
	ThreadID string          `json:"thread_id,omitempty"`
}

// EventSink receives events as they are produced. A Send error means the
// caller is gone; the orchestrator stops forwarding but finishes the turn.
type EventSink interface {
	Send(event Event) error
}
