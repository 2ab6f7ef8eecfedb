package llm

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"strings"
)

type Provider interface {
	Complete(ctx context.Context, messages []Message, tools []Tool) (Stream, error)
}

type Stream interface {
	Recv() (Chunk, error)
	Close() error
}

// Chunk is one frame of a streaming completion. Content carries a text
// delta; ToolCalls carry the requested tool invocations as known so far.
type Chunk struct {
	Content   string
	ToolCalls []ToolCall
}

type Message struct {
	Role       string `json:"role"`
	Content    string `json:"content"`
	Name       string `json:"name,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
}

type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// ToolCall is one tool invocation requested by the model. A call split
// across frames keeps the same ID, and Arguments always carry the full
// argument string accumulated so far; consumers keep the latest frame per
// ID rather than concatenating.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// sseReader reads server-sent events off a response body and hands each
// data payload to a provider-specific decoder. Frames that decode to
// neither content nor tool calls are skipped.
type sseReader struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	decode  func([]byte) (Chunk, error)
}

func newSSEReader(resp *http.Response, decode func([]byte) (Chunk, error)) *sseReader {
	scanner := bufio.NewScanner(resp.Body)
	// Tool schemas and long text deltas can push events past the default
	// scanner limit.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &sseReader{body: resp.Body, scanner: scanner, decode: decode}
}

func (s *sseReader) Close() error {
	return s.body.Close()
}

func (s *sseReader) Recv() (Chunk, error) {
	for {
		data, err := s.next()
		if err != nil {
			return Chunk{}, err
		}
		payload := strings.TrimSpace(string(data))
		if payload == "" {
			continue
		}
		if payload == "[DONE]" {
			return Chunk{}, io.EOF
		}
		chunk, err := s.decode(data)
		if err != nil {
			return Chunk{}, err
		}
		if chunk.Content == "" && len(chunk.ToolCalls) == 0 {
			continue
		}
		return chunk, nil
	}
}

// next returns the data payload of the following event. A blank line ends
// an event; multiple data fields within one event join with newlines.
func (s *sseReader) next() ([]byte, error) {
	var dataLines []string
	for s.scanner.Scan() {
		line := strings.TrimRight(s.scanner.Text(), "\r")
		if line == "" {
			if len(dataLines) > 0 {
				return []byte(strings.Join(dataLines, "\n")), nil
			}
			continue
		}
		if strings.HasPrefix(line, "data:") {
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	if len(dataLines) > 0 {
		return []byte(strings.Join(dataLines, "\n")), nil
	}
	return nil, io.EOF
}
