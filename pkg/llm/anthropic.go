package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultAnthropicURL       = "https://api.anthropic.com"
	defaultAnthropicMaxTokens = 4096
	anthropicVersion          = "2023-06-01"
)

// AnthropicProvider speaks the Anthropic Messages API. Streamed tool inputs
// arrive as partial JSON fragments per content block; the stream reassembles
// them before handing frames to the caller.
type AnthropicProvider struct {
	client    *http.Client
	apiKey    string
	apiURL    string
	model     string
	maxTokens int
}

func NewAnthropicProvider(cfg Config) *AnthropicProvider {
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = defaultAnthropicURL
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	return &AnthropicProvider{
		client:    &http.Client{Timeout: 60 * time.Second},
		apiKey:    cfg.APIKey,
		apiURL:    apiURL,
		model:     cfg.Model,
		maxTokens: maxTokens,
	}
}

func (p *AnthropicProvider) Complete(ctx context.Context, messages []Message, tools []Tool) (Stream, error) {
	if p.model == "" {
		return nil, errors.New("anthropic model is required")
	}
	reqBody := p.newRequest(messages, true)
	if len(tools) > 0 {
		reqBody.Tools = make([]anthropicTool, 0, len(tools))
		for _, tool := range tools {
			reqBody.Tools = append(reqBody.Tools, anthropicTool{
				Name:        tool.Name,
				Description: tool.Description,
				InputSchema: tool.Parameters,
			})
		}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("anthropic: marshal request: %w", err)
	}
	resp, err := p.post(ctx, payload)
	if err != nil {
		return nil, err
	}
	return newAnthropicStream(resp), nil
}

// newRequest maps the provider-neutral history onto the Messages API shape.
func (p *AnthropicProvider) newRequest(messages []Message, stream bool) anthropicRequest {
	req := anthropicRequest{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		Stream:    stream,
	}
	req.Messages, req.System = splitAnthropicMessages(messages)
	return req
}

// post sends the payload to /v1/messages with retries and fails on any
// non-2xx status.
func (p *AnthropicProvider) post(ctx context.Context, payload []byte) (*http.Response, error) {
	resp, err := doWithRetry(ctx, p.client, func() (*http.Request, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL+"/v1/messages", bytes.NewReader(payload))
		if reqErr != nil {
			return nil, fmt.Errorf("anthropic: create request: %w", reqErr)
		}
		req.Header.Set("Content-Type", "application/json")
		if p.apiKey != "" {
			req.Header.Set("X-API-Key", p.apiKey)
		}
		req.Header.Set("Anthropic-Version", anthropicVersion)
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic: request failed: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("anthropic: unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return resp, nil
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	Tools     []anthropicTool    `json:"tools,omitempty"`
	Stream    bool               `json:"stream"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

type anthropicTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

type anthropicStreamEvent struct {
	Type         string               `json:"type"`
	Index        int                  `json:"index,omitempty"`
	ContentBlock *anthropicBlock      `json:"content_block,omitempty"`
	Delta        *anthropicBlockDelta `json:"delta,omitempty"`
}

type anthropicBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

type anthropicBlockDelta struct {
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
}

// anthropicStream tracks tool_use blocks by stream index so that
// input_json_delta fragments land on the right call.
type anthropicStream struct {
	base       *sseReader
	indexToID  map[int]string
	toolInputs map[string]string
	toolNames  map[string]string
}

func newAnthropicStream(resp *http.Response) Stream {
	stream := &anthropicStream{
		indexToID:  make(map[int]string),
		toolInputs: make(map[string]string),
		toolNames:  make(map[string]string),
	}
	stream.base = newSSEReader(resp, stream.decodeEvent)
	return stream
}

func (s *anthropicStream) Close() error {
	return s.base.Close()
}

func (s *anthropicStream) Recv() (Chunk, error) {
	return s.base.Recv()
}

func (s *anthropicStream) decodeEvent(data []byte) (Chunk, error) {
	var event anthropicStreamEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return Chunk{}, fmt.Errorf("anthropic: decode event: %w", err)
	}
	switch event.Type {
	case "content_block_start":
		return s.startBlock(event), nil
	case "content_block_delta":
		return s.deltaBlock(event), nil
	}
	return Chunk{}, nil
}

func (s *anthropicStream) startBlock(event anthropicStreamEvent) Chunk {
	block := event.ContentBlock
	if block == nil {
		return Chunk{}
	}
	switch block.Type {
	case "text":
		return Chunk{Content: block.Text}
	case "tool_use":
		s.indexToID[event.Index] = block.ID
		s.toolNames[block.ID] = block.Name
		// Streamed inputs open with an empty {} placeholder and arrive
		// through input_json_delta frames; seeding from the placeholder
		// would corrupt the accumulated JSON.
		if input := strings.TrimSpace(string(block.Input)); input != "" && input != "{}" {
			s.toolInputs[block.ID] = input
		}
		return s.toolFrame(block.ID)
	}
	return Chunk{}
}

func (s *anthropicStream) deltaBlock(event anthropicStreamEvent) Chunk {
	delta := event.Delta
	if delta == nil {
		return Chunk{}
	}
	if delta.Text != "" {
		return Chunk{Content: delta.Text}
	}
	if delta.PartialJSON != "" {
		callID := s.indexToID[event.Index]
		s.toolInputs[callID] += delta.PartialJSON
		return s.toolFrame(callID)
	}
	return Chunk{}
}

// toolFrame emits the call with the input accumulated so far.
func (s *anthropicStream) toolFrame(callID string) Chunk {
	return Chunk{ToolCalls: []ToolCall{{
		ID:        callID,
		Name:      s.toolNames[callID],
		Arguments: s.toolInputs[callID],
	}}}
}

// splitAnthropicMessages converts the neutral history into API messages,
// lifting system turns into the top-level system field. Tool results become
// tool_result blocks inside a user turn, the only place the API accepts
// them.
func splitAnthropicMessages(messages []Message) ([]anthropicMessage, string) {
	var systemParts []string
	out := make([]anthropicMessage, 0, len(messages))
	for _, message := range messages {
		switch message.Role {
		case "system":
			systemParts = append(systemParts, message.Content)
		case "tool":
			out = append(out, anthropicMessage{
				Role: "user",
				Content: []anthropicContent{{
					Type:      "tool_result",
					ToolUseID: message.ToolCallID,
					Content:   message.Content,
				}},
			})
		default:
			out = append(out, anthropicMessage{
				Role:    message.Role,
				Content: []anthropicContent{{Type: "text", Text: message.Content}},
			})
		}
	}
	return out, strings.Join(systemParts, "\n")
}
