package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// Chat-completions wire format shared by both backends.

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireThinking struct {
	Type         string `json:"type"` // "enabled"
	BudgetTokens int    `json:"budget_tokens"`
}

type wireExtraBody struct {
	Thinking *wireThinking `json:"thinking,omitempty"`
}

type wireTool struct {
	Type     string  `json:"type"` // "function"
	Function ToolDef `json:"function"`
}

type wireRequest struct {
	Model       string         `json:"model"`
	Messages    []wireMessage  `json:"messages"`
	MaxTokens   int            `json:"max_tokens"`
	Temperature float64        `json:"temperature,omitempty"`
	Stream      bool           `json:"stream,omitempty"`
	ExtraBody   *wireExtraBody `json:"extra_body,omitempty"`
	Tools       []wireTool     `json:"tools,omitempty"`
}

type wireToolCall struct {
	ID       string `json:"id"`
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

type wireResponse struct {
	Choices []struct {
		Message struct {
			Content   string         `json:"content"`
			Thinking  string         `json:"thinking,omitempty"`
			ToolCalls []wireToolCall `json:"tool_calls,omitempty"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type wireStreamFrame struct {
	Choices []struct {
		Delta struct {
			Content  string `json:"content,omitempty"`
			Thinking string `json:"thinking,omitempty"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage,omitempty"`
}

// chatClient carries everything the two providers share: endpoint,
// auth header injection, HTTP transport, and wire encoding/decoding.
type chatClient struct {
	providerID string
	endpoint   string
	authorize  func(*http.Request)
	httpClient *http.Client
	logger     zerolog.Logger
}

func (c *chatClient) buildRequest(req Request) wireRequest {
	msgs := make([]wireMessage, 0, 2)
	if req.System != "" {
		msgs = append(msgs, wireMessage{Role: "system", Content: req.System})
	}
	msgs = append(msgs, wireMessage{Role: "user", Content: req.Prompt})

	wr := wireRequest{
		Model:       req.ModelID,
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      req.Stream,
	}
	if req.ExtendedReasoning {
		budget := req.ReasoningBudget
		if budget <= 0 {
			budget = 4096
		}
		wr.ExtraBody = &wireExtraBody{Thinking: &wireThinking{Type: "enabled", BudgetTokens: budget}}
	}
	for _, t := range req.Tools {
		wr.Tools = append(wr.Tools, wireTool{Type: "function", Function: t})
	}
	return wr
}

func (c *chatClient) do(ctx context.Context, wr wireRequest) (*http.Response, error) {
	body, err := json.Marshal(wr)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s http: %w", c.providerID, err)
	}

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, newHTTPError(c.providerID, resp.StatusCode, string(raw))
	}
	return resp, nil
}

// execute runs one call end to end and assembles the uniform Response.
func (c *chatClient) execute(ctx context.Context, req Request, onChunk OnChunk) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, c.buildRequest(req))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if req.Stream {
		return c.consumeStream(ctx, req, resp.Body, onChunk)
	}
	return c.parseResponse(req, resp.Body)
}

func (c *chatClient) parseResponse(req Request, body io.Reader) (*Response, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%s read body: %w", c.providerID, err)
	}

	var wr wireResponse
	if err := json.Unmarshal(raw, &wr); err != nil {
		return nil, newMalformedError(c.providerID, "invalid JSON body")
	}
	if len(wr.Choices) == 0 {
		return nil, newMalformedError(c.providerID, "no choices in response")
	}

	msg := wr.Choices[0].Message
	out := &Response{
		Content:        msg.Content,
		ReasoningTrace: msg.Thinking,
		Usage: Usage{
			PromptTokens:     wr.Usage.PromptTokens,
			CompletionTokens: wr.Usage.CompletionTokens,
		},
		ProviderID: c.providerID,
		ModelID:    req.ModelID,
	}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	c.logger.Debug().
		Str("model", req.ModelID).
		Int("prompt_tokens", out.Usage.PromptTokens).
		Int("completion_tokens", out.Usage.CompletionTokens).
		Msg("completion received")
	return out, nil
}

// consumeStream reads newline-delimited "data: {...}" frames until the
// [DONE] sentinel, forwarding fragments to onChunk and accumulating the
// final response. Frames that fail to parse are skipped.
func (c *chatClient) consumeStream(ctx context.Context, req Request, body io.Reader, onChunk OnChunk) (*Response, error) {
	var content, reasoning strings.Builder
	var usage Usage
	sawDone := false

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			sawDone = true
			break
		}

		var frame wireStreamFrame
		if err := json.Unmarshal([]byte(data), &frame); err != nil {
			continue
		}
		if frame.Usage != nil {
			usage.PromptTokens = frame.Usage.PromptTokens
			usage.CompletionTokens = frame.Usage.CompletionTokens
		}
		if len(frame.Choices) == 0 {
			continue
		}

		delta := frame.Choices[0].Delta
		if delta.Content == "" && delta.Thinking == "" {
			continue
		}
		content.WriteString(delta.Content)
		reasoning.WriteString(delta.Thinking)
		if onChunk != nil {
			onChunk(Chunk{Content: delta.Content, Reasoning: delta.Thinking})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%s read stream: %w", c.providerID, err)
	}
	if !sawDone {
		return nil, newMalformedError(c.providerID, "stream ended without [DONE] sentinel")
	}

	if onChunk != nil {
		onChunk(Chunk{Done: true})
	}
	return &Response{
		Content:        content.String(),
		ReasoningTrace: reasoning.String(),
		Usage:          usage,
		ProviderID:     c.providerID,
		ModelID:        req.ModelID,
	}, nil
}
