package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/benvon/kanban-assistant/internal/api"
	"github.com/benvon/kanban-assistant/internal/models"
	"github.com/benvon/kanban-assistant/internal/services/ai"
	"github.com/benvon/kanban-assistant/internal/stream"
)

// RelayPath is the chat relay endpoint
const RelayPath = "/functions/v1/kanban-chat"

func relayRequest(messages []ai.Message, board models.BoardContext, streaming bool) api.RelayRequest {
	req := api.RelayRequest{
		Messages:     make([]api.RelayMessage, 0, len(messages)),
		BoardContext: board,
		Stream:       streaming,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, api.RelayMessage{Role: m.Role, Content: m.Content})
	}
	return req
}

func (c *Client) postRelay(ctx context.Context, body api.RelayRequest) (*http.Response, error) {
	req, err := c.newRequest(ctx, http.MethodPost, RelayPath, body)
	if err != nil {
		return nil, err
	}
	if body.Stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ai.ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		return nil, relayError(resp)
	}
	return resp, nil
}

// relayError maps a failed relay answer onto the gateway error taxonomy
func relayError(resp *http.Response) error {
	var body api.RelayErrorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(raw))
	}
	return &ai.APIError{StatusCode: resp.StatusCode, Message: body.Error}
}

// Complete sends a non-streaming relay request
func (c *Client) Complete(ctx context.Context, messages []ai.Message, board models.BoardContext) (*ai.Completion, error) {
	resp, err := c.postRelay(ctx, relayRequest(messages, board, false))
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var out api.RelayResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode relay response: %w", ai.ErrUpstream, err)
	}
	return out.Completion(), nil
}

// Stream sends a streaming relay request and decodes the event stream
func (c *Client) Stream(ctx context.Context, messages []ai.Message, board models.BoardContext, onDelta ai.DeltaFunc) (*ai.Completion, error) {
	resp, err := c.postRelay(ctx, relayRequest(messages, board, true))
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	asm := stream.NewAssembler()
	err = stream.Read(resp.Body, func(chunk stream.Chunk) error {
		if chunk.Error != nil {
			return &ai.APIError{StatusCode: chunk.Error.Status, Message: chunk.Error.Message}
		}
		if delta := asm.Add(chunk); delta != "" && onDelta != nil {
			return onDelta(delta)
		}
		return nil
	})
	if err != nil {
		return nil, ai.ClassifyError(err)
	}
	return asm.Completion(), nil
}

var _ ai.Provider = (*Client)(nil)
