package ai

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/benvon/kanban-assistant/internal/models"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	// DefaultOpenAIModel is the default model to use
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultOpenAIBaseURL is the default OpenAI API base URL
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultTimeout bounds one gateway call, including a full stream
	DefaultTimeout = 60 * time.Second

	// ErrNoChoicesInResponse is returned when the API response has no choices
	ErrNoChoicesInResponse = "no choices in response"

	tracerName = "github.com/benvon/kanban-assistant/internal/services/ai"
)

// OpenAIProvider relays chat turns to an OpenAI-compatible chat completions
// gateway with the task tools attached
type OpenAIProvider struct {
	client    openai.Client
	model     string
	timeout   time.Duration
	logger    *zap.Logger
	debugMode bool
	now       func() time.Time
	tracer    trace.Tracer
}

// ProviderConfig configures an OpenAIProvider
type ProviderConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	Timeout   time.Duration
	Logger    *zap.Logger
	DebugMode bool
}

// NewOpenAIProvider creates a provider for the given gateway
func NewOpenAIProvider(cfg ProviderConfig) *OpenAIProvider {
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithHTTPClient(&http.Client{}),
		option.WithMaxRetries(0),
	)

	return &OpenAIProvider{
		client:    client,
		model:     cfg.Model,
		timeout:   cfg.Timeout,
		logger:    cfg.Logger,
		debugMode: cfg.DebugMode,
		now:       time.Now,
		tracer:    otel.Tracer(tracerName),
	}
}

func (p *OpenAIProvider) buildRequest(messages []Message, board models.BoardContext) openai.ChatCompletionNewParams {
	params := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	params = append(params, openai.SystemMessage(BuildSystemPrompt(board, p.now().UTC())))

	for _, msg := range messages {
		switch msg.Role {
		case models.ChatRoleAssistant:
			params = append(params, openai.AssistantMessage(msg.Content))
		default:
			params = append(params, openai.UserMessage(msg.Content))
		}
	}

	return openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: params,
		Tools:    Tools(),
	}
}

func (p *OpenAIProvider) logRequest(ctx context.Context, operation string, messages []Message, board models.BoardContext) {
	if !p.debugMode {
		return
	}
	previews := make([]string, 0, len(messages))
	for _, msg := range messages {
		previews = append(previews, SanitizePrompt(msg.Content, false))
	}
	p.logger.Debug("llm_api_request",
		zap.String("operation", operation),
		zap.String("model", p.model),
		zap.Int("message_count", len(messages)),
		zap.Int("board_task_count", len(board.Tasks)),
		zap.Strings("message_previews", previews),
		zap.String("user_id", ExtractUserID(ctx)),
		zap.String("request_id", ExtractRequestID(ctx)),
	)
}

func (p *OpenAIProvider) logResult(ctx context.Context, operation string, completion *Completion, err error, latency time.Duration) {
	if err != nil {
		p.logger.Warn("llm_api_error",
			zap.String("operation", operation),
			zap.String("model", p.model),
			zap.Error(err),
			zap.String("user_id", ExtractUserID(ctx)),
			zap.String("request_id", ExtractRequestID(ctx)),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
		return
	}
	if !p.debugMode {
		return
	}
	names := make([]string, 0, len(completion.ToolCalls))
	for _, tc := range completion.ToolCalls {
		names = append(names, tc.Name)
	}
	p.logger.Debug("llm_api_response",
		zap.String("operation", operation),
		zap.String("model", p.model),
		zap.Int("response_length", len(completion.Content)),
		zap.String("response_preview", SanitizeResponse(completion.Content, false)),
		zap.Strings("tool_calls", names),
		zap.String("user_id", ExtractUserID(ctx)),
		zap.String("request_id", ExtractRequestID(ctx)),
		zap.Int64("latency_ms", latency.Milliseconds()),
	)
}

func (p *OpenAIProvider) startSpan(ctx context.Context, operation string, messages []Message) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "ai."+operation, trace.WithAttributes(
		attribute.String("llm.model", p.model),
		attribute.Int("llm.message_count", len(messages)),
	))
}

func endSpan(span trace.Span, completion *Completion, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else if completion != nil {
		span.SetAttributes(attribute.Int("llm.tool_call_count", len(completion.ToolCalls)))
	}
	span.End()
}

// Complete sends one non-streaming turn
func (p *OpenAIProvider) Complete(ctx context.Context, messages []Message, board models.BoardContext) (completion *Completion, err error) {
	ctx, span := p.startSpan(ctx, "complete", messages)
	defer func() { endSpan(span, completion, err) }()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.logRequest(ctx, "complete", messages, board)

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, p.buildRequest(messages, board))
	if err != nil {
		err = ClassifyError(err)
		p.logResult(ctx, "complete", nil, err, time.Since(start))
		return nil, err
	}
	if len(resp.Choices) == 0 {
		err = &APIError{StatusCode: http.StatusBadGateway, Message: ErrNoChoicesInResponse}
		p.logResult(ctx, "complete", nil, err, time.Since(start))
		return nil, err
	}

	completion = completionFromMessage(resp.Choices[0].Message)
	p.logResult(ctx, "complete", completion, nil, time.Since(start))
	return completion, nil
}

// Stream sends one streaming turn. Each text fragment is passed to onDelta as
// it arrives; tool calls are assembled and returned once the stream ends.
func (p *OpenAIProvider) Stream(ctx context.Context, messages []Message, board models.BoardContext, onDelta DeltaFunc) (completion *Completion, err error) {
	ctx, span := p.startSpan(ctx, "stream", messages)
	defer func() { endSpan(span, completion, err) }()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.logRequest(ctx, "stream", messages, board)

	start := time.Now()
	stream := p.client.Chat.Completions.NewStreaming(ctx, p.buildRequest(messages, board))
	defer func() { _ = stream.Close() }()

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" || onDelta == nil {
			continue
		}
		if cbErr := onDelta(chunk.Choices[0].Delta.Content); cbErr != nil {
			p.logResult(ctx, "stream", nil, cbErr, time.Since(start))
			return nil, cbErr
		}
	}
	if streamErr := stream.Err(); streamErr != nil {
		err = ClassifyError(streamErr)
		p.logResult(ctx, "stream", nil, err, time.Since(start))
		return nil, err
	}
	if len(acc.Choices) == 0 {
		err = &APIError{StatusCode: http.StatusBadGateway, Message: ErrNoChoicesInResponse}
		p.logResult(ctx, "stream", nil, err, time.Since(start))
		return nil, err
	}

	completion = completionFromMessage(acc.Choices[0].Message)
	p.logResult(ctx, "stream", completion, nil, time.Since(start))
	return completion, nil
}

func completionFromMessage(msg openai.ChatCompletionMessage) *Completion {
	completion := &Completion{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		if tc.Function.Name == "" {
			continue
		}
		completion.ToolCalls = append(completion.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return completion
}

// IsContextError reports whether err came from the caller cancelling or
// timing out the call
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

var _ Provider = (*OpenAIProvider)(nil)
