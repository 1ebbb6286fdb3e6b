package ai

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go/v3"
)

var (
	// ErrRateLimited indicates the gateway answered 429. Callers surface it and
	// let the user retry; nothing is retried automatically.
	ErrRateLimited = errors.New("rate limited, retry later")
	// ErrQuotaExhausted indicates the gateway answered 402. It is terminal for
	// the session.
	ErrQuotaExhausted = errors.New("quota exhausted")
	// ErrUpstream covers every other gateway failure
	ErrUpstream = errors.New("upstream failure")
	// ErrInvalidArguments indicates a tool call whose arguments failed to decode
	// or validate
	ErrInvalidArguments = errors.New("invalid tool arguments")
	// ErrUnknownTool indicates a tool call naming an action outside the schema
	ErrUnknownTool = errors.New("unknown tool")
)

// APIError represents a failed call to the gateway
type APIError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway error (status %d, code %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("gateway error (status %d): %s", e.StatusCode, e.Message)
}

// Unwrap maps the status code onto the sentinel errors so callers can use
// errors.Is
func (e *APIError) Unwrap() error {
	return sentinelForStatus(e.StatusCode)
}

func sentinelForStatus(status int) error {
	switch status {
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusPaymentRequired:
		return ErrQuotaExhausted
	default:
		return ErrUpstream
	}
}

// ClassifyError converts an SDK or transport error into an *APIError. Errors
// that already carry a classification are returned unchanged.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return err
	}

	var sdkErr *openai.Error
	if errors.As(err, &sdkErr) {
		return &APIError{
			StatusCode: sdkErr.StatusCode,
			Message:    sdkErr.Message,
			Code:       sdkErr.Code,
		}
	}

	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrQuotaExhausted) || errors.Is(err, ErrUpstream) {
		return err
	}

	return fmt.Errorf("%w: %w", ErrUpstream, err)
}

// StatusCode returns the HTTP status the relay answers with for err: 429 and
// 402 pass through, everything else becomes 500.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrQuotaExhausted):
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

// IsRateLimitError reports whether err is a gateway rate limit
func IsRateLimitError(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsQuotaError reports whether err is a gateway quota exhaustion
func IsQuotaError(err error) bool {
	return errors.Is(err, ErrQuotaExhausted)
}

// UserMessage renders err as the notice shown to the user
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return "Rate limit exceeded. Please wait a moment and try again."
	case errors.Is(err, ErrQuotaExhausted):
		return "The assistant's usage quota is exhausted. Please add credits to continue."
	default:
		return "The assistant is unavailable right now. Please try again."
	}
}
