// Package errors provides the error taxonomy for llmgate.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flynn-ai/llmgate/pkg/protocol"
)

// ============================================================
// Error Categories
// ============================================================

// Category defines the type of error for retry decisions.
type Category int

const (
	// CategoryTemporary errors are retryable (network timeouts, 5xx)
	CategoryTemporary Category = iota

	// CategoryPermanent errors are not retryable (bad request, not found)
	CategoryPermanent

	// CategoryUser errors are due to caller input (validation, unknown provider)
	CategoryUser

	// CategorySystem errors are configuration or environment problems
	CategorySystem

	// CategoryRateLimit errors are due to upstream rate limiting
	CategoryRateLimit
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTemporary:
		return "temporary"
	case CategoryPermanent:
		return "permanent"
	case CategoryUser:
		return "user"
	case CategorySystem:
		return "system"
	case CategoryRateLimit:
		return "rate_limit"
	default:
		return "unknown"
	}
}

// ============================================================
// Kinds
// ============================================================

// Kind is the machine-readable classification of a fatal request failure.
type Kind string

const (
	KindUnknown       Kind = "internal_error"
	KindProvider      Kind = "provider_error"
	KindBackend       Kind = "backend_error"
	KindMaxIterations Kind = "max_iterations"
	KindTool          Kind = "tool_error"
	KindValidation    Kind = "validation_error"
)

// ============================================================
// AppError - Main Error Type
// ============================================================

// AppError is the main error type for all llmgate errors.
type AppError struct {
	// Code is a unique error code for programmatic handling
	Code string

	// Message is a caller-facing error message
	Message string

	// Kind classifies the failure for API callers
	Kind Kind

	// Category determines how the error should be retried
	Category Category

	// Inner is the underlying error
	Inner error

	// Retryable indicates if the operation can be retried
	Retryable bool

	// Suggestions are recovery hints for the caller
	Suggestions []string

	// Context is structured detail returned alongside the message
	Context map[string]any

	// RetryAfter is the suggested delay before retry
	RetryAfter time.Duration
}

// Error returns the error message.
func (e *AppError) Error() string {
	var sb strings.Builder

	if e.Code != "" {
		sb.WriteString("[")
		sb.WriteString(e.Code)
		sb.WriteString("] ")
	}

	sb.WriteString(e.Message)

	if e.Inner != nil {
		innerMsg := e.Inner.Error()
		if innerMsg != "" && innerMsg != e.Message {
			sb.WriteString(": ")
			sb.WriteString(innerMsg)
		}
	}

	return sb.String()
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Inner
}

// ============================================================
// Error Constructors
// ============================================================

// New creates a new AppError.
func New(code, message string, category Category) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Category: category,
	}
}

// Wrap wraps an existing error with a code and message.
// The kind, retryability and context of a wrapped AppError are kept.
func Wrap(err error, code, message string, category Category) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{
			Code:        code,
			Message:     message,
			Kind:        appErr.Kind,
			Category:    category,
			Inner:       err,
			Retryable:   appErr.Retryable,
			Suggestions: appErr.Suggestions,
			Context:     appErr.Context,
		}
	}

	return &AppError{
		Code:      code,
		Message:   message,
		Category:  category,
		Inner:     err,
		Retryable: category == CategoryTemporary || category == CategoryRateLimit,
	}
}

// Temporary creates a retryable temporary error.
func Temporary(code, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Category:  CategoryTemporary,
		Retryable: true,
	}
}

// Permanent creates a non-retryable permanent error.
func Permanent(code, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Category:  CategoryPermanent,
		Retryable: false,
	}
}

// RateLimit creates a rate limit error with retry after duration.
func RateLimit(code, message string, retryAfter time.Duration) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Category:   CategoryRateLimit,
		Retryable:  true,
		RetryAfter: retryAfter,
		Suggestions: []string{
			fmt.Sprintf("Wait %s before retrying", retryAfter),
			"Check your provider quota",
		},
	}
}

// Provider reports an unknown or unconfigured provider.
func Provider(code, message string) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Kind:     KindProvider,
		Category: CategoryUser,
	}
}

// Validation reports a malformed request.
func Validation(message string, err error) *AppError {
	return &AppError{
		Code:     CodeInvalidRequest,
		Message:  message,
		Kind:     KindValidation,
		Category: CategoryUser,
		Inner:    err,
	}
}

// Backend wraps an upstream backend failure.
// The category of an already-classified cause is preserved.
func Backend(provider string, err error) *AppError {
	if err == nil {
		return nil
	}
	appErr := Wrap(err, CodeBackendFailed, fmt.Sprintf("%s backend request failed", provider), GetCategory(err))
	appErr.Kind = KindBackend
	if appErr.Context == nil {
		appErr.Context = make(map[string]any)
	}
	appErr.Context["provider"] = provider
	return appErr
}

// MaxIterations reports an exhausted tool-calling loop.
func MaxIterations(iterations int, calls []protocol.ToolCallRecord) *AppError {
	return NewBuilder(CodeMaxIterations, fmt.Sprintf("Maximum tool calling iterations (%d) reached", iterations)).
		Kind(KindMaxIterations).
		User().
		WithContext("iterations", iterations).
		WithContext("tool_calls", len(calls)).
		WithContext("tool_calls_made", calls).
		WithSuggestion("Rephrase the request so it needs fewer tool calls").
		Build()
}

// ============================================================
// Builder Pattern for Fluent Error Construction
// ============================================================

// Builder provides fluent error construction.
type Builder struct {
	err *AppError
}

// NewBuilder starts building a new error.
func NewBuilder(code, message string) *Builder {
	return &Builder{
		err: &AppError{
			Code:     code,
			Message:  message,
			Category: CategoryTemporary,
			Context:  make(map[string]any),
		},
	}
}

// Kind sets the caller-facing classification.
func (b *Builder) Kind(kind Kind) *Builder {
	b.err.Kind = kind
	return b
}

// Temporary marks the error as temporary/retryable.
func (b *Builder) Temporary() *Builder {
	b.err.Category = CategoryTemporary
	b.err.Retryable = true
	return b
}

// Permanent marks the error as permanent/non-retryable.
func (b *Builder) Permanent() *Builder {
	b.err.Category = CategoryPermanent
	b.err.Retryable = false
	return b
}

// User marks the error as a caller input error.
func (b *Builder) User() *Builder {
	b.err.Category = CategoryUser
	b.err.Retryable = false
	return b
}

// System marks the error as a configuration error.
func (b *Builder) System() *Builder {
	b.err.Category = CategorySystem
	b.err.Retryable = false
	return b
}

// Wrap sets the underlying error.
func (b *Builder) Wrap(err error) *Builder {
	b.err.Inner = err
	return b
}

// WithSuggestion adds a recovery suggestion.
func (b *Builder) WithSuggestion(suggestion string) *Builder {
	b.err.Suggestions = append(b.err.Suggestions, suggestion)
	return b
}

// WithContext adds context information.
func (b *Builder) WithContext(key string, value any) *Builder {
	b.err.Context[key] = value
	return b
}

// WithRetryAfter sets the suggested retry delay.
func (b *Builder) WithRetryAfter(duration time.Duration) *Builder {
	b.err.RetryAfter = duration
	return b
}

// Build returns the constructed error.
func (b *Builder) Build() *AppError {
	return b.err
}

// ============================================================
// Error Codes
// ============================================================

const (
	// Provider errors
	CodeUnknownProvider       = "UNKNOWN_PROVIDER"
	CodeProviderNotConfigured = "PROVIDER_NOT_CONFIGURED"

	// Backend errors
	CodeBackendFailed        = "BACKEND_FAILED"
	CodeModelUnavailable     = "MODEL_UNAVAILABLE"
	CodeModelRateLimit       = "MODEL_RATE_LIMIT"
	CodeModelInvalidResponse = "MODEL_INVALID_RESPONSE"
	CodeModelAuthFailed      = "MODEL_AUTH_FAILED"
	CodeNetworkUnavailable   = "NETWORK_UNAVAILABLE"
	CodeCircuitOpen          = "CIRCUIT_OPEN"

	// Loop errors
	CodeMaxIterations = "MAX_ITERATIONS"

	// Tool errors
	CodeToolNotFound        = "TOOL_NOT_FOUND"
	CodeToolExecutionFailed = "TOOL_EXECUTION_FAILED"

	// Config errors
	CodeConfigInvalid = "CONFIG_INVALID"

	// Validation errors
	CodeInvalidRequest = "INVALID_REQUEST"
)

// ============================================================
// Helpers
// ============================================================

// GetCategory extracts the category from an error.
// Returns CategoryTemporary for non-AppError errors.
func GetCategory(err error) Category {
	if err == nil {
		return CategoryTemporary
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Category
	}

	return CategoryTemporary
}

// KindOf returns the first non-empty kind found in the error chain.
func KindOf(err error) Kind {
	for err != nil {
		var appErr *AppError
		if !errors.As(err, &appErr) {
			break
		}
		if appErr.Kind != "" {
			return appErr.Kind
		}
		err = appErr.Inner
	}
	return KindUnknown
}

// Details returns the structured context attached to an error.
func Details(err error) map[string]any {
	var appErr *AppError
	if errors.As(err, &appErr) && len(appErr.Context) > 0 {
		return appErr.Context
	}
	return nil
}

// Message returns the caller-facing message of an error.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}

	return true
}

// GetSuggestions returns recovery suggestions for an error.
func GetSuggestions(err error) []string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Suggestions
	}
	return nil
}

// FormatUserMessage formats a caller-facing message with suggestions.
func FormatUserMessage(err error) string {
	if err == nil {
		return ""
	}

	var appErr *AppError
	if !errors.As(err, &appErr) {
		return err.Error()
	}

	var sb strings.Builder
	sb.WriteString(appErr.Message)
	if len(appErr.Suggestions) > 0 {
		sb.WriteString("\n\nSuggestions:")
		for _, s := range appErr.Suggestions {
			sb.WriteString("\n  - ")
			sb.WriteString(s)
		}
	}
	return sb.String()
}

// As is errors.As, re-exported so callers need a single errors import.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is is errors.Is, re-exported so callers need a single errors import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
