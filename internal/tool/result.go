package tool

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Failure kinds reported in synthesized error results.
const (
	KindInvalidArguments = "invalid_arguments"
	KindTimeout          = "timeout"
	KindCanceled         = "canceled"
	KindNetwork          = "network"
	KindExecution        = "execution"
	KindPanic            = "panic"
)

// Error is a classified tool execution failure.
type Error struct {
	Kind string
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds a classified tool failure.
func Errorf(kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// FailureKind returns a coarse tag for a failed execution.
func FailureKind(err error) string {
	var te *Error
	if errors.As(err, &te) && te.Kind != "" {
		return te.Kind
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.As(err, &netErr):
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}
	return KindExecution
}

// NotFound is the result synthesized for an unknown tool name.
func NotFound(name string) map[string]any {
	return map[string]any{"error": fmt.Sprintf("Tool '%s' not found", name)}
}

// InvalidArguments is the result synthesized for a call whose arguments
// could not be decoded.
func InvalidArguments(reason string) map[string]any {
	return map[string]any{"error": reason, "type": KindInvalidArguments}
}

// FailureResult is the result synthesized for a failed execution.
func FailureResult(err error) map[string]any {
	return map[string]any{"error": err.Error(), "type": FailureKind(err)}
}

// IsErrorResult reports whether a result is error-shaped.
func IsErrorResult(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	msg, ok := m["error"]
	if !ok || msg == nil {
		return false
	}
	s, isString := msg.(string)
	return !isString || s != ""
}

// Invoke looks up and executes a tool, folding every failure into an
// error-shaped result. found is false when the name is not registered.
func Invoke(ctx context.Context, r *Registry, name string, args map[string]any) (result any, found bool) {
	t, ok := r.Get(name)
	if !ok {
		return NotFound(name), false
	}
	if args == nil {
		args = map[string]any{}
	}

	res, err := safeExecute(ctx, t, args)
	if err != nil {
		return FailureResult(err), true
	}
	return res, true
}

func safeExecute(ctx context.Context, t Tool, args map[string]any) (res any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = Errorf(KindPanic, "tool %s panicked: %v", t.Name(), p)
		}
	}()
	return t.Execute(ctx, args)
}
