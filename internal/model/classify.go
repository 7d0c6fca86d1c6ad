package model

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/flynn-ai/llmgate/internal/errors"
)

// classifyStatus maps an upstream HTTP status to an AppError category.
func classifyStatus(provider string, status int, header http.Header, body string, cause error) *errors.AppError {
	switch {
	case status == http.StatusTooManyRequests:
		retryAfter := 5 * time.Second
		if header != nil {
			if s, err := strconv.Atoi(header.Get("Retry-After")); err == nil && s > 0 {
				retryAfter = time.Duration(s) * time.Second
			}
		}
		appErr := errors.RateLimit(errors.CodeModelRateLimit, fmt.Sprintf("%s rate limit exceeded", provider), retryAfter)
		appErr.Inner = cause
		return appErr
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.NewBuilder(errors.CodeModelAuthFailed, fmt.Sprintf("%s rejected the API key", provider)).
			User().
			Wrap(cause).
			WithSuggestion(fmt.Sprintf("Check your %s API key", provider)).
			Build()
	case status == http.StatusBadRequest || status == http.StatusNotFound || status == http.StatusUnprocessableEntity:
		return errors.NewBuilder(errors.CodeModelInvalidResponse, "bad request - check model name and parameters").
			User().
			Wrap(cause).
			WithContext("response", body).
			Build()
	case status >= 500:
		return errors.NewBuilder(errors.CodeModelUnavailable, fmt.Sprintf("%s unavailable (status %d)", provider, status)).
			Temporary().
			Wrap(cause).
			Build()
	default:
		return errors.NewBuilder(errors.CodeModelUnavailable, fmt.Sprintf("%s error (status %d)", provider, status)).
			Permanent().
			Wrap(cause).
			Build()
	}
}

// classifyTransport handles errors that carry no HTTP status. Aborted
// requests are attributed to the caller so they do not trip the breaker.
func classifyTransport(provider string, err error) *errors.AppError {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(err, errors.CodeNetworkUnavailable, fmt.Sprintf("%s request aborted", provider), errors.CategoryUser)
	}
	return errors.Wrap(err, errors.CodeNetworkUnavailable, fmt.Sprintf("%s network request failed", provider), errors.CategoryTemporary)
}
