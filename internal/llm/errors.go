package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ProviderError is the typed failure raised by provider calls. It carries
// an HTTP-status-like code, or marks the response as malformed when the
// transport succeeded but the body could not be parsed.
type ProviderError struct {
	Provider  string
	Status    int
	Message   string
	Malformed bool
}

func (e *ProviderError) Error() string {
	if e.Malformed {
		return fmt.Sprintf("%s: malformed response: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Status, e.Message)
}

// Retryable reports whether the error is a transient condition worth a
// backoff retry. Malformed responses and client errors (auth, bad
// request, permanent quota) are never retried.
func (e *ProviderError) Retryable() bool {
	if e.Malformed {
		return false
	}
	switch e.Status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable:
		return true
	}
	return false
}

func newHTTPError(provider string, status int, body string) *ProviderError {
	msg := strings.TrimSpace(body)
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return &ProviderError{Provider: provider, Status: status, Message: msg}
}

func newMalformedError(provider, msg string) *ProviderError {
	return &ProviderError{Provider: provider, Message: msg, Malformed: true}
}

// IsRetryable classifies any error from a provider call: typed provider
// errors consult their status, network timeouts and connection resets are
// transient, context cancellation is not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable()
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}

	// Connection-level failures surface as wrapped *net.OpError or plain
	// strings from the transport.
	s := err.Error()
	return strings.Contains(s, "connection reset") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "broken pipe") ||
		strings.Contains(s, "EOF")
}

// IsMalformed reports whether err marks an unparseable provider response.
func IsMalformed(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Malformed
}
