package scoring

import (
	"context"
	"errors"
	"strings"
)

// IsRetryableError reports whether a failed call is worth repeating.
// Deadlines and cancellation are never retried.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection") ||
		strings.Contains(msg, "temporary") ||
		strings.Contains(msg, "try again") ||
		strings.Contains(msg, "too many requests")
}
