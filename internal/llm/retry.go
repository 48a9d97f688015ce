package llm

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// newBackoff builds the exponential backoff policy shared by every
// provider: base interval 3s, multiplier 3, capped at 20s, randomization
// factor 0.5, bounded to 3 retries (4 attempts total).
func newBackoff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 3 * time.Second
	b.Multiplier = 3.0
	b.MaxInterval = 20 * time.Second
	b.RandomizationFactor = 0.5
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, 3), ctx)
}

// withRetry runs op under the shared backoff policy. op must wrap
// non-retriable failures in backoff.Permanent.
func withRetry(ctx context.Context, op func() error) error {
	return backoff.Retry(op, newBackoff(ctx))
}

// classifyHTTPError returns a permanent error for any status code that is
// not a transient failure (connection reset, timeout, 5xx, or 429 /
// rate-limit wording), and a plain error (eligible for retry) otherwise.
func classifyHTTPError(statusCode int, body string) error {
	if isTransientStatus(statusCode, body) {
		return errors.New(httpErrorMessage(statusCode, body))
	}
	return backoff.Permanent(errors.New(httpErrorMessage(statusCode, body)))
}

func isTransientStatus(statusCode int, body string) bool {
	if statusCode >= 500 {
		return true
	}
	if statusCode == 429 {
		return true
	}
	lower := strings.ToLower(body)
	return strings.Contains(lower, "rate limit") || strings.Contains(lower, "too many requests")
}

func httpErrorMessage(statusCode int, body string) string {
	return "http " + strconv.Itoa(statusCode) + ": " + body
}

// isPermanent reports whether err was wrapped with backoff.Permanent.
func isPermanent(err error) bool {
	var permanent *backoff.PermanentError
	return errors.As(err, &permanent)
}

// classifyNetError reports whether err (from the transport layer, before a
// status code is even known) should be retried: timeouts, a connection
// reset and a cancelled deadline are transient, everything else (DNS
// failure, connection refused, TLS handshake failure) is not.
func classifyNetError(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return err
	}
	if errors.Is(err, syscall.ECONNRESET) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return backoff.Permanent(err)
}
