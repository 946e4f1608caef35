package httpx

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HTTPStatusCoder is implemented by provider errors that carry the
// upstream status code.
type HTTPStatusCoder interface {
	HTTPStatusCode() int
}

func IsRetryableHTTPStatus(code int) bool {
	if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests {
		return true
	}
	return code >= 500 && code <= 599
}

// IsRetryableError reports whether another attempt may succeed. A per-call
// deadline is retryable; caller cancellation is not.
func IsRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var sc HTTPStatusCoder
	if errors.As(err, &sc) {
		return IsRetryableHTTPStatus(sc.HTTPStatusCode())
	}
	return false
}

// RetryAfterDuration honours a Retry-After seconds header, capped at max.
func RetryAfterDuration(resp *http.Response, fallback, max time.Duration) time.Duration {
	sleepFor := fallback
	if resp != nil {
		if ra := strings.TrimSpace(resp.Header.Get("Retry-After")); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				sleepFor = time.Duration(secs) * time.Second
			}
		}
	}
	if max > 0 && sleepFor > max {
		sleepFor = max
	}
	return sleepFor
}

// NextBackoff doubles cur up to max.
func NextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if max > 0 && next > max {
		return max
	}
	return next
}

// JitterSleep spreads base by ±20%.
func JitterSleep(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	const j = 0.2
	low := base.Seconds() * (1 - j)
	high := base.Seconds() * (1 + j)
	v := low + rand.Float64()*(high-low)
	return time.Duration(v * float64(time.Second))
}
