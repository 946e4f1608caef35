package httpx

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"
)

type statusErr int

func (e statusErr) Error() string       { return fmt.Sprintf("status %d", int(e)) }
func (e statusErr) HTTPStatusCode() int { return int(e) }

func TestIsRetryableError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.Canceled, false},
		{context.DeadlineExceeded, true},
		{fmt.Errorf("wrapped: %w", statusErr(429)), true},
		{statusErr(503), true},
		{statusErr(400), false},
		{fmt.Errorf("plain"), false},
	}
	for _, c := range cases {
		if got := IsRetryableError(c.err); got != c.want {
			t.Errorf("IsRetryableError(%v)=%v want %v", c.err, got, c.want)
		}
	}
}

func TestRetryAfterAndBackoff(t *testing.T) {
	resp := &http.Response{Header: http.Header{"Retry-After": []string{"7"}}}
	if got := RetryAfterDuration(resp, time.Second, 5*time.Second); got != 5*time.Second {
		t.Fatalf("retry-after cap: %s", got)
	}
	if got := RetryAfterDuration(nil, time.Second, 0); got != time.Second {
		t.Fatalf("fallback: %s", got)
	}
	if got := NextBackoff(4*time.Second, 5*time.Second); got != 5*time.Second {
		t.Fatalf("backoff cap: %s", got)
	}
	for i := 0; i < 50; i++ {
		d := JitterSleep(time.Second)
		if d < 800*time.Millisecond || d > 1200*time.Millisecond {
			t.Fatalf("jitter out of band: %s", d)
		}
	}
}
