package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Kind classifies an upstream failure.
type Kind int

const (
	// KindPermanent failures will fail again if retried unchanged.
	KindPermanent Kind = iota
	// KindTransient failures (rate limits, timeouts, 5xx) may succeed on retry.
	KindTransient
)

func (k Kind) String() string {
	if k == KindTransient {
		return "transient"
	}
	return "permanent"
}

// Error is a classified failure from the model provider.
type Error struct {
	Kind       Kind
	StatusCode int // 0 for transport and decoding failures
	Message    string
	Err        error
	// RetryAfter is the provider's Retry-After hint, 0 when absent.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("llm ")
	b.WriteString(e.Kind.String())
	b.WriteString(" error")
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (http %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatusCode returns the upstream status, 0 when none was received.
func (e *Error) HTTPStatusCode() int { return e.StatusCode }

// IsTransient reports whether err is, or wraps, a transient *Error.
func IsTransient(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindTransient
}

// IsPermanent reports whether err is, or wraps, a permanent *Error.
func IsPermanent(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindPermanent
}

// IsRetryableStatus reports whether an HTTP status is worth retrying: 408, 429 and 5xx.
func IsRetryableStatus(code int) bool {
	if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests {
		return true
	}
	return code >= 500 && code <= 599
}

// StatusError builds the *Error for a non-2xx response.
func StatusError(resp *http.Response, body []byte) *Error {
	kind := KindPermanent
	if IsRetryableStatus(resp.StatusCode) {
		kind = KindTransient
	}
	return &Error{
		Kind:       kind,
		StatusCode: resp.StatusCode,
		Message:    errorMessage(body),
		RetryAfter: ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
	}
}

// TransportError classifies a failure to complete the HTTP exchange. Caller
// cancellation is returned unchanged so it is never mistaken for an upstream fault.
func TransportError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTransient, Message: "request timed out", Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTransient, Message: "request timed out", Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return &Error{Kind: KindTransient, Message: "network error", Err: err}
	}
	return &Error{Kind: KindPermanent, Err: err}
}

// DecodeError wraps a malformed response body.
func DecodeError(err error) *Error {
	return &Error{Kind: KindPermanent, Message: "malformed response", Err: err}
}

// ParseRetryAfter reads a Retry-After value given in seconds or as an HTTP date.
func ParseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs > 0 {
			return time.Duration(secs) * time.Second
		}
		return 0
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// Jitter returns base scaled by a random factor in [0.8, 1.2].
func Jitter(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	f := 0.8 + rand.Float64()*0.4
	return time.Duration(float64(base) * f)
}

// errorMessage extracts {"error":{"message":...}} from an OpenAI-style body, falling
// back to the raw (truncated) body.
func errorMessage(body []byte) string {
	var env struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &env) == nil && env.Error.Message != "" {
		return env.Error.Message
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
