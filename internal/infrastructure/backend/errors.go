package backend

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a failed backend call.
type Kind int

const (
	KindTransport Kind = iota + 1
	KindRateLimited
	KindUnauthorized
	KindNotFound
	KindDomain
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindRateLimited:
		return "rate_limited"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindDomain:
		return "domain"
	case KindServer:
		return "server"
	}
	return "unknown"
}

var (
	ErrTransport    = errors.New("backend unreachable")
	ErrRateLimited  = errors.New("backend rate limit exceeded")
	ErrUnauthorized = errors.New("backend rejected credentials")
	ErrNotFound     = errors.New("backend resource not found")
	ErrDomain       = errors.New("backend rejected request")
	ErrServer       = errors.New("backend server error")
)

// Error is the uniform shape of every failed backend call.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Op      string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.sentinel().Error())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
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

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return target == e.sentinel()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) sentinel() error {
	switch e.Kind {
	case KindTransport:
		return ErrTransport
	case KindRateLimited:
		return ErrRateLimited
	case KindUnauthorized:
		return ErrUnauthorized
	case KindNotFound:
		return ErrNotFound
	case KindServer:
		return ErrServer
	default:
		return ErrDomain
	}
}

// IsRateLimited reports whether err is a 429, by status or message.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var be *Error
	if errors.As(err, &be) {
		return be.Status
	}
	return 0
}

func classify(status int, message string) Kind {
	if status == http.StatusTooManyRequests || mentionsRateLimit(message) {
		return KindRateLimited
	}
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusNotFound:
		return KindNotFound
	case status >= 500:
		return KindServer
	default:
		return KindDomain
	}
}

func mentionsRateLimit(message string) bool {
	m := strings.ToLower(message)
	return strings.Contains(m, "too many requests") ||
		strings.Contains(m, "rate limit") ||
		strings.Contains(m, "throttl")
}
