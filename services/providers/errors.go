package providers

import (
	"errors"
	"fmt"
	"regexp"
	"unicode/utf8"
)

// Kind classifies a canonical error. Every failure leaving an adapter
// boundary carries exactly one of these.
type Kind string

const (
	KindCapabilityNotSupported Kind = "capability_not_supported"
	KindRateLimited            Kind = "rate_limited"
	KindRateLimitTimeout       Kind = "rate_limit_timeout"
	KindCircuitOpen            Kind = "circuit_open"
	KindTimeout                Kind = "timeout"
	KindTaskCreationFailed     Kind = "task_creation_failed"
	KindTaskFailed             Kind = "task_failed"
	KindTaskTimeout            Kind = "task_timeout"
	KindTextGenerationFailed   Kind = "text_generation_failed"
	KindImageGenerationFailed  Kind = "image_generation_failed"
	KindVideoGenerationFailed  Kind = "video_generation_failed"
	KindProviderRateLimited    Kind = "provider_rate_limited"
	KindHTTPError              Kind = "http_error"
)

// maxMessageLen bounds sanitized messages so provider error bodies cannot
// flood caller logs.
const maxMessageLen = 240

var (
	urlPattern = regexp.MustCompile(`https?://[^\s"'<>]+`)

	// Key-shaped substrings: vendor prefixes plus generic key/token
	// assignments long enough to look like a credential.
	apiKeyPattern = regexp.MustCompile(`(?i)(sk-[A-Za-z0-9_-]{10,}|AIza[0-9A-Za-z_-]{20,}|(?:api[_-]?key|apikey|token|bearer|authorization)[=:\s]+[A-Za-z0-9._-]{12,})`)

	// Absolute filesystem paths with at least two segments.
	pathPattern = regexp.MustCompile(`(?:^|[\s"'(\[])(/[A-Za-z0-9._-]+){2,}`)
)

// Error is the canonical, sanitized error crossing the adapter boundary.
// It never exposes raw provider error bodies, internal URLs, filesystem
// paths, or credential fragments.
type Error struct {
	Kind       Kind
	Provider   string
	Message    string
	HTTPStatus int
	cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.HTTPStatus > 0 {
		return fmt.Sprintf("%s: %s (provider=%s, status=%d)", e.Kind, e.Message, e.Provider, e.HTTPStatus)
	}
	return fmt.Sprintf("%s: %s (provider=%s)", e.Kind, e.Message, e.Provider)
}

// Unwrap exposes the underlying cause for errors.Is/As chains. The cause is
// never serialized to callers.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches two canonical errors by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewError builds a canonical error with a sanitized message.
func NewError(kind Kind, provider, message string) *Error {
	return &Error{
		Kind:     kind,
		Provider: provider,
		Message:  Sanitize(message),
	}
}

// WrapError builds a canonical error around a cause, sanitizing the cause's
// text into the message when no explicit message is given.
func WrapError(kind Kind, provider, message string, cause error) *Error {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return &Error{
		Kind:     kind,
		Provider: provider,
		Message:  Sanitize(message),
		cause:    cause,
	}
}

// WithStatus attaches the provider's HTTP status code.
func (e *Error) WithStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// KindOf returns the canonical kind of err, or "" when err is not canonical.
func KindOf(err error) Kind {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Kind
	}
	return ""
}

// IsKind reports whether err is a canonical error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Sanitize strips internal endpoints, key-shaped substrings, and filesystem
// paths from a message and truncates it to a bounded length.
func Sanitize(message string) string {
	message = apiKeyPattern.ReplaceAllString(message, "[redacted]")
	message = urlPattern.ReplaceAllString(message, "[url]")
	message = pathPattern.ReplaceAllString(message, " [path]")
	if len(message) > maxMessageLen {
		cut := maxMessageLen
		// Back up to a rune boundary so the cut never splits a multi-byte
		// character.
		for cut > 0 && !utf8.RuneStart(message[cut]) {
			cut--
		}
		message = message[:cut] + "..."
	}
	return message
}
