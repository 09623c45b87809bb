package confluence

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a failed call.  Every error returned by API methods that came from the wire is
// an *APIError carrying one of these.
type Kind int

const (
	KindAPI Kind = iota
	KindAuth
	KindNotFound
	KindConflict
	KindRateLimited
	KindServer
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth failure"
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate limited"
	case KindServer:
		return "server error"
	case KindTransport:
		return "transport failure"
	default:
		return "api failure"
	}
}

// Retryable reports whether a failure of this kind is transient.  Auth, not-found and conflict
// failures are results, not faults.
func (k Kind) Retryable() bool {
	switch k {
	case KindRateLimited, KindServer, KindTransport:
		return true
	default:
		return false
	}
}

// Sentinels for errors.Is.  errors.Is(err, ErrConflict) matches any *APIError of KindConflict.
var (
	ErrAPI         = &APIError{Kind: KindAPI}
	ErrAuth        = &APIError{Kind: KindAuth}
	ErrNotFound    = &APIError{Kind: KindNotFound}
	ErrConflict    = &APIError{Kind: KindConflict}
	ErrRateLimited = &APIError{Kind: KindRateLimited}
	ErrServer      = &APIError{Kind: KindServer}
	ErrTransport   = &APIError{Kind: KindTransport}
)

type APIError struct {
	Kind Kind

	// Operation being attempted, e.g. "update_page".
	Op string

	// HTTP status; zero for transport failures.
	Status int

	// Server-supplied message (JSON "message" field or raw body).
	Message string

	PageID string

	// Populated for version conflicts on update.  ActualVersion is zero when the follow-up
	// read failed.
	AttemptedVersion int
	ActualVersion    int

	// Underlying transport error, if any.
	Err error
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString("confluence: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (%d)", e.Status)
	}
	if e.PageID != "" {
		fmt.Fprintf(&b, " page %s", e.PageID)
	}
	if e.Kind == KindConflict && e.AttemptedVersion > 0 {
		fmt.Fprintf(&b, ": tried to write version %d", e.AttemptedVersion)
		if e.ActualVersion > 0 {
			fmt.Fprintf(&b, " but remote is at version %d", e.ActualVersion)
		}
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

func (e *APIError) Unwrap() error { return e.Err }

// Is matches on Kind only, so the package sentinels work with errors.Is.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of the first *APIError in err's chain.
func KindOf(err error) (Kind, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind, true
	}
	return KindAPI, false
}

// IsRetryable is the retry predicate used by RetryPolicy.
func IsRetryable(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind.Retryable()
}

// duplicateTitleMarker is how Confluence words a create against an existing title; it answers
// 400 rather than 409 for that case.
const duplicateTitleMarker = "title already exists"

func classifyStatus(status int, message string) Kind {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict:
		return KindConflict
	case status == http.StatusBadRequest && strings.Contains(strings.ToLower(message), duplicateTitleMarker):
		return KindConflict
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500 && status < 600:
		return KindServer
	default:
		return KindAPI
	}
}
