// Package toolifyerr defines the typed error kinds the proxy core
// distinguishes when deciding an HTTP status and when rendering an
// error body back to the client, in whichever wire format the client
// is talking.
//
// Grounded on proxy/handler.go's fmt.Errorf("...: %w", err) wrapping
// idiom, extended with a Kind() method: the teacher only ever spoke
// one client format, so it never needed per-format error rendering.
package toolifyerr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ImogeneOctaviap794/Toolify-code/types"
)

// Kind classifies an Error for status-code mapping and client-facing
// rendering.
type Kind int

const (
	// KindMalformedRequest: the client's request body could not be
	// decoded for its declared format. 400.
	KindMalformedRequest Kind = iota
	// KindUnauthorized: missing or unrecognized client API key. 401.
	KindUnauthorized
	// KindModelUnavailable: no configured upstream matches the
	// requested model. 404.
	KindModelUnavailable
	// KindUpstreamRefused: an upstream returned a terminal 4xx. Mapped
	// through with the upstream's own status where possible.
	KindUpstreamRefused
	// KindUpstreamExhausted: every priority-ordered candidate failed
	// with a retriable class. 502.
	KindUpstreamExhausted
	// KindDeadlineExceeded: the request's context deadline elapsed
	// before an upstream responded. 504.
	KindDeadlineExceeded
	// KindStreamAborted: the connection to the client broke mid-stream,
	// after at least one byte was already written. Not renderable —
	// there is no response left to shape.
	KindStreamAborted
)

// Error is a typed, wrapped error carrying enough information to
// choose an HTTP status and render a format-appropriate body.
type Error struct {
	Kind       Kind
	Message    string
	Upstream   string // upstream name, when Kind == KindUpstreamRefused/Exhausted
	StatusHint int    // upstream's own status code, when known; 0 otherwise
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an Error of the given kind wrapping cause (cause may
// be nil).
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// Wrapf is the fmt.Errorf-shaped convenience the teacher's handler
// reached for throughout proxy/handler.go, typed with a Kind.
func Wrapf(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// HTTPStatus maps a Kind to the status code written to the client.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindMalformedRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindModelUnavailable:
		return http.StatusNotFound
	case KindUpstreamRefused:
		if e.StatusHint >= 400 && e.StatusHint < 500 {
			return e.StatusHint
		}
		return http.StatusBadGateway
	case KindUpstreamExhausted:
		return http.StatusBadGateway
	case KindDeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// errorBody is the shape written for each client wire format. Each
// format nests the same message/type/code fields differently, mirroring
// each API's own error envelope.
type errorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func (e *Error) body() errorBody {
	code := kindCode(e.Kind)
	return errorBody{Type: "error", Message: e.Error(), Code: code}
}

func kindCode(k Kind) string {
	switch k {
	case KindMalformedRequest:
		return "invalid_request"
	case KindUnauthorized:
		return "unauthorized"
	case KindModelUnavailable:
		return "model_not_found"
	case KindUpstreamRefused:
		return "upstream_refused"
	case KindUpstreamExhausted:
		return "upstream_exhausted"
	case KindDeadlineExceeded:
		return "deadline_exceeded"
	default:
		return "internal_error"
	}
}

// WriteJSON writes the format-appropriate JSON error envelope and
// status code to w. Each client format wraps errorBody under its own
// top-level key, matching the shape real clients of that API expect.
func WriteJSON(w http.ResponseWriter, format types.Format, err *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus())

	body := err.body()
	switch format {
	case types.FormatAnthropic:
		json.NewEncoder(w).Encode(map[string]interface{}{
			"type":  "error",
			"error": body,
		})
	case types.FormatGemini:
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{
				"code":    err.HTTPStatus(),
				"message": body.Message,
				"status":  body.Code,
			},
		})
	default: // OpenAI and fallback
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": body,
		})
	}
}

// As is the errors.As convenience for callers that receive a plain
// error and want to know whether it carries a Kind.
func As(err error) (*Error, bool) {
	var te *Error
	ok := errors.As(err, &te)
	return te, ok
}
