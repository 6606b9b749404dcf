package apperr

import (
	"errors"
	"net/http"
	"sort"
	"strings"
)

// Kind classifies an error into the categories callers can act on.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindPermissionDenied
	KindNotFound
	KindConflict
	KindInvalidInput
)

var (
	// ErrUnauthenticated is returned when no valid session accompanies a call.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrPermissionDenied is returned when the caller's role or ownership does not allow the operation.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNotFound is returned when the target record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned for duplicate keys and records that already left PENDING.
	ErrConflict = errors.New("conflict")
	// ErrInvalidInput is returned when required fields are missing or malformed.
	ErrInvalidInput = errors.New("invalid input")
)

type FieldIssue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Error carries a caller-safe message next to its Kind.
type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldIssue
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return sentinel(e.Kind)
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Unauthenticated(message string) *Error {
	return New(KindUnauthenticated, message)
}

func Forbidden(message string) *Error {
	return New(KindPermissionDenied, message)
}

func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

func Conflict(message string) *Error {
	return New(KindConflict, message)
}

func Invalid(message string, fields ...FieldIssue) *Error {
	return &Error{Kind: KindInvalidInput, Message: message, Fields: fields}
}

// KindOf reports the Kind of err, falling back to KindInternal for anything
// not produced by this package.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	}
	return KindInternal
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func Code(kind Kind) string {
	switch kind {
	case KindUnauthenticated:
		return "unauthorized"
	case KindPermissionDenied:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvalidInput:
		return "validation_error"
	default:
		return "internal_error"
	}
}

func sentinel(kind Kind) error {
	switch kind {
	case KindUnauthenticated:
		return ErrUnauthenticated
	case KindPermissionDenied:
		return ErrPermissionDenied
	case KindNotFound:
		return ErrNotFound
	case KindConflict:
		return ErrConflict
	case KindInvalidInput:
		return ErrInvalidInput
	}
	return nil
}

// Validator collects field issues and turns them into one InvalidInput error.
type Validator struct {
	issues []FieldIssue
}

func NewValidator() *Validator {
	return &Validator{issues: make([]FieldIssue, 0, 4)}
}

func (v *Validator) Add(field, reason string) {
	field = strings.TrimSpace(field)
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return
	}
	v.issues = append(v.issues, FieldIssue{Field: field, Reason: reason})
}

func (v *Validator) Required(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, "is required")
	}
}

// Enum accepts an empty value; pair it with Required when the field is mandatory.
func (v *Validator) Enum(field, value string, allowed []string) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	if normalized == "" {
		return
	}
	for _, candidate := range allowed {
		if normalized == strings.ToUpper(candidate) {
			return
		}
	}
	v.Add(field, "must be one of "+strings.Join(allowed, ", "))
}

func (v *Validator) HasIssues() bool {
	return v != nil && len(v.issues) > 0
}

func (v *Validator) Issues() []FieldIssue {
	if v == nil || len(v.issues) == 0 {
		return nil
	}
	out := make([]FieldIssue, len(v.issues))
	copy(out, v.issues)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Field == out[j].Field {
			return out[i].Reason < out[j].Reason
		}
		return out[i].Field < out[j].Field
	})
	return out
}

// Err returns nil when no issues were collected.
func (v *Validator) Err() error {
	if !v.HasIssues() {
		return nil
	}
	return Invalid("payload validation failed", v.Issues()...)
}
