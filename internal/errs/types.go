package errs

import "strings"

// FieldError represents a field-level validation error.
// Example:
//
//	{ "field": "item_id", "error": "is required" }
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ActionType is a string-based enum describing what the page should do next.
type ActionType string

const (
	// ActionTypeRedirect tells the page it should navigate somewhere,
	// typically the login page when the session expired.
	ActionTypeRedirect ActionType = "redirect"
)

// Action describes an optional "what the page should do next" instruction.
type Action struct {
	Type    ActionType `json:"type"`
	Message string     `json:"message"`
	Value   string     `json:"value"`
}

// HTTPError is the error type for anything the cart endpoint refused,
// and for requests the page refused to send.
//
// Fields:
//   - Code: machine-friendly code (e.g. "NOT_FOUND").
//   - Message: human-friendly message, shown in the failure toast.
//   - Status: HTTP status code (400 for requests rejected locally).
//   - Override: whether the page may replace Message with a generic text.
//   - Errors: per-field errors (validation).
//   - Action: client instruction (optional).
type HTTPError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Status   int    `json:"status"`
	Override bool   `json:"override"`

	Errors []FieldError `json:"errors"`

	Action *Action `json:"action"`
}

// Error makes *HTTPError satisfy the error interface.
func (e *HTTPError) Error() string {
	return e.Message
}

// Is reports whether target is also an *HTTPError.
//
// Code and Status are not compared: errors.Is(err, &HTTPError{}) answers
// "did the endpoint (or the local validator) reject this?".
func (e *HTTPError) Is(target error) bool {
	_, ok := target.(*HTTPError)

	return ok
}

// WithMessage returns a copy of this HTTPError with Message replaced.
func (e *HTTPError) WithMessage(message string) *HTTPError {
	return &HTTPError{
		Code:     e.Code,
		Message:  message,
		Status:   e.Status,
		Override: e.Override,
		Errors:   e.Errors,
		Action:   e.Action,
	}
}

// MakeUpperCaseWithUnderscores converts a string into UPPER_CASE_WITH_UNDERSCORES.
//
//	"Not Found" -> "NOT_FOUND"
func MakeUpperCaseWithUnderscores(str string) string {
	return strings.ToUpper(strings.ReplaceAll(str, " ", "_"))
}
