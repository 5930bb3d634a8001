package errs

import (
	"encoding/json"
	"net/http"
	"strings"
)

// statusCode turns a status into its stable machine-readable code.
//
//	404 -> "NOT_FOUND"
func statusCode(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "UNKNOWN_STATUS"
	}
	return MakeUpperCaseWithUnderscores(text)
}

// NewUnauthorizedError creates a 401 Unauthorized HTTPError.
func NewUnauthorizedError(message string, override bool) *HTTPError {
	return &HTTPError{
		Code:     statusCode(http.StatusUnauthorized),
		Message:  message,
		Status:   http.StatusUnauthorized,
		Override: override,
	}
}

// NewBadRequestError creates a 400 Bad Request HTTPError.
//
// Extra payload:
//   - code: optional custom code string (if nil, defaults to "BAD_REQUEST")
//   - errors: optional slice of field errors (validation errors)
//   - action: optional client instruction
func NewBadRequestError(message string, override bool, code *string, errors []FieldError, action *Action) *HTTPError {
	formattedCode := statusCode(http.StatusBadRequest)
	if code != nil {
		formattedCode = *code
	}

	return &HTTPError{
		Code:     formattedCode,
		Message:  message,
		Status:   http.StatusBadRequest,
		Override: override,
		Errors:   errors,
		Action:   action,
	}
}

// NewNotFoundError creates a 404 Not Found HTTPError.
//
// The cart endpoint answers 404 when the line item is unknown, for
// instance after another tab already removed it.
func NewNotFoundError(message string, override bool, code *string) *HTTPError {
	formattedCode := statusCode(http.StatusNotFound)
	if code != nil {
		formattedCode = *code
	}

	return &HTTPError{
		Code:     formattedCode,
		Message:  message,
		Status:   http.StatusNotFound,
		Override: override,
	}
}

// NewInternalServerError creates a 500 Internal Server Error HTTPError
// carrying the generic status text only.
func NewInternalServerError() *HTTPError {
	return &HTTPError{
		Code:     statusCode(http.StatusInternalServerError),
		Message:  http.StatusText(http.StatusInternalServerError),
		Status:   http.StatusInternalServerError,
		Override: false,
	}
}

// ValidationError converts a generic validation error into a 400 Bad Request HTTPError.
func ValidationError(err error) *HTTPError {
	return NewBadRequestError("Validation failed: "+err.Error(), false, nil, nil, nil)
}

// errorBody is the shape of a rejection from the cart endpoint:
//
//	{"error": "Item not found"}
//
// Bodies in the HTTPError shape ({"code": ..., "message": ...}) are
// understood too.
type errorBody struct {
	Error   string       `json:"error"`
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors"`
}

// FromResponse builds an HTTPError from a non-2xx reply.
//
// Behavior:
//   - 3xx replies become a redirect Action pointing at location (the
//     endpoint sends the browser to the login page when the session is gone)
//   - a JSON body's "error" or "message" becomes the Message
//   - otherwise the status text is used and Override is set so the page
//     may show its own generic text
func FromResponse(status int, body []byte, location string) *HTTPError {
	e := statusError(status)

	if status >= 300 && status < 400 {
		e = e.WithMessage("Session redirected the cart update")
		e.Action = &Action{
			Type:    ActionTypeRedirect,
			Message: "Please sign in again",
			Value:   location,
		}
		return e
	}

	var parsed errorBody
	if len(body) > 0 && json.Unmarshal(body, &parsed) == nil {
		if parsed.Code != "" {
			e.Code = parsed.Code
		}
		if msg := strings.TrimSpace(parsed.Error); msg != "" {
			e = e.WithMessage(msg)
			e.Override = false
		} else if msg := strings.TrimSpace(parsed.Message); msg != "" {
			e = e.WithMessage(msg)
			e.Override = false
		}
		e.Errors = parsed.Errors
	}

	if e.Message == "" {
		e = e.WithMessage("Cart update failed")
	}

	return e
}

// statusError is the overridable error for status before the body is read.
func statusError(status int) *HTTPError {
	text := http.StatusText(status)

	switch status {
	case http.StatusUnauthorized:
		return NewUnauthorizedError(text, true)
	case http.StatusNotFound:
		return NewNotFoundError(text, true, nil)
	case http.StatusInternalServerError:
		e := NewInternalServerError()
		e.Override = true
		return e
	default:
		return &HTTPError{
			Code:     statusCode(status),
			Message:  text,
			Status:   status,
			Override: true,
		}
	}
}
