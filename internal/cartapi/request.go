// Package cartapi is the client for the cart mutation endpoint.
//
// The endpoint takes a form-encoded POST with the line item id and an
// action, and answers with the new quantity or a delete signal:
//
//	POST /update-cart  item_id=7&action=minus
//	200 {"success": true, "quantity": 2}
//	200 {"success": true, "delete": true}
//	404 {"error": "Item not found"}
package cartapi

import (
	"net/url"

	"github.com/deppfellow/cartpage/internal/validation"
	"github.com/pkg/errors"
)

// Action is the mutation applied to a line item.
type Action string

const (
	ActionPlus  Action = "plus"
	ActionMinus Action = "minus"
)

// ErrUnknownAction is returned by ParseAction.
var ErrUnknownAction = errors.New("unknown cart action")

// ParseAction accepts the two actions the endpoint is known to support.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionPlus, ActionMinus:
		return a, nil
	default:
		return "", errors.Wrapf(ErrUnknownAction, "%q", s)
	}
}

// UpdateRequest is one click's worth of cart mutation.
type UpdateRequest struct {
	ItemID string `form:"item_id" validate:"required"`
	Action Action `form:"action" validate:"required,oneof=plus minus"`
}

// Validate implements validation.Validatable.
func (r *UpdateRequest) Validate() error {
	return validation.Struct(r)
}

// Form encodes the request body.
func (r *UpdateRequest) Form() url.Values {
	return url.Values{
		"item_id": {r.ItemID},
		"action":  {string(r.Action)},
	}
}

// UpdateResponse is a successful reply.
//
// Only Quantity and Delete are read; Success is kept for logging.
type UpdateResponse struct {
	Success  bool `json:"success"`
	Quantity *int `json:"quantity"`
	Delete   bool `json:"delete"`
}
