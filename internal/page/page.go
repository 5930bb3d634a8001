// Package page is the cart page controller.
//
// It owns a dom.Document, routes click events to the plus/minus
// handlers through one delegated listener on the document root, and
// applies replies from the cart endpoint through a cart.Store, so each
// row's quantity has one value and every view of it follows.
//
// Page contract:
//   - controls carry class `plus-cart` or `minus-cart` and the item id in `pid`
//   - the third element child of a control's parent shows the quantity
//   - `#quantity{id}` shows it a second time
//   - `#cart-item-{id}` is the row removed on delete
package page

import (
	"context"
	"time"

	"github.com/deppfellow/cartpage/internal/cartapi"
	"github.com/pkg/errors"
	"golang.org/x/net/html"
)

const (
	PlusClass        = "plus-cart"
	MinusClass       = "minus-cart"
	ItemAttr         = "pid"
	RowIDPrefix      = "cart-item-"
	QuantityIDPrefix = "quantity"

	// quantityChild is the element index of the quantity node among the
	// children of a control's parent.
	quantityChild = 2
)

var (
	ErrNotInitialized     = errors.New("page controller not initialized")
	ErrAlreadyInitialized = errors.New("page controller already initialized")
	ErrClosed             = errors.New("page controller closed")

	// ErrRowRemoved is returned for clicks on a row the server deleted.
	ErrRowRemoved = errors.New("cart row removed")
)

// Updater sends one cart mutation. *cartapi.Client implements it.
type Updater interface {
	UpdateCart(ctx context.Context, req cartapi.UpdateRequest) (*cartapi.UpdateResponse, error)
}

// EventType names a DOM event. Only clicks are handled.
type EventType string

const EventClick EventType = "click"

// Event is a DOM event delivered to the page. Target is the node the
// user interacted with, possibly a descendant of a control.
type Event struct {
	Type   EventType
	Target *html.Node
}

// Outcome is how a click ended.
type Outcome string

const (
	OutcomeUpdated Outcome = "updated"
	OutcomeRemoved Outcome = "removed"
	// OutcomeStale means the reply arrived after a newer one was applied
	// and was dropped.
	OutcomeStale  Outcome = "stale"
	OutcomeFailed Outcome = "failed"
)

// Result describes a settled click.
type Result struct {
	ItemID   string
	Action   cartapi.Action
	Seq      uint64
	Outcome  Outcome
	Quantity int
	Err      error
	Duration time.Duration
}

// Row is a cart row currently in the document.
type Row struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
	Known    bool   `json:"known"`
	Text     string `json:"text"`
}
