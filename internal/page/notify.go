package page

import (
	"context"

	"github.com/deppfellow/cartpage/internal/errs"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Notifier surfaces failed clicks to the user, the way a toast would.
// A failure never changes the document.
type Notifier interface {
	NotifyFailure(ctx context.Context, r Result)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, r Result)

func (f NotifierFunc) NotifyFailure(ctx context.Context, r Result) {
	f(ctx, r)
}

// LogNotifier reports failures as error log lines. The logger carried by
// ctx (zerolog.Ctx) is preferred, so the line keeps the click's fields;
// Logger is the fallback.
type LogNotifier struct {
	Logger *zerolog.Logger
}

func (n LogNotifier) NotifyFailure(ctx context.Context, r Result) {
	log := n.Logger
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		log = l
	}

	event := log.Error().
		Err(r.Err).
		Str("item_id", r.ItemID).
		Str("action", string(r.Action)).
		Uint64("seq", r.Seq)

	var httpErr *errs.HTTPError
	if errors.As(r.Err, &httpErr) {
		event = event.
			Int("status", httpErr.Status).
			Str("code", httpErr.Code)
		if httpErr.Action != nil {
			event = event.
				Str("next_action", string(httpErr.Action.Type)).
				Str("next_value", httpErr.Action.Value)
		}
	}

	event.Msg(FailureMessage(r.Err))
}

// FailureMessage is the text shown to the user for a failed click.
func FailureMessage(err error) string {
	var httpErr *errs.HTTPError
	if errors.As(err, &httpErr) && !httpErr.Override {
		return httpErr.Message
	}
	return "Could not update your cart. Please try again."
}
