package page

import (
	"context"
	"time"

	"github.com/deppfellow/cartpage/internal/cart"
	"github.com/deppfellow/cartpage/internal/cartapi"
	"github.com/deppfellow/cartpage/internal/logger"
	"github.com/deppfellow/cartpage/internal/validation"
	"github.com/newrelic/go-agent/v3/integrations/nrpkgerrors"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// handleClick is the shared pipeline of the increment and decrement
// handlers:
//
//   - validation of the click (item id present, known action)
//   - a sequence token from the store
//   - one asynchronous request to the cart endpoint
//   - applying the reply through the store, which re-renders the views
//   - logging, New Relic attributes, failure notification
//
// The caller has already counted the click in c.inflight.
func (c *Controller) handleClick(ctx context.Context, ctl control) error {
	start := time.Now()

	txn := c.nrApp.StartTransaction("cart/" + string(ctl.action))
	txn.AddAttribute("cart.item_id", ctl.itemID)
	txn.AddAttribute("cart.action", string(ctl.action))

	log := logger.WithTraceContext(c.logger.With().
		Str("operation", "cart_click").
		Str("item_id", ctl.itemID).
		Str("action", string(ctl.action)).
		Logger(), txn)

	result := Result{ItemID: ctl.itemID, Action: ctl.action}

	// ---------------- Validation phase ---------------------------------------
	req := cartapi.UpdateRequest{ItemID: ctl.itemID, Action: ctl.action}
	if err := validation.Check(&req); err != nil {
		log.Error().Err(err).Msg("click validation failed")

		txn.NoticeError(nrpkgerrors.Wrap(err))
		txn.AddAttribute("validation.status", "failed")
		txn.End()

		result.Outcome, result.Err = OutcomeFailed, err
		result.Duration = time.Since(start)
		c.settle(ctx, &log, result)
		c.inflight.Done()
		return err
	}

	c.bindingFor(ctl.itemID).add(ctl.primary)

	tok, err := c.store.Begin(ctl.itemID)
	if err != nil {
		log.Debug().Err(err).Msg("click on removed row ignored")
		txn.Ignore()
		c.inflight.Done()
		if errors.Is(err, cart.ErrRemoved) {
			return errors.Wrapf(ErrRowRemoved, "item %s", ctl.itemID)
		}
		return err
	}
	result.Seq = tok.Seq

	log = log.With().Uint64("seq", tok.Seq).Logger()
	log.Info().Msg("handling cart click")

	// ---------------- Request phase ------------------------------------------
	go func() {
		defer c.inflight.Done()
		defer txn.End()

		reqCtx := newrelic.NewContext(ctx, txn)
		reqCtx = log.WithContext(reqCtx)

		requestStart := time.Now()
		resp, err := c.client.UpdateCart(reqCtx, req)
		requestDuration := time.Since(requestStart)

		result = c.apply(tok, ctl.action, result, resp, err)
		result.Duration = time.Since(start)

		txn.AddAttribute("cart.outcome", string(result.Outcome))
		txn.AddAttribute("request.duration_ms", requestDuration.Milliseconds())
		txn.AddAttribute("total.duration_ms", result.Duration.Milliseconds())

		if result.Err != nil {
			txn.NoticeError(nrpkgerrors.Wrap(result.Err))
			log.Error().
				Err(result.Err).
				Dur("request_duration", requestDuration).
				Dur("total_duration", result.Duration).
				Msg("cart click failed")
		} else {
			log.Info().
				Str("outcome", string(result.Outcome)).
				Int("quantity", result.Quantity).
				Dur("request_duration", requestDuration).
				Dur("total_duration", result.Duration).
				Msg("cart click completed")
		}

		c.settle(ctx, &log, result)
	}()

	return nil
}

// apply feeds a reply into the store. Only minus honours the delete
// signal; any other reply must carry a quantity.
func (c *Controller) apply(tok cart.Token, action cartapi.Action, result Result, resp *cartapi.UpdateResponse, err error) Result {
	if err != nil {
		result.Outcome, result.Err = OutcomeFailed, err
		return result
	}

	var applied bool
	switch {
	case resp.Delete && action == cartapi.ActionMinus:
		applied, err = c.store.ApplyDelete(tok)
		result.Outcome = OutcomeRemoved

	case resp.Quantity != nil:
		result.Quantity = *resp.Quantity
		applied, err = c.store.ApplyQuantity(tok, *resp.Quantity)
		result.Outcome = OutcomeUpdated

	default:
		err = errors.Wrapf(cartapi.ErrMalformedResponse, "%s reply without quantity", action)
	}

	if err != nil {
		result.Outcome, result.Err = OutcomeFailed, err
		return result
	}
	if !applied {
		result.Outcome = OutcomeStale
	}
	return result
}

func (c *Controller) settle(ctx context.Context, log *zerolog.Logger, result Result) {
	if result.Outcome == OutcomeFailed {
		c.notifier.NotifyFailure(log.WithContext(ctx), result)
	}
	if c.onSettled != nil {
		c.onSettled(result)
	}
}
