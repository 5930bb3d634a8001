package page

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/deppfellow/cartpage/internal/cart"
	"github.com/deppfellow/cartpage/internal/cartapi"
	"github.com/deppfellow/cartpage/internal/dom"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"
)

// Options configures a Controller. Client is required.
type Options struct {
	Client Updater

	// Store defaults to a stale-discarding cart.Store.
	Store *cart.Store

	// Logger defaults to a no-op logger.
	Logger *zerolog.Logger

	// NewRelic may be nil.
	NewRelic *newrelic.Application

	// Notifier defaults to LogNotifier on Logger.
	Notifier Notifier

	// OnSettled is called once per click that was dispatched, after its
	// reply (or failure) was handled.
	OnSettled func(Result)
}

type lifecycle int

const (
	stateNew lifecycle = iota
	stateActive
	stateClosed
)

// Controller is the page controller.
type Controller struct {
	doc       *dom.Document
	client    Updater
	store     *cart.Store
	logger    *zerolog.Logger
	nrApp     *newrelic.Application
	notifier  Notifier
	onSettled func(Result)

	mu       sync.Mutex
	state    lifecycle
	ctx      context.Context
	cancel   context.CancelFunc
	bindings map[string]*binding

	inflight sync.WaitGroup
}

// New creates a Controller for doc. It does nothing until Init.
func New(doc *dom.Document, opts Options) *Controller {
	c := &Controller{
		doc:       doc,
		client:    opts.Client,
		store:     opts.Store,
		logger:    opts.Logger,
		nrApp:     opts.NewRelic,
		notifier:  opts.Notifier,
		onSettled: opts.OnSettled,
		bindings:  make(map[string]*binding),
	}

	if c.store == nil {
		c.store = cart.NewStore(true)
	}
	if c.logger == nil {
		nop := zerolog.Nop()
		c.logger = &nop
	}
	if c.notifier == nil {
		c.notifier = LogNotifier{Logger: c.logger}
	}

	return c
}

// Store returns the quantity store backing the page.
func (c *Controller) Store() *cart.Store {
	return c.store
}

// control is a plus/minus control resolved from an event.
type control struct {
	itemID  string
	action  cartapi.Action
	primary *html.Node
}

func controlAction(n *html.Node) (cartapi.Action, bool) {
	switch {
	case dom.HasClass(n, PlusClass):
		return cartapi.ActionPlus, true
	case dom.HasClass(n, MinusClass):
		return cartapi.ActionMinus, true
	default:
		return "", false
	}
}

func isControl(n *html.Node) bool {
	_, ok := controlAction(n)
	return ok
}

func resolveControl(n *html.Node) control {
	action, _ := controlAction(n)
	return control{
		itemID:  dom.Attr(n, ItemAttr),
		action:  action,
		primary: dom.ElementChild(n.Parent, quantityChild),
	}
}

// Init binds the controls present in the document, seeds the store with
// the quantities they show and activates the delegated listener. Rows
// added later are bound on their first click.
//
// ctx bounds every request the controller sends until Close.
func (c *Controller) Init(ctx context.Context) error {
	c.mu.Lock()
	if c.state != stateNew {
		c.mu.Unlock()
		return ErrAlreadyInitialized
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.state = stateActive
	c.mu.Unlock()

	type seed struct {
		ctl  control
		text string
	}
	var seeds []seed

	c.doc.View(func(root *html.Node) {
		dom.Walk(root, func(n *html.Node) bool {
			if !isControl(n) {
				return true
			}
			ctl := resolveControl(n)
			if ctl.itemID == "" {
				return true
			}
			text := dom.Text(ctl.primary)
			if ctl.primary == nil {
				text = dom.Text(dom.FindByID(root, QuantityIDPrefix+ctl.itemID))
			}
			seeds = append(seeds, seed{ctl: ctl, text: text})
			return true
		})
	})

	for _, s := range seeds {
		c.bindingFor(s.ctl.itemID).add(s.ctl.primary)
		if q, err := strconv.Atoi(strings.TrimSpace(s.text)); err == nil {
			c.store.Seed(s.ctl.itemID, q)
		}
	}

	c.logger.Info().
		Int("controls", len(seeds)).
		Int("rows", c.boundRows()).
		Msg("cart page initialized")

	return nil
}

// Dispatch is the delegated listener: it receives every event of the
// page and handles clicks on, or inside, a plus/minus control.
//
// Events outside a control are ignored and return nil. Request and
// reply handling continue asynchronously; their outcome is reported to
// OnSettled and, on failure, to the Notifier.
func (c *Controller) Dispatch(ev Event) error {
	if ev.Type != EventClick || ev.Target == nil {
		return nil
	}

	c.mu.Lock()
	switch c.state {
	case stateNew:
		c.mu.Unlock()
		return ErrNotInitialized
	case stateClosed:
		c.mu.Unlock()
		return ErrClosed
	}
	ctx := c.ctx
	c.inflight.Add(1)
	c.mu.Unlock()

	var (
		ctl      control
		found    bool
		attached bool
	)
	c.doc.View(func(root *html.Node) {
		n := dom.Closest(ev.Target, isControl)
		if n == nil {
			return
		}
		found = true
		ctl = resolveControl(n)
		attached = dom.Contains(root, n)
	})

	if !found {
		c.inflight.Done()
		return nil
	}
	if !attached {
		c.inflight.Done()
		return errors.Wrapf(ErrRowRemoved, "item %s", ctl.itemID)
	}

	return c.handleClick(ctx, ctl)
}

// Click dispatches a click on target.
func (c *Controller) Click(target *html.Node) error {
	return c.Dispatch(Event{Type: EventClick, Target: target})
}

// Wait blocks until every dispatched click has settled.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

// Close detaches the listener and waits for in-flight clicks. When ctx
// ends first, the remaining requests are canceled and Close returns
// ctx's error once they settled.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.state == stateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = stateClosed
	cancel := c.cancel
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = errors.Wrap(ctx.Err(), "in-flight cart updates canceled")
		if cancel != nil {
			cancel()
		}
		<-done
	}

	if cancel != nil {
		cancel()
	}
	c.unbindAll()

	c.logger.Info().Msg("cart page closed")
	return err
}

// Rows lists the cart rows currently in the document, in document order.
func (c *Controller) Rows() []Row {
	type found struct {
		id   string
		text string
	}
	var rows []found

	c.doc.View(func(root *html.Node) {
		dom.Walk(root, func(n *html.Node) bool {
			if n.Type != html.ElementNode {
				return true
			}
			id := dom.Attr(n, "id")
			if !strings.HasPrefix(id, RowIDPrefix) {
				return true
			}
			itemID := strings.TrimPrefix(id, RowIDPrefix)
			text := dom.Text(dom.FindByID(n, QuantityIDPrefix+itemID))
			if text == "" {
				if ctl := firstControl(n); ctl != nil {
					text = dom.Text(dom.ElementChild(ctl.Parent, quantityChild))
				}
			}
			rows = append(rows, found{id: itemID, text: strings.TrimSpace(text)})
			return true
		})
	})

	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		row := Row{ItemID: r.id, Text: r.text}
		if snap, ok := c.store.Get(r.id); ok && snap.Known {
			row.Quantity, row.Known = snap.Quantity, true
		} else if q, err := strconv.Atoi(r.text); err == nil {
			row.Quantity, row.Known = q, true
		}
		out = append(out, row)
	}
	return out
}

func firstControl(root *html.Node) *html.Node {
	var found *html.Node
	dom.Walk(root, func(n *html.Node) bool {
		if isControl(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

func (c *Controller) boundRows() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bindings)
}

// BoundItems returns the ids of the rows the controller has bound.
func (c *Controller) BoundItems() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.bindings))
	for id := range c.bindings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
