package page

import (
	"strconv"
	"sync"

	"github.com/deppfellow/cartpage/internal/cart"
	"github.com/deppfellow/cartpage/internal/dom"
	"golang.org/x/net/html"
)

// binding connects one row's store entry to its views:
//   - the primary quantity nodes next to the row's controls
//   - the secondary node #quantity{id}, looked up on every render
//   - the row #cart-item-{id}, removed on delete
//
// Lock order is store -> document -> binding.
type binding struct {
	itemID string

	mu        sync.Mutex
	primaries map[*html.Node]struct{}

	unsubscribe func()
}

func (b *binding) add(n *html.Node) {
	if n == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.primaries[n] = struct{}{}
}

func (b *binding) nodes() []*html.Node {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]*html.Node, 0, len(b.primaries))
	for n := range b.primaries {
		out = append(out, n)
	}
	return out
}

// bindingFor returns the binding of itemID, creating and subscribing it
// on first use.
func (c *Controller) bindingFor(itemID string) *binding {
	c.mu.Lock()
	defer c.mu.Unlock()

	if b, ok := c.bindings[itemID]; ok {
		return b
	}

	b := &binding{
		itemID:    itemID,
		primaries: make(map[*html.Node]struct{}),
	}
	b.unsubscribe = c.store.Subscribe(itemID, func(snap cart.Snapshot) {
		c.render(b, snap)
	})
	c.bindings[itemID] = b

	return b
}

func (c *Controller) unbindAll() {
	c.mu.Lock()
	bindings := c.bindings
	c.bindings = make(map[string]*binding)
	c.mu.Unlock()

	for _, b := range bindings {
		b.unsubscribe()
	}
}

// render brings the views of b in line with snap.
//
// A missing view is skipped; it never keeps the others from updating.
func (c *Controller) render(b *binding, snap cart.Snapshot) {
	log := c.logger.With().Str("item_id", b.itemID).Uint64("seq", snap.Seq).Logger()

	c.doc.Update(func(root *html.Node) {
		if snap.Removed {
			row := dom.FindByID(root, RowIDPrefix+b.itemID)
			if row == nil {
				log.Warn().Msg("row to remove not found")
				return
			}
			dom.Remove(row)
			log.Debug().Msg("row removed")
			return
		}

		if !snap.Known {
			return
		}
		text := strconv.Itoa(snap.Quantity)

		updated := 0
		for _, n := range b.nodes() {
			if dom.Contains(root, n) {
				dom.SetText(n, text)
				updated++
			}
		}

		if n := dom.FindByID(root, QuantityIDPrefix+b.itemID); n != nil {
			dom.SetText(n, text)
			updated++
		} else {
			log.Debug().Msg("secondary quantity node not found")
		}

		log.Debug().Int("quantity", snap.Quantity).Int("views", updated).Msg("quantity rendered")
	})
}
