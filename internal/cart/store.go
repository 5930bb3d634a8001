// Package cart keeps the quantity of every cart row the page shows.
//
// A Store is the single source of truth for a row's quantity: views
// (the quantity nodes of the page, the row itself) subscribe to it and
// are notified whenever a reply from the cart endpoint is applied.
//
// Per row the Store tracks:
//   - Displayed(q): the row is on the page and shows q
//   - Removed: the server deleted the line; terminal
//
// Every request for a row gets a Token with a sequence number. With
// stale discarding on, a reply is applied only if its sequence number
// is newer than the last one applied, which removes the race between
// rapid clicks whose replies arrive out of order.
package cart

import (
	"sync"

	"github.com/pkg/errors"
)

var (
	// ErrRemoved is returned for operations on a row the server deleted.
	ErrRemoved = errors.New("cart row removed")

	// ErrUnknownToken is returned for tokens the Store never issued.
	ErrUnknownToken = errors.New("unknown request token")
)

// Token identifies one in-flight request for a row.
type Token struct {
	ItemID string
	Seq    uint64
}

// Snapshot is the state of one row.
type Snapshot struct {
	ItemID string

	// Quantity is meaningful only when Known is true.
	Quantity int
	Known    bool

	Removed bool

	// Seq is the sequence number of the last applied reply, 0 if none.
	Seq uint64
}

// Listener is notified with the new state of a row after every applied change.
//
// Listeners run while the Store's lock is held, in apply order. They
// must not call back into the Store.
type Listener func(Snapshot)

type entry struct {
	quantity int
	known    bool
	removed  bool

	issued  uint64
	applied uint64

	listeners map[int]Listener
}

// Store holds row state keyed by item id.
type Store struct {
	mu           sync.Mutex
	items        map[string]*entry
	nextListener int
	discardStale bool
}

// NewStore creates an empty Store. discardStale selects between
// newest-request-wins (true) and last-reply-wins (false).
func NewStore(discardStale bool) *Store {
	return &Store{
		items:        make(map[string]*entry),
		discardStale: discardStale,
	}
}

func (s *Store) entry(id string) *entry {
	e, ok := s.items[id]
	if !ok {
		e = &entry{listeners: make(map[int]Listener)}
		s.items[id] = e
	}
	return e
}

func (e *entry) snapshot(id string) Snapshot {
	return Snapshot{
		ItemID:   id,
		Quantity: e.quantity,
		Known:    e.known,
		Removed:  e.removed,
		Seq:      e.applied,
	}
}

// Seed records the quantity rendered for a row when the page was loaded.
// Listeners are not notified: the page already shows q.
func (s *Store) Seed(id string, q int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entry(id)
	if e.removed || e.applied > 0 {
		return
	}
	e.quantity = q
	e.known = true
}

// Subscribe registers l for changes of row id. The returned function
// removes the subscription.
func (s *Store) Subscribe(id string, l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.nextListener
	s.nextListener++
	s.entry(id).listeners[key] = l

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if e, ok := s.items[id]; ok {
			delete(e.listeners, key)
		}
	}
}

// Begin issues the token for a new request on row id.
func (s *Store) Begin(id string) (Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entry(id)
	if e.removed {
		return Token{}, errors.Wrapf(ErrRemoved, "item %s", id)
	}

	e.issued++
	return Token{ItemID: id, Seq: e.issued}, nil
}

// ApplyQuantity applies a reply carrying a quantity.
//
// It returns false without notifying anyone when the reply is stale or
// the row was removed in the meantime.
func (s *Store) ApplyQuantity(t Token, q int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(t)
	if err != nil {
		return false, err
	}
	if e.removed {
		return false, nil
	}
	if s.discardStale && t.Seq <= e.applied {
		return false, nil
	}

	e.quantity = q
	e.known = true
	e.applied = t.Seq
	s.notify(t.ItemID, e)

	return true, nil
}

// ApplyDelete moves row id to Removed.
//
// A delete is applied even when newer replies were already seen: the
// server never brings a deleted line back, so any later reply for the
// row is stale by definition. Deleting a removed row reports false.
func (s *Store) ApplyDelete(t Token) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(t)
	if err != nil {
		return false, err
	}
	if e.removed {
		return false, nil
	}

	e.removed = true
	if t.Seq > e.applied {
		e.applied = t.Seq
	}
	s.notify(t.ItemID, e)

	return true, nil
}

// Get returns the state of row id.
func (s *Store) Get(id string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[id]
	if !ok {
		return Snapshot{}, false
	}
	return e.snapshot(id), true
}

func (s *Store) lookup(t Token) (*entry, error) {
	e, ok := s.items[t.ItemID]
	if !ok || t.Seq == 0 || t.Seq > e.issued {
		return nil, errors.Wrapf(ErrUnknownToken, "item %s seq %d", t.ItemID, t.Seq)
	}
	return e, nil
}

func (s *Store) notify(id string, e *entry) {
	snap := e.snapshot(id)
	for _, l := range e.listeners {
		l(snap)
	}
}
