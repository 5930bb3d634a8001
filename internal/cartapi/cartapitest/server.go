// Package cartapitest runs an in-process update-cart endpoint for tests.
//
// The fake follows the real endpoint's contract: unknown items answer
// 404, plus adds one, minus removes one and deletes the line once the
// quantity drops below one. On top of that tests can hold replies and
// release them in any order, force an error status, send a raw body
// or demand a login.
package cartapitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// UpdatePath is where the fake endpoint listens.
const UpdatePath = "/update-cart"

const requestIDHeader = "X-Request-ID"

// Request is one call the endpoint received.
type Request struct {
	ItemID    string
	Action    string
	RequestID string

	// Arrival is the 1-based order in which the endpoint saw the call.
	Arrival int
}

// Server is the fake endpoint.
type Server struct {
	URL string

	srv *httptest.Server

	mu       sync.Mutex
	items    map[string]int
	requests []Request
	holding  bool
	gates    map[int]chan struct{}

	failStatus   int
	failBody     string
	rawBody      string
	requireLogin bool

	arrivals chan Request
}

// NewServer starts the endpoint with the given cart lines (item id -> quantity).
func NewServer(items map[string]int) *Server {
	s := &Server{
		items:    make(map[string]int, len(items)),
		gates:    make(map[int]chan struct{}),
		arrivals: make(chan Request, 1024),
	}
	for id, q := range items {
		s.items[id] = q
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.POST(UpdatePath, s.handleUpdate)

	s.srv = httptest.NewServer(e)
	s.URL = s.srv.URL

	return s
}

// Close releases held replies and stops the endpoint.
func (s *Server) Close() {
	s.ReleaseAll()
	s.srv.Close()
}

// Hold makes every following reply wait for Release.
func (s *Server) Hold() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holding = true
}

// Release lets the reply of the arrival-th call go out.
func (s *Server) Release(arrival int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gate, ok := s.gates[arrival]; ok {
		close(gate)
		delete(s.gates, arrival)
	}
}

// ReleaseAll lets every held reply go out and stops holding.
func (s *Server) ReleaseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.holding = false
	for arrival, gate := range s.gates {
		close(gate)
		delete(s.gates, arrival)
	}
}

// NextArrival waits for the next call to reach the endpoint.
func (s *Server) NextArrival(timeout time.Duration) (Request, bool) {
	select {
	case r := <-s.arrivals:
		return r, true
	case <-time.After(timeout):
		return Request{}, false
	}
}

// FailWith makes every following call answer status with body.
// A status of 0 restores normal replies.
func (s *Server) FailWith(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStatus, s.failBody = status, body
}

// RespondRaw makes every following call answer 200 with body.
func (s *Server) RespondRaw(body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rawBody = body
}

// RequireLogin makes every following call redirect to the login page.
func (s *Server) RequireLogin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requireLogin = true
}

// Requests returns the calls received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Quantity returns the endpoint's quantity for id; false once deleted.
func (s *Server) Quantity(id string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.items[id]
	return q, ok
}

func (s *Server) handleUpdate(c echo.Context) error {
	s.mu.Lock()

	req := Request{
		ItemID:    c.FormValue("item_id"),
		Action:    c.FormValue("action"),
		RequestID: c.Request().Header.Get(requestIDHeader),
		Arrival:   len(s.requests) + 1,
	}
	s.requests = append(s.requests, req)

	if s.requireLogin {
		s.mu.Unlock()
		s.arrived(req)
		return c.Redirect(http.StatusFound, "/login?next="+UpdatePath)
	}

	status, body := s.apply(req)

	var gate chan struct{}
	if s.holding {
		gate = make(chan struct{})
		s.gates[req.Arrival] = gate
	}
	s.mu.Unlock()

	s.arrived(req)

	if gate != nil {
		select {
		case <-gate:
		case <-c.Request().Context().Done():
			return nil
		}
	}

	return c.JSONBlob(status, body)
}

func (s *Server) arrived(r Request) {
	select {
	case s.arrivals <- r:
	default:
	}
}

// apply mutates the cart and returns the reply. Callers hold s.mu.
func (s *Server) apply(r Request) (int, []byte) {
	if s.failStatus != 0 {
		return s.failStatus, []byte(s.failBody)
	}

	q, ok := s.items[r.ItemID]
	if !ok {
		return http.StatusNotFound, mustJSON(map[string]any{"error": "Item not found"})
	}

	switch r.Action {
	case "plus":
		q++
	case "minus":
		q--
		if q < 1 {
			delete(s.items, r.ItemID)
			return http.StatusOK, mustJSON(map[string]any{"success": true, "delete": true})
		}
	}
	s.items[r.ItemID] = q

	if s.rawBody != "" {
		return http.StatusOK, []byte(s.rawBody)
	}

	return http.StatusOK, mustJSON(map[string]any{"success": true, "quantity": q})
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
