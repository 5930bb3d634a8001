// Package dom holds the cart page as a parsed HTML tree.
//
// The page controller reads it while routing clicks and writes it
// when replies arrive from the cart endpoint. Both happen from
// different goroutines, so every access goes through Document.View
// or Document.Update.
package dom

import (
	"bytes"
	"io"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	// ErrNoElement is returned when an id lookup has no match.
	ErrNoElement = errors.New("element not found")
)

// Document is a parsed HTML page guarded by a read/write lock.
type Document struct {
	mu   sync.RWMutex
	root *html.Node
}

// Parse reads a full HTML page.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse page")
	}
	return &Document{root: root}, nil
}

// ParseString is Parse over a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// View runs fn with read access to the tree. fn must not modify it.
func (d *Document) View(fn func(root *html.Node)) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	fn(d.root)
}

// Update runs fn with exclusive access to the tree.
func (d *Document) Update(fn func(root *html.Node)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.root)
}

// ElementByID returns the element with the given id, or nil.
func (d *Document) ElementByID(id string) *html.Node {
	var n *html.Node
	d.View(func(root *html.Node) {
		n = FindByID(root, id)
	})
	return n
}

// TextByID returns the text content of the element with the given id.
func (d *Document) TextByID(id string) (string, error) {
	var (
		text  string
		found bool
	)
	d.View(func(root *html.Node) {
		if n := FindByID(root, id); n != nil {
			text, found = Text(n), true
		}
	})
	if !found {
		return "", errors.Wrapf(ErrNoElement, "#%s", id)
	}
	return text, nil
}

// AppendFragment parses fragment in the context of the element with
// parentID and appends the resulting nodes to it. It is how rows are
// added after the page was loaded.
func (d *Document) AppendFragment(parentID, fragment string) error {
	var err error
	d.Update(func(root *html.Node) {
		parent := FindByID(root, parentID)
		if parent == nil {
			err = errors.Wrapf(ErrNoElement, "#%s", parentID)
			return
		}

		var nodes []*html.Node
		nodes, err = html.ParseFragment(strings.NewReader(fragment), contextFor(parent))
		if err != nil {
			err = errors.Wrap(err, "failed to parse fragment")
			return
		}

		for _, n := range nodes {
			parent.AppendChild(n)
		}
	})
	return err
}

// contextFor returns a detached copy of parent usable as fragment
// parsing context; ParseFragment only reads its type and data.
func contextFor(parent *html.Node) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     parent.Data,
		DataAtom: atom.Lookup([]byte(parent.Data)),
	}
}

// Render writes the page as HTML.
func (d *Document) Render(w io.Writer) error {
	var err error
	d.View(func(root *html.Node) {
		err = html.Render(w, root)
	})
	return errors.Wrap(err, "failed to render page")
}

// String renders the page into a string.
func (d *Document) String() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}
