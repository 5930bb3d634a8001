package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/deppfellow/cartpage/internal/cartapi/cartapitest"
)

const savedPage = `<html><body><div id="cart">
<div id="cart-item-42"><div><a class="minus-cart" pid="42">-</a><a class="plus-cart" pid="42">+</a><p>4</p></div></div>
<div id="cart-item-7"><div><a class="minus-cart" pid="7">-</a><a class="plus-cart" pid="7">+</a><p>1</p></div></div>
</div>
<span id="quantity42">4</span>
</body></html>`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	t.Setenv("CARTPAGE_PRIMARY__ENV", "test")
	// restored after the test, --base-url overwrites it in setup
	t.Setenv("CARTPAGE_CLIENT__BASE_URL", "")

	root, c := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs(args)

	err := root.Execute()
	if shutdownErr := c.shutdown(); err == nil {
		err = shutdownErr
	}
	return out.String(), err
}

func writeSavedPage(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "cart.html")
	if err := os.WriteFile(path, []byte(savedPage), 0o600); err != nil {
		t.Fatalf("write page: %v", err)
	}
	return path
}

func TestRows(t *testing.T) {
	srv := cartapitest.NewServer(nil)
	defer srv.Close()

	out, err := run(t, "rows", "--base-url", srv.URL, "--page", writeSavedPage(t), "--json")
	if err != nil {
		t.Fatalf("rows: %v", err)
	}

	var rows []struct {
		ItemID   string `json:"item_id"`
		Quantity int    `json:"quantity"`
	}
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if len(rows) != 2 || rows[0].ItemID != "42" || rows[0].Quantity != 4 || rows[1].ItemID != "7" {
		t.Errorf("unexpected rows: %+v", rows)
	}
	if len(srv.Requests()) != 0 {
		t.Error("listing rows must not call the endpoint")
	}
}

func TestClick_PlusWritesPatchedPage(t *testing.T) {
	srv := cartapitest.NewServer(map[string]int{"42": 4})
	defer srv.Close()

	outPath := filepath.Join(t.TempDir(), "out.html")
	out, err := run(t, "click",
		"--base-url", srv.URL,
		"--page", writeSavedPage(t),
		"--pid", "42",
		"--action", "plus",
		"--out", outPath,
	)
	if err != nil {
		t.Fatalf("click: %v", err)
	}
	if !strings.Contains(out, "updated quantity=5") {
		t.Errorf("unexpected output:\n%s", out)
	}

	patched, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read patched page: %v", err)
	}
	if !strings.Contains(string(patched), `<span id="quantity42">5</span>`) {
		t.Errorf("patched page does not show 5:\n%s", patched)
	}
}

func TestClick_RapidClicks(t *testing.T) {
	srv := cartapitest.NewServer(map[string]int{"42": 4})
	defer srv.Close()

	out, err := run(t, "click",
		"--base-url", srv.URL,
		"--page", writeSavedPage(t),
		"--pid", "42",
		"--times", "3",
		"--json",
	)
	if err != nil {
		t.Fatalf("click: %v", err)
	}

	var settled []settledClick
	if err := json.Unmarshal([]byte(out), &settled); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if len(settled) != 3 {
		t.Errorf("expected 3 settled clicks, got %+v", settled)
	}
	if q, _ := srv.Quantity("42"); q != 7 {
		t.Errorf("endpoint: expected 7, got %d", q)
	}
}

func TestClick_MinusRemovesRow(t *testing.T) {
	srv := cartapitest.NewServer(map[string]int{"7": 1})
	defer srv.Close()

	outPath := filepath.Join(t.TempDir(), "out.html")
	out, err := run(t, "click",
		"--base-url", srv.URL,
		"--page", writeSavedPage(t),
		"--pid", "7",
		"--action", "minus",
		"--out", outPath,
	)
	if err != nil {
		t.Fatalf("click: %v", err)
	}
	if !strings.Contains(out, "removed") {
		t.Errorf("expected removal in output:\n%s", out)
	}

	patched, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read patched page: %v", err)
	}
	if strings.Contains(string(patched), "cart-item-7") {
		t.Error("row 7 must be gone from the patched page")
	}
}

func TestClick_Errors(t *testing.T) {
	srv := cartapitest.NewServer(nil)
	defer srv.Close()
	page := writeSavedPage(t)

	cases := []struct {
		name string
		args []string
	}{
		{name: "unknown action", args: []string{"--pid", "42", "--action", "remove"}},
		{name: "no such control", args: []string{"--pid", "99"}},
		{name: "zero clicks", args: []string{"--pid", "42", "--times", "0"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			args := append([]string{"click", "--base-url", srv.URL, "--page", page}, tc.args...)
			if _, err := run(t, args...); err == nil {
				t.Fatal("expected error")
			}
			if len(srv.Requests()) != 0 {
				t.Error("no request may be sent")
			}
		})
	}
}

func TestMissingBaseURL(t *testing.T) {
	if _, err := run(t, "rows", "--page", writeSavedPage(t)); err == nil {
		t.Fatal("expected config error without a base URL")
	}
}
