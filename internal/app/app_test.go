package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/deppfellow/cartpage/internal/cartapi/cartapitest"
	"github.com/deppfellow/cartpage/internal/config"
	"github.com/deppfellow/cartpage/internal/dom"
	"github.com/deppfellow/cartpage/internal/page"
	"github.com/rs/zerolog"

	loggerPkg "github.com/deppfellow/cartpage/internal/logger"
)

const onePage = `<html><body>
<div id="cart-item-3"><div>
<a class="minus-cart" pid="3">-</a><a class="plus-cart" pid="3">+</a><p>1</p>
</div></div>
<span id="quantity3">1</span>
</body></html>`

func newTestApp(t *testing.T, baseURL string) *App {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Primary.Env = "test"
	cfg.Client.BaseURL = baseURL
	cfg.Observability = config.DefaultObservabilityConfig()

	log := zerolog.Nop()
	a, err := New(cfg, &log, loggerPkg.NewLoggerService(cfg.Observability))
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a
}

func TestOpenPage_ClickAndShutdown(t *testing.T) {
	srv := cartapitest.NewServer(map[string]int{"3": 1})
	defer srv.Close()

	a := newTestApp(t, srv.URL)

	settled := make(chan page.Result, 1)
	doc, ctrl, err := a.OpenPage(context.Background(), strings.NewReader(onePage), func(r page.Result) {
		settled <- r
	})
	if err != nil {
		t.Fatalf("open page: %v", err)
	}

	plus := dom.FindByClass(doc.ElementByID("cart-item-3"), page.PlusClass)[0]
	if err := ctrl.Click(plus); err != nil {
		t.Fatalf("click: %v", err)
	}

	select {
	case r := <-settled:
		if r.Outcome != page.OutcomeUpdated || r.Quantity != 2 {
			t.Fatalf("unexpected result: %+v", r)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("click never settled")
	}

	if got, _ := doc.TextByID("quantity3"); got != "2" {
		t.Errorf("expected quantity3 to show 2, got %q", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := ctrl.Click(plus); err == nil {
		t.Error("expected clicks after shutdown to fail")
	}
}

func TestNew_InvalidEndpoint(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Client.BaseURL = "::not a url"

	log := zerolog.Nop()
	if _, err := New(cfg, &log, nil); err == nil {
		t.Fatal("expected error for invalid endpoint")
	}
}
