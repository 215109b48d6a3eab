package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"biteboard/internal/menu"
	"biteboard/pkg/logx"
)

type stubProvider struct{ name string }

func (s stubProvider) Name() string      { return s.name }
func (s stubProvider) Link() string      { return "https://example.org/" + s.name }
func (s stubProvider) Thumbnail() string { return "" }
func (s stubProvider) Fetch(context.Context, menu.Date) ([]menu.Item, error) {
	return nil, nil
}

func TestRegistry(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	if _, ok := r.First(); ok {
		t.Fatal("First on empty registry")
	}
	for _, n := range []string{"b", "a", "c"} {
		if err := r.Register(stubProvider{name: n}); err != nil {
			t.Fatalf("Register(%s): %v", n, err)
		}
	}
	err := r.Register(stubProvider{name: "a"})
	if !errors.Is(err, ErrDuplicateProvider) {
		t.Fatalf("duplicate Register err = %v, want ErrDuplicateProvider", err)
	}
	if got := strings.Join(r.Names(), ","); got != "b,a,c" {
		t.Fatalf("Names = %s, want registration order", got)
	}
	if p, _ := r.First(); p.Name() != "b" {
		t.Fatalf("First = %s, want b", p.Name())
	}
	if _, err := r.Lookup("zzz"); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("Lookup err = %v", err)
	}
	if r.Len() != 3 {
		t.Fatalf("Len = %d", r.Len())
	}
}

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile("../menu/testdata/" + name)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return b
}

func TestHTTPProviderGetWeek(t *testing.T) {
	t.Parallel()
	page := fixture(t, "weekview.html")
	var gotPath atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath.Store(r.URL.Path)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(page)
	}))
	defer srv.Close()

	f := NewFetcher(FetcherConfig{Timeout: 5 * time.Second}, srv.Client(), logx.Nop())
	p, err := New(Spec{Name: "week", URL: srv.URL + "/plan-{date}-week.html", Layout: menu.LayoutWeek}, f, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.Link() != p.spec.URL {
		t.Fatalf("Link defaults to URL, got %q", p.Link())
	}

	friday := menu.Date{Year: 2026, Month: time.October, Day: 16}
	items, err := p.Fetch(context.Background(), friday)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if path, _ := gotPath.Load().(string); path != "/plan-2026-10-16-week.html" {
		t.Fatalf("path = %q", path)
	}
	if len(items) != 1 || items[0].Date != friday || items[0].Price != "4,10 €" {
		t.Fatalf("items = %+v", items)
	}

	// Saturday is not on the page at all.
	items, err = p.Fetch(context.Background(), friday.AddDays(1))
	if err != nil || len(items) != 0 {
		t.Fatalf("saturday: items=%d err=%v", len(items), err)
	}
}

func TestHTTPProviderPostDay(t *testing.T) {
	t.Parallel()
	page := fixture(t, "dayview.html")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "want POST", http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseForm(); err != nil || r.PostForm.Get("day") != "2026-10-14" {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		if r.Header.Get("Accept-Language") != "de" || !strings.Contains(r.UserAgent(), "Firefox") {
			http.Error(w, "bad headers", http.StatusBadRequest)
			return
		}
		_, _ = w.Write(page)
	}))
	defer srv.Close()

	f := NewFetcher(FetcherConfig{}, srv.Client(), logx.Nop())
	p, err := New(Spec{Name: "day", Method: "post", URL: srv.URL, Layout: menu.LayoutDay}, f, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	items, err := p.Fetch(context.Background(), menu.Date{Year: 2026, Month: time.October, Day: 14})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("items = %d, want 3", len(items))
	}
}

func TestFetchErrorStatusRetries(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		status   int
		requests int32
	}{
		{name: "server error retried", status: http.StatusServiceUnavailable, requests: 3},
		{name: "client error not retried", status: http.StatusNotFound, requests: 1},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var n atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			f := NewFetcher(FetcherConfig{RetryMax: 2, RetryBase: time.Millisecond}, srv.Client(), logx.Nop())
			p, _ := New(Spec{Name: "x", URL: srv.URL, Layout: menu.LayoutDay}, f, logx.Nop())
			_, err := p.Fetch(context.Background(), menu.Date{Year: 2026, Month: 1, Day: 1})

			var fe *FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("err = %v, want *FetchError", err)
			}
			if fe.Status != tt.status || fe.Timeout() {
				t.Fatalf("FetchError = %+v", fe)
			}
			if got := n.Load(); got != tt.requests {
				t.Fatalf("requests = %d, want %d", got, tt.requests)
			}
		})
	}
}

func TestFetchTimeout(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	f := NewFetcher(FetcherConfig{Timeout: 50 * time.Millisecond}, srv.Client(), logx.Nop())
	p, _ := New(Spec{Name: "slow", URL: srv.URL, Layout: menu.LayoutDay}, f, logx.Nop())

	start := time.Now()
	_, err := p.Fetch(context.Background(), menu.Date{Year: 2026, Month: 1, Day: 1})
	var fe *FetchError
	if !errors.As(err, &fe) || !fe.Timeout() {
		t.Fatalf("err = %v, want timeout FetchError", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Fatal("fetch was not bounded by the timeout")
	}
}

func TestNewRejectsBadSpec(t *testing.T) {
	t.Parallel()
	f := NewFetcher(FetcherConfig{}, nil, logx.Nop())
	bad := []Spec{
		{URL: "http://x", Layout: menu.LayoutDay},
		{Name: "n", Layout: menu.LayoutDay},
		{Name: "n", URL: "http://x", Method: "PUT", Layout: menu.LayoutDay},
		{Name: "n", URL: "http://x", Layout: "month"},
	}
	for i, s := range bad {
		if _, err := New(s, f, logx.Nop()); err == nil {
			t.Fatalf("spec %d accepted", i)
		}
	}
	for _, s := range Builtin() {
		if _, err := New(s, f, logx.Nop()); err != nil {
			t.Fatalf("builtin %q: %v", s.Name, err)
		}
	}
}
