package imagesearch

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"biteboard/pkg/logx"
)

func TestNew(t *testing.T) {
	t.Parallel()
	for _, svc := range []string{"", ServiceNone} {
		s, err := New(Config{Service: svc}, nil, logx.Nop())
		if err != nil || s != nil {
			t.Fatalf("New(%q) = %v, %v; want disabled", svc, s, err)
		}
	}
	if s, _ := New(Config{Service: ServiceDummy}, nil, logx.Nop()); s == nil || s.Mode() != ModeSeparate {
		t.Fatalf("dummy = %v", s)
	}
	if s, _ := New(Config{Service: ServiceGooglePage}, nil, logx.Nop()); s == nil || s.Mode() != ModeCombined {
		t.Fatalf("googlePage = %v", s)
	}
	if _, err := New(Config{Service: ServiceGoogleAPI}, nil, logx.Nop()); err == nil {
		t.Fatal("googleApi without credentials accepted")
	}
	if _, err := New(Config{Service: "bing"}, nil, logx.Nop()); err == nil {
		t.Fatal("unknown service accepted")
	}
}

func TestFilterURLs(t *testing.T) {
	t.Parallel()
	in := []string{"https://a/x.JPG", "http://b/y.png", "https://c/z", "data:image/gif;base64,xx", "/rel.jpg"}
	if got := FilterURLs(in, true); !reflect.DeepEqual(got, []string{"https://a/x.JPG", "http://b/y.png"}) {
		t.Fatalf("photosOnly = %v", got)
	}
	if got := FilterURLs(in, false); len(got) != 3 {
		t.Fatalf("any = %v", got)
	}
}

func TestGoogleAPI(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("key") != "k" || q.Get("cx") != "cx" || q.Get("searchType") != "image" {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		if q.Get("q") == "links only" {
			_, _ = w.Write([]byte(`{"items":[{"link":"https://l/1.jpg"},{"link":""}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"items":[
			{"link":"https://l/1.jpg","pagemap":{"cse_image":[{"src":"https://i/1.jpg"}]}},
			{"link":"https://l/2.jpg"}]}`))
	}))
	defer srv.Close()

	s, err := New(Config{Service: ServiceGoogleAPI, GoogleAPIKey: "k", GoogleApplicationID: "cx", Endpoint: srv.URL}, srv.Client(), logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	got, err := s.Search(ctx, "Mensa Gericht Schnitzel")
	if err != nil || !reflect.DeepEqual(got, []string{"https://i/1.jpg"}) {
		t.Fatalf("Search = %v, %v", got, err)
	}
	got, err = s.Search(ctx, "links only")
	if err != nil || !reflect.DeepEqual(got, []string{"https://l/1.jpg"}) {
		t.Fatalf("fallback = %v, %v", got, err)
	}
}

func TestGooglePage(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("tbm") != "isch" || r.Header.Get("Referer") == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`<html><body><img src="/logo.png"><img src="https://t/1.jpg"/><img alt="x"></body></html>`))
	}))
	defer srv.Close()

	s, _ := New(Config{Service: ServiceGooglePage, Endpoint: srv.URL}, srv.Client(), logx.Nop())
	got, err := s.Search(context.Background(), "Pasta")
	if err != nil || !reflect.DeepEqual(got, []string{"/logo.png", "https://t/1.jpg"}) {
		t.Fatalf("Search = %v, %v", got, err)
	}
}

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestCombineURLs(t *testing.T) {
	t.Parallel()
	wide, square := pngOf(t, 200, 100), pngOf(t, 50, 50)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/wide.png":
			_, _ = w.Write(wide)
		case "/square.png":
			_, _ = w.Write(square)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	out, err := CombineURLs(context.Background(), srv.Client(),
		[]string{srv.URL + "/wide.png", srv.URL + "/missing.png", srv.URL + "/square.png"}, 100, logx.Nop())
	if err != nil {
		t.Fatalf("CombineURLs: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 300 || b.Dy() != 100 {
		t.Fatalf("strip = %v, want 300x100", b)
	}

	if _, err := CombineURLs(context.Background(), srv.Client(), []string{srv.URL + "/missing.png"}, 100, logx.Nop()); err != ErrNoImages {
		t.Fatalf("all missing = %v, want ErrNoImages", err)
	}
}
