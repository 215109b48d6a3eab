package delivery

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"biteboard/internal/i18n"
	"biteboard/internal/imagesearch"
	"biteboard/internal/menu"
	"biteboard/internal/runtime/supervisor"
	kit "biteboard/internal/transport"
	"biteboard/pkg/logx"
)

type fakeAdapter struct {
	mu       sync.Mutex
	texts    []string
	photos   []kit.Photo
	deleted  []int
	failText int
	nextID   int
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                     { return nil }

func (f *fakeAdapter) SendText(_ context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failText > 0 {
		f.failText--
		return kit.MessageRef{}, errors.New("telegram down")
	}
	f.texts = append(f.texts, text)
	f.nextID++
	return kit.MessageRef{ChatID: to.ChatID, MessageID: f.nextID}, nil
}

func (f *fakeAdapter) SendPhoto(_ context.Context, to kit.ChatTarget, p kit.Photo, _ *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.photos = append(f.photos, p)
	f.nextID++
	return kit.MessageRef{ChatID: to.ChatID, MessageID: f.nextID}, nil
}

func (f *fakeAdapter) Delete(_ context.Context, ref kit.MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ref.MessageID)
	return nil
}

type staticProvider struct{}

func (staticProvider) Name() string      { return "Mensa <Test>" }
func (staticProvider) Link() string      { return "https://example.org/mensa?a=1&b=2" }
func (staticProvider) Thumbnail() string { return "" }
func (staticProvider) Fetch(context.Context, menu.Date) ([]menu.Item, error) {
	return nil, nil
}

func sampleItems(d menu.Date) []menu.Item {
	vg := &menu.Feature{ID: "Vg", Name: "Vegan"}
	gl := &menu.Feature{ID: "Gl", Name: "Gluten"}

	main := menu.NewItem(d)
	main.SetName("Menü 1")
	main.Price = "3,50 €"
	main.Unit = "Portion"
	main.Ingredients = []menu.Ingredient{
		{Name: "Linsen Dal", Features: []*menu.Feature{vg}},
		{Name: "Reis", Features: []*menu.Feature{gl}},
	}

	salad := menu.NewItem(d)
	salad.SetName("Salatbuffet")
	salad.Price = "1,20 €"
	salad.Unit = "100g"
	salad.Ingredients = []menu.Ingredient{{Name: "Blattsalat", Features: []*menu.Feature{vg}}}
	return []menu.Item{main, salad}
}

func catalog(t *testing.T) *i18n.Catalog {
	t.Helper()
	c, err := i18n.New("en")
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestRender(t *testing.T) {
	t.Parallel()
	d := menu.Date{Year: 2026, Month: time.October, Day: 19}
	out := Render(Menu{Title: "Today's Menu", Provider: staticProvider{}, Date: d, Items: sampleItems(d)}, catalog(t))

	for _, want := range []string{
		"<b>Today&#39;s Menu - Mon Oct 19 2026</b>",
		"<b>Linsen Dal (Menü 1) - 3,50 €</b>\nReis\n<i>Vg, Gl</i>",
		"<b>Blattsalat (Salatbuffet) - 1,20 € 100g</b>\nNo further ingredients\n<i>Vg</i>",
		"<b>Ingredients</b>\nVg: Vegan, Gl: Gluten",
		`<a href="https://example.org/mensa?a=1&amp;b=2">Mensa &lt;Test&gt;</a>`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("render misses %q:\n%s", want, out)
		}
	}

	empty := Render(Menu{Date: d}, catalog(t))
	if !strings.HasPrefix(empty, "<b>Menu - Mon Oct 19 2026</b>") || strings.Contains(empty, "Ingredients") {
		t.Fatalf("empty render:\n%s", empty)
	}
}

func TestMenuSendsTextImagesAndDeletes(t *testing.T) {
	t.Parallel()
	fa := &fakeAdapter{}
	sup := supervisor.New(context.Background())
	s := New(Config{RatePerSec: 100, DeleteImagesAfter: 10 * time.Millisecond}, fa, imagesearch.Dummy{}, catalog(t), sup, logx.Nop())

	d := menu.Date{Year: 2026, Month: time.October, Day: 19}
	to := kit.ChatTarget{ChatID: -100}
	if err := s.Menu(context.Background(), to, Menu{Provider: staticProvider{}, Date: d, Items: sampleItems(d)}); err != nil {
		t.Fatalf("Menu: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sup.Wait(ctx); err != nil {
		t.Fatalf("wait for deletion: %v", err)
	}

	fa.mu.Lock()
	defer fa.mu.Unlock()
	if len(fa.texts) != 1 {
		t.Fatalf("texts = %d, want 1", len(fa.texts))
	}
	// The salad buffet never gets a picture.
	if len(fa.photos) != 1 || !strings.HasPrefix(fa.photos[0].Caption, "Menü 1 ~ Linsen Dal") {
		t.Fatalf("photos = %+v", fa.photos)
	}
	if len(fa.deleted) != 1 || fa.deleted[0] != 2 {
		t.Fatalf("deleted = %v, want [2]", fa.deleted)
	}
}

func TestMenuRetriesText(t *testing.T) {
	t.Parallel()
	fa := &fakeAdapter{failText: 1}
	s := New(Config{RatePerSec: 100, RetryMax: 1, RetryBase: time.Millisecond}, fa, nil, catalog(t), nil, logx.Nop())
	d := menu.Date{Year: 2026, Month: time.October, Day: 19}
	if err := s.Menu(context.Background(), kit.ChatTarget{ChatID: 1}, Menu{Date: d}); err != nil {
		t.Fatalf("Menu with one transient failure: %v", err)
	}

	fa.failText = 5
	if err := s.Menu(context.Background(), kit.ChatTarget{ChatID: 1}, Menu{Date: d}); err == nil {
		t.Fatal("Menu succeeded although every send failed")
	}
}

func TestMenuSplitsLongText(t *testing.T) {
	t.Parallel()
	fa := &fakeAdapter{}
	s := New(Config{RatePerSec: 1000}, fa, nil, catalog(t), nil, logx.Nop())
	d := menu.Date{Year: 2026, Month: time.October, Day: 19}
	var items []menu.Item
	for range 100 {
		items = append(items, sampleItems(d)...)
	}
	if err := s.Menu(context.Background(), kit.ChatTarget{ChatID: 1}, Menu{Provider: staticProvider{}, Date: d, Items: items}); err != nil {
		t.Fatal(err)
	}
	if len(fa.texts) < 2 {
		t.Fatalf("texts = %d, want several chunks", len(fa.texts))
	}
	for i, text := range fa.texts {
		if n := utf8.RuneCountInString(text); n > 4000 {
			t.Fatalf("chunk %d has %d runes", i, n)
		}
		if strings.Count(text, "<b>") != strings.Count(text, "</b>") {
			t.Fatalf("chunk %d has unbalanced tags", i)
		}
	}
}

func TestNoMenu(t *testing.T) {
	t.Parallel()
	fa := &fakeAdapter{}
	s := New(Config{}, fa, nil, catalog(t), nil, logx.Nop())
	d := menu.Date{Year: 2026, Month: time.October, Day: 24}
	if err := s.NoMenu(context.Background(), kit.ChatTarget{ChatID: 1}, staticProvider{}, d); err != nil {
		t.Fatal(err)
	}
	if len(fa.texts) != 1 || !strings.Contains(fa.texts[0], "has no menu for Sat Oct 24 2026") {
		t.Fatalf("texts = %q", fa.texts)
	}
}
