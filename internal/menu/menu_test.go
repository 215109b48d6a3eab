package menu

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"biteboard/pkg/logx"
)

func loadDoc(t *testing.T, name string) *goquery.Document {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer f.Close()
	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}

func docFromString(t *testing.T, s string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

func mustDate(t *testing.T, s string) Date {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return d
}

func TestDateHelpers(t *testing.T) {
	t.Parallel()
	d := mustDate(t, "2026-02-27")
	if got := d.AddDays(2).String(); got != "2026-03-01" {
		t.Fatalf("AddDays across month = %s", got)
	}
	if got := d.AddDays(-58).String(); got != "2025-12-31" {
		t.Fatalf("AddDays across year = %s", got)
	}
	if d.Weekday() != time.Friday {
		t.Fatalf("Weekday = %v, want Friday", d.Weekday())
	}
	if _, err := ParseDate("2026-13-01"); err == nil {
		t.Fatal("expected error for invalid month")
	}
	late := time.Date(2026, 5, 1, 23, 30, 0, 0, time.UTC)
	if DateOf(late) != (Date{Year: 2026, Month: time.May, Day: 1}) {
		t.Fatalf("DateOf = %v", DateOf(late))
	}
}

func TestExtractCatalogPicksLargestLegend(t *testing.T) {
	t.Parallel()
	doc := loadDoc(t, "dayview.html")
	cat := ExtractCatalog(doc, NewDayView(logx.Nop()).Legend, logx.Nop())

	if cat.Len() != 3 {
		t.Fatalf("catalog size = %d, want 3", cat.Len())
	}
	gl, ok := cat.Lookup(" Gl ")
	if !ok {
		t.Fatal("Gl not found")
	}
	if gl.Name != "Glutenhaltiges Getreide" || gl.Category != "Allergene" {
		t.Fatalf("Gl = %+v", gl)
	}
	vg, _ := cat.Lookup("Vg")
	if vg == nil || vg.Category != "Kennzeichnungen" {
		t.Fatalf("Vg = %+v", vg)
	}
	var ids []string
	for _, f := range cat.All() {
		ids = append(ids, f.ID)
	}
	if strings.Join(ids, ",") != "Gl,Ei,Vg" {
		t.Fatalf("legend order = %v", ids)
	}
}

func TestExtractCatalogMissingLegend(t *testing.T) {
	t.Parallel()
	doc := docFromString(t, "<html><body><p>nothing here</p></body></html>")
	cat := ExtractCatalog(doc, NewDayView(logx.Nop()).Legend, logx.Nop())
	if cat.Len() != 0 {
		t.Fatalf("catalog size = %d, want 0", cat.Len())
	}
	if _, ok := cat.Lookup("Gl"); ok {
		t.Fatal("lookup on empty catalog succeeded")
	}
}

func TestParseIngredients(t *testing.T) {
	t.Parallel()
	one := &Feature{ID: "1", Name: "eins"}
	two := &Feature{ID: "2", Name: "zwei"}
	three := &Feature{ID: "3", Name: "drei"}
	cat := NewCatalog(one, two, three)

	got := ParseIngredients("A (1,2), B (3)", cat, logx.Nop())
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Name != "A" || len(got[0].Features) != 2 || got[0].Features[0] != one || got[0].Features[1] != two {
		t.Fatalf("first ingredient = %+v", got[0])
	}
	if got[1].Name != "B" || len(got[1].Features) != 1 || got[1].Features[0] != three {
		t.Fatalf("second ingredient = %+v", got[1])
	}

	tests := []struct {
		name     string
		in       string
		names    []string
		features int
		first    *Feature
	}{
		{name: "unknown ids dropped", in: "Reis (9,1)", names: []string{"Reis"}, features: 1, first: one},
		{name: "only first group used", in: "Soße (1) mit Kräutern (2)", names: []string{"Soße  mit Kräutern"}, features: 1},
		{name: "no features", in: "Wasser", names: []string{"Wasser"}},
		{name: "empty", in: "", names: nil},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := ParseIngredients(tt.in, cat, logx.Nop())
			if strings.Join(IngredientNames(got), "|") != strings.Join(tt.names, "|") {
				t.Fatalf("names = %q, want %q", IngredientNames(got), tt.names)
			}
			n := 0
			for _, ing := range got {
				n += len(ing.Features)
			}
			if n != tt.features {
				t.Fatalf("features = %d, want %d", n, tt.features)
			}
			if tt.first != nil && got[0].Features[0] != tt.first {
				t.Fatalf("feature = %+v, want the catalog entry %+v", got[0].Features[0], tt.first)
			}
		})
	}
}

func TestDayViewParse(t *testing.T) {
	t.Parallel()
	doc := loadDoc(t, "dayview.html")
	query := mustDate(t, "2026-10-14")

	items := NewDayView(logx.Nop()).Parse(doc, query)
	if len(items) != 3 {
		t.Fatalf("items = %d, want 3 (one per row)", len(items))
	}
	for i, it := range items {
		if it.Date != query {
			t.Fatalf("item %d date = %v, want %v", i, it.Date, query)
		}
	}

	first := items[0]
	if first.Name != "Menü 1" || first.Price != "3,50 €" || first.Unit != "Portion" {
		t.Fatalf("first item = %+v", first)
	}
	if got := strings.Join(IngredientNames(first.Ingredients), "|"); got != "Spaghetti|Tomatensoße|Parmesan" {
		t.Fatalf("ingredients = %q", got)
	}
	if n := len(first.Ingredients[0].Features); n != 2 {
		t.Fatalf("Spaghetti features = %d, want 2", n)
	}
	if n := len(first.Ingredients[2].Features); n != 0 {
		t.Fatalf("Parmesan features = %d, want 0 (unknown id)", n)
	}
	if !first.FetchImages {
		t.Fatal("Menü 1 should fetch images")
	}

	if items[1].Name != "Salatbuffet" || items[1].FetchImages {
		t.Fatalf("Salatbuffet = %+v", items[1])
	}
	if items[2].Name != "" || len(items[2].Ingredients) != 0 {
		t.Fatalf("empty row = %+v", items[2])
	}

	// Features are shared with the catalog, not copied.
	if items[0].Ingredients[1].Features[0] != items[1].Ingredients[0].Features[0] {
		t.Fatal("Vg feature not shared between items")
	}
	if got := len(AllFeatures(items)); got != 3 {
		t.Fatalf("AllFeatures = %d, want 3", got)
	}
}

func TestWeekViewParse(t *testing.T) {
	t.Parallel()
	doc := loadDoc(t, "weekview.html")
	wednesday := mustDate(t, "2026-10-14")

	items := NewWeekView(logx.Nop()).Parse(doc, wednesday)
	if len(items) != 3 {
		t.Fatalf("items = %d, want 3", len(items))
	}

	monday, friday := mustDate(t, "2026-10-12"), mustDate(t, "2026-10-16")
	want := []struct {
		name  string
		date  Date
		price string
		unit  string
		img   bool
	}{
		{"Menü 1", monday, "3,20 €", "Portion", true},
		{"Dessert", monday, "1,00 €", "Becher", false},
		{"Menü 1", friday, "4,10 €", "Portion", true},
	}
	for i, w := range want {
		it := items[i]
		if it.Name != w.name || it.Date != w.date || it.Price != w.price || it.Unit != w.unit || it.FetchImages != w.img {
			t.Fatalf("item %d = %+v, want %+v", i, it, w)
		}
	}
	if items[0].IngredientsText != "Nudeln (Gl), Soße (1)" {
		t.Fatalf("ingredients text = %q", items[0].IngredientsText)
	}
	f := items[0].Ingredients[1].Features
	if len(f) != 1 || f[0].Name != "mit Farbstoff" || f[0].Category != "Zusatzstoffe" {
		t.Fatalf("Soße features = %+v", f)
	}

	if got := FilterDate(items, friday); len(got) != 1 || got[0].Name != "Menü 1" {
		t.Fatalf("FilterDate(friday) = %+v", got)
	}
	if got := FilterDate(items, wednesday); len(got) != 0 {
		t.Fatalf("FilterDate(wednesday) = %d items, want 0", len(got))
	}
}

func TestResolveWeekday(t *testing.T) {
	t.Parallel()
	friday := Date{Year: 2026, Month: time.October, Day: 16}
	wednesday := Date{Year: 2026, Month: time.October, Day: 14}
	monday := Date{Year: 2026, Month: time.October, Day: 12}
	tests := []struct {
		label string
		query Date
		want  string
	}{
		{"Montag", friday, "2026-10-19"},
		{"Freitag", friday, "2026-10-16"},
		{"Donnerstag", friday, "2026-10-15"},
		{"Montag", wednesday, "2026-10-12"},
		{"Freitag", wednesday, "2026-10-16"},
		{"Monday 13.10.", wednesday, "2026-10-12"},
		{"Feiertag", wednesday, "2026-10-14"},
		// Nearest day wins: the Friday before, not the one four days ahead.
		{"Freitag", monday, "2026-10-09"},
		{"Donnerstag", monday, "2026-10-15"},
		{"", friday, "2026-10-16"},
	}
	for _, tt := range tests {
		if got := ResolveWeekday(tt.label, tt.query).String(); got != tt.want {
			t.Fatalf("ResolveWeekday(%q, %v) = %s, want %s", tt.label, tt.query, got, tt.want)
		}
	}
}

func TestImageQuery(t *testing.T) {
	t.Parallel()
	it := NewItem(Date{Year: 2026, Month: 1, Day: 5})
	it.SetName("Menü 2")
	it.Ingredients = []Ingredient{{Name: "Schnitzel"}, {Name: "frische Kräuter"}, {Name: "Pommes"}, {Name: "Beilagensalat"}}

	q, ok := ImageQuery(it)
	if !ok || q != "Mensa Gericht Schnitzel Pommes" {
		t.Fatalf("ImageQuery = %q, %v", q, ok)
	}

	it.SetName("Dessert")
	if _, ok := ImageQuery(it); ok {
		t.Fatal("Dessert should not get an image query")
	}
}

func TestParseLayout(t *testing.T) {
	t.Parallel()
	if l, err := ParseLayout(" Week "); err != nil || l != LayoutWeek {
		t.Fatalf("ParseLayout = %v, %v", l, err)
	}
	if _, err := ParseLayout("month"); err == nil {
		t.Fatal("expected error for unknown layout")
	}
}
