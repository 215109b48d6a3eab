// Package menu models a cafeteria menu and parses the published HTML pages into it.
//
// A page is parsed in two passes: the legend is extracted into a Catalog first,
// then each table row is turned into an Item whose ingredients reference
// features from that catalog.
package menu

import (
	"fmt"
	"time"
)

// Date is a calendar day without time of day. The zero value is invalid.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar day of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Time returns midnight UTC of d.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) AddDays(n int) Date { return DateOf(d.Time().AddDate(0, 0, n)) }

func (d Date) Weekday() time.Weekday { return d.Time().Weekday() }

func (d Date) IsZero() bool { return d == (Date{}) }

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(b []byte) error {
	v, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Feature is a dietary or allergen marker from a page legend, e.g. {ID: "Gl", Name: "Gluten"}.
type Feature struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

type Ingredient struct {
	Name     string     `json:"name"`
	Features []*Feature `json:"features,omitempty"`
}

// Item is one dish on one day. Empty strings mean the page did not carry the value.
type Item struct {
	Name            string       `json:"name,omitempty"`
	Date            Date         `json:"date"`
	Ingredients     []Ingredient `json:"ingredients"`
	IngredientsText string       `json:"ingredientsText,omitempty"`
	Price           string       `json:"price,omitempty"`
	Unit            string       `json:"unit,omitempty"`
	FetchImages     bool         `json:"fetchImages"`
}

// Dishes that never get an image lookup.
var imagelessDishes = map[string]bool{
	"Salatbuffet": true,
	"Dessert":     true,
}

// NewItem returns an item for date with image lookup enabled.
func NewItem(date Date) Item {
	return Item{Date: date, FetchImages: true}
}

// SetName sets the dish name and disables image lookup for imageless dishes.
func (it *Item) SetName(name string) {
	it.Name = name
	if imagelessDishes[name] {
		it.FetchImages = false
	}
}

// Features returns the distinct features of all ingredients in first-seen order.
func (it Item) Features() []*Feature {
	return collectFeatures(nil, map[*Feature]bool{}, it)
}

// AllFeatures returns the distinct features across items in first-seen order.
func AllFeatures(items []Item) []*Feature {
	seen := map[*Feature]bool{}
	var out []*Feature
	for _, it := range items {
		out = collectFeatures(out, seen, it)
	}
	return out
}

func collectFeatures(out []*Feature, seen map[*Feature]bool, it Item) []*Feature {
	for _, ing := range it.Ingredients {
		for _, f := range ing.Features {
			if f == nil || seen[f] {
				continue
			}
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

// FilterDate keeps the items dated d, preserving order.
func FilterDate(items []Item, d Date) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.Date == d {
			out = append(out, it)
		}
	}
	return out
}
