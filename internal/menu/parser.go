package menu

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Parser turns a fetched page into items. query is the date the page was requested for;
// parsers may return items for other days and leave filtering to the caller.
// Parsing never fails: malformed fragments are logged and skipped.
type Parser interface {
	Parse(doc *goquery.Document, query Date) []Item
}

// Layout names a page layout in configuration.
type Layout string

const (
	LayoutDay  Layout = "day"
	LayoutWeek Layout = "week"
)

func ParseLayout(s string) (Layout, error) {
	switch l := Layout(strings.ToLower(strings.TrimSpace(s))); l {
	case LayoutDay, LayoutWeek:
		return l, nil
	default:
		return "", fmt.Errorf("unknown menu layout %q (want %q or %q)", s, LayoutDay, LayoutWeek)
	}
}

func text(s *goquery.Selection) string { return strings.TrimSpace(s.First().Text()) }
