package menu

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"biteboard/pkg/logx"
)

// Catalog is the legend of one page: the features dishes may reference by id.
type Catalog struct {
	features []*Feature
	byID     map[string]*Feature
}

func NewCatalog(features ...*Feature) *Catalog {
	c := &Catalog{byID: make(map[string]*Feature, len(features))}
	for _, f := range features {
		c.add(f)
	}
	return c
}

func (c *Catalog) add(f *Feature) {
	if _, dup := c.byID[f.ID]; dup {
		return
	}
	c.features = append(c.features, f)
	c.byID[f.ID] = f
}

// Lookup matches the trimmed id exactly.
func (c *Catalog) Lookup(id string) (*Feature, bool) {
	if c == nil {
		return nil, false
	}
	f, ok := c.byID[strings.TrimSpace(id)]
	return f, ok
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.features)
}

// All returns the features in legend order.
func (c *Catalog) All() []*Feature {
	if c == nil {
		return nil
	}
	return append([]*Feature(nil), c.features...)
}

// LegendSelectors describe where a layout keeps its legend.
//
// Container may match several blocks (pages repeat a short legend in places);
// the one with the most child nodes wins. Inside it, Category elements set the
// category for the entries that follow, and each Entry element carries its id
// in EntryID and its name in the first non-empty text node directly under it.
type LegendSelectors struct {
	Container string
	Category  string
	Entry     string
	EntryID   string
}

// ExtractCatalog reads the legend of doc. A missing legend yields an empty catalog.
func ExtractCatalog(doc *goquery.Document, sel LegendSelectors, log logx.Logger) *Catalog {
	cat := NewCatalog()

	var best *goquery.Selection
	bestCount := -1
	doc.Find(sel.Container).Each(func(_ int, s *goquery.Selection) {
		if n := s.Contents().Length(); n > bestCount {
			best, bestCount = s, n
		}
	})
	if best == nil {
		log.Warn("feature legend not found", logx.String("selector", sel.Container))
		return cat
	}

	category := ""
	best.Children().Each(func(_ int, el *goquery.Selection) {
		switch {
		case el.Is(sel.Category):
			category = strings.TrimSpace(strings.Replace(strings.TrimSpace(el.Text()), ":", "", 1))
		case el.Is(sel.Entry):
			id := strings.TrimSpace(el.Find(sel.EntryID).First().Text())
			name := ownText(el)
			if id == "" || name == "" {
				log.Warn("skipping incomplete legend entry", logx.String("id", id), logx.String("name", name))
				return
			}
			cat.add(&Feature{ID: id, Name: name, Category: category})
		}
	})
	return cat
}

// ownText returns the first non-empty text node that is a direct child of s.
func ownText(s *goquery.Selection) string {
	for _, n := range s.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.TextNode {
				continue
			}
			if t := strings.TrimSpace(c.Data); t != "" {
				return t
			}
		}
	}
	return ""
}
