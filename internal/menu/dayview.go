package menu

import (
	"github.com/PuerkitoBio/goquery"

	"biteboard/pkg/logx"
)

// DayView parses a page showing a single day as one table.
// Every row produces exactly one item dated with the query date.
type DayView struct {
	Legend      LegendSelectors
	Rows        string
	Name        string
	Description string
	Price       string
	Unit        string

	Log logx.Logger
}

// NewDayView returns a parser for the stw-ma.de single day table.
func NewDayView(log logx.Logger) *DayView {
	return &DayView{
		Legend: LegendSelectors{
			Container: ".speiseplan-label-content",
			Category:  ".speiseplan-category",
			Entry:     ".speiseplan-label",
			EntryID:   "sup b",
		},
		Rows:        ".speiseplan-table tr",
		Name:        ".speiseplan-table-menu-headline strong",
		Description: ".speiseplan-table-menu-content",
		Price:       ".speiseplan-table-col-last .price",
		Unit:        ".speiseplan-table-col-last .customSelection",
		Log:         log,
	}
}

func (p *DayView) Parse(doc *goquery.Document, query Date) []Item {
	cat := ExtractCatalog(doc, p.Legend, p.Log)

	var items []Item
	doc.Find(p.Rows).Each(func(_ int, row *goquery.Selection) {
		it := NewItem(query)
		it.SetName(text(row.Find(p.Name)))
		it.IngredientsText = text(row.Find(p.Description))
		it.Ingredients = ParseIngredients(it.IngredientsText, cat, p.Log)
		it.Price = text(row.Find(p.Price))
		it.Unit = text(row.Find(p.Unit))
		items = append(items, it)
	})
	p.Log.Debug("parsed day view", logx.Int("items", len(items)), logx.Int("features", cat.Len()))
	return items
}
