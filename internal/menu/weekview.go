package menu

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"biteboard/pkg/logx"
)

// WeekView parses a page showing a whole week. The header row names the dishes
// (one column each), then every day has a menu row (weekday cell + one
// ingredient cell per dish) followed by a price row (price/unit label pairs).
type WeekView struct {
	Legend     LegendSelectors
	Header     string
	MenuRows   string
	PriceRows  string
	DayCell    string
	DishCells  string
	PriceLabel string

	Log logx.Logger
}

// NewWeekView returns a parser for the stw-ma.de week preview table.
func NewWeekView(log logx.Logger) *WeekView {
	return &WeekView{
		Legend: LegendSelectors{
			Container: "#legend",
			Category:  "b.t",
			Entry:     "span",
			EntryID:   "sup b",
		},
		Header:     "#previewTable tr:first-child th:not(.first)",
		MenuRows:   "#previewTable tr.active1",
		PriceRows:  "#previewTable tr.active2",
		DayCell:    "td.first",
		DishCells:  "td:not(.first)",
		PriceLabel: "div > span.label.label-default",
		Log:        log,
	}
}

func (p *WeekView) Parse(doc *goquery.Document, query Date) []Item {
	cat := ExtractCatalog(doc, p.Legend, p.Log)

	var dishes []string
	doc.Find(p.Header).Each(func(_ int, th *goquery.Selection) {
		dishes = append(dishes, strings.TrimSpace(th.Text()))
	})

	menuRows := doc.Find(p.MenuRows)
	priceRows := doc.Find(p.PriceRows)
	n := min(menuRows.Length(), priceRows.Length())

	var items []Item
	for i := 0; i < n; i++ {
		menuRow, priceRow := menuRows.Eq(i), priceRows.Eq(i)

		dayCell := menuRow.Find(p.DayCell)
		if dayCell.Length() == 0 {
			p.Log.Warn("week row without weekday cell", logx.Int("row", i))
			continue
		}
		date := ResolveWeekday(strings.TrimSpace(dayCell.First().Text()), query)

		labels := priceRow.Find(p.PriceLabel)
		menuRow.Find(p.DishCells).Each(func(col int, cell *goquery.Selection) {
			it := NewItem(date)
			if col < len(dishes) {
				it.SetName(dishes[col])
			}
			it.IngredientsText = strings.TrimSpace(cell.Text())
			it.Ingredients = ParseIngredients(it.IngredientsText, cat, p.Log)

			if labels.Length() <= col*2+1 {
				p.Log.Warn("dish without price or unit",
					logx.String("dish", it.Name), logx.String("date", date.String()))
				return
			}
			it.Price = strings.TrimSpace(labels.Eq(col * 2).Text())
			it.Unit = strings.TrimSpace(labels.Eq(col*2 + 1).Text())
			items = append(items, it)
		})
	}
	p.Log.Debug("parsed week view", logx.Int("items", len(items)), logx.Int("features", cat.Len()))
	return items
}

var weekdayNames = map[string]time.Weekday{
	"sonntag": time.Sunday, "montag": time.Monday, "dienstag": time.Tuesday,
	"mittwoch": time.Wednesday, "donnerstag": time.Thursday, "freitag": time.Friday,
	"samstag": time.Saturday,
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday,
	"saturday": time.Saturday,
}

// ParseWeekday accepts German or English weekday names, optionally followed by
// more text ("Montag 13.05.").
func ParseWeekday(label string) (time.Weekday, bool) {
	fields := strings.Fields(strings.ToLower(label))
	if len(fields) == 0 {
		return 0, false
	}
	wd, ok := weekdayNames[strings.Trim(fields[0], ",.:")]
	return wd, ok
}

// ResolveWeekday maps a weekday label to the nearest such day around query,
// at most three days away in either direction. A Friday query resolves
// "Montag" to the following Monday. Unknown labels resolve to query.
func ResolveWeekday(label string, query Date) Date {
	wd, ok := ParseWeekday(label)
	if !ok {
		return query
	}
	diff := (int(wd) - int(query.Weekday()) + 7) % 7
	if diff > 3 {
		diff -= 7
	}
	return query.AddDays(diff)
}
