package delivery

import (
	"strings"

	"biteboard/internal/i18n"
	"biteboard/internal/menu"
	"biteboard/internal/provider"
	"biteboard/pkg/tgui"
)

// Menu is one rendered delivery: the items a provider serves on Date.
type Menu struct {
	Title    string
	Provider provider.Provider
	Date     menu.Date
	Items    []menu.Item
}

const dateLayout = "Mon Jan 02 2006"

// FormatDate renders d the way menu titles show it ("Mon Oct 19 2026").
func FormatDate(d menu.Date) string { return d.Time().Format(dateLayout) }

// ProviderLabel is the provider name linked to its site, as HTML.
func ProviderLabel(p provider.Provider) string {
	return tgui.Link(p.Name(), p.Link()).String()
}

// Render formats m as Telegram HTML.
func Render(m Menu, tr *i18n.Catalog) string {
	var b strings.Builder
	title := m.Title
	if title == "" {
		title = tr.T("command.menu.response.menu.title")
	}
	b.WriteString(tgui.B(title+" - "+FormatDate(m.Date)).String() + "\n")
	b.WriteString(tgui.I(tr.T("command.menu.response.menu.description")).String() + "\n")

	for _, it := range m.Items {
		b.WriteString("\n" + tgui.B(itemHeadline(it, tr)).String() + "\n")

		rest := tr.T("command.menu.response.menu.noIngredientsDescription")
		if len(it.Ingredients) > 1 {
			rest = strings.Join(menu.IngredientNames(it.Ingredients[1:]), ", ")
		}
		b.WriteString(tgui.Esc(rest).String() + "\n")

		if fs := it.Features(); len(fs) > 0 {
			ids := make([]string, len(fs))
			for i, f := range fs {
				ids[i] = f.ID
			}
			b.WriteString(tgui.I(strings.Join(ids, ", ")).String() + "\n")
		}
	}

	if all := menu.AllFeatures(m.Items); len(all) > 0 {
		legend := make([]string, len(all))
		for i, f := range all {
			legend[i] = f.ID + ": " + f.Name
		}
		b.WriteString("\n" + tgui.B(tr.T("command.menu.response.menu.ingredients")).String() + "\n")
		b.WriteString(tgui.Esc(strings.Join(legend, ", ")).String() + "\n")
	}

	if m.Provider != nil {
		b.WriteString("\n" + ProviderLabel(m.Provider))
	}
	return strings.TrimRight(b.String(), "\n")
}

// itemHeadline is "<first ingredient> (<dish>) - <price> <unit>"; the unit
// is left out when it is the default "Portion".
func itemHeadline(it menu.Item, tr *i18n.Catalog) string {
	var parts []string
	if len(it.Ingredients) > 0 {
		parts = append(parts, it.Ingredients[0].Name)
	}
	name := it.Name
	if name == "" {
		name = tr.T("command.menu.response.menu.noMenuName")
	}
	s := strings.Join(append(parts, "("+name+")"), " ")
	if it.Price != "" && it.Unit != "" {
		s += " - " + it.Price
		if it.Unit != "Portion" {
			s += " " + it.Unit
		}
	}
	return s
}
