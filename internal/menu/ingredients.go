package menu

import (
	"regexp"
	"strings"

	"biteboard/pkg/logx"
)

var (
	parenGroup      = regexp.MustCompile(`\([^)]*\)`)
	firstParenGroup = regexp.MustCompile(`\(([^)]*)\)`)
)

// ParseIngredients splits a description like "Reis (Gl,Ei), Salat (Vg)" into
// ingredients. The name is the component with every parenthesized group
// removed; feature ids come from the first group and are resolved against cat.
// Unknown ids are logged and dropped.
func ParseIngredients(text string, cat *Catalog, log logx.Logger) []Ingredient {
	var out []Ingredient
	for _, part := range strings.Split(text, ", ") {
		name := strings.TrimSpace(parenGroup.ReplaceAllString(part, ""))
		if name == "" && strings.TrimSpace(part) == "" {
			continue
		}
		ing := Ingredient{Name: name}
		if m := firstParenGroup.FindStringSubmatch(part); m != nil {
			for _, id := range strings.Split(m[1], ",") {
				id = strings.TrimSpace(id)
				if id == "" {
					continue
				}
				f, ok := cat.Lookup(id)
				if !ok {
					log.Warn("feature not found", logx.String("id", id), logx.String("ingredient", name))
					continue
				}
				ing.Features = append(ing.Features, f)
			}
		}
		out = append(out, ing)
	}
	return out
}

// IngredientNames returns the names in order.
func IngredientNames(ings []Ingredient) []string {
	out := make([]string, 0, len(ings))
	for _, ing := range ings {
		out = append(out, ing.Name)
	}
	return out
}
