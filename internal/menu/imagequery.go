package menu

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

const imageQueryPrefix = "Mensa Gericht"

// Ingredients that show up on every plate and only pollute image searches.
var imageQueryNoise = map[string]bool{
	norm.NFC.String("frische Kräuter"): true,
	norm.NFC.String("Beilagensalat"):   true,
}

// ImageQuery builds the search phrase used to find a picture of it.
// ok is false for items that should not get a picture.
func ImageQuery(it Item) (q string, ok bool) {
	if !it.FetchImages || imagelessDishes[it.Name] {
		return "", false
	}
	parts := []string{imageQueryPrefix}
	for _, ing := range it.Ingredients {
		if imageQueryNoise[norm.NFC.String(ing.Name)] {
			continue
		}
		parts = append(parts, ing.Name)
	}
	return strings.Join(parts, " "), true
}
