package provider

import (
	"net/http"

	"biteboard/internal/menu"
)

const (
	mannheimPage      = "https://www.stw-ma.de/Essen+_+Trinken/Speisepl%C3%A4ne/Hochschule+Mannheim.html"
	mannheimWeekPage  = "https://www.stw-ma.de/Essen+_+Trinken/Speisepl%C3%A4ne/Hochschule+Mannheim-date-{date}-view-week.html"
	mannheimThumbnail = "https://encrypted-tbn0.gstatic.com/images?q=tbn:ANd9GcQPpP_niFgiON6iSyRENQKGY2VdVsccUg2nI45u2N1L2Q&s"
)

// Builtin returns the providers used when the config lists none.
func Builtin() []Spec {
	return []Spec{
		{
			Name:      "Hochschule Mannheim",
			Link:      mannheimPage,
			Thumbnail: mannheimThumbnail,
			Method:    http.MethodPost,
			URL:       mannheimPage,
			FormField: "day",
			Layout:    menu.LayoutDay,
		},
		{
			Name:      "Hochschule Mannheim (Wochenansicht)",
			Link:      mannheimPage,
			Thumbnail: mannheimThumbnail,
			Method:    http.MethodGet,
			URL:       mannheimWeekPage,
			Layout:    menu.LayoutWeek,
		},
	}
}
