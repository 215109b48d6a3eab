package tgui

import (
	"strings"
	"unicode/utf8"
)

// TruncRunes cuts s to at most n runes, ending in "…" when it had to cut.
func TruncRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n-1 {
			return s[:i] + "…"
		}
		count++
	}
	return s
}

// Split breaks an HTML message into chunks of at most limit runes. Cuts
// happen only at blank lines so tags opened in a paragraph stay balanced;
// a single paragraph longer than limit becomes its own chunk.
func Split(text string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	var (
		out []string
		cur strings.Builder
		n   int
	)
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
			n = 0
		}
	}
	for _, para := range strings.Split(text, "\n\n") {
		pn := utf8.RuneCountInString(para)
		if n > 0 && n+2+pn > limit {
			flush()
		}
		if n > 0 {
			cur.WriteString("\n\n")
			n += 2
		}
		cur.WriteString(para)
		n += pn
	}
	flush()
	return out
}
