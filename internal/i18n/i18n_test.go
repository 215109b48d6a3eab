package i18n

import (
	"strings"
	"testing"
)

func TestNewMatchesLanguage(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{"", "en"},
		{"en", "en"},
		{"de", "de"},
		{"de-AT", "de"},
		{"en-US", "en"},
	}
	for _, tt := range tests {
		c, err := New(tt.in)
		if err != nil {
			t.Fatalf("New(%q): %v", tt.in, err)
		}
		if c.Lang() != tt.want {
			t.Fatalf("New(%q).Lang() = %s, want %s", tt.in, c.Lang(), tt.want)
		}
	}
	if _, err := New("ja"); err == nil {
		t.Fatal("expected error for unsupported language")
	}
}

func TestTranslate(t *testing.T) {
	t.Parallel()
	de, err := New("de")
	if err != nil {
		t.Fatal(err)
	}
	if got := de.T("command.menu.options.tomorrow.name"); got != "morgen" {
		t.Fatalf("T = %q", got)
	}
	if got := de.T("no.such.key"); got != "no.such.key" {
		t.Fatalf("missing key = %q", got)
	}
	got := de.F("command.settingsmenu.response.periodicMenu.success", "12:00:00", "Mensa", 1440)
	if !strings.Contains(got, "12:00:00") || !strings.Contains(got, "Mensa") || !strings.Contains(got, "1440") {
		t.Fatalf("F = %q", got)
	}
}

func TestCatalogsHaveSameKeys(t *testing.T) {
	t.Parallel()
	en := catalogs["en"]
	for lang, msgs := range catalogs {
		for k := range en {
			if _, ok := msgs[k]; !ok {
				t.Fatalf("%s is missing %s", lang, k)
			}
		}
	}
	if len(Supported()) < 2 {
		t.Fatalf("Supported = %v", Supported())
	}
}
