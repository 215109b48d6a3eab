// Package i18n holds the bot's user-facing strings.
//
// Catalogs are embedded JSON trees addressed by dotted keys
// ("command.menu.description"). Placeholders are written {0}, {1}, ...
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/language"
)

//go:embed lang/*.json
var langFS embed.FS

const fallbackLang = "en"

// Catalog resolves keys for one language. Missing keys fall back to English,
// then to the key itself. Safe for concurrent use (read-only after New).
type Catalog struct {
	lang     string
	msgs     map[string]string
	fallback map[string]string
}

var (
	catalogs  map[string]map[string]string
	supported []language.Tag
	names     []string
	loadErr   error
)

func init() {
	catalogs, loadErr = loadAll()
	for name := range catalogs {
		names = append(names, name)
	}
	sort.Strings(names)
	// English first so it is the matcher's default.
	supported = append(supported, language.English)
	for _, n := range names {
		if n != fallbackLang {
			supported = append(supported, language.Make(n))
		}
	}
}

func loadAll() (map[string]map[string]string, error) {
	entries, err := langFS.ReadDir("lang")
	if err != nil {
		return nil, err
	}
	out := map[string]map[string]string{}
	for _, e := range entries {
		b, err := langFS.ReadFile(path.Join("lang", e.Name()))
		if err != nil {
			return nil, err
		}
		var tree map[string]any
		if err := json.Unmarshal(b, &tree); err != nil {
			return nil, fmt.Errorf("i18n: %s: %w", e.Name(), err)
		}
		flat := map[string]string{}
		flatten("", tree, flat)
		out[strings.TrimSuffix(e.Name(), ".json")] = flat
	}
	return out, nil
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch t := v.(type) {
		case map[string]any:
			flatten(key, t, out)
		case string:
			out[key] = t
		}
	}
}

// Supported lists the available language codes.
func Supported() []string { return append([]string(nil), names...) }

// New returns the catalog best matching lang ("de", "de-AT", "en-US", ...).
// An empty lang selects English.
func New(lang string) (*Catalog, error) {
	if loadErr != nil {
		return nil, loadErr
	}
	lang = strings.TrimSpace(lang)
	if lang == "" {
		lang = fallbackLang
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return nil, fmt.Errorf("language %q: %w", lang, err)
	}
	_, idx, conf := language.NewMatcher(supported).Match(tag)
	if conf == language.No {
		return nil, fmt.Errorf("language %q not supported, available languages: %s", lang, strings.Join(names, ", "))
	}
	base, _ := supported[idx].Base()
	code := base.String()
	return &Catalog{lang: code, msgs: catalogs[code], fallback: catalogs[fallbackLang]}, nil
}

func (c *Catalog) Lang() string { return c.lang }

// T returns the string for key.
func (c *Catalog) T(key string) string {
	if c != nil {
		if s, ok := c.msgs[key]; ok {
			return s
		}
		if s, ok := c.fallback[key]; ok {
			return s
		}
	}
	return key
}

// F returns the string for key with {i} replaced by args[i].
func (c *Catalog) F(key string, args ...any) string {
	s := c.T(key)
	for i, a := range args {
		s = strings.ReplaceAll(s, "{"+strconv.Itoa(i)+"}", fmt.Sprint(a))
	}
	return s
}
