package config

import (
	"reflect"

	"biteboard/pkg/logx"
)

// Sections applied without restart.
var liveSections = map[string]bool{
	"logging":   true,
	"delivery":  true,
	"scheduler": true,
}

// Change summarizes a config reload.
type Change struct {
	// Sections lists changed top-level keys in declaration order.
	Sections []string
	// Restart lists the changed sections that only take effect after a restart.
	Restart []string
}

func (c Change) Empty() bool { return len(c.Sections) == 0 }

// Has reports whether section changed.
func (c Change) Has(section string) bool {
	for _, s := range c.Sections {
		if s == section {
			return true
		}
	}
	return false
}

// Diff compares two configs section by section.
func Diff(oldCfg, newCfg *Config) Change {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	pairs := []struct {
		name     string
		old, new any
	}{
		{"telegram", oldCfg.Telegram, newCfg.Telegram},
		{"language", oldCfg.Language, newCfg.Language},
		{"timezone", oldCfg.Timezone, newCfg.Timezone},
		{"logging", oldCfg.Logging, newCfg.Logging},
		{"storage", oldCfg.Storage, newCfg.Storage},
		{"scheduler", oldCfg.Scheduler, newCfg.Scheduler},
		{"fetch", oldCfg.Fetch, newCfg.Fetch},
		{"delivery", oldCfg.Delivery, newCfg.Delivery},
		{"images", oldCfg.Images, newCfg.Images},
		{"providers", oldCfg.Providers, newCfg.Providers},
		{"api", oldCfg.API, newCfg.API},
		{"systemd", oldCfg.Systemd, newCfg.Systemd},
	}
	var ch Change
	for _, p := range pairs {
		if reflect.DeepEqual(p.old, p.new) {
			continue
		}
		ch.Sections = append(ch.Sections, p.name)
		if !liveSections[p.name] {
			ch.Restart = append(ch.Restart, p.name)
		}
	}
	return ch
}

// LogFields describes the new values of changed sections. Secrets are
// reported only as set or unset.
func (c Change) LogFields(cfg *Config) []logx.Field {
	out := []logx.Field{logx.Strings("changed", c.Sections)}
	if len(c.Restart) > 0 {
		out = append(out, logx.Strings("restart_required", c.Restart))
	}
	for _, s := range c.Sections {
		switch s {
		case "telegram":
			out = append(out,
				logx.Int("telegram.owner_count", len(cfg.Telegram.OwnerUserIDs)),
				logx.Bool("telegram.token_set", cfg.Telegram.Token != ""),
			)
		case "logging":
			out = append(out,
				logx.String("logging.level", cfg.Logging.Level),
				logx.Bool("logging.console", cfg.Logging.Console),
				logx.Bool("logging.file", cfg.Logging.File.Enabled),
			)
		case "delivery":
			out = append(out,
				logx.Any("delivery.rate_per_sec", cfg.Delivery.RatePerSec),
				logx.String("delivery.delete_images_after", cfg.Delivery.DeleteImagesAfter),
			)
		case "images":
			out = append(out,
				logx.String("images.service", cfg.Images.Service),
				logx.Bool("images.key_set", cfg.Images.GoogleAPIKey != ""),
			)
		case "providers":
			out = append(out, logx.Int("providers.count", len(cfg.Providers)))
		case "api":
			out = append(out,
				logx.Bool("api.enabled", cfg.API.Enabled),
				logx.String("api.addr", cfg.API.Addr),
				logx.Bool("api.key_set", cfg.API.AccessKey != ""),
			)
		}
	}
	return out
}
