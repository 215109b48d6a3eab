package config

import (
	"fmt"
	"strings"
	"time"
)

// ParseDurationField parses a config duration. Empty means 0; negative
// values are rejected. path names the key in error messages.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def for empty or zero.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}

// durations lists every duration key with its raw value.
func (c *Config) durations() map[string]string {
	return map[string]string{
		"telegram.poll_timeout":        c.Telegram.PollTimeout,
		"storage.busy_timeout":         c.Storage.BusyTimeout,
		"scheduler.tick":               c.Scheduler.Tick,
		"scheduler.fetch_timeout":      c.Scheduler.FetchTimeout,
		"fetch.timeout":                c.Fetch.Timeout,
		"fetch.retry_base":             c.Fetch.RetryBase,
		"fetch.retry_max_delay":        c.Fetch.RetryMaxDelay,
		"delivery.retry_base":          c.Delivery.RetryBase,
		"delivery.delete_images_after": c.Delivery.DeleteImagesAfter,
	}
}
