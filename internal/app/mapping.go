package app

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"biteboard/internal/api"
	"biteboard/internal/config"
	"biteboard/internal/delivery"
	"biteboard/internal/imagesearch"
	"biteboard/internal/menu"
	"biteboard/internal/provider"
	"biteboard/internal/scheduler"
	"biteboard/internal/storage"
	"biteboard/pkg/logx"
)

const defaultDataPath = "./data/biteboard.json"

func mapLogging(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorage(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)
	switch driver {
	case "", "file", "json":
		if path == "" {
			path = defaultDataPath
		}
		return storage.Config{Driver: "file", Path: path}, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, err
		}
		return storage.Config{Driver: "sqlite", Path: path, BusyTimeout: busy}, nil
	default:
		return storage.Config{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapScheduler(cfg *config.Config) (scheduler.Config, error) {
	sc := cfg.Scheduler
	tick, err := config.ParseDurationOrDefault("scheduler.tick", sc.Tick, 10*time.Second)
	if err != nil {
		return scheduler.Config{}, err
	}
	timeout, err := config.ParseDurationOrDefault("scheduler.fetch_timeout", sc.FetchTimeout, 30*time.Second)
	if err != nil {
		return scheduler.Config{}, err
	}
	enabled := sc.Enabled == nil || *sc.Enabled
	return scheduler.Config{Enabled: enabled, Tick: tick, FetchTimeout: timeout, CatchUp: sc.CatchUp}, nil
}

func mapFetcher(cfg *config.Config) (provider.FetcherConfig, error) {
	fc := cfg.Fetch
	timeout, err := config.ParseDurationOrDefault("fetch.timeout", fc.Timeout, 20*time.Second)
	if err != nil {
		return provider.FetcherConfig{}, err
	}
	base, err := config.ParseDurationOrDefault("fetch.retry_base", fc.RetryBase, time.Second)
	if err != nil {
		return provider.FetcherConfig{}, err
	}
	maxDelay, err := config.ParseDurationOrDefault("fetch.retry_max_delay", fc.RetryMaxDelay, 10*time.Second)
	if err != nil {
		return provider.FetcherConfig{}, err
	}
	return provider.FetcherConfig{
		Timeout:       timeout,
		RetryMax:      fc.RetryMax,
		RetryBase:     base,
		RetryMaxDelay: maxDelay,
		RatePerSec:    fc.RatePerSec,
		UserAgent:     fc.UserAgent,
	}, nil
}

func mapDelivery(cfg *config.Config) (delivery.Config, error) {
	dc := cfg.Delivery
	base, err := config.ParseDurationOrDefault("delivery.retry_base", dc.RetryBase, 500*time.Millisecond)
	if err != nil {
		return delivery.Config{}, err
	}
	del, err := config.ParseDurationField("delivery.delete_images_after", dc.DeleteImagesAfter)
	if err != nil {
		return delivery.Config{}, err
	}
	return delivery.Config{
		RatePerSec:        dc.RatePerSec,
		RetryMax:          dc.RetryMax,
		RetryBase:         base,
		DeleteImagesAfter: del,
		StripHeight:       dc.StripHeight,
	}, nil
}

func mapImages(cfg *config.Config) imagesearch.Config {
	return imagesearch.Config{
		Service:             cfg.Images.Service,
		GoogleAPIKey:        cfg.Images.GoogleAPIKey,
		GoogleApplicationID: cfg.Images.GoogleApplicationID,
		Endpoint:            cfg.Images.Endpoint,
	}
}

func mapAPI(cfg *config.Config) api.Config {
	return api.Config{Addr: cfg.API.Addr, AccessKey: cfg.API.AccessKey, Pprof: cfg.API.Pprof}
}

// location is the zone /menu and the API use for "today". Empty means local time.
func location(cfg *config.Config) (*time.Location, error) {
	tz := strings.TrimSpace(cfg.Timezone)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", tz, err)
	}
	return loc, nil
}

// providerSpecs returns the configured providers, or the built-in ones.
func providerSpecs(cfg *config.Config) ([]provider.Spec, error) {
	if len(cfg.Providers) == 0 {
		return provider.Builtin(), nil
	}
	out := make([]provider.Spec, 0, len(cfg.Providers))
	for i, pc := range cfg.Providers {
		layout, err := menu.ParseLayout(pc.Layout)
		if err != nil {
			return nil, fmt.Errorf("providers[%d]: %w", i, err)
		}
		out = append(out, provider.Spec{
			Name:      pc.Name,
			Link:      pc.Link,
			Thumbnail: pc.Thumbnail,
			Method:    pc.Method,
			URL:       pc.URL,
			FormField: pc.FormField,
			Layout:    layout,
		})
	}
	return out, nil
}

// BuildProviders creates the fetcher and registers every provider.
// Duplicate names are an error.
func BuildProviders(cfg *config.Config, log logx.Logger) (*provider.Registry, error) {
	fc, err := mapFetcher(cfg)
	if err != nil {
		return nil, err
	}
	specs, err := providerSpecs(cfg)
	if err != nil {
		return nil, err
	}
	fetch := provider.NewFetcher(fc, &http.Client{}, log)
	reg := provider.NewRegistry()
	for _, spec := range specs {
		p, err := provider.New(spec, fetch, log)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(p); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
