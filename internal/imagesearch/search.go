// Package imagesearch finds illustrative photos for menu items.
//
// Backends return candidate URLs only; callers filter and pick. Each
// backend has a preferred display Mode, mirroring how the results look best:
// the custom search API returns full photos (one per dish), the result page
// returns thumbnails (combined into one strip).
package imagesearch

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"biteboard/pkg/logx"
)

type Mode string

const (
	ModeSeparate Mode = "separate"
	ModeCombined Mode = "combined"
)

type Searcher interface {
	Search(ctx context.Context, query string) ([]string, error)
	Mode() Mode
}

const (
	ServiceNone       = "none"
	ServiceDummy      = "dummy"
	ServiceGoogleAPI  = "googleApi"
	ServiceGooglePage = "googlePage"
)

type Config struct {
	Service             string
	GoogleAPIKey        string
	GoogleApplicationID string
	// Endpoint overrides the backend base URL (tests, proxies).
	Endpoint string
}

// New returns the configured searcher, or nil when image search is disabled.
func New(cfg Config, client *http.Client, log logx.Logger) (Searcher, error) {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "imagesearch"), logx.String("service", cfg.Service))

	switch strings.TrimSpace(cfg.Service) {
	case "", ServiceNone:
		return nil, nil
	case ServiceDummy:
		return Dummy{}, nil
	case ServiceGooglePage:
		return &GooglePage{client: client, endpoint: cfg.Endpoint, log: log}, nil
	case ServiceGoogleAPI:
		if cfg.GoogleAPIKey == "" || cfg.GoogleApplicationID == "" {
			return nil, fmt.Errorf("image service %s needs google_api_key and google_application_id", ServiceGoogleAPI)
		}
		return &GoogleAPI{
			key:      cfg.GoogleAPIKey,
			cx:       cfg.GoogleApplicationID,
			client:   client,
			endpoint: cfg.Endpoint,
			log:      log,
		}, nil
	default:
		return nil, fmt.Errorf("unknown image service %q", cfg.Service)
	}
}

// FilterURLs keeps absolute http(s) URLs; with photosOnly it also requires a
// .jpg, .jpeg or .png path.
func FilterURLs(urls []string, photosOnly bool) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if !strings.HasPrefix(u, "https://") && !strings.HasPrefix(u, "http://") {
			continue
		}
		if photosOnly {
			lu := strings.ToLower(u)
			if !strings.HasSuffix(lu, ".jpg") && !strings.HasSuffix(lu, ".jpeg") && !strings.HasSuffix(lu, ".png") {
				continue
			}
		}
		out = append(out, u)
	}
	return out
}

// Dummy returns a fixed set of URLs. Useful to try delivery without an API key.
type Dummy struct{}

func (Dummy) Mode() Mode { return ModeSeparate }

func (Dummy) Search(context.Context, string) ([]string, error) {
	return []string{
		"https://upload.wikimedia.org/wikipedia/commons/6/6d/Good_Food_Display_-_NCI_Visuals_Online.jpg",
		"https://upload.wikimedia.org/wikipedia/commons/thumb/0/0b/RedDot_Burger.jpg/640px-RedDot_Burger.jpg",
	}, nil
}
