package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"biteboard/internal/menu"
	"biteboard/internal/provider"
	"biteboard/pkg/logx"
)

type Handler struct {
	providers    Providers
	subs         Subscriptions
	fetchTimeout time.Duration
	now          func() time.Time
	loc          *time.Location
	started      time.Time
	log          logx.Logger
}

type HandlerOptions struct {
	FetchTimeout time.Duration
	// Location decides which date "no date given" means.
	Location *time.Location
	Now      func() time.Time
}

func NewHandler(providers Providers, subs Subscriptions, opts HandlerOptions, log logx.Logger) *Handler {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 30 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Handler{
		providers:    providers,
		subs:         subs,
		fetchTimeout: opts.FetchTimeout,
		now:          opts.Now,
		loc:          opts.Location,
		started:      opts.Now(),
		log:          log.With(logx.String("comp", "api")),
	}
}

type providerInfo struct {
	Name      string `json:"name"`
	Link      string `json:"link,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

type menuResponse struct {
	Provider string          `json:"provider"`
	Date     menu.Date       `json:"date"`
	Items    []menu.Item     `json:"items"`
	Features []*menu.Feature `json:"features"`
}

type subscriptionInfo struct {
	Channel  string `json:"channel"`
	Time     string `json:"time"`
	Provider string `json:"provider"`
	AddTime  int    `json:"addTime"`
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": h.now().UTC().Format(time.RFC3339),
		"uptime":    h.now().Sub(h.started).Round(time.Second).String(),
		"providers": len(h.providers.List()),
	})
}

func (h *Handler) ListProviders(c *gin.Context) {
	list := h.providers.List()
	out := make([]providerInfo, 0, len(list))
	for _, p := range list {
		out = append(out, providerInfo{Name: p.Name(), Link: p.Link(), Thumbnail: p.Thumbnail()})
	}
	c.JSON(http.StatusOK, out)
}

// ProviderMenu fetches the menu of one provider. ?date=YYYY-MM-DD, default today.
func (h *Handler) ProviderMenu(c *gin.Context) {
	name := c.Param("name")
	p, ok := h.providers.Get(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown provider", "provider": name})
		return
	}

	date := menu.DateOf(h.now().In(h.loc))
	if raw := c.Query("date"); raw != "" {
		d, err := menu.ParseDate(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		date = d
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.fetchTimeout)
	defer cancel()
	items, err := p.Fetch(ctx, date)
	if err != nil {
		_ = c.Error(err)
		status := http.StatusBadGateway
		var fe *provider.FetchError
		if errors.As(err, &fe) && fe.Timeout() {
			status = http.StatusGatewayTimeout
		}
		h.log.Warn("menu fetch failed", logx.String("provider", name), logx.String("date", date.String()), logx.Err(err))
		c.JSON(status, gin.H{"error": "menu fetch failed", "provider": name})
		return
	}

	features := menu.AllFeatures(items)
	if features == nil {
		features = []*menu.Feature{}
	}
	if items == nil {
		items = []menu.Item{}
	}
	c.JSON(http.StatusOK, menuResponse{Provider: p.Name(), Date: date, Items: items, Features: features})
}

func (h *Handler) ListSubscriptions(c *gin.Context) {
	channels := h.subs.Channels()
	out := make([]subscriptionInfo, 0, len(channels))
	for id, s := range channels {
		out = append(out, subscriptionInfo{Channel: id, Time: s.Time, Provider: s.Provider, AddTime: s.AddTime})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Channel < out[j].Channel })
	c.JSON(http.StatusOK, out)
}
