// Package delivery sends rendered menus into chats.
//
// One delivery is a linear pipeline per target: the menu text first, then
// the optional images, then the scheduled deletion of those images. Only a
// failed text send is an error; image problems are logged and skipped.
package delivery

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"biteboard/internal/i18n"
	"biteboard/internal/imagesearch"
	"biteboard/internal/menu"
	"biteboard/internal/provider"
	"biteboard/internal/runtime/supervisor"
	kit "biteboard/internal/transport"
	"biteboard/pkg/logx"
	"biteboard/pkg/tgui"
)

type Config struct {
	// RatePerSec caps outgoing messages across all targets.
	RatePerSec float64
	// RetryMax is the number of extra attempts for the menu text.
	RetryMax  int
	RetryBase time.Duration
	// DeleteImagesAfter removes image messages after this delay; 0 keeps them.
	DeleteImagesAfter time.Duration
	StripHeight       int
}

type Service struct {
	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter

	adapter kit.Adapter
	images  imagesearch.Searcher
	client  *http.Client
	tr      *i18n.Catalog
	sup     *supervisor.Supervisor
	log     logx.Logger
}

// New builds a Service. images may be nil (no image enrichment). Deletions
// run under sup so they stop with it.
func New(cfg Config, adapter kit.Adapter, images imagesearch.Searcher, tr *i18n.Catalog, sup *supervisor.Supervisor, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if sup == nil {
		sup = supervisor.New(context.Background(), supervisor.WithLogger(log))
	}
	s := &Service{
		adapter: adapter,
		images:  images,
		client:  &http.Client{Timeout: 20 * time.Second},
		tr:      tr,
		sup:     sup,
		log:     log.With(logx.String("comp", "delivery")),
	}
	s.Apply(cfg)
	return s
}

// Apply swaps rate and image settings; safe during hot reload.
func (s *Service) Apply(cfg Config) {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.DeleteImagesAfter < 0 {
		cfg.DeleteImagesAfter = 0
	}
	if cfg.StripHeight <= 0 {
		cfg.StripHeight = imagesearch.DefaultStripHeight
	}
	s.mu.Lock()
	s.cfg = cfg
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), max(1, int(cfg.RatePerSec)))
	s.mu.Unlock()
}

func (s *Service) config() (Config, *rate.Limiter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg, s.limiter
}

// Menu delivers m to target.
func (s *Service) Menu(ctx context.Context, to kit.ChatTarget, m Menu) error {
	id := uuid.NewString()
	log := s.log.With(logx.String("delivery_id", id), logx.String("target", to.String()), logx.String("date", m.Date.String()))
	if m.Provider != nil {
		log = log.With(logx.String("provider", m.Provider.Name()))
	}

	for _, chunk := range tgui.Split(Render(m, s.tr), tgui.MaxMessageLen) {
		if err := s.sendText(ctx, to, chunk); err != nil {
			log.Warn("menu send failed", logx.Err(err))
			return fmt.Errorf("send menu to %s: %w", to, err)
		}
	}
	log.Info("menu sent", logx.Int("items", len(m.Items)))

	refs := s.sendImages(ctx, to, m.Items, log)
	cfg, _ := s.config()
	s.scheduleDelete(refs, cfg.DeleteImagesAfter, log)
	return nil
}

// NoMenu tells target that p serves nothing on date.
func (s *Service) NoMenu(ctx context.Context, to kit.ChatTarget, p provider.Provider, date menu.Date) error {
	text := s.tr.F("command.menu.response.noMenu", ProviderLabel(p), tgui.Esc(FormatDate(date)).String())
	if err := s.sendText(ctx, to, text); err != nil {
		return fmt.Errorf("send no-menu notice to %s: %w", to, err)
	}
	s.log.Info("no menu", logx.String("target", to.String()), logx.String("provider", p.Name()), logx.String("date", date.String()))
	return nil
}

func (s *Service) sendText(ctx context.Context, to kit.ChatTarget, text string) error {
	cfg, lim := s.config()
	opt := &kit.SendOptions{ParseMode: "HTML", DisablePreview: true}
	var err error
	for attempt := 0; attempt <= cfg.RetryMax; attempt++ {
		if attempt > 0 {
			if werr := sleep(ctx, cfg.RetryBase<<(attempt-1)); werr != nil {
				return werr
			}
		}
		if err = lim.Wait(ctx); err != nil {
			return err
		}
		if _, err = s.adapter.SendText(ctx, to, text, opt); err == nil {
			return nil
		}
	}
	return err
}

func (s *Service) sendPhoto(ctx context.Context, to kit.ChatTarget, p kit.Photo) (kit.MessageRef, error) {
	_, lim := s.config()
	if err := lim.Wait(ctx); err != nil {
		return kit.MessageRef{}, err
	}
	return s.adapter.SendPhoto(ctx, to, p, &kit.SendOptions{})
}

type imageQuery struct {
	query string
	item  menu.Item
}

func (s *Service) sendImages(ctx context.Context, to kit.ChatTarget, items []menu.Item, log logx.Logger) []kit.MessageRef {
	if s.images == nil {
		return nil
	}
	var queries []imageQuery
	for _, it := range items {
		if q, ok := menu.ImageQuery(it); ok {
			queries = append(queries, imageQuery{query: q, item: it})
		}
	}
	if len(queries) == 0 {
		return nil
	}

	switch s.images.Mode() {
	case imagesearch.ModeCombined:
		if ref, ok := s.sendCombined(ctx, to, queries, log); ok {
			return []kit.MessageRef{ref}
		}
		return nil
	default:
		return s.sendSeparate(ctx, to, queries, log)
	}
}

func (s *Service) firstImage(ctx context.Context, query string, photosOnly bool, log logx.Logger) (string, bool) {
	urls, err := s.images.Search(ctx, query)
	if err != nil {
		log.Warn("image search failed", logx.String("query", query), logx.Err(err))
		return "", false
	}
	urls = imagesearch.FilterURLs(urls, photosOnly)
	if len(urls) == 0 {
		log.Debug("no image found", logx.String("query", query))
		return "", false
	}
	return urls[0], true
}

func (s *Service) sendSeparate(ctx context.Context, to kit.ChatTarget, queries []imageQuery, log logx.Logger) []kit.MessageRef {
	var refs []kit.MessageRef
	for _, q := range queries {
		url, ok := s.firstImage(ctx, q.query, true, log)
		if !ok {
			continue
		}
		caption := q.item.Name
		if len(q.item.Ingredients) > 0 {
			caption += " ~ " + q.item.Ingredients[0].Name
		}
		caption += "\n" + s.tr.T("command.menu.response.image.individual.footer")
		ref, err := s.sendPhoto(ctx, to, kit.Photo{URL: url, Caption: tgui.TruncRunes(caption, tgui.MaxCaptionLen)})
		if err != nil {
			log.Warn("image send failed", logx.String("url", url), logx.Err(err))
			continue
		}
		refs = append(refs, ref)
	}
	return refs
}

func (s *Service) sendCombined(ctx context.Context, to kit.ChatTarget, queries []imageQuery, log logx.Logger) (kit.MessageRef, bool) {
	var urls []string
	for _, q := range queries {
		if url, ok := s.firstImage(ctx, q.query, false, log); ok {
			urls = append(urls, url)
		}
	}
	if len(urls) == 0 {
		return kit.MessageRef{}, false
	}
	cfg, _ := s.config()
	data, err := imagesearch.CombineURLs(ctx, s.client, urls, cfg.StripHeight, log)
	if err != nil {
		log.Warn("combined image failed", logx.Err(err))
		return kit.MessageRef{}, false
	}
	ref, err := s.sendPhoto(ctx, to, kit.Photo{Data: data, Caption: s.tr.T("command.menu.response.image.combined.title")})
	if err != nil {
		log.Warn("combined image send failed", logx.Err(err))
		return kit.MessageRef{}, false
	}
	return ref, true
}

func (s *Service) scheduleDelete(refs []kit.MessageRef, after time.Duration, log logx.Logger) {
	if after <= 0 || len(refs) == 0 {
		return
	}
	s.sup.Go0("delivery.delete_images", func(ctx context.Context) {
		if sleep(ctx, after) != nil {
			return
		}
		for _, ref := range refs {
			if err := s.adapter.Delete(ctx, ref); err != nil {
				log.Warn("image delete failed", logx.Int("message_id", ref.MessageID), logx.Err(err))
				continue
			}
			log.Debug("image deleted", logx.Int("message_id", ref.MessageID))
		}
	})
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
