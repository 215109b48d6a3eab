// Package scheduler posts the menu into subscribed channels once a day.
//
// A single cron entry ticks every Config.Tick (UTC). On each tick every
// channel subscription whose "HH:MM:SS" time fell into the last tick window
// is fired; each fired channel runs its own supervised pipeline
// (resolve provider, fetch, deliver) so one slow provider never delays
// another channel.
package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"biteboard/internal/delivery"
	"biteboard/internal/menu"
	"biteboard/internal/provider"
	"biteboard/internal/runtime/supervisor"
	"biteboard/internal/storage"
	"biteboard/internal/subscription"
	kit "biteboard/internal/transport"
	"biteboard/pkg/logx"
)

const day = 24 * time.Hour

type Config struct {
	Enabled      bool
	Tick         time.Duration
	FetchTimeout time.Duration
	// CatchUp fires an occurrence on a later tick when its window was
	// missed. Tracked in memory only.
	CatchUp bool
}

func (c Config) withDefaults() Config {
	if c.Tick <= 0 {
		c.Tick = 10 * time.Second
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 30 * time.Second
	}
	return c
}

type Subscriptions interface {
	Channels() map[string]storage.ChannelSubscription
}

type Providers interface {
	Get(name string) (provider.Provider, bool)
}

type Deliverer interface {
	Menu(ctx context.Context, to kit.ChatTarget, m delivery.Menu) error
	NoMenu(ctx context.Context, to kit.ChatTarget, p provider.Provider, date menu.Date) error
}

type Service struct {
	mu  sync.Mutex
	cfg Config
	c   *cron.Cron
	sup *supervisor.Supervisor
	// fired holds, per channel, the last occurrence already handled.
	fired map[string]time.Time
	now   func() time.Time

	subs      Subscriptions
	providers Providers
	out       Deliverer
	log       logx.Logger
}

func New(cfg Config, subs Subscriptions, providers Providers, out Deliverer, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "scheduler"))
	return &Service{
		cfg:       cfg.withDefaults(),
		fired:     map[string]time.Time{},
		now:       time.Now,
		subs:      subs,
		providers: providers,
		out:       out,
		log:       log,
	}
}

// Apply updates fetch timeout and catch-up live. A new tick needs a restart.
func (s *Service) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.Tick != s.cfg.Tick && s.c != nil {
		s.log.Warn("scheduler tick changed, restart required", logx.Duration("tick", s.cfg.Tick), logx.Duration("new_tick", cfg.Tick))
		cfg.Tick = s.cfg.Tick
	}
	s.cfg = cfg
}

func (s *Service) config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Start begins ticking. Deliveries run under a supervisor bound to ctx.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	if !s.cfg.Enabled {
		s.log.Info("scheduler disabled")
		return
	}
	if s.sup != nil {
		s.sup.Cancel()
	}
	s.sup = supervisor.New(ctx, supervisor.WithLogger(s.log))
	s.c = cron.New(cron.WithLocation(time.UTC))
	s.c.Schedule(cron.Every(s.cfg.Tick), cron.FuncJob(func() { s.runTick() }))
	s.c.Start()
	s.log.Info("scheduler started",
		logx.Duration("tick", s.cfg.Tick),
		logx.Bool("catch_up", s.cfg.CatchUp),
		logx.Int("channels", len(s.subs.Channels())),
	)
}

// Stop halts ticking and waits for running deliveries until ctx is done.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.c
	s.c = nil
	sup := s.sup
	s.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}
	if sup == nil {
		return nil
	}
	err := sup.Stop(ctx)
	s.log.Info("scheduler stopped",
		logx.Int64("deliveries", int64(sup.Started())),
		logx.Int64("abandoned", sup.Active()),
	)
	return err
}

// Wait blocks until all deliveries started so far have finished.
func (s *Service) Wait(ctx context.Context) error {
	return s.supervisor().Wait(ctx)
}

func (s *Service) supervisor() *supervisor.Supervisor {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sup == nil {
		s.sup = supervisor.New(context.Background(), supervisor.WithLogger(s.log))
	}
	return s.sup
}

// runTick is the cron job. The clock is truncated to the second so that
// consecutive windows are exactly Tick apart.
func (s *Service) runTick() []string {
	return s.Tick(s.supervisor().Context(), s.now().Truncate(time.Second))
}

// lastOccurrence is the latest instant at or before now whose UTC time of day is at.
func lastOccurrence(now time.Time, at time.Duration) time.Time {
	now = now.UTC()
	occ := menu.DateOf(now).Time().Add(at)
	if occ.After(now) {
		occ = occ.Add(-day)
	}
	return occ
}

// Due reports whether the daily UTC time at fell into the tick window ending
// at now: 0 <= (now - at) mod 24h < tick.
func Due(now time.Time, at, tick time.Duration) bool {
	return now.Sub(lastOccurrence(now, at)) < tick
}

// Tick fires every due channel and returns their ids, sorted.
func (s *Service) Tick(ctx context.Context, now time.Time) []string {
	cfg := s.config()
	now = now.UTC()
	subs := s.subs.Channels()

	var fire []string
	s.mu.Lock()
	for id, sub := range subs {
		at, err := subscription.ParseTime(sub.Time)
		if err != nil {
			s.log.Warn("invalid subscription time", logx.String("channel", id), logx.String("time", sub.Time))
			continue
		}
		occ := lastOccurrence(now, at)
		due := now.Sub(occ) < cfg.Tick
		if cfg.CatchUp {
			last, seen := s.fired[id]
			switch {
			case last.Equal(occ):
				due = false
			case !seen && !due:
				// Occurrences before we first saw the channel are not owed.
				s.fired[id] = occ
			default:
				due = true
			}
			if due {
				s.fired[id] = occ
			}
		}
		if due {
			fire = append(fire, id)
		}
	}
	for id := range s.fired {
		if _, ok := subs[id]; !ok {
			delete(s.fired, id)
		}
	}
	s.mu.Unlock()
	sup := s.supervisor()

	sort.Strings(fire)
	for _, id := range fire {
		id, sub := id, subs[id]
		sup.Go("channel."+id, func(c context.Context) error {
			s.deliver(c, id, sub, now, cfg.FetchTimeout)
			return nil
		})
	}
	return fire
}

// deliver is one channel's pipeline. Failures are logged; the channel simply
// waits for its next occurrence.
func (s *Service) deliver(ctx context.Context, channelID string, sub storage.ChannelSubscription, now time.Time, fetchTimeout time.Duration) {
	log := s.log.With(logx.String("channel", channelID), logx.String("provider", sub.Provider))

	to, err := kit.ParseChatTarget(channelID)
	if err != nil {
		log.Error("invalid channel id", logx.Err(err))
		return
	}
	p, ok := s.providers.Get(sub.Provider)
	if !ok {
		log.Error("provider for channel is not available")
		return
	}

	target := menu.DateOf(now.Add(time.Duration(sub.AddTime) * time.Minute))
	log = log.With(logx.String("date", target.String()))
	log.Info("posting periodic menu", logx.Int("add_minutes", sub.AddTime))

	fctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	items, err := p.Fetch(fctx, target)
	cancel()
	if err != nil {
		log.Warn("periodic fetch failed", logx.Bool("timeout", isTimeout(err)), logx.Err(err))
		return
	}

	if len(items) == 0 {
		err = s.out.NoMenu(ctx, to, p, target)
	} else {
		err = s.out.Menu(ctx, to, delivery.Menu{Provider: p, Date: target, Items: items})
	}
	if err != nil {
		log.Warn("periodic delivery failed", logx.Err(err))
	}
}

func isTimeout(err error) bool {
	var fe *provider.FetchError
	if errors.As(err, &fe) {
		return fe.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}
