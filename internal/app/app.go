// Package app wires configuration to the bot's components and runs them.
package app

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"biteboard/internal/api"
	"biteboard/internal/commands"
	"biteboard/internal/config"
	"biteboard/internal/delivery"
	"biteboard/internal/i18n"
	"biteboard/internal/imagesearch"
	"biteboard/internal/provider"
	"biteboard/internal/runtime/supervisor"
	"biteboard/internal/scheduler"
	"biteboard/internal/storage"
	"biteboard/internal/subscription"
	kit "biteboard/internal/transport"
	telegram "biteboard/internal/transport/telegram/adapter"
	"biteboard/internal/transport/telegram/router"
	"biteboard/pkg/logx"
	"biteboard/pkg/systemd"
)

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	store     storage.Store
	subs      *subscription.Service
	providers *provider.Registry
	catalog   *i18n.Catalog

	adapter  *telegram.Adapter
	delivery *delivery.Service
	sched    *scheduler.Service
	cmdm     *router.CommandManager
	api      *api.Server
	notify   systemd.Notifier

	// owners is swapped on config reload.
	owners atomic.Pointer[[]int64]

	// deliverySup runs delayed image deletions; pending ones are abandoned on Stop.
	deliverySup *supervisor.Supervisor
	commandList []router.Command
	updates     chan kit.Update
}

// New loads nothing itself: cfgm must already hold a validated config.
func New(ctx context.Context, cfgm *config.Manager) (*App, error) {
	cfg := cfgm.Get()
	if cfg == nil {
		return nil, fmt.Errorf("config not loaded")
	}

	logSvc, root, logErr := logx.New(mapLogging(cfg))
	log := root.With(logx.String("comp", "app"))
	cfgm.SetLogger(root)
	if logErr != nil {
		log.Warn("log file unavailable, logging to console", logx.Err(logErr))
	}

	cat, err := i18n.New(cfg.Language)
	if err != nil {
		return nil, err
	}
	loc, err := location(cfg)
	if err != nil {
		return nil, err
	}

	sc, err := mapStorage(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, root)
	if err != nil {
		return nil, err
	}
	subs, err := subscription.Open(ctx, store, root)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	providers, err := BuildProviders(cfg, root)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	log.Info("providers registered", logx.Strings("providers", providers.Names()))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{Token: cfg.Telegram.Token, PollTimeout: pollTimeout}, root.With(logx.String("comp", "telegram")))
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	images, err := imagesearch.New(mapImages(cfg), &http.Client{Timeout: 15 * time.Second}, root)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	dc, err := mapDelivery(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	deliverySup := supervisor.New(context.Background(), supervisor.WithLogger(root.With(logx.String("comp", "delivery"))))
	out := delivery.New(dc, ad, images, cat, deliverySup, root)

	schedCfg, err := mapScheduler(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	sched := scheduler.New(schedCfg, subs, providers, out, root)

	a := &App{
		cfgm:        cfgm,
		log:         log,
		logs:        logSvc,
		store:       store,
		subs:        subs,
		providers:   providers,
		catalog:     cat,
		adapter:     ad,
		delivery:    out,
		sched:       sched,
		notify:      systemd.New(cfg.Systemd.Notify),
		deliverySup: deliverySup,
		updates:     make(chan kit.Update, 256),
	}
	a.setOwners(cfg.Telegram.OwnerUserIDs)

	a.cmdm = router.NewCommandManager(root.With(logx.String("comp", "commands")), ad, router.Options{
		Workers:   cfg.Telegram.Workers,
		QueueSize: cfg.Telegram.QueueSize,
		Authorize: commands.Authorizer(subs, a.ownerIDs),
		Catalog:   cat,
	})
	a.commandList = commands.Build(commands.Deps{
		Providers:    providers,
		Subs:         subs,
		Resolver:     subscription.NewResolver(subs, providers, root),
		Delivery:     out,
		Catalog:      cat,
		Location:     loc,
		FetchTimeout: schedCfg.FetchTimeout,
		Log:          root,
	})

	if cfg.API.Enabled {
		h := api.NewHandler(providers, subs, api.HandlerOptions{FetchTimeout: schedCfg.FetchTimeout, Location: loc}, root)
		a.api = api.New(mapAPI(cfg), h, root)
	}
	return a, nil
}

func (a *App) setOwners(ids []int64) {
	cp := append([]int64(nil), ids...)
	a.owners.Store(&cp)
}

func (a *App) ownerIDs() []int64 {
	if p := a.owners.Load(); p != nil {
		return *p
	}
	return nil
}

// Done is closed when the app context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error seen by the app supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.cmdm.SetSupervisor(a.sup)
	a.cmdm.SetRegistry(a.commandList)

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.cmdm.DispatchLoop(c, a.updates)
	})
	a.sched.Start(a.sup.Context())

	if a.api != nil {
		if err := a.api.Start(a.sup.Context(), a.sup); err != nil {
			return fmt.Errorf("start api: %w", err)
		}
	}

	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := mapDelivery(cfg); err != nil {
			return err
		}
		_, err := mapScheduler(cfg)
		return err
	})
	sub := a.cfgm.Subscribe(4)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		applied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case next, ok := <-sub:
				if !ok {
					return
				}
				a.apply(c, applied, next)
				applied = next
			}
		}
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	a.sup.Go0("systemd.watchdog", func(c context.Context) {
		a.notify.Watchdog(c, func() bool { return a.sup.Context().Err() == nil })
	})
	if sent, err := a.notify.Ready(); err != nil {
		a.log.Warn("systemd notify failed", logx.Err(err))
	} else if sent {
		a.log.Debug("systemd notified ready")
	}

	a.log.Info("app started",
		logx.String("bot", a.adapter.Username()),
		logx.String("language", a.catalog.Lang()),
		logx.Int("providers", a.providers.Len()),
		logx.Int("channels", len(a.subs.Channels())),
	)
	return nil
}

// apply hot-reloads the sections that support it.
func (a *App) apply(ctx context.Context, prev, next *config.Config) {
	ch := config.Diff(prev, next)
	if ch.Empty() {
		a.log.Debug("config reload without effective changes")
		return
	}
	_, _ = a.notify.Reloading()
	defer func() { _, _ = a.notify.Ready() }()

	if ch.Has("logging") {
		if err := a.logs.Apply(mapLogging(next)); err != nil {
			a.log.Warn("log file unavailable, keeping previous sinks", logx.Err(err))
		}
	}
	a.setOwners(next.Telegram.OwnerUserIDs)
	if ch.Has("delivery") {
		if dc, err := mapDelivery(next); err == nil {
			a.delivery.Apply(dc)
		}
	}
	if ch.Has("scheduler") {
		if sc, err := mapScheduler(next); err == nil {
			a.applyScheduler(ctx, sc)
		}
	}
	a.log.Info("config reloaded", ch.LogFields(next)...)
}

func (a *App) applyScheduler(ctx context.Context, sc scheduler.Config) {
	a.sched.Apply(sc)
	if sc.Enabled {
		a.sched.Start(ctx)
		return
	}
	stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_ = a.sched.Stop(stopCtx)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = a.notify.Stopping()
	a.sup.Cancel()

	a.step(ctx, "scheduler", 3*time.Second, a.sched.Stop)
	a.step(ctx, "api", 2*time.Second, func(c context.Context) error {
		if a.api == nil {
			return nil
		}
		return a.api.Stop(c)
	})
	a.step(ctx, "adapter", 2*time.Second, a.adapter.Stop)
	a.step(ctx, "delivery", 2*time.Second, a.deliverySup.Stop)
	a.step(ctx, "supervisor", 2*time.Second, a.sup.Wait)
	a.step(ctx, "storage", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	return a.logs.Close()
}

// step runs one shutdown step bounded by limit and by ctx. A step that
// overruns is logged and left behind.
func (a *App) step(ctx context.Context, name string, limit time.Duration, fn func(context.Context) error) {
	start := time.Now()
	stepCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			a.log.Warn("stop step error", logx.String("step", name), logx.Err(err))
		}
		a.log.Debug("stop step done", logx.String("step", name), logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached, continuing", logx.String("step", name), logx.Duration("elapsed", time.Since(start)))
	}
}
