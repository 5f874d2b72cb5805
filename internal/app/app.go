// Package app wires the process together: config, logging, persistence, the
// countdown engine, the staleness monitor, and the notification pipeline.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tickbar/internal/config"
	"tickbar/internal/countdown"
	"tickbar/internal/eventbus"
	"tickbar/internal/notify"
	"tickbar/internal/periodic"
	"tickbar/internal/runtime/supervisor"
	"tickbar/internal/settings"
	"tickbar/internal/staleness"
	"tickbar/internal/storage"
	logx "tickbar/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	settings *settings.Store
	runner   *periodic.Runner
	notif    *notify.Service
	engine   *countdown.Engine
	monitor  *staleness.Monitor
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	// Storage (optional): without it, settings live in memory only.
	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	set := settings.New(store, log.With(logx.String("comp", "settings")))
	set.Seed(cfg)

	runner := periodic.NewRunner(log.With(logx.String("comp", "periodic")))

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return nil, err
	}
	notifSvc := notify.New(ncfg, notify.NewDesktopAdapter(),
		log.With(logx.String("comp", "notify")), bus)

	speaker := newSpeaker(cfg, log.With(logx.String("comp", "speech")))

	engine := countdown.New(set, runner, speaker,
		log.With(logx.String("comp", "countdown")), bus)

	monitor := staleness.New(set, notifSvc, runner,
		log.With(logx.String("comp", "monitor")), bus)

	return &App{
		cfgPath:  cfgPath,
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		bus:      bus,
		store:    store,
		settings: set,
		runner:   runner,
		notif:    notifSvc,
		engine:   engine,
		monitor:  monitor,
	}, nil
}

// Accessors for the embedding UI (menu bar, CLI).
func (a *App) Countdown() *countdown.Engine { return a.engine }
func (a *App) Monitor() *staleness.Monitor  { return a.monitor }
func (a *App) Notifier() *notify.Service    { return a.notif }
func (a *App) Settings() *settings.Store    { return a.settings }
func (a *App) Bus() eventbus.Bus            { return a.bus }

// Done is closed when the app supervisor context is canceled (fatal error or
// Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Diagnostics is a point-in-time view of the whole process for debug output.
type Diagnostics struct {
	Countdown  countdown.Snapshot   `json:"countdown"`
	Monitor    staleness.Status     `json:"monitor"`
	Notify     []notify.HistoryItem `json:"notify_history"`
	Supervisor supervisor.Snapshot  `json:"supervisor"`
}

func (a *App) Diagnostics() Diagnostics {
	d := Diagnostics{
		Countdown: a.engine.Snapshot(),
		Monitor:   a.monitor.Snapshot(),
		Notify:    a.notif.Snapshot(),
	}
	if a.sup != nil {
		d.Supervisor = a.sup.Snapshot()
	}
	return d
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log))

	// Transactional config reload: validate before commit/publish.
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if err := config.Validate(cfg); err != nil {
			return err
		}
		if _, err := mapNotifierConfig(cfg); err != nil {
			return err
		}
		if _, _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		return nil
	})

	a.runner.Start()
	a.notif.Start(a.sup.Context())
	a.monitor.Start(a.sup.Context())

	// Debug visibility into bus traffic; components subscribe themselves for
	// anything functional.
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	// Live config reload fan-out.
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyReload(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.GoRestart("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

// applyReload pushes a validated new config into the running services.
func (a *App) applyReload(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)

	for _, s := range sections {
		switch s {
		case "logging":
			a.logs.Apply(mapLogConfig(newCfg))
		case "notifier":
			ncfg, err := mapNotifierConfig(newCfg)
			if err != nil {
				a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
				continue
			}
			prevEnabled := a.notif.Enabled()
			a.notif.Apply(ncfg)
			if prevEnabled && !ncfg.Enabled {
				a.log.Info("notifier disabled via config")
				stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				a.notif.Stop(stopCtx)
				cancel()
			} else if !prevEnabled && ncfg.Enabled {
				a.log.Info("notifier enabled via config")
				a.notif.Start(ctx)
			}
		case "speech":
			a.engine.SetSpeaker(newSpeaker(newCfg, a.log.With(logx.String("comp", "speech"))))
		case "storage":
			a.log.Warn("storage config changed; restart required for changes to take effect")
		case "timer", "monitor":
			// These sections only seed first-run defaults; persisted settings
			// win at runtime.
			a.log.Debug("timer/monitor config changed; persisted settings take precedence",
				logx.String("section", s))
		}
	}

	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Cancel the run context first so background loops start unwinding.
	a.sup.Cancel()

	// Bounded shutdown steps so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			if dl, ok := ctx.Deadline(); ok {
				if rem := time.Until(dl); rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

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
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	step("monitor", 1*time.Second, func(context.Context) error { a.monitor.Stop(); return nil })
	step("countdown", 1*time.Second, func(context.Context) error { a.engine.Stop(false); return nil })
	step("periodic", 2*time.Second, func(c context.Context) error { a.runner.Stop(c); return nil })
	step("notifier", 2*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	step("storage", 1*time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		a.logs.Close()
	}
	return nil
}
