package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"stockbot/internal/commands"
	"stockbot/internal/config"
	"stockbot/internal/notifier"
	"stockbot/internal/poller"
	rtsup "stockbot/internal/runtime/supervisor"
	"stockbot/internal/runtime/systemd"
	"stockbot/internal/storage"
	"stockbot/internal/subscription"
	kit "stockbot/internal/transport"
	telegram "stockbot/internal/transport/telegram/adapter"
	"stockbot/internal/transport/telegram/router"
	logx "stockbot/pkg/logx"
)

// Options are the command-line inputs of the app.
type Options struct {
	ConfigPath string
	// LogLevel overrides logging.level, including across reloads.
	LogLevel string
	Env      config.Env
}

const pollerMaxRestarts = 10

type App struct {
	opts Options

	cfgm *config.Manager
	sup  *rtsup.Supervisor
	sd   *systemd.Notifier

	log   logx.Logger
	logs  *logx.Service
	store storage.Store

	adapter *telegram.Adapter
	router  *router.Router
	cmds    *commands.Stock
	notif   *notifier.Service
	subs    *subscription.Service
	src     *sources
	state   *poller.State
	dest    *poller.Destinations
	sched   *poller.Scheduler

	updates chan kit.Update
}

func New(ctx context.Context, opts Options) (*App, error) {
	cfgm := config.NewManager(opts.ConfigPath, opts.Env)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))
	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, defaultPollTimeout)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{Token: cfg.Telegram.Token, PollTimeout: pollTimeout}, bootLog)
	if err != nil {
		return nil, err
	}

	logSvc, root := logx.NewService(mapLogConfig(cfg, opts.LogLevel), chatSender(ad))
	log := root.With(logx.String("comp", "app"))

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, root)
	if err != nil {
		return nil, err
	}
	var (
		subStore subscription.Store
		auditor  commands.Auditor
	)
	if store != nil {
		subStore, auditor = store, store
		log.Info("storage enabled", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
	} else {
		log.Warn("storage disabled; subscriptions are kept in memory only")
	}

	subs := subscription.New(subStore, cfg.Stock.MatchThreshold, root.With(logx.String("comp", "subscriptions")))
	if err := subs.Load(ctx); err != nil {
		// a corrupt table must not be overwritten by the first /sub
		closeStore(store)
		return nil, fmt.Errorf("load subscriptions: %w", err)
	}

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		closeStore(store)
		return nil, err
	}
	notif := notifier.New(ncfg, ad, root.With(logx.String("comp", "notifier")))

	srcCfg, err := mapSourceConfig(cfg)
	if err != nil {
		closeStore(store)
		return nil, err
	}
	src := newSources(srcCfg, root)

	pcfg, err := mapPollerConfig(cfg)
	if err != nil {
		closeStore(store)
		return nil, err
	}
	state := poller.NewState(cfg.Poll.EnabledOrDefault(), pcfg.Interval)
	dest := poller.NewDestinations(mapChats(cfg), ad, root.With(logx.String("comp", "destinations")))
	sched, err := poller.New(pcfg, poller.Deps{
		State:        state,
		Auto:         src.Auto(),
		Manual:       src.Manual(),
		Destinations: dest,
		Publisher:    publisher{notif: notif},
		Subscribers:  poller.SubscribersFunc(func() map[string][]string { return subs.Snapshot() }),
		Log:          root.With(logx.String("comp", "poller")),
	})
	if err != nil {
		closeStore(store)
		return nil, err
	}

	rt := router.New(root.With(logx.String("comp", "router")), ad, router.Options{
		Owners: cfg.Telegram.OwnerUserIDs,
		Admins: cfg.Telegram.AdminUserIDs,
	})
	a := &App{}
	cmds := commands.New(commands.Deps{
		Poller: sched,
		Subs:   subs,
		Audit:  auditor,
		Health: a.health,
		Log:    root.With(logx.String("comp", "commands")),
	})

	*a = App{
		opts:    opts,
		cfgm:    cfgm,
		sd:      systemd.New(root.With(logx.String("comp", "systemd"))),
		log:     log,
		logs:    logSvc,
		store:   store,
		adapter: ad,
		router:  rt,
		cmds:    cmds,
		notif:   notif,
		subs:    subs,
		src:     src,
		state:   state,
		dest:    dest,
		sched:   sched,
		updates: make(chan kit.Update, 256),
	}
	return a, nil
}

// health gathers delivery and goroutine telemetry for /status.
func (a *App) health() commands.Health {
	h := commands.Health{Delivery: a.notif.Stats()}
	if it, ok := a.notif.LastFailure(); ok {
		h.LastFailure = it
	}
	sups := []*rtsup.Supervisor{a.sup}
	if a.adapter != nil {
		sups = append(sups, a.adapter.Supervisor())
	}
	if a.router != nil {
		sups = append(sups, a.router.Supervisor())
	}
	for _, sup := range sups {
		c := sup.Counters()
		h.Tasks.Active += c.Active
		h.Tasks.Started += c.Started
		h.Tasks.Restarts += c.Restarts
		h.Tasks.Panics += c.Panics
	}
	return h
}

func closeStore(st storage.Store) {
	if st != nil {
		_ = st.Close()
	}
}

// chatSender routes log lines to the operator chat through the adapter.
func chatSender(ad kit.Adapter) logx.SendFunc {
	return func(ctx context.Context, chatID int64, threadID int, text string) error {
		_, err := ad.SendText(ctx, kit.ChatTarget{ChatID: chatID, ThreadID: threadID}, text, &kit.SendOptions{DisablePreview: true})
		return err
	}
}

// publisher queues through the notifier and falls back to inline delivery
// while the queue is disabled.
type publisher struct{ notif *notifier.Service }

func (p publisher) Notify(ctx context.Context, n kit.Notification) error {
	err := p.notif.Notify(ctx, n)
	if errors.Is(err, notifier.ErrDisabled) {
		return p.notif.Send(ctx, n)
	}
	return err
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.NewSupervisor(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error { return validate(cfg) })

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	if a.notif.Enabled() {
		a.notif.Start(a.sup.Context())
	}
	a.router.SetCommands(a.sup.Context(), a.cmds.Commands())

	a.sup.Go("router.dispatch", func(c context.Context) error {
		return a.router.DispatchLoop(c, a.updates)
	})
	// Run only fails by panicking; a loop that keeps doing so stops the app.
	a.sup.GoRestart("poller", a.sched.Run,
		rtsup.WithRestartBackoff(time.Second, 30*time.Second),
		rtsup.WithMaxRestarts(pollerMaxRestarts),
	)

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", a.cfgm.Watch)
	a.sup.Go("systemd.watchdog", a.sd.Watchdog)

	a.sd.Ready()
	a.sd.Status(a.statusLine())
	a.log.Info("app started",
		logx.Bool("autoscrape", a.state.Enabled()),
		logx.Time("next_poll", a.sched.NextPollTime()),
		logx.Int("subscribers", a.subs.Users()),
	)
	return nil
}

func (a *App) statusLine() string {
	st, schedule := a.sched.Status()
	mode := "autoscrape off"
	if st.Enabled {
		mode = "autoscrape on (" + schedule + ")"
	}
	return fmt.Sprintf("%s, %d subscribers", mode, a.subs.Users())
}

func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// coalesce bursts: keep only the latest config
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}
			a.applyConfig(ctx, lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

// applyConfig fans a committed config out to the running components.
func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	done := a.sd.Reloading()
	defer done()

	a.logs.Apply(mapLogConfig(newCfg, a.opts.LogLevel))
	a.router.SetAccess(newCfg.Telegram.OwnerUserIDs, newCfg.Telegram.AdminUserIDs)

	if ncfg, err := mapNotifierConfig(newCfg); err != nil {
		a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
	} else {
		prev := a.notif.Enabled()
		a.notif.Apply(ncfg)
		switch {
		case prev && !ncfg.Enabled:
			a.log.Info("notifier disabled via config")
			stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			a.notif.Stop(stopCtx)
			cancel()
		case !prev && ncfg.Enabled:
			a.log.Info("notifier enabled via config")
			a.notif.Start(ctx)
		}
	}

	if slices.Contains(sections, "source") || slices.Contains(sections, "poll") {
		if sc, err := mapSourceConfig(newCfg); err != nil {
			a.log.Warn("invalid source config; keeping previous", logx.Err(err))
		} else {
			a.src.apply(sc)
		}
	}
	if pcfg, err := mapPollerConfig(newCfg); err != nil {
		a.log.Warn("invalid poll config; keeping previous", logx.Err(err))
	} else if err := a.sched.Apply(pcfg); err != nil {
		a.log.Warn("poll config rejected; keeping previous", logx.Err(err))
	}
	// only an edit of poll.enabled overrides /autoscrape
	if was, now := oldCfg.Poll.EnabledOrDefault(), newCfg.Poll.EnabledOrDefault(); was != now {
		a.sched.SetAutoscrape(now)
	}
	a.dest.Set(mapChats(newCfg))
	a.subs.SetCutoff(newCfg.Stock.MatchThreshold)

	if slices.Contains(sections, "storage") {
		a.log.Warn("storage config changed; restart required for changes to take effect")
	}
	if oldCfg.Telegram.Token != newCfg.Telegram.Token || oldCfg.Telegram.PollTimeout != newCfg.Telegram.PollTimeout {
		a.log.Warn("telegram connection settings changed; restart required for changes to take effect")
	}

	a.sd.Status(a.statusLine())
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sd.Stopping()

	// cancel first so background loops start unwinding immediately
	a.sup.Cancel()

	// each step is bounded so one component can't stall the whole stop
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		if dl, ok := ctx.Deadline(); ok {
			max = min(max, time.Until(dl))
		}
		if max <= 0 {
			a.log.Warn("stop step skipped (deadline reached)", logx.String("name", name))
			return
		}
		stepCtx, cancel := context.WithTimeout(ctx, max)
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

	step("notifier", 2*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	step("adapter", 2*time.Second, a.adapter.Stop)
	step("supervisor", 2*time.Second, a.sup.Wait)
	step("storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
