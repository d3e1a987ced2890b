package router

import (
	"context"
	"runtime"
	"runtime/debug"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	rtsup "stockbot/internal/runtime/supervisor"
	kit "stockbot/internal/transport"
	logx "stockbot/pkg/logx"
)

type Access int

const (
	AccessEveryone Access = iota
	// AccessAdmin allows owners, configured admins and, when the adapter
	// can check it, administrators of the chat the command came from.
	AccessAdmin
	AccessOwnerOnly
)

type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	Access      Access
	Timeout     time.Duration // optional per-command override
	Handle      HandlerFunc
}

type Request struct {
	Update       kit.Update
	Chat         kit.ChatTarget
	MessageID    int
	FromID       int64
	FromUsername string
	IsGroup      bool

	Command string
	// RawArgs is the text after the command word; Args is RawArgs split on whitespace.
	RawArgs string
	Args    []string
	ReqID   string

	Adapter kit.Adapter
	Logger  logx.Logger
}

// Reply answers in the request's chat, quoting the command message.
// text is chat markup.
func (r *Request) Reply(ctx context.Context, text string) error {
	_, err := r.Adapter.SendText(ctx, r.Chat, text, &kit.SendOptions{DisablePreview: true, ReplyTo: r.MessageID})
	return err
}

// ReplyHTML answers with pre-rendered Telegram HTML.
func (r *Request) ReplyHTML(ctx context.Context, html string) error {
	_, err := r.Adapter.SendText(ctx, r.Chat, html, &kit.SendOptions{ParseMode: "HTML", DisablePreview: true, ReplyTo: r.MessageID})
	return err
}

type Options struct {
	Workers   int // default: NumCPU, at least 2
	QueueSize int // default: 256
	Owners    []int64
	Admins    []int64
	// DefaultTimeout applies to commands without their own Timeout.
	DefaultTimeout time.Duration
}

// Router dispatches chat commands onto a bounded worker pool.
type Router struct {
	mu     sync.RWMutex
	byName map[string]*Command
	list   []Command
	owners []int64
	admins []int64

	log     logx.Logger
	adapter kit.Adapter
	workers int
	timeout time.Duration

	runMu   sync.Mutex
	running bool
	sup     *rtsup.Supervisor

	jobs chan func()
}

func New(log logx.Logger, adapter kit.Adapter, opt Options) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	workers := opt.Workers
	if workers <= 0 {
		workers = max(runtime.NumCPU(), 2)
	}
	queue := opt.QueueSize
	if queue <= 0 {
		queue = 256
	}
	return &Router{
		byName:  map[string]*Command{},
		owners:  slices.Clone(opt.Owners),
		admins:  slices.Clone(opt.Admins),
		log:     log,
		adapter: adapter,
		workers: workers,
		timeout: opt.DefaultTimeout,
		jobs:    make(chan func(), queue),
	}
}

// SetAccess replaces the owner and admin lists. Safe during hot reload.
func (m *Router) SetAccess(owners, admins []int64) {
	m.mu.Lock()
	m.owners = slices.Clone(owners)
	m.admins = slices.Clone(admins)
	m.mu.Unlock()
}

// SetCommands installs the command set (plus a built-in /help) and
// refreshes the platform command menu in the background.
func (m *Router) SetCommands(ctx context.Context, cmds []Command) {
	cmds = slices.Clone(cmds)
	if !slices.ContainsFunc(cmds, func(c Command) bool { return c.Name == "help" }) {
		cmds = append(cmds, Command{
			Name:        "help",
			Description: "show available commands",
			Usage:       "/help",
			Handle: func(ctx context.Context, req *Request) error {
				return req.ReplyHTML(ctx, m.HelpText())
			},
		})
	}

	byName := map[string]*Command{}
	list := make([]Command, 0, len(cmds))
	for _, c := range cmds {
		c.Name = strings.ToLower(strings.TrimSpace(c.Name))
		if c.Name == "" || c.Handle == nil {
			continue
		}
		cc := c
		list = append(list, cc)
		byName[cc.Name] = &cc
		for _, a := range cc.Aliases {
			a = strings.ToLower(strings.TrimSpace(a))
			if a == "" || strings.ContainsAny(a, " \t") {
				continue
			}
			if _, exists := byName[a]; !exists {
				byName[a] = &cc
			}
		}
	}

	m.mu.Lock()
	m.byName = byName
	m.list = list
	m.mu.Unlock()

	if up, ok := m.adapter.(kit.CommandMenuUpdater); ok {
		menu := buildMenu(list)
		go func() {
			uctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := up.UpdateMenuCommands(uctx, menu); err != nil {
				m.log.Debug("menu update failed", logx.Err(err))
			}
		}()
	}
}

func (m *Router) Commands() []Command {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.list)
}

// Supervisor returns the worker pool supervisor (nil if not running).
func (m *Router) Supervisor() *rtsup.Supervisor {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if !m.running {
		return nil
	}
	return m.sup
}

func (m *Router) setSupervisor(sup *rtsup.Supervisor, running bool) {
	m.runMu.Lock()
	m.sup = sup
	m.running = running
	m.runMu.Unlock()
}

// tryEnqueue tolerates the jobs channel being closed during shutdown.
func (m *Router) tryEnqueue(fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	select {
	case m.jobs <- fn:
		return true
	default:
		return false
	}
}

// DispatchLoop routes updates until ctx is done or updates is closed.
// It can run only once per Router.
func (m *Router) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	sup := rtsup.NewSupervisor(ctx,
		rtsup.WithLogger(m.log),
		rtsup.WithCancelOnError(false),
	)
	m.setSupervisor(sup, true)
	m.log.Info("command dispatcher started", logx.Int("workers", m.workers), logx.Int("job_queue_cap", cap(m.jobs)))

	var closeOnce sync.Once
	closeJobs := func() {
		closeOnce.Do(func() {
			m.setSupervisor(sup, false)
			close(m.jobs)
		})
	}

	for i := 0; i < m.workers; i++ {
		idx := i
		sup.GoRestart("command.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job, ok := <-m.jobs:
					if !ok {
						return nil
					}
					m.runJob(idx, job)
				}
			}
		}, rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second))
	}

	defer func() {
		closeJobs()
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		m.setSupervisor(nil, false)
		m.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			m.route(ctx, up)
		}
	}
}

func (m *Router) runJob(worker int, job func()) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("panic in command job", logx.Int("worker", worker), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()
	job()
}

func (m *Router) route(ctx context.Context, up kit.Update) {
	msg := up.Message
	if msg == nil {
		return
	}
	name, rest, ok := splitCommand(msg.Text)
	if !ok {
		return
	}
	chat := kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}

	m.mu.RLock()
	cmd := m.byName[name]
	m.mu.RUnlock()
	if cmd == nil {
		// may be meant for another bot in the chat
		m.log.Debug("unknown command", logx.String("cmd", name), logx.Int64("chat_id", msg.ChatID))
		return
	}

	rid := newReqID()
	req := &Request{
		Update:       up,
		Chat:         chat,
		MessageID:    msg.ID,
		FromID:       msg.FromID,
		FromUsername: msg.FromUsername,
		IsGroup:      msg.IsGroup,
		Command:      cmd.Name,
		RawArgs:      rest,
		Args:         strings.Fields(rest),
		ReqID:        rid,
		Adapter:      m.adapter,
		Logger: m.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", msg.ChatID),
			logx.Int64("from_id", msg.FromID),
			logx.String("cmd", cmd.Name),
		),
	}

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = m.timeout
	}
	final := Chain(
		m.guard(*cmd),
		MWPanicRecover(m.log),
		MWRequestLog(m.log),
		MWTimeout(timeout),
	)
	if !m.tryEnqueue(func() { _ = final(ctx, req) }) {
		_ = req.Reply(ctx, "busy, try again")
	}
}

// guard wraps the handler with the access check; the check may call the
// chat platform, so it runs on the worker.
func (m *Router) guard(cmd Command) HandlerFunc {
	return func(ctx context.Context, req *Request) error {
		if !m.Allowed(ctx, cmd.Access, req) {
			return req.Reply(ctx, "⛔ You are not allowed to use /"+cmd.Name+".")
		}
		return cmd.Handle(ctx, req)
	}
}

// Allowed reports whether the sender of req may run a command with access a.
func (m *Router) Allowed(ctx context.Context, a Access, req *Request) bool {
	if a == AccessEveryone {
		return true
	}
	m.mu.RLock()
	owner := slices.Contains(m.owners, req.FromID)
	admin := slices.Contains(m.admins, req.FromID)
	m.mu.RUnlock()

	switch a {
	case AccessOwnerOnly:
		return owner
	case AccessAdmin:
		if owner || admin {
			return true
		}
		ac, ok := m.adapter.(kit.AdminChecker)
		if !ok || !req.IsGroup {
			return false
		}
		yes, err := ac.IsChatAdmin(ctx, req.Chat.ChatID, req.FromID)
		if err != nil {
			req.Logger.Warn("chat admin lookup failed", logx.Err(err))
			return false
		}
		return yes
	default:
		return false
	}
}
