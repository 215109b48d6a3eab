package router

import (
	"context"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"biteboard/internal/i18n"
	"biteboard/internal/runtime/supervisor"
	kit "biteboard/internal/transport"
	"biteboard/pkg/logx"
)

type Access int

const (
	AccessEveryone Access = iota
	AccessAdmin
)

type Command struct {
	// Route is a space-separated command path, e.g. "menu" or "settingsmenu setprovider".
	Route       string
	Aliases     []string
	Description string
	Usage       string
	Access      Access
	// Denied replaces the generic permission message for AccessAdmin commands.
	Denied  string
	Timeout time.Duration
	Handle  HandlerFunc
}

// Authorizer reports whether the sender of msg may run AccessAdmin commands.
type Authorizer func(ctx context.Context, msg *kit.Message) bool

type Request struct {
	Update  kit.Update
	Message *kit.Message
	Chat    kit.ChatTarget
	FromID  int64
	Path    []string
	Command string
	Args    []string

	RawArgs   []string
	Flags     map[string]string
	BoolFlags map[string]bool
	ReqID     string

	Adapter kit.Adapter
	Logger  logx.Logger
	T       *i18n.Catalog
}

// UserKey identifies the sender in the subscription store.
func (r *Request) UserKey() string { return strconv.FormatInt(r.FromID, 10) }

// UserLabel is a human readable sender name.
func (r *Request) UserLabel() string {
	if r.Message != nil {
		if r.Message.FromUsername != "" {
			return "@" + r.Message.FromUsername
		}
		if r.Message.FromName != "" {
			return r.Message.FromName
		}
	}
	return r.UserKey()
}

func (r *Request) Reply(ctx context.Context, text string) error {
	_, err := r.Adapter.SendText(ctx, r.Chat, text, &kit.SendOptions{DisablePreview: true})
	return err
}

func (r *Request) ReplyHTML(ctx context.Context, text string) error {
	_, err := r.Adapter.SendText(ctx, r.Chat, text, &kit.SendOptions{ParseMode: "HTML", DisablePreview: true})
	return err
}

type Options struct {
	Workers   int
	QueueSize int
	Authorize Authorizer
	Catalog   *i18n.Catalog
	// Supervisor runs background work such as the command menu update.
	Supervisor *supervisor.Supervisor
}

type CommandManager struct {
	mu    sync.RWMutex
	root  *cmdNode
	alias map[string]*cmdNode

	log     logx.Logger
	adapter kit.Adapter
	opts    Options

	jobs chan func()
}

func NewCommandManager(log logx.Logger, adapter kit.Adapter, opts Options) *CommandManager {
	if log.IsZero() {
		log = logx.Nop()
	}
	if opts.Workers <= 0 {
		opts.Workers = max(2, runtime.NumCPU())
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	return &CommandManager{
		root:    newRoot(),
		alias:   map[string]*cmdNode{},
		log:     log,
		adapter: adapter,
		opts:    opts,
		jobs:    make(chan func(), opts.QueueSize),
	}
}

// SetSupervisor sets where background work such as the menu update runs.
// Call it before SetRegistry.
func (m *CommandManager) SetSupervisor(sup *supervisor.Supervisor) { m.opts.Supervisor = sup }

func (m *CommandManager) t(key string, args ...any) string {
	return m.opts.Catalog.F(key, args...)
}

func (m *CommandManager) tryEnqueue(fn func()) (ok bool) {
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

// SetRegistry replaces the command tree. /help is always added.
func (m *CommandManager) SetRegistry(cmds []Command) {
	cmds = append(cmds, Command{
		Route:       "help",
		Aliases:     []string{"start"},
		Description: m.t("command.help.description"),
		Usage:       "/help [command]",
		Handle: func(ctx context.Context, req *Request) error {
			return req.ReplyHTML(ctx, m.helpText(req.Args))
		},
	})

	root := newRoot()
	alias := map[string]*cmdNode{}
	menuCandidates := make([]Command, 0, len(cmds))

	for _, c := range cmds {
		route := splitRoute(c.Route)
		if len(route) == 0 || c.Handle == nil {
			continue
		}
		root.add(route, c)
		menuCandidates = append(menuCandidates, c)

		leaf := root.find(route)
		// Only multi-token routes get an automatic /a_b alias; aliasing a
		// single token would short-circuit subcommand traversal.
		if len(route) > 1 {
			if menu, ok := telegramCommandNameFromRoute(route); ok {
				if _, exists := alias[menu]; !exists {
					alias[menu] = leaf
				}
			}
		}
		for _, a := range c.Aliases {
			if sa := sanitizeTelegramCommand(a); sa != "" {
				alias[sa] = leaf
			}
		}
	}

	m.mu.Lock()
	m.root = root
	m.alias = alias
	m.mu.Unlock()

	up, ok := m.adapter.(kit.CommandMenuUpdater)
	if !ok {
		return
	}
	menu := buildTelegramMenuCommands(root, menuCandidates)
	run := func(parent context.Context) error {
		ctx, cancel := context.WithTimeout(parent, 5*time.Second)
		defer cancel()
		if err := up.UpdateMenuCommands(ctx, menu); err != nil {
			m.log.Warn("command menu update failed", logx.Err(err))
		}
		return nil
	}
	if m.opts.Supervisor != nil {
		m.opts.Supervisor.Go("telegram.menu.update", run)
		return
	}
	go func() { _ = run(context.Background()) }()
}

// DispatchLoop routes updates to a bounded worker pool until ctx is done or
// updates is closed.
func (m *CommandManager) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	sup := supervisor.New(ctx,
		supervisor.WithLogger(m.log.With(logx.String("comp", "telegram.router"))),
		supervisor.WithCancelOnError(false),
	)
	m.log.Info("command dispatcher started", logx.Int("workers", m.opts.Workers), logx.Int("job_queue_cap", cap(m.jobs)))

	for i := 0; i < m.opts.Workers; i++ {
		idx := i
		sup.GoRestart("command.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job := <-m.jobs:
					job()
				}
			}
		}, supervisor.WithRestartBackoff(200*time.Millisecond, 5*time.Second))
	}

	defer func() {
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = sup.Stop(wctx)
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
			m.routeMessage(ctx, up)
		}
	}
}

func (m *CommandManager) routeMessage(ctx context.Context, up kit.Update) {
	msg := up.Message
	if msg == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}
	parts := tokenizeCommandLine(text)
	if len(parts) == 0 {
		return
	}
	word := strings.ToLower(strings.TrimPrefix(parts[0], "/"))
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	args := parts[1:]

	m.mu.RLock()
	rootNode := m.root
	aliasMap := m.alias
	m.mu.RUnlock()

	if leaf, ok := aliasMap[word]; ok && leaf.cmd != nil {
		m.enqueueCommand(ctx, up, *leaf.cmd, splitRoute(leaf.cmd.Route), args)
		return
	}

	cur, ok := rootNode.child(word)
	if !ok {
		// In groups other bots' commands are common; stay quiet there.
		if !msg.IsGroup {
			_, _ = m.adapter.SendText(ctx, msg.Target(), m.t("command.generic.unknownCommand"), nil)
		}
		return
	}
	path := []string{word}
	for len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		child, ok := cur.child(args[0])
		if !ok {
			break
		}
		cur = child
		path = append(path, child.name)
		args = args[1:]
	}

	if cur.cmd == nil {
		_, _ = m.adapter.SendText(ctx, msg.Target(), m.helpText(path), &kit.SendOptions{DisablePreview: true, ParseMode: "HTML"})
		return
	}
	m.enqueueCommand(ctx, up, *cur.cmd, path, args)
}

func (m *CommandManager) enqueueCommand(ctx context.Context, up kit.Update, cmd Command, path, raw []string) {
	msg := up.Message
	if cmd.Access == AccessAdmin && (m.opts.Authorize == nil || !m.opts.Authorize(ctx, msg)) {
		denied := cmd.Denied
		if denied == "" {
			denied = m.t("command.generic.noPermission")
		}
		m.log.Warn("command denied", logx.Int64("from_id", msg.FromID), logx.String("cmd", cmd.Route))
		_, _ = m.adapter.SendText(ctx, msg.Target(), denied, nil)
		return
	}

	rid := uuid.NewString()
	pos, flags, bools := parseFlags(raw)
	req := &Request{
		Update:    up,
		Message:   msg,
		Chat:      msg.Target(),
		FromID:    msg.FromID,
		Path:      path,
		Command:   cmd.Route,
		Args:      pos,
		RawArgs:   raw,
		Flags:     flags,
		BoolFlags: bools,
		ReqID:     rid,
		Adapter:   m.adapter,
		Logger: m.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", msg.ChatID),
			logx.Int64("from_id", msg.FromID),
			logx.String("cmd", cmd.Route),
		),
		T: m.opts.Catalog,
	}

	final := Chain(
		cmd.Handle,
		MWErrorReply(),
		MWPanicRecover(m.log),
		MWRequestLog(m.log),
		MWTimeout(cmd.Timeout),
	)
	if !m.tryEnqueue(func() { _ = final(ctx, req) }) {
		_, _ = m.adapter.SendText(ctx, req.Chat, m.t("command.generic.busy"), nil)
	}
}
