package webwindow

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// State is the position of a Host in its initialization cycle.
type State int

const (
	StateUninitialized State = iota
	StateEnvironmentPending
	StateControllerPending
	StateReady
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateEnvironmentPending:
		return "environment-pending"
	case StateControllerPending:
		return "controller-pending"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Callbacks are the host application's notification slots. Any of them
// may be nil. They run on the message loop thread.
type Callbacks struct {
	CreationComplete   func()
	NavigationComplete func()
	WebViewReady       func()
	MessageReceived    func(text string)
	FunctionReceived   func(name, args string)
}

// bridgeScript gives pages window.external.invoke and announces readiness.
const bridgeScript = `window.external={invoke:s=>window.chrome.webview.postMessage(s)};` +
	`window.addEventListener('DOMContentLoaded',()=>window.chrome.webview.postMessage('` + ReadySignal + `'));`

const noDropScript = `window.addEventListener('dragover',function(e){e.preventDefault();},false);` +
	`window.addEventListener('drop',function(e){e.preventDefault();},false);`

// Host drives one environment/controller/view triple attached to a native
// window. It is not safe for concurrent use; every method and every engine
// completion must run on the message loop thread.
type Host struct {
	engine Engine
	parent Handle
	bounds func() Rect
	cfg    Config
	log    zerolog.Logger

	callbacks Callbacks

	state State
	// gen identifies the current cycle. Completions carrying an older
	// value belong to a superseded cycle.
	gen uint64

	env        Environment
	controller Controller
	view       View
	settings   Settings
	tokens     []Token

	lastErr    error
	lastNavErr *NavigationError
}

// NewHost returns a Host for the window identified by parent. bounds is
// queried for the client area when the controller is first sized.
func NewHost(engine Engine, parent Handle, bounds func() Rect, cfg Config, log zerolog.Logger) *Host {
	return &Host{
		engine: engine,
		parent: parent,
		bounds: bounds,
		cfg:    cfg,
		log:    log.With().Str("host", uuid.NewString()).Logger(),
	}
}

func (h *Host) State() State { return h.state }

func (h *Host) Ready() bool { return h.state == StateReady && h.view != nil }

// Err returns the error that ended the last failed cycle.
func (h *Host) Err() error { return h.lastErr }

// LastNavigationError returns the most recent failed navigation, or nil.
func (h *Host) LastNavigationError() *NavigationError { return h.lastNavErr }

func (h *Host) OnCreationComplete(f func()) { h.callbacks.CreationComplete = f }
func (h *Host) OnNavigationComplete(f func()) { h.callbacks.NavigationComplete = f }
func (h *Host) OnWebViewReady(f func()) { h.callbacks.WebViewReady = f }
func (h *Host) OnMessageReceived(f func(string)) { h.callbacks.MessageReceived = f }
func (h *Host) OnFunctionReceived(f func(string, string)) { h.callbacks.FunctionReceived = f }

// Initialize starts a new creation cycle, closing whatever the previous one
// built first. The environment is not released; the new one replaces it.
func (h *Host) Initialize() {
	if h.state != StateUninitialized {
		h.Close()
	}
	h.gen++
	gen := h.gen
	h.lastErr = nil
	h.state = StateEnvironmentPending
	h.log.Debug().Uint64("gen", gen).Msg("creating environment")
	h.engine.CreateEnvironment(func(env Environment, err error) {
		h.environmentCompleted(gen, env, err)
	})
}

func (h *Host) environmentCompleted(gen uint64, env Environment, err error) {
	if gen != h.gen {
		h.log.Debug().Uint64("gen", gen).Msg("ignoring stale environment")
		return
	}
	if err == nil && env == nil {
		err = errNilEnvironment
	}
	if err != nil {
		h.fail(gen, fmt.Errorf("create environment: %w", err))
		h.creationComplete()
		return
	}
	h.env = env
	h.state = StateControllerPending
	h.log.Debug().Uint64("gen", gen).Msg("creating controller")
	env.CreateController(h.parent, func(c Controller, err error) {
		h.controllerCompleted(gen, c, err)
	})
}

func (h *Host) controllerCompleted(gen uint64, c Controller, err error) {
	if gen != h.gen {
		h.log.Debug().Uint64("gen", gen).Msg("closing stale controller")
		if c != nil {
			if err := c.Close(); err != nil {
				h.log.Warn().Err(err).Msg("close stale controller")
			}
		}
		return
	}
	defer h.creationComplete()

	if err == nil && c == nil {
		err = errNilController
	}
	if err != nil {
		h.fail(gen, fmt.Errorf("create controller: %w", err))
		return
	}
	h.controller = c

	view, err := c.View()
	if err == nil && view == nil {
		err = errNilView
	}
	if err != nil {
		h.teardown()
		h.fail(gen, fmt.Errorf("get view: %w", err))
		return
	}
	h.view = view

	h.configure()

	if err := view.Navigate(NormalizeURL(h.cfg.StartURL)); err != nil {
		h.log.Warn().Err(err).Str("url", h.cfg.StartURL).Msg("initial navigation")
	}
	if err := c.SetBounds(h.bounds()); err != nil {
		h.log.Warn().Err(err).Msg("set bounds")
	}
	if err := h.subscribe(); err != nil {
		h.teardown()
		h.fail(gen, err)
		return
	}
	h.state = StateReady
	h.log.Info().Uint64("gen", gen).Msg("webview ready")
}

// configure applies settings and init scripts. None of it is fatal.
func (h *Host) configure() {
	s, err := h.view.Settings()
	if err != nil || s == nil {
		h.log.Warn().Err(err).Msg("get settings")
	} else {
		h.settings = s
		if err := s.SetContextMenusEnabled(h.cfg.ContextMenus); err != nil {
			h.log.Warn().Err(err).Msg("set context menus")
		}
		if err := s.SetDevToolsEnabled(h.cfg.Debug); err != nil {
			h.log.Warn().Err(err).Msg("set dev tools")
		}
		if err := s.SetWebMessageEnabled(true); err != nil {
			h.log.Warn().Err(err).Msg("enable web messages")
		}
	}

	scripts := []string{bridgeScript}
	if !h.cfg.Debug {
		scripts = append(scripts, noDropScript)
	}
	scripts = append(scripts, h.cfg.InitScripts...)
	for _, js := range scripts {
		if err := h.view.AddInitScript(js); err != nil {
			h.log.Warn().Err(err).Msg("add init script")
		}
	}
}

func (h *Host) subscribe() error {
	if h.cfg.HTTPSOnly {
		tok, err := h.view.Subscribe(EventNavigationStarting, h.navigationStarting)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", EventNavigationStarting, err)
		}
		h.tokens = append(h.tokens, tok)
	}
	nav, err := h.view.Subscribe(EventNavigationCompleted, h.navigationCompleted)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", EventNavigationCompleted, err)
	}
	h.tokens = append(h.tokens, nav)
	msg, err := h.view.Subscribe(EventMessageReceived, h.messageReceived)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", EventMessageReceived, err)
	}
	h.tokens = append(h.tokens, msg)
	return nil
}

func (h *Host) fail(gen uint64, err error) {
	h.state = StateFailed
	h.lastErr = err
	h.log.Error().Err(err).Uint64("gen", gen).Msg("webview initialization failed")
}

func (h *Host) creationComplete() {
	if h.callbacks.CreationComplete != nil {
		h.callbacks.CreationComplete()
	}
}

// navigationStarting cancels navigations that would leave https.
func (h *Host) navigationStarting(ev Event) {
	if strings.HasPrefix(ev.URI, "https://") {
		return
	}
	h.log.Info().Str("uri", ev.URI).Msg("navigation blocked")
	if ev.Cancel != nil {
		ev.Cancel()
	}
}

func (h *Host) navigationCompleted(ev Event) {
	if !ev.Success {
		h.lastNavErr = &NavigationError{NavigationID: ev.NavigationID, Status: ev.Status}
		h.log.Warn().Uint64("navigation", ev.NavigationID).Int("status", ev.Status).Msg("navigation failed")
		return
	}
	h.lastNavErr = nil
	if h.callbacks.NavigationComplete != nil {
		h.callbacks.NavigationComplete()
	}
}

func (h *Host) messageReceived(ev Event) {
	msg := ParseMessage(ev.Message)
	h.log.Debug().Stringer("kind", msg.Kind).Msg("message received")
	switch msg.Kind {
	case MessageReady:
		if h.callbacks.WebViewReady != nil {
			h.callbacks.WebViewReady()
		}
	case MessageFunction:
		if h.callbacks.FunctionReceived != nil {
			h.callbacks.FunctionReceived(msg.Name, msg.Args)
		}
	default:
		if h.callbacks.MessageReceived != nil {
			h.callbacks.MessageReceived(msg.Text)
		}
	}
}

// NavigateTo navigates the view to the normalized url. It does nothing
// unless the host is ready.
func (h *Host) NavigateTo(url string) {
	if !h.Ready() {
		h.log.Debug().Str("url", url).Stringer("state", h.state).Msg("navigate ignored")
		return
	}
	if url == "" {
		return
	}
	if err := h.view.Navigate(NormalizeURL(url)); err != nil {
		h.log.Warn().Err(err).Str("url", url).Msg("navigate")
	}
}

// PostMessage sends text to the page as a raw string.
func (h *Host) PostMessage(text string) {
	if !h.Ready() {
		return
	}
	if err := h.view.PostMessage(text); err != nil {
		h.log.Warn().Err(err).Msg("post message")
	}
}

// Resize fits the controller to r. Ignored unless ready.
func (h *Host) Resize(r Rect) {
	if !h.Ready() || h.controller == nil {
		return
	}
	if err := h.controller.SetBounds(r); err != nil {
		h.log.Warn().Err(err).Msg("set bounds")
	}
}

// Close releases the view, controller and subscriptions. It is safe to call
// in any state and more than once. Pending completions are invalidated.
func (h *Host) Close() {
	h.teardown()
	h.gen++
	h.state = StateClosed
}

func (h *Host) teardown() {
	if h.view != nil {
		for _, tok := range h.tokens {
			if err := h.view.Unsubscribe(tok); err != nil {
				h.log.Warn().Err(err).Stringer("event", tok.Kind).Msg("unsubscribe")
			}
		}
	}
	h.tokens = nil
	h.view = nil
	if h.controller != nil {
		if err := h.controller.Close(); err != nil {
			h.log.Warn().Err(err).Msg("close controller")
		}
		h.controller = nil
	}
	h.settings = nil
}
