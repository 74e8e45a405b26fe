// Package webwindow hosts a WebView2 control in a native window and bridges
// text messages between host code and the page.
package webwindow

import (
	"os"

	"github.com/gen2brain/dlgs"
	"github.com/rs/zerolog"
)

// WebWindow is a native window with an embedded web view.
type WebWindow interface {
	// Show creates the window, starts initialization and runs the message
	// loop until the window is destroyed.
	Show() int
	// Initialize (re)starts the asynchronous creation of the view.
	Initialize()
	// NavigateTo is ignored until the view is ready.
	NavigateTo(url string)
	PostMessage(text string)
	Ready() bool
	Dispatch(f func())

	OnCreationComplete(f func())
	OnNavigationComplete(f func())
	OnWebViewReady(f func())
	OnMessageReceived(f func(text string))
	OnFunctionReceived(f func(name, args string))
}

type Option func(*webWindow)

func WithConfig(cfg Config) Option { return func(w *webWindow) { w.cfg = cfg } }

func WithLogger(log zerolog.Logger) Option {
	return func(w *webWindow) {
		w.log = log
		w.logSet = true
	}
}

// WithEngine replaces the platform rendering engine.
func WithEngine(e Engine) Option { return func(w *webWindow) { w.engine = e } }

// WithWindow replaces the platform native window.
func WithWindow(win Window) Option { return func(w *webWindow) { w.window = win } }

type webWindow struct {
	*Host

	className string
	cfg       Config
	log       zerolog.Logger
	logSet    bool
	engine    Engine
	window    Window
	dialog    func(title, text string) (bool, error)
}

// New returns a WebWindow whose window class and default title are
// className. Nothing native is created until Show.
func New(className string, opts ...Option) WebWindow {
	w := &webWindow{
		className: className,
		cfg:       DefaultConfig(),
		dialog:    dlgs.Error,
	}
	w.cfg.Title = className
	for _, opt := range opts {
		opt(w)
	}
	if !w.logSet {
		w.log = NewLogger(os.Stderr, w.cfg.LogLevel)
	}
	if w.window == nil {
		w.window = newNativeWindow(w.log)
	}
	if w.engine == nil {
		w.engine = newEngine(w.cfg, w.log)
	}
	w.Host = NewHost(w.engine, 0, w.window.ClientRect, w.cfg, w.log)
	return w
}

func (w *webWindow) Show() int {
	hwnd, err := w.window.Create(w.className, w.cfg.Title, WindowEvents{
		Resize:  w.Host.Resize,
		Destroy: w.Host.Close,
	})
	if err != nil {
		w.log.Error().Err(err).Str("class", w.className).Msg("create window")
		w.alert(w.className, err.Error())
		return 1
	}
	w.Host.parent = hwnd
	w.window.Show()
	w.Initialize()
	code := w.window.Run()
	w.Host.Close()
	return code
}

func (w *webWindow) Dispatch(f func()) { w.window.Dispatch(f) }

// alert shows an error dialog, falling back to the log when no dialog
// can be shown.
func (w *webWindow) alert(title, text string) {
	if _, err := w.dialog(title, text); err != nil {
		w.log.Error().Err(err).Str("title", title).Msg(text)
	}
}
