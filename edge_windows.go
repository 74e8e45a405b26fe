//go:build windows
// +build windows

package webwindow

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/jchv/go-winloader"
	"github.com/rs/zerolog"
	"golang.org/x/sys/windows"
)

const createEnvironmentProc = "CreateCoreWebView2EnvironmentWithOptions"

type createEnvironmentFunc func(browserDir, dataDir, options, handler uintptr) uintptr

// edgeEngine creates WebView2 environments through WebView2Loader.dll.
type edgeEngine struct {
	cfg    Config
	log    zerolog.Logger
	create createEnvironmentFunc
}

func newEngine(cfg Config, log zerolog.Logger) Engine {
	return &edgeEngine{cfg: cfg, log: log}
}

// loader resolves CreateCoreWebView2EnvironmentWithOptions, from memory
// when LoaderPath is set, otherwise from the DLL search path.
func (e *edgeEngine) loader() (createEnvironmentFunc, error) {
	if e.create != nil {
		return e.create, nil
	}
	if e.cfg.LoaderPath != "" {
		data, err := os.ReadFile(e.cfg.LoaderPath)
		if err != nil {
			return nil, fmt.Errorf("read loader: %w", err)
		}
		mod, err := winloader.LoadFromMemory(data)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", e.cfg.LoaderPath, err)
		}
		proc := mod.Proc(createEnvironmentProc)
		if proc == nil {
			return nil, fmt.Errorf("%s: missing export %s", e.cfg.LoaderPath, createEnvironmentProc)
		}
		e.create = func(a, b, c, d uintptr) uintptr {
			r, _, _ := proc.Call(uint64(a), uint64(b), uint64(c), uint64(d))
			return uintptr(r)
		}
		return e.create, nil
	}
	proc := windows.NewLazyDLL("WebView2Loader.dll").NewProc(createEnvironmentProc)
	if err := proc.Find(); err != nil {
		return nil, fmt.Errorf("find loader: %w", err)
	}
	e.create = func(a, b, c, d uintptr) uintptr {
		r, _, _ := proc.Call(a, b, c, d)
		return r
	}
	return e.create, nil
}

func (e *edgeEngine) CreateEnvironment(done func(Environment, error)) {
	if err := checkRuntime(); err != nil {
		done(nil, err)
		return
	}
	create, err := e.loader()
	if err != nil {
		done(nil, err)
		return
	}
	if e.cfg.BrowserArgs != "" {
		os.Setenv("WEBVIEW2_ADDITIONAL_BROWSER_ARGUMENTS", e.cfg.BrowserArgs)
	}
	var dataDir *uint16
	if e.cfg.UserDataFolder != "" {
		if dataDir, err = windows.UTF16PtrFromString(e.cfg.UserDataFolder); err != nil {
			done(nil, err)
			return
		}
	}

	var handler *comHandler
	handler = newComHandler(func(res, ptr uintptr) uintptr {
		handler.unpin()
		if err := hresult(res); err != nil {
			done(nil, err)
			return 0
		}
		if ptr == 0 {
			done(nil, nil)
			return 0
		}
		env := (*iCoreWebView2Environment)(unsafe.Pointer(ptr))
		env.vtbl.AddRef.Call(ptr)
		done(&edgeEnvironment{env: env, log: e.log}, nil)
		return 0
	})
	e.log.Debug().Str("data", e.cfg.UserDataFolder).Msg("calling " + createEnvironmentProc)
	if err := hresult(create(0, uintptr(unsafe.Pointer(dataDir)), 0, handler.ptr())); err != nil {
		handler.unpin()
		done(nil, err)
	}
}

type edgeEnvironment struct {
	env *iCoreWebView2Environment
	log zerolog.Logger
}

func (e *edgeEnvironment) CreateController(parent Handle, done func(Controller, error)) {
	var handler *comHandler
	handler = newComHandler(func(res, ptr uintptr) uintptr {
		handler.unpin()
		if err := hresult(res); err != nil {
			done(nil, err)
			return 0
		}
		if ptr == 0 {
			done(nil, nil)
			return 0
		}
		c := (*iCoreWebView2Controller)(unsafe.Pointer(ptr))
		c.vtbl.AddRef.Call(ptr)
		done(&edgeController{c: c, log: e.log}, nil)
		return 0
	})
	r := e.env.vtbl.CreateCoreWebView2Controller.Call(
		uintptr(unsafe.Pointer(e.env)),
		uintptr(parent),
		handler.ptr(),
	)
	if err := hresult(r); err != nil {
		handler.unpin()
		done(nil, err)
	}
}

type edgeController struct {
	c    *iCoreWebView2Controller
	view *edgeView
	log  zerolog.Logger
}

func (c *edgeController) this() uintptr { return uintptr(unsafe.Pointer(c.c)) }

// SetBounds passes the RECT by reference, as the x64 calling convention
// does for 16 byte structs.
func (c *edgeController) SetBounds(r Rect) error {
	return hresult(c.c.vtbl.PutBounds.Call(c.this(), uintptr(unsafe.Pointer(&r))))
}

func (c *edgeController) View() (View, error) {
	if c.view != nil {
		return c.view, nil
	}
	var wv *iCoreWebView2
	if err := hresult(c.c.vtbl.GetCoreWebView2.Call(c.this(), uintptr(unsafe.Pointer(&wv)))); err != nil {
		return nil, err
	}
	if wv == nil {
		return nil, nil
	}
	c.view = &edgeView{wv: wv, handlers: map[Token]*comHandler{}}
	return c.view, nil
}

func (c *edgeController) Close() error {
	if c.c == nil {
		return nil
	}
	if c.view != nil {
		c.view.release()
		c.view = nil
	}
	err := hresult(c.c.vtbl.Close.Call(c.this()))
	c.c.vtbl.release(unsafe.Pointer(c.c))
	c.c = nil
	c.log.Debug().Err(err).Msg("controller closed")
	return err
}

type edgeView struct {
	wv       *iCoreWebView2
	settings *edgeSettings
	handlers map[Token]*comHandler
}

func (v *edgeView) this() uintptr { return uintptr(unsafe.Pointer(v.wv)) }

func (v *edgeView) release() {
	for tok, h := range v.handlers {
		h.unpin()
		delete(v.handlers, tok)
	}
	if v.settings != nil {
		v.settings.s.vtbl.release(unsafe.Pointer(v.settings.s))
		v.settings = nil
	}
	v.wv.vtbl.release(unsafe.Pointer(v.wv))
}

// Settings returns the view's settings object. The reference is held until
// the view is released with its controller.
func (v *edgeView) Settings() (Settings, error) {
	if v.settings != nil {
		return v.settings, nil
	}
	var s *iCoreWebView2Settings
	if err := hresult(v.wv.vtbl.GetSettings.Call(v.this(), uintptr(unsafe.Pointer(&s)))); err != nil {
		return nil, err
	}
	if s == nil {
		return nil, nil
	}
	v.settings = &edgeSettings{s: s}
	return v.settings, nil
}

func (v *edgeView) Navigate(url string) error {
	p, err := windows.UTF16PtrFromString(url)
	if err != nil {
		return err
	}
	return hresult(v.wv.vtbl.Navigate.Call(v.this(), uintptr(unsafe.Pointer(p))))
}

func (v *edgeView) AddInitScript(script string) error {
	p, err := windows.UTF16PtrFromString(script)
	if err != nil {
		return err
	}
	return hresult(v.wv.vtbl.AddScriptToExecuteOnDocumentCreated.Call(v.this(), uintptr(unsafe.Pointer(p)), 0))
}

func (v *edgeView) PostMessage(text string) error {
	p, err := windows.UTF16PtrFromString(text)
	if err != nil {
		return err
	}
	return hresult(v.wv.vtbl.PostWebMessageAsString.Call(v.this(), uintptr(unsafe.Pointer(p))))
}

func (v *edgeView) Subscribe(kind EventKind, handler EventHandler) (Token, error) {
	var (
		h   *comHandler
		add comProc
	)
	switch kind {
	case EventNavigationCompleted:
		h = newComHandler(func(sender, args uintptr) uintptr {
			handler(navigationEvent(args))
			return 0
		})
		add = v.wv.vtbl.AddNavigationCompleted
	case EventMessageReceived:
		h = newComHandler(func(sender, args uintptr) uintptr {
			handler(messageEvent(args))
			return 0
		})
		add = v.wv.vtbl.AddWebMessageReceived
	case EventNavigationStarting:
		h = newComHandler(func(sender, args uintptr) uintptr {
			handler(navigationStartingEvent(args))
			return 0
		})
		add = v.wv.vtbl.AddNavigationStarting
	default:
		return Token{}, fmt.Errorf("subscribe %s: %w", kind, ErrUnsupported)
	}
	var value int64
	if err := hresult(add.Call(v.this(), h.ptr(), uintptr(unsafe.Pointer(&value)))); err != nil {
		h.unpin()
		return Token{}, err
	}
	tok := Token{Kind: kind, Value: value}
	v.handlers[tok] = h
	return tok, nil
}

func (v *edgeView) Unsubscribe(tok Token) error {
	var remove comProc
	switch tok.Kind {
	case EventNavigationCompleted:
		remove = v.wv.vtbl.RemoveNavigationCompleted
	case EventMessageReceived:
		remove = v.wv.vtbl.RemoveWebMessageReceived
	case EventNavigationStarting:
		remove = v.wv.vtbl.RemoveNavigationStarting
	default:
		return fmt.Errorf("unsubscribe %s: %w", tok.Kind, ErrUnsupported)
	}
	err := hresult(remove.Call(v.this(), uintptr(tok.Value)))
	if h, ok := v.handlers[tok]; ok {
		h.unpin()
		delete(v.handlers, tok)
	}
	return err
}

// navigationStartingEvent reads the target URI. Cancel must be called
// before the handler returns.
func navigationStartingEvent(ptr uintptr) Event {
	args := (*iCoreWebView2NavigationStartingEventArgs)(unsafe.Pointer(ptr))
	var (
		uri *uint16
		id  uint64
	)
	args.vtbl.GetURI.Call(ptr, uintptr(unsafe.Pointer(&uri)))
	args.vtbl.GetNavigationID.Call(ptr, uintptr(unsafe.Pointer(&id)))
	ev := Event{
		Kind:         EventNavigationStarting,
		NavigationID: id,
		Cancel: func() {
			args.vtbl.PutCancel.Call(ptr, boolArg(true))
		},
	}
	if uri != nil {
		ev.URI = windows.UTF16PtrToString(uri)
		windows.CoTaskMemFree(unsafe.Pointer(uri))
	}
	return ev
}

func navigationEvent(ptr uintptr) Event {
	args := (*iCoreWebView2NavigationCompletedEventArgs)(unsafe.Pointer(ptr))
	var (
		success int32
		status  int32
		id      uint64
	)
	args.vtbl.GetIsSuccess.Call(ptr, uintptr(unsafe.Pointer(&success)))
	args.vtbl.GetWebErrorStatus.Call(ptr, uintptr(unsafe.Pointer(&status)))
	args.vtbl.GetNavigationID.Call(ptr, uintptr(unsafe.Pointer(&id)))
	return Event{
		Kind:         EventNavigationCompleted,
		Success:      success != 0,
		Status:       int(status),
		NavigationID: id,
	}
}

func messageEvent(ptr uintptr) Event {
	args := (*iCoreWebView2WebMessageReceivedEventArgs)(unsafe.Pointer(ptr))
	var message *uint16
	args.vtbl.TryGetWebMessageAsString.Call(ptr, uintptr(unsafe.Pointer(&message)))
	ev := Event{Kind: EventMessageReceived}
	if message != nil {
		ev.Message = windows.UTF16PtrToString(message)
		windows.CoTaskMemFree(unsafe.Pointer(message))
	}
	return ev
}

type edgeSettings struct {
	s *iCoreWebView2Settings
}

func (s *edgeSettings) put(p comProc, enabled bool) error {
	return hresult(p.Call(uintptr(unsafe.Pointer(s.s)), boolArg(enabled)))
}

func (s *edgeSettings) SetContextMenusEnabled(enabled bool) error {
	return s.put(s.s.vtbl.PutAreDefaultContextMenusEnabled, enabled)
}

func (s *edgeSettings) SetDevToolsEnabled(enabled bool) error {
	return s.put(s.s.vtbl.PutAreDevToolsEnabled, enabled)
}

func (s *edgeSettings) SetWebMessageEnabled(enabled bool) error {
	return s.put(s.s.vtbl.PutIsWebMessageEnabled, enabled)
}
