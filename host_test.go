package webwindow

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

type fakeEngine struct {
	pending []func(Environment, error)
}

func (e *fakeEngine) CreateEnvironment(done func(Environment, error)) {
	e.pending = append(e.pending, done)
}

// complete delivers the i-th environment completion.
func (e *fakeEngine) complete(i int, env Environment, err error) {
	e.pending[i](env, err)
}

type fakeEnv struct {
	parents []Handle
	pending []func(Controller, error)
}

func (e *fakeEnv) CreateController(parent Handle, done func(Controller, error)) {
	e.parents = append(e.parents, parent)
	e.pending = append(e.pending, done)
}

// callLog records the order of calls across fakes that share it.
type callLog struct {
	calls []string
}

func (l *callLog) add(call string) {
	if l != nil {
		l.calls = append(l.calls, call)
	}
}

type fakeController struct {
	bounds  []Rect
	closed  int
	view    View
	viewErr error
	log     *callLog
}

func (c *fakeController) SetBounds(r Rect) error {
	c.log.add("bounds")
	c.bounds = append(c.bounds, r)
	return nil
}

func (c *fakeController) View() (View, error) { return c.view, c.viewErr }

func (c *fakeController) Close() error {
	c.closed++
	return nil
}

type fakeSettings struct {
	contextMenus bool
	devTools     bool
	webMessage   bool
	log          *callLog
}

func (s *fakeSettings) SetContextMenusEnabled(b bool) error {
	s.log.add("settings")
	s.contextMenus = b
	return nil
}

func (s *fakeSettings) SetDevToolsEnabled(b bool) error {
	s.log.add("settings")
	s.devTools = b
	return nil
}

func (s *fakeSettings) SetWebMessageEnabled(b bool) error {
	s.log.add("settings")
	s.webMessage = b
	return nil
}

type fakeView struct {
	settings     *fakeSettings
	navigated    []string
	scripts      []string
	posted       []string
	handlers     map[Token]EventHandler
	unsubscribed []Token
	next         int64
	subscribeErr error
	log          *callLog
}

func newFakeView() *fakeView {
	log := &callLog{}
	return &fakeView{
		settings: &fakeSettings{contextMenus: true, log: log},
		handlers: map[Token]EventHandler{},
		log:      log,
	}
}

func (v *fakeView) Settings() (Settings, error) { return v.settings, nil }

func (v *fakeView) Navigate(url string) error {
	v.log.add("navigate")
	v.navigated = append(v.navigated, url)
	return nil
}

func (v *fakeView) AddInitScript(js string) error {
	v.log.add("script")
	v.scripts = append(v.scripts, js)
	return nil
}

func (v *fakeView) Subscribe(kind EventKind, h EventHandler) (Token, error) {
	if v.subscribeErr != nil && kind == EventMessageReceived {
		return Token{}, v.subscribeErr
	}
	v.log.add("subscribe " + kind.String())
	v.next++
	tok := Token{Kind: kind, Value: v.next}
	v.handlers[tok] = h
	return tok, nil
}

func (v *fakeView) Unsubscribe(tok Token) error {
	delete(v.handlers, tok)
	v.unsubscribed = append(v.unsubscribed, tok)
	return nil
}

func (v *fakeView) PostMessage(text string) error {
	v.posted = append(v.posted, text)
	return nil
}

func (v *fakeView) kinds() []EventKind {
	var kinds []EventKind
	for tok := range v.handlers {
		kinds = append(kinds, tok.Kind)
	}
	return kinds
}

func (v *fakeView) fire(ev Event) {
	for tok, h := range v.handlers {
		if tok.Kind == ev.Kind {
			h(ev)
		}
	}
}

var (
	testBounds = Rect{0, 0, 640, 480}
	errFail    = errors.New("E_FAIL")
)

type counters struct {
	created, navigated, ready int
	texts                     []string
	functions                 [][2]string
}

func newTestHost(cfg Config) (*Host, *fakeEngine, *counters) {
	engine := &fakeEngine{}
	h := NewHost(engine, 7, func() Rect { return testBounds }, cfg, zerolog.Nop())
	c := &counters{}
	h.OnCreationComplete(func() { c.created++ })
	h.OnNavigationComplete(func() { c.navigated++ })
	h.OnWebViewReady(func() { c.ready++ })
	h.OnMessageReceived(func(text string) { c.texts = append(c.texts, text) })
	h.OnFunctionReceived(func(name, args string) { c.functions = append(c.functions, [2]string{name, args}) })
	return h, engine, c
}

// readyHost runs one full successful cycle.
func readyHost(t *testing.T) (*Host, *fakeEngine, *counters, *fakeController, *fakeView) {
	t.Helper()
	h, engine, c := newTestHost(DefaultConfig())
	view := newFakeView()
	ctrl := &fakeController{view: view}
	env := &fakeEnv{}

	h.Initialize()
	engine.complete(0, env, nil)
	env.pending[0](ctrl, nil)
	if h.State() != StateReady {
		t.Fatalf("state=%s want=%s (err=%v)", h.State(), StateReady, h.Err())
	}
	return h, engine, c, ctrl, view
}

func TestHostInitializeReachesReady(t *testing.T) {
	h, engine, c := newTestHost(DefaultConfig())
	if h.State() != StateUninitialized {
		t.Fatalf("state=%s", h.State())
	}
	h.Initialize()
	if h.State() != StateEnvironmentPending || len(engine.pending) != 1 {
		t.Fatalf("state=%s pending=%d", h.State(), len(engine.pending))
	}

	env := &fakeEnv{}
	engine.complete(0, env, nil)
	if h.State() != StateControllerPending {
		t.Fatalf("state=%s want=%s", h.State(), StateControllerPending)
	}
	if diff := cmp.Diff([]Handle{7}, env.parents); diff != "" {
		t.Fatalf("controller parent (-want +got):\n%s", diff)
	}

	view := newFakeView()
	ctrl := &fakeController{view: view, log: view.log}
	env.pending[0](ctrl, nil)

	if !h.Ready() {
		t.Fatalf("state=%s err=%v", h.State(), h.Err())
	}
	wantCalls := []string{
		"settings", "settings", "settings",
		"script", "script",
		"navigate",
		"bounds",
		"subscribe navigation-completed", "subscribe message-received",
	}
	if diff := cmp.Diff(wantCalls, view.log.calls); diff != "" {
		t.Fatalf("call order (-want +got):\n%s", diff)
	}
	if c.created != 1 {
		t.Fatalf("creation complete called %d times", c.created)
	}
	if diff := cmp.Diff([]Rect{testBounds}, ctrl.bounds); diff != "" {
		t.Fatalf("bounds (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{DefaultStartURL}, view.navigated); diff != "" {
		t.Fatalf("navigations (-want +got):\n%s", diff)
	}
	if len(view.handlers) != 2 {
		t.Fatalf("subscriptions=%d want 2", len(view.handlers))
	}
	kinds := map[EventKind]bool{}
	for _, k := range view.kinds() {
		kinds[k] = true
	}
	if !kinds[EventNavigationCompleted] || !kinds[EventMessageReceived] {
		t.Fatalf("subscribed kinds=%v", view.kinds())
	}
	if st := view.settings; st.contextMenus || st.devTools || !st.webMessage {
		t.Fatalf("settings=%+v", *st)
	}
}

func TestHostInitScripts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitScripts = []string{"Object.freeze(Object);"}
	h, engine, _ := newTestHost(cfg)
	view := newFakeView()
	env := &fakeEnv{}
	h.Initialize()
	engine.complete(0, env, nil)
	env.pending[0](&fakeController{view: view}, nil)

	want := []string{bridgeScript, noDropScript, "Object.freeze(Object);"}
	if diff := cmp.Diff(want, view.scripts); diff != "" {
		t.Fatalf("scripts (-want +got):\n%s", diff)
	}

	cfg.Debug = true
	cfg.ContextMenus = true
	h, engine, _ = newTestHost(cfg)
	view = newFakeView()
	env = &fakeEnv{}
	h.Initialize()
	engine.complete(0, env, nil)
	env.pending[0](&fakeController{view: view}, nil)

	want = []string{bridgeScript, "Object.freeze(Object);"}
	if diff := cmp.Diff(want, view.scripts); diff != "" {
		t.Fatalf("debug scripts (-want +got):\n%s", diff)
	}
	if !view.settings.devTools || !view.settings.contextMenus {
		t.Fatalf("debug settings=%+v", *view.settings)
	}
}

func TestHostNavigateBeforeReadyIsNoop(t *testing.T) {
	h, engine, _ := newTestHost(DefaultConfig())
	h.NavigateTo("example.com")
	h.PostMessage("hi")
	h.Resize(Rect{0, 0, 1, 1})

	h.Initialize()
	h.NavigateTo("example.com")
	env := &fakeEnv{}
	engine.complete(0, env, nil)
	h.NavigateTo("example.com")

	view := newFakeView()
	env.pending[0](&fakeController{view: view}, nil)
	if diff := cmp.Diff([]string{DefaultStartURL}, view.navigated); diff != "" {
		t.Fatalf("navigations (-want +got):\n%s", diff)
	}
}

func TestHostNavigateToNormalizes(t *testing.T) {
	h, _, _, _, view := readyHost(t)
	h.NavigateTo("example.com")
	h.NavigateTo(`C:\site\index.html`)
	h.NavigateTo("https://go.dev/")
	h.NavigateTo("")
	want := []string{
		DefaultStartURL,
		"http://example.com",
		`file://C:\site\index.html`,
		"https://go.dev/",
	}
	if diff := cmp.Diff(want, view.navigated); diff != "" {
		t.Fatalf("navigations (-want +got):\n%s", diff)
	}
}

func TestHostNilEnvironment(t *testing.T) {
	h, engine, c := newTestHost(DefaultConfig())
	h.Initialize()
	engine.complete(0, nil, nil)

	if c.created != 1 {
		t.Fatalf("creation complete called %d times", c.created)
	}
	if h.Ready() || h.State() != StateFailed {
		t.Fatalf("state=%s", h.State())
	}
	if !errors.Is(h.Err(), errNilEnvironment) {
		t.Fatalf("err=%v", h.Err())
	}
	h.NavigateTo("example.com")
}

func TestHostEnvironmentError(t *testing.T) {
	h, engine, c := newTestHost(DefaultConfig())
	h.Initialize()
	engine.complete(0, nil, ErrRuntimeMissing)
	if c.created != 1 || h.State() != StateFailed {
		t.Fatalf("created=%d state=%s", c.created, h.State())
	}
	if !errors.Is(h.Err(), ErrRuntimeMissing) {
		t.Fatalf("err=%v", h.Err())
	}
}

func TestHostControllerFailure(t *testing.T) {
	for name, tc := range map[string]struct {
		ctrl Controller
		err  error
		want error
	}{
		"nil controller": {nil, nil, errNilController},
		"error":          {nil, errFail, errFail},
	} {
		t.Run(name, func(t *testing.T) {
			h, engine, c := newTestHost(DefaultConfig())
			env := &fakeEnv{}
			h.Initialize()
			engine.complete(0, env, nil)
			env.pending[0](tc.ctrl, tc.err)
			if c.created != 1 || h.State() != StateFailed {
				t.Fatalf("created=%d state=%s", c.created, h.State())
			}
			if !errors.Is(h.Err(), tc.want) {
				t.Fatalf("err=%v want %v", h.Err(), tc.want)
			}
		})
	}
}

func TestHostViewFailureClosesController(t *testing.T) {
	h, engine, c := newTestHost(DefaultConfig())
	env := &fakeEnv{}
	ctrl := &fakeController{}
	h.Initialize()
	engine.complete(0, env, nil)
	env.pending[0](ctrl, nil)

	if c.created != 1 || h.State() != StateFailed {
		t.Fatalf("created=%d state=%s", c.created, h.State())
	}
	if ctrl.closed != 1 {
		t.Fatalf("controller closed %d times", ctrl.closed)
	}
	if !errors.Is(h.Err(), errNilView) {
		t.Fatalf("err=%v", h.Err())
	}
	if len(ctrl.bounds) != 0 {
		t.Fatalf("bounds set on failed cycle: %v", ctrl.bounds)
	}

	// The host stays usable.
	h.Initialize()
	view := newFakeView()
	env2 := &fakeEnv{}
	engine.complete(1, env2, nil)
	env2.pending[0](&fakeController{view: view}, nil)
	if !h.Ready() || c.created != 2 {
		t.Fatalf("retry: state=%s created=%d", h.State(), c.created)
	}
}

func TestHostSubscribeFailure(t *testing.T) {
	h, engine, c := newTestHost(DefaultConfig())
	env := &fakeEnv{}
	view := newFakeView()
	view.subscribeErr = errors.New("boom")
	ctrl := &fakeController{view: view}
	h.Initialize()
	engine.complete(0, env, nil)
	env.pending[0](ctrl, nil)

	if h.State() != StateFailed || c.created != 1 {
		t.Fatalf("state=%s created=%d", h.State(), c.created)
	}
	if len(view.handlers) != 0 || len(view.unsubscribed) != 1 {
		t.Fatalf("handlers=%d unsubscribed=%v", len(view.handlers), view.unsubscribed)
	}
	if ctrl.closed != 1 {
		t.Fatalf("controller closed %d times", ctrl.closed)
	}
}

func TestHostCloseIsIdempotent(t *testing.T) {
	h, _, _, ctrl, view := readyHost(t)
	h.Close()
	h.Close()

	if h.State() != StateClosed || h.Ready() {
		t.Fatalf("state=%s", h.State())
	}
	if ctrl.closed != 1 {
		t.Fatalf("controller closed %d times", ctrl.closed)
	}
	if len(view.unsubscribed) != 2 || len(view.handlers) != 0 {
		t.Fatalf("unsubscribed=%v remaining=%d", view.unsubscribed, len(view.handlers))
	}
	if h.view != nil || h.controller != nil || h.settings != nil || h.tokens != nil {
		t.Fatalf("handles not released: %+v", h)
	}
	h.NavigateTo("example.com")
	if len(view.navigated) != 1 {
		t.Fatalf("navigated after close: %v", view.navigated)
	}
}

func TestHostCloseBeforeInitialize(t *testing.T) {
	h, _, c := newTestHost(DefaultConfig())
	h.Close()
	h.Close()
	if h.State() != StateClosed || c.created != 0 {
		t.Fatalf("state=%s created=%d", h.State(), c.created)
	}
}

func TestHostResize(t *testing.T) {
	h, _, _, ctrl, _ := readyHost(t)
	h.Resize(Rect{0, 0, 800, 600})
	want := []Rect{testBounds, {0, 0, 800, 600}}
	if diff := cmp.Diff(want, ctrl.bounds); diff != "" {
		t.Fatalf("bounds (-want +got):\n%s", diff)
	}
}

func TestHostMessageDispatch(t *testing.T) {
	_, _, c, _, view := readyHost(t)
	for _, msg := range []string{
		"WebViewReady",
		"{{add}}1,2",
		"{{broken",
		"hello",
		"{{}}",
		"WebViewReady ",
	} {
		view.fire(Event{Kind: EventMessageReceived, Message: msg})
	}
	if c.ready != 1 {
		t.Fatalf("ready=%d", c.ready)
	}
	if diff := cmp.Diff([][2]string{{"add", "1,2"}, {"", ""}}, c.functions); diff != "" {
		t.Fatalf("functions (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"{{broken", "hello", "WebViewReady "}, c.texts); diff != "" {
		t.Fatalf("texts (-want +got):\n%s", diff)
	}
}

func TestHostMessageWithoutCallbacks(t *testing.T) {
	engine := &fakeEngine{}
	h := NewHost(engine, 1, func() Rect { return testBounds }, DefaultConfig(), zerolog.Nop())
	env := &fakeEnv{}
	view := newFakeView()
	h.Initialize()
	engine.complete(0, env, nil)
	env.pending[0](&fakeController{view: view}, nil)

	view.fire(Event{Kind: EventMessageReceived, Message: "WebViewReady"})
	view.fire(Event{Kind: EventMessageReceived, Message: "{{f}}x"})
	view.fire(Event{Kind: EventMessageReceived, Message: "text"})
	view.fire(Event{Kind: EventNavigationCompleted, Success: true})
}

func TestHostNavigationCompleted(t *testing.T) {
	h, _, c, ctrl, view := readyHost(t)
	view.fire(Event{Kind: EventNavigationCompleted, Success: true, NavigationID: 1})
	if c.navigated != 1 || h.LastNavigationError() != nil {
		t.Fatalf("navigated=%d err=%v", c.navigated, h.LastNavigationError())
	}

	view.fire(Event{Kind: EventNavigationCompleted, Success: false, Status: 7, NavigationID: 2})
	if c.navigated != 1 {
		t.Fatalf("callback invoked for failed navigation")
	}
	want := &NavigationError{NavigationID: 2, Status: 7}
	if diff := cmp.Diff(want, h.LastNavigationError()); diff != "" {
		t.Fatalf("navigation error (-want +got):\n%s", diff)
	}
	if !h.Ready() || ctrl.closed != 0 {
		t.Fatalf("failed navigation tore down the view: state=%s closed=%d", h.State(), ctrl.closed)
	}

	h.NavigateTo("example.com")
	if got := view.navigated[len(view.navigated)-1]; got != "http://example.com" {
		t.Fatalf("got=%q want=%q", got, "http://example.com")
	}
}

func TestHostPostMessage(t *testing.T) {
	h, _, _, _, view := readyHost(t)
	h.PostMessage(FunctionCall("hostReady", ""))
	if diff := cmp.Diff([]string{"{{hostReady}}"}, view.posted); diff != "" {
		t.Fatalf("posted (-want +got):\n%s", diff)
	}
}

func TestHostReinitializeClosesPrevious(t *testing.T) {
	h, engine, c, ctrl, view := readyHost(t)
	h.Initialize()

	if h.State() != StateEnvironmentPending {
		t.Fatalf("state=%s", h.State())
	}
	if ctrl.closed != 1 || len(view.handlers) != 0 {
		t.Fatalf("previous cycle not closed: closed=%d handlers=%d", ctrl.closed, len(view.handlers))
	}

	env := &fakeEnv{}
	view2 := newFakeView()
	engine.complete(1, env, nil)
	env.pending[0](&fakeController{view: view2}, nil)
	if !h.Ready() || c.created != 2 {
		t.Fatalf("state=%s created=%d", h.State(), c.created)
	}
	h.NavigateTo("example.com")
	if len(view.navigated) != 1 || len(view2.navigated) != 2 {
		t.Fatalf("old=%v new=%v", view.navigated, view2.navigated)
	}
}

func TestHostStaleEnvironmentIgnored(t *testing.T) {
	h, engine, c := newTestHost(DefaultConfig())
	h.Initialize()
	h.Initialize()

	stale := &fakeEnv{}
	engine.complete(0, stale, nil)
	if len(stale.pending) != 0 || h.State() != StateEnvironmentPending {
		t.Fatalf("stale environment used: pending=%d state=%s", len(stale.pending), h.State())
	}
	if c.created != 0 {
		t.Fatalf("creation complete fired for stale cycle")
	}

	env := &fakeEnv{}
	engine.complete(1, env, nil)
	env.pending[0](&fakeController{view: newFakeView()}, nil)
	if !h.Ready() || c.created != 1 {
		t.Fatalf("state=%s created=%d", h.State(), c.created)
	}
}

func TestHostStaleControllerClosed(t *testing.T) {
	h, engine, c := newTestHost(DefaultConfig())
	env := &fakeEnv{}
	h.Initialize()
	engine.complete(0, env, nil)
	h.Initialize()

	stale := &fakeController{view: newFakeView()}
	env.pending[0](stale, nil)
	if stale.closed != 1 {
		t.Fatalf("stale controller closed %d times", stale.closed)
	}
	if h.State() != StateEnvironmentPending || c.created != 0 {
		t.Fatalf("state=%s created=%d", h.State(), c.created)
	}
}

func TestHostCloseWhilePending(t *testing.T) {
	h, engine, c := newTestHost(DefaultConfig())
	h.Initialize()
	h.Close()
	engine.complete(0, &fakeEnv{}, nil)
	if h.State() != StateClosed || c.created != 0 {
		t.Fatalf("state=%s created=%d", h.State(), c.created)
	}
}

func TestHostInitializeFromCreationComplete(t *testing.T) {
	h, engine, _ := newTestHost(DefaultConfig())
	retried := false
	h.OnCreationComplete(func() {
		if !h.Ready() && !retried {
			retried = true
			h.Initialize()
		}
	})
	h.Initialize()
	engine.complete(0, nil, nil)
	if !retried || len(engine.pending) != 2 || h.State() != StateEnvironmentPending {
		t.Fatalf("retried=%v pending=%d state=%s", retried, len(engine.pending), h.State())
	}
}

func TestHostHTTPSOnly(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HTTPSOnly = true
	h, engine, _ := newTestHost(cfg)
	view := newFakeView()
	ctrl := &fakeController{view: view}
	env := &fakeEnv{}
	h.Initialize()
	engine.complete(0, env, nil)
	env.pending[0](ctrl, nil)
	if !h.Ready() {
		t.Fatalf("state=%s err=%v", h.State(), h.Err())
	}
	if len(view.handlers) != 3 {
		t.Fatalf("subscriptions=%d want 3", len(view.handlers))
	}

	var cancelled []string
	for _, uri := range []string{
		"https://go.dev/",
		"http://example.com/",
		`file://C:\site\index.html`,
		"about:blank",
		"https://example.com/a?b=c",
		"",
	} {
		uri := uri
		view.fire(Event{
			Kind:   EventNavigationStarting,
			URI:    uri,
			Cancel: func() { cancelled = append(cancelled, uri) },
		})
	}
	want := []string{"http://example.com/", `file://C:\site\index.html`, "about:blank", ""}
	if diff := cmp.Diff(want, cancelled); diff != "" {
		t.Fatalf("cancelled (-want +got):\n%s", diff)
	}

	h.Close()
	if len(view.unsubscribed) != 3 || len(view.handlers) != 0 {
		t.Fatalf("unsubscribed=%v remaining=%d", view.unsubscribed, len(view.handlers))
	}
}

func TestHostHTTPSOnlyDisabled(t *testing.T) {
	_, _, _, _, view := readyHost(t)
	for _, k := range view.kinds() {
		if k == EventNavigationStarting {
			t.Fatalf("navigation-starting subscribed without https_only")
		}
	}
	view.fire(Event{Kind: EventNavigationStarting, URI: "http://example.com/", Cancel: func() {
		t.Fatalf("navigation cancelled without https_only")
	}})
}
