package webwindow

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported is returned by the native window and engine on
	// platforms without a WebView2 backend.
	ErrUnsupported = errors.New("webwindow: platform not supported")
	// ErrRuntimeMissing means the WebView2 runtime is not installed.
	ErrRuntimeMissing = errors.New("webwindow: webview2 runtime not installed")

	errNilEnvironment = errors.New("environment completed without a handle")
	errNilController  = errors.New("controller completed without a handle")
	errNilView        = errors.New("controller has no view")
)

// Handle is an opaque native window handle. The host never owns it.
type Handle uintptr

// Rect is a window client area in pixels.
type Rect struct {
	Left   int32
	Top    int32
	Right  int32
	Bottom int32
}

// Engine creates rendering environments. Completion callbacks are delivered
// on the thread running the native message loop, possibly before
// CreateEnvironment returns.
type Engine interface {
	CreateEnvironment(done func(Environment, error))
}

type Environment interface {
	CreateController(parent Handle, done func(Controller, error))
}

// Controller owns the visible bounds and the lifetime of a View. It must be
// closed before it is replaced.
type Controller interface {
	SetBounds(r Rect) error
	View() (View, error)
	Close() error
}

type View interface {
	Settings() (Settings, error)
	Navigate(url string) error
	AddInitScript(script string) error
	Subscribe(kind EventKind, handler EventHandler) (Token, error)
	Unsubscribe(token Token) error
	PostMessage(text string) error
}

type Settings interface {
	SetContextMenusEnabled(enabled bool) error
	SetDevToolsEnabled(enabled bool) error
	SetWebMessageEnabled(enabled bool) error
}

// EventKind names a View event a host can subscribe to.
type EventKind int

const (
	EventNavigationCompleted EventKind = iota
	EventMessageReceived
	EventNavigationStarting
)

func (k EventKind) String() string {
	switch k {
	case EventNavigationCompleted:
		return "navigation-completed"
	case EventMessageReceived:
		return "message-received"
	case EventNavigationStarting:
		return "navigation-starting"
	default:
		return "unknown"
	}
}

// Event carries the payload of a View event. Success, Status and
// NavigationID are set for navigation events, Message for message events.
// A navigation-starting event carries URI and a Cancel func that is only
// valid while the handler runs.
type Event struct {
	Kind         EventKind
	Success      bool
	Status       int
	NavigationID uint64
	Message      string
	URI          string
	Cancel       func()
}

type EventHandler func(Event)

// Token identifies one subscription on a View.
type Token struct {
	Kind  EventKind
	Value int64
}

// NavigationError is the status of a failed navigation.
type NavigationError struct {
	NavigationID uint64
	Status       int
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("webwindow: navigation %d failed with status %d", e.NavigationID, e.Status)
}
