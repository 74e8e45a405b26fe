package webwindow

// WindowEvents are the notifications a native window delivers from its
// message loop.
type WindowEvents struct {
	Resize  func(client Rect)
	Destroy func()
}

// Window is the native top-level window the view is attached to.
type Window interface {
	// Create registers the window class and creates the window.
	Create(className, title string, events WindowEvents) (Handle, error)
	ClientRect() Rect
	Show()
	// Run pumps messages until the window is destroyed and returns the
	// loop's exit code.
	Run() int
	// Dispatch schedules f on the message loop thread. It may be called
	// from any goroutine.
	Dispatch(f func())
}
