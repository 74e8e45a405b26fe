//go:build !windows

package webwindow

import "github.com/rs/zerolog"

type unsupportedWindow struct{}

func newNativeWindow(zerolog.Logger) Window { return unsupportedWindow{} }

func (unsupportedWindow) Create(string, string, WindowEvents) (Handle, error) {
	return 0, ErrUnsupported
}

func (unsupportedWindow) ClientRect() Rect { return Rect{} }
func (unsupportedWindow) Show() {}
func (unsupportedWindow) Run() int { return 1 }
func (unsupportedWindow) Dispatch(f func()) { f() }

type unsupportedEngine struct{}

func newEngine(Config, zerolog.Logger) Engine { return unsupportedEngine{} }

func (unsupportedEngine) CreateEnvironment(done func(Environment, error)) {
	done(nil, ErrUnsupported)
}
