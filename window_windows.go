//go:build windows
// +build windows

package webwindow

import (
	"fmt"
	"runtime"
	"sync"
	"syscall"
	"unsafe"

	"github.com/rs/zerolog"
	"golang.org/x/sys/windows"
)

var (
	ole32               = windows.NewLazySystemDLL("ole32")
	ole32CoInitializeEx = ole32.NewProc("CoInitializeEx")

	user32                 = windows.NewLazySystemDLL("user32")
	user32LoadIconW        = user32.NewProc("LoadIconW")
	user32LoadCursorW      = user32.NewProc("LoadCursorW")
	user32RegisterClassExW = user32.NewProc("RegisterClassExW")
	user32CreateWindowExW  = user32.NewProc("CreateWindowExW")
	user32DestroyWindow    = user32.NewProc("DestroyWindow")
	user32ShowWindow       = user32.NewProc("ShowWindow")
	user32UpdateWindow     = user32.NewProc("UpdateWindow")
	user32GetMessageW      = user32.NewProc("GetMessageW")
	user32PostMessageW     = user32.NewProc("PostMessageW")
	user32TranslateMessage = user32.NewProc("TranslateMessage")
	user32DispatchMessageW = user32.NewProc("DispatchMessageW")
	user32DefWindowProcW   = user32.NewProc("DefWindowProcW")
	user32GetClientRect    = user32.NewProc("GetClientRect")
	user32PostQuitMessage  = user32.NewProc("PostQuitMessage")
)

const (
	_SWShowNormal = 1

	_WMDestroy  = 0x0002
	_WMSize     = 0x0005
	_WMDispatch = 0x8000 + 1 // WM_APP + 1

	_CSHRedraw = 0x0002
	_CSVRedraw = 0x0001

	_WSOverlappedWindow = 0x00CF0000
	_CWUseDefault       = 0x80000000

	_IDIApplication = 32512
	_IDCArrow       = 32512
	_ColorWindow    = 5
)

type _WndClassExW struct {
	cbSize        uint32
	style         uint32
	lpfnWndProc   uintptr
	cnClsExtra    int32
	cbWndExtra    int32
	hInstance     windows.Handle
	hIcon         windows.Handle
	hCursor       windows.Handle
	hbrBackground windows.Handle
	lpszMenuName  *uint16
	lpszClassName *uint16
	hIconSm       windows.Handle
}

type _Point struct {
	x, y int32
}

type _Msg struct {
	hwnd     syscall.Handle
	message  uint32
	wParam   uintptr
	lParam   uintptr
	time     uint32
	pt       _Point
	lPrivate uint32
}

var (
	windowContext     = map[uintptr]*win32Window{}
	windowContextSync sync.RWMutex

	wndprocCallback = windows.NewCallback(wndproc)
)

func getWindowContext(hwnd uintptr) *win32Window {
	windowContextSync.RLock()
	defer windowContextSync.RUnlock()
	return windowContext[hwnd]
}

func setWindowContext(hwnd uintptr, w *win32Window) {
	windowContextSync.Lock()
	defer windowContextSync.Unlock()
	if w == nil {
		delete(windowContext, hwnd)
		return
	}
	windowContext[hwnd] = w
}

// coInitErr is the result of CoInitializeEx on the main thread, reported
// once a logger exists.
var coInitErr error

func init() {
	runtime.LockOSThread()

	r, _, _ := ole32CoInitializeEx.Call(0, 2)
	coInitErr = hresult(r)
}

// win32Window is a top-level window whose message loop runs on the thread
// that called Run, which must be the thread that called Create.
type win32Window struct {
	events WindowEvents
	log    zerolog.Logger

	// mu guards hwnd and queue. hwnd is only written on the loop thread.
	mu    sync.Mutex
	hwnd  uintptr
	queue []func()
}

func newNativeWindow(log zerolog.Logger) Window {
	if coInitErr != nil {
		log.Warn().Err(coInitErr).Msg("CoInitializeEx call failed")
	}
	return &win32Window{log: log}
}

func wndproc(hwnd, msg, wp, lp uintptr) uintptr {
	if w := getWindowContext(hwnd); w != nil {
		switch msg {
		case _WMSize:
			if w.events.Resize != nil {
				w.events.Resize(w.ClientRect())
			}
			return 0
		case _WMDispatch:
			w.drain()
			return 0
		case _WMDestroy:
			if w.events.Destroy != nil {
				w.events.Destroy()
			}
			w.mu.Lock()
			w.hwnd = 0
			w.mu.Unlock()
			setWindowContext(hwnd, nil)
			user32PostQuitMessage.Call(0)
			return 0
		}
	}
	r, _, _ := user32DefWindowProcW.Call(hwnd, msg, wp, lp)
	return r
}

func (w *win32Window) Create(className, title string, events WindowEvents) (Handle, error) {
	w.events = events
	var hinstance windows.Handle
	if err := windows.GetModuleHandleEx(0, nil, &hinstance); err != nil {
		return 0, fmt.Errorf("get module handle: %w", err)
	}
	icon, _, _ := user32LoadIconW.Call(0, _IDIApplication)
	cursor, _, _ := user32LoadCursorW.Call(0, _IDCArrow)
	classPtr, err := windows.UTF16PtrFromString(className)
	if err != nil {
		return 0, err
	}
	titlePtr, err := windows.UTF16PtrFromString(title)
	if err != nil {
		return 0, err
	}
	wc := _WndClassExW{
		cbSize:        uint32(unsafe.Sizeof(_WndClassExW{})),
		style:         _CSHRedraw | _CSVRedraw,
		lpfnWndProc:   wndprocCallback,
		hInstance:     hinstance,
		hIcon:         windows.Handle(icon),
		hIconSm:       windows.Handle(icon),
		hCursor:       windows.Handle(cursor),
		hbrBackground: windows.Handle(_ColorWindow + 1),
		lpszClassName: classPtr,
	}
	if r, _, err := user32RegisterClassExW.Call(uintptr(unsafe.Pointer(&wc))); r == 0 {
		return 0, fmt.Errorf("call to RegisterClassEx failed: %w", err)
	}
	hwnd, _, err := user32CreateWindowExW.Call(
		0,
		uintptr(unsafe.Pointer(classPtr)),
		uintptr(unsafe.Pointer(titlePtr)),
		_WSOverlappedWindow,
		_CWUseDefault, _CWUseDefault,
		_CWUseDefault, _CWUseDefault,
		0,
		0,
		uintptr(hinstance),
		0,
	)
	if hwnd == 0 {
		return 0, fmt.Errorf("call to CreateWindow failed: %w", err)
	}
	setWindowContext(hwnd, w)
	w.mu.Lock()
	w.hwnd = hwnd
	w.mu.Unlock()
	w.log.Debug().Uint64("hwnd", uint64(hwnd)).Str("class", className).Msg("window created")
	return Handle(hwnd), nil
}

func (w *win32Window) ClientRect() Rect {
	var r Rect
	if w.hwnd != 0 {
		user32GetClientRect.Call(w.hwnd, uintptr(unsafe.Pointer(&r)))
	}
	return r
}

func (w *win32Window) Show() {
	user32ShowWindow.Call(w.hwnd, _SWShowNormal)
	user32UpdateWindow.Call(w.hwnd)
}

// Run pumps messages until WM_QUIT. Work dispatched before Create runs
// first.
func (w *win32Window) Run() int {
	w.drain()
	var msg _Msg
	for {
		r, _, _ := user32GetMessageW.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
		if int32(r) <= 0 {
			break
		}
		user32TranslateMessage.Call(uintptr(unsafe.Pointer(&msg)))
		user32DispatchMessageW.Call(uintptr(unsafe.Pointer(&msg)))
	}
	return int(msg.wParam)
}

// Dispatch queues f for the loop thread. Without a window yet, f waits
// for Run.
func (w *win32Window) Dispatch(f func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.queue = append(w.queue, f)
	if w.hwnd != 0 {
		user32PostMessageW.Call(w.hwnd, _WMDispatch, 0, 0)
	}
}

func (w *win32Window) drain() {
	w.mu.Lock()
	queue := w.queue
	w.queue = nil
	w.mu.Unlock()
	for _, f := range queue {
		f()
	}
}
