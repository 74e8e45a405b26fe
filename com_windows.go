//go:build windows
// +build windows

package webwindow

import (
	"fmt"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// HRESULT is a failed COM call status.
type HRESULT uint32

func (hr HRESULT) Error() string {
	return fmt.Sprintf("webview2: HRESULT 0x%08x", uint32(hr))
}

func hresult(r uintptr) error {
	if int32(r) < 0 {
		return HRESULT(uint32(r))
	}
	return nil
}

func boolArg(b bool) uintptr {
	if b {
		return 1
	}
	return 0
}

// comProc is a vtable slot.
type comProc uintptr

func (p comProc) Call(a ...uintptr) uintptr {
	r, _, _ := syscall.SyscallN(uintptr(p), a...)
	return r
}

type _IUnknownVtbl struct {
	QueryInterface comProc
	AddRef         comProc
	Release        comProc
}

func (v *_IUnknownVtbl) release(this unsafe.Pointer) {
	v.Release.Call(uintptr(this))
}

type iCoreWebView2Environment struct {
	vtbl *_ICoreWebView2EnvironmentVtbl
}

type _ICoreWebView2EnvironmentVtbl struct {
	_IUnknownVtbl
	CreateCoreWebView2Controller     comProc
	CreateWebResourceResponse        comProc
	GetBrowserVersionString          comProc
	AddNewBrowserVersionAvailable    comProc
	RemoveNewBrowserVersionAvailable comProc
}

type iCoreWebView2Controller struct {
	vtbl *_ICoreWebView2ControllerVtbl
}

type _ICoreWebView2ControllerVtbl struct {
	_IUnknownVtbl
	GetIsVisible                      comProc
	PutIsVisible                      comProc
	GetBounds                         comProc
	PutBounds                         comProc
	GetZoomFactor                     comProc
	PutZoomFactor                     comProc
	AddZoomFactorChanged              comProc
	RemoveZoomFactorChanged           comProc
	SetBoundsAndZoomFactor            comProc
	MoveFocus                         comProc
	AddMoveFocusRequested             comProc
	RemoveMoveFocusRequested          comProc
	AddGotFocus                       comProc
	RemoveGotFocus                    comProc
	AddLostFocus                      comProc
	RemoveLostFocus                   comProc
	AddAcceleratorKeyPressed          comProc
	RemoveAcceleratorKeyPressed       comProc
	GetParentWindow                   comProc
	PutParentWindow                   comProc
	NotifyParentWindowPositionChanged comProc
	Close                             comProc
	GetCoreWebView2                   comProc
}

// iCoreWebView2 is declared up to remove_WebMessageReceived; later slots
// are never called.
type iCoreWebView2 struct {
	vtbl *_ICoreWebView2Vtbl
}

type _ICoreWebView2Vtbl struct {
	_IUnknownVtbl
	GetSettings                            comProc
	GetSource                              comProc
	Navigate                               comProc
	NavigateToString                       comProc
	AddNavigationStarting                  comProc
	RemoveNavigationStarting               comProc
	AddContentLoading                      comProc
	RemoveContentLoading                   comProc
	AddSourceChanged                       comProc
	RemoveSourceChanged                    comProc
	AddHistoryChanged                      comProc
	RemoveHistoryChanged                   comProc
	AddNavigationCompleted                 comProc
	RemoveNavigationCompleted              comProc
	AddFrameNavigationStarting             comProc
	RemoveFrameNavigationStarting          comProc
	AddFrameNavigationCompleted            comProc
	RemoveFrameNavigationCompleted         comProc
	AddScriptDialogOpening                 comProc
	RemoveScriptDialogOpening              comProc
	AddPermissionRequested                 comProc
	RemovePermissionRequested              comProc
	AddProcessFailed                       comProc
	RemoveProcessFailed                    comProc
	AddScriptToExecuteOnDocumentCreated    comProc
	RemoveScriptToExecuteOnDocumentCreated comProc
	ExecuteScript                          comProc
	CapturePreview                         comProc
	Reload                                 comProc
	PostWebMessageAsJSON                   comProc
	PostWebMessageAsString                 comProc
	AddWebMessageReceived                  comProc
	RemoveWebMessageReceived               comProc
}

type iCoreWebView2Settings struct {
	vtbl *_ICoreWebView2SettingsVtbl
}

type _ICoreWebView2SettingsVtbl struct {
	_IUnknownVtbl
	GetIsScriptEnabled                comProc
	PutIsScriptEnabled                comProc
	GetIsWebMessageEnabled            comProc
	PutIsWebMessageEnabled            comProc
	GetAreDefaultScriptDialogsEnabled comProc
	PutAreDefaultScriptDialogsEnabled comProc
	GetIsStatusBarEnabled             comProc
	PutIsStatusBarEnabled             comProc
	GetAreDevToolsEnabled             comProc
	PutAreDevToolsEnabled             comProc
	GetAreDefaultContextMenusEnabled  comProc
	PutAreDefaultContextMenusEnabled  comProc
	GetAreHostObjectsAllowed          comProc
	PutAreHostObjectsAllowed          comProc
	GetIsZoomControlEnabled           comProc
	PutIsZoomControlEnabled           comProc
	GetIsBuiltInErrorPageEnabled      comProc
	PutIsBuiltInErrorPageEnabled      comProc
}

type iCoreWebView2NavigationStartingEventArgs struct {
	vtbl *_ICoreWebView2NavigationStartingEventArgsVtbl
}

type _ICoreWebView2NavigationStartingEventArgsVtbl struct {
	_IUnknownVtbl
	GetURI             comProc
	GetIsUserInitiated comProc
	GetIsRedirected    comProc
	GetRequestHeaders  comProc
	GetCancel          comProc
	PutCancel          comProc
	GetNavigationID    comProc
}

type iCoreWebView2NavigationCompletedEventArgs struct {
	vtbl *_ICoreWebView2NavigationCompletedEventArgsVtbl
}

type _ICoreWebView2NavigationCompletedEventArgsVtbl struct {
	_IUnknownVtbl
	GetIsSuccess      comProc
	GetWebErrorStatus comProc
	GetNavigationID   comProc
}

type iCoreWebView2WebMessageReceivedEventArgs struct {
	vtbl *_ICoreWebView2WebMessageReceivedEventArgsVtbl
}

type _ICoreWebView2WebMessageReceivedEventArgsVtbl struct {
	_IUnknownVtbl
	GetSource                comProc
	GetWebMessageAsJSON      comProc
	TryGetWebMessageAsString comProc
}

// comHandler implements every WebView2 completion and event handler used
// here. They all share the vtable shape
// QueryInterface, AddRef, Release, Invoke(this, a, b).
type comHandler struct {
	vtbl   *_ComHandlerVtbl
	invoke func(a, b uintptr) uintptr
}

type _ComHandlerVtbl struct {
	QueryInterface uintptr
	AddRef         uintptr
	Release        uintptr
	Invoke         uintptr
}

var comHandlerVtbl = &_ComHandlerVtbl{
	QueryInterface: windows.NewCallback(func(this *comHandler, riid, object uintptr) uintptr { return 0 }),
	AddRef:         windows.NewCallback(func(this *comHandler) uintptr { return 1 }),
	Release:        windows.NewCallback(func(this *comHandler) uintptr { return 1 }),
	Invoke: windows.NewCallback(func(this *comHandler, a, b uintptr) uintptr {
		return this.invoke(a, b)
	}),
}

// pinned keeps handlers reachable while native code holds them.
var (
	pinned   = map[*comHandler]struct{}{}
	pinnedMu sync.Mutex
)

func newComHandler(invoke func(a, b uintptr) uintptr) *comHandler {
	h := &comHandler{vtbl: comHandlerVtbl, invoke: invoke}
	pinnedMu.Lock()
	pinned[h] = struct{}{}
	pinnedMu.Unlock()
	return h
}

func (h *comHandler) unpin() {
	pinnedMu.Lock()
	delete(pinned, h)
	pinnedMu.Unlock()
}

func (h *comHandler) ptr() uintptr { return uintptr(unsafe.Pointer(h)) }
