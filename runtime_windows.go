//go:build windows
// +build windows

package webwindow

import (
	"fmt"
	"os/exec"
	"runtime"
	"sync"
	"syscall"

	"github.com/gen2brain/dlgs"
	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
)

const (
	runtimeClientKey   = `Microsoft\EdgeUpdate\Clients\{F3017226-FE2A-4295-8BDF-00C3A9A7E4C5}`
	runtimeDownloadURL = `https://go.microsoft.com/fwlink/p/?LinkId=2124703`
)

var (
	runtimeOnce sync.Once
	runtimeErr  error
)

func init() {
	// Enable High Dpi Support
	if major, _, _ := ntVersion(); major > 6 {
		windows.NewLazySystemDLL("Shcore").NewProc("SetProcessDpiAwareness").Call(1)
	}
}

type runtimeKey struct {
	root registry.Key
	path string
}

func runtimeKeys() []runtimeKey {
	machine := `SOFTWARE\` + runtimeClientKey
	if runtime.GOARCH != "386" {
		machine = `SOFTWARE\WOW6432Node\` + runtimeClientKey
	}
	return []runtimeKey{
		{registry.LOCAL_MACHINE, machine},
		{registry.CURRENT_USER, `Software\` + runtimeClientKey},
	}
}

// runtimeVersion returns the installed WebView2 runtime version, machine
// wide first, then per user.
func runtimeVersion() (string, error) {
	var lastErr error = registry.ErrNotExist
	for _, rk := range runtimeKeys() {
		key, err := registry.OpenKey(rk.root, rk.path, registry.READ)
		if err != nil {
			lastErr = err
			continue
		}
		pv, _, err := key.GetStringValue(`pv`)
		key.Close()
		if err == nil && pv != "" && pv != "0.0.0.0" {
			return pv, nil
		}
		if err != nil {
			lastErr = err
		}
	}
	return "", lastErr
}

// checkRuntime probes the runtime once per process. When it is missing the
// user is offered the download page.
func checkRuntime() error {
	runtimeOnce.Do(func() {
		if _, err := runtimeVersion(); err != nil {
			if err != registry.ErrNotExist {
				runtimeErr = fmt.Errorf("%w: %v", ErrRuntimeMissing, err)
				dlgs.Error(`Microsoft WebView2 Runtime`, `WebView2 Runtime Error: `+err.Error())
				return
			}
			runtimeErr = ErrRuntimeMissing
			if err := offerRuntimeDownload(); err != nil {
				dlgs.Error(`Microsoft WebView2 Runtime`, `Get WebView2 Runtime Error: `+err.Error())
			}
		}
	})
	return runtimeErr
}

func offerRuntimeDownload() error {
	download, err := dlgs.Question(`Missing system component`,
		`The Microsoft WebView2 Runtime is required. Download it now?`, false)
	if err != nil || !download {
		return err
	}
	cmd := exec.Command(`cmd`, `/c`, `start`, runtimeDownloadURL)
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
	return cmd.Start()
}
