//go:build windows
// +build windows

package webwindow

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

var ntdllRtlGetNtVersionNumbers = windows.NewLazySystemDLL("ntdll").NewProc("RtlGetNtVersionNumbers")

// ntVersion reports the real OS version, unaffected by manifest based
// compatibility shims.
func ntVersion() (major, minor, build uint32) {
	ntdllRtlGetNtVersionNumbers.Call(
		uintptr(unsafe.Pointer(&major)),
		uintptr(unsafe.Pointer(&minor)),
		uintptr(unsafe.Pointer(&build)),
	)
	build &= 0xffff
	return
}
