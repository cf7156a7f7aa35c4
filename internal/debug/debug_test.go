package debug

import (
	"os"
	"testing"
)

func TestIsDebuggerAttached(t *testing.T) {
	t.Setenv("VSCODE_DEBUG_MODE", "")
	t.Setenv("DELVE_DEBUGGER", "")
	arg0 := os.Args[0]
	t.Cleanup(func() { os.Args[0] = arg0 })

	os.Args[0] = "/usr/local/bin/myhome"
	if IsDebuggerAttached() {
		t.Error("plain binary reported as debugged")
	}
	os.Args[0] = "/tmp/__debug_bin1234"
	if !IsDebuggerAttached() {
		t.Error("__debug_bin not reported as debugged")
	}
	os.Args[0] = "/usr/local/bin/myhome"
	t.Setenv("DELVE_DEBUGGER", "1")
	if !IsDebuggerAttached() {
		t.Error("DELVE_DEBUGGER not honored")
	}
}
