package debug

import (
	"os"
	"path/filepath"
	"strings"
)

// IsDebuggerAttached reports whether the process looks like it was started
// by Delve, directly or through an editor.
func IsDebuggerAttached() bool {
	for _, env := range []string{"VSCODE_DEBUG_MODE", "DELVE_DEBUGGER"} {
		if os.Getenv(env) != "" {
			return true
		}
	}
	return strings.HasPrefix(filepath.Base(os.Args[0]), "__debug_bin")
}
