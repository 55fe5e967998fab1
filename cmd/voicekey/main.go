// Command voicekey turns spoken commands into keyboard, mouse and media
// actions on a host computer.
package main

import (
	"os"

	"golang.design/x/hotkey/mainthread"
)

func main() {
	code := 0
	// Global hotkeys need the main thread on macOS.
	mainthread.Init(func() {
		if err := newRootCmd().Execute(); err != nil {
			code = 1
		}
	})
	os.Exit(code)
}
