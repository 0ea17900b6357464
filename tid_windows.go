//go:build windows

package anythread

import "golang.org/x/sys/windows"

// osThreadID returns the OS thread id of the calling thread, for log
// correlation with external tooling. Meaningful only while the goroutine is
// locked to its thread.
func osThreadID() int {
	return int(windows.GetCurrentThreadId())
}
