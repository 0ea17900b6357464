//go:build linux

package anythread

import "golang.org/x/sys/unix"

// osThreadID returns the OS thread id of the calling thread, for log
// correlation with external tooling. Meaningful only while the goroutine is
// locked to its thread.
func osThreadID() int {
	return unix.Gettid()
}
