//go:build !linux && !windows

package anythread

// osThreadID returns 0 on platforms without a cheap thread id syscall
// wrapper; the owner goroutine id remains the authoritative identity.
func osThreadID() int {
	return 0
}
