//go:build !linux

package rtaudio

// LockMemory is a no-op on platforms without mlockall; the real-time
// guarantee it provides on Linux simply isn't available here.
func LockMemory() error { return nil }
