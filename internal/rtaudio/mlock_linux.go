//go:build linux

package rtaudio

import "golang.org/x/sys/unix"

// LockMemory best-effort-locks the process's current and future memory
// pages, so the audio thread's working set can't be paged out mid-block
// (spec §5 "must not block on I/O" extends to page faults on the hot
// path). Failure is non-fatal: most containers and unprivileged users
// can't raise RLIMIT_MEMLOCK, and playback still works, just without the
// guarantee.
func LockMemory() error {
	return unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE)
}
