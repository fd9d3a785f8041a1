//go:build !windows

// Package diskspace reports free space on the filesystem holding a given
// path, so a verb that's about to move or copy a lot of data can warn an
// operator before it runs out of room partway through.
package diskspace

import "syscall"

// Available returns the free byte count on the filesystem holding path.
func Available(path string) (uint64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}
