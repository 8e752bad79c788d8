package storage

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Usage reports capacity of the filesystem holding a path.
type Usage struct {
	FreeBytes  uint64
	TotalBytes uint64
}

// StatUsage returns free and total bytes for the filesystem containing path.
func StatUsage(path string) (Usage, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return Usage{}, fmt.Errorf("statfs %s: %w", path, err)
	}
	bsize := uint64(st.Bsize)
	return Usage{
		FreeBytes:  uint64(st.Bavail) * bsize,
		TotalBytes: uint64(st.Blocks) * bsize,
	}, nil
}
