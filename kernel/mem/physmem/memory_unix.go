//go:build unix

package physmem

import "golang.org/x/sys/unix"

// allocArena backs physical memory with an anonymous private mapping so the
// host only commits the frames the kernel actually touches.
func allocArena(size int) ([]byte, func() error, error) {
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, err
	}

	return data, func() error { return unix.Munmap(data) }, nil
}
