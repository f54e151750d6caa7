//go:build linux

package randomx

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// allocHugePages maps size bytes backed by huge pages. Fails unless the
// kernel has preallocated huge pages (vm.nr_hugepages); callers fall back to
// a plain allocation.
func allocHugePages(size int) (*region, error) {
	buf, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_HUGETLB)
	if err != nil {
		return nil, fmt.Errorf("mmap huge pages: %w", err)
	}
	r := &region{buf: buf, hugePages: true}
	r.unmap = func() error { return unix.Munmap(buf) }
	return r, nil
}
