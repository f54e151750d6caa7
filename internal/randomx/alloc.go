package randomx

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/pbnjay/memory"
	"go.uber.org/zap"
)

// ErrAlloc is the class of fatal allocation failures: the resource could not
// be obtained even after the large-page fallback step.
var ErrAlloc = errors.New("allocation failed")

// region is a scope-bound owner for a block of working memory. It guarantees
// release on every exit path, including initialization aborts, as long as the
// owning object calls release exactly once.
type region struct {
	buf       []byte
	hugePages bool
	unmap     func() error
}

func (r *region) release() {
	if r == nil {
		return
	}
	if r.unmap != nil {
		_ = r.unmap()
		r.unmap = nil
	}
	r.buf = nil
}

// allocPlain obtains size bytes from the Go heap. A request that exceeds the
// host's free memory is refused up front instead of driving the machine into
// swap, which is the failure mode the fallback ladders exist for.
func allocPlain(size int) (*region, error) {
	if free := memory.FreeMemory(); free > 0 && uint64(size) > free {
		return nil, fmt.Errorf("%w: need %s but only %s free",
			ErrAlloc, humanize.IBytes(uint64(size)), humanize.IBytes(free))
	}
	return &region{buf: make([]byte, size)}, nil
}

// allocRegion obtains size bytes honoring the working flags: with
// FlagLargePages set it attempts a huge-page mapping first, then steps down
// to a plain allocation, clearing the large-page bit in *flags so later
// allocations in the same pass skip the known-bad step. The ladder is shared
// by the cache, the dataset and the VM scratchpads.
func allocRegion(size int, flags *Flags, what string, logger *zap.Logger) (*region, error) {
	var r *region
	var err error
	if flags.Has(FlagLargePages) {
		r, err = allocHugePages(size)
		if err != nil {
			logger.Warn("Large pages unavailable, retrying with small pages",
				zap.String("resource", what),
				zap.Error(err),
			)
			*flags &^= FlagLargePages
		}
	}
	if r == nil {
		r, err = allocPlain(size)
		if err != nil {
			return nil, fmt.Errorf("alloc %s: %w", what, err)
		}
	}
	logger.Debug("Memory region allocated",
		zap.String("resource", what),
		zap.String("size", humanize.IBytes(uint64(size))),
		zap.Bool("huge_pages", r.hugePages),
	)
	return r, nil
}
