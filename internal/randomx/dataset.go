package randomx

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

// Dataset geometry. The dataset is derived from the cache and enables the
// fast full-memory hashing mode; in cache-only mode items are recomputed on
// demand from the same item function, so digests agree across modes.
const (
	datasetItemSize  = 64
	datasetItemCount = 1 << 20
	datasetSize      = datasetItemCount * datasetItemSize

	// Upper bound on dataset construction workers.
	maxInitWorkers = 32
)

// dataset is the fully materialized item table. Read-only after build, shared
// by all VMs without locking.
type dataset struct {
	mem *region
}

// newDataset allocates the dataset with the working flags. Unlike the cache,
// callers treat failure here as a downgrade to cache-only mode, not as a
// fatal error.
func newDataset(flags *Flags, logger *zap.Logger) (*dataset, error) {
	logger.Info("Allocating dataset", zap.String("size", humanize.IBytes(datasetSize)))
	mem, err := allocRegion(datasetSize, flags, "dataset", logger)
	if err != nil {
		return nil, err
	}
	return &dataset{mem: mem}, nil
}

// itemRange is a contiguous slice of the dataset item space assigned to one
// construction worker.
type itemRange struct {
	start uint64
	count uint64
}

// partitionItems splits total items into at most workers contiguous,
// non-overlapping ranges covering the item space exactly once. The last range
// is clamped to the remainder when total does not divide evenly.
func partitionItems(total uint64, workers int) []itemRange {
	if workers < 1 {
		workers = 1
	}
	chunk := (total + uint64(workers) - 1) / uint64(workers)
	ranges := make([]itemRange, 0, workers)
	for t := 0; t < workers; t++ {
		start := uint64(t) * chunk
		if start >= total {
			break
		}
		count := chunk
		if start+count > total {
			count = total - start
		}
		ranges = append(ranges, itemRange{start: start, count: count})
	}
	return ranges
}

// build constructs every dataset item from c, partitioning the item space
// across up to workers goroutines and blocking until all of them finish. A
// single-range partition is built inline on the calling goroutine.
func (d *dataset) build(c *cache, workers int, logger *zap.Logger) {
	if workers > maxInitWorkers {
		workers = maxInitWorkers
	}
	ranges := partitionItems(datasetItemCount, workers)
	logger.Info("Initializing dataset", zap.Int("workers", len(ranges)))
	start := time.Now()

	if len(ranges) == 1 {
		d.initRange(c, ranges[0])
	} else {
		var wg sync.WaitGroup
		for _, r := range ranges {
			wg.Add(1)
			go func(r itemRange) {
				defer wg.Done()
				d.initRange(c, r)
			}(r)
		}
		wg.Wait()
	}

	logger.Info("Dataset initialized", zap.Duration("elapsed", time.Since(start)))
}

func (d *dataset) initRange(c *cache, r itemRange) {
	for i := r.start; i < r.start+r.count; i++ {
		off := i * datasetItemSize
		computeItem(c, i, d.mem.buf[off:off+datasetItemSize])
	}
}

// item returns the 64-byte dataset item for index i, reduced modulo the item
// count.
func (d *dataset) item(i uint64) []byte {
	off := (i % datasetItemCount) * datasetItemSize
	return d.mem.buf[off : off+datasetItemSize]
}

// computeItem derives dataset item i from two data-dependent cache blocks.
// This is the single source of truth for item contents; the full-memory build
// and the cache-only on-demand path both go through it.
func computeItem(c *cache, i uint64, out []byte) {
	var in [2*cacheBlockSize + 8]byte
	b0 := c.block(i)
	copy(in[:cacheBlockSize], b0)
	next := binary.LittleEndian.Uint64(b0[:8])
	copy(in[cacheBlockSize:2*cacheBlockSize], c.block(i+next))
	binary.LittleEndian.PutUint64(in[2*cacheBlockSize:], i)
	sum := blake2b.Sum512(in[:])
	copy(out, sum[:])
}

func (d *dataset) release() {
	if d != nil {
		d.mem.release()
	}
}
