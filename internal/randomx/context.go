package randomx

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrVMCreate is returned when a VM cannot be created even after the
// large-page step-down. No partial pool survives this failure.
var ErrVMCreate = errors.New("vm creation failed")

// vmSlot pairs one VM with the lock serializing access to it. Slots are
// created only during context construction and destroyed only during
// teardown, never individually.
type vmSlot struct {
	mu sync.Mutex
	vm *vm
}

// Context is the as-built mining context: key, cache, optional dataset and
// the fixed VM pool. It is exclusively owned by the Engine holding it and is
// replaced wholesale on re-initialization, never mutated.
type Context struct {
	key     []byte
	flags   Flags // active flags, possibly downgraded from the request
	cache   *cache
	dataset *dataset // non-nil iff flags has FlagFullMem
	slots   []*vmSlot
}

// newContext builds cache, dataset and VM pool in order. threads must already
// be clamped. On any fatal failure every resource built so far is released
// and no context is returned.
func newContext(key []byte, requested Flags, threads int, logger *zap.Logger) (*Context, error) {
	working := requested

	c, err := newCache(key, &working, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Cache initialized", zap.Int("key_bytes", len(key)))

	var d *dataset
	if working.Has(FlagFullMem) {
		d, err = newDataset(&working, logger)
		if err != nil {
			// Non-fatal: degrade to cache-only mode.
			logger.Warn("Dataset unavailable, falling back to cache-only mode", zap.Error(err))
			working &^= FlagFullMem
		} else {
			workers := runtime.NumCPU()
			if workers > threads {
				workers = threads
			}
			if workers < 1 {
				workers = 1
			}
			d.build(c, workers, logger)
		}
	}

	slots, vmFlags, err := buildVMPool(working, c, d, threads, logger)
	if err != nil {
		d.release()
		c.release()
		return nil, err
	}

	ctx := &Context{
		key:     append([]byte(nil), key...),
		flags:   vmFlags,
		cache:   c,
		dataset: d,
		slots:   slots,
	}
	ctx.sampleThroughput(logger)
	return ctx, nil
}

// buildVMPool creates one VM per slot. The first creation failure with large
// pages set clears the large-page bit once for the remainder of the loop and
// retries that VM. A VM that still fails aborts the build: everything created
// in this pass is destroyed.
func buildVMPool(flags Flags, c *cache, d *dataset, threads int, logger *zap.Logger) ([]*vmSlot, Flags, error) {
	logger.Info("Creating VM pool", zap.Int("vms", threads), zap.Stringer("flags", flags))

	slots := make([]*vmSlot, 0, threads)
	steppedDown := false
	for i := 0; i < threads; i++ {
		m, err := newVM(flags, c, d)
		if err != nil && flags.Has(FlagLargePages) && !steppedDown {
			logger.Warn("Large pages unavailable for VM scratchpads, falling back to small pages",
				zap.Error(err))
			flags &^= FlagLargePages
			steppedDown = true
			m, err = newVM(flags, c, d)
		}
		if err != nil {
			for _, s := range slots {
				s.vm.destroy()
			}
			return nil, 0, fmt.Errorf("%w: vm %d: %v", ErrVMCreate, i, err)
		}
		slots = append(slots, &vmSlot{vm: m})
	}

	return slots, flags, nil
}

// sampleThroughput hashes a fixed nonce-varied input on the first VM and logs
// an estimated per-VM hash rate. Purely diagnostic: every failure is
// swallowed and cannot affect the initialization outcome.
func (x *Context) sampleThroughput(logger *zap.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Debug("Throughput sample failed", zap.Any("reason", r))
		}
	}()

	const samples = 16
	var input [76]byte
	var out [32]byte

	s := x.slots[0]
	start := time.Now()
	for i := 0; i < samples; i++ {
		input[38] = byte(i)
		s.mu.Lock()
		s.vm.calculateHash(input[:], out[:])
		s.mu.Unlock()
	}
	elapsed := time.Since(start)
	if elapsed > 0 {
		logger.Info("Sample hash speed",
			zap.Float64("hashes_per_sec", samples/elapsed.Seconds()),
			zap.Int("samples", samples),
		)
	}
}

// hashSlot computes one hash on slot i, holding the slot lock for exactly
// that one invocation.
func (x *Context) hashSlot(i int, input, output []byte) {
	s := x.slots[i]
	s.mu.Lock()
	s.vm.calculateHash(input, output)
	s.mu.Unlock()
}

// release tears down VMs, dataset and cache, in that order. Safe on a nil
// context.
func (x *Context) release() {
	if x == nil {
		return
	}
	for _, s := range x.slots {
		s.vm.destroy()
	}
	x.slots = nil
	x.dataset.release()
	x.dataset = nil
	x.cache.release()
	x.cache = nil
}
