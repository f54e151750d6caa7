package randomx

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/shizukutanaka/kodama/internal/hardware"
	"github.com/shizukutanaka/kodama/internal/mining"
	"github.com/shizukutanaka/kodama/internal/monitoring"
)

// Thread count bounds for a context.
const (
	MinThreads = 1
	MaxThreads = 64
)

// Engine owns the process's mining context. All global mutable state lives
// here: the single protected context slot and the slot-binding counter.
// Init and Cleanup hold the write lock for their full duration, dataset
// construction included, so a hash call can never observe a partially built
// context. Hash calls share the read lock and serialize per VM slot.
type Engine struct {
	logger  *zap.Logger
	metrics *monitoring.Metrics

	mu       sync.RWMutex
	ctx      *Context
	nextSlot atomic.Uint64
}

// NewEngine creates an engine with no context installed. metrics may be nil.
func NewEngine(logger *zap.Logger, metrics *monitoring.Metrics) *Engine {
	return &Engine{logger: logger, metrics: metrics}
}

// Init builds a new mining context from key with the given thread count,
// clamped to [MinThreads, MaxThreads]. An existing context is fully released
// before the new one is built; on failure no context is left installed.
func (e *Engine) Init(key []byte, threads int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if threads < MinThreads {
		threads = MinThreads
	}
	if threads > MaxThreads {
		threads = MaxThreads
	}
	if hw := runtime.NumCPU(); threads > hw {
		e.logger.Warn("Requested more threads than hardware provides",
			zap.Int("requested", threads),
			zap.Int("hardware", hw),
		)
	}

	caps := hardware.Detect(e.logger)
	requested := NegotiateFlags(caps)
	e.logger.Info("Initializing mining context",
		zap.Int("threads", threads),
		zap.Stringer("requested_flags", requested),
	)

	if e.ctx != nil {
		e.ctx.release()
		e.ctx = nil
		e.metrics.SetPoolSize(0)
	}

	start := time.Now()
	ctx, err := newContext(key, requested, threads, e.logger)
	if err != nil {
		e.metrics.IncInitFailures()
		e.logger.Error("Mining context initialization failed", zap.Error(err))
		return err
	}

	e.ctx = ctx
	e.nextSlot.Store(0)
	e.metrics.SetPoolSize(len(ctx.slots))
	e.metrics.ObserveInit(time.Since(start))
	if requested.Has(FlagFullMem) && !ctx.flags.Has(FlagFullMem) {
		e.metrics.IncDegradations()
	}

	e.logger.Info("Mining context ready",
		zap.Int("vms", len(ctx.slots)),
		zap.Stringer("active_flags", ctx.flags),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// Hash computes the 32-byte digest of input on the next pool slot in
// round-robin order. With no context installed it returns the all-zero
// sentinel digest. Workers that hash in a loop should prefer a Binding,
// which pins them to one slot.
func (e *Engine) Hash(input []byte) []byte {
	out := make([]byte, mining.DigestSize)

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.ctx == nil {
		e.logger.Debug("Hash called with no mining context")
		return out
	}

	slot := int(e.nextSlot.Add(1)-1) % len(e.ctx.slots)
	e.ctx.hashSlot(slot, input, out)
	e.metrics.IncHashes()
	return out
}

// HashVM computes the digest of input on an explicitly chosen slot. An
// out-of-range index or a missing context yields the zero sentinel and a
// diagnostic, never a panic.
func (e *Engine) HashVM(index int, input []byte) []byte {
	out := make([]byte, mining.DigestSize)

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.ctx == nil {
		e.logger.Debug("Hash called with no mining context")
		return out
	}
	if index < 0 || index >= len(e.ctx.slots) {
		e.logger.Warn("Invalid VM index",
			zap.Int("index", index),
			zap.Int("pool_size", len(e.ctx.slots)),
		)
		return out
	}

	e.ctx.hashSlot(index, input, out)
	e.metrics.IncHashes()
	return out
}

// Binding pins one worker to a VM slot. The slot index is assigned on the
// first Hash call from the shared counter, modulo pool size, and kept for the
// binding's lifetime; when the pool shrinks under it the binding reassigns
// itself the same way. More workers than slots means deterministic sharing,
// serialized by the slot locks. A Binding must not be used concurrently.
type Binding struct {
	engine *Engine
	slot   int
}

// Bind returns an unassigned binding for one worker.
func (e *Engine) Bind() *Binding {
	return &Binding{engine: e, slot: -1}
}

// Hash computes the digest of input on this worker's pinned slot, assigning
// the slot on first use. Zero sentinel with no context installed.
func (b *Binding) Hash(input []byte) []byte {
	e := b.engine
	out := make([]byte, mining.DigestSize)

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.ctx == nil {
		e.logger.Debug("Hash called with no mining context")
		return out
	}

	if b.slot < 0 || b.slot >= len(e.ctx.slots) {
		b.slot = int(e.nextSlot.Add(1)-1) % len(e.ctx.slots)
	}
	e.ctx.hashSlot(b.slot, input, out)
	e.metrics.IncHashes()
	return out
}

// Ready reports whether a context is installed.
func (e *Engine) Ready() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ctx != nil
}

// NumThreads returns the live VM pool size, 0 with no context.
func (e *Engine) NumThreads() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.ctx == nil {
		return 0
	}
	return len(e.ctx.slots)
}

// ActiveFlags returns the as-built flags of the current context, 0 with no
// context. Callers use this to detect a cache-only downgrade.
func (e *Engine) ActiveFlags() Flags {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.ctx == nil {
		return 0
	}
	return e.ctx.flags
}

// Cleanup releases the current context. Idempotent: calling it repeatedly or
// without a prior Init is a no-op.
func (e *Engine) Cleanup() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctx == nil {
		return
	}
	e.ctx.release()
	e.ctx = nil
	e.metrics.SetPoolSize(0)
	e.logger.Info("Mining context released")
}
