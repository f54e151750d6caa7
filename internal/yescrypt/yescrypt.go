// Package yescrypt implements the parametrized KDF-based hashing context.
// It mirrors the dataset-backed context's lifecycle at a smaller scale: a
// fixed pool of per-thread slots, no shared dataset, and serialized per-slot
// hash dispatch. The KDF itself is scrypt.
package yescrypt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/scrypt"

	"github.com/shizukutanaka/kodama/internal/mining"
)

// ErrNotInitialized is returned by hash calls before a successful Init.
var ErrNotInitialized = errors.New("yescrypt context not initialized")

// Params tunes the KDF memory and CPU cost.
type Params struct {
	N int `yaml:"n"` // CPU/memory cost, power of two > 1
	R int `yaml:"r"` // block size
	P int `yaml:"p"` // parallelization
}

// DefaultParams returns the mining defaults.
func DefaultParams() Params {
	return Params{N: 4096, R: 8, P: 1}
}

// Validate checks the cost parameters.
func (p Params) Validate() error {
	if p.N <= 1 || p.N&(p.N-1) != 0 {
		return fmt.Errorf("cost parameter N must be a power of two > 1, got %d", p.N)
	}
	if p.R < 1 {
		return fmt.Errorf("block size parameter r must be >= 1, got %d", p.R)
	}
	if p.P < 1 {
		return fmt.Errorf("parallelization parameter p must be >= 1, got %d", p.P)
	}
	return nil
}

// slot is one thread's working slot. The lock serializes hash calls landing
// on the same slot; the KDF working memory itself lives for the duration of
// one call.
type slot struct {
	mu sync.Mutex
}

// Engine is the KDF hashing context. Unlike the dataset-backed engine,
// initializing an already-initialized engine is a no-op success rather than a
// rebuild; tear it down explicitly to change parameters.
type Engine struct {
	logger *zap.Logger

	mu          sync.RWMutex
	initialized bool
	params      Params
	slots       []*slot

	nextSlot atomic.Uint64
}

// NewEngine creates an uninitialized engine.
func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{logger: logger}
}

// Init prepares the per-thread slots with the given parameters. Calling Init
// on an initialized engine succeeds without rebuilding anything.
func (e *Engine) Init(params Params, threads int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		e.logger.Warn("Yescrypt context already initialized, skipping")
		return nil
	}
	if err := params.Validate(); err != nil {
		return err
	}
	if threads < 1 {
		threads = 1
	}

	e.params = params
	e.slots = make([]*slot, threads)
	for i := range e.slots {
		e.slots[i] = &slot{}
	}
	e.initialized = true

	e.logger.Info("Yescrypt context initialized",
		zap.Int("n", params.N),
		zap.Int("r", params.R),
		zap.Int("p", params.P),
		zap.Int("threads", threads),
	)
	return nil
}

// zero-filled fixed salt: the digest must be a pure function of the input.
var zeroSalt [32]byte

// Hash derives the 32-byte digest of data on the given slot. An out-of-range
// slot id falls back to slot 0.
func (e *Engine) Hash(slotID int, data []byte) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.initialized {
		return nil, ErrNotInitialized
	}
	if slotID < 0 || slotID >= len(e.slots) {
		slotID = 0
	}

	s := e.slots[slotID]
	s.mu.Lock()
	defer s.mu.Unlock()

	digest, err := scrypt.Key(data, zeroSalt[:], e.params.N, e.params.R, e.params.P, mining.DigestSize)
	if err != nil {
		return nil, fmt.Errorf("kdf: %w", err)
	}
	return digest, nil
}

// HashAuto derives the digest on the next slot in round-robin order, spreading
// concurrent callers across the pool.
func (e *Engine) HashAuto(data []byte) ([]byte, error) {
	e.mu.RLock()
	n := len(e.slots)
	e.mu.RUnlock()
	if n == 0 {
		return nil, ErrNotInitialized
	}
	slotID := int(e.nextSlot.Add(1)-1) % n
	return e.Hash(slotID, data)
}

// CheckDifficulty reports whether digest meets the numeric target: the
// big-endian value of its first 8 bytes must be strictly below target.
func (e *Engine) CheckDifficulty(digest []byte, target uint64) bool {
	return mining.MeetsTarget64(digest, target)
}

// NumThreads returns the configured slot count, 0 before Init.
func (e *Engine) NumThreads() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.slots)
}

// Benchmark hashes numHashes nonce-varied test headers on the given slot and
// returns the measured hashes per second.
func (e *Engine) Benchmark(slotID, numHashes int) (float64, error) {
	if numHashes < 1 {
		numHashes = 1
	}

	header := make([]byte, 80)
	for i := range header {
		header[i] = byte(i)
	}

	start := time.Now()
	for i := 0; i < numHashes; i++ {
		binary.LittleEndian.PutUint32(header[76:], uint32(i))
		if _, err := e.Hash(slotID, header); err != nil {
			return 0, err
		}
	}
	elapsed := time.Since(start)
	if elapsed <= 0 {
		return 0, nil
	}
	return float64(numHashes) / elapsed.Seconds(), nil
}

// Cleanup releases the slots. Idempotent and safe before Init.
func (e *Engine) Cleanup() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return
	}
	e.slots = nil
	e.initialized = false
	e.logger.Info("Yescrypt context released")
}
