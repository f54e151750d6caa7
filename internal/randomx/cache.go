package randomx

import (
	"encoding/binary"

	"go.uber.org/zap"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/blake2b"
)

// Cache geometry. The cache is the key-derived read-only seed structure every
// VM is bound to; it is required in both full-memory and cache-only mode.
const (
	cacheSize      = 1 << 21 // 2 MiB
	cacheBlockSize = 64
	cacheBlocks    = cacheSize / cacheBlockSize

	// Argon2 parameters for the key derivation filling the cache seed.
	// Lanes is fixed at 1: the derivation must not depend on the host's
	// parallelism or two machines would disagree on every hash.
	argonTime      = 1
	argonMemoryKiB = 8 * 1024
	argonLanes     = 1
)

var cacheSalt = []byte("kodama/randomx/cache/v1")

// cache is the key-derived seed structure. Read-only after initFromKey, so it
// is shared by all VMs without locking.
type cache struct {
	mem *region
}

// newCache allocates the cache with the working flags (stepping the
// large-page bit down in *flags on the first failure) and fills it
// deterministically from key. Allocation failure here is fatal to the whole
// initialization.
func newCache(key []byte, flags *Flags, logger *zap.Logger) (*cache, error) {
	mem, err := allocRegion(cacheSize, flags, "cache", logger)
	if err != nil {
		return nil, err
	}
	c := &cache{mem: mem}
	c.initFromKey(key)
	return c, nil
}

// initFromKey fills the cache from the mining key. Single-threaded on
// purpose: the Argon2 pass dominates and already saturates memory bandwidth.
func (c *cache) initFromKey(key []byte) {
	seed := argon2.IDKey(key, cacheSalt, argonTime, argonMemoryKiB, argonLanes, 64)

	h, _ := blake2b.New512(nil)
	buf := c.mem.buf
	var idx [8]byte
	prev := seed
	for i := 0; i < cacheBlocks; i++ {
		h.Reset()
		h.Write(seed)
		binary.LittleEndian.PutUint64(idx[:], uint64(i))
		h.Write(idx[:])
		h.Write(prev)
		block := buf[i*cacheBlockSize : (i+1)*cacheBlockSize]
		h.Sum(block[:0])
		prev = block
	}
}

// block returns the 64-byte cache block for index i, reduced modulo the
// block count.
func (c *cache) block(i uint64) []byte {
	off := (i % cacheBlocks) * cacheBlockSize
	return c.mem.buf[off : off+cacheBlockSize]
}

func (c *cache) release() {
	if c != nil {
		c.mem.release()
	}
}
