package randomx

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

const (
	scratchpadSize    = 1 << 21 // 2 MiB per VM
	programIterations = 256
)

// vm is one hashing unit. It owns a mutable scratchpad, so a VM must never be
// used by two callers at once; the pool serializes access through per-slot
// locks. The cache and dataset it is bound to are read-only shared state.
type vm struct {
	cache   *cache
	dataset *dataset // nil in cache-only mode
	scratch *region
	itemBuf [datasetItemSize]byte
}

// newVM creates a VM bound to c and d using exactly the given flags. No
// fallback happens here: the pool loop owns the one-time global large-page
// step-down.
func newVM(flags Flags, c *cache, d *dataset) (*vm, error) {
	var mem *region
	var err error
	if flags.Has(FlagLargePages) {
		mem, err = allocHugePages(scratchpadSize)
	} else {
		mem, err = allocPlain(scratchpadSize)
	}
	if err != nil {
		return nil, err
	}
	return &vm{cache: c, dataset: d, scratch: mem}, nil
}

// datasetItem returns item i, reading the materialized table in full-memory
// mode and recomputing from the cache otherwise. Both paths produce identical
// bytes for identical indices.
func (m *vm) datasetItem(i uint64) []byte {
	if m.dataset != nil {
		return m.dataset.item(i)
	}
	computeItem(m.cache, i%datasetItemCount, m.itemBuf[:])
	return m.itemBuf[:]
}

// calculateHash runs the memory-hard mixing program for input and writes the
// 32-byte digest into output. The program reads data-dependent dataset items
// and folds scratchpad rows written earlier in the same invocation, so the
// digest depends only on (cache, dataset, input) and never on scratchpad
// contents left over from previous calls.
func (m *vm) calculateHash(input, output []byte) {
	mix := blake2b.Sum512(input)
	sp := m.scratch.buf

	for j := uint64(0); j < programIterations; j++ {
		item := m.datasetItem(binary.LittleEndian.Uint64(mix[0:8]))
		for k := range mix {
			mix[k] ^= item[k]
		}

		copy(sp[j*64:(j+1)*64], mix[:])
		if j > 0 {
			row := binary.LittleEndian.Uint64(mix[8:16]) % j
			prev := sp[row*64 : row*64+64]
			for k := range mix {
				mix[k] ^= prev[k]
			}
		}

		mix = blake2b.Sum512(mix[:])
	}

	final := sha3.Sum256(mix[:])
	copy(output, final[:])
}

func (m *vm) destroy() {
	if m != nil {
		m.scratch.release()
	}
}
