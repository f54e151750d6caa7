// Package randomx implements the dataset-backed memory-hard hashing engine:
// context lifecycle, parallel dataset construction, the per-thread VM pool,
// and thread-safe hash dispatch.
package randomx

import (
	"os"
	"strings"

	"github.com/shizukutanaka/kodama/internal/hardware"
)

// Flags is the feature bitset negotiated at initialization. The active flags
// of a live context may be a subset of the requested flags when the host
// could not satisfy a request (large pages, full-memory dataset).
type Flags uint32

const (
	// FlagHardAES is set when the CPU exposes AES instructions.
	FlagHardAES Flags = 1 << iota
	// FlagAVX2 is set when the CPU exposes AVX2.
	FlagAVX2
	// FlagFullMem requests the fully materialized dataset (fast mode).
	FlagFullMem
	// FlagLargePages requests huge-page backing for cache, dataset and
	// VM scratchpads.
	FlagLargePages
)

// Environment overrides, read once per initialization.
const (
	// EnvLight forces cache-only mode when set to anything but "" or "0".
	EnvLight = "KODAMA_RANDOMX_LIGHT"
	// EnvFullMem disables the dataset when set to "0".
	EnvFullMem = "KODAMA_RANDOMX_FULL_MEM"
)

// Has reports whether all bits of f are set in fl.
func (fl Flags) Has(f Flags) bool { return fl&f == f }

// String lists the set flags for logging.
func (fl Flags) String() string {
	names := make([]string, 0, 4)
	if fl.Has(FlagHardAES) {
		names = append(names, "HARD_AES")
	}
	if fl.Has(FlagAVX2) {
		names = append(names, "AVX2")
	}
	if fl.Has(FlagFullMem) {
		names = append(names, "FULL_MEM")
	}
	if fl.Has(FlagLargePages) {
		names = append(names, "LARGE_PAGES")
	}
	if len(names) == 0 {
		return "NONE"
	}
	return strings.Join(names, "|")
}

// NegotiateFlags produces the best-effort feature set to request for this
// host: baseline acceleration bits from the CPU, plus full-memory mode and
// large pages on top. The two environment overrides are applied last; either
// one strips the full-memory bit. Negotiation cannot fail, the result is
// always usable.
func NegotiateFlags(caps *hardware.Capabilities) Flags {
	flags := FlagFullMem | FlagLargePages
	if caps != nil {
		if caps.HardwareAES {
			flags |= FlagHardAES
		}
		if caps.AVX2 {
			flags |= FlagAVX2
		}
	}

	light := os.Getenv(EnvLight)
	fullMem := os.Getenv(EnvFullMem)
	forceLight := light != "" && light[0] != '0'
	disableFullMem := fullMem != "" && fullMem[0] == '0'
	if forceLight || disableFullMem {
		flags &^= FlagFullMem
	}

	return flags
}
