package yescrypt

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"
)

// testParams keeps the KDF cheap enough for unit tests.
var testParams = Params{N: 64, R: 1, P: 1}

func newTestEngine(t *testing.T, threads int) *Engine {
	t.Helper()
	e := NewEngine(zaptest.NewLogger(t))
	if err := e.Init(testParams, threads); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return e
}

func TestHashBeforeInit(t *testing.T) {
	e := NewEngine(zaptest.NewLogger(t))

	if _, err := e.Hash(0, []byte("data")); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Hash error = %v, want ErrNotInitialized", err)
	}
	if _, err := e.HashAuto([]byte("data")); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("HashAuto error = %v, want ErrNotInitialized", err)
	}
	if e.NumThreads() != 0 {
		t.Errorf("NumThreads = %d before Init, want 0", e.NumThreads())
	}
}

func TestInitValidatesParams(t *testing.T) {
	tests := []struct {
		name   string
		params Params
	}{
		{name: "N not power of two", params: Params{N: 1000, R: 8, P: 1}},
		{name: "N too small", params: Params{N: 1, R: 8, P: 1}},
		{name: "zero r", params: Params{N: 4096, R: 0, P: 1}},
		{name: "zero p", params: Params{N: 4096, R: 8, P: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(zaptest.NewLogger(t))
			if err := e.Init(tt.params, 1); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestReinitIsNoOp(t *testing.T) {
	e := newTestEngine(t, 2)
	defer e.Cleanup()

	// A second Init must succeed without rebuilding: slot count and
	// parameters stay as first configured.
	if err := e.Init(Params{N: 4096, R: 8, P: 2}, 8); err != nil {
		t.Fatalf("Reinit returned error: %v", err)
	}
	if got := e.NumThreads(); got != 2 {
		t.Errorf("NumThreads = %d after reinit, want 2", got)
	}
}

func TestHashDeterminism(t *testing.T) {
	e := newTestEngine(t, 4)
	defer e.Cleanup()

	input := []byte("block header candidate")
	first, err := e.Hash(0, input)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if len(first) != 32 {
		t.Fatalf("Digest length = %d, want 32", len(first))
	}

	// Same digest from every slot, the auto dispatcher and an invalid slot
	// id (which falls back to slot 0).
	for slotID := 0; slotID < e.NumThreads(); slotID++ {
		got, err := e.Hash(slotID, input)
		if err != nil {
			t.Fatalf("Hash(%d) failed: %v", slotID, err)
		}
		if !bytes.Equal(got, first) {
			t.Errorf("Slot %d digest %x differs from %x", slotID, got, first)
		}
	}
	if got, _ := e.HashAuto(input); !bytes.Equal(got, first) {
		t.Errorf("HashAuto digest %x differs from %x", got, first)
	}
	if got, _ := e.Hash(99, input); !bytes.Equal(got, first) {
		t.Errorf("Out-of-range slot digest %x differs from %x", got, first)
	}
}

func TestConcurrentHashing(t *testing.T) {
	e := newTestEngine(t, 2)
	defer e.Cleanup()

	input := []byte("concurrent input")
	want, err := e.Hash(0, input)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	const workers = 8
	results := make([][]byte, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = e.HashAuto(input)
		}(i)
	}
	wg.Wait()

	for i, got := range results {
		if !bytes.Equal(got, want) {
			t.Errorf("Worker %d digest %x differs from %x", i, got, want)
		}
	}
}

func TestCheckDifficultyBoundary(t *testing.T) {
	e := newTestEngine(t, 1)
	defer e.Cleanup()

	// First 8 bytes encode the value 5 big-endian.
	digest := make([]byte, 32)
	digest[7] = 5

	if e.CheckDifficulty(digest, 5) {
		t.Error("Digest equal to target must not qualify")
	}
	if !e.CheckDifficulty(digest, 6) {
		t.Error("Digest below target must qualify")
	}
}

func TestBenchmark(t *testing.T) {
	e := newTestEngine(t, 1)
	defer e.Cleanup()

	rate, err := e.Benchmark(0, 4)
	if err != nil {
		t.Fatalf("Benchmark failed: %v", err)
	}
	if rate <= 0 {
		t.Errorf("Benchmark rate = %f, want > 0", rate)
	}
}

func TestCleanupIdempotent(t *testing.T) {
	e := NewEngine(zaptest.NewLogger(t))

	e.Cleanup() // before Init

	if err := e.Init(testParams, 2); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	e.Cleanup()
	e.Cleanup()

	if e.NumThreads() != 0 {
		t.Errorf("NumThreads = %d after Cleanup, want 0", e.NumThreads())
	}
	if _, err := e.Hash(0, []byte("data")); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Hash error after Cleanup = %v, want ErrNotInitialized", err)
	}

	// Cleanup re-arms Init.
	if err := e.Init(testParams, 3); err != nil {
		t.Fatalf("Init after Cleanup failed: %v", err)
	}
	if got := e.NumThreads(); got != 3 {
		t.Errorf("NumThreads = %d, want 3", got)
	}
	e.Cleanup()
}
