package commands

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shizukutanaka/kodama/internal/config"
	"github.com/shizukutanaka/kodama/internal/monitoring"
	"github.com/shizukutanaka/kodama/internal/randomx"
	"github.com/shizukutanaka/kodama/internal/yescrypt"
)

var benchmarkCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "Run hashing benchmarks",
	Long:  "Initialize the hashing contexts and measure sustained hash rates",
	RunE:  runBenchmark,
}

var (
	benchDuration  time.Duration
	benchAlgorithm string
	benchKey       string
)

func init() {
	benchmarkCmd.Flags().DurationVar(&benchDuration, "duration", 10*time.Second, "Benchmark duration per algorithm")
	benchmarkCmd.Flags().StringVar(&benchAlgorithm, "algorithm", "all", "Algorithm: all, randomx, yescrypt")
	benchmarkCmd.Flags().StringVar(&benchKey, "key", "benchmark-key", "Mining key for the dataset-backed context")
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	metrics := monitoring.New()
	if cfg.Monitoring.Enabled {
		go func() {
			if err := metrics.Serve(cfg.Monitoring.ListenAddr, logger); err != nil {
				logger.Warn("Metrics server stopped", zap.Error(err))
			}
		}()
	}

	switch benchAlgorithm {
	case "all":
		if err := benchmarkRandomX(cfg, logger, metrics); err != nil {
			return err
		}
		return benchmarkYescrypt(cfg, logger)
	case "randomx":
		return benchmarkRandomX(cfg, logger, metrics)
	case "yescrypt":
		return benchmarkYescrypt(cfg, logger)
	default:
		return fmt.Errorf("unknown algorithm: %s", benchAlgorithm)
	}
}

func benchmarkRandomX(cfg *config.Config, logger *zap.Logger, metrics *monitoring.Metrics) error {
	engine := randomx.NewEngine(logger, metrics)
	if err := engine.Init([]byte(benchKey), cfg.Mining.Threads); err != nil {
		return fmt.Errorf("randomx init: %w", err)
	}
	defer engine.Cleanup()

	threads := engine.NumThreads()
	fmt.Printf("RandomX: %d VMs, flags %s, running %s...\n",
		threads, engine.ActiveFlags(), benchDuration)

	var hashes atomic.Uint64
	deadline := time.Now().Add(benchDuration)
	var wg sync.WaitGroup
	for t := 0; t < threads; t++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			binding := engine.Bind()
			header := make([]byte, 80)
			binary.LittleEndian.PutUint32(header[:4], uint32(worker))
			for nonce := uint32(0); time.Now().Before(deadline); nonce++ {
				binary.LittleEndian.PutUint32(header[76:], nonce)
				binding.Hash(header)
				hashes.Add(1)
			}
		}(t)
	}
	wg.Wait()

	rate := float64(hashes.Load()) / benchDuration.Seconds()
	fmt.Printf("RandomX: %d hashes, %.1f H/s\n", hashes.Load(), rate)
	return nil
}

func benchmarkYescrypt(cfg *config.Config, logger *zap.Logger) error {
	engine := yescrypt.NewEngine(logger)
	if err := engine.Init(cfg.Yescrypt, cfg.Mining.Threads); err != nil {
		return fmt.Errorf("yescrypt init: %w", err)
	}
	defer engine.Cleanup()

	fmt.Printf("Yescrypt: N=%d r=%d p=%d, %d slots...\n",
		cfg.Yescrypt.N, cfg.Yescrypt.R, cfg.Yescrypt.P, engine.NumThreads())

	// Sized so the run stays near the configured duration at typical rates.
	const hashesPerSlot = 200
	var total float64
	for slot := 0; slot < engine.NumThreads(); slot++ {
		rate, err := engine.Benchmark(slot, hashesPerSlot)
		if err != nil {
			return err
		}
		total += rate
	}
	fmt.Printf("Yescrypt: %.1f H/s aggregate\n", total)
	return nil
}
