package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/Nwagbara-Group-LLC/LoggingEngine/config"
	"github.com/Nwagbara-Group-LLC/LoggingEngine/logger"
	"github.com/Nwagbara-Group-LLC/LoggingEngine/record"
)

func newBenchmarkCmd() *cobra.Command {
	var (
		producers int
		duration  time.Duration
		rateLimit float64
		useNull   bool
	)
	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Drive synthetic load through the pipeline and report throughput",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if useNull {
				// Benchmarks default to the null device so terminal IO does
				// not dominate the measurement.
				cfg.Outputs = []config.OutputConfig{{Type: "file", Path: os.DevNull}}
			}
			return runBenchmark(cfg, producers, duration, rateLimit)
		},
	}
	cmd.Flags().IntVar(&producers, "producers", 8, "concurrent producer goroutines")
	cmd.Flags().DurationVar(&duration, "duration", 10*time.Second, "benchmark duration")
	cmd.Flags().Float64Var(&rateLimit, "rate", 0, "records per second per producer, 0 = unlimited")
	cmd.Flags().BoolVar(&useNull, "null-output", true, "redirect output to the null device")
	return cmd
}

func runBenchmark(cfg config.Config, producers int, duration time.Duration, rateLimit float64) error {
	l, err := logger.New(cfg)
	if err != nil {
		return err
	}
	if err := l.Start(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	var submitted, refused atomic.Uint64
	var wg sync.WaitGroup
	start := time.Now()
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			var limiter *rate.Limiter
			if rateLimit > 0 {
				burst := int(rateLimit)
				if burst < 1 {
					burst = 1
				}
				limiter = rate.NewLimiter(rate.Limit(rateLimit), burst)
			}
			var i int64
			for ctx.Err() == nil {
				if limiter != nil {
					if err := limiter.Wait(ctx); err != nil {
						return
					}
				}
				err := l.Info("benchmark record",
					record.Int64("producer", int64(id)),
					record.Int64("iteration", i),
				)
				i++
				submitted.Add(1)
				if err != nil {
					refused.Add(1)
				}
			}
		}(p)
	}
	wg.Wait()
	elapsed := time.Since(start)

	if err := l.Flush(); err != nil {
		return err
	}
	snap := l.Stats()
	if err := l.Shutdown(context.Background()); err != nil {
		return err
	}

	fmt.Printf("duration:            %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("producers:           %d\n", producers)
	fmt.Printf("submitted:           %d (%.0f/sec)\n", submitted.Load(), float64(submitted.Load())/elapsed.Seconds())
	fmt.Printf("logged:              %d\n", snap.RecordsLogged)
	fmt.Printf("dropped:             %d\n", snap.RecordsDropped)
	fmt.Printf("batches:             %d (avg %.1f records)\n", snap.BatchesProcessed, snap.AvgBatchSize)
	fmt.Printf("submit latency p50:  %dns\n", snap.LatencyP50Nanos)
	fmt.Printf("submit latency p99:  %dns\n", snap.LatencyP99Nanos)
	fmt.Printf("submit latency max:  %dns\n", snap.LatencyMaxNanos)
	return nil
}
