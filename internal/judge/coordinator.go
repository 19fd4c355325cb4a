package judge

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"github.com/wasm-oj/wark/internal/sandbox"
)

// BatchConfig bounds a judge batch: the ceilings each Spec.CheckSpec is
// validated against, and the directory input_url fetches are cached
// under.
type BatchConfig struct {
	MaxCost     uint64
	MaxMemoryMB uint32
	CacheDir    string
}

// RunBatch judges every spec against the same compiled module bytes,
// fanned out over a bounded worker pool capped at GOMAXPROCS — a
// buffered channel semaphore plus sync.WaitGroup, not a third-party
// worker pool (see SPEC_FULL.md §3's note on why Workiva/go-datastructures was
// rejected). Each spec gets its own sandbox.Run call, so no engine,
// store, or CostState is shared between concurrent runs, matching the
// isolation the core's concurrency model requires.
func RunBatch(ctx context.Context, wasm []byte, specs []Spec, cfg BatchConfig, logger *slog.Logger) Results {
	if logger == nil {
		logger = slog.Default()
	}

	results := make([]Result, len(specs))
	sem := make(chan struct{}, max(1, runtime.GOMAXPROCS(0)))
	var wg sync.WaitGroup

	for i, spec := range specs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, spec Spec) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = judgeOne(ctx, wasm, spec, cfg, logger)
		}(i, spec)
	}

	wg.Wait()
	return Results{Results: results}
}

func judgeOne(ctx context.Context, wasm []byte, spec Spec, cfg BatchConfig, logger *slog.Logger) Result {
	if err := CheckSpec(spec, cfg.MaxCost, cfg.MaxMemoryMB); err != nil {
		return Result{Success: false, Exception: &Exception{Type: ExceptionSpec, Reason: err.Error()}}
	}

	stdin, err := MakeInput(ctx, spec, cfg.CacheDir)
	if err != nil {
		return Result{Success: false, Exception: &Exception{Type: ExceptionInput, Reason: err.Error()}}
	}

	result, runErr := sandbox.Run(ctx, sandbox.RunRequest{
		Module:       wasm,
		Budget:       spec.Cost,
		MemoryCeilMB: spec.Memory,
		Stdin:        stdin,
	}, logger)
	if runErr != nil {
		return Result{
			Success:   false,
			Exception: &Exception{Type: ExceptionExecution, Reason: executionCode(runErr.Kind.String())},
		}
	}

	if err := judgeOutput(spec, result.Stdout); err != nil {
		cost, mem := result.Cost, result.MemoryMB
		return Result{
			Success:   false,
			Cost:      &cost,
			Memory:    &mem,
			Exception: &Exception{Type: ExceptionOutput, Reason: err.Error()},
		}
	}

	cost, mem := result.Cost, result.MemoryMB
	return Result{Success: true, Cost: &cost, Memory: &mem}
}
