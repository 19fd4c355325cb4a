package sandbox

import (
	"context"
	"log/slog"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/wasm-oj/wark/internal/cost"
	"github.com/wasm-oj/wark/internal/hostdet"
	"github.com/wasm-oj/wark/internal/memcap"
	"github.com/wasm-oj/wark/internal/wasmbin"
)

// Run drives a single guest execution end to end: compile with the
// cost middleware, enforce the memory ceiling, instantiate with
// deterministic host imports, feed stdin, invoke _start, classify the
// outcome, and drain the captured streams. It never returns a partial
// RunResult alongside a non-nil error.
func Run(ctx context.Context, req RunRequest, logger *slog.Logger) (RunResult, *RunError) {
	if logger == nil {
		logger = slog.Default()
	}

	// Step 1: cost middleware + memory tunables + engine/store.
	ceiling := memcap.NewCeiling(req.MemoryCeilMB)
	state := cost.NewState(req.Budget)

	instrumented, err := cost.Transform(req.Module, state, logger)
	if err != nil {
		return RunResult{}, errCompile("applying cost middleware: %s", err)
	}

	m, err := wasmbin.Decode(instrumented)
	if err != nil {
		return RunResult{}, errCompile("decoding instrumented module: %s", err)
	}
	if err := ceiling.CheckDeclaredMemory(m); err != nil {
		return RunResult{}, errCompile("%s", err)
	}
	ceiling.ClampDeclaredMax(m)
	declaredPages := declaredMemoryPages(m)
	instrumented = wasmbin.Encode(m)

	runtime := wazero.NewRuntimeWithConfig(ctx, ceiling.RuntimeConfig())
	defer runtime.Close(ctx)

	// Step 4 (overlaid before instantiate, since wazero resolves
	// imports against already-instantiated host modules): deterministic
	// clock_time_get across every WASI-family namespace.
	if err := hostdet.InstantiateDeterministicWASI(ctx, runtime); err != nil {
		return RunResult{}, errCompile("installing deterministic WASI imports: %s", err)
	}

	// Step 2: compile.
	compiled, err := runtime.CompileModule(ctx, instrumented)
	if err != nil {
		return RunResult{}, errCompile("%s", err)
	}

	// Step 3: three byte pipes bound to a WASI-like environment with
	// process name "app".
	p := newPipes(req.Stdin)

	modCfg := wazero.NewModuleConfig().
		WithName("app").
		WithArgs("app").
		WithStdin(p.stdin).
		WithStdout(p.stdout).
		WithStderr(p.stderr).
		WithRandSource(hostdet.DeterministicRandSource)

	// Step 5: instantiate.
	instance, err := runtime.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		return RunResult{}, classifyInstantiateError(err, req.MemoryCeilMB)
	}
	defer instance.Close(ctx)

	// Step 7 was folded into newPipes above (stdin is filled before
	// instantiation, since wazero's ModuleConfig.WithStdin takes the
	// reader up front rather than allowing a post-instantiate write);
	// a write failure there is structurally impossible for an in-memory
	// buffer, so no IOError path is reachable at this step for this
	// pipe implementation.

	// Step 8: resolve and invoke _start.
	start := instance.ExportedFunction("_start")
	if start == nil {
		return RunResult{}, errCompile("module does not export _start")
	}
	_, startErr := start.Call(ctx)

	// Step 9: classify.
	points := readCostPoints(instance)
	if runErr := classify(startErr, points, req.Budget, req.MemoryCeilMB); runErr != nil {
		return RunResult{}, runErr
	}

	// Step 9 (Ok branch): Exhausted here with no error is a logic-error
	// state — the instrumentation invariant says exhausted is only ever
	// observed alongside the unreachable trap it causes.
	if points.IsExhausted() {
		return RunResult{}, errRuntime("logic error: exhausted flag set without an unreachable trap")
	}

	consumed := req.Budget - points.Value()

	// Step 10: declared MB, post-run ceiling sanity check.
	if err := ceiling.VerifyPostRun(declaredPages); err != nil {
		return RunResult{}, errRuntime("%s", err)
	}
	declaredMB := memcap.DeclaredMB(declaredPages)

	return RunResult{
		Cost:      consumed,
		MemoryMB:  declaredMB,
		Stdout:    p.stdout.Bytes(),
		Stderr:    p.stderr.Bytes(),
		Histogram: state.Histogram.Snapshot(),
	}, nil
}

// classifyInstantiateError maps an instantiation-time failure. A
// declared-memory rejection is already folded into CompileError before
// this point (§4.2, §7: "folded into CompileError to preserve
// truthfulness about the phase"); any other instantiation failure is
// likewise a CompileError since the module never reached a running
// state.
func classifyInstantiateError(err error, ceilingMB uint32) *RunError {
	return errCompile("instantiation failed: %s", err)
}

// readCostPoints reads the two cost globals back from a finished
// instance by their fixed export names.
func readCostPoints(instance api.Module) cost.Points {
	remaining := instance.ExportedGlobal(cost.RemainingGlobalName)
	exhausted := instance.ExportedGlobal(cost.ExhaustedGlobalName)
	if remaining == nil || exhausted == nil {
		return cost.Exhausted()
	}
	return cost.ReadPoints(remaining.Get(), int32(exhausted.Get()))
}

// declaredMemoryPages returns the module's declared minimum memory size
// in pages (§4.2), used to compute the declared-MB figure reported in
// the result. It reads the memory section decoded before instantiation
// rather than the instance's live size, which only grows from here and
// would overstate the declared figure once the guest calls memory.grow.
func declaredMemoryPages(m *wasmbin.Module) uint32 {
	if len(m.Memory) == 0 {
		return 0
	}
	return m.Memory[0].Min
}
