// Package cost implements the static cost-metering instrumentation
// pass: rewriting a guest WASM module so that, at every basic-block
// boundary, the guest itself checks and decrements a budget held in two
// exported mutable globals, trapping unreachable when the budget runs
// out.
package cost

import (
	"fmt"
	"log/slog"

	"github.com/wasm-oj/wark/internal/wasmbin"
)

const (
	// RemainingGlobalName is the fixed export name the host reads to
	// find the remaining-points global.
	RemainingGlobalName = "compilet_cost_remaining_points"
	// ExhaustedGlobalName is the fixed export name the host reads to
	// find the exhausted-flag global.
	ExhaustedGlobalName = "compilet_cost_points_exhausted"
)

// State is the per-module-compilation CostState: the budget, the global
// indices the module-level pass assigned, and the histogram shared by
// every function-level pass over this module. A State may only be
// applied to one module; re-applying it is invariant I2 and returns an
// error rather than silently producing a second pair of globals.
type State struct {
	Budget    uint64
	Histogram *Histogram

	RemainingGlobalIdx uint32
	ExhaustedGlobalIdx uint32

	applied bool
}

// NewState creates a fresh CostState for a module about to be
// compiled with the given point budget.
func NewState(budget uint64) *State {
	return &State{Budget: budget, Histogram: NewHistogram()}
}

// FunctionCost tracks the accumulated, not-yet-flushed cost for a
// single function body during the function-level pass, plus a
// reference to the module's shared histogram.
type FunctionCost struct {
	state       *State
	accumulated int64
}

func newFunctionCost(state *State) *FunctionCost {
	return &FunctionCost{state: state}
}

// Transform runs the full module-level-then-function-level
// instrumentation pass described in §4.1: it appends the two cost
// globals and their exports, then rewrites every function body to
// insert the guarded-subtraction prelude at each basic-block boundary.
// It returns the instrumented module bytes.
func Transform(wasmBytes []byte, state *State, logger *slog.Logger) ([]byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m, err := wasmbin.Decode(wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("cost: decoding module: %w", err)
	}
	if err := applyModulePass(m, state); err != nil {
		return nil, err
	}
	for i := range m.Code {
		instrumentFunction(&m.Code[i], state, logger)
	}
	return wasmbin.Encode(m), nil
}

// applyModulePass appends the remaining-points and exhausted-flag
// globals and exports them under their fixed names, recording the
// assigned indices in state. Calling it twice on the same state fails
// hard per invariant I2.
func applyModulePass(m *wasmbin.Module, state *State) error {
	if state.applied {
		return fmt.Errorf("cost: CostState already applied to a module (invariant I2)")
	}

	remIdx := m.AppendGlobal(wasmbin.Global{
		Type: wasmbin.GlobalType{ValType: 0x7e, Mutable: true}, // i64
		Init: wasmbin.I64ConstInitExpr(int64(state.Budget)),
	})
	m.AppendExport(wasmbin.Export{
		Name: RemainingGlobalName,
		Kind: wasmbin.ExportGlobal,
		Idx:  remIdx,
	})

	exhIdx := m.AppendGlobal(wasmbin.Global{
		Type: wasmbin.GlobalType{ValType: 0x7f, Mutable: true}, // i32
		Init: wasmbin.I32ConstInitExpr(0),
	})
	m.AppendExport(wasmbin.Export{
		Name: ExhaustedGlobalName,
		Kind: wasmbin.ExportGlobal,
		Idx:  exhIdx,
	})

	state.RemainingGlobalIdx = remIdx
	state.ExhaustedGlobalIdx = exhIdx
	state.applied = true
	return nil
}

// instrumentFunction rewrites entry's instruction stream in place,
// visiting operators in source order and, at each basic-block
// terminator, flushing the accumulated cost via the guarded-subtraction
// prelude before forwarding the terminator itself.
func instrumentFunction(entry *wasmbin.CodeEntry, state *State, logger *slog.Logger) {
	fc := newFunctionCost(state)
	out := make([]wasmbin.Instr, 0, len(entry.Ops)*2)

	for _, ins := range entry.Ops {
		c, isTerminator, isPenalty := wasmbin.StaticCost(ins.Op)
		if isPenalty {
			logger.Warn("penalty instruction", "op", wasmbin.OpName(ins.Op))
		}
		fc.accumulated += c
		state.Histogram.Incr(wasmbin.OpName(ins.Op))

		if isTerminator && fc.accumulated > 0 {
			out = append(out, prelude(state.RemainingGlobalIdx, state.ExhaustedGlobalIdx, fc.accumulated)...)
			fc.accumulated = 0
		}
		out = append(out, ins)
	}
	entry.Ops = out
}

// prelude builds the guarded-subtraction instrumentation sequence from
// §4.1: if remaining < accumulated, set exhausted and trap; otherwise
// subtract accumulated from remaining. This charges for the block that
// just executed, not the one about to execute.
func prelude(remainingIdx, exhaustedIdx uint32, accumulated int64) []wasmbin.Instr {
	return []wasmbin.Instr{
		wasmbin.GlobalGetInstr(remainingIdx),
		wasmbin.I64ConstInstr(accumulated),
		wasmbin.I64LtUInstr(),
		wasmbin.IfVoidInstr(),
		wasmbin.I32ConstInstr(1),
		wasmbin.GlobalSetInstr(exhaustedIdx),
		wasmbin.UnreachableInstr(),
		wasmbin.EndInstr(),
		wasmbin.GlobalGetInstr(remainingIdx),
		wasmbin.I64ConstInstr(accumulated),
		wasmbin.I64SubInstr(),
		wasmbin.GlobalSetInstr(remainingIdx),
	}
}
