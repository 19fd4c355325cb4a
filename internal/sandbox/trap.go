package sandbox

import (
	"errors"
	"strings"

	"github.com/tetratelabs/wazero/sys"
	"github.com/wasm-oj/wark/internal/cost"
)

// exitCodeTooBig is the WASI errno value for E2BIG (value too large),
// the errno the spec maps to MemoryLimitExceeded when a guest exits
// with it rather than trapping.
const exitCodeTooBig = 1

// classify maps the outcome of invoking _start to a RunError, or to nil
// when the run completed normally (§4.5). points is the reading taken
// from the two cost globals after the call returns or traps.
//
// The exhausted flag is the sole oracle for distinguishing a genuine
// `unreachable` in guest code from the `unreachable` our own
// instrumentation prelude emits when the budget runs out — never the
// error message or exit code.
func classify(startErr error, points cost.Points, budget uint64, ceilingMB uint32) *RunError {
	if startErr == nil {
		return nil
	}

	msg := startErr.Error()
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "stack overflow"):
		return errRuntime("Stack overflow")
	case strings.Contains(lower, "out of bounds memory access") || strings.Contains(lower, "heap access out of bounds"):
		return errRuntime("Heap access out of bounds")
	case strings.Contains(lower, "misaligned") && strings.Contains(lower, "heap"):
		return errRuntime("Heap misaligned")
	case strings.Contains(lower, "out of bounds table access") || strings.Contains(lower, "table access out of bounds"):
		return errRuntime("Table access out of bounds")
	case strings.Contains(lower, "indirect call") && (strings.Contains(lower, "null") || strings.Contains(lower, "uninitialized")):
		return errRuntime("Indirect call to null")
	case strings.Contains(lower, "signature mismatch") || strings.Contains(lower, "bad signature") || strings.Contains(lower, "indirect call type mismatch"):
		return errRuntime("Bad signature")
	case strings.Contains(lower, "integer overflow"):
		return errRuntime("Integer overflow")
	case strings.Contains(lower, "integer divide by zero") || strings.Contains(lower, "division by zero"):
		return errRuntime("Integer division by zero")
	case strings.Contains(lower, "invalid conversion to integer") || strings.Contains(lower, "bad conversion to integer"):
		return errRuntime("Bad conversion to integer")
	case strings.Contains(lower, "unaligned atomic"):
		return errRuntime("Unaligned atomic")
	case strings.Contains(lower, "unreachable"):
		if points.IsExhausted() {
			return errSpendingLimit(budget)
		}
		return errRuntime("Unreachable code reached.")
	}

	var exitErr *sys.ExitError
	if errors.As(startErr, &exitErr) {
		switch exitErr.ExitCode() {
		case 0:
			return nil
		case exitCodeTooBig:
			return errMemoryLimit(ceilingMB)
		default:
			return errRuntime("Exited with errno %d", exitErr.ExitCode())
		}
	}

	if strings.Contains(lower, "unknown wasi version") {
		return errRuntime("Unknown WASI version")
	}

	return errRuntime("%s", msg)
}
