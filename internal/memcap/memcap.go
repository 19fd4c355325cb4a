// Package memcap wraps wazero's memory limit configuration with the
// ceiling semantics from spec §4.2: a configured megabyte ceiling,
// expressed in WASM pages (64 KiB each, so MB*16 pages), that a
// module's declared minimum memory may not exceed at compile time, and
// that clamps any declared maximum the module presents.
package memcap

import (
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/wasm-oj/wark/internal/wasmbin"
)

// PagesPerMB is the number of 64 KiB WASM pages in one megabyte.
const PagesPerMB = 16

// Ceiling is a configured memory cap, expressed both in megabytes and
// in the WASM pages the engine actually enforces against.
type Ceiling struct {
	MB    uint32
	Pages uint32
}

// NewCeiling builds a Ceiling from a megabyte limit.
func NewCeiling(mb uint32) Ceiling {
	return Ceiling{MB: mb, Pages: mb * PagesPerMB}
}

// RuntimeConfig returns a wazero.RuntimeConfig with the ceiling wired in
// as the hard page limit wazero enforces for every module instantiated
// under it.
func (c Ceiling) RuntimeConfig() wazero.RuntimeConfig {
	return wazero.NewRuntimeConfig().
		WithMemoryLimitPages(c.Pages).
		WithCloseOnContextDone(true)
}

// CheckDeclaredMemory inspects every memory type the module presents
// (imported memories are out of scope here — WARK's guest modules never
// import memory) and fails if its declared minimum exceeds the
// ceiling. This mirrors the wrapped-tunables rejection described in
// §4.2: the orchestrator surfaces this as a compile error rather than
// letting wazero either silently clamp or instantiate an oversize
// memory.
func (c Ceiling) CheckDeclaredMemory(m *wasmbin.Module) error {
	for _, mem := range m.Memory {
		if mem.Min > c.Pages {
			return fmt.Errorf("memcap: declared memory minimum %d pages exceeds ceiling of %d pages (%d MB)", mem.Min, c.Pages, c.MB)
		}
	}
	return nil
}

// ClampDeclaredMax rewrites every memory's declared maximum down to the
// ceiling when it is absent or larger than the ceiling, so the reported
// maximum a guest observes via memory.size/memory.grow bounds is never
// larger than what the host will actually allow it to grow to.
func (c Ceiling) ClampDeclaredMax(m *wasmbin.Module) {
	for i := range m.Memory {
		if !m.Memory[i].HasMax || m.Memory[i].Max > c.Pages {
			m.Memory[i].Max = c.Pages
			m.Memory[i].HasMax = true
		}
	}
}

// DeclaredMB converts an instance's observed minimum page count back to
// megabytes, rounding up, matching the orchestrator's post-run
// consistency check in §4.2.
func DeclaredMB(pages uint32) uint32 {
	return (pages + PagesPerMB - 1) / PagesPerMB
}

// VerifyPostRun is the orchestrator's end-of-run sanity check: the
// instance's observed memory minimum, converted back to megabytes,
// must never exceed the ceiling. If it does, the middleware that should
// have rejected this at compile time failed, which is a logic error
// rather than a guest-triggerable fault.
func (c Ceiling) VerifyPostRun(observedPages uint32) error {
	if DeclaredMB(observedPages) > c.MB {
		return fmt.Errorf("memcap: instance memory (%d pages, %d MB) exceeds ceiling %d MB after instantiation; memory tunables middleware failed to reject this module", observedPages, DeclaredMB(observedPages), c.MB)
	}
	return nil
}
