// Package hostdet installs the two host-side determinism overrides
// required by spec §4.3: a zeroed `clock_time_get` across every
// WASI-family namespace the platform recognizes, and a process-wide
// deterministic RNG standing in for any randomness request.
package hostdet

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// Namespaces lists every WASI-family module name whose clock_time_get
// import this package overrides.
var Namespaces = []string{
	"wasi_snapshot_preview1",
	"wasi_unstable",
	"wasi",
	"wasix_32v1",
	"wasix_64v1",
}

// errnoSuccess is the WASI success errno value, returned by every
// overridden clock_time_get call regardless of clock id or precision.
const errnoSuccess = 0

// InstantiateDeterministicWASI instantiates every namespace in
// Namespaces with a deterministic clock_time_get. For
// "wasi_snapshot_preview1" this exports the engine's full standard WASI
// function set and then re-registers clock_time_get on the same
// builder, so the override wins while every other WASI call (file
// descriptors, exit, args, environ) behaves normally. The four legacy
// namespaces have no standard-library implementation in wazero; guest
// modules compiled against them are expected to use little beyond
// clock_time_get, so those namespaces export only the override.
func InstantiateDeterministicWASI(ctx context.Context, runtime wazero.Runtime) error {
	fullBuilder := runtime.NewHostModuleBuilder("wasi_snapshot_preview1")
	wasi_snapshot_preview1.NewFunctionExporter().ExportFunctions(fullBuilder)
	fullBuilder.NewFunctionBuilder().
		WithFunc(clockTimeGet32).
		Export("clock_time_get")
	if _, err := fullBuilder.Instantiate(ctx); err != nil {
		return err
	}

	for _, ns := range []string{"wasi_unstable", "wasi", "wasix_32v1"} {
		b := runtime.NewHostModuleBuilder(ns)
		b.NewFunctionBuilder().WithFunc(clockTimeGet32).Export("clock_time_get")
		if _, err := b.Instantiate(ctx); err != nil {
			return err
		}
	}

	for _, ns := range []string{"wasix_64v1"} {
		b := runtime.NewHostModuleBuilder(ns)
		b.NewFunctionBuilder().WithFunc(clockTimeGet64).Export("clock_time_get")
		if _, err := b.Instantiate(ctx); err != nil {
			return err
		}
	}
	return nil
}

// clockTimeGet32 is the override for namespaces whose memory model
// addresses the result with a 32-bit pointer to a 64-bit timestamp
// (the WASI preview1 ABI: clock_id i32, precision i64, result_ptr i32).
// It writes zero to resultPtr and returns success, ignoring clockID and
// precision entirely.
func clockTimeGet32(ctx context.Context, mod api.Module, clockID int32, precision int64, resultPtr uint32) uint32 {
	mod.Memory().WriteUint64Le(resultPtr, 0)
	return errnoSuccess
}

// clockTimeGet64 is the wasix_64v1 variant, whose ABI widens the clock id
// and pointer arguments to 64 bits but is otherwise identical: the
// guest always observes time zero.
func clockTimeGet64(ctx context.Context, mod api.Module, clockID int64, precision int64, resultPtr uint64) uint32 {
	mod.Memory().WriteUint64Le(uint32(resultPtr), 0)
	return errnoSuccess
}
