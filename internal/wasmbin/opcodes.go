package wasmbin

// Opcode is a single-byte (or prefixed) WebAssembly instruction opcode.
// Multi-byte FC/FD-prefixed opcodes are folded into a synthetic space
// above 0xff so the cost table can still key on a single uint32.
type Opcode uint32

const (
	OpUnreachable Opcode = 0x00
	OpNop         Opcode = 0x01
	OpBlock       Opcode = 0x02
	OpLoop        Opcode = 0x03
	OpIf          Opcode = 0x04
	OpElse        Opcode = 0x05
	OpEnd         Opcode = 0x0b
	OpBr          Opcode = 0x0c
	OpBrIf        Opcode = 0x0d
	OpBrTable     Opcode = 0x0e
	OpReturn      Opcode = 0x0f
	OpCall        Opcode = 0x10
	OpCallIndirect Opcode = 0x11
	OpDrop        Opcode = 0x1a
	OpSelect      Opcode = 0x1b

	OpLocalGet  Opcode = 0x20
	OpLocalSet  Opcode = 0x21
	OpLocalTee  Opcode = 0x22
	OpGlobalGet Opcode = 0x23
	OpGlobalSet Opcode = 0x24

	OpI32Const Opcode = 0x41
	OpI64Const Opcode = 0x42
	OpF32Const Opcode = 0x43
	OpF64Const Opcode = 0x44

	OpMemoryGrow Opcode = 0x40
	OpMemorySize Opcode = 0x3f

	// 0xfc-prefixed "misc" opcodes (saturating trunc, bulk memory),
	// folded into the 0x1_0000+ range keyed as 0x1_0000 + sub-opcode.
	miscPrefixBase Opcode = 0x1_0000
	// 0xfd-prefixed SIMD opcodes, folded into the 0x2_0000+ range.
	simdPrefixBase Opcode = 0x2_0000
	// 0xfe-prefixed atomic opcodes, folded into the 0x3_0000+ range.
	atomicPrefixBase Opcode = 0x3_0000
)

// instrKind classifies an operand's encoding shape, used purely by the
// decoder/encoder to know how many bytes to read or re-emit; it carries
// no cost information itself.
type instrKind int

const (
	kindNone instrKind = iota
	kindBlockType
	kindLabelIdx
	kindBrTable
	kindFuncIdx
	kindTypeIdxTableIdx
	kindLocalIdx
	kindGlobalIdx
	kindMemArg
	kindI32
	kindI64
	kindF32
	kindF64
	kindMemoryIdx
	kindDataIdx
	kindTableIdx
	kindMisc   // 0xfc-prefixed, variable shape, cost path only cares about the sub-opcode
	kindSIMD   // 0xfd-prefixed
	kindAtomic // 0xfe-prefixed, memarg + optional extra
)

// staticCost returns the number of cost points the instruction at opcode
// op contributes to accumulated_cost, and whether op is a basic-block
// terminator that flushes accumulated_cost. Values are taken from the
// per-opcode cost table: locals and global reads are near-free, stores
// and atomics cost more, unknown operators are penalized heavily so an
// unsupported extension opcode can't be used to buy free compute.
func staticCost(op Opcode) (cost int64, isTerminator bool) {
	cost, isTerminator, _ = StaticCost(op)
	return cost, isTerminator
}

// StaticCost is the exported form of the cost table lookup, additionally
// reporting whether op fell through to the "any operator not listed"
// penalty arm so callers can emit the penalty log line only for
// genuinely unrecognized operators.
func StaticCost(op Opcode) (cost int64, isTerminator bool, isPenalty bool) {
	switch op {
	case OpLocalGet:
		return 0, false, false
	case OpLocalSet, OpLocalTee, OpGlobalGet:
		return 1, false, false
	case OpGlobalSet:
		return 2, false, false

	case OpI32Const, OpI64Const, OpF32Const, OpF64Const:
		return 1, false, false

	case OpBlock, OpIf, OpSelect:
		return 1, false, false
	case OpLoop:
		return 1, true, false
	case OpElse, OpEnd:
		return 1, true, false
	case OpBr, OpBrIf, OpBrTable:
		return 1, true, false
	case OpReturn:
		return 0, true, false
	case OpCall:
		return 4, true, false
	case OpCallIndirect:
		return 6, true, false
	case OpUnreachable, OpNop, OpDrop:
		return 0, false, false

	case OpMemoryGrow, OpMemorySize:
		return 1, false, false
	}

	// non-atomic loads/stores: 0x28-0x3e
	if op >= 0x28 && op <= 0x35 {
		return 1, false, false // loads
	}
	if op >= 0x36 && op <= 0x3e {
		return 2, false, false // stores
	}

	// numeric operators 0x45-0xc4: comparisons, arithmetic, conversions.
	if c, ok := numericOpCost(op); ok {
		return c, false, false
	}

	if op >= miscPrefixBase && op < simdPrefixBase {
		c, term, penalty := miscOpCost(op)
		return c, term, penalty
	}
	if op >= simdPrefixBase && op < atomicPrefixBase {
		c, penalty := simdOpCost(op)
		return c, false, penalty
	}
	if op >= atomicPrefixBase {
		c, term, penalty := atomicOpCost(op)
		return c, term, penalty
	}

	// Any operator not covered above: penalty arm.
	return 1000, false, true
}

// numericOpCost covers the 0x45-0xc4 single-byte numeric instruction
// space: comparisons, integer/float arithmetic, and conversions.
func numericOpCost(op Opcode) (int64, bool) {
	switch {
	// i32 eqz, comparisons (0x45-0x4f)
	case op >= 0x45 && op <= 0x4f:
		return 1, true
	// i64 eqz, comparisons (0x50-0x5a)
	case op >= 0x50 && op <= 0x5a:
		return 1, true
	// f32 comparisons (0x5b-0x60)
	case op >= 0x5b && op <= 0x60:
		return 1, true
	// f64 comparisons (0x61-0x66)
	case op >= 0x61 && op <= 0x66:
		return 1, true

	// i32 arithmetic (0x67-0x78): clz,ctz,popcnt=1; add,sub=1; mul=2; div/rem=3; bitwise/shift=1
	case op == 0x67, op == 0x68, op == 0x69: // clz, ctz, popcnt
		return 1, true
	case op == 0x6a, op == 0x6b: // add, sub
		return 1, true
	case op == 0x6c: // mul
		return 2, true
	case op == 0x6d, op == 0x6e, op == 0x6f, op == 0x70: // div_s, div_u, rem_s, rem_u
		return 3, true
	case op >= 0x71 && op <= 0x78: // and,or,xor,shl,shr_s,shr_u,rotl,rotr
		return 1, true

	// i64 arithmetic (0x79-0x8a), same shape
	case op == 0x79, op == 0x7a, op == 0x7b:
		return 1, true
	case op == 0x7c, op == 0x7d:
		return 1, true
	case op == 0x7e:
		return 2, true
	case op == 0x7f, op == 0x80, op == 0x81, op == 0x82:
		return 3, true
	case op >= 0x83 && op <= 0x8a:
		return 1, true

	// f32 arithmetic (0x8b-0x98): abs,neg,ceil,floor,trunc,nearest,sqrt=1/2; add,sub,mul=1; div=3; min,max,copysign=1
	case op == 0x8b, op == 0x8c, op == 0x8d, op == 0x8e, op == 0x8f, op == 0x90: // abs,neg,ceil,floor,trunc,nearest
		return 1, true
	case op == 0x91: // sqrt
		return 2, true
	case op == 0x92, op == 0x93, op == 0x94: // add, sub, mul
		return 1, true
	case op == 0x95: // div
		return 3, true
	case op == 0x96, op == 0x97, op == 0x98: // min, max, copysign
		return 1, true

	// f64 arithmetic (0x99-0xa6), same shape
	case op == 0x99, op == 0x9a, op == 0x9b, op == 0x9c, op == 0x9d, op == 0x9e:
		return 1, true
	case op == 0x9f:
		return 2, true
	case op == 0xa0, op == 0xa1, op == 0xa2:
		return 1, true
	case op == 0xa3:
		return 3, true
	case op == 0xa4, op == 0xa5, op == 0xa6:
		return 1, true

	// conversions, wrap, extend, trunc, reinterpret (0xa7-0xc4)
	case op >= 0xa7 && op <= 0xbb:
		return 1, true
	case op >= 0xbc && op <= 0xbf: // reinterpret
		return 1, true
	// sign extension ops (0xc0-0xc4)
	case op >= 0xc0 && op <= 0xc4:
		return 1, true
	}
	return 0, false
}

// miscOpCost handles the 0xfc-prefixed saturating-truncation and
// bulk-memory operators. None of these are terminators: the enumerated
// boundary set (§4.1.2) is loop/end/else/br/br_table/br_if/call/
// call_indirect/return, and memory.init/memory.copy/memory.fill/the
// table ops are not in it, matching original_source/src/cost.rs, which
// never lists them among the basic-block-boundary operators either.
func miscOpCost(op Opcode) (cost int64, isTerminator bool, isPenalty bool) {
	sub := op - miscPrefixBase
	switch sub {
	case 0, 1, 2, 3, 4, 5, 6, 7: // trunc_sat variants
		return 1, false, false
	case 8: // memory.init
		return 6, false, false
	case 9: // data.drop
		return 5, false, false
	case 10: // memory.copy
		return 6, false, false
	case 11: // memory.fill
		return 6, false, false
	case 12, 13, 14, 15: // table.init, elem.drop, table.copy, table.grow (table.size/table.fill fall to the penalty arm)
		return 1, false, false
	}
	return 1000, false, true
}

// simdSub1Cost is the set of 0xfd sub-opcode values cost.rs charges 1
// point: splats, element-wise abs/neg/sqrt/ceil/floor/trunc/nearest,
// any_true/all_true, bitmask, lane-wise extend/convert/trunc-sat, and
// the relaxed-simd trunc-sat variants. Every other SIMD sub-opcode
// (lane-wise add/sub/mul, v128.and/or/xor, shifts, lane-wise
// comparisons, loads/stores, ...) is unlisted and penalized, the same
// as any other unrecognized operator.
var simdSub1Cost = map[Opcode]bool{
	0x0f: true, // i8x16.splat
	0x10: true, // i16x8.splat
	0x11: true, // i32x4.splat
	0x12: true, // i64x2.splat
	0x13: true, // f32x4.splat
	0x14: true, // f64x2.splat

	0x4d: true, // v128.not
	0x53: true, // v128.any_true

	0x60: true, // i8x16.abs
	0x61: true, // i8x16.neg
	0x62: true, // i8x16.popcnt
	0x63: true, // i8x16.all_true
	0x64: true, // i8x16.bitmask

	0x67: true, // f32x4.ceil
	0x68: true, // f32x4.floor
	0x69: true, // f32x4.trunc
	0x6a: true, // f32x4.nearest

	0x74: true, // f64x2.ceil
	0x75: true, // f64x2.floor
	0x7a: true, // f64x2.trunc
	0x94: true, // f64x2.nearest

	0x7c: true, // i16x8.extadd_pairwise_i8x16_s
	0x7d: true, // i16x8.extadd_pairwise_i8x16_u
	0x7e: true, // i32x4.extadd_pairwise_i16x8_s
	0x7f: true, // i32x4.extadd_pairwise_i16x8_u

	0x80: true, // i16x8.abs
	0x81: true, // i16x8.neg
	0x83: true, // i16x8.all_true
	0x84: true, // i16x8.bitmask

	0x87: true, // i16x8.extend_low_i8x16_s
	0x88: true, // i16x8.extend_high_i8x16_s
	0x89: true, // i16x8.extend_low_i8x16_u
	0x8a: true, // i16x8.extend_high_i8x16_u

	0xa0: true, // i32x4.abs
	0xa1: true, // i32x4.neg
	0xa3: true, // i32x4.all_true
	0xa4: true, // i32x4.bitmask

	0xa7: true, // i32x4.extend_low_i16x8_s
	0xa8: true, // i32x4.extend_high_i16x8_s
	0xa9: true, // i32x4.extend_low_i16x8_u
	0xaa: true, // i32x4.extend_high_i16x8_u

	0xc0: true, // i64x2.abs
	0xc1: true, // i64x2.neg
	0xc3: true, // i64x2.all_true
	0xc4: true, // i64x2.bitmask

	0xc7: true, // i64x2.extend_low_i32x4_s
	0xc8: true, // i64x2.extend_high_i32x4_s
	0xc9: true, // i64x2.extend_low_i32x4_u
	0xca: true, // i64x2.extend_high_i32x4_u

	0xe0: true, // f32x4.abs
	0xe1: true, // f32x4.neg
	0xe3: true, // f32x4.sqrt

	0xec: true, // f64x2.abs
	0xed: true, // f64x2.neg
	0xef: true, // f64x2.sqrt

	0xf8: true, // i32x4.trunc_sat_f32x4_s
	0xf9: true, // i32x4.trunc_sat_f32x4_u
	0xfa: true, // f32x4.convert_i32x4_s
	0xfb: true, // f32x4.convert_i32x4_u
	0xfc: true, // i32x4.trunc_sat_f64x2_s_zero
	0xfd: true, // i32x4.trunc_sat_f64x2_u_zero
	0xfe: true, // f64x2.convert_low_i32x4_s
	0xff: true, // f64x2.convert_low_i32x4_u

	0x5e: true, // f32x4.demote_f64x2_zero
	0x5f: true, // f64x2.promote_low_f32x4

	0x101: true, // i32x4.relaxed_trunc_f32x4_s
	0x102: true, // i32x4.relaxed_trunc_f32x4_u
	0x103: true, // i32x4.relaxed_trunc_f64x2_s_zero
	0x104: true, // i32x4.relaxed_trunc_f64x2_u_zero
}

// simdOpCost handles the 0xfd-prefixed vector instruction space. Only
// the sub-opcodes enumerated in simdSub1Cost are charged 1; every other
// SIMD op, including lane-wise arithmetic/bitwise/shift/comparison and
// v128 loads/stores, falls to the penalty arm so an unsupported vector
// extension can't be used to buy free compute.
func simdOpCost(op Opcode) (cost int64, isPenalty bool) {
	sub := op - simdPrefixBase
	if simdSub1Cost[sub] {
		return 1, false
	}
	return 1000, true
}

// atomicOpCost handles the 0xfe-prefixed threading/atomics space. Only
// atomic loads and stores are enumerated in the cost table; read-
// modify-write atomics and notify/wait are unlisted and penalized like
// any other unrecognized operator.
func atomicOpCost(op Opcode) (cost int64, isTerminator bool, isPenalty bool) {
	sub := op - atomicPrefixBase
	switch {
	// atomic loads
	case sub >= 0x10 && sub <= 0x16:
		return 11, false, false
	// atomic stores
	case sub >= 0x17 && sub <= 0x1d:
		return 12, false, false
	}
	return 1000, false, true
}

// These constants record cost-table values, including the
// exception-handling ones (costThrow, costTry); nothing in this package
// reads them. StaticCost has no case for `throw` or `try`, so those
// opcodes fall to its 1000-point penalty arm, and the decoder does not
// read their immediates.
const (
	costReturn       int64 = 0
	costUnreachable  int64 = 0
	costNop          int64 = 0
	costDrop         int64 = 0
	costTry          int64 = 0
	costCall         int64 = 4
	costCallIndirect int64 = 6
	costDataDrop     int64 = 5
	costThrow        int64 = 100
	costPenalty      int64 = 1000
)
