package wasmbin

// OpName returns a printable mnemonic for op, used as the histogram key
// (the spec takes the token up to the first whitespace; these names
// never contain whitespace, so the full name is the key). Only the
// opcodes listed in opcodeNames get their own name; every other opcode
// maps to a shared fallback key ("unknown", or "misc.unknown",
// "simd.unknown", "atomic.unknown" for prefixed opcodes), so the
// histogram counts those operators together under that key.
func OpName(op Opcode) string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	switch {
	case op >= atomicPrefixBase:
		return "atomic.unknown"
	case op >= simdPrefixBase:
		return "simd.unknown"
	case op >= miscPrefixBase:
		return "misc.unknown"
	}
	return "unknown"
}

var opcodeNames = map[Opcode]string{
	OpUnreachable:  "unreachable",
	OpNop:          "nop",
	OpBlock:        "block",
	OpLoop:         "loop",
	OpIf:           "if",
	OpElse:         "else",
	OpEnd:          "end",
	OpBr:           "br",
	OpBrIf:         "br_if",
	OpBrTable:      "br_table",
	OpReturn:       "return",
	OpCall:         "call",
	OpCallIndirect: "call_indirect",
	OpDrop:         "drop",
	OpSelect:       "select",
	OpLocalGet:     "local.get",
	OpLocalSet:     "local.set",
	OpLocalTee:     "local.tee",
	OpGlobalGet:    "global.get",
	OpGlobalSet:    "global.set",
	OpI32Const:     "i32.const",
	OpI64Const:     "i64.const",
	OpF32Const:     "f32.const",
	OpF64Const:     "f64.const",
	OpMemoryGrow:   "memory.grow",
	OpMemorySize:   "memory.size",
	Opcode(0x6a):   "i32.add",
	Opcode(0x6b):   "i32.sub",
	Opcode(0x6c):   "i32.mul",
	Opcode(0x7c):   "i64.add",
	Opcode(0x7d):   "i64.sub",
	Opcode(0x7e):   "i64.mul",
	Opcode(0x54):   "i64.lt_u",
}
