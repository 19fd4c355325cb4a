package wasmbin

// Encode serializes a Module back to a raw WASM binary, replaying
// sections in their original file order. Callers mutate m.Globals,
// m.Exports, m.Code and m.Memory in place (or via the helpers in
// append.go) before calling Encode.
func Encode(m *Module) []byte {
	w := &writer{}
	w.bytes(Magic[:])
	w.bytes(Version[:])

	for _, slot := range m.order {
		switch slot.kind {
		case "global":
			w.bytes(encodeSection(secGlobal, encodeGlobalSection(m.Globals)))
		case "export":
			w.bytes(encodeSection(secExport, encodeExportSection(m.Exports)))
		case "memory":
			w.bytes(encodeSection(secMemory, encodeLimitsSection(m.Memory)))
		case "table":
			// Tables are never mutated by this package; replay the
			// originally decoded limits as a table section with a
			// funcref elemtype, which is what every MVP-era table is.
			w.bytes(encodeSection(secTable, encodeTableSection(m.Tables)))
		case "code":
			w.bytes(encodeSection(secCode, encodeCodeSection(m.Code)))
		case "other":
			raw := m.Other[slot.idx]
			w.bytes(encodeSection(raw.ID, raw.Payload))
		}
	}
	return w.buf
}

func encodeSection(id byte, payload []byte) []byte {
	w := &writer{}
	w.byte(id)
	putU32(w, uint32(len(payload)))
	w.bytes(payload)
	return w.buf
}

func encodeGlobalSection(globals []Global) []byte {
	w := &writer{}
	putU32(w, uint32(len(globals)))
	for _, g := range globals {
		w.byte(g.Type.ValType)
		if g.Type.Mutable {
			w.byte(1)
		} else {
			w.byte(0)
		}
		w.bytes(g.Init)
	}
	return w.buf
}

func encodeExportSection(exports []Export) []byte {
	w := &writer{}
	putU32(w, uint32(len(exports)))
	for _, e := range exports {
		putU32(w, uint32(len(e.Name)))
		w.bytes([]byte(e.Name))
		w.byte(byte(e.Kind))
		putU32(w, e.Idx)
	}
	return w.buf
}

func encodeLimitsSection(limits []Limits) []byte {
	w := &writer{}
	putU32(w, uint32(len(limits)))
	for _, l := range limits {
		encodeLimits(w, l)
	}
	return w.buf
}

func encodeTableSection(limits []Limits) []byte {
	w := &writer{}
	putU32(w, uint32(len(limits)))
	for _, l := range limits {
		w.byte(0x70) // funcref
		encodeLimits(w, l)
	}
	return w.buf
}

func encodeLimits(w *writer, l Limits) {
	if l.HasMax {
		w.byte(0x01)
		putU32(w, l.Min)
		putU32(w, l.Max)
	} else {
		w.byte(0x00)
		putU32(w, l.Min)
	}
}

func encodeCodeSection(entries []CodeEntry) []byte {
	w := &writer{}
	putU32(w, uint32(len(entries)))
	for _, e := range entries {
		body := encodeFunctionBody(e)
		putU32(w, uint32(len(body)))
		w.bytes(body)
	}
	return w.buf
}

func encodeFunctionBody(e CodeEntry) []byte {
	w := &writer{}
	putU32(w, uint32(len(e.Locals)))
	for _, l := range e.Locals {
		putU32(w, l.Count)
		w.byte(l.ValType)
	}
	for _, ins := range e.Ops {
		encodeInstr(w, ins)
	}
	return w.buf
}

func encodeInstr(w *writer, ins Instr) {
	switch {
	case ins.Op >= atomicPrefixBase:
		w.byte(0xfe)
		putU32(w, uint32(ins.Op-atomicPrefixBase))
	case ins.Op >= simdPrefixBase:
		w.byte(0xfd)
		putU32(w, uint32(ins.Op-simdPrefixBase))
	case ins.Op >= miscPrefixBase:
		w.byte(0xfc)
		putU32(w, uint32(ins.Op-miscPrefixBase))
	default:
		w.byte(byte(ins.Op))
	}
	w.bytes(ins.Imm)
}

// synthInstr builds a zero-immediate instruction of the given opcode,
// used by the cost instrumentation pass below for control operators
// that carry no immediate bytes (end, global.get's caller builds the
// idx-bearing ones directly).
func synthInstr(op Opcode) Instr {
	return Instr{Op: op}
}

// GlobalGetInstr returns a global.get instruction referencing idx.
func GlobalGetInstr(idx uint32) Instr {
	w := &writer{}
	putU32(w, idx)
	return Instr{Op: OpGlobalGet, LabelIdx: idx, Imm: w.buf}
}

// GlobalSetInstr returns a global.set instruction referencing idx.
func GlobalSetInstr(idx uint32) Instr {
	w := &writer{}
	putU32(w, idx)
	return Instr{Op: OpGlobalSet, LabelIdx: idx, Imm: w.buf}
}

// I64ConstInstr returns an i64.const instruction with value v.
func I64ConstInstr(v int64) Instr {
	w := &writer{}
	putI64(w, v)
	return Instr{Op: OpI64Const, BlockType: v, Imm: w.buf}
}

// I32ConstInstr returns an i32.const instruction with value v.
func I32ConstInstr(v int32) Instr {
	w := &writer{}
	putI32(w, v)
	return Instr{Op: OpI32Const, BlockType: int64(v), Imm: w.buf}
}

// I64LtUInstr returns the unsigned 64-bit less-than comparison operator.
func I64LtUInstr() Instr { return synthInstr(Opcode(0x54)) }

// IfVoidInstr returns an `if` opening an empty (void) block type.
func IfVoidInstr() Instr {
	return Instr{Op: OpIf, BlockType: -64, Imm: []byte{0x40}}
}

// EndInstr returns an `end`.
func EndInstr() Instr { return synthInstr(OpEnd) }

// UnreachableInstr returns an `unreachable`.
func UnreachableInstr() Instr { return synthInstr(OpUnreachable) }

// I64SubInstr returns the i64 subtraction operator.
func I64SubInstr() Instr { return synthInstr(Opcode(0x7d)) }

// I64ConstInitExpr returns a constant init expression (for a global's
// Init field) that pushes v and ends.
func I64ConstInitExpr(v int64) []byte {
	w := &writer{}
	w.byte(byte(OpI64Const))
	putI64(w, v)
	w.byte(byte(OpEnd))
	return w.buf
}

// I32ConstInitExpr returns a constant init expression that pushes v and
// ends.
func I32ConstInitExpr(v int32) []byte {
	w := &writer{}
	w.byte(byte(OpI32Const))
	putI32(w, v)
	w.byte(byte(OpEnd))
	return w.buf
}
