package wasmbin

import "fmt"

const (
	secCustom   = 0
	secType     = 1
	secImport   = 2
	secFunction = 3
	secTable    = 4
	secMemory   = 5
	secGlobal   = 6
	secExport   = 7
	secStart    = 8
	secElement  = 9
	secCode     = 10
	secData     = 11
	secDataCnt  = 12
)

// Decode parses a raw WASM binary into a Module. Sections the cost pass
// doesn't need to mutate (type, import, function, start, element, data,
// custom) are kept as opaque RawSections and replayed verbatim by Encode.
func Decode(buf []byte) (*Module, error) {
	r := newReader(buf)
	magic, err := r.bytes(4)
	if err != nil {
		return nil, fmt.Errorf("wasmbin: reading magic: %w", err)
	}
	for i := range magic {
		if magic[i] != Magic[i] {
			return nil, fmt.Errorf("wasmbin: not a WASM binary (bad magic)")
		}
	}
	ver, err := r.bytes(4)
	if err != nil {
		return nil, fmt.Errorf("wasmbin: reading version: %w", err)
	}
	for i := range ver {
		if ver[i] != Version[i] {
			return nil, fmt.Errorf("wasmbin: unsupported WASM version")
		}
	}

	m := &Module{}
	for !r.eof() {
		id, err := r.byte()
		if err != nil {
			return nil, fmt.Errorf("wasmbin: reading section id: %w", err)
		}
		size, err := r.u32()
		if err != nil {
			return nil, fmt.Errorf("wasmbin: reading section size: %w", err)
		}
		payload, err := r.bytes(int(size))
		if err != nil {
			return nil, fmt.Errorf("wasmbin: reading section %d payload: %w", id, err)
		}

		switch id {
		case secGlobal:
			globals, err := decodeGlobalSection(payload)
			if err != nil {
				return nil, err
			}
			m.Globals = globals
			m.order = append(m.order, sectionSlot{id: secGlobal, idx: -1, kind: "global"})
		case secExport:
			exports, err := decodeExportSection(payload)
			if err != nil {
				return nil, err
			}
			m.Exports = exports
			m.order = append(m.order, sectionSlot{id: secExport, idx: -1, kind: "export"})
		case secMemory:
			limits, err := decodeLimitsSection(payload)
			if err != nil {
				return nil, err
			}
			m.Memory = limits
			m.order = append(m.order, sectionSlot{id: secMemory, idx: -1, kind: "memory"})
		case secTable:
			limits, err := decodeTableSection(payload)
			if err != nil {
				return nil, err
			}
			m.Tables = limits
			m.order = append(m.order, sectionSlot{id: secTable, idx: -1, kind: "table"})
		case secCode:
			entries, err := decodeCodeSection(payload)
			if err != nil {
				return nil, err
			}
			m.Code = entries
			m.order = append(m.order, sectionSlot{id: secCode, idx: -1, kind: "code"})
		default:
			idx := len(m.Other)
			m.Other = append(m.Other, RawSection{ID: id, Payload: payload})
			m.order = append(m.order, sectionSlot{id: id, idx: idx, kind: "other"})
		}
	}
	return m, nil
}

func decodeGlobalSection(payload []byte) ([]Global, error) {
	r := newReader(payload)
	count, err := r.u32()
	if err != nil {
		return nil, err
	}
	globals := make([]Global, 0, count)
	for i := uint32(0); i < count; i++ {
		valType, err := r.byte()
		if err != nil {
			return nil, err
		}
		mutByte, err := r.byte()
		if err != nil {
			return nil, err
		}
		init, err := readInitExpr(r)
		if err != nil {
			return nil, err
		}
		globals = append(globals, Global{
			Type: GlobalType{ValType: valType, Mutable: mutByte == 1},
			Init: init,
		})
	}
	return globals, nil
}

// readInitExpr reads a constant init expression up through its
// terminating `end` (0x0b), returning the raw bytes including end.
func readInitExpr(r *reader) ([]byte, error) {
	start := r.pos
	for {
		op, err := r.byte()
		if err != nil {
			return nil, err
		}
		if op == byte(OpEnd) {
			return r.buf[start:r.pos], nil
		}
		// Const instructions and global.get are the only legal init
		// expression operators; skip their immediate appropriately.
		switch Opcode(op) {
		case OpI32Const:
			if _, err := r.i32(); err != nil {
				return nil, err
			}
		case OpI64Const:
			if _, err := r.i64(); err != nil {
				return nil, err
			}
		case OpF32Const:
			if _, err := r.f32(); err != nil {
				return nil, err
			}
		case OpF64Const:
			if _, err := r.f64(); err != nil {
				return nil, err
			}
		case OpGlobalGet:
			if _, err := r.u32(); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("wasmbin: unsupported init expr operator 0x%x", op)
		}
	}
}

func decodeExportSection(payload []byte) ([]Export, error) {
	r := newReader(payload)
	count, err := r.u32()
	if err != nil {
		return nil, err
	}
	exports := make([]Export, 0, count)
	for i := uint32(0); i < count; i++ {
		nameLen, err := r.u32()
		if err != nil {
			return nil, err
		}
		nameBytes, err := r.bytes(int(nameLen))
		if err != nil {
			return nil, err
		}
		kind, err := r.byte()
		if err != nil {
			return nil, err
		}
		idx, err := r.u32()
		if err != nil {
			return nil, err
		}
		exports = append(exports, Export{
			Name: string(nameBytes),
			Kind: ExportKind(kind),
			Idx:  idx,
		})
	}
	return exports, nil
}

func decodeLimitsSection(payload []byte) ([]Limits, error) {
	r := newReader(payload)
	count, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]Limits, 0, count)
	for i := uint32(0); i < count; i++ {
		l, err := readLimits(r)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func decodeTableSection(payload []byte) ([]Limits, error) {
	r := newReader(payload)
	count, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]Limits, 0, count)
	for i := uint32(0); i < count; i++ {
		// elemtype byte, then limits
		if _, err := r.byte(); err != nil {
			return nil, err
		}
		l, err := readLimits(r)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func readLimits(r *reader) (Limits, error) {
	flags, err := r.byte()
	if err != nil {
		return Limits{}, err
	}
	min, err := r.u32()
	if err != nil {
		return Limits{}, err
	}
	l := Limits{Min: min}
	if flags&0x01 != 0 {
		max, err := r.u32()
		if err != nil {
			return Limits{}, err
		}
		l.Max = max
		l.HasMax = true
	}
	return l, nil
}

func decodeCodeSection(payload []byte) ([]CodeEntry, error) {
	r := newReader(payload)
	count, err := r.u32()
	if err != nil {
		return nil, err
	}
	entries := make([]CodeEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		bodySize, err := r.u32()
		if err != nil {
			return nil, err
		}
		bodyBytes, err := r.bytes(int(bodySize))
		if err != nil {
			return nil, err
		}
		entry, err := decodeFunctionBody(bodyBytes)
		if err != nil {
			return nil, fmt.Errorf("wasmbin: function %d: %w", i, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func decodeFunctionBody(body []byte) (CodeEntry, error) {
	r := newReader(body)
	localGroups, err := r.u32()
	if err != nil {
		return CodeEntry{}, err
	}
	locals := make([]LocalDecl, 0, localGroups)
	for i := uint32(0); i < localGroups; i++ {
		count, err := r.u32()
		if err != nil {
			return CodeEntry{}, err
		}
		vt, err := r.byte()
		if err != nil {
			return CodeEntry{}, err
		}
		locals = append(locals, LocalDecl{Count: count, ValType: vt})
	}

	ops, err := decodeInstrs(r)
	if err != nil {
		return CodeEntry{}, err
	}
	return CodeEntry{Locals: locals, Ops: ops}, nil
}

// decodeInstrs decodes instructions until the reader is exhausted,
// which for a function body means through its final top-level `end`.
func decodeInstrs(r *reader) ([]Instr, error) {
	var ops []Instr
	for !r.eof() {
		start := r.pos
		opByte, err := r.byte()
		if err != nil {
			return nil, err
		}
		op := Opcode(opByte)
		instr := Instr{Op: op}

		switch op {
		case OpBlock, OpLoop, OpIf:
			bt, err := r.i32() // blocktype: valtype or signed s33 type index, s32 here is close enough for our needs
			if err != nil {
				return nil, err
			}
			instr.BlockType = int64(bt)
		case OpBr, OpBrIf:
			idx, err := r.u32()
			if err != nil {
				return nil, err
			}
			instr.LabelIdx = idx
		case OpBrTable:
			n, err := r.u32()
			if err != nil {
				return nil, err
			}
			idxs := make([]uint32, 0, n)
			for j := uint32(0); j < n; j++ {
				v, err := r.u32()
				if err != nil {
					return nil, err
				}
				idxs = append(idxs, v)
			}
			def, err := r.u32()
			if err != nil {
				return nil, err
			}
			instr.LabelIdxs = idxs
			instr.DefaultIdx = def
		case OpCall:
			idx, err := r.u32()
			if err != nil {
				return nil, err
			}
			instr.LabelIdx = idx
		case OpCallIndirect:
			if _, err := r.u32(); err != nil { // type index
				return nil, err
			}
			if _, err := r.byte(); err != nil { // table index (reserved byte in MVP)
				return nil, err
			}
		case OpLocalGet, OpLocalSet, OpLocalTee, OpGlobalGet, OpGlobalSet:
			idx, err := r.u32()
			if err != nil {
				return nil, err
			}
			instr.LabelIdx = idx
		case OpI32Const:
			v, err := r.i32()
			if err != nil {
				return nil, err
			}
			instr.BlockType = int64(v)
		case OpI64Const:
			v, err := r.i64()
			if err != nil {
				return nil, err
			}
			instr.BlockType = v
		case OpF32Const:
			if _, err := r.f32(); err != nil {
				return nil, err
			}
		case OpF64Const:
			if _, err := r.f64(); err != nil {
				return nil, err
			}
		case OpMemoryGrow, OpMemorySize:
			if _, err := r.byte(); err != nil { // reserved
				return nil, err
			}
		case OpEnd, OpElse, OpUnreachable, OpNop, OpReturn, OpDrop, OpSelect:
			// no immediate
		case 0xfc:
			sub, err := r.u32()
			if err != nil {
				return nil, err
			}
			instr.Op = miscPrefixBase + Opcode(sub)
			if err := skipMiscImmediate(r, uint64(sub)); err != nil {
				return nil, err
			}
		case 0xfd:
			sub, err := r.u32()
			if err != nil {
				return nil, err
			}
			instr.Op = simdPrefixBase + Opcode(sub)
			if err := skipSIMDImmediate(r, uint64(sub)); err != nil {
				return nil, err
			}
		case 0xfe:
			sub, err := r.u32()
			if err != nil {
				return nil, err
			}
			instr.Op = atomicPrefixBase + Opcode(sub)
			// memarg (align, offset) for most atomic ops
			if _, err := r.u32(); err != nil {
				return nil, err
			}
			if _, err := r.u32(); err != nil {
				return nil, err
			}
		default:
			// loads/stores carry a memarg (align, offset)
			if op >= 0x28 && op <= 0x3e {
				if _, err := r.u32(); err != nil {
					return nil, err
				}
				if _, err := r.u32(); err != nil {
					return nil, err
				}
			}
			// numeric comparison/arithmetic/conversion ops (0x45-0xc4)
			// and sign-extension ops carry no immediate.
		}
		instr.Imm = append([]byte(nil), r.buf[start+1:r.pos]...)
		ops = append(ops, instr)
	}
	return ops, nil
}

// skipMiscImmediate consumes the immediate bytes for 0xfc-prefixed
// operators this package doesn't otherwise need structured access to.
func skipMiscImmediate(r *reader, sub uint64) error {
	switch sub {
	case 8: // memory.init: dataidx, memidx(reserved)
		if _, err := r.u32(); err != nil {
			return err
		}
		if _, err := r.byte(); err != nil {
			return err
		}
	case 9: // data.drop: dataidx
		if _, err := r.u32(); err != nil {
			return err
		}
	case 10: // memory.copy: memidx, memidx (both reserved)
		if _, err := r.byte(); err != nil {
			return err
		}
		if _, err := r.byte(); err != nil {
			return err
		}
	case 11: // memory.fill: memidx (reserved)
		if _, err := r.byte(); err != nil {
			return err
		}
	case 12, 14: // table.init / table.copy: two indices
		if _, err := r.u32(); err != nil {
			return err
		}
		if _, err := r.u32(); err != nil {
			return err
		}
	case 13: // elem.drop
		if _, err := r.u32(); err != nil {
			return err
		}
	case 15, 16, 17: // table.grow/size/fill share a single tableidx operand
		if _, err := r.u32(); err != nil {
			return err
		}
	}
	return nil
}

// skipSIMDImmediate consumes the immediate for 0xfd-prefixed vector
// operators: v128 loads/stores carry a memarg, lane ops an extra lane
// index byte, const and shuffle carry 16 raw bytes. All others carry none.
func skipSIMDImmediate(r *reader, sub uint64) error {
	switch {
	case sub <= 11: // v128 load/store variants: memarg
		if _, err := r.u32(); err != nil {
			return err
		}
		if _, err := r.u32(); err != nil {
			return err
		}
	case sub == 12 || sub == 13: // v128.const / i8x16.shuffle: 16 bytes
		if _, err := r.bytes(16); err != nil {
			return err
		}
	case sub >= 21 && sub <= 34: // extract_lane / replace_lane: lane index byte
		if _, err := r.byte(); err != nil {
			return err
		}
	case sub >= 84 && sub <= 93: // load/store_lane (84-91: memarg + lane byte), load32/64_zero: memarg
		if _, err := r.u32(); err != nil {
			return err
		}
		if _, err := r.u32(); err != nil {
			return err
		}
		if sub <= 91 {
			if _, err := r.byte(); err != nil {
				return err
			}
		}
	}
	return nil
}
