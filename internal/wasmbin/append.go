package wasmbin

import "fmt"

// AppendGlobal appends a new global to m and, if m has no global section
// yet, creates one positioned immediately before the export section (the
// legal position per the WASM section-ordering rule: global(6) before
// export(7)). It returns the new global's absolute index, accounting
// for any globals the guest imports ahead of the module-local ones.
func (m *Module) AppendGlobal(g Global) uint32 {
	idx := m.GlobalIndexBase() + uint32(len(m.Globals))
	m.Globals = append(m.Globals, g)
	m.ensureSectionSlot("global")
	return idx
}

// AppendExport appends a new export descriptor to m, creating an export
// section if none exists yet.
func (m *Module) AppendExport(e Export) {
	m.Exports = append(m.Exports, e)
	m.ensureSectionSlot("export")
}

// ensureSectionSlot inserts a section-order entry for kind if m.order
// doesn't already have one, placed in the correct position relative to
// the sections already present (WASM requires known section ids appear
// in ascending order; custom sections are exempt).
func (m *Module) ensureSectionSlot(kind string) {
	for _, s := range m.order {
		if s.kind == kind {
			return
		}
	}
	id := sectionIDFor(kind)
	insertAt := len(m.order)
	for i, s := range m.order {
		if s.kind == "other" {
			if m.Other[s.idx].ID > id {
				insertAt = i
				break
			}
			continue
		}
		if sectionIDFor(s.kind) > id {
			insertAt = i
			break
		}
	}
	slot := sectionSlot{id: id, idx: -1, kind: kind}
	m.order = append(m.order, sectionSlot{})
	copy(m.order[insertAt+1:], m.order[insertAt:])
	m.order[insertAt] = slot
}

func sectionIDFor(kind string) byte {
	switch kind {
	case "global":
		return secGlobal
	case "export":
		return secExport
	case "memory":
		return secMemory
	case "table":
		return secTable
	case "code":
		return secCode
	}
	return 0xff
}

// GlobalIndexBase returns the number of globals imported from the host.
// The import section is kept opaque in m.Other (this package doesn't
// need to mutate it), so the count is recovered by walking its raw
// payload rather than assumed to be zero — callers that need the
// absolute global index space (import count + m.Globals) should add
// this offset.
func (m *Module) GlobalIndexBase() uint32 {
	for _, s := range m.Other {
		if s.ID != secImport {
			continue
		}
		n, err := countImportedGlobals(s.Payload)
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

// importKindGlobal is the import descriptor tag (WASM §5.5.10) for a
// global import; func/table/memory use 0x00/0x01/0x02 respectively.
const importKindGlobal = 0x03

// countImportedGlobals walks an import section's raw payload, skipping
// every entry's module/field names and kind-specific descriptor, and
// counts how many are global imports.
func countImportedGlobals(payload []byte) (uint32, error) {
	r := newReader(payload)
	count, err := r.u32()
	if err != nil {
		return 0, err
	}
	var globals uint32
	for i := uint32(0); i < count; i++ {
		if err := skipImportName(r); err != nil { // module
			return 0, err
		}
		if err := skipImportName(r); err != nil { // field
			return 0, err
		}
		kind, err := r.byte()
		if err != nil {
			return 0, err
		}
		switch kind {
		case 0x00: // func: typeidx
			if _, err := r.u32(); err != nil {
				return 0, err
			}
		case 0x01: // table: elemtype, limits
			if _, err := r.byte(); err != nil {
				return 0, err
			}
			if _, err := readLimits(r); err != nil {
				return 0, err
			}
		case 0x02: // memory: limits
			if _, err := readLimits(r); err != nil {
				return 0, err
			}
		case importKindGlobal: // valtype, mutability
			if _, err := r.byte(); err != nil {
				return 0, err
			}
			if _, err := r.byte(); err != nil {
				return 0, err
			}
			globals++
		default:
			return 0, fmt.Errorf("wasmbin: unknown import kind %d", kind)
		}
	}
	return globals, nil
}

func skipImportName(r *reader) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	_, err = r.bytes(int(n))
	return err
}
