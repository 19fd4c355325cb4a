package wasmbin

// Module is a decoded WASM binary, retaining every section as raw bytes
// except the ones the cost pass needs to inspect or rewrite (globals,
// exports, code, memory). Sections this package doesn't understand are
// kept verbatim in Other and re-emitted in original order.
type Module struct {
	Globals []Global
	Exports []Export
	Code    []CodeEntry
	Memory  []Limits
	Tables  []Limits

	// Other holds every section (including type/import/function/start/
	// element/data/custom) in file order, as opaque (id, payload) pairs,
	// so re-encoding reproduces the module byte-for-byte aside from the
	// sections this package rewrites.
	Other []RawSection

	// order records where Global/Export/Code/Memory/Table sections sat
	// relative to Other sections, so Encode can reassemble the file in
	// the original section order (required: WASM section IDs must be
	// non-decreasing, custom sections aside).
	order []sectionSlot
}

type sectionSlot struct {
	id byte // section id, for owned (global/export/code/memory/table) and Other sections alike
	idx int // index into Other, or -1 if this slot is the owned kind below
	kind string
}

// RawSection is a WASM section this package does not decode further.
type RawSection struct {
	ID      byte
	Payload []byte
}

// GlobalType describes a global's value type and mutability.
type GlobalType struct {
	ValType  byte // 0x7f i32, 0x7e i64, 0x7d f32, 0x7c f64
	Mutable  bool
}

// Global is a decoded global section entry.
type Global struct {
	Type GlobalType
	Init []byte // raw init expression bytes, including trailing 0x0b (end)
}

// ExportKind identifies what an export descriptor refers to.
type ExportKind byte

const (
	ExportFunc   ExportKind = 0x00
	ExportTable  ExportKind = 0x01
	ExportMemory ExportKind = 0x02
	ExportGlobal ExportKind = 0x03
)

// Export is a decoded export section entry.
type Export struct {
	Name string
	Kind ExportKind
	Idx  uint32
}

// Limits is a memory or table limits pair, minimum and optional maximum,
// both expressed in WASM pages for memories (64 KiB each).
type Limits struct {
	Min    uint32
	Max    uint32
	HasMax bool
}

// CodeEntry is one function body: its local declarations and its
// instruction stream, including the trailing function-body `end` as the
// final operator in Ops for uniform basic-block handling.
type CodeEntry struct {
	Locals []LocalDecl
	Ops    []Instr
}

// LocalDecl is a run-length encoded group of same-typed locals.
type LocalDecl struct {
	Count   uint32
	ValType byte
}

// Instr is one decoded instruction: its opcode and its raw immediate
// bytes (already decoded into the fields below where the cost pass or
// re-encoder needs structured access; Imm carries an encoder-ready copy
// for opcodes this package passes through untouched).
type Instr struct {
	Op  Opcode
	Imm []byte // raw immediate bytes following the opcode, as encoded

	// BlockType is populated for block/loop/if (0x02/0x03/0x04), which
	// need in a decoded form for nesting depth tracking.
	BlockType int64

	// For br/br_if, LabelIdx is the branch depth.
	LabelIdx uint32

	// For br_table.
	LabelIdxs  []uint32
	DefaultIdx uint32
}
