package opcode

// ImmKind describes the immediates an instruction takes in text form.
type ImmKind int

const (
	ImmNone   ImmKind = iota
	ImmLocal          // local index or $name
	ImmGlobal         // global index or $name
	ImmFunc           // function index or $name
	ImmLabel          // branch depth or $label
	ImmLabels         // br_table label list
	ImmI32
	ImmI64
	ImmF32
	ImmF64
	ImmMemIdx // optional memory index, always 0
)

type Info struct {
	Opcode byte
	Imm    ImmKind
}

// Lookup returns a plain instruction. Structured control (block, loop, if)
// and memory accesses are looked up separately.
func Lookup(name string) (Info, bool) {
	info, ok := table[name]
	return info, ok
}

type MemoryOp struct {
	Opcode       byte
	NaturalAlign uint32 // log2 bytes
}

func LookupMemory(name string) (MemoryOp, bool) {
	op, ok := memoryOps[name]
	return op, ok
}

// LookupSaturating returns the 0xFC sub-opcode of a saturating truncation.
func LookupSaturating(name string) (uint32, bool) {
	op, ok := saturatingOps[name]
	return op, ok
}

// Unsupported reports instructions that are recognized but not accepted in
// plugin code, so the parser can say so instead of "unknown instruction".
func Unsupported(name string) bool {
	if unsupported[name] {
		return true
	}
	for _, p := range []string{"table.", "ref.", "v128.", "i8x16.", "i16x8.", "i32x4.", "i64x2.", "f32x4.", "f64x2.", "memory.atomic", "elem."} {
		if len(name) > len(p) && name[:len(p)] == p {
			return true
		}
	}
	return false
}

var unsupported = map[string]bool{
	"call_indirect":        true,
	"return_call":          true,
	"return_call_indirect": true,
	"memory.copy":          true,
	"memory.fill":          true,
	"memory.init":          true,
	"data.drop":            true,
	"try":                  true,
	"throw":                true,
}

var table = map[string]Info{
	// Control
	"unreachable": {0x00, ImmNone},
	"nop":         {0x01, ImmNone},
	"return":      {0x0F, ImmNone},

	// Variables
	"local.get":  {0x20, ImmLocal},
	"local.set":  {0x21, ImmLocal},
	"local.tee":  {0x22, ImmLocal},
	"global.get": {0x23, ImmGlobal},
	"global.set": {0x24, ImmGlobal},

	// Constants
	"i32.const": {0x41, ImmI32},
	"i64.const": {0x42, ImmI64},
	"f32.const": {0x43, ImmF32},
	"f64.const": {0x44, ImmF64},

	// i32 comparison
	"i32.eqz":  {0x45, ImmNone},
	"i32.eq":   {0x46, ImmNone},
	"i32.ne":   {0x47, ImmNone},
	"i32.lt_s": {0x48, ImmNone},
	"i32.lt_u": {0x49, ImmNone},
	"i32.gt_s": {0x4A, ImmNone},
	"i32.gt_u": {0x4B, ImmNone},
	"i32.le_s": {0x4C, ImmNone},
	"i32.le_u": {0x4D, ImmNone},
	"i32.ge_s": {0x4E, ImmNone},
	"i32.ge_u": {0x4F, ImmNone},

	// i64 comparison
	"i64.eqz":  {0x50, ImmNone},
	"i64.eq":   {0x51, ImmNone},
	"i64.ne":   {0x52, ImmNone},
	"i64.lt_s": {0x53, ImmNone},
	"i64.lt_u": {0x54, ImmNone},
	"i64.gt_s": {0x55, ImmNone},
	"i64.gt_u": {0x56, ImmNone},
	"i64.le_s": {0x57, ImmNone},
	"i64.le_u": {0x58, ImmNone},
	"i64.ge_s": {0x59, ImmNone},
	"i64.ge_u": {0x5A, ImmNone},

	// f32 comparison
	"f32.eq": {0x5B, ImmNone},
	"f32.ne": {0x5C, ImmNone},
	"f32.lt": {0x5D, ImmNone},
	"f32.gt": {0x5E, ImmNone},
	"f32.le": {0x5F, ImmNone},
	"f32.ge": {0x60, ImmNone},

	// f64 comparison
	"f64.eq": {0x61, ImmNone},
	"f64.ne": {0x62, ImmNone},
	"f64.lt": {0x63, ImmNone},
	"f64.gt": {0x64, ImmNone},
	"f64.le": {0x65, ImmNone},
	"f64.ge": {0x66, ImmNone},

	// i32 unary
	"i32.clz":    {0x67, ImmNone},
	"i32.ctz":    {0x68, ImmNone},
	"i32.popcnt": {0x69, ImmNone},

	// i32 binary
	"i32.add":   {0x6A, ImmNone},
	"i32.sub":   {0x6B, ImmNone},
	"i32.mul":   {0x6C, ImmNone},
	"i32.div_s": {0x6D, ImmNone},
	"i32.div_u": {0x6E, ImmNone},
	"i32.rem_s": {0x6F, ImmNone},
	"i32.rem_u": {0x70, ImmNone},
	"i32.and":   {0x71, ImmNone},
	"i32.or":    {0x72, ImmNone},
	"i32.xor":   {0x73, ImmNone},
	"i32.shl":   {0x74, ImmNone},
	"i32.shr_s": {0x75, ImmNone},
	"i32.shr_u": {0x76, ImmNone},
	"i32.rotl":  {0x77, ImmNone},
	"i32.rotr":  {0x78, ImmNone},

	// i64 unary
	"i64.clz":    {0x79, ImmNone},
	"i64.ctz":    {0x7A, ImmNone},
	"i64.popcnt": {0x7B, ImmNone},

	// i64 binary
	"i64.add":   {0x7C, ImmNone},
	"i64.sub":   {0x7D, ImmNone},
	"i64.mul":   {0x7E, ImmNone},
	"i64.div_s": {0x7F, ImmNone},
	"i64.div_u": {0x80, ImmNone},
	"i64.rem_s": {0x81, ImmNone},
	"i64.rem_u": {0x82, ImmNone},
	"i64.and":   {0x83, ImmNone},
	"i64.or":    {0x84, ImmNone},
	"i64.xor":   {0x85, ImmNone},
	"i64.shl":   {0x86, ImmNone},
	"i64.shr_s": {0x87, ImmNone},
	"i64.shr_u": {0x88, ImmNone},
	"i64.rotl":  {0x89, ImmNone},
	"i64.rotr":  {0x8A, ImmNone},

	// f32 unary
	"f32.abs":     {0x8B, ImmNone},
	"f32.neg":     {0x8C, ImmNone},
	"f32.ceil":    {0x8D, ImmNone},
	"f32.floor":   {0x8E, ImmNone},
	"f32.trunc":   {0x8F, ImmNone},
	"f32.nearest": {0x90, ImmNone},
	"f32.sqrt":    {0x91, ImmNone},

	// f32 binary
	"f32.add":      {0x92, ImmNone},
	"f32.sub":      {0x93, ImmNone},
	"f32.mul":      {0x94, ImmNone},
	"f32.div":      {0x95, ImmNone},
	"f32.min":      {0x96, ImmNone},
	"f32.max":      {0x97, ImmNone},
	"f32.copysign": {0x98, ImmNone},

	// f64 unary
	"f64.abs":     {0x99, ImmNone},
	"f64.neg":     {0x9A, ImmNone},
	"f64.ceil":    {0x9B, ImmNone},
	"f64.floor":   {0x9C, ImmNone},
	"f64.trunc":   {0x9D, ImmNone},
	"f64.nearest": {0x9E, ImmNone},
	"f64.sqrt":    {0x9F, ImmNone},

	// f64 binary
	"f64.add":      {0xA0, ImmNone},
	"f64.sub":      {0xA1, ImmNone},
	"f64.mul":      {0xA2, ImmNone},
	"f64.div":      {0xA3, ImmNone},
	"f64.min":      {0xA4, ImmNone},
	"f64.max":      {0xA5, ImmNone},
	"f64.copysign": {0xA6, ImmNone},

	// Conversions
	"i32.wrap_i64":        {0xA7, ImmNone},
	"i32.trunc_f32_s":     {0xA8, ImmNone},
	"i32.trunc_f32_u":     {0xA9, ImmNone},
	"i32.trunc_f64_s":     {0xAA, ImmNone},
	"i32.trunc_f64_u":     {0xAB, ImmNone},
	"i64.extend_i32_s":    {0xAC, ImmNone},
	"i64.extend_i32_u":    {0xAD, ImmNone},
	"i64.trunc_f32_s":     {0xAE, ImmNone},
	"i64.trunc_f32_u":     {0xAF, ImmNone},
	"i64.trunc_f64_s":     {0xB0, ImmNone},
	"i64.trunc_f64_u":     {0xB1, ImmNone},
	"f32.convert_i32_s":   {0xB2, ImmNone},
	"f32.convert_i32_u":   {0xB3, ImmNone},
	"f32.convert_i64_s":   {0xB4, ImmNone},
	"f32.convert_i64_u":   {0xB5, ImmNone},
	"f32.demote_f64":      {0xB6, ImmNone},
	"f64.convert_i32_s":   {0xB7, ImmNone},
	"f64.convert_i32_u":   {0xB8, ImmNone},
	"f64.convert_i64_s":   {0xB9, ImmNone},
	"f64.convert_i64_u":   {0xBA, ImmNone},
	"f64.promote_f32":     {0xBB, ImmNone},
	"i32.reinterpret_f32": {0xBC, ImmNone},
	"i64.reinterpret_f64": {0xBD, ImmNone},
	"f32.reinterpret_i32": {0xBE, ImmNone},
	"f64.reinterpret_i64": {0xBF, ImmNone},

	// Sign extension
	"i32.extend8_s":  {0xC0, ImmNone},
	"i32.extend16_s": {0xC1, ImmNone},
	"i64.extend8_s":  {0xC2, ImmNone},
	"i64.extend16_s": {0xC3, ImmNone},
	"i64.extend32_s": {0xC4, ImmNone},

	// Parametric
	"drop":   {0x1A, ImmNone},
	"select": {0x1B, ImmNone},

	// Control with immediates
	"br":       {0x0C, ImmLabel},
	"br_if":    {0x0D, ImmLabel},
	"br_table": {0x0E, ImmLabels},
	"call":     {0x10, ImmFunc},

	// Memory
	"memory.size": {0x3F, ImmMemIdx},
	"memory.grow": {0x40, ImmMemIdx},
}

var saturatingOps = map[string]uint32{
	"i32.trunc_sat_f32_s": 0,
	"i32.trunc_sat_f32_u": 1,
	"i32.trunc_sat_f64_s": 2,
	"i32.trunc_sat_f64_u": 3,
	"i64.trunc_sat_f32_s": 4,
	"i64.trunc_sat_f32_u": 5,
	"i64.trunc_sat_f64_s": 6,
	"i64.trunc_sat_f64_u": 7,
}

var memoryOps = map[string]MemoryOp{
	// Loads
	"i32.load":     {0x28, 2},
	"i64.load":     {0x29, 3},
	"f32.load":     {0x2A, 2},
	"f64.load":     {0x2B, 3},
	"i32.load8_s":  {0x2C, 0},
	"i32.load8_u":  {0x2D, 0},
	"i32.load16_s": {0x2E, 1},
	"i32.load16_u": {0x2F, 1},
	"i64.load8_s":  {0x30, 0},
	"i64.load8_u":  {0x31, 0},
	"i64.load16_s": {0x32, 1},
	"i64.load16_u": {0x33, 1},
	"i64.load32_s": {0x34, 2},
	"i64.load32_u": {0x35, 2},

	// Stores
	"i32.store":   {0x36, 2},
	"i64.store":   {0x37, 3},
	"f32.store":   {0x38, 2},
	"f64.store":   {0x39, 3},
	"i32.store8":  {0x3A, 0},
	"i32.store16": {0x3B, 1},
	"i64.store8":  {0x3C, 0},
	"i64.store16": {0x3D, 1},
	"i64.store32": {0x3E, 2},
}
