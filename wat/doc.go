// Package wat compiles the WebAssembly text format into binary modules.
//
// It is the embedded compiler for plugin sources. A source unit may hold
// several (module $a.b.Name ...) forms, or be the fields of one unnamed
// module. The module identifier becomes the module's qualified name and is
// recorded in the binary's name section:
//
//	mods := wat.CompileUnit("hello.wat", src, reporter)
//	for _, m := range mods {
//		fmt.Println(m.Name, len(m.Binary))
//	}
//
// For one-off modules:
//
//	bin, err := wat.Compile(`(module
//		(func (export "add") (param i32 i32) (result i32)
//			(i32.add (local.get 0) (local.get 1)))
//	)`)
//
// Supported:
//   - types, function, memory and global imports (standalone and inline)
//   - functions with named params and locals, inline exports
//   - one memory, globals, exports, start, active data segments
//   - custom sections through (@custom "name" "data" ...)
//   - folded and flat instructions, block/loop/if with labels
//   - br, br_if, br_table, return, call, locals and globals
//   - every numeric instruction of WASM 1.0, sign extension and
//     saturating truncation
//   - loads and stores with offset= and align=, memory.size, memory.grow
//
// Tables, element segments, reference types, bulk memory and SIMD are
// rejected with an error. Unknown annotations produce a warning.
package wat
