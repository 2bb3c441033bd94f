// Package wasm reads the linkable surface of WebAssembly binary modules.
//
// ReadInterface decodes a module's imports, exports, memories and custom
// sections, resolving function and global signatures through the type,
// function and global index spaces:
//
//	iface, err := wasm.ReadInterface(payload)
//	if err != nil {
//	    return err
//	}
//	for _, imp := range iface.Imports {
//	    fmt.Println(imp.Module, imp.Name, imp.Kind)
//	}
//
// Code, data and element sections are skipped. Validation is left to the
// runtime that compiles the module.
//
// The value, function and limit types declared here are shared with the wat
// package so that compiled text modules and loaded binaries describe their
// interfaces the same way.
package wasm
