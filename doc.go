// Package wasmplugins compiles plugins written in the WebAssembly text
// format and discovers the extensions they provide.
//
// A plugin is a set of source units. Every unit holds one or more
// (module $a.b.Name ...) forms; all units of a plugin are compiled as one
// batch, so modules may import each other's exports by qualified name.
// Imports of the plugin:host module are served by the host registry.
//
// # Architecture Overview
//
//	wasmplugins/
//	├── source/      Gathering source units from files and directories
//	├── diag/        Diagnostics and the scoped diagnostic reporter
//	├── wat/         WAT text format to WASM binary compiler
//	├── wasm/        Reading the interface of a compiled module
//	├── compiler/    Compilation sessions: batch compile, link checks, busy policy
//	├── artifact/    Artifact trees and the qualified-name namespace
//	├── host/        Host function registry and the plugin:host module
//	├── loader/      Materializing and instantiating units on wazero
//	├── capability/  Capability markers, WIT contracts and the scanner
//	├── classify/    Assigning units to extension categories
//	├── manifest/    Plugin descriptor synthesis and YAML rendering
//	├── plugin/      The provider tying the pipeline together
//	├── config/      YAML configuration with environment overrides
//	├── metrics/     Prometheus instrumentation
//	├── errors/      Structured error types
//	└── cmd/wasmplug The command line tool
//
// # Quick Start
//
//	p, err := plugin.NewProvider(ctx, plugin.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close(ctx)
//
//	units, err := source.GatherPath("hello-1.0", source.DefaultSuffix)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	pl, err := p.LoadExtensions(ctx, units, "hello", "1.0")
//	if err != nil {
//	    log.Fatal(err) // *errors.CompileError carries the diagnostics
//	}
//	defer pl.Close(ctx)
//
//	code, err := pl.RunCommand(ctx, os.Stdout)
package wasmplugins
