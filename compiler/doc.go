// Package compiler turns batches of WAT source units into artifact
// namespaces.
//
// A Session owns one wazero runtime, used to validate every compiled
// binary, and one diagnostic reporter whose transcript outlives single
// runs. Each Compile resets the reporter's scope, compiles all units,
// validates the binaries and checks every import against the batch and the
// host registry:
//
//	s, _ := compiler.NewSession(ctx, compiler.Options{Hosts: host.Standard()})
//	res, err := s.Compile(ctx, units)
//	var ce *errors.CompileError
//	if errors.As(err, &ce) {
//		fmt.Print(ce.Diagnostics.Transcript)
//	}
//
// A run either yields a complete namespace or none at all. Imports of
// modules that are neither in the batch nor known to the host registry are
// warnings: such modules compile but are abstract when loaded.
package compiler
