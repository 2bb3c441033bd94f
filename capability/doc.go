// Package capability finds capability markers on loaded units and checks
// units against base capability contracts.
//
// A marker is a custom section declared in the module text, for example
//
//	(@custom "plugin:export" "greeter")
//
// which DefaultRegistry reports as an export entry aliased "greeter".
// Contracts are written as WIT function declarations and flattened to the
// core signatures the guest must export.
package capability
