// Package diag holds compiler diagnostics and the persistent reporter that
// collects them.
//
// A Reporter outlives individual compile runs. Each run starts with Reset,
// which zeroes the error and warning counters and records the transcript
// offset, so the transcript of one run never contains text from another:
//
//	r := diag.NewReporter(nil)
//	r.Reset()
//	r.Errorf(diag.Pos{File: "a.wat", Line: 3, Col: 7}, "unknown instruction %q", "i32.bogus")
//	fmt.Print(r.Output()) // a.wat:3:7: error: unknown instruction "i32.bogus"
package diag
