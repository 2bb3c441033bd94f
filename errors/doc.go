// Package errors provides structured error types for the plugin pipeline.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type carries the qualified name involved, the
// offending segment, the path walked so far and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseResolve, errors.KindSegmentNotFound).
//		Name("a.b.Hello").
//		Segment("b").
//		Path("a").
//		Detail("b is unknown").
//		Build()
//
// Or use the constructors for the common cases:
//
//	err := errors.SegmentNotFound("a.b.Hello", "b", []string{"a"})
//	err := errors.PayloadUnreadable("a.b.Hello", cause)
//
// Sentinels such as ErrSegmentNotFound match any error of the same phase
// and kind through errors.Is. A failed compilation is reported as a
// *CompileError holding the full diagnostics of the run.
package errors
