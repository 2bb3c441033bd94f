// Package artifact holds compiled plugin units in a tree addressed by
// dotted qualified names.
//
// A name such as "a.b.Main" is split into segments; every segment but the
// last names a directory, the last names a leaf stored as "Main.wasm":
//
//	b := artifact.NewBuilder()
//	_ = b.Add("a.b.Main", artifact.Bytes(bin))
//	ns := b.Build()
//	payload, err := ns.Payload("a.b.Main")
//
// Resolution failures distinguish a missing segment, a name that ends at a
// directory and a payload that cannot be read; match them with errors.Is
// against errors.ErrSegmentNotFound, errors.ErrNotALeaf and
// errors.ErrPayloadUnreadable.
package artifact
