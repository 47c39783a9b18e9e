// Package resolver turns PDF indirect references (e.g. "5 0 R") into
// the objects they point at.
//
// A reference to a missing, free, or
// unparseable object resolves to the null object instead of failing, so
// that a document with one damaged attachment still yields the intact
// ones. Reference cycles and runaway chains are detected with a
// per-call visited set and a configurable depth bound:
//
//	r := resolver.New(doc, resolver.WithMaxDepth(50))
//	obj, err := r.Resolve(ref)
//
// ResolveDeep additionally expands references nested inside
// dictionaries, arrays, and stream dictionaries.
package resolver
