package resolver

import (
	"fmt"

	"github.com/anhang-io/anhang/core"
)

// ObjectReader is the source of indirect objects the resolver pulls
// from; reader.Document satisfies it.
type ObjectReader interface {
	GetObject(objNum int) (core.Object, error)
	ResolveReference(ref core.IndirectRef) (core.Object, error)
}

// ObjectResolver resolves indirect references, guarding against
// reference cycles and unbounded recursion. A reference to a missing or
// unreadable object resolves to core.Null rather than failing, so that
// discovery logic can tolerate damaged documents; only cycles and depth
// overflow are reported as errors.
type ObjectResolver struct {
	reader       ObjectReader
	visited      map[int]bool
	maxDepth     int
	currentDepth int
}

// Option configures an ObjectResolver.
type Option func(*ObjectResolver)

// WithMaxDepth sets the maximum recursion depth (default 100).
func WithMaxDepth(depth int) Option {
	return func(r *ObjectResolver) {
		r.maxDepth = depth
	}
}

// New creates a resolver over the given object reader.
func New(reader ObjectReader, opts ...Option) *ObjectResolver {
	r := &ObjectResolver{
		reader:   reader,
		visited:  make(map[int]bool),
		maxDepth: 100,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve resolves obj if it is an indirect reference and otherwise
// returns it unchanged. Resolution is shallow: references nested inside
// dictionaries or arrays remain references.
func (r *ObjectResolver) Resolve(obj core.Object) (core.Object, error) {
	return r.resolve(obj, false)
}

// ResolveDeep resolves obj and every reference nested inside it,
// fully expanding the object tree.
func (r *ObjectResolver) ResolveDeep(obj core.Object) (core.Object, error) {
	return r.resolve(obj, true)
}

func (r *ObjectResolver) resolve(obj core.Object, deep bool) (core.Object, error) {
	// Each top-level call gets a fresh visited set; cycles are only an
	// issue within a single resolution tree.
	if r.currentDepth == 0 {
		r.visited = make(map[int]bool)
	}

	if r.currentDepth >= r.maxDepth {
		return nil, fmt.Errorf("maximum resolution depth (%d) exceeded", r.maxDepth)
	}

	switch v := obj.(type) {
	case core.IndirectRef:
		if r.visited[v.Number] {
			return nil, fmt.Errorf("reference cycle through object %d", v.Number)
		}
		r.visited[v.Number] = true
		defer delete(r.visited, v.Number)

		resolved, err := r.reader.ResolveReference(v)
		if err != nil {
			// Missing or unreadable objects degrade to null.
			return core.Null{}, nil
		}

		// Chained references (a reference resolving to another
		// reference) are followed; deep resolution also recurses into
		// containers.
		_, chained := resolved.(core.IndirectRef)
		if chained || deep {
			r.currentDepth++
			resolved, err = r.resolve(resolved, deep)
			r.currentDepth--
			if err != nil {
				return nil, err
			}
		}
		return resolved, nil

	case core.Dict:
		if !deep {
			return v, nil
		}
		resolved := make(core.Dict, len(v))
		for key, value := range v {
			r.currentDepth++
			resolvedValue, err := r.resolve(value, deep)
			r.currentDepth--
			if err != nil {
				return nil, fmt.Errorf("failed to resolve dict key /%s: %w", key, err)
			}
			resolved[key] = resolvedValue
		}
		return resolved, nil

	case core.Array:
		if !deep {
			return v, nil
		}
		resolved := make(core.Array, len(v))
		for i, elem := range v {
			r.currentDepth++
			resolvedElem, err := r.resolve(elem, deep)
			r.currentDepth--
			if err != nil {
				return nil, fmt.Errorf("failed to resolve array element %d: %w", i, err)
			}
			resolved[i] = resolvedElem
		}
		return resolved, nil

	case *core.Stream:
		if !deep {
			return v, nil
		}
		r.currentDepth++
		resolvedDict, err := r.resolve(v.Dict, deep)
		r.currentDepth--
		if err != nil {
			return nil, fmt.Errorf("failed to resolve stream dict: %w", err)
		}
		return &core.Stream{
			Dict: resolvedDict.(core.Dict),
			Data: v.Data,
		}, nil

	case nil:
		return core.Null{}, nil

	default:
		// Direct values pass through untouched.
		return obj, nil
	}
}

// ResolveReference resolves a single reference shallowly, applying the
// same missing-object-to-null policy as Resolve.
func (r *ObjectResolver) ResolveReference(ref core.IndirectRef) (core.Object, error) {
	return r.Resolve(ref)
}

// GetObject loads an object by number through the underlying reader.
func (r *ObjectResolver) GetObject(objNum int) (core.Object, error) {
	return r.reader.GetObject(objNum)
}
