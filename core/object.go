package core

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Object is the interface satisfied by every PDF object type.
type Object interface {
	Type() ObjectType
	String() string
}

// ObjectType identifies the concrete type of a PDF object.
type ObjectType int

const (
	ObjNull ObjectType = iota
	ObjBool
	ObjInt
	ObjReal
	ObjString
	ObjName
	ObjArray
	ObjDict
	ObjStream
	ObjIndirect
)

// String returns a human-readable name for the object type.
func (t ObjectType) String() string {
	switch t {
	case ObjNull:
		return "Null"
	case ObjBool:
		return "Bool"
	case ObjInt:
		return "Int"
	case ObjReal:
		return "Real"
	case ObjString:
		return "String"
	case ObjName:
		return "Name"
	case ObjArray:
		return "Array"
	case ObjDict:
		return "Dict"
	case ObjStream:
		return "Stream"
	case ObjIndirect:
		return "IndirectRef"
	default:
		return "Unknown"
	}
}

// Null represents the PDF null object. Unresolvable references also
// resolve to Null so that callers can degrade gracefully.
type Null struct{}

func (n Null) Type() ObjectType { return ObjNull }
func (n Null) String() string   { return "null" }

// IsNull reports whether obj is nil or the PDF null object.
func IsNull(obj Object) bool {
	if obj == nil {
		return true
	}
	_, ok := obj.(Null)
	return ok
}

// Bool represents a PDF boolean.
type Bool bool

func (b Bool) Type() ObjectType { return ObjBool }
func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}

// Int represents a PDF integer.
type Int int64

func (i Int) Type() ObjectType { return ObjInt }
func (i Int) String() string   { return strconv.FormatInt(int64(i), 10) }

// Real represents a PDF real number.
type Real float64

func (r Real) Type() ObjectType { return ObjReal }
func (r Real) String() string   { return strconv.FormatFloat(float64(r), 'f', -1, 64) }

// String represents a PDF string. The underlying bytes are kept verbatim;
// use DecodeTextString to interpret a string from a text-string context
// (file names, name-tree keys) as Unicode.
type String string

func (s String) Type() ObjectType { return ObjString }
func (s String) String() string   { return string(s) }

// Name represents a PDF name object such as /Type or /EmbeddedFiles.
type Name string

func (n Name) Type() ObjectType { return ObjName }
func (n Name) String() string   { return "/" + string(n) }

// Array represents a PDF array. Element order is significant.
type Array []Object

func (a Array) Type() ObjectType { return ObjArray }
func (a Array) String() string {
	parts := make([]string, 0, len(a))
	for _, obj := range a {
		parts = append(parts, obj.String())
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Len returns the number of elements in the array.
func (a Array) Len() int { return len(a) }

// Get returns the element at index, or nil if index is out of range.
func (a Array) Get(index int) Object {
	if index < 0 || index >= len(a) {
		return nil
	}
	return a[index]
}

// Dict represents a PDF dictionary. Lookup order is irrelevant; Keys
// returns a sorted enumeration so that iteration is deterministic.
type Dict map[string]Object

func (d Dict) Type() ObjectType { return ObjDict }
func (d Dict) String() string {
	parts := make([]string, 0, len(d))
	for _, key := range d.Keys() {
		parts = append(parts, fmt.Sprintf("/%s %s", key, d[key].String()))
	}
	return "<<" + strings.Join(parts, " ") + ">>"
}

// Get returns the value for key, or nil if absent.
func (d Dict) Get(key string) Object { return d[key] }

// Has reports whether key is present.
func (d Dict) Has(key string) bool {
	_, ok := d[key]
	return ok
}

// GetName returns the Name value for key.
func (d Dict) GetName(key string) (Name, bool) {
	n, ok := d[key].(Name)
	return n, ok
}

// GetInt returns the Int value for key.
func (d Dict) GetInt(key string) (Int, bool) {
	i, ok := d[key].(Int)
	return i, ok
}

// GetString returns the String value for key.
func (d Dict) GetString(key string) (String, bool) {
	s, ok := d[key].(String)
	return s, ok
}

// GetDict returns the Dict value for key.
func (d Dict) GetDict(key string) (Dict, bool) {
	dict, ok := d[key].(Dict)
	return dict, ok
}

// GetArray returns the Array value for key.
func (d Dict) GetArray(key string) (Array, bool) {
	arr, ok := d[key].(Array)
	return arr, ok
}

// GetStream returns the Stream value for key.
func (d Dict) GetStream(key string) (*Stream, bool) {
	s, ok := d[key].(*Stream)
	return s, ok
}

// GetIndirectRef returns the IndirectRef value for key.
func (d Dict) GetIndirectRef(key string) (IndirectRef, bool) {
	ref, ok := d[key].(IndirectRef)
	return ref, ok
}

// Keys returns all dictionary keys in sorted order.
func (d Dict) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Stream represents a PDF stream: a dictionary plus its raw, still-encoded
// byte payload. Decode reverses the declared filter chain.
type Stream struct {
	Dict Dict
	Data []byte
}

func (s *Stream) Type() ObjectType { return ObjStream }
func (s *Stream) String() string {
	return fmt.Sprintf("stream %s (%d bytes)", s.Dict.String(), len(s.Data))
}

// IndirectRef identifies an indirect object by number and generation.
// It is a reference, not a value; resolve it through a Document or
// resolver before use.
type IndirectRef struct {
	Number     int
	Generation int
}

func (r IndirectRef) Type() ObjectType { return ObjIndirect }
func (r IndirectRef) String() string {
	return fmt.Sprintf("%d %d R", r.Number, r.Generation)
}

// IndirectObject pairs an indirect object definition with its reference.
type IndirectObject struct {
	Ref    IndirectRef
	Object Object
}
