package core

import (
	"bytes"
	"fmt"
)

// ObjectStream wraps a /Type /ObjStm stream (PDF 1.5+), which packs
// multiple non-stream objects into one compressed payload. Compressed
// cross-reference entries point into these.
//
// Decoding and header parsing happen lazily on first access; extracted
// objects are cached by index.
type ObjectStream struct {
	stream  *Stream
	n       int
	first   int
	objects map[int]Object
	offsets []objStmOffset
	decoded []byte
}

// objStmOffset pairs an object number with its byte offset relative to
// /First in the decoded payload.
type objStmOffset struct {
	objNum int
	offset int
}

// NewObjectStream validates the /ObjStm dictionary entries and wraps
// the stream. The payload is not decoded until an object is requested.
func NewObjectStream(stream *Stream) (*ObjectStream, error) {
	if stream == nil {
		return nil, fmt.Errorf("stream is nil")
	}

	if typeName, _ := stream.Dict.GetName("Type"); typeName != "ObjStm" {
		return nil, fmt.Errorf("stream is not an object stream, got type %q", typeName)
	}

	n, ok := stream.Dict.GetInt("N")
	if !ok || n < 0 {
		return nil, fmt.Errorf("object stream has missing or invalid /N")
	}

	first, ok := stream.Dict.GetInt("First")
	if !ok || first < 0 {
		return nil, fmt.Errorf("object stream has missing or invalid /First")
	}

	return &ObjectStream{
		stream:  stream,
		n:       int(n),
		first:   int(first),
		objects: make(map[int]Object),
	}, nil
}

// N returns the number of objects stored in the stream.
func (os *ObjectStream) N() int { return os.n }

// decode decompresses the payload and parses the header pairs.
func (os *ObjectStream) decode() error {
	if os.decoded != nil {
		return nil
	}

	decoded, err := os.stream.Decode()
	if err != nil {
		return fmt.Errorf("failed to decode object stream: %w", err)
	}
	os.decoded = decoded

	if os.first > len(os.decoded) {
		return fmt.Errorf("/First offset %d exceeds decoded length %d", os.first, len(os.decoded))
	}

	// The header is os.n pairs of plain integers: objNum offset.
	parser := NewParser(bytes.NewReader(os.decoded[:os.first]))
	os.offsets = make([]objStmOffset, 0, os.n)
	for i := 0; i < os.n; i++ {
		numObj, err := parser.ParseObject()
		if err != nil {
			return fmt.Errorf("failed to parse header pair %d: %w", i, err)
		}
		num, ok := numObj.(Int)
		if !ok {
			return fmt.Errorf("header object number %d is not an integer: %T", i, numObj)
		}

		offObj, err := parser.ParseObject()
		if err != nil {
			return fmt.Errorf("failed to parse header offset %d: %w", i, err)
		}
		off, ok := offObj.(Int)
		if !ok {
			return fmt.Errorf("header offset %d is not an integer: %T", i, offObj)
		}

		os.offsets = append(os.offsets, objStmOffset{objNum: int(num), offset: int(off)})
	}

	return nil
}

// GetObjectByIndex extracts the object at the given header index
// (0-based). Returns the object and its object number.
func (os *ObjectStream) GetObjectByIndex(index int) (Object, int, error) {
	if err := os.decode(); err != nil {
		return nil, 0, err
	}

	if index < 0 || index >= len(os.offsets) {
		return nil, 0, fmt.Errorf("index %d out of range [0, %d)", index, len(os.offsets))
	}

	if obj, ok := os.objects[index]; ok {
		return obj, os.offsets[index].objNum, nil
	}

	start := os.first + os.offsets[index].offset
	end := len(os.decoded)
	if index+1 < len(os.offsets) {
		end = os.first + os.offsets[index+1].offset
	}
	if start >= len(os.decoded) {
		return nil, 0, fmt.Errorf("object offset %d exceeds decoded length %d", start, len(os.decoded))
	}
	if end > len(os.decoded) {
		end = len(os.decoded)
	}

	parser := NewParser(bytes.NewReader(os.decoded[start:end]))
	obj, err := parser.ParseObject()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse object at index %d: %w", index, err)
	}

	os.objects[index] = obj
	return obj, os.offsets[index].objNum, nil
}

// GetObjectByNumber extracts an object by its object number.
func (os *ObjectStream) GetObjectByNumber(objNum int) (Object, error) {
	if err := os.decode(); err != nil {
		return nil, err
	}

	for i, entry := range os.offsets {
		if entry.objNum == objNum {
			obj, _, err := os.GetObjectByIndex(i)
			return obj, err
		}
	}
	return nil, fmt.Errorf("object %d not found in object stream", objNum)
}
