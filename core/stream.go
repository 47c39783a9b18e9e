package core

import (
	"errors"
	"fmt"

	"github.com/anhang-io/anhang/internal/filters"
)

// ErrUnsupportedFilter marks streams encoded with a filter this library
// does not decode (LZW, CCITT, DCT, JBIG2, ...). Callers extracting
// embedded files treat such streams as undecodable and skip the entry.
var ErrUnsupportedFilter = errors.New("unsupported stream filter")

// Decode reverses the filter chain declared in the stream dictionary and
// returns the decoded payload. A stream without /Filter is returned
// as-is. Filter arrays are applied in order; decode parameters are taken
// from /DecodeParms, positionally when that entry is an array.
func (s *Stream) Decode() ([]byte, error) {
	filterObj := s.Dict.Get("Filter")
	if filterObj == nil {
		return s.Data, nil
	}

	paramsObj := s.Dict.Get("DecodeParms")

	if filterName, ok := filterObj.(Name); ok {
		return decodeWithFilter(s.Data, string(filterName), paramsToDict(paramsObj))
	}

	if filterArray, ok := filterObj.(Array); ok {
		data := s.Data
		for i, filter := range filterArray {
			filterName, ok := filter.(Name)
			if !ok {
				return nil, fmt.Errorf("filter %d is not a name: %T", i, filter)
			}

			var params Dict
			if paramsArray, ok := paramsObj.(Array); ok {
				if i < len(paramsArray) {
					params = paramsToDict(paramsArray[i])
				}
			} else {
				params = paramsToDict(paramsObj)
			}

			var err error
			data, err = decodeWithFilter(data, string(filterName), params)
			if err != nil {
				return nil, fmt.Errorf("filter %d (%s): %w", i, filterName, err)
			}
		}
		return data, nil
	}

	return nil, fmt.Errorf("invalid Filter type: %T", filterObj)
}

// decodeWithFilter applies a single named filter. Abbreviated filter
// names from inline-image syntax are accepted alongside the full names.
func decodeWithFilter(data []byte, filterName string, params Dict) ([]byte, error) {
	switch filterName {
	case "FlateDecode", "Fl":
		return filters.FlateDecode(data, dictToParams(params))
	case "ASCIIHexDecode", "AHx":
		return filters.ASCIIHexDecode(data)
	case "ASCII85Decode", "A85":
		return filters.ASCII85Decode(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFilter, filterName)
	}
}

// paramsToDict normalizes a /DecodeParms entry to a Dict. Null and
// non-dictionary values mean no parameters.
func paramsToDict(obj Object) Dict {
	if dict, ok := obj.(Dict); ok {
		return dict
	}
	return nil
}

// dictToParams converts PDF objects in a decode-parameter dictionary to
// the Go primitives the filters package works with.
func dictToParams(dict Dict) filters.Params {
	if dict == nil {
		return nil
	}

	params := make(filters.Params, len(dict))
	for k, v := range dict {
		switch obj := v.(type) {
		case Int:
			params[k] = int(obj)
		case Real:
			params[k] = float64(obj)
		case Bool:
			params[k] = bool(obj)
		case Name:
			params[k] = string(obj)
		case String:
			params[k] = string(obj)
		default:
			params[k] = v
		}
	}
	return params
}
