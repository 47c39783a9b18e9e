package reader

import (
	"strings"

	"github.com/anhang-io/anhang/core"
	"github.com/anhang-io/anhang/resolver"
)

// EmbeddedFile is one extracted attachment: its display name and fully
// decoded payload, plus the descriptive file-specification entries that
// e-invoice tooling cares about. Values are independent of the source
// buffer and belong to the caller.
type EmbeddedFile struct {
	Name         string
	Description  string
	Relationship string
	Subtype      string
	Data         []byte
}

// Text returns the payload interpreted as UTF-8 text. Invalid byte
// sequences are replaced rather than reported, so a non-UTF-8
// attachment yields possibly garbled text instead of an error; content
// validation is the caller's concern.
func (f EmbeddedFile) Text() string {
	return strings.ToValidUTF8(string(f.Data), "�")
}

// EmbeddedFiles discovers every embedded file in the document and
// returns the decoded contents.
//
// Two discovery paths run in order and their results are concatenated
// without de-duplication: the catalog's /AF (associated files) array,
// then the /Names /EmbeddedFiles name tree. Within each path, entries
// appear in document order. A file specification that cannot be
// completed (missing /EF, missing stream, unsupported filter, corrupt
// data) is skipped; only its own entry is lost. A document with no
// embedded files yields an empty slice, not an error.
func (d *Document) EmbeddedFiles() ([]EmbeddedFile, error) {
	catalog, err := d.Catalog()
	if err != nil {
		return nil, err
	}

	res := resolver.New(d)
	var files []EmbeddedFile

	// Path A: catalog /AF array of file specifications.
	if afObj, err := res.Resolve(catalog.Get("AF")); err == nil {
		if afArr, ok := afObj.(core.Array); ok {
			for _, el := range afArr {
				specObj, err := res.Resolve(el)
				if err != nil {
					continue
				}
				spec, ok := specObj.(core.Dict)
				if !ok {
					continue
				}
				if file, ok := d.fileFromSpec(res, spec, ""); ok {
					files = append(files, file)
				}
			}
		}
	}

	// Path B: /Names /EmbeddedFiles name tree.
	if namesDict, ok := resolveDict(res, catalog.Get("Names")); ok {
		if treeRoot, ok := resolveDict(res, namesDict.Get("EmbeddedFiles")); ok {
			pairs := flattenNameTree(res, treeRoot)
			for i := 0; i+1 < len(pairs); i += 2 {
				nameStr, ok := pairs[i].(core.String)
				if !ok {
					continue
				}
				spec, ok := resolveDict(res, pairs[i+1])
				if !ok {
					continue
				}
				if file, ok := d.fileFromSpec(res, spec, core.DecodeTextString(nameStr)); ok {
					files = append(files, file)
				}
			}
		}
	}

	return files, nil
}

// fileFromSpec builds an EmbeddedFile from a file-specification
// dictionary. nameOverride, when non-empty, wins over the /UF and /F
// entries (name-tree keys name the file). The second return value is
// false when the specification has no decodable embedded stream.
func (d *Document) fileFromSpec(res *resolver.ObjectResolver, spec core.Dict, nameOverride string) (EmbeddedFile, bool) {
	file := EmbeddedFile{Name: nameOverride}
	if file.Name == "" {
		file.Name = specDisplayName(res, spec)
	}

	if desc, ok := resolveString(res, spec.Get("Desc")); ok {
		file.Description = core.DecodeTextString(desc)
	}
	if rel, ok := spec.GetName("AFRelationship"); ok {
		file.Relationship = string(rel)
	}

	ef, ok := resolveDict(res, spec.Get("EF"))
	if !ok {
		return EmbeddedFile{}, false
	}

	// /F is the canonical stream key; some writers only fill /UF.
	stream, ok := resolveStream(res, ef.Get("F"))
	if !ok {
		stream, ok = resolveStream(res, ef.Get("UF"))
	}
	if !ok {
		return EmbeddedFile{}, false
	}

	if subtype, ok := stream.Dict.GetName("Subtype"); ok {
		file.Subtype = string(subtype)
	}

	data, err := stream.Decode()
	if err != nil {
		// Unsupported filter or corrupt payload: drop this entry only.
		return EmbeddedFile{}, false
	}

	// Copy so the result never aliases the input buffer.
	file.Data = append([]byte(nil), data...)
	return file, true
}

// specDisplayName extracts the display name of a file specification,
// preferring the Unicode /UF entry over /F. A specification with
// neither gets the literal name "unknown".
func specDisplayName(res *resolver.ObjectResolver, spec core.Dict) string {
	if uf, ok := resolveString(res, spec.Get("UF")); ok {
		return core.DecodeTextString(uf)
	}
	if f, ok := resolveString(res, spec.Get("F")); ok {
		return core.DecodeTextString(f)
	}
	return "unknown"
}

// flattenNameTree concatenates the /Names arrays of a name tree in
// document order. Interior nodes carry /Kids, leaves carry /Names; a
// node is only descended once, so malformed trees whose Kids form a
// cycle terminate with whatever was gathered up to that point.
func flattenNameTree(res *resolver.ObjectResolver, root core.Dict) []core.Object {
	var pairs []core.Object
	visited := make(map[int]bool)

	var walk func(node core.Dict)
	walk = func(node core.Dict) {
		if namesObj, err := res.Resolve(node.Get("Names")); err == nil {
			if names, ok := namesObj.(core.Array); ok {
				for _, el := range names {
					resolved, err := res.Resolve(el)
					if err != nil {
						resolved = core.Null{}
					}
					pairs = append(pairs, resolved)
				}
				return
			}
		}

		kidsObj, err := res.Resolve(node.Get("Kids"))
		if err != nil {
			return
		}
		kids, ok := kidsObj.(core.Array)
		if !ok {
			return
		}
		for _, kid := range kids {
			if ref, ok := kid.(core.IndirectRef); ok {
				if visited[ref.Number] {
					continue
				}
				visited[ref.Number] = true
			}
			child, ok := resolveDict(res, kid)
			if !ok {
				continue
			}
			walk(child)
		}
	}

	walk(root)
	return pairs
}

// resolveDict resolves obj and returns it as a dictionary.
func resolveDict(res *resolver.ObjectResolver, obj core.Object) (core.Dict, bool) {
	resolved, err := res.Resolve(obj)
	if err != nil {
		return nil, false
	}
	dict, ok := resolved.(core.Dict)
	return dict, ok
}

// resolveStream resolves obj and returns it as a stream.
func resolveStream(res *resolver.ObjectResolver, obj core.Object) (*core.Stream, bool) {
	resolved, err := res.Resolve(obj)
	if err != nil {
		return nil, false
	}
	stream, ok := resolved.(*core.Stream)
	return stream, ok
}

// resolveString resolves obj and returns it as a string.
func resolveString(res *resolver.ObjectResolver, obj core.Object) (core.String, bool) {
	resolved, err := res.Resolve(obj)
	if err != nil {
		return "", false
	}
	s, ok := resolved.(core.String)
	return s, ok
}
