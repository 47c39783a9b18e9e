package core

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// XRefEntryType classifies a cross-reference entry.
type XRefEntryType int

const (
	// XRefEntryFree marks a free (deleted) object slot.
	XRefEntryFree XRefEntryType = iota
	// XRefEntryUncompressed marks an object stored at a byte offset.
	XRefEntryUncompressed
	// XRefEntryCompressed marks an object stored inside an object stream.
	XRefEntryCompressed
)

// XRefEntry is a single cross-reference entry.
//
// The meaning of Offset and Generation depends on Type: for uncompressed
// entries they are the byte offset and generation number; for compressed
// entries Offset holds the object number of the containing object stream
// and Generation the index within it; for free entries Offset is the
// next free object number.
type XRefEntry struct {
	Type       XRefEntryType
	Offset     int64
	Generation int
	InUse      bool
}

// StreamObjectNumber returns the object number of the object stream
// containing a compressed entry.
func (e *XRefEntry) StreamObjectNumber() int { return int(e.Offset) }

// StreamIndex returns the index of a compressed entry within its object
// stream.
func (e *XRefEntry) StreamIndex() int { return e.Generation }

// XRefTable maps object numbers to cross-reference entries, together
// with the trailer dictionary of the section it came from.
type XRefTable struct {
	Entries map[int]*XRefEntry
	Trailer Dict
}

// NewXRefTable creates an empty cross-reference table.
func NewXRefTable() *XRefTable {
	return &XRefTable{
		Entries: make(map[int]*XRefEntry),
		Trailer: make(Dict),
	}
}

// Get returns the entry for an object number.
func (x *XRefTable) Get(objNum int) (*XRefEntry, bool) {
	entry, ok := x.Entries[objNum]
	return entry, ok
}

// Set adds or replaces the entry for an object number.
func (x *XRefTable) Set(objNum int, entry *XRefEntry) {
	x.Entries[objNum] = entry
}

// Size returns the number of entries.
func (x *XRefTable) Size() int { return len(x.Entries) }

// MergeXRefTables merges cross-reference sections, oldest first; later
// entries override earlier ones and the newest trailer wins. This is
// how incremental updates are reconciled.
func MergeXRefTables(tables ...*XRefTable) *XRefTable {
	merged := NewXRefTable()
	for _, table := range tables {
		for objNum, entry := range table.Entries {
			merged.Set(objNum, entry)
		}
		merged.Trailer = table.Trailer
	}
	return merged
}

// XRefParser locates and parses cross-reference data: classic xref
// tables (PDF 1.0-1.4), cross-reference streams (PDF 1.5+), hybrid
// files carrying both, and /Prev chains from incremental updates.
type XRefParser struct {
	reader   io.ReadSeeker
	startPos int64
}

// NewXRefParser creates a parser over a seekable PDF byte source.
func NewXRefParser(r io.ReadSeeker) *XRefParser {
	return &XRefParser{reader: r}
}

// FindStartXRef scans backward from EOF for the startxref keyword and
// returns the byte offset it points at.
func (x *XRefParser) FindStartXRef() (int64, error) {
	fileSize, err := x.reader.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("failed to seek to end: %w", err)
	}

	readSize := int64(1024)
	if fileSize < readSize {
		readSize = fileSize
	}
	if _, err := x.reader.Seek(fileSize-readSize, io.SeekStart); err != nil {
		return 0, fmt.Errorf("failed to seek to startxref area: %w", err)
	}

	buf := make([]byte, readSize)
	n, err := io.ReadFull(x.reader, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return 0, fmt.Errorf("failed to read startxref area: %w", err)
	}
	buf = buf[:n]

	idx := bytes.LastIndex(buf, []byte("startxref"))
	if idx == -1 {
		return 0, fmt.Errorf("startxref keyword not found")
	}

	offsetStr := strings.TrimSpace(string(buf[idx+len("startxref"):]))
	if i := strings.IndexAny(offsetStr, " \t\r\n%"); i >= 0 {
		offsetStr = offsetStr[:i]
	}
	offset, err := strconv.ParseInt(offsetStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid startxref offset %q: %w", offsetStr, err)
	}
	if offset < 0 || offset >= fileSize {
		return 0, fmt.Errorf("startxref offset %d outside file bounds", offset)
	}
	return offset, nil
}

var xrefStreamHeadRe = regexp.MustCompile(`^\d+\s+\d+\s+obj\b`)

// isXRefStream peeks at the bytes at startPos and reports whether they
// begin a cross-reference stream (an indirect object) rather than a
// classic xref table.
func (x *XRefParser) isXRefStream() (bool, error) {
	if _, err := x.reader.Seek(x.startPos, io.SeekStart); err != nil {
		return false, err
	}

	buf := make([]byte, 64)
	n, err := x.reader.Read(buf)
	if n == 0 && err != nil {
		return false, fmt.Errorf("failed to read xref head: %w", err)
	}
	head := strings.TrimLeft(string(buf[:n]), " \t\r\n\f\x00")

	if strings.HasPrefix(head, "xref") {
		return false, nil
	}
	if xrefStreamHeadRe.MatchString(head) {
		return true, nil
	}
	return false, fmt.Errorf("neither xref table nor xref stream at offset %d", x.startPos)
}

// ParseXRef parses the cross-reference section at the given offset,
// dispatching between table and stream form.
func (x *XRefParser) ParseXRef(offset int64) (*XRefTable, error) {
	x.startPos = offset

	isStream, err := x.isXRefStream()
	if err != nil {
		return nil, err
	}

	if _, err := x.reader.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to xref at %d: %w", offset, err)
	}

	if isStream {
		return x.parseXRefStream()
	}
	return x.parseXRefTable()
}

// parseXRefTable parses a classic xref section: the xref keyword,
// subsections of fixed-format entries, and the trailer dictionary.
// Tokenizing the section instead of splitting lines tolerates the
// assorted EOL conventions found in the wild.
func (x *XRefParser) parseXRefTable() (*XRefTable, error) {
	lexer := NewLexer(x.reader)

	tok, err := lexer.NextToken()
	if err != nil {
		return nil, err
	}
	if tok.Type != TokenKeyword || string(tok.Value) != "xref" {
		return nil, fmt.Errorf("expected 'xref' keyword, got %q", string(tok.Value))
	}

	table := NewXRefTable()
	for {
		tok, err := lexer.NextToken()
		if err != nil {
			return nil, err
		}

		if tok.Type == TokenKeyword && string(tok.Value) == "trailer" {
			trailer, err := x.parseTrailer(lexer)
			if err != nil {
				return nil, fmt.Errorf("failed to parse trailer: %w", err)
			}
			table.Trailer = trailer
			return table, nil
		}

		if tok.Type != TokenInteger {
			return nil, fmt.Errorf("expected subsection header or trailer, got %q", string(tok.Value))
		}
		firstObjNum, err := strconv.Atoi(string(tok.Value))
		if err != nil {
			return nil, fmt.Errorf("invalid first object number: %w", err)
		}

		tok, err = lexer.NextToken()
		if err != nil {
			return nil, err
		}
		if tok.Type != TokenInteger {
			return nil, fmt.Errorf("expected subsection count, got %q", string(tok.Value))
		}
		count, err := strconv.Atoi(string(tok.Value))
		if err != nil || count < 0 {
			return nil, fmt.Errorf("invalid subsection count %q", string(tok.Value))
		}

		for i := 0; i < count; i++ {
			entry, err := x.parseTableEntry(lexer)
			if err != nil {
				return nil, fmt.Errorf("xref entry %d of subsection at %d: %w", i, firstObjNum, err)
			}
			table.Set(firstObjNum+i, entry)
		}
	}
}

// parseTableEntry reads one "nnnnnnnnnn ggggg n|f" entry.
func (x *XRefParser) parseTableEntry(lexer *Lexer) (*XRefEntry, error) {
	offTok, err := lexer.NextToken()
	if err != nil {
		return nil, err
	}
	if offTok.Type != TokenInteger {
		return nil, fmt.Errorf("expected offset, got %q", string(offTok.Value))
	}
	offset, err := strconv.ParseInt(string(offTok.Value), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid offset: %w", err)
	}

	genTok, err := lexer.NextToken()
	if err != nil {
		return nil, err
	}
	if genTok.Type != TokenInteger {
		return nil, fmt.Errorf("expected generation, got %q", string(genTok.Value))
	}
	generation, err := strconv.Atoi(string(genTok.Value))
	if err != nil {
		return nil, fmt.Errorf("invalid generation: %w", err)
	}

	flagTok, err := lexer.NextToken()
	if err != nil {
		return nil, err
	}
	switch string(flagTok.Value) {
	case "n":
		return &XRefEntry{Type: XRefEntryUncompressed, Offset: offset, Generation: generation, InUse: true}, nil
	case "f":
		return &XRefEntry{Type: XRefEntryFree, Offset: offset, Generation: generation}, nil
	default:
		return nil, fmt.Errorf("invalid in-use flag %q", string(flagTok.Value))
	}
}

// parseTrailer parses the dictionary following the trailer keyword,
// continuing on the lexer already positioned there.
func (x *XRefParser) parseTrailer(lexer *Lexer) (Dict, error) {
	parser := newParserFromLexer(lexer)
	obj, err := parser.ParseObject()
	if err != nil {
		return nil, err
	}
	dict, ok := obj.(Dict)
	if !ok {
		return nil, fmt.Errorf("trailer is not a dictionary, got %T", obj)
	}
	return dict, nil
}

// newParserFromLexer builds a parser that continues on an existing
// lexer, used when a token stream switches from xref syntax to object
// syntax at the trailer boundary.
func newParserFromLexer(l *Lexer) *Parser {
	p := &Parser{lexer: l}
	p.nextToken()
	p.nextToken()
	return p
}

// parseXRefStream parses a PDF 1.5+ cross-reference stream. The stream
// dictionary doubles as the trailer.
func (x *XRefParser) parseXRefStream() (*XRefTable, error) {
	parser := NewParser(x.reader)
	indObj, err := parser.ParseIndirectObject()
	if err != nil {
		return nil, fmt.Errorf("failed to parse xref stream object: %w", err)
	}

	stream, ok := indObj.Object.(*Stream)
	if !ok {
		return nil, fmt.Errorf("xref stream object is not a stream, got %T", indObj.Object)
	}
	if typeName, _ := stream.Dict.GetName("Type"); typeName != "XRef" {
		return nil, fmt.Errorf("expected /Type /XRef, got %q", typeName)
	}

	data, err := stream.Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to decode xref stream: %w", err)
	}

	w, err := xrefStreamWidths(stream.Dict)
	if err != nil {
		return nil, err
	}

	index, err := xrefStreamIndex(stream.Dict)
	if err != nil {
		return nil, err
	}

	table := NewXRefTable()
	table.Trailer = stream.Dict

	pos := 0
	for i := 0; i+1 < len(index); i += 2 {
		first, count := index[i], index[i+1]
		for j := 0; j < count; j++ {
			entry, n, err := x.parseXRefStreamEntry(data[pos:], w)
			if err != nil {
				return nil, fmt.Errorf("xref stream entry for object %d: %w", first+j, err)
			}
			pos += n
			table.Set(first+j, entry)
		}
	}

	return table, nil
}

// xrefStreamWidths extracts and validates the /W field-width array.
func xrefStreamWidths(dict Dict) ([]int, error) {
	wArr, ok := dict.GetArray("W")
	if !ok || len(wArr) < 3 {
		return nil, fmt.Errorf("xref stream missing /W array")
	}
	w := make([]int, 3)
	for i := 0; i < 3; i++ {
		wi, ok := wArr[i].(Int)
		if !ok || wi < 0 || wi > 8 {
			return nil, fmt.Errorf("invalid /W entry %d: %v", i, wArr[i])
		}
		w[i] = int(wi)
	}
	return w, nil
}

// xrefStreamIndex returns the /Index pairs, defaulting to [0 Size].
func xrefStreamIndex(dict Dict) ([]int, error) {
	if idxArr, ok := dict.GetArray("Index"); ok {
		if len(idxArr)%2 != 0 {
			return nil, fmt.Errorf("/Index array has odd length %d", len(idxArr))
		}
		index := make([]int, len(idxArr))
		for i, obj := range idxArr {
			v, ok := obj.(Int)
			if !ok || v < 0 {
				return nil, fmt.Errorf("invalid /Index entry %d: %v", i, obj)
			}
			index[i] = int(v)
		}
		return index, nil
	}

	size, ok := dict.GetInt("Size")
	if !ok || size < 0 {
		return nil, fmt.Errorf("xref stream missing /Size")
	}
	return []int{0, int(size)}, nil
}

// parseXRefStreamEntry decodes one binary entry according to the field
// widths in w. A zero-width type field defaults to type 1, per the PDF
// specification. Returns the entry and the number of bytes consumed.
func (x *XRefParser) parseXRefStreamEntry(data []byte, w []int) (*XRefEntry, int, error) {
	total := w[0] + w[1] + w[2]
	if len(data) < total {
		return nil, 0, fmt.Errorf("truncated entry: need %d bytes, have %d", total, len(data))
	}

	entryType := int64(1)
	if w[0] > 0 {
		entryType = readBigEndianInt(data, w[0])
	}
	field1 := readBigEndianInt(data[w[0]:], w[1])
	field2 := readBigEndianInt(data[w[0]+w[1]:], w[2])

	entry := &XRefEntry{Offset: field1, Generation: int(field2)}
	switch entryType {
	case 0:
		entry.Type = XRefEntryFree
	case 1:
		entry.Type = XRefEntryUncompressed
		entry.InUse = true
	case 2:
		entry.Type = XRefEntryCompressed
		entry.InUse = true
	default:
		// Unknown entry types must be treated as references to the
		// null object; a free entry has that effect.
		entry.Type = XRefEntryFree
	}

	return entry, total, nil
}

// readBigEndianInt reads a big-endian unsigned integer of the given
// byte width. Width zero yields zero.
func readBigEndianInt(data []byte, width int) int64 {
	var v int64
	for i := 0; i < width && i < len(data); i++ {
		v = v<<8 | int64(data[i])
	}
	return v
}

// ParseAll walks the /Prev chain starting from the newest section at
// offset and returns the merged table. Offsets already visited are not
// followed again, so malformed circular chains terminate. Hybrid files
// (classic table plus /XRefStm) have the stream section merged beneath
// its table.
func (x *XRefParser) ParseAll(offset int64) (*XRefTable, error) {
	var sections []*XRefTable
	visited := make(map[int64]bool)

	for {
		if visited[offset] {
			break
		}
		visited[offset] = true

		table, err := x.ParseXRef(offset)
		if err != nil {
			if len(sections) == 0 {
				return nil, err
			}
			// A broken older section loses only its own entries.
			break
		}

		sections = append([]*XRefTable{table}, sections...)

		// Hybrid: the xref stream section holds entries (usually the
		// compressed ones) the classic table does not. The stream sits
		// beneath its table in merge order, so the table wins on
		// conflicts.
		if stmOffset, ok := table.Trailer.GetInt("XRefStm"); ok && !visited[int64(stmOffset)] {
			visited[int64(stmOffset)] = true
			if stmTable, err := x.ParseXRef(int64(stmOffset)); err == nil {
				sections = append([]*XRefTable{stmTable}, sections...)
			}
		}

		prev, ok := table.Trailer.GetInt("Prev")
		if !ok {
			break
		}
		offset = int64(prev)
	}

	if len(sections) == 0 {
		return nil, fmt.Errorf("no parsable xref section")
	}

	// The newest trailer governs; restore it after merging since the
	// hybrid reordering above may have shuffled trailer precedence.
	newest := sections[len(sections)-1].Trailer
	merged := MergeXRefTables(sections...)
	merged.Trailer = newest
	return merged, nil
}
