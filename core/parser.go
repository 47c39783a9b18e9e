package core

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
)

// ReferenceResolver resolves indirect references on behalf of the parser.
// The parser needs this when a stream's /Length is itself indirect.
type ReferenceResolver interface {
	ResolveReference(ref IndirectRef) (Object, error)
}

// Parser parses PDF objects from an io.Reader, using a Lexer for
// tokenization and one token of lookahead to distinguish "5 0 R"
// references from plain integers.
type Parser struct {
	lexer        *Lexer
	currentToken *Token
	peekToken    *Token
	resolver     ReferenceResolver
	err          error
}

// NewParser creates a parser reading from r and primes the lookahead.
func NewParser(r io.Reader) *Parser {
	p := &Parser{lexer: NewLexer(r)}
	p.nextToken()
	p.nextToken()
	return p
}

// SetReferenceResolver installs the resolver used for indirect /Length
// entries. Without one, such streams fail to parse.
func (p *Parser) SetReferenceResolver(resolver ReferenceResolver) {
	p.resolver = resolver
}

// nextToken shifts the lookahead window. When "stream" moves into the
// current slot the lexer stops: what follows is binary payload that must
// not be tokenized. A lexer error ends tokenization: the lookahead is
// replaced with an EOF token so every parsing loop terminates, and the
// error is kept for reporting in place of plain EOF.
func (p *Parser) nextToken() error {
	p.currentToken = p.peekToken
	if p.err != nil {
		return p.err
	}

	if p.currentToken != nil &&
		p.currentToken.Type == TokenKeyword &&
		string(p.currentToken.Value) == "stream" {
		p.peekToken = nil
		return nil
	}

	token, err := p.lexer.NextToken()
	if err != nil {
		p.err = err
		p.peekToken = &Token{Type: TokenEOF, Pos: p.lexer.pos}
		return err
	}
	p.peekToken = token
	return nil
}

func (p *Parser) skipComments() error {
	for p.currentToken != nil && p.currentToken.Type == TokenComment {
		if err := p.nextToken(); err != nil {
			return err
		}
	}
	return nil
}

// ParseObject parses and returns the next PDF object from the input.
func (p *Parser) ParseObject() (Object, error) {
	if err := p.skipComments(); err != nil {
		return nil, err
	}

	if p.currentToken == nil {
		return nil, fmt.Errorf("unexpected end of input")
	}

	switch p.currentToken.Type {
	case TokenEOF:
		if p.err != nil {
			return nil, p.err
		}
		return nil, io.EOF

	case TokenKeyword:
		keyword := string(p.currentToken.Value)
		switch keyword {
		case "null":
			p.nextToken()
			return Null{}, nil
		case "true":
			p.nextToken()
			return Bool(true), nil
		case "false":
			p.nextToken()
			return Bool(false), nil
		default:
			return nil, fmt.Errorf("unexpected keyword %q at position %d", keyword, p.currentToken.Pos)
		}

	case TokenInteger:
		return p.parseNumber()

	case TokenReal:
		val, err := strconv.ParseFloat(string(p.currentToken.Value), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid real number: %w", err)
		}
		p.nextToken()
		return Real(val), nil

	case TokenString:
		val := string(p.currentToken.Value)
		p.nextToken()
		return String(val), nil

	case TokenHexString:
		decoded, err := decodeHexDigits(p.currentToken.Value)
		if err != nil {
			return nil, err
		}
		p.nextToken()
		return String(decoded), nil

	case TokenName:
		val := string(p.currentToken.Value)
		p.nextToken()
		return Name(val), nil

	case TokenArrayStart:
		return p.parseArray()

	case TokenDictStart:
		return p.parseDict()

	default:
		return nil, fmt.Errorf("unexpected token type %v at position %d", p.currentToken.Type, p.currentToken.Pos)
	}
}

// decodeHexDigits turns the digit run of a hex string into raw bytes.
// An odd final digit is padded with a trailing zero.
func decodeHexDigits(digits []byte) ([]byte, error) {
	hexStr := string(digits)
	if len(hexStr)%2 != 0 {
		hexStr += "0"
	}
	result := make([]byte, len(hexStr)/2)
	for i := 0; i < len(hexStr); i += 2 {
		b, err := strconv.ParseUint(hexStr[i:i+2], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid hex string: %w", err)
		}
		result[i/2] = byte(b)
	}
	return result, nil
}

// parseNumber parses an integer, real, or "num gen R" indirect reference.
func (p *Parser) parseNumber() (Object, error) {
	firstToken := string(p.currentToken.Value)

	firstInt, err := strconv.ParseInt(firstToken, 10, 64)
	if err != nil {
		f, err := strconv.ParseFloat(firstToken, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number: %s", firstToken)
		}
		p.nextToken()
		return Real(f), nil
	}

	if p.peekToken != nil && p.peekToken.Type == TokenInteger {
		secondInt, err := strconv.ParseInt(string(p.peekToken.Value), 10, 64)
		if err == nil {
			// Consume the second integer so we can see whether R follows.
			p.nextToken()
			if p.peekToken != nil && p.peekToken.Type == TokenIndirectRef {
				p.nextToken()
				p.nextToken()
				return IndirectRef{
					Number:     int(firstInt),
					Generation: int(secondInt),
				}, nil
			}
			// Not a reference. The second integer is now current and
			// will be parsed by the next ParseObject call.
			return Int(firstInt), nil
		}
	}

	p.nextToken()
	return Int(firstInt), nil
}

func (p *Parser) parseArray() (Object, error) {
	if p.currentToken.Type != TokenArrayStart {
		return nil, fmt.Errorf("expected '[', got %v", p.currentToken.Type)
	}
	p.nextToken()

	arr := Array{}
	for {
		if err := p.skipComments(); err != nil {
			return nil, err
		}
		if p.currentToken == nil {
			return nil, fmt.Errorf("unexpected end of input in array")
		}
		if p.currentToken.Type == TokenArrayEnd {
			p.nextToken()
			break
		}
		if p.currentToken.Type == TokenEOF {
			if p.err != nil {
				return nil, fmt.Errorf("in array: %w", p.err)
			}
			return nil, fmt.Errorf("unexpected EOF in array")
		}

		obj, err := p.ParseObject()
		if err != nil {
			return nil, fmt.Errorf("error parsing array element: %w", err)
		}
		arr = append(arr, obj)
	}

	return arr, nil
}

func (p *Parser) parseDict() (Object, error) {
	if p.currentToken.Type != TokenDictStart {
		return nil, fmt.Errorf("expected '<<', got %v", p.currentToken.Type)
	}
	p.nextToken()

	dict := make(Dict)
	for {
		if err := p.skipComments(); err != nil {
			return nil, err
		}
		if p.currentToken == nil {
			return nil, fmt.Errorf("unexpected end of input in dictionary")
		}
		if p.currentToken.Type == TokenDictEnd {
			p.nextToken()
			break
		}
		if p.currentToken.Type == TokenEOF {
			if p.err != nil {
				return nil, fmt.Errorf("in dictionary: %w", p.err)
			}
			return nil, fmt.Errorf("unexpected EOF in dictionary")
		}

		if p.currentToken.Type != TokenName {
			return nil, fmt.Errorf("expected name for dictionary key, got %v at position %d", p.currentToken.Type, p.currentToken.Pos)
		}
		key := string(p.currentToken.Value)
		p.nextToken()

		value, err := p.ParseObject()
		if err != nil {
			return nil, fmt.Errorf("error parsing dictionary value for key /%s: %w", key, err)
		}
		dict[key] = value
	}

	return dict, nil
}

// ParseIndirectObject parses "num gen obj ... endobj", including stream
// objects where a dictionary is followed by the stream keyword.
func (p *Parser) ParseIndirectObject() (*IndirectObject, error) {
	if err := p.skipComments(); err != nil {
		return nil, err
	}

	if p.currentToken.Type != TokenInteger {
		return nil, fmt.Errorf("expected object number, got %v", p.currentToken.Type)
	}
	num, err := strconv.ParseInt(string(p.currentToken.Value), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid object number: %w", err)
	}
	p.nextToken()

	if p.currentToken.Type != TokenInteger {
		return nil, fmt.Errorf("expected generation number, got %v", p.currentToken.Type)
	}
	gen, err := strconv.ParseInt(string(p.currentToken.Value), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid generation number: %w", err)
	}
	p.nextToken()

	if p.currentToken.Type != TokenKeyword || string(p.currentToken.Value) != "obj" {
		return nil, fmt.Errorf("expected 'obj' keyword, got %v", p.currentToken)
	}
	p.nextToken()

	obj, err := p.ParseObject()
	if err != nil {
		return nil, fmt.Errorf("error parsing indirect object value: %w", err)
	}

	if p.currentToken != nil && p.currentToken.Type == TokenKeyword && string(p.currentToken.Value) == "stream" {
		dict, ok := obj.(Dict)
		if !ok {
			return nil, fmt.Errorf("stream keyword must follow a dictionary, got %T", obj)
		}
		stream, err := p.parseStream(dict)
		if err != nil {
			return nil, fmt.Errorf("error parsing stream: %w", err)
		}
		obj = stream
	}

	if p.currentToken.Type != TokenKeyword || string(p.currentToken.Value) != "endobj" {
		return nil, fmt.Errorf("expected 'endobj' keyword, got %v", p.currentToken)
	}
	p.nextToken()

	return &IndirectObject{
		Ref: IndirectRef{
			Number:     int(num),
			Generation: int(gen),
		},
		Object: obj,
	}, nil
}

// parseStream reads the binary payload following the stream keyword.
// The payload length comes from /Length (resolved if indirect). When
// /Length is absent or does not land on the endstream keyword, the
// payload boundary is recovered by scanning for endstream instead.
func (p *Parser) parseStream(dict Dict) (*Stream, error) {
	if p.currentToken.Type != TokenKeyword || string(p.currentToken.Value) != "stream" {
		return nil, fmt.Errorf("expected 'stream' keyword")
	}

	length, haveLength, err := p.streamLength(dict)
	if err != nil {
		return nil, err
	}

	if err := p.lexer.SkipStreamEOL(); err != nil {
		return nil, fmt.Errorf("after stream keyword: %w", err)
	}

	var data []byte
	if haveLength {
		data, err = p.lexer.ReadBytes(length)
		if err != nil {
			return nil, fmt.Errorf("failed to read stream data: %w", err)
		}

		if p.endstreamFollows() {
			token, err := p.lexer.NextToken()
			if err != nil {
				return nil, fmt.Errorf("failed to read token after stream data: %w", err)
			}
			if token.Type != TokenKeyword || string(token.Value) != "endstream" {
				return nil, fmt.Errorf("expected 'endstream' keyword, got %q", string(token.Value))
			}
		} else {
			// /Length did not land on the endstream keyword. Treat
			// the declared length as a lower bound and recover the
			// true boundary by scanning.
			rest, err := p.scanToEndstream()
			if err != nil {
				return nil, err
			}
			data = append(data, rest...)
		}
	} else {
		data, err = p.scanToEndstream()
		if err != nil {
			return nil, err
		}
	}

	// Reload the lookahead so parsing continues after endstream.
	p.currentToken = nil
	p.peekToken = nil
	p.nextToken()
	p.nextToken()

	return &Stream{Dict: dict, Data: data}, nil
}

// streamLength extracts /Length from the stream dictionary. The second
// return value is false when no usable length is available, in which
// case the caller falls back to endstream scanning.
func (p *Parser) streamLength(dict Dict) (int, bool, error) {
	lengthObj := dict.Get("Length")
	if lengthObj == nil {
		return 0, false, nil
	}

	switch v := lengthObj.(type) {
	case Int:
		if v < 0 {
			return 0, false, fmt.Errorf("invalid stream length: %d", v)
		}
		return int(v), true, nil
	case IndirectRef:
		if p.resolver == nil {
			return 0, false, nil
		}
		resolved, err := p.resolver.ResolveReference(v)
		if err != nil {
			return 0, false, nil
		}
		resolvedInt, ok := resolved.(Int)
		if !ok || resolvedInt < 0 {
			return 0, false, nil
		}
		return int(resolvedInt), true, nil
	default:
		return 0, false, fmt.Errorf("invalid type for stream length: %T", lengthObj)
	}
}

var endstreamMarker = []byte("endstream")

// endstreamFollows reports whether the next non-whitespace input is the
// endstream keyword, without consuming anything.
func (p *Parser) endstreamFollows() bool {
	buf := p.lexer.peekBytes(len(endstreamMarker) + 4)
	i := 0
	for i < len(buf) && isWhitespace(buf[i]) {
		i++
	}
	return bytes.HasPrefix(buf[i:], endstreamMarker)
}

// scanToEndstream reads raw bytes until the endstream keyword, consuming
// it. The EOL immediately before the keyword belongs to the syntax, not
// the payload, and is stripped.
func (p *Parser) scanToEndstream() ([]byte, error) {
	var buf bytes.Buffer
	for {
		b, err := p.lexer.readByte()
		if err != nil {
			return nil, fmt.Errorf("stream without endstream keyword: %w", err)
		}
		buf.WriteByte(b)

		if b == 'm' && bytes.HasSuffix(buf.Bytes(), endstreamMarker) {
			data := buf.Bytes()[:buf.Len()-len(endstreamMarker)]
			if n := len(data); n > 0 && data[n-1] == '\n' {
				data = data[:n-1]
				if n := len(data); n > 0 && data[n-1] == '\r' {
					data = data[:n-1]
				}
			} else if n > 0 && data[n-1] == '\r' {
				data = data[:n-1]
			}
			out := make([]byte, len(data))
			copy(out, data)
			return out, nil
		}
	}
}
