package core

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// TokenType classifies a lexical token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenComment
	TokenKeyword     // true, false, null, obj, endobj, stream, endstream, ...
	TokenInteger     // 123
	TokenReal        // 3.14
	TokenString      // (hello) or <48656C6C6F> after hex decoding
	TokenHexString   // <48656C6C6F>
	TokenName        // /Type
	TokenArrayStart  // [
	TokenArrayEnd    // ]
	TokenDictStart   // <<
	TokenDictEnd     // >>
	TokenIndirectRef // the keyword R
)

// Token is a single lexical token together with its byte position.
type Token struct {
	Type  TokenType
	Value []byte
	Pos   int64
}

// Lexer tokenizes PDF syntax from an io.Reader.
type Lexer struct {
	reader *bufio.Reader
	pos    int64
}

// NewLexer creates a lexer reading from r.
func NewLexer(r io.Reader) *Lexer {
	return &Lexer{reader: bufio.NewReader(r)}
}

// NextToken returns the next token, skipping whitespace.
func (l *Lexer) NextToken() (*Token, error) {
	l.skipWhitespace()

	b, err := l.peek()
	if err == io.EOF {
		return &Token{Type: TokenEOF, Pos: l.pos}, nil
	}
	if err != nil {
		return nil, err
	}

	if b == '%' {
		return l.readComment()
	}

	switch b {
	case '[':
		l.readByte()
		return &Token{Type: TokenArrayStart, Value: []byte{'['}, Pos: l.pos - 1}, nil
	case ']':
		l.readByte()
		return &Token{Type: TokenArrayEnd, Value: []byte{']'}, Pos: l.pos - 1}, nil
	case '(':
		return l.readString()
	case '<':
		// << starts a dictionary, anything else is a hex string.
		next, err := l.reader.Peek(2)
		if err == nil && len(next) == 2 && next[1] == '<' {
			l.readByte()
			l.readByte()
			return &Token{Type: TokenDictStart, Value: []byte("<<"), Pos: l.pos - 2}, nil
		}
		return l.readHexString()
	case '>':
		next, err := l.reader.Peek(2)
		if err == nil && len(next) == 2 && next[1] == '>' {
			l.readByte()
			l.readByte()
			return &Token{Type: TokenDictEnd, Value: []byte(">>"), Pos: l.pos - 2}, nil
		}
		l.readByte()
		return nil, fmt.Errorf("unexpected '>' at position %d", l.pos-1)
	case '/':
		return l.readName()
	}

	if isDigit(b) || b == '-' || b == '+' || b == '.' {
		return l.readNumber()
	}
	if isAlpha(b) {
		return l.readKeyword()
	}

	// Consume the offending byte so a retrying caller makes progress
	// instead of seeing the same byte forever.
	l.readByte()
	return nil, fmt.Errorf("unexpected character %q at position %d", b, l.pos-1)
}

func (l *Lexer) readByte() (byte, error) {
	b, err := l.reader.ReadByte()
	if err != nil {
		return 0, err
	}
	l.pos++
	return b, nil
}

func (l *Lexer) peek() (byte, error) {
	buf, err := l.reader.Peek(1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

// peekBytes returns up to n upcoming bytes without consuming them. At
// EOF fewer bytes may be returned.
func (l *Lexer) peekBytes(n int) []byte {
	buf, _ := l.reader.Peek(n)
	return buf
}

// skipWhitespace consumes PDF whitespace: space, tab, LF, CR, FF, NUL.
func (l *Lexer) skipWhitespace() {
	for {
		b, err := l.peek()
		if err != nil || !isWhitespace(b) {
			return
		}
		l.readByte()
	}
}

// readComment reads from % through the end of line.
func (l *Lexer) readComment() (*Token, error) {
	startPos := l.pos
	var buf bytes.Buffer

	b, err := l.readByte()
	if err != nil {
		return nil, err
	}
	buf.WriteByte(b)

	for {
		b, err := l.peek()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if b == '\r' || b == '\n' {
			l.readByte()
			if b == '\r' {
				if next, err := l.peek(); err == nil && next == '\n' {
					l.readByte()
				}
			}
			break
		}
		b, _ = l.readByte()
		buf.WriteByte(b)
	}

	return &Token{Type: TokenComment, Value: buf.Bytes(), Pos: startPos}, nil
}

// readString reads a literal string, handling nesting, escapes, octal
// codes and line continuations.
func (l *Lexer) readString() (*Token, error) {
	startPos := l.pos
	var buf bytes.Buffer

	if b, err := l.readByte(); err != nil {
		return nil, err
	} else if b != '(' {
		return nil, fmt.Errorf("expected '(' at position %d", l.pos-1)
	}

	depth := 1
	for depth > 0 {
		b, err := l.readByte()
		if err != nil {
			return nil, fmt.Errorf("unterminated string starting at %d: %w", startPos, err)
		}

		switch b {
		case '(':
			depth++
			buf.WriteByte(b)
		case ')':
			depth--
			if depth > 0 {
				buf.WriteByte(b)
			}
		case '\\':
			next, err := l.readByte()
			if err != nil {
				return nil, err
			}
			switch next {
			case 'n':
				buf.WriteByte('\n')
			case 'r':
				buf.WriteByte('\r')
			case 't':
				buf.WriteByte('\t')
			case 'b':
				buf.WriteByte('\b')
			case 'f':
				buf.WriteByte('\f')
			case '(', ')', '\\':
				buf.WriteByte(next)
			case '\r', '\n':
				// Line continuation: backslash-EOL is dropped.
				if next == '\r' {
					if p, err := l.peek(); err == nil && p == '\n' {
						l.readByte()
					}
				}
			case '0', '1', '2', '3', '4', '5', '6', '7':
				// Octal escape, up to three digits.
				val := next - '0'
				for i := 0; i < 2; i++ {
					p, err := l.peek()
					if err != nil || !isOctalDigit(p) {
						break
					}
					b, _ := l.readByte()
					val = val*8 + (b - '0')
				}
				buf.WriteByte(val)
			default:
				// Unknown escape keeps the escaped character.
				buf.WriteByte(next)
			}
		default:
			buf.WriteByte(b)
		}
	}

	return &Token{Type: TokenString, Value: buf.Bytes(), Pos: startPos}, nil
}

// readHexString reads <hex digits>, ignoring interior whitespace.
func (l *Lexer) readHexString() (*Token, error) {
	startPos := l.pos
	var buf bytes.Buffer

	if b, err := l.readByte(); err != nil {
		return nil, err
	} else if b != '<' {
		return nil, fmt.Errorf("expected '<' at position %d", l.pos-1)
	}

	for {
		b, err := l.readByte()
		if err != nil {
			return nil, fmt.Errorf("unterminated hex string starting at %d: %w", startPos, err)
		}
		if b == '>' {
			break
		}
		if isWhitespace(b) {
			continue
		}
		if !isHexDigit(b) {
			return nil, fmt.Errorf("invalid hex digit %q at position %d", b, l.pos-1)
		}
		buf.WriteByte(b)
	}

	return &Token{Type: TokenHexString, Value: buf.Bytes(), Pos: startPos}, nil
}

// readName reads a /Name, decoding #xx escapes.
func (l *Lexer) readName() (*Token, error) {
	startPos := l.pos
	var buf bytes.Buffer

	if b, err := l.readByte(); err != nil {
		return nil, err
	} else if b != '/' {
		return nil, fmt.Errorf("expected '/' at position %d", l.pos-1)
	}

	for {
		b, err := l.peek()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if isWhitespace(b) || isDelimiter(b) {
			break
		}
		b, _ = l.readByte()

		if b == '#' {
			h1, err := l.readByte()
			if err != nil {
				return nil, err
			}
			h2, err := l.readByte()
			if err != nil {
				return nil, err
			}
			if !isHexDigit(h1) || !isHexDigit(h2) {
				return nil, fmt.Errorf("invalid hex escape in name at position %d", l.pos-2)
			}
			buf.WriteByte(hexValue(h1)<<4 | hexValue(h2))
		} else {
			buf.WriteByte(b)
		}
	}

	return &Token{Type: TokenName, Value: buf.Bytes(), Pos: startPos}, nil
}

// readNumber reads an integer or real number.
func (l *Lexer) readNumber() (*Token, error) {
	startPos := l.pos
	var buf bytes.Buffer
	hasDecimal := false

	for {
		b, err := l.peek()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if b == '.' {
			if hasDecimal {
				break
			}
			hasDecimal = true
			b, _ = l.readByte()
			buf.WriteByte(b)
		} else if isDigit(b) || (buf.Len() == 0 && (b == '-' || b == '+')) {
			b, _ = l.readByte()
			buf.WriteByte(b)
		} else {
			break
		}
	}

	tokenType := TokenInteger
	if hasDecimal {
		tokenType = TokenReal
	}
	return &Token{Type: tokenType, Value: buf.Bytes(), Pos: startPos}, nil
}

// readKeyword reads an alphanumeric keyword. The single letter R is the
// indirect reference operator and gets its own token type.
func (l *Lexer) readKeyword() (*Token, error) {
	startPos := l.pos
	var buf bytes.Buffer

	for {
		b, err := l.peek()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if !isAlpha(b) && !isDigit(b) {
			break
		}
		b, _ = l.readByte()
		buf.WriteByte(b)
	}

	value := buf.Bytes()
	if len(value) == 1 && value[0] == 'R' {
		return &Token{Type: TokenIndirectRef, Value: value, Pos: startPos}, nil
	}
	return &Token{Type: TokenKeyword, Value: value, Pos: startPos}, nil
}

// SkipStreamEOL consumes the end-of-line marker that must follow the
// "stream" keyword: a single LF, or CR LF. A lone CR, though not a
// legal marker, occurs in the wild and is accepted.
func (l *Lexer) SkipStreamEOL() error {
	b, err := l.peek()
	if err != nil {
		return err
	}
	switch b {
	case '\n':
		l.readByte()
		return nil
	case '\r':
		l.readByte()
		if next, err := l.peek(); err == nil && next == '\n' {
			l.readByte()
		}
		return nil
	default:
		return fmt.Errorf("expected EOL after 'stream' keyword, got %q at position %d", b, l.pos)
	}
}

// ReadBytes reads exactly n bytes of raw stream data.
func (l *Lexer) ReadBytes(n int) ([]byte, error) {
	data := make([]byte, n)
	read, err := io.ReadFull(l.reader, data)
	l.pos += int64(read)
	if err != nil {
		return data[:read], fmt.Errorf("short stream read: expected %d bytes, got %d", n, read)
	}
	return data, nil
}

func isWhitespace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f' || b == 0
}

func isDelimiter(b byte) bool {
	switch b {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isDigit(b byte) bool      { return b >= '0' && b <= '9' }
func isOctalDigit(b byte) bool { return b >= '0' && b <= '7' }
func isAlpha(b byte) bool      { return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') }

func isHexDigit(b byte) bool {
	return isDigit(b) || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func hexValue(b byte) byte {
	switch {
	case b >= '0' && b <= '9':
		return b - '0'
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10
	}
	return 0
}
