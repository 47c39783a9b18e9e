package filters

import (
	"bytes"
	"fmt"
)

// ASCIIHexDecode decodes hexadecimal-encoded data. Whitespace between
// digits is ignored and > marks end of data; an odd trailing digit is
// padded with zero.
func ASCIIHexDecode(data []byte) ([]byte, error) {
	var result bytes.Buffer
	var pending byte
	havePending := false

	for _, c := range data {
		if isWhitespace(c) {
			continue
		}
		if c == '>' {
			break
		}

		v, err := hexDigit(c)
		if err != nil {
			return nil, err
		}
		if havePending {
			result.WriteByte(pending<<4 | v)
			havePending = false
		} else {
			pending = v
			havePending = true
		}
	}

	if havePending {
		result.WriteByte(pending << 4)
	}
	return result.Bytes(), nil
}

// ASCII85Decode decodes base-85 encoded data. Groups of five characters
// in '!'..'u' encode four bytes; 'z' abbreviates four zero bytes and ~>
// marks end of data. A trailing partial group is padded with 'u' and
// truncated on output.
func ASCII85Decode(data []byte) ([]byte, error) {
	var result bytes.Buffer

	i := 0
	for i < len(data) {
		c := data[i]

		if isWhitespace(c) {
			i++
			continue
		}
		if c == '~' {
			break
		}
		if c == 'z' {
			result.Write([]byte{0, 0, 0, 0})
			i++
			continue
		}

		var group [5]byte
		n := 0
		for n < 5 && i < len(data) {
			c := data[i]
			if isWhitespace(c) {
				i++
				continue
			}
			if c == '~' {
				break
			}
			if c < '!' || c > 'u' {
				return nil, fmt.Errorf("invalid ASCII85 character %q", c)
			}
			group[n] = c - '!'
			n++
			i++
		}

		if n == 0 {
			break
		}
		if n == 1 {
			return nil, fmt.Errorf("ASCII85 group of one character is invalid")
		}

		// Pad with the highest digit; the padding bytes are dropped.
		for j := n; j < 5; j++ {
			group[j] = 84
		}

		value := uint64(0)
		for _, d := range group {
			value = value*85 + uint64(d)
		}
		// Five digits can express values beyond 32 bits ("s8W-!" is the
		// largest valid group).
		if value > 0xFFFFFFFF {
			return nil, fmt.Errorf("ASCII85 group overflows 32 bits")
		}
		for j := 0; j < n-1; j++ {
			result.WriteByte(byte(value >> (24 - j*8)))
		}
	}

	return result.Bytes(), nil
}

func hexDigit(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	default:
		return 0, fmt.Errorf("invalid hex digit %q", c)
	}
}

// isWhitespace reports whether c is PDF whitespace.
func isWhitespace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f' || c == 0
}
