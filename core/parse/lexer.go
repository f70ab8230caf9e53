package parse

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
)

// lexer reads PDF objects from a byte slice
type lexer struct {
	data []byte
	pos  int
}

func isWhitespace(c byte) bool {
	return c == 0 || c == '\t' || c == '\n' || c == '\f' || c == '\r' || c == ' '
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isRegular(c byte) bool {
	return !isWhitespace(c) && !isDelimiter(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func unhex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// skipSpace skips whitespace and comments
func (l *lexer) skipSpace() {
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if isWhitespace(c) {
			l.pos++
			continue
		}
		if c == '%' {
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
			continue
		}
		return
	}
}

// keyword reads a run of regular characters
func (l *lexer) keyword() string {
	start := l.pos
	for l.pos < len(l.data) && isRegular(l.data[l.pos]) {
		l.pos++
	}
	return string(l.data[start:l.pos])
}

// hasKeyword reports whether kw starts at the current position as a whole token
func (l *lexer) hasKeyword(kw string) bool {
	if !bytes.HasPrefix(l.data[l.pos:], []byte(kw)) {
		return false
	}
	end := l.pos + len(kw)
	return end >= len(l.data) || !isRegular(l.data[end])
}

func (l *lexer) readInt() (int64, error) {
	l.skipSpace()
	start := l.pos
	tok := l.keyword()
	n, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("expected integer at offset %d, found %q", start, tok)
	}
	return n, nil
}

func (l *lexer) readObject() (Object, error) {
	l.skipSpace()
	if l.pos >= len(l.data) {
		return nil, io.ErrUnexpectedEOF
	}

	c := l.data[l.pos]
	switch {
	case c == '/':
		return l.readName(), nil
	case c == '(':
		return l.readLiteral()
	case c == '<':
		if l.pos+1 < len(l.data) && l.data[l.pos+1] == '<' {
			return l.readDict()
		}
		return l.readHex()
	case c == '[':
		return l.readArray()
	case c == '+' || c == '-' || c == '.' || isDigit(c):
		return l.readNumberOrRef()
	}

	start := l.pos
	switch kw := l.keyword(); kw {
	case "true":
		return Bool(true), nil
	case "false":
		return Bool(false), nil
	case "null":
		return Null{}, nil
	case "":
		return nil, fmt.Errorf("unexpected %q at offset %d", c, start)
	default:
		return nil, fmt.Errorf("unexpected keyword %q at offset %d", kw, start)
	}
}

func isInteger(tok string) bool {
	if tok == "" {
		return false
	}
	i := 0
	if tok[0] == '+' || tok[0] == '-' {
		i = 1
	}
	if i == len(tok) {
		return false
	}
	for ; i < len(tok); i++ {
		if !isDigit(tok[i]) {
			return false
		}
	}
	return true
}

func isUnsigned(tok string) bool {
	return tok != "" && tok[0] != '+' && tok[0] != '-' && isInteger(tok)
}

// readNumberOrRef reads a number, or a reference when the number is followed
// by a generation number and R
func (l *lexer) readNumberOrRef() (Object, error) {
	start := l.pos
	tok := l.keyword()
	if !isInteger(tok) {
		f, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q at offset %d", tok, start)
		}
		return Real(f), nil
	}
	n, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid integer %q at offset %d", tok, start)
	}

	if isUnsigned(tok) {
		save := l.pos
		l.skipSpace()
		gen := l.keyword()
		if isUnsigned(gen) {
			l.skipSpace()
			if l.hasKeyword("R") {
				l.pos++
				g, _ := strconv.Atoi(gen)
				return Ref{Num: int(n), Gen: g}, nil
			}
		}
		l.pos = save
	}
	return Integer(n), nil
}

func (l *lexer) readName() Name {
	l.pos++ // '/'
	var b []byte
	for l.pos < len(l.data) && isRegular(l.data[l.pos]) {
		c := l.data[l.pos]
		if c == '#' && l.pos+2 < len(l.data) {
			hi, ok1 := unhex(l.data[l.pos+1])
			lo, ok2 := unhex(l.data[l.pos+2])
			if ok1 && ok2 {
				b = append(b, hi<<4|lo)
				l.pos += 3
				continue
			}
		}
		b = append(b, c)
		l.pos++
	}
	return Name(b)
}

func (l *lexer) readLiteral() (Object, error) {
	start := l.pos
	l.pos++ // '('
	depth := 1
	var b []byte
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		switch c {
		case '(':
			depth++
			b = append(b, c)
		case ')':
			depth--
			if depth == 0 {
				return String(b), nil
			}
			b = append(b, c)
		case '\r':
			// bare CR and CRLF both mean a newline
			if l.pos < len(l.data) && l.data[l.pos] == '\n' {
				l.pos++
			}
			b = append(b, '\n')
		case '\\':
			if l.pos >= len(l.data) {
				break
			}
			e := l.data[l.pos]
			l.pos++
			switch e {
			case 'n':
				b = append(b, '\n')
			case 'r':
				b = append(b, '\r')
			case 't':
				b = append(b, '\t')
			case 'b':
				b = append(b, '\b')
			case 'f':
				b = append(b, '\f')
			case '\r':
				if l.pos < len(l.data) && l.data[l.pos] == '\n' {
					l.pos++
				}
			case '\n':
			case '0', '1', '2', '3', '4', '5', '6', '7':
				v := int(e - '0')
				for i := 0; i < 2 && l.pos < len(l.data) && l.data[l.pos] >= '0' && l.data[l.pos] <= '7'; i++ {
					v = v*8 + int(l.data[l.pos]-'0')
					l.pos++
				}
				b = append(b, byte(v))
			default:
				b = append(b, e)
			}
		default:
			b = append(b, c)
		}
	}
	return nil, fmt.Errorf("unterminated string starting at offset %d", start)
}

func (l *lexer) readHex() (Object, error) {
	start := l.pos
	l.pos++ // '<'
	var b []byte
	var hi byte
	half := false
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		if c == '>' {
			if half {
				b = append(b, hi<<4)
			}
			return HexString(b), nil
		}
		if isWhitespace(c) {
			continue
		}
		v, ok := unhex(c)
		if !ok {
			return nil, fmt.Errorf("invalid hex digit %q in string at offset %d", c, start)
		}
		if half {
			b = append(b, hi<<4|v)
		} else {
			hi = v
		}
		half = !half
	}
	return nil, fmt.Errorf("unterminated hex string starting at offset %d", start)
}

func (l *lexer) readArray() (Object, error) {
	l.pos++ // '['
	arr := Array{}
	for {
		l.skipSpace()
		if l.pos >= len(l.data) {
			return nil, io.ErrUnexpectedEOF
		}
		if l.data[l.pos] == ']' {
			l.pos++
			return arr, nil
		}
		obj, err := l.readObject()
		if err != nil {
			return nil, err
		}
		arr = append(arr, obj)
	}
}

func (l *lexer) readDict() (Object, error) {
	l.pos += 2 // "<<"
	dict := Dict{}
	for {
		l.skipSpace()
		if l.pos >= len(l.data) {
			return nil, io.ErrUnexpectedEOF
		}
		if bytes.HasPrefix(l.data[l.pos:], []byte(">>")) {
			l.pos += 2
			return dict, nil
		}
		if l.data[l.pos] != '/' {
			return nil, fmt.Errorf("dictionary key at offset %d is not a name", l.pos)
		}
		key := l.readName()
		value, err := l.readObject()
		if err != nil {
			return nil, fmt.Errorf("value of /%s: %w", key, err)
		}
		if _, isNull := value.(Null); !isNull {
			dict[key] = value
		}
	}
}
