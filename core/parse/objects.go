package parse

import (
	"fmt"
	"sort"
)

// Object is any PDF object value
type Object interface {
	isObject()
}

// Null is the PDF null object
type Null struct{}

// Bool is true or false
type Bool bool

// Integer is a PDF integer
type Integer int64

// Real is a PDF real number
type Real float64

// Name is a PDF name without the leading slash, with #xx escapes decoded
type Name string

// String is a literal string with escapes decoded
type String []byte

// HexString is a hexadecimal string, kept distinct so it is written back as hex
type HexString []byte

// Array is a PDF array
type Array []Object

// Dict is a PDF dictionary. Entries whose value is null are not stored.
type Dict map[Name]Object

// Ref is an indirect reference "Num Gen R"
type Ref struct {
	Num int
	Gen int
}

// Stream is a stream dictionary with its still-encoded data
type Stream struct {
	Dict Dict
	Data []byte
}

func (Null) isObject()      {}
func (Bool) isObject()      {}
func (Integer) isObject()   {}
func (Real) isObject()      {}
func (Name) isObject()      {}
func (String) isObject()    {}
func (HexString) isObject() {}
func (Array) isObject()     {}
func (Dict) isObject()      {}
func (Ref) isObject()       {}
func (*Stream) isObject()   {}

func (r Ref) String() string {
	return fmt.Sprintf("%d %d R", r.Num, r.Gen)
}

// Name returns the name stored under key, if it is a direct name
func (d Dict) Name(key Name) (Name, bool) {
	n, ok := d[key].(Name)
	return n, ok
}

// Int returns the integer stored under key, if it is a direct integer
func (d Dict) Int(key Name) (int64, bool) {
	switch v := d[key].(type) {
	case Integer:
		return int64(v), true
	case Real:
		return int64(v), true
	}
	return 0, false
}

// Keys returns the dictionary keys in sorted order
func (d Dict) Keys() []Name {
	keys := make([]Name, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Clone returns a shallow copy of d
func (d Dict) Clone() Dict {
	c := make(Dict, len(d))
	for k, v := range d {
		c[k] = v
	}
	return c
}

// Text decodes a PDF text string: UTF-16BE when it starts with a byte order
// mark, PDFDocEncoding (treated as Latin-1) otherwise.
func Text(obj Object) string {
	var b []byte
	switch v := obj.(type) {
	case String:
		b = v
	case HexString:
		b = v
	case Name:
		return string(v)
	default:
		return ""
	}
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		runes := make([]rune, 0, len(b)/2)
		for i := 2; i+1 < len(b); i += 2 {
			u := rune(b[i])<<8 | rune(b[i+1])
			if u >= 0xD800 && u < 0xDC00 && i+3 < len(b) {
				lo := rune(b[i+2])<<8 | rune(b[i+3])
				if lo >= 0xDC00 && lo < 0xE000 {
					runes = append(runes, (u-0xD800)<<10+(lo-0xDC00)+0x10000)
					i += 2
					continue
				}
			}
			runes = append(runes, u)
		}
		return string(runes)
	}
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}
