// Package parse reads PDF files into typed objects.
//
// # Quick Start
//
//	pdf, err := parse.Open(pdfBytes)
//	if err != nil {
//	    return err
//	}
//	catalog, err := pdf.Catalog()
//
// Cross-reference tables and streams are both supported, incremental updates
// are merged following the /Prev chain and objects stored in object streams
// are unpacked on demand. A damaged cross-reference section is rebuilt by
// scanning the file for object headers.
//
// A PDF is not safe for concurrent use: objects are cached as they are read.
package parse

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"sort"

	"go.uber.org/zap"
)

// ErrObjectNotFound is returned for object numbers with no live definition
var ErrObjectNotFound = errors.New("object not found")

// ParseOptions configures PDF parsing
type ParseOptions struct {
	Logger *zap.Logger
}

// PDF is a parsed PDF document
type PDF struct {
	data    []byte
	version string
	xref    map[int]xrefEntry
	trailer Dict
	log     *zap.Logger

	cache     map[int]Object
	objStms   map[int]map[int]Object
	resolving map[int]bool
	scanned   map[int]int64
}

// Open parses a PDF with default options
func Open(data []byte) (*PDF, error) {
	return OpenWithOptions(data, ParseOptions{})
}

var headerPattern = regexp.MustCompile(`%PDF-(\d+\.\d+)`)

// OpenWithOptions parses a PDF. Encrypted files open successfully so callers
// can report them; their strings and streams are not decrypted.
func OpenWithOptions(data []byte, opts ParseOptions) (*PDF, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("PDF too short: %d bytes", len(data))
	}

	head := data[:min(1024, len(data))]
	m := headerPattern.FindSubmatchIndex(head)
	if m == nil {
		return nil, fmt.Errorf("PDF header not found")
	}
	// offsets are relative to the header when junk precedes it
	if m[0] > 0 {
		data = data[m[0]:]
	}

	p := &PDF{
		data:      data,
		version:   string(head[m[2]:m[3]]),
		log:       opts.Logger,
		cache:     make(map[int]Object),
		objStms:   make(map[int]map[int]Object),
		resolving: make(map[int]bool),
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}

	if err := p.loadXRef(); err != nil {
		p.log.Info("cross-reference data unusable, rebuilding by scanning", zap.Error(err))
		p.cache = make(map[int]Object)
		if rerr := p.rebuildXRef(); rerr != nil {
			return nil, fmt.Errorf("parse failed: %v (rebuild: %w)", err, rerr)
		}
	}
	if _, ok := p.trailer["Root"]; !ok {
		return nil, fmt.Errorf("trailer has no /Root")
	}

	if catalog, err := p.Catalog(); err == nil {
		if v, ok := catalog.Name("Version"); ok && string(v) > p.version {
			p.version = string(v)
		}
	}
	return p, nil
}

// Version returns the PDF version from the header, or the catalog /Version
// when that is later
func (p *PDF) Version() string {
	return p.version
}

// Trailer returns the merged trailer dictionary
func (p *PDF) Trailer() Dict {
	return p.trailer
}

// IsEncrypted reports whether the trailer references an encryption dictionary
func (p *PDF) IsEncrypted() bool {
	_, ok := p.trailer["Encrypt"]
	return ok
}

// ID returns the two file identifiers from the trailer
func (p *PDF) ID() ([2][]byte, bool) {
	var id [2][]byte
	obj, err := p.Resolve(p.trailer["ID"])
	if err != nil {
		return id, false
	}
	arr, ok := obj.(Array)
	if !ok || len(arr) != 2 {
		return id, false
	}
	for i, v := range arr {
		switch s := v.(type) {
		case String:
			id[i] = []byte(s)
		case HexString:
			id[i] = []byte(s)
		default:
			return [2][]byte{}, false
		}
	}
	return id, true
}

// Catalog returns the document catalog
func (p *PDF) Catalog() (Dict, error) {
	obj, err := p.Resolve(p.trailer["Root"])
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	d, ok := obj.(Dict)
	if !ok {
		return nil, fmt.Errorf("catalog is not a dictionary")
	}
	return d, nil
}

// ObjectNumbers returns the numbers of all in-use objects in ascending order
func (p *PDF) ObjectNumbers() []int {
	nums := make([]int, 0, len(p.xref))
	for num, e := range p.xref {
		if num > 0 && e.kind != entryFree {
			nums = append(nums, num)
		}
	}
	sort.Ints(nums)
	return nums
}

// Generation returns the generation number recorded for num
func (p *PDF) Generation(num int) int {
	return p.xref[num].gen
}

// Resolve follows references until a direct object is reached. References
// to missing objects resolve to Null.
func (p *PDF) Resolve(obj Object) (Object, error) {
	for depth := 0; depth < 32; depth++ {
		ref, ok := obj.(Ref)
		if !ok {
			if obj == nil {
				return Null{}, nil
			}
			return obj, nil
		}
		next, err := p.Object(ref.Num)
		if errors.Is(err, ErrObjectNotFound) {
			return Null{}, nil
		}
		if err != nil {
			return nil, err
		}
		obj = next
	}
	return nil, fmt.Errorf("reference chain too deep")
}

// Object returns the object with the given number
func (p *PDF) Object(num int) (Object, error) {
	if obj, ok := p.cache[num]; ok {
		return obj, nil
	}
	e, ok := p.xref[num]
	if !ok || e.kind == entryFree {
		return nil, fmt.Errorf("object %d: %w", num, ErrObjectNotFound)
	}
	if p.resolving[num] {
		return nil, fmt.Errorf("object %d refers to itself while being read", num)
	}
	p.resolving[num] = true
	defer delete(p.resolving, num)

	var obj Object
	var err error
	switch e.kind {
	case entryOffset:
		obj, err = p.readObjectAt(num, e.offset)
	case entryCompressed:
		obj, err = p.readCompressed(num, e.stream)
	}
	if err != nil {
		return nil, err
	}
	p.cache[num] = obj
	return obj, nil
}

// readObjectAt reads object num at offset, falling back to a scan of the
// file when the offset is stale
func (p *PDF) readObjectAt(num int, offset int64) (Object, error) {
	got, obj, err := p.readIndirectAt(offset)
	if err == nil && got == num {
		return obj, nil
	}
	if alt, ok := p.scanObjects()[num]; ok && alt != offset {
		p.log.Debug("object not at recorded offset, using scanned position",
			zap.Int("object", num), zap.Int64("recorded", offset), zap.Int64("found", alt))
		got, obj, err = p.readIndirectAt(alt)
		if err == nil && got == num {
			return obj, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("object %d at offset %d: %w", num, offset, err)
	}
	return nil, fmt.Errorf("object %d: offset %d holds object %d", num, offset, got)
}

// readIndirectAt parses "N G obj ... endobj" at offset and returns N with the object
func (p *PDF) readIndirectAt(offset int64) (int, Object, error) {
	if offset < 0 || offset >= int64(len(p.data)) {
		return 0, nil, fmt.Errorf("offset %d out of bounds", offset)
	}
	l := &lexer{data: p.data, pos: int(offset)}
	num, err := l.readInt()
	if err != nil {
		return 0, nil, err
	}
	if _, err := l.readInt(); err != nil {
		return 0, nil, err
	}
	l.skipSpace()
	if !l.hasKeyword("obj") {
		return 0, nil, fmt.Errorf("missing obj keyword at offset %d", l.pos)
	}
	l.pos += len("obj")

	obj, err := l.readObject()
	if err != nil {
		return 0, nil, err
	}
	l.skipSpace()
	dict, isDict := obj.(Dict)
	if !isDict || !l.hasKeyword("stream") {
		return int(num), obj, nil
	}

	l.pos += len("stream")
	if l.pos < len(l.data) && l.data[l.pos] == '\r' {
		l.pos++
	}
	if l.pos < len(l.data) && l.data[l.pos] == '\n' {
		l.pos++
	}
	start := l.pos
	end := -1
	if length, ok := p.streamLength(dict); ok && length >= 0 && start+length <= len(l.data) {
		after := &lexer{data: l.data, pos: start + length}
		after.skipSpace()
		if after.hasKeyword("endstream") {
			end = start + length
		}
	}
	if end < 0 {
		idx := bytes.Index(l.data[start:], []byte("endstream"))
		if idx < 0 {
			return 0, nil, fmt.Errorf("endstream not found for object %d", num)
		}
		end = start + idx
		if end > start && l.data[end-1] == '\n' {
			end--
		}
		if end > start && l.data[end-1] == '\r' {
			end--
		}
	}
	return int(num), &Stream{Dict: dict, Data: l.data[start:end]}, nil
}

// streamLength resolves /Length, which may be an indirect reference
func (p *PDF) streamLength(dict Dict) (int, bool) {
	obj := dict["Length"]
	if ref, ok := obj.(Ref); ok {
		if p.xref == nil {
			return 0, false
		}
		resolved, err := p.Object(ref.Num)
		if err != nil {
			return 0, false
		}
		obj = resolved
	}
	n, ok := obj.(Integer)
	return int(n), ok
}

func (p *PDF) readCompressed(num, stream int) (Object, error) {
	objects, err := p.objectStream(stream)
	if err != nil {
		return nil, fmt.Errorf("object %d in object stream %d: %w", num, stream, err)
	}
	obj, ok := objects[num]
	if !ok {
		return nil, fmt.Errorf("object %d: %w in object stream %d", num, ErrObjectNotFound, stream)
	}
	return obj, nil
}

// objectStream unpacks all objects of an object stream
func (p *PDF) objectStream(num int) (map[int]Object, error) {
	if objects, ok := p.objStms[num]; ok {
		return objects, nil
	}
	if e := p.xref[num]; e.kind != entryOffset {
		return nil, fmt.Errorf("object stream %d is not stored at a file offset", num)
	}
	obj, err := p.Object(num)
	if err != nil {
		return nil, err
	}
	s, ok := obj.(*Stream)
	if !ok {
		return nil, fmt.Errorf("object %d is not a stream", num)
	}
	data, err := p.StreamData(s)
	if err != nil {
		return nil, err
	}
	n, _ := s.Dict.Int("N")
	first, _ := s.Dict.Int("First")
	if first < 0 || first > int64(len(data)) {
		return nil, fmt.Errorf("invalid /First %d", first)
	}

	if n < 0 || n > int64(len(data)) {
		return nil, fmt.Errorf("invalid /N %d", n)
	}

	header := &lexer{data: data[:first]}
	objects := make(map[int]Object, n)
	for i := int64(0); i < n; i++ {
		objNum, err := header.readInt()
		if err != nil {
			return nil, fmt.Errorf("object stream header: %w", err)
		}
		off, err := header.readInt()
		if err != nil {
			return nil, fmt.Errorf("object stream header: %w", err)
		}
		if off < 0 || first+off >= int64(len(data)) {
			return nil, fmt.Errorf("object %d: offset %d out of bounds", objNum, off)
		}
		body := &lexer{data: data, pos: int(first + off)}
		o, err := body.readObject()
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", objNum, err)
		}
		objects[int(objNum)] = o
	}
	p.objStms[num] = objects
	return objects, nil
}

// StreamData returns the decoded content of s
func (p *PDF) StreamData(s *Stream) ([]byte, error) {
	filterObj, err := p.Resolve(s.Dict["Filter"])
	if err != nil {
		return nil, err
	}
	parmsObj, err := p.Resolve(s.Dict["DecodeParms"])
	if err != nil {
		return nil, err
	}

	var filters []Name
	var parms []Dict
	switch f := filterObj.(type) {
	case Name:
		filters = []Name{f}
		d, _ := parmsObj.(Dict)
		parms = []Dict{d}
	case Array:
		parmArr, _ := parmsObj.(Array)
		for i, v := range f {
			name, ok := v.(Name)
			if !ok {
				return nil, fmt.Errorf("invalid filter %v", v)
			}
			filters = append(filters, name)
			var d Dict
			if i < len(parmArr) {
				resolved, err := p.Resolve(parmArr[i])
				if err != nil {
					return nil, err
				}
				d, _ = resolved.(Dict)
			}
			parms = append(parms, d)
		}
	}

	data := s.Data
	for i, f := range filters {
		data, err = DecodeFilter(data, f, parms[i])
		if err != nil {
			return nil, err
		}
	}
	return data, nil
}

// IsContainer reports whether obj only exists to hold other objects or
// cross-reference data. Such streams are rebuilt by writers, not copied.
func IsContainer(obj Object) bool {
	s, ok := obj.(*Stream)
	if !ok {
		return false
	}
	t, _ := s.Dict.Name("Type")
	return t == "ObjStm" || t == "XRef"
}
