package parse

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"go.uber.org/zap"
)

type entryKind int

const (
	entryFree entryKind = iota
	entryOffset
	entryCompressed
)

// xrefEntry locates one object: at a byte offset or inside an object stream
type xrefEntry struct {
	kind   entryKind
	offset int64
	gen    int
	stream int // containing object stream, compressed entries only
	index  int // index within the object stream
}

// xrefSection is one cross-reference section with its trailer
type xrefSection struct {
	offset  int64
	entries map[int]xrefEntry
	trailer Dict
}

// findLastStartXRef returns the offset recorded after the last startxref keyword
func findLastStartXRef(data []byte) (int64, error) {
	idx := bytes.LastIndex(data, []byte("startxref"))
	if idx < 0 {
		return 0, fmt.Errorf("startxref not found")
	}
	l := &lexer{data: data, pos: idx + len("startxref")}
	offset, err := l.readInt()
	if err != nil {
		return 0, fmt.Errorf("invalid startxref value: %v", err)
	}
	return offset, nil
}

// loadXRef follows the /Prev chain from the last startxref and merges all
// sections, oldest first, so that entries of later revisions win
func (p *PDF) loadXRef() error {
	start, err := findLastStartXRef(p.data)
	if err != nil {
		return err
	}

	var sections []*xrefSection
	visited := make(map[int64]bool)
	offset := start
	for !visited[offset] {
		visited[offset] = true
		section, err := p.readXRefSection(offset)
		if err != nil {
			if len(sections) == 0 {
				return fmt.Errorf("cross-reference section at %d: %w", offset, err)
			}
			p.log.Debug("ignoring unreadable previous cross-reference section",
				zap.Int64("offset", offset), zap.Error(err))
			break
		}
		sections = append(sections, section)

		// hybrid files keep the compressed entries in a separate stream
		if stm, ok := section.trailer.Int("XRefStm"); ok && !visited[stm] {
			visited[stm] = true
			if hidden, err := p.readXRefSection(stm); err == nil {
				for num, e := range hidden.entries {
					if _, ok := section.entries[num]; !ok {
						section.entries[num] = e
					}
				}
			}
		}

		prev, ok := section.trailer.Int("Prev")
		if !ok || prev < 0 || prev >= int64(len(p.data)) {
			break
		}
		offset = prev
	}

	p.xref = make(map[int]xrefEntry)
	p.trailer = Dict{}
	for i := len(sections) - 1; i >= 0; i-- {
		for num, e := range sections[i].entries {
			p.xref[num] = e
		}
		for k, v := range sections[i].trailer {
			p.trailer[k] = v
		}
	}
	for _, k := range []Name{"Prev", "XRefStm", "Type", "W", "Index", "Filter", "DecodeParms", "Length"} {
		delete(p.trailer, k)
	}

	p.log.Debug("loaded cross-reference data",
		zap.Int("sections", len(sections)),
		zap.Int("entries", len(p.xref)))
	return nil
}

func (p *PDF) readXRefSection(offset int64) (*xrefSection, error) {
	if offset < 0 || offset >= int64(len(p.data)) {
		return nil, fmt.Errorf("offset %d out of bounds", offset)
	}
	l := &lexer{data: p.data, pos: int(offset)}
	l.skipSpace()
	if l.hasKeyword("xref") {
		l.pos += len("xref")
		return p.readXRefTable(l, offset)
	}
	return p.readXRefStream(offset)
}

// readXRefTable parses a traditional table. Entries are read as tokens so
// sections of any length and with non-standard line endings are accepted.
func (p *PDF) readXRefTable(l *lexer, offset int64) (*xrefSection, error) {
	section := &xrefSection{offset: offset, entries: make(map[int]xrefEntry)}
	for {
		l.skipSpace()
		if l.pos >= len(l.data) {
			return nil, fmt.Errorf("trailer not found")
		}
		if l.hasKeyword("trailer") {
			l.pos += len("trailer")
			obj, err := l.readObject()
			if err != nil {
				return nil, fmt.Errorf("trailer: %w", err)
			}
			trailer, ok := obj.(Dict)
			if !ok {
				return nil, fmt.Errorf("trailer is not a dictionary")
			}
			section.trailer = trailer
			return section, nil
		}

		first, err := l.readInt()
		if err != nil {
			return nil, err
		}
		count, err := l.readInt()
		if err != nil {
			return nil, err
		}
		for i := int64(0); i < count; i++ {
			off, err := l.readInt()
			if err != nil {
				return nil, err
			}
			gen, err := l.readInt()
			if err != nil {
				return nil, err
			}
			l.skipSpace()
			num := int(first + i)
			switch flag := l.keyword(); flag {
			case "n":
				section.entries[num] = xrefEntry{kind: entryOffset, offset: off, gen: int(gen)}
			case "f":
				section.entries[num] = xrefEntry{kind: entryFree, gen: int(gen)}
			default:
				return nil, fmt.Errorf("invalid entry flag %q for object %d", flag, num)
			}
		}
	}
}

// readXRefStream parses a PDF 1.5 cross-reference stream
func (p *PDF) readXRefStream(offset int64) (*xrefSection, error) {
	_, obj, err := p.readIndirectAt(offset)
	if err != nil {
		return nil, err
	}
	s, ok := obj.(*Stream)
	if !ok {
		return nil, fmt.Errorf("object at %d is not a cross-reference stream", offset)
	}
	if t, _ := s.Dict.Name("Type"); t != "XRef" {
		return nil, fmt.Errorf("stream at %d has /Type /%s, expected /XRef", offset, t)
	}
	data, err := p.StreamData(s)
	if err != nil {
		return nil, fmt.Errorf("cross-reference stream: %w", err)
	}

	wArr, _ := s.Dict["W"].(Array)
	if len(wArr) != 3 {
		return nil, fmt.Errorf("cross-reference stream /W must have 3 entries")
	}
	var w [3]int
	for i, v := range wArr {
		n, ok := v.(Integer)
		if !ok || n < 0 || n > 8 {
			return nil, fmt.Errorf("invalid /W entry %v", v)
		}
		w[i] = int(n)
	}
	entrySize := w[0] + w[1] + w[2]
	if entrySize == 0 {
		return nil, fmt.Errorf("invalid entry size")
	}

	var subsections [][2]int64
	if idx, ok := s.Dict["Index"].(Array); ok {
		for i := 0; i+1 < len(idx); i += 2 {
			first, ok1 := idx[i].(Integer)
			count, ok2 := idx[i+1].(Integer)
			if !ok1 || !ok2 {
				return nil, fmt.Errorf("invalid /Index array")
			}
			subsections = append(subsections, [2]int64{int64(first), int64(count)})
		}
	} else {
		size, _ := s.Dict.Int("Size")
		subsections = [][2]int64{{0, size}}
	}

	field := func(b []byte) int64 {
		var v int64
		for _, c := range b {
			v = v<<8 | int64(c)
		}
		return v
	}

	section := &xrefSection{offset: offset, entries: make(map[int]xrefEntry), trailer: s.Dict}
	pos := 0
	for _, sub := range subsections {
		for num := sub[0]; num < sub[0]+sub[1]; num++ {
			if pos+entrySize > len(data) {
				break
			}
			entry := data[pos : pos+entrySize]
			pos += entrySize

			typ := int64(1) // a zero-width type field means type 1
			if w[0] > 0 {
				typ = field(entry[:w[0]])
			}
			f2 := field(entry[w[0] : w[0]+w[1]])
			f3 := field(entry[w[0]+w[1]:])

			switch typ {
			case 0:
				section.entries[int(num)] = xrefEntry{kind: entryFree, gen: int(f3)}
			case 1:
				section.entries[int(num)] = xrefEntry{kind: entryOffset, offset: f2, gen: int(f3)}
			case 2:
				section.entries[int(num)] = xrefEntry{kind: entryCompressed, stream: int(f2), index: int(f3)}
			}
		}
	}
	return section, nil
}

var objHeader = regexp.MustCompile(`(\d+)[\x00\t\n\f\r ]+(\d+)[\x00\t\n\f\r ]+obj\b`)

// scanObjects locates every "N G obj" header in the file. Later definitions
// win, matching incremental update semantics.
func (p *PDF) scanObjects() map[int]int64 {
	if p.scanned != nil {
		return p.scanned
	}
	p.scanned = make(map[int]int64)
	for _, m := range objHeader.FindAllSubmatchIndex(p.data, -1) {
		// reject matches that continue a longer number, e.g. "15 0 obj" inside "115 0 obj"
		if m[0] > 0 && isDigit(p.data[m[0]-1]) {
			continue
		}
		num, err := strconv.Atoi(string(p.data[m[2]:m[3]]))
		if err != nil {
			continue
		}
		p.scanned[num] = int64(m[0])
	}
	return p.scanned
}

// rebuildXRef reconstructs cross-reference data for files whose xref is
// missing or damaged
func (p *PDF) rebuildXRef() error {
	offsets := p.scanObjects()
	if len(offsets) == 0 {
		return fmt.Errorf("no objects found")
	}
	p.xref = make(map[int]xrefEntry, len(offsets))
	for num, off := range offsets {
		p.xref[num] = xrefEntry{kind: entryOffset, offset: off}
	}

	p.trailer = Dict{}
	if idx := bytes.LastIndex(p.data, []byte("trailer")); idx >= 0 {
		l := &lexer{data: p.data, pos: idx + len("trailer")}
		if obj, err := l.readObject(); err == nil {
			if d, ok := obj.(Dict); ok {
				p.trailer = d
			}
		}
	}
	delete(p.trailer, "Prev")
	delete(p.trailer, "XRefStm")

	if _, ok := p.trailer["Root"]; !ok {
		nums := make([]int, 0, len(offsets))
		for num := range offsets {
			nums = append(nums, num)
		}
		sort.Sort(sort.Reverse(sort.IntSlice(nums)))
		for _, num := range nums {
			obj, err := p.Object(num)
			if err != nil {
				continue
			}
			if d, ok := obj.(Dict); ok {
				if t, _ := d.Name("Type"); t == "Catalog" {
					p.trailer["Root"] = Ref{Num: num}
					break
				}
			}
		}
	}
	if _, ok := p.trailer["Root"]; !ok {
		return fmt.Errorf("no document catalog found")
	}
	return nil
}
