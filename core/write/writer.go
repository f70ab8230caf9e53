// Package write serializes PDF object graphs built from core/parse values
package write

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/benedoc-inc/facturx/core/parse"
	"github.com/benedoc-inc/facturx/types"
)

// PDFObject is an indirect object queued for output
type PDFObject struct {
	Number     int
	Generation int
	Value      parse.Object
}

// PDFWriter builds a complete PDF file with a classic cross-reference table
type PDFWriter struct {
	objects    map[int]*PDFObject
	nextObjNum int
	rootRef    *parse.Ref
	infoRef    *parse.Ref
	fileID     [2][]byte
	hasFileID  bool
	pdfVersion string
}

// NewPDFWriter creates a new PDF writer
func NewPDFWriter() *PDFWriter {
	return &PDFWriter{
		objects:    make(map[int]*PDFObject),
		nextObjNum: 1,
		pdfVersion: "1.7",
	}
}

// SetVersion sets the PDF version (e.g., "1.7")
func (w *PDFWriter) SetVersion(version string) {
	w.pdfVersion = version
}

// Version returns the header version that will be written
func (w *PDFWriter) Version() string {
	return w.pdfVersion
}

// AddObject adds a new object and returns its object number
func (w *PDFWriter) AddObject(obj parse.Object) int {
	objNum := w.nextObjNum
	w.SetObject(objNum, obj)
	return objNum
}

// AddStreamObject adds a stream object, Flate-compressing data when asked.
// Filter and Length are set on dict.
func (w *PDFWriter) AddStreamObject(dict parse.Dict, data []byte, compress bool) int {
	if dict == nil {
		dict = parse.Dict{}
	}
	streamData := data
	if compress && len(data) > 0 {
		streamData = Deflate(data)
		dict["Filter"] = parse.Name("FlateDecode")
	}
	dict["Length"] = parse.Integer(len(streamData))
	return w.AddObject(&parse.Stream{Dict: dict, Data: streamData})
}

// SetObject sets or replaces an object at a specific number with generation 0
func (w *PDFWriter) SetObject(objNum int, obj parse.Object) {
	w.SetObjectWithGeneration(objNum, 0, obj)
}

// SetObjectWithGeneration sets an object keeping the generation references use
func (w *PDFWriter) SetObjectWithGeneration(objNum, gen int, obj parse.Object) {
	w.objects[objNum] = &PDFObject{
		Number:     objNum,
		Generation: gen,
		Value:      obj,
	}
	if objNum >= w.nextObjNum {
		w.nextObjNum = objNum + 1
	}
}

// Object returns a queued object
func (w *PDFWriter) Object(objNum int) (parse.Object, bool) {
	obj, ok := w.objects[objNum]
	if !ok {
		return nil, false
	}
	return obj.Value, true
}

// Ref returns the reference to a queued object
func (w *PDFWriter) Ref(objNum int) parse.Ref {
	if obj, ok := w.objects[objNum]; ok {
		return parse.Ref{Num: objNum, Gen: obj.Generation}
	}
	return parse.Ref{Num: objNum}
}

// SetRoot sets the root (catalog) object reference
func (w *PDFWriter) SetRoot(objNum int) {
	ref := w.Ref(objNum)
	w.rootRef = &ref
}

// SetInfo sets the info dictionary object reference
func (w *PDFWriter) SetInfo(objNum int) {
	ref := w.Ref(objNum)
	w.infoRef = &ref
}

// SetFileID sets the two parts of the trailer /ID
func (w *PDFWriter) SetFileID(id [2][]byte) {
	w.fileID = id
	w.hasFileID = true
}

// NextObjectNumber returns the next available object number
func (w *PDFWriter) NextObjectNumber() int {
	return w.nextObjNum
}

// Write outputs the complete PDF to the given writer
func (w *PDFWriter) Write(out io.Writer) error {
	if w.rootRef == nil {
		return types.NewError(types.ErrCodeWriteError, "no root object set")
	}

	var buf bytes.Buffer

	// Write header
	buf.WriteString(fmt.Sprintf("%%PDF-%s\n", w.pdfVersion))
	buf.Write([]byte{0x25, 0xE2, 0xE3, 0xCF, 0xD3, 0x0A}) // Binary marker

	var objNums []int
	for num := range w.objects {
		objNums = append(objNums, num)
	}
	sort.Ints(objNums)

	positions := make(map[int]int64)
	for _, objNum := range objNums {
		obj := w.objects[objNum]
		positions[objNum] = int64(buf.Len())

		buf.WriteString(fmt.Sprintf("%d %d obj\n", objNum, obj.Generation))
		if s, ok := obj.Value.(*parse.Stream); ok {
			dict := s.Dict.Clone()
			if dict == nil {
				dict = parse.Dict{}
			}
			dict["Length"] = parse.Integer(len(s.Data))
			if err := writeObject(&buf, dict); err != nil {
				return types.WrapErrorf(types.ErrCodeWriteError, err, "object %d", objNum)
			}
			buf.WriteString("\nstream\n")
			buf.Write(s.Data)
			buf.WriteString("\nendstream")
		} else if err := writeObject(&buf, obj.Value); err != nil {
			return types.WrapErrorf(types.ErrCodeWriteError, err, "object %d", objNum)
		}
		buf.WriteString("\nendobj\n")
	}

	// Write traditional xref table
	xrefPos := int64(buf.Len())
	buf.WriteString("xref\n")
	buf.WriteString(fmt.Sprintf("0 %d\n", w.nextObjNum))
	buf.WriteString(fmt.Sprintf("%010d %05d f \n", 0, 65535))
	for i := 1; i < w.nextObjNum; i++ {
		if pos, ok := positions[i]; ok {
			buf.WriteString(fmt.Sprintf("%010d %05d n \n", pos, w.objects[i].Generation))
		} else {
			buf.WriteString(fmt.Sprintf("%010d %05d f \n", 0, 1))
		}
	}

	trailer := parse.Dict{
		"Size": parse.Integer(w.nextObjNum),
		"Root": *w.rootRef,
	}
	if w.infoRef != nil {
		trailer["Info"] = *w.infoRef
	}
	if w.hasFileID {
		trailer["ID"] = parse.Array{parse.HexString(w.fileID[0]), parse.HexString(w.fileID[1])}
	}
	buf.WriteString("trailer\n")
	if err := writeObject(&buf, trailer); err != nil {
		return types.WrapError(types.ErrCodeWriteError, "trailer", err)
	}
	buf.WriteString(fmt.Sprintf("\nstartxref\n%d\n%%%%EOF\n", xrefPos))

	if _, err := out.Write(buf.Bytes()); err != nil {
		return types.WrapError(types.ErrCodeWriteError, "failed to write PDF", err)
	}
	return nil
}

// Bytes returns the complete PDF as a byte slice
func (w *PDFWriter) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := w.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Deflate compresses data with zlib as FlateDecode expects
func Deflate(data []byte) []byte {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	zw.Write(data)
	zw.Close()
	return buf.Bytes()
}

// Serialize returns the PDF syntax of a direct object
func Serialize(obj parse.Object) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeObject(&buf, obj); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeObject(buf *bytes.Buffer, obj parse.Object) error {
	switch v := obj.(type) {
	case nil, parse.Null:
		buf.WriteString("null")
	case parse.Bool:
		if v {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case parse.Integer:
		buf.WriteString(strconv.FormatInt(int64(v), 10))
	case parse.Real:
		buf.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 64))
	case parse.Name:
		buf.WriteString(EscapeName(v))
	case parse.String:
		writeLiteral(buf, v)
	case parse.HexString:
		buf.WriteString(fmt.Sprintf("<%X>", []byte(v)))
	case parse.Ref:
		buf.WriteString(v.String())
	case parse.Array:
		buf.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				buf.WriteByte(' ')
			}
			if err := writeObject(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case parse.Dict:
		buf.WriteString("<<")
		// Sort keys for consistent output
		for _, key := range v.Keys() {
			buf.WriteString(EscapeName(key))
			buf.WriteByte(' ')
			if err := writeObject(buf, v[key]); err != nil {
				return err
			}
		}
		buf.WriteString(">>")
	case *parse.Stream:
		return fmt.Errorf("stream objects must be indirect")
	default:
		return fmt.Errorf("unsupported object type %T", obj)
	}
	return nil
}

// writeLiteral writes a literal string, escaping the bytes a reader would reinterpret
func writeLiteral(buf *bytes.Buffer, s []byte) {
	buf.WriteByte('(')
	for _, c := range s {
		switch c {
		case '\\', '(', ')':
			buf.WriteByte('\\')
			buf.WriteByte(c)
		case '\r':
			buf.WriteString(`\r`)
		default:
			buf.WriteByte(c)
		}
	}
	buf.WriteByte(')')
}

// EscapeName returns the name with its leading slash, using #xx for bytes
// that are not regular characters
func EscapeName(n parse.Name) string {
	var b bytes.Buffer
	b.WriteByte('/')
	for i := 0; i < len(n); i++ {
		c := n[i]
		if c < 0x21 || c > 0x7E || c == '#' || isDelimiter(c) {
			fmt.Fprintf(&b, "#%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}
