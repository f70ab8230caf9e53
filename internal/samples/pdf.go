package samples

import (
	"bytes"
	"fmt"

	"github.com/benedoc-inc/facturx/core/parse"
	"github.com/benedoc-inc/facturx/core/write"
)

// PDFOptions shapes a generated one-page source document
type PDFOptions struct {
	Version string
	// OutputIntent adds an sRGB PDF/A output intent to the catalog
	OutputIntent bool
	// ID sets a trailer /ID of two 16-byte values
	ID bool
	// Attachment embeds a file named "old.txt" through /Names /EmbeddedFiles
	Attachment bool
	// Dests adds a named destination tree beside the embedded files
	Dests bool
}

// SourceID is the trailer /ID written when PDFOptions.ID is set
var SourceID = [2][]byte{
	[]byte("0123456789abcdef"),
	[]byte("fedcba9876543210"),
}

// BlankPDF returns an A4 page with no content, PDF 1.4
func BlankPDF() []byte {
	return PDF(PDFOptions{})
}

// PDF builds a one-page document with the requested catalog entries
func PDF(opts PDFOptions) []byte {
	w := write.NewPDFWriter()
	if opts.Version == "" {
		opts.Version = "1.4"
	}
	w.SetVersion(opts.Version)

	catalog := parse.Dict{"Type": parse.Name("Catalog"), "Pages": parse.Ref{Num: 2}}
	w.SetObject(1, catalog)
	w.SetObject(2, parse.Dict{
		"Type":  parse.Name("Pages"),
		"Kids":  parse.Array{parse.Ref{Num: 3}},
		"Count": parse.Integer(1),
	})
	page := parse.Dict{
		"Type":      parse.Name("Page"),
		"Parent":    parse.Ref{Num: 2},
		"MediaBox":  parse.Array{parse.Integer(0), parse.Integer(0), parse.Integer(595), parse.Integer(842)},
		"Resources": parse.Dict{},
	}
	w.SetObject(3, page)
	page["Contents"] = parse.Ref{Num: w.AddStreamObject(parse.Dict{}, []byte("q Q\n"), true)}

	if opts.OutputIntent {
		profile := w.AddStreamObject(parse.Dict{"N": parse.Integer(3)}, []byte("fake icc profile"), true)
		catalog["OutputIntents"] = parse.Array{parse.Dict{
			"Type":                      parse.Name("OutputIntent"),
			"S":                         parse.Name("GTS_PDFA1"),
			"OutputConditionIdentifier": parse.String("sRGB"),
			"DestOutputProfile":         parse.Ref{Num: profile},
		}}
	}

	names := parse.Dict{}
	if opts.Attachment {
		file := w.AddStreamObject(parse.Dict{"Type": parse.Name("EmbeddedFile")}, []byte("previous attachment"), false)
		spec := w.AddObject(parse.Dict{
			"Type": parse.Name("Filespec"),
			"F":    parse.String("old.txt"),
			"EF":   parse.Dict{"F": parse.Ref{Num: file}},
		})
		names["EmbeddedFiles"] = parse.Dict{"Names": parse.Array{parse.String("old.txt"), parse.Ref{Num: spec}}}
	}
	if opts.Dests {
		names["Dests"] = parse.Dict{"Names": parse.Array{parse.String("start"), parse.Array{parse.Ref{Num: 3}, parse.Name("Fit")}}}
	}
	if len(names) > 0 {
		catalog["Names"] = names
	}

	if opts.ID {
		w.SetFileID(SourceID)
	}
	w.SetRoot(1)

	data, err := w.Bytes()
	if err != nil {
		panic(err)
	}
	return data
}

// ObjectStreamPDF stores the catalog and page tree in an object stream whose
// number/offset header is given verbatim, so tests can damage it. A valid
// header is "1 0 2 30 ".
func ObjectStreamPDF(header string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.5\n")

	body := fmt.Sprintf("%-30s", "<</Type/Catalog/Pages 2 0 R>>") + "<</Type/Pages/Kids[3 0 R]/Count 1>>"
	objStm := write.Deflate([]byte(header + body))

	page := buf.Len()
	buf.WriteString("3 0 obj\n<</Type/Page/Parent 2 0 R/MediaBox[0 0 595 842]>>\nendobj\n")

	stm := buf.Len()
	fmt.Fprintf(&buf, "4 0 obj\n<</Type/ObjStm/N 2/First %d/Filter/FlateDecode/Length %d>>\nstream\n", len(header), len(objStm))
	buf.Write(objStm)
	buf.WriteString("\nendstream\nendobj\n")

	xref := buf.Len()
	entries := []byte{
		0, 0, 0, 0xFF,
		2, 0, 4, 0,
		2, 0, 4, 1,
		1, byte(page >> 8), byte(page), 0,
		1, byte(stm >> 8), byte(stm), 0,
		1, byte(xref >> 8), byte(xref), 0,
	}
	fmt.Fprintf(&buf, "5 0 obj\n<</Type/XRef/Size 6/W[1 2 1]/Root 1 0 R/Length %d>>\nstream\n", len(entries))
	buf.Write(entries)
	fmt.Fprintf(&buf, "\nendstream\nendobj\nstartxref\n%d\n%%%%EOF\n", xref)
	return buf.Bytes()
}
