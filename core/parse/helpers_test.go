package parse

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"sort"
)

// buildPDF writes objects (number -> body without "obj"/"endobj") with a
// classic cross-reference table
func buildPDF(version string, objects map[int]string, trailer string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-" + version + "\n")
	buf.Write([]byte{0x25, 0xE2, 0xE3, 0xCF, 0xD3, 0x0A})

	nums := make([]int, 0, len(objects))
	for n := range objects {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	offsets := make(map[int]int)
	for _, n := range nums {
		offsets[n] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", n, objects[n])
	}

	size := nums[len(nums)-1] + 1
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", size)
	buf.WriteString("0000000000 65535 f \n")
	for n := 1; n < size; n++ {
		if off, ok := offsets[n]; ok {
			fmt.Fprintf(&buf, "%010d 00000 n \n", off)
		} else {
			buf.WriteString("0000000000 00000 f \n")
		}
	}
	fmt.Fprintf(&buf, "trailer\n<</Size %d %s>>\nstartxref\n%d\n%%%%EOF\n", size, trailer, xref)
	return buf.Bytes()
}

func minimalPDF() []byte {
	return buildPDF("1.4", map[int]string{
		1: "<</Type/Catalog/Pages 2 0 R>>",
		2: "<</Type/Pages/Kids[3 0 R]/Count 1>>",
		3: "<</Type/Page/Parent 2 0 R/MediaBox[0 0 612 792]>>",
	}, "/Root 1 0 R")
}

func deflate(data []byte) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	w.Write(data)
	w.Close()
	return buf.Bytes()
}

// pngUp encodes rows of width columns with the PNG "Up" filter
func pngUp(data []byte, columns int) []byte {
	var out []byte
	prev := make([]byte, columns)
	for row := 0; row+columns <= len(data); row += columns {
		cur := data[row : row+columns]
		out = append(out, 2)
		for i := range cur {
			out = append(out, cur[i]-prev[i])
		}
		prev = cur
	}
	return out
}

// compressedPDF stores the catalog and page tree in an object stream and
// indexes everything with a predictor-encoded cross-reference stream
func compressedPDF() []byte {
	return compressedPDFWithHeader("1 0 2 30 ")
}

// compressedPDFWithHeader is compressedPDF with the object stream's
// number/offset pairs replaced
func compressedPDFWithHeader(header string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.5\n")

	first := len(header)
	body := fmt.Sprintf("%-30s", "<</Type/Catalog/Pages 2 0 R>>") + "<</Type/Pages/Kids[3 0 R]/Count 1>>"
	objStm := deflate([]byte(header + body))

	page := buf.Len()
	buf.WriteString("3 0 obj\n<</Type/Page/Parent 2 0 R/MediaBox[0 0 595 842]>>\nendobj\n")

	stm := buf.Len()
	fmt.Fprintf(&buf, "4 0 obj\n<</Type/ObjStm/N 2/First %d/Filter/FlateDecode/Length %d>>\nstream\n", first, len(objStm))
	buf.Write(objStm)
	buf.WriteString("\nendstream\nendobj\n")

	xrefOffset := buf.Len()
	entries := []byte{
		0, 0, 0, 0xFF,
		2, 0, 4, 0,
		2, 0, 4, 1,
		1, byte(page >> 8), byte(page), 0,
		1, byte(stm >> 8), byte(stm), 0,
		1, byte(xrefOffset >> 8), byte(xrefOffset), 0,
	}
	xrefData := deflate(pngUp(entries, 4))
	fmt.Fprintf(&buf, "5 0 obj\n<</Type/XRef/Size 6/W[1 2 1]/Root 1 0 R/ID[<0102><0304>]/Filter/FlateDecode/DecodeParms<</Predictor 12/Columns 4>>/Length %d>>\nstream\n", len(xrefData))
	buf.Write(xrefData)
	fmt.Fprintf(&buf, "\nendstream\nendobj\nstartxref\n%d\n%%%%EOF\n", xrefOffset)
	return buf.Bytes()
}
