package attach

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benedoc-inc/facturx/flavor"
	"github.com/benedoc-inc/facturx/types"
)

var (
	fixedNow = time.Date(2024, 5, 17, 9, 0, 0, 0, time.UTC)
	facturX  = flavor.Descriptor{Flavor: flavor.FacturX, Level: flavor.LevelEN16931}
	orderX   = flavor.Descriptor{Flavor: flavor.OrderX, Level: flavor.LevelBasic, OrderType: flavor.OrderResponse}
	mainXML  = []byte(`<?xml version="1.0"?><rsm:CrossIndustryInvoice/>`)
)

func newAssembler() *Assembler {
	return &Assembler{Now: func() time.Time { return fixedNow }}
}

func TestAssemble_MainDocumentFirst(t *testing.T) {
	specs, err := newAssembler().Assemble(mainXML, facturX, []Input{
		{Filename: "delivery-note.pdf", Data: []byte("%PDF-1.4"), Relationship: "supplement", Description: "Delivery note"},
		{Filename: "timesheet.csv", Data: []byte("a,b\n"), Relationship: "Source"},
	})
	require.NoError(t, err)
	require.Len(t, specs, 3)

	main := specs[0]
	assert.Equal(t, "factur-x.xml", main.Filename)
	assert.Equal(t, Data, main.Relationship)
	assert.Equal(t, "text/xml", main.MIMEType)
	assert.Equal(t, "Factur-X Invoice", main.Description)
	assert.Equal(t, mainXML, main.Data)
	assert.Equal(t, fixedNow, main.CreationDate)
	assert.Equal(t, fixedNow, main.ModDate)

	assert.Equal(t, "delivery-note.pdf", specs[1].Filename)
	assert.Equal(t, Supplement, specs[1].Relationship)
	assert.Equal(t, "application/pdf", specs[1].MIMEType)
	assert.Equal(t, "Delivery note", specs[1].Description)

	assert.Equal(t, "timesheet.csv", specs[2].Filename)
	assert.Equal(t, Source, specs[2].Relationship)
	assert.Equal(t, "text/csv", specs[2].MIMEType)
}

func TestAssemble_OrderXFilename(t *testing.T) {
	specs, err := newAssembler().Assemble(mainXML, orderX, nil)
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, "order-x.xml", specs[0].Filename)
	assert.Equal(t, "Order-X order response", specs[0].Description)
}

func TestAssemble_Idempotent(t *testing.T) {
	extras := []Input{
		{Filename: "photo.png", Data: []byte("\x89PNG\r\n\x1a\n...")},
		{Filename: "notes", Data: []byte("free text"), Relationship: "alternative"},
	}
	a := newAssembler()
	first, err := a.Assemble(mainXML, facturX, extras)
	require.NoError(t, err)
	second, err := a.Assemble(mainXML, facturX, extras)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAssemble_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		xml    []byte
		extras []Input
		want   error
	}{
		{
			name: "duplicate extras",
			xml:  mainXML,
			extras: []Input{
				{Filename: "a.pdf", Data: []byte("1")},
				{Filename: "a.pdf", Data: []byte("2")},
			},
			want: types.ErrDuplicateFilename,
		},
		{
			name:   "collides with main document",
			xml:    mainXML,
			extras: []Input{{Filename: "factur-x.xml", Data: []byte("<x/>")}},
			want:   types.ErrDuplicateFilename,
		},
		{
			name:   "directory components are ignored when comparing",
			xml:    mainXML,
			extras: []Input{{Filename: "a/b.pdf"}, {Filename: "c/b.pdf"}},
			want:   types.ErrDuplicateFilename,
		},
		{
			name:   "unknown relationship",
			xml:    mainXML,
			extras: []Input{{Filename: "a.pdf", Relationship: "attachment"}},
			want:   types.ErrInvalidRelationship,
		},
		{
			name:   "missing filename",
			xml:    mainXML,
			extras: []Input{{Data: []byte("x")}},
			want:   types.ErrInvalidInput,
		},
		{
			name: "empty main document",
			want: types.ErrInvalidInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newAssembler().Assemble(tt.xml, facturX, tt.extras)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestAssemble_KeepsCallerDates(t *testing.T) {
	created := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	specs, err := newAssembler().Assemble(mainXML, facturX, []Input{
		{Filename: "a.pdf", CreationDate: created},
	})
	require.NoError(t, err)
	assert.Equal(t, created, specs[1].CreationDate)
	assert.Equal(t, fixedNow, specs[1].ModDate)
}

func TestParseRelationship(t *testing.T) {
	for in, want := range map[string]Relationship{
		"":            Unspecified,
		"DATA":        Data,
		"/Source":     Source,
		"alternative": Alternative,
		"Supplement":  Supplement,
		"unspecified": Unspecified,
	} {
		got, err := ParseRelationship(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseRelationship("EncryptedPayload")
	assert.True(t, errors.Is(err, types.ErrInvalidRelationship))
}

func TestSpec_CheckSum(t *testing.T) {
	s := Spec{Data: []byte("hello")}
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", s.CheckSum())
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.7\n"), 0o644))
	mtime := time.Date(2023, 7, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	in, err := LoadFile(path, "", "source")
	require.NoError(t, err)
	assert.Equal(t, "scan.pdf", in.Filename)
	assert.Equal(t, "scan.pdf", in.Description)
	assert.Equal(t, "source", in.Relationship)
	assert.True(t, mtime.Equal(in.ModDate))
	assert.Equal(t, []byte("%PDF-1.7\n"), in.Data)

	_, err = LoadFile(filepath.Join(dir, "missing.pdf"), "", "")
	assert.True(t, errors.Is(err, types.ErrIOError))

	_, err = LoadFile(dir, "", "")
	assert.True(t, errors.Is(err, types.ErrInvalidInput))

	_, err = LoadFile(path, "", "bogus")
	assert.True(t, errors.Is(err, types.ErrInvalidRelationship))
}

func TestDetectMIME(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     []byte
		want     string
	}{
		{name: "extension", filename: "report.PDF", want: "application/pdf"},
		{name: "png magic", filename: "blob", data: []byte("\x89PNG\r\n\x1a\n0000"), want: "image/png"},
		{name: "jpeg magic", filename: "blob", data: []byte{0xFF, 0xD8, 0xFF, 0xE0}, want: "image/jpeg"},
		{name: "pdf magic", filename: "blob", data: []byte("%PDF-1.4"), want: "application/pdf"},
		{name: "zip magic", filename: "blob", data: []byte("PK\x03\x04rest"), want: "application/zip"},
		{name: "xml prolog", filename: "blob", data: []byte("\xEF\xBB\xBF  <?xml version=\"1.0\"?>"), want: "text/xml"},
		{name: "plain text", filename: "blob", data: []byte("hello"), want: "text/plain"},
		{name: "gif magic", filename: "blob", data: []byte("GIF89a\x01\x00\x01\x00"), want: "image/gif"},
		{name: "unknown binary", filename: "blob", data: []byte{0x00, 0x01, 0x02, 0xFE}, want: OctetStream},
		{name: "unknown extension", filename: "data.zzq", data: []byte("%PDF-1.7"), want: "application/pdf"},
		{name: "empty", filename: "", want: OctetStream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectMIME(tt.filename, tt.data))
		})
	}
}
