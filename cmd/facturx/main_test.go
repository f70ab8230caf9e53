package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benedoc-inc/facturx/internal/samples"
)

func TestParseAttach(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "timesheet.csv")
	require.NoError(t, os.WriteFile(path, []byte("day,hours\n"), 0o644))

	in, err := parseAttach(path + ":Supplement:Hours worked")
	require.NoError(t, err)
	assert.Equal(t, "timesheet.csv", in.Filename)
	assert.Equal(t, "Supplement", in.Relationship)
	assert.Equal(t, "Hours worked", in.Description)

	in, err = parseAttach(path)
	require.NoError(t, err)
	assert.Empty(t, in.Relationship)

	_, err = parseAttach(":Data")
	assert.Error(t, err)
}

func TestSplitAttach(t *testing.T) {
	tests := []struct {
		value, path, rel, desc string
	}{
		{`C:\invoices\timesheet.csv`, `C:\invoices\timesheet.csv`, "", ""},
		{`C:\invoices\timesheet.csv:Supplement`, `C:\invoices\timesheet.csv`, "Supplement", ""},
		{`C:\invoices\timesheet.csv:data:Q1: hours`, `C:\invoices\timesheet.csv`, "data", "Q1: hours"},
		{"/tmp/scan:2024.pdf:Source:scan", "/tmp/scan:2024.pdf", "Source", "scan"},
		{"notes.txt", "notes.txt", "", ""},
		{":Data", "", "Data", ""},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			path, rel, desc := splitAttach(tt.value)
			assert.Equal(t, tt.path, path)
			assert.Equal(t, tt.rel, rel)
			assert.Equal(t, tt.desc, desc)
		})
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestGenerateAndInfo(t *testing.T) {
	dir := t.TempDir()
	pdfPath := filepath.Join(dir, "invoice.pdf")
	xmlPath := filepath.Join(dir, "invoice.xml")
	outPath := filepath.Join(dir, "facturx.pdf")
	notes := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(pdfPath, samples.BlankPDF(), 0o644))
	require.NoError(t, os.WriteFile(xmlPath, samples.FacturX(samples.FacturXGuidelines["en16931"]), 0o644))
	require.NoError(t, os.WriteFile(notes, []byte("thanks"), 0o644))

	out, err := run(t, "generate", pdfPath, xmlPath, "-o", outPath, "--lang", "fr-FR", "--attach", notes+":Supplement")
	require.NoError(t, err)
	assert.Contains(t, out, "factur-x/en16931")

	_, err = run(t, "generate", pdfPath, xmlPath, "-o", outPath)
	assert.Error(t, err, "output exists")

	_, err = run(t, "generate", pdfPath, xmlPath, "-o", "")
	assert.Error(t, err, "in place needs --overwrite")
	out, err = run(t, "generate", pdfPath, xmlPath, "-o", "", "--overwrite")
	require.NoError(t, err)
	assert.Contains(t, out, pdfPath)
	out, err = run(t, "info", pdfPath)
	require.NoError(t, err)
	assert.Contains(t, out, "factur-x.xml")

	out, err = run(t, "info", outPath)
	require.NoError(t, err)
	assert.Contains(t, out, "factur-x.xml")
	assert.Contains(t, out, "notes.txt")
	assert.Contains(t, out, "Supplement")

	out, err = run(t, "check", xmlPath)
	require.NoError(t, err)
	assert.Contains(t, out, "ok")
}
