package write

import (
	"testing"
	"time"

	"github.com/benedoc-inc/facturx/core/parse"
	"github.com/benedoc-inc/facturx/types"
	"github.com/stretchr/testify/assert"
)

func TestMetadata(t *testing.T) {
	created := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	modified := time.Date(2024, 1, 16, 14, 45, 0, 0, time.FixedZone("CET", 3600))

	dict := Metadata(types.DocumentMetadata{
		Title:    "Test Document",
		Author:   "Test Author",
		Keywords: "Invoice, Factur-X",
	}, created, modified)

	assert.Equal(t, parse.String("Test Document"), dict["Title"])
	assert.Equal(t, parse.String("Test Author"), dict["Author"])
	assert.Equal(t, parse.String("Invoice, Factur-X"), dict["Keywords"])
	assert.NotContains(t, dict, parse.Name("Subject"))
	assert.Equal(t, parse.String("D:20240115103000+00'00'"), dict["CreationDate"])
	assert.Equal(t, parse.String("D:20240116144500+01'00'"), dict["ModDate"])
}

func TestMetadata_ZeroDates(t *testing.T) {
	dict := Metadata(types.DocumentMetadata{}, time.Time{}, time.Time{})
	assert.Empty(t, dict)
}

func TestTextString(t *testing.T) {
	assert.Equal(t, parse.String("plain"), TextString("plain"))

	encoded := TextString("Café €")
	assert.Equal(t, []byte{0xFE, 0xFF}, []byte(encoded[:2]))
	assert.Equal(t, "Café €", parse.Text(encoded))
}

func TestFormatDate(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{name: "utc", in: time.Date(2017, 11, 13, 8, 0, 0, 0, time.UTC), want: "D:20171113080000+00'00'"},
		{name: "positive offset", in: time.Date(2020, 4, 15, 23, 59, 1, 0, time.FixedZone("", 5*3600+30*60)), want: "D:20200415235901+05'30'"},
		{name: "negative offset", in: time.Date(2020, 4, 15, 1, 2, 3, 0, time.FixedZone("", -4*3600)), want: "D:20200415010203-04'00'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDate(tt.in))
		})
	}
}
