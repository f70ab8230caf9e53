package parse

import (
	"bytes"
	"compress/flate"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFilter(t *testing.T) {
	raw := func() []byte {
		var buf bytes.Buffer
		w, _ := flate.NewWriter(&buf, flate.DefaultCompression)
		w.Write([]byte("raw deflate"))
		w.Close()
		return buf.Bytes()
	}()

	tests := []struct {
		name   string
		filter Name
		input  []byte
		parms  Dict
		want   string
	}{
		{name: "flate", filter: "FlateDecode", input: deflate([]byte("hello flate")), want: "hello flate"},
		{name: "raw deflate", filter: "FlateDecode", input: raw, want: "raw deflate"},
		{name: "ascii hex", filter: "ASCIIHexDecode", input: []byte("48 65 6c 6C 6f>"), want: "Hello"},
		{name: "ascii hex abbreviation", filter: "AHx", input: []byte("4>"), want: "@"},
		{name: "ascii85", filter: "ASCII85Decode", input: []byte("<~87cURD]i,\"Ebo7~>"), want: "Hello World"},
		{name: "ascii85 zero group", filter: "A85", input: []byte("z~>"), want: "\x00\x00\x00\x00"},
		{name: "run length", filter: "RunLengthDecode", input: []byte{2, 'a', 'b', 'c', 254, 'z', 128}, want: "abczzz"},
		{
			name:   "png up predictor",
			filter: "FlateDecode",
			input:  deflate(pngUp([]byte{1, 2, 3, 4, 5, 6}, 3)),
			parms:  Dict{"Predictor": Integer(12), "Columns": Integer(3)},
			want:   "\x01\x02\x03\x04\x05\x06",
		},
		{
			name:   "tiff predictor",
			filter: "FlateDecode",
			input:  deflate([]byte{10, 1, 1, 20, 2, 2}),
			parms:  Dict{"Predictor": Integer(2), "Columns": Integer(3)},
			want:   "\x0a\x0b\x0c\x14\x16\x18",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeFilter(tt.input, tt.filter, tt.parms)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestDecodeFilter_Errors(t *testing.T) {
	_, err := DecodeFilter([]byte("x"), "LZWDecode", nil)
	assert.Error(t, err)

	_, err = DecodeFilter([]byte("GG>"), "ASCIIHexDecode", nil)
	assert.Error(t, err)

	_, err = DecodeFilter([]byte("not compressed"), "FlateDecode", nil)
	assert.Error(t, err)

	_, err = DecodeFilter([]byte{5, 'a'}, "RunLengthDecode", nil)
	assert.Error(t, err)
}

func TestApplyPredictor_Paeth(t *testing.T) {
	// two rows of two RGB pixels, second row Paeth-filtered against the first
	first := []byte{10, 20, 30, 40, 50, 60}
	second := []byte{11, 21, 31, 41, 51, 61}
	encoded := []byte{0}
	encoded = append(encoded, first...)
	encoded = append(encoded, 4)
	for i := range second {
		var left, upLeft byte
		if i >= 3 {
			left, upLeft = second[i-3], first[i-3]
		}
		encoded = append(encoded, second[i]-paeth(left, first[i], upLeft))
	}

	got, err := applyPredictor(encoded, Dict{"Predictor": Integer(15), "Colors": Integer(3), "Columns": Integer(2)})
	require.NoError(t, err)
	assert.Equal(t, append(append([]byte{}, first...), second...), got)
}
