package parse

import (
	"bytes"
	"compress/flate"
	"compress/zlib"
	"fmt"
	"io"
)

// DecodeFilter applies one stream filter. parms may be nil.
// Supports FlateDecode, ASCIIHexDecode, ASCII85Decode and RunLengthDecode,
// with PNG and TIFF predictors for FlateDecode.
func DecodeFilter(data []byte, filter Name, parms Dict) ([]byte, error) {
	switch filter {
	case "FlateDecode", "Fl":
		out, err := DecodeFlate(data)
		if err != nil {
			return nil, err
		}
		return applyPredictor(out, parms)
	case "ASCIIHexDecode", "AHx":
		return DecodeASCIIHex(data)
	case "ASCII85Decode", "A85":
		return DecodeASCII85(data)
	case "RunLengthDecode", "RL":
		return DecodeRunLength(data)
	default:
		return nil, fmt.Errorf("unsupported filter: /%s", filter)
	}
}

// DecodeFlate decompresses zlib data, falling back to raw deflate for
// streams written without a zlib header
func DecodeFlate(data []byte) ([]byte, error) {
	reader, err := zlib.NewReader(bytes.NewReader(data))
	if err == nil {
		defer reader.Close()
		out, err := io.ReadAll(reader)
		if err == nil || len(out) > 0 && err == io.ErrUnexpectedEOF {
			return out, nil
		}
	}

	fr := flate.NewReader(bytes.NewReader(data))
	defer fr.Close()
	out, err := io.ReadAll(fr)
	if err != nil && !(err == io.ErrUnexpectedEOF && len(out) > 0) {
		return nil, fmt.Errorf("flate error: %v", err)
	}
	return out, nil
}

// DecodeASCIIHex decodes ASCIIHexDecode data. Whitespace is ignored and
// '>' marks the end of data.
func DecodeASCIIHex(data []byte) ([]byte, error) {
	var result bytes.Buffer
	var hexByte byte
	var haveNibble bool

	for _, b := range data {
		if isWhitespace(b) {
			continue
		}
		if b == '>' {
			break
		}
		nibble, ok := unhex(b)
		if !ok {
			return nil, fmt.Errorf("invalid hex character: %c", b)
		}
		if haveNibble {
			result.WriteByte(hexByte<<4 | nibble)
		} else {
			hexByte = nibble
		}
		haveNibble = !haveNibble
	}
	if haveNibble {
		result.WriteByte(hexByte << 4)
	}
	return result.Bytes(), nil
}

// DecodeASCII85 decodes ASCII85Decode data. 'z' stands for four zero bytes
// and "~>" marks the end.
func DecodeASCII85(data []byte) ([]byte, error) {
	var result bytes.Buffer
	data = bytes.TrimPrefix(bytes.TrimLeft(data, " \t\r\n\f"), []byte("<~"))

	var tuple [5]byte
	n := 0
	for i := 0; i < len(data); i++ {
		b := data[i]
		if isWhitespace(b) {
			continue
		}
		if b == '~' {
			break
		}
		if b == 'z' {
			if n != 0 {
				return nil, fmt.Errorf("'z' inside ascii85 tuple")
			}
			result.Write([]byte{0, 0, 0, 0})
			continue
		}
		if b < '!' || b > 'u' {
			return nil, fmt.Errorf("invalid ascii85 character: 0x%02x", b)
		}
		tuple[n] = b - '!'
		n++
		if n == 5 {
			result.Write(decodeASCII85Tuple(tuple))
			n = 0
		}
	}
	if n == 1 {
		return nil, fmt.Errorf("ascii85 data ends with a single character")
	}
	if n > 0 {
		for i := n; i < 5; i++ {
			tuple[i] = 84
		}
		result.Write(decodeASCII85Tuple(tuple)[:n-1])
	}
	return result.Bytes(), nil
}

func decodeASCII85Tuple(t [5]byte) []byte {
	v := uint32(t[0])*85*85*85*85 +
		uint32(t[1])*85*85*85 +
		uint32(t[2])*85*85 +
		uint32(t[3])*85 +
		uint32(t[4])
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

// DecodeRunLength decodes RunLengthDecode data
func DecodeRunLength(data []byte) ([]byte, error) {
	var result bytes.Buffer
	for i := 0; i < len(data); {
		length := int(data[i])
		i++
		switch {
		case length == 128:
			return result.Bytes(), nil
		case length < 128:
			count := length + 1
			if i+count > len(data) {
				return nil, fmt.Errorf("runlength: not enough data for literal run")
			}
			result.Write(data[i : i+count])
			i += count
		default:
			if i >= len(data) {
				return nil, fmt.Errorf("runlength: not enough data for repeat")
			}
			result.Write(bytes.Repeat(data[i:i+1], 257-length))
			i++
		}
	}
	return result.Bytes(), nil
}

func parmInt(parms Dict, key Name, def int) int {
	if parms == nil {
		return def
	}
	if v, ok := parms.Int(key); ok {
		return int(v)
	}
	return def
}

// applyPredictor undoes PNG (10-15) and TIFF (2) predictors
func applyPredictor(data []byte, parms Dict) ([]byte, error) {
	predictor := parmInt(parms, "Predictor", 1)
	if predictor <= 1 {
		return data, nil
	}
	colors := parmInt(parms, "Colors", 1)
	bpc := parmInt(parms, "BitsPerComponent", 8)
	columns := parmInt(parms, "Columns", 1)
	if colors < 1 || bpc < 1 || columns < 1 {
		return nil, fmt.Errorf("invalid predictor parameters")
	}
	bpp := (colors*bpc + 7) / 8
	rowSize := (colors*bpc*columns + 7) / 8

	if predictor == 2 {
		if bpc != 8 {
			return nil, fmt.Errorf("TIFF predictor with %d bits per component is not supported", bpc)
		}
		out := append([]byte(nil), data...)
		for row := 0; row+rowSize <= len(out); row += rowSize {
			for i := bpp; i < rowSize; i++ {
				out[row+i] += out[row+i-bpp]
			}
		}
		return out, nil
	}
	if predictor < 10 || predictor > 15 {
		return nil, fmt.Errorf("unsupported predictor %d", predictor)
	}

	out := make([]byte, 0, len(data))
	prev := make([]byte, rowSize)
	cur := make([]byte, rowSize)
	for pos := 0; pos+rowSize+1 <= len(data); pos += rowSize + 1 {
		filter := data[pos]
		copy(cur, data[pos+1:pos+1+rowSize])
		for i := 0; i < rowSize; i++ {
			var left, upLeft byte
			if i >= bpp {
				left = cur[i-bpp]
				upLeft = prev[i-bpp]
			}
			up := prev[i]
			switch filter {
			case 0:
			case 1:
				cur[i] += left
			case 2:
				cur[i] += up
			case 3:
				cur[i] += byte((int(left) + int(up)) / 2)
			case 4:
				cur[i] += paeth(left, up, upLeft)
			default:
				return nil, fmt.Errorf("invalid PNG filter type %d", filter)
			}
		}
		out = append(out, cur...)
		prev, cur = cur, prev
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
