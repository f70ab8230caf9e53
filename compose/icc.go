package compose

import (
	"bytes"
	"encoding/binary"
	"math"
	"sync"
)

// SRGBProfileDescription names the built-in output intent profile
const SRGBProfileDescription = "sRGB IEC61966-2.1"

var (
	srgbOnce    sync.Once
	srgbProfile []byte
)

// SRGBProfile returns an ICC v2 display profile for sRGB: D50-adapted
// colorants and a 1024 entry transfer curve shared by the three channels.
func SRGBProfile() []byte {
	srgbOnce.Do(func() {
		srgbProfile = buildSRGBProfile()
	})
	return srgbProfile
}

type iccTag struct {
	sig  string
	data []byte
}

func buildSRGBProfile() []byte {
	trc := curveTag(1024, srgbDecode)
	tags := []iccTag{
		{"desc", descTag(SRGBProfileDescription)},
		{"cprt", textTag("No copyright, use freely")},
		{"wtpt", xyzTag(0.9642, 1.0, 0.8249)},
		{"rXYZ", xyzTag(0.4360747, 0.2225045, 0.0139322)},
		{"gXYZ", xyzTag(0.3850649, 0.7168786, 0.0971045)},
		{"bXYZ", xyzTag(0.1430804, 0.0606169, 0.7141733)},
		{"rTRC", trc},
		{"gTRC", trc},
		{"bTRC", trc},
	}

	// tag data starts after the header and the tag table, 4-byte aligned
	offset := 128 + 4 + 12*len(tags)
	var table, data bytes.Buffer
	binary.Write(&table, binary.BigEndian, uint32(len(tags)))
	shared := map[string]int{}
	for _, tag := range tags {
		at, ok := shared[string(tag.data)]
		if !ok {
			at = offset + data.Len()
			shared[string(tag.data)] = at
			data.Write(tag.data)
			for data.Len()%4 != 0 {
				data.WriteByte(0)
			}
		}
		table.WriteString(tag.sig)
		binary.Write(&table, binary.BigEndian, uint32(at))
		binary.Write(&table, binary.BigEndian, uint32(len(tag.data)))
	}

	size := 128 + table.Len() + data.Len()
	header := make([]byte, 128)
	binary.BigEndian.PutUint32(header[0:], uint32(size))
	binary.BigEndian.PutUint32(header[8:], 0x02100000)
	copy(header[12:], "mntr")
	copy(header[16:], "RGB ")
	copy(header[20:], "XYZ ")
	for i, v := range []uint16{2024, 1, 1, 0, 0, 0} {
		binary.BigEndian.PutUint16(header[24+2*i:], v)
	}
	copy(header[36:], "acsp")
	putS15Fixed16(header[68:], 0.9642)
	putS15Fixed16(header[72:], 1.0)
	putS15Fixed16(header[76:], 0.8249)

	out := make([]byte, 0, size)
	out = append(out, header...)
	out = append(out, table.Bytes()...)
	return append(out, data.Bytes()...)
}

func srgbDecode(v float64) float64 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return math.Pow((v+0.055)/1.055, 2.4)
}

func putS15Fixed16(b []byte, v float64) {
	binary.BigEndian.PutUint32(b, uint32(int32(math.Round(v*65536))))
}

func xyzTag(x, y, z float64) []byte {
	b := make([]byte, 20)
	copy(b, "XYZ ")
	putS15Fixed16(b[8:], x)
	putS15Fixed16(b[12:], y)
	putS15Fixed16(b[16:], z)
	return b
}

func curveTag(n int, f func(float64) float64) []byte {
	b := make([]byte, 12+2*n)
	copy(b, "curv")
	binary.BigEndian.PutUint32(b[8:], uint32(n))
	for i := 0; i < n; i++ {
		v := f(float64(i) / float64(n-1))
		binary.BigEndian.PutUint16(b[12+2*i:], uint16(math.Round(v*65535)))
	}
	return b
}

func textTag(s string) []byte {
	b := make([]byte, 8, 8+len(s)+1)
	copy(b, "text")
	b = append(b, s...)
	return append(b, 0)
}

// descTag is a v2 textDescriptionType with empty Unicode and ScriptCode parts
func descTag(s string) []byte {
	b := make([]byte, 12, 12+len(s)+1+8+3+67)
	copy(b, "desc")
	binary.BigEndian.PutUint32(b[8:], uint32(len(s)+1))
	b = append(b, s...)
	b = append(b, 0)
	b = append(b, make([]byte, 8)...)  // Unicode language code and count
	b = append(b, make([]byte, 3)...)  // ScriptCode code and count
	return append(b, make([]byte, 67)...)
}
