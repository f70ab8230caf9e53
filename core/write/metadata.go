package write

import (
	"fmt"
	"time"
	"unicode/utf16"

	"github.com/benedoc-inc/facturx/core/parse"
	"github.com/benedoc-inc/facturx/types"
)

// Metadata builds an Info dictionary. Empty fields are left out and zero
// times are not written.
func Metadata(metadata types.DocumentMetadata, created, modified time.Time) parse.Dict {
	dict := parse.Dict{}
	set := func(key parse.Name, value string) {
		if value != "" {
			dict[key] = TextString(value)
		}
	}
	set("Title", metadata.Title)
	set("Author", metadata.Author)
	set("Subject", metadata.Subject)
	set("Keywords", metadata.Keywords)

	if !created.IsZero() {
		dict["CreationDate"] = parse.String(FormatDate(created))
	}
	if !modified.IsZero() {
		dict["ModDate"] = parse.String(FormatDate(modified))
	}
	return dict
}

// SetMetadata creates an Info dictionary object with the provided metadata
// and sets it as the document info. Returns the object number.
func (w *PDFWriter) SetMetadata(info parse.Dict) int {
	objNum := w.AddObject(info)
	w.SetInfo(objNum)
	return objNum
}

// TextString encodes s as a PDF text string: plain bytes for ASCII,
// UTF-16BE with a byte order mark otherwise
func TextString(s string) parse.String {
	ascii := true
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return parse.String(s)
	}

	units := utf16.Encode([]rune(s))
	out := make([]byte, 2, 2+2*len(units))
	out[0], out[1] = 0xFE, 0xFF
	for _, u := range units {
		out = append(out, byte(u>>8), byte(u))
	}
	return parse.String(out)
}

// FormatDate formats t as a PDF date: D:YYYYMMDDHHmmSS+HH'mm'
func FormatDate(t time.Time) string {
	_, offset := t.Zone()
	sign := '+'
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	return fmt.Sprintf("D:%s%c%02d'%02d'", t.Format("20060102150405"), sign, offset/3600, (offset%3600)/60)
}
