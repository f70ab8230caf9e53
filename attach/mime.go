package attach

import (
	"bytes"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// OctetStream is used when nothing better is known
const OctetStream = "application/octet-stream"

// commonTypes covers the supporting documents usually attached to invoices
// so detection does not depend on the host's mime.types database.
var commonTypes = map[string]string{
	".pdf":  "application/pdf",
	".xml":  "text/xml",
	".csv":  "text/csv",
	".txt":  "text/plain",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".zip":  "application/zip",
	".json": "application/json",
	".odt":  "application/vnd.oasis.opendocument.text",
	".ods":  "application/vnd.oasis.opendocument.spreadsheet",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// DetectMIME guesses a media type from the filename extension first and the
// leading bytes second. Parameters such as charset are stripped.
func DetectMIME(filename string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if t, ok := commonTypes[ext]; ok {
		return t
	}
	if ext != "" {
		if t := mime.TypeByExtension(ext); t != "" {
			if mediaType, _, err := mime.ParseMediaType(t); err == nil {
				return mediaType
			}
		}
	}
	return Sniff(data)
}

// Sniff determines a media type from the content with
// github.com/gabriel-vasile/mimetype
func Sniff(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xEF\xBB\xBF"))
	if len(data) == 0 {
		return OctetStream
	}
	mediaType, _, err := mime.ParseMediaType(mimetype.Detect(data).String())
	if err != nil {
		return OctetStream
	}
	return mediaType
}
