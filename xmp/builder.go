// Package xmp builds the PDF/A-3 XMP metadata packet of a hybrid e-invoice.
//
// The packet is produced by literal template substitution so its layout is
// byte-for-byte stable: identical Params always yield identical output and
// nothing reads the wall clock.
package xmp

import (
	"bytes"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"

	"github.com/beevik/etree"

	"github.com/benedoc-inc/facturx/flavor"
	"github.com/benedoc-inc/facturx/types"
)

// PacketID is the fixed xpacket identifier mandated by the XMP specification
const PacketID = "W5M0MpCehiHzreSzNTczkc9d"

// Params are the values substituted into the packet
type Params struct {
	Descriptor  flavor.Descriptor
	Title       string
	Author      string
	Subject     string
	Keywords    string // pdf:Keywords, mirrors the Info /Keywords
	Lang        string // BCP 47 tag, written as dc:language when set
	Producer    string
	CreatorTool string
	CreateDate  time.Time // omitted when zero
	ModifyDate  time.Time // omitted when zero
}

type packetData struct {
	Params
	Prefix          string
	Namespace       string
	SchemaName      string
	DocumentType    string
	Filename        string
	Version         string
	ConformanceText string
}

var packet = template.Must(template.New("xmp").Funcs(template.FuncMap{
	"x":    Escape,
	"date": FormatDate,
}).Parse(packetTemplate))

// Build renders the packet for p
func Build(p Params) ([]byte, error) {
	d := p.Descriptor
	if d.Flavor == 0 {
		return nil, types.NewError(types.ErrCodeInvalidInput, "XMP packet needs a classified document")
	}
	level := d.Level.XMPLabel()
	if level == "" {
		return nil, types.NewErrorf(types.ErrCodeMalformedMetadata, "no XMP conformance label for level %q", d.Level)
	}
	version := d.Version
	if version == "" {
		version = "1.0"
	}
	data := packetData{
		Params:          p,
		Prefix:          d.XMPPrefix(),
		Namespace:       d.XMPNamespace(),
		SchemaName:      d.XMPSchemaName(),
		DocumentType:    d.DocumentType(),
		Filename:        d.Filename(),
		Version:         version,
		ConformanceText: level,
	}

	var buf bytes.Buffer
	if err := packet.Execute(&buf, data); err != nil {
		return nil, types.WrapError(types.ErrCodeMalformedMetadata, "failed to render XMP packet", err)
	}
	if err := etree.NewDocument().ReadFromBytes(buf.Bytes()); err != nil {
		return nil, types.WrapError(types.ErrCodeMalformedMetadata, "XMP packet is not well-formed", err)
	}
	return buf.Bytes(), nil
}

// FormatDate renders t the way xmp:CreateDate expects
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02T15:04:05-07:00")
}

// Escape makes s safe inside XML character data and attribute values. The
// five reserved characters are replaced by entities and code points that XML
// 1.0 cannot carry are dropped.
func Escape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		if r == utf8.RuneError && size == 1 {
			continue
		}
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '"':
			b.WriteString("&quot;")
		case '\'':
			b.WriteString("&apos;")
		default:
			if isXMLChar(r) {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

func isXMLChar(r rune) bool {
	switch {
	case r == 0x09 || r == 0x0A || r == 0x0D:
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= 0x10FFFF:
		return true
	}
	return false
}

const packetTemplate = "<?xpacket begin=\"\ufeff\" id=\"" + PacketID + `"?>
<x:xmpmeta xmlns:x="adobe:ns:meta/">
  <rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
    <rdf:Description xmlns:pdfaid="http://www.aiim.org/pdfa/ns/id/" rdf:about="">
      <pdfaid:part>3</pdfaid:part>
      <pdfaid:conformance>B</pdfaid:conformance>
    </rdf:Description>
    <rdf:Description xmlns:dc="http://purl.org/dc/elements/1.1/" rdf:about="">
      <dc:title>
        <rdf:Alt>
          <rdf:li xml:lang="x-default">{{x .Title}}</rdf:li>
        </rdf:Alt>
      </dc:title>
      <dc:creator>
        <rdf:Seq>
          <rdf:li>{{x .Author}}</rdf:li>
        </rdf:Seq>
      </dc:creator>
      <dc:description>
        <rdf:Alt>
          <rdf:li xml:lang="x-default">{{x .Subject}}</rdf:li>
        </rdf:Alt>
      </dc:description>
{{- if .Lang}}
      <dc:language>
        <rdf:Bag>
          <rdf:li>{{x .Lang}}</rdf:li>
        </rdf:Bag>
      </dc:language>
{{- end}}
    </rdf:Description>
    <rdf:Description xmlns:pdf="http://ns.adobe.com/pdf/1.3/" rdf:about="">
      <pdf:Producer>{{x .Producer}}</pdf:Producer>
{{- if .Keywords}}
      <pdf:Keywords>{{x .Keywords}}</pdf:Keywords>
{{- end}}
    </rdf:Description>
{{- if or .CreatorTool (not .CreateDate.IsZero) (not .ModifyDate.IsZero)}}
    <rdf:Description xmlns:xmp="http://ns.adobe.com/xap/1.0/" rdf:about="">
{{- if .CreatorTool}}
      <xmp:CreatorTool>{{x .CreatorTool}}</xmp:CreatorTool>
{{- end}}
{{- if not .CreateDate.IsZero}}
      <xmp:CreateDate>{{date .CreateDate}}</xmp:CreateDate>
{{- end}}
{{- if not .ModifyDate.IsZero}}
      <xmp:ModifyDate>{{date .ModifyDate}}</xmp:ModifyDate>
{{- end}}
    </rdf:Description>
{{- end}}
    <rdf:Description xmlns:pdfaExtension="http://www.aiim.org/pdfa/ns/extension/" xmlns:pdfaSchema="http://www.aiim.org/pdfa/ns/schema#" xmlns:pdfaProperty="http://www.aiim.org/pdfa/ns/property#" rdf:about="">
      <pdfaExtension:schemas>
        <rdf:Bag>
          <rdf:li rdf:parseType="Resource">
            <pdfaSchema:schema>{{.SchemaName}}</pdfaSchema:schema>
            <pdfaSchema:namespaceURI>{{.Namespace}}</pdfaSchema:namespaceURI>
            <pdfaSchema:prefix>{{.Prefix}}</pdfaSchema:prefix>
            <pdfaSchema:property>
              <rdf:Seq>
                <rdf:li rdf:parseType="Resource">
                  <pdfaProperty:name>DocumentFileName</pdfaProperty:name>
                  <pdfaProperty:valueType>Text</pdfaProperty:valueType>
                  <pdfaProperty:category>external</pdfaProperty:category>
                  <pdfaProperty:description>name of the embedded XML document</pdfaProperty:description>
                </rdf:li>
                <rdf:li rdf:parseType="Resource">
                  <pdfaProperty:name>DocumentType</pdfaProperty:name>
                  <pdfaProperty:valueType>Text</pdfaProperty:valueType>
                  <pdfaProperty:category>external</pdfaProperty:category>
                  <pdfaProperty:description>type of the hybrid document in capital letters, e.g. INVOICE or ORDER</pdfaProperty:description>
                </rdf:li>
                <rdf:li rdf:parseType="Resource">
                  <pdfaProperty:name>Version</pdfaProperty:name>
                  <pdfaProperty:valueType>Text</pdfaProperty:valueType>
                  <pdfaProperty:category>external</pdfaProperty:category>
                  <pdfaProperty:description>version of the standard applying to the embedded XML document</pdfaProperty:description>
                </rdf:li>
                <rdf:li rdf:parseType="Resource">
                  <pdfaProperty:name>ConformanceLevel</pdfaProperty:name>
                  <pdfaProperty:valueType>Text</pdfaProperty:valueType>
                  <pdfaProperty:category>external</pdfaProperty:category>
                  <pdfaProperty:description>conformance level of the embedded XML document</pdfaProperty:description>
                </rdf:li>
              </rdf:Seq>
            </pdfaSchema:property>
          </rdf:li>
        </rdf:Bag>
      </pdfaExtension:schemas>
    </rdf:Description>
    <rdf:Description xmlns:{{.Prefix}}="{{.Namespace}}" rdf:about="">
      <{{.Prefix}}:DocumentType>{{.DocumentType}}</{{.Prefix}}:DocumentType>
      <{{.Prefix}}:DocumentFileName>{{.Filename}}</{{.Prefix}}:DocumentFileName>
      <{{.Prefix}}:Version>{{.Version}}</{{.Prefix}}:Version>
      <{{.Prefix}}:ConformanceLevel>{{.ConformanceText}}</{{.Prefix}}:ConformanceLevel>
    </rdf:Description>
  </rdf:RDF>
</x:xmpmeta>
<?xpacket end="w"?>`
