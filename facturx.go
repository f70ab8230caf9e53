// Package facturx embeds Factur-X and Order-X XML documents in PDF files to
// produce PDF/A-3 hybrid e-invoices, and extracts them back out.
//
// # Quick Start
//
// Generate a Factur-X invoice from a regular PDF and its XML:
//
//	import "github.com/benedoc-inc/facturx"
//
//	out, err := facturx.Generate(pdfBytes, xmlBytes, facturx.WithLang("fr-FR"))
//
// Extract the XML from a hybrid PDF:
//
//	res, err := facturx.ExtractXML(ctx, out)
//	fmt.Println(res.Descriptor, len(res.XML))
//
// # Packages
//
//   - flavor: namespace based classification (Factur-X, Order-X, ZUGFeRD 1.0)
//   - xmp: PDF/A-3 XMP metadata packet
//   - attach: ordered list of embedded files
//   - compose: PDF cloning and embedding
//   - extract: embedded file listing and XML lookup
//   - schema: XSD selection and validation
//   - core/parse, core/write: PDF object graph reader and writer
//   - types: error codes and warnings
package facturx

// Version returns the library version.
func Version() string {
	return "1.0.0"
}
