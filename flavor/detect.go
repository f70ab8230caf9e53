package flavor

import (
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/benedoc-inc/facturx/types"
)

// Namespace URIs of the supported root elements
const (
	NamespaceCII      = "urn:un:unece:uncefact:data:standard:CrossIndustryInvoice:100"
	NamespaceOrderX   = "urn:un:unece:uncefact:data:standard:SCRDMCCBDACIOMessageStructure:100"
	NamespaceZUGFeRD1 = "urn:ferd:CrossIndustryDocument:invoice:1p0"
)

type namespaceEntry struct {
	flavor  Flavor
	version string
	root    string
	// path from the root to the guideline parameter ID
	guideline []string
}

// namespaces is read-only after package initialisation
var namespaces = map[string]namespaceEntry{
	NamespaceCII: {
		flavor:    FacturX,
		version:   "1.0",
		root:      "CrossIndustryInvoice",
		guideline: []string{"ExchangedDocumentContext", "GuidelineSpecifiedDocumentContextParameter", "ID"},
	},
	NamespaceOrderX: {
		flavor:    OrderX,
		version:   "1.0",
		root:      "SCRDMCCBDACIOMessageStructure",
		guideline: []string{"ExchangedDocumentContext", "GuidelineSpecifiedDocumentContextParameter", "ID"},
	},
	NamespaceZUGFeRD1: {
		flavor:    ZUGFeRD1,
		version:   "1.0",
		root:      "CrossIndustryDocument",
		guideline: []string{"SpecifiedExchangedDocumentContext", "GuidelineSpecifiedDocumentContextParameter", "ID"},
	},
}

// Classifier maps XML documents to Descriptors
type Classifier struct {
	// Strict makes a missing or unknown guideline parameter an error.
	// When false the flavor's default level is used instead.
	Strict bool
	Logger *zap.Logger
}

// NewClassifier returns a strict classifier that does not log
func NewClassifier() *Classifier {
	return &Classifier{Strict: true, Logger: zap.NewNop()}
}

func (c *Classifier) log() *zap.Logger {
	if c == nil || c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// Classify parses raw XML and classifies its root element
func (c *Classifier) Classify(xml []byte) (Descriptor, error) {
	root, err := ParseRoot(xml)
	if err != nil {
		return Descriptor{}, err
	}
	return c.ClassifyElement(root)
}

// ParseRoot parses xml and returns its root element
func ParseRoot(xml []byte) (*etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xml); err != nil {
		return nil, types.WrapError(types.ErrCodeUnrecognizedDocument, "XML syntax is invalid", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, types.NewError(types.ErrCodeUnrecognizedDocument, "document has no root element")
	}
	return root, nil
}

// ClassifyElement classifies an already parsed root element
func (c *Classifier) ClassifyElement(root *etree.Element) (Descriptor, error) {
	if root == nil {
		return Descriptor{}, types.NewError(types.ErrCodeUnrecognizedDocument, "document has no root element")
	}

	ns := root.NamespaceURI()
	entry, ok := namespaces[ns]
	if !ok {
		return Descriptor{}, types.NewErrorf(types.ErrCodeUnrecognizedDocument,
			"namespace %q of root element <%s> is not a known e-invoicing namespace", ns, root.Tag).
			WithContext("namespace", ns).
			WithContext("root", root.Tag)
	}
	if root.Tag != entry.root {
		return Descriptor{}, types.NewErrorf(types.ErrCodeUnrecognizedDocument,
			"root element <%s> does not match %s namespace, expected <%s>", root.Tag, entry.flavor, entry.root).
			WithContext("namespace", ns).
			WithContext("root", root.Tag)
	}

	d := Descriptor{
		Flavor:    entry.flavor,
		Namespace: ns,
		Version:   entry.version,
	}

	guideline := ""
	if el := childPath(root, entry.guideline...); el != nil {
		guideline = strings.TrimSpace(el.Text())
	}
	level, err := c.resolveLevel(entry.flavor, guideline)
	if err != nil {
		return Descriptor{}, err
	}
	d.Level = level

	if d.Flavor == OrderX {
		code := ""
		if el := childPath(root, "ExchangedDocument", "TypeCode"); el != nil {
			code = strings.TrimSpace(el.Text())
		}
		t, ok := orderTypeCodes[code]
		if !ok {
			return Descriptor{}, types.NewErrorf(types.ErrCodeUnrecognizedDocument,
				"Order-X document type code %q is not one of 220, 230, 231", code).
				WithContext("typeCode", code)
		}
		d.OrderType = t
	}

	c.log().Debug("classified XML document",
		zap.String("flavor", d.Flavor.String()),
		zap.String("level", string(d.Level)),
		zap.String("type", d.OrderType.String()),
		zap.String("guideline", guideline))
	return d, nil
}

// resolveLevel reads the level from a guideline URN such as
// "urn:cen.eu:en16931:2017#compliant#urn:factur-x.eu:1p0:basic".
// The last colon-separated token is tried first, then the one before it,
// which covers the bare "urn:cen.eu:en16931:2017" EN 16931 identifier.
func (c *Classifier) resolveLevel(f Flavor, guideline string) (Level, error) {
	if guideline != "" {
		tokens := strings.Split(guideline, ":")
		for i := len(tokens) - 1; i >= 0 && i >= len(tokens)-2; i-- {
			if l, err := ParseLevel(f, tokens[i]); err == nil {
				return l, nil
			}
		}
	}

	if c != nil && !c.Strict {
		def := DefaultLevel(f)
		c.log().Info("guideline parameter not recognised, using default level",
			zap.String("flavor", f.String()),
			zap.String("guideline", guideline),
			zap.String("level", string(def)))
		return def, nil
	}

	if guideline == "" {
		return "", types.NewErrorf(types.ErrCodeAmbiguousLevel,
			"%s document has no GuidelineSpecifiedDocumentContextParameter/ID", f)
	}
	return "", types.NewErrorf(types.ErrCodeAmbiguousLevel,
		"cannot resolve %s level from guideline %q", f, guideline).
		WithContext("guideline", guideline)
}

// DefaultLevel is the level used by a lenient classifier when the document does not name one
func DefaultLevel(f Flavor) Level {
	if f == FacturX {
		return LevelEN16931
	}
	return LevelBasic
}

// childPath descends through direct children by local name, ignoring prefixes
func childPath(e *etree.Element, tags ...string) *etree.Element {
	for _, tag := range tags {
		if e == nil {
			return nil
		}
		e = e.SelectElement(tag)
	}
	return e
}

var filenameHints = map[string]Flavor{
	"factur-x.xml":        FacturX,
	"zugferd-invoice.xml": ZUGFeRD1,
	"ZUGFeRD-invoice.xml": ZUGFeRD1,
	"xrechnung.xml":       FacturX,
	"order-x.xml":         OrderX,
}

// KnownFilenames lists the attachment names searched during extraction, in priority order
var KnownFilenames = []string{
	FacturXFilename,
	OrderXFilename,
	ZUGFeRD1Filename,
	"zugferd-invoice.xml",
	"xrechnung.xml",
}

// FilenameHint returns the flavor an attachment name suggests. ZUGFeRD 2.x
// files named zugferd-invoice.xml share the CII namespace with Factur-X, so a
// hint is only a starting point for extraction and is never used to generate.
func FilenameHint(name string) (Flavor, bool) {
	f, ok := filenameHints[name]
	return f, ok
}

// HintAgrees reports whether the hint for name is compatible with d
func HintAgrees(name string, d Descriptor) bool {
	hint, ok := FilenameHint(name)
	if !ok {
		return true
	}
	if hint == d.Flavor {
		return true
	}
	// ZUGFeRD 2.x invoices are CII documents stored under the ZUGFeRD name
	return name == "zugferd-invoice.xml" && d.Flavor == FacturX
}
