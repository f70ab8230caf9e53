// Package flavor classifies an e-invoicing XML document into the standard it
// implements (Factur-X, Order-X or the legacy ZUGFeRD 1.0) together with its
// conformance level or, for Order-X, its document type.
//
// Classification is driven by the root element's namespace URI and local
// name. Filenames are only hints and never decide a flavor.
package flavor

import (
	"fmt"
	"strings"
)

// Flavor is the standard a document implements
type Flavor int

const (
	FacturX Flavor = iota + 1
	OrderX
	ZUGFeRD1
)

func (f Flavor) String() string {
	switch f {
	case FacturX:
		return "factur-x"
	case OrderX:
		return "order-x"
	case ZUGFeRD1:
		return "zugferd"
	}
	return fmt.Sprintf("Flavor(%d)", int(f))
}

// ParseFlavor accepts the names used on the command line
func ParseFlavor(s string) (Flavor, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "factur-x", "facturx":
		return FacturX, nil
	case "order-x", "orderx":
		return OrderX, nil
	case "zugferd", "zugferd1":
		return ZUGFeRD1, nil
	}
	return 0, fmt.Errorf("unknown flavor %q", s)
}

// Level is a conformance profile. The valid set depends on the flavor.
type Level string

const (
	LevelMinimum  Level = "minimum"
	LevelBasicWL  Level = "basicwl"
	LevelBasic    Level = "basic"
	LevelEN16931  Level = "en16931"
	LevelExtended Level = "extended"
	LevelComfort  Level = "comfort"
)

var xmpLevelLabels = map[Level]string{
	LevelMinimum:  "MINIMUM",
	LevelBasicWL:  "BASIC WL",
	LevelBasic:    "BASIC",
	LevelEN16931:  "EN 16931",
	LevelExtended: "EXTENDED",
	LevelComfort:  "COMFORT",
}

// XMPLabel is the fx:ConformanceLevel value
func (l Level) XMPLabel() string {
	return xmpLevelLabels[l]
}

// Levels lists the conformance levels a flavor accepts, lowest first
func Levels(f Flavor) []Level {
	switch f {
	case FacturX:
		return []Level{LevelMinimum, LevelBasicWL, LevelBasic, LevelEN16931, LevelExtended}
	case OrderX, ZUGFeRD1:
		return []Level{LevelBasic, LevelComfort, LevelExtended}
	}
	return nil
}

// ParseLevel validates a level name for the given flavor
func ParseLevel(f Flavor, s string) (Level, error) {
	want := Level(strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "")))
	for _, l := range Levels(f) {
		if l == want {
			return l, nil
		}
	}
	return "", fmt.Errorf("level %q is not valid for %s", s, f)
}

// OrderType is the kind of Order-X document
type OrderType int

const (
	Order OrderType = iota + 1
	OrderChange
	OrderResponse
)

var orderTypeCodes = map[string]OrderType{
	"220": Order,
	"230": OrderChange,
	"231": OrderResponse,
}

func (t OrderType) String() string {
	switch t {
	case Order:
		return "Order"
	case OrderChange:
		return "OrderChange"
	case OrderResponse:
		return "OrderResponse"
	}
	return ""
}

// XMPLabel is the fx:DocumentType value for Order-X
func (t OrderType) XMPLabel() string {
	switch t {
	case Order:
		return "ORDER"
	case OrderChange:
		return "ORDER_CHANGE"
	case OrderResponse:
		return "ORDER_RESPONSE"
	}
	return ""
}

// ParseOrderType accepts a type name ("order_change", "OrderChange") or a UN/CEFACT type code ("230")
func ParseOrderType(s string) (OrderType, error) {
	if t, ok := orderTypeCodes[strings.TrimSpace(s)]; ok {
		return t, nil
	}
	switch strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)) {
	case "order":
		return Order, nil
	case "orderchange":
		return OrderChange, nil
	case "orderresponse":
		return OrderResponse, nil
	}
	return 0, fmt.Errorf("unknown Order-X document type %q", s)
}

// Mandated attachment filenames
const (
	FacturXFilename  = "factur-x.xml"
	OrderXFilename   = "order-x.xml"
	ZUGFeRD1Filename = "ZUGFeRD-invoice.xml"
)

// Descriptor is the result of classifying one XML document
type Descriptor struct {
	Flavor    Flavor
	Level     Level
	OrderType OrderType // Order-X only
	Namespace string
	Version   string
}

// LevelOrType returns the Order-X document type for Order-X and the
// conformance level for the invoice flavors.
func (d Descriptor) LevelOrType() string {
	if d.Flavor == OrderX {
		return d.OrderType.String()
	}
	return string(d.Level)
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s/%s", d.Flavor, d.LevelOrType())
}

// Filename is the literal attachment name consuming software looks for
func (d Descriptor) Filename() string {
	switch d.Flavor {
	case OrderX:
		return OrderXFilename
	case ZUGFeRD1:
		return ZUGFeRD1Filename
	}
	return FacturXFilename
}

// DocumentType is the fx:DocumentType value
func (d Descriptor) DocumentType() string {
	if d.Flavor == OrderX {
		return d.OrderType.XMPLabel()
	}
	return "INVOICE"
}

// Description is the /Desc of the main XML file specification
func (d Descriptor) Description() string {
	switch d.Flavor {
	case OrderX:
		return "Order-X " + strings.ReplaceAll(strings.ToLower(d.OrderType.XMPLabel()), "_", " ")
	case ZUGFeRD1:
		return "ZUGFeRD Invoice"
	}
	return "Factur-X Invoice"
}

// XMPNamespace is the namespace of the PDF/A extension schema for this flavor
func (d Descriptor) XMPNamespace() string {
	switch d.Flavor {
	case OrderX:
		return "urn:factur-x:pdfa:CrossIndustryDocument:1p0#"
	case ZUGFeRD1:
		return "urn:ferd:pdfa:CrossIndustryDocument:invoice:1p0#"
	}
	return "urn:factur-x:pdfa:CrossIndustryDocument:invoice:1p0#"
}

// XMPPrefix is the prefix bound to XMPNamespace in the packet
func (d Descriptor) XMPPrefix() string {
	if d.Flavor == ZUGFeRD1 {
		return "zf"
	}
	return "fx"
}

// XMPSchemaName is the pdfaSchema:schema label of the extension schema
func (d Descriptor) XMPSchemaName() string {
	switch d.Flavor {
	case OrderX:
		return "Order-X PDFA Extension Schema"
	case ZUGFeRD1:
		return "ZUGFeRD PDFA Extension Schema"
	}
	return "Factur-X PDFA Extension Schema"
}

// CanGenerate reports whether a hybrid PDF may be produced for this flavor.
// ZUGFeRD 1.0 documents are supported for detection and extraction only.
func (d Descriptor) CanGenerate() bool {
	return d.Flavor == FacturX || d.Flavor == OrderX
}
