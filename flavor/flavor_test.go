package flavor

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benedoc-inc/facturx/internal/samples"
	"github.com/benedoc-inc/facturx/types"
)

func TestClassify_AllCombinations(t *testing.T) {
	type tc struct {
		name string
		xml  []byte
		want Descriptor
	}
	var tests []tc

	for _, level := range Levels(FacturX) {
		guideline := samples.FacturXGuidelines[string(level)]
		want := Descriptor{Flavor: FacturX, Level: level, Namespace: NamespaceCII, Version: "1.0"}
		tests = append(tests,
			tc{name: "factur-x prefixed " + string(level), xml: samples.FacturX(guideline), want: want},
			tc{name: "factur-x default namespace " + string(level), xml: samples.FacturXDefaultNamespace(guideline), want: want},
		)
	}
	for _, level := range Levels(OrderX) {
		for name, code := range samples.OrderXTypeCodes {
			typ, err := ParseOrderType(name)
			require.NoError(t, err)
			tests = append(tests, tc{
				name: "order-x " + string(level) + " " + name,
				xml:  samples.OrderX(string(level), code),
				want: Descriptor{Flavor: OrderX, Level: level, OrderType: typ, Namespace: NamespaceOrderX, Version: "1.0"},
			})
		}
	}
	for _, level := range Levels(ZUGFeRD1) {
		tests = append(tests, tc{
			name: "zugferd " + string(level),
			xml:  samples.ZUGFeRD1(string(level)),
			want: Descriptor{Flavor: ZUGFeRD1, Level: level, Namespace: NamespaceZUGFeRD1, Version: "1.0"},
		})
	}

	c := NewClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Classify(tt.xml)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_Unrecognized(t *testing.T) {
	tests := []struct {
		name string
		xml  string
	}{
		{
			name: "unknown namespace",
			xml:  `<Invoice xmlns="urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"><ID>1</ID></Invoice>`,
		},
		{
			name: "no namespace",
			xml:  `<CrossIndustryInvoice/>`,
		},
		{
			name: "order-x namespace with wrong root",
			xml:  `<rsm:CrossIndustryInvoice xmlns:rsm="urn:un:unece:uncefact:data:standard:SCRDMCCBDACIOMessageStructure:100"/>`,
		},
		{
			name: "not xml",
			xml:  `%PDF-1.4`,
		},
		{
			name: "order-x with invoice type code",
			xml:  string(samples.OrderX("basic", "380")),
		},
	}

	c := NewClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Classify([]byte(tt.xml))
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrUnrecognizedDocument), "got %v", err)
		})
	}
}

func TestClassify_Strictness(t *testing.T) {
	xrechnung := samples.FacturX("urn:cen.eu:en16931:2017#compliant#urn:xoev-de:kosit:standard:xrechnung_2.0")
	missing := []byte(`<rsm:CrossIndustryInvoice xmlns:rsm="urn:un:unece:uncefact:data:standard:CrossIndustryInvoice:100"/>`)

	strict := NewClassifier()
	_, err := strict.Classify(xrechnung)
	assert.True(t, errors.Is(err, types.ErrAmbiguousLevel))
	_, err = strict.Classify(missing)
	assert.True(t, errors.Is(err, types.ErrAmbiguousLevel))

	lenient := &Classifier{Strict: false}
	d, err := lenient.Classify(xrechnung)
	require.NoError(t, err)
	assert.Equal(t, LevelEN16931, d.Level)

	d, err = lenient.Classify(samples.ZUGFeRD1("unknown"))
	require.NoError(t, err)
	assert.Equal(t, LevelBasic, d.Level)
}

func TestDescriptor_Attributes(t *testing.T) {
	tests := []struct {
		name         string
		d            Descriptor
		filename     string
		documentType string
		description  string
		prefix       string
		levelOrType  string
		canGenerate  bool
	}{
		{
			name:         "factur-x",
			d:            Descriptor{Flavor: FacturX, Level: LevelEN16931},
			filename:     "factur-x.xml",
			documentType: "INVOICE",
			description:  "Factur-X Invoice",
			prefix:       "fx",
			levelOrType:  "en16931",
			canGenerate:  true,
		},
		{
			name:         "order-x response",
			d:            Descriptor{Flavor: OrderX, Level: LevelComfort, OrderType: OrderResponse},
			filename:     "order-x.xml",
			documentType: "ORDER_RESPONSE",
			description:  "Order-X order response",
			prefix:       "fx",
			levelOrType:  "OrderResponse",
			canGenerate:  true,
		},
		{
			name:         "zugferd 1.0",
			d:            Descriptor{Flavor: ZUGFeRD1, Level: LevelComfort},
			filename:     "ZUGFeRD-invoice.xml",
			documentType: "INVOICE",
			description:  "ZUGFeRD Invoice",
			prefix:       "zf",
			levelOrType:  "comfort",
			canGenerate:  false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.filename, tt.d.Filename())
			assert.Equal(t, tt.documentType, tt.d.DocumentType())
			assert.Equal(t, tt.description, tt.d.Description())
			assert.Equal(t, tt.prefix, tt.d.XMPPrefix())
			assert.Equal(t, tt.levelOrType, tt.d.LevelOrType())
			assert.Equal(t, tt.canGenerate, tt.d.CanGenerate())
		})
	}
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel(FacturX, "EN 16931")
	require.NoError(t, err)
	assert.Equal(t, LevelEN16931, l)

	l, err = ParseLevel(FacturX, "Basic WL")
	require.NoError(t, err)
	assert.Equal(t, LevelBasicWL, l)
	assert.Equal(t, "BASIC WL", l.XMPLabel())

	_, err = ParseLevel(FacturX, "comfort")
	assert.Error(t, err)
	_, err = ParseLevel(OrderX, "minimum")
	assert.Error(t, err)
}

func TestParseOrderType(t *testing.T) {
	for in, want := range map[string]OrderType{
		"220":            Order,
		"order_change":   OrderChange,
		"OrderResponse":  OrderResponse,
		"order-response": OrderResponse,
	} {
		got, err := ParseOrderType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseOrderType("380")
	assert.Error(t, err)
}

func TestHintAgrees(t *testing.T) {
	facturx := Descriptor{Flavor: FacturX, Level: LevelBasic}
	orderx := Descriptor{Flavor: OrderX, OrderType: Order}
	zugferd := Descriptor{Flavor: ZUGFeRD1, Level: LevelBasic}

	assert.True(t, HintAgrees("factur-x.xml", facturx))
	assert.True(t, HintAgrees("zugferd-invoice.xml", facturx))
	assert.True(t, HintAgrees("xrechnung.xml", facturx))
	assert.True(t, HintAgrees("invoice.xml", orderx))
	assert.True(t, HintAgrees("ZUGFeRD-invoice.xml", zugferd))
	assert.False(t, HintAgrees("factur-x.xml", orderx))
	assert.False(t, HintAgrees("order-x.xml", facturx))
	assert.False(t, HintAgrees("ZUGFeRD-invoice.xml", facturx))
}

func TestExtractBaseInfo(t *testing.T) {
	c := NewClassifier()

	root, err := ParseRoot(samples.FacturX(samples.FacturXGuidelines["en16931"]))
	require.NoError(t, err)
	d, err := c.ClassifyElement(root)
	require.NoError(t, err)

	info := ExtractBaseInfo(root, d)
	assert.Equal(t, "FA-2017-0010", info.Number)
	assert.Equal(t, "380", info.TypeCode)
	assert.Equal(t, "Au bon moulin", info.Issuer)
	assert.Equal(t, time.Date(2017, 11, 13, 0, 0, 0, 0, time.UTC), info.Date)

	meta := info.Metadata(d)
	assert.Equal(t, "Au bon moulin: Invoice FA-2017-0010", meta.Title)
	assert.Equal(t, "Au bon moulin", meta.Author)
	assert.Equal(t, "Factur-X Invoice FA-2017-0010 dated 2017-11-13 issued by Au bon moulin", meta.Subject)
	assert.Equal(t, "Invoice, Factur-X", meta.Keywords)
}

func TestExtractBaseInfo_OrderX(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		code   string
		issuer string
		title  string
	}{
		{code: "220", issuer: "BUYER_NAME", title: "BUYER_NAME: Order PO123456789"},
		{code: "230", issuer: "BUYER_NAME", title: "BUYER_NAME: Order Change PO123456789"},
		{code: "231", issuer: "SELLER_NAME", title: "SELLER_NAME: Order Response PO123456789"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			root, err := ParseRoot(samples.OrderX("comfort", tt.code))
			require.NoError(t, err)
			d, err := c.ClassifyElement(root)
			require.NoError(t, err)

			info := ExtractBaseInfo(root, d)
			assert.Equal(t, tt.issuer, info.Issuer)
			assert.Equal(t, tt.title, info.Metadata(d).Title)
		})
	}
}

func TestExtractBaseInfo_Refund(t *testing.T) {
	root, err := ParseRoot(samples.FacturXDefaultNamespace(samples.FacturXGuidelines["basic"]))
	require.NoError(t, err)
	d, err := NewClassifier().ClassifyElement(root)
	require.NoError(t, err)

	meta := ExtractBaseInfo(root, d).Metadata(d)
	assert.Equal(t, "Refund FA-2017-0011", meta.Title)
	assert.Equal(t, "Factur-X Refund FA-2017-0011", meta.Subject)
	assert.Equal(t, "Refund, Factur-X", meta.Keywords)
}
