package schema

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benedoc-inc/facturx/flavor"
	"github.com/benedoc-inc/facturx/internal/samples"
	"github.com/benedoc-inc/facturx/types"
)

func TestSchemaFor(t *testing.T) {
	tests := []struct {
		d    flavor.Descriptor
		want string
	}{
		{flavor.Descriptor{Flavor: flavor.FacturX, Level: flavor.LevelMinimum}, "xsd/facturx/Factur-X_1.07.2_MINIMUM.xsd"},
		{flavor.Descriptor{Flavor: flavor.FacturX, Level: flavor.LevelBasicWL}, "xsd/facturx/Factur-X_1.07.2_BASICWL.xsd"},
		{flavor.Descriptor{Flavor: flavor.FacturX, Level: flavor.LevelEN16931}, "xsd/facturx/Factur-X_1.07.2_EN16931.xsd"},
		{flavor.Descriptor{Flavor: flavor.FacturX, Level: flavor.LevelExtended}, "xsd/facturx/Factur-X_1.07.2_EXTENDED.xsd"},
		{flavor.Descriptor{Flavor: flavor.OrderX, Level: flavor.LevelComfort, OrderType: flavor.OrderResponse}, "xsd/orderx/SCRDMCCBDACIOMessageStructure_100pD20B.xsd"},
		{flavor.Descriptor{Flavor: flavor.ZUGFeRD1, Level: flavor.LevelBasic}, "xsd/zugferd1/ZUGFeRD1p0.xsd"},
	}
	for _, tt := range tests {
		t.Run(tt.d.String(), func(t *testing.T) {
			s, err := SchemaFor(tt.d)
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Path)
			assert.Equal(t, tt.d, s.Descriptor)
		})
	}

	_, err := SchemaFor(flavor.Descriptor{Flavor: flavor.FacturX, Level: flavor.LevelComfort})
	assert.True(t, errors.Is(err, types.ErrInvalidInput))
	_, err = SchemaFor(flavor.Descriptor{})
	assert.True(t, errors.Is(err, types.ErrInvalidInput))
}

func TestStructuralValidator_Valid(t *testing.T) {
	docs := map[string]struct {
		xml []byte
		d   flavor.Descriptor
	}{
		"factur-x":  {samples.FacturX(samples.FacturXGuidelines["en16931"]), flavor.Descriptor{Flavor: flavor.FacturX, Level: flavor.LevelEN16931}},
		"order-x":   {samples.OrderX("comfort", "231"), flavor.Descriptor{Flavor: flavor.OrderX, Level: flavor.LevelComfort, OrderType: flavor.OrderResponse}},
		"zugferd 1": {samples.ZUGFeRD1("extended"), flavor.Descriptor{Flavor: flavor.ZUGFeRD1, Level: flavor.LevelExtended}},
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			report, err := Check(context.Background(), doc.xml, doc.d, StructuralValidator{})
			require.NoError(t, err)
			assert.True(t, report.Valid)
			assert.Empty(t, report.Diagnostics)
		})
	}
}

func TestStructuralValidator_Invalid(t *testing.T) {
	en16931 := flavor.Descriptor{Flavor: flavor.FacturX, Level: flavor.LevelEN16931}

	tests := []struct {
		name    string
		xml     []byte
		d       flavor.Descriptor
		message string
	}{
		{name: "not well-formed", xml: []byte("<rsm:CrossIndustryInvoice"), d: en16931, message: "not well-formed"},
		{name: "missing transaction", xml: samples.FacturXDefaultNamespace(samples.FacturXGuidelines["en16931"]), d: en16931, message: "SupplyChainTradeTransaction: required element is missing"},
		{name: "flavor mismatch", xml: samples.OrderX("basic", "220"), d: en16931, message: "document is order-x"},
		{name: "unknown namespace", xml: []byte(`<Invoice xmlns="urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"/>`), d: en16931, message: "not a known e-invoicing namespace"},
		{
			name:    "empty guideline",
			xml:     []byte(strings.Replace(string(samples.FacturX("x")), "<ram:ID>x</ram:ID>", "<ram:ID> </ram:ID>", 1)),
			d:       en16931,
			message: "GuidelineSpecifiedDocumentContextParameter/ID: required element is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := Check(context.Background(), tt.xml, tt.d, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrSchemaValidation))
			require.NotNil(t, report)
			assert.False(t, report.Valid)

			var found bool
			for _, diag := range report.Diagnostics {
				if strings.Contains(diag.String(), tt.message) {
					found = true
				}
			}
			assert.True(t, found, "diagnostics %v lack %q", report.Diagnostics, tt.message)
		})
	}
}

func TestExecValidator(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	xml := samples.FacturX(samples.FacturXGuidelines["basic"])
	d := flavor.Descriptor{Flavor: flavor.FacturX, Level: flavor.LevelBasic}

	pass := ExecValidator{SchemaDir: "/schemas", Command: []string{"sh", "-c", `cat >/dev/null; test "$1" = /schemas/xsd/facturx/Factur-X_1.07.2_BASIC.xsd`, "sh"}}
	report, err := Check(context.Background(), xml, d, pass)
	require.NoError(t, err)
	assert.True(t, report.Valid)

	fail := ExecValidator{Command: []string{"sh", "-c", "cat >/dev/null; echo 'element ID: missing' >&2; echo '- fails to validate' >&2; exit 3", "sh"}}
	report, err = Check(context.Background(), xml, d, fail)
	assert.True(t, errors.Is(err, types.ErrSchemaValidation))
	require.Len(t, report.Diagnostics, 1)
	assert.Equal(t, "element ID: missing", report.Diagnostics[0].Message)

	missing := ExecValidator{Command: []string{"/nonexistent/xsd-validator"}}
	_, err = Check(context.Background(), xml, d, missing)
	assert.True(t, errors.Is(err, types.ErrIOError))
}
