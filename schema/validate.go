// Package schema selects the XSD matching a classified document and runs a
// Validator against it.
//
// The XSD engine itself is pluggable. StructuralValidator covers the checks
// the rest of the module relies on without any schema files, while
// ExecValidator delegates to an external tool such as xmllint.
package schema

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/benedoc-inc/facturx/flavor"
	"github.com/benedoc-inc/facturx/types"
)

// Schema names the XSD for one flavor and level
type Schema struct {
	// Path is relative to the schema directory
	Path       string
	Descriptor flavor.Descriptor
}

// SchemaFor selects the bundled XSD path for d
func SchemaFor(d flavor.Descriptor) (Schema, error) {
	var path string
	switch d.Flavor {
	case flavor.FacturX:
		if _, err := flavor.ParseLevel(d.Flavor, string(d.Level)); err != nil {
			return Schema{}, types.WrapError(types.ErrCodeInvalidInput, "no schema for level", err)
		}
		path = fmt.Sprintf("xsd/facturx/Factur-X_1.07.2_%s.xsd", strings.ToUpper(string(d.Level)))
	case flavor.OrderX:
		path = "xsd/orderx/SCRDMCCBDACIOMessageStructure_100pD20B.xsd"
	case flavor.ZUGFeRD1:
		path = "xsd/zugferd1/ZUGFeRD1p0.xsd"
	default:
		return Schema{}, types.NewErrorf(types.ErrCodeInvalidInput, "no schema for flavor %s", d.Flavor)
	}
	return Schema{Path: path, Descriptor: d}, nil
}

// Diagnostic is one validation finding
type Diagnostic struct {
	Path    string
	Message string
}

func (d Diagnostic) String() string {
	if d.Path == "" {
		return d.Message
	}
	return d.Path + ": " + d.Message
}

// Report is the outcome of one validation
type Report struct {
	Valid       bool
	Schema      string
	Diagnostics []Diagnostic
}

func (r *Report) add(path, format string, args ...interface{}) {
	r.Diagnostics = append(r.Diagnostics, Diagnostic{Path: path, Message: fmt.Sprintf(format, args...)})
}

// Validator checks a document against a schema. A returned error means the
// check could not run; an invalid document is reported through Report.
type Validator interface {
	Validate(ctx context.Context, xml []byte, s Schema) (*Report, error)
}

// Check validates xml against the schema selected for d and returns
// SCHEMA_VALIDATION when the document is invalid
func Check(ctx context.Context, xml []byte, d flavor.Descriptor, v Validator) (*Report, error) {
	if v == nil {
		v = StructuralValidator{}
	}
	s, err := SchemaFor(d)
	if err != nil {
		return nil, err
	}
	report, err := v.Validate(ctx, xml, s)
	if err != nil {
		return nil, err
	}
	if !report.Valid {
		msgs := make([]string, len(report.Diagnostics))
		for i, diag := range report.Diagnostics {
			msgs[i] = diag.String()
		}
		return report, types.NewErrorf(types.ErrCodeSchemaValidation,
			"%s document is not valid against %s: %s", d.Flavor, s.Path, strings.Join(msgs, "; ")).
			WithContext("schema", s.Path).
			WithContext("diagnostics", report.Diagnostics)
	}
	return report, nil
}

// required lists element paths below the root, by local name
var required = map[flavor.Flavor][][]string{
	flavor.FacturX: {
		{"ExchangedDocumentContext", "GuidelineSpecifiedDocumentContextParameter", "ID"},
		{"ExchangedDocument", "ID"},
		{"ExchangedDocument", "TypeCode"},
		{"SupplyChainTradeTransaction"},
	},
	flavor.OrderX: {
		{"ExchangedDocumentContext", "GuidelineSpecifiedDocumentContextParameter", "ID"},
		{"ExchangedDocument", "ID"},
		{"ExchangedDocument", "TypeCode"},
		{"SupplyChainTradeTransaction"},
	},
	flavor.ZUGFeRD1: {
		{"SpecifiedExchangedDocumentContext", "GuidelineSpecifiedDocumentContextParameter", "ID"},
		{"HeaderExchangedDocument", "ID"},
		{"HeaderExchangedDocument", "TypeCode"},
	},
}

// StructuralValidator checks well-formedness, root and namespace agreement
// with the descriptor, and the presence of the header elements every level
// requires. It never returns an error.
type StructuralValidator struct {
	Logger *zap.Logger
}

func (v StructuralValidator) Validate(_ context.Context, xml []byte, s Schema) (*Report, error) {
	report := &Report{Schema: s.Path}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xml); err != nil {
		report.add("", "not well-formed: %v", err)
		return report, nil
	}
	root := doc.Root()
	if root == nil {
		report.add("", "document has no root element")
		return report, nil
	}

	// A lenient classifier only disagrees on namespace, root and type code
	got, err := (&flavor.Classifier{Strict: false, Logger: v.Logger}).ClassifyElement(root)
	switch {
	case err != nil:
		report.add("/"+root.Tag, "%v", err)
	case got.Flavor != s.Descriptor.Flavor:
		report.add("/"+root.Tag, "document is %s, schema is for %s", got.Flavor, s.Descriptor.Flavor)
	}

	for _, path := range required[s.Descriptor.Flavor] {
		e := root
		for _, tag := range path {
			if e = e.SelectElement(tag); e == nil {
				break
			}
		}
		loc := "/" + root.Tag + "/" + strings.Join(path, "/")
		if e == nil {
			report.add(loc, "required element is missing")
		} else if len(e.ChildElements()) == 0 && strings.TrimSpace(e.Text()) == "" && len(path) > 1 {
			report.add(loc, "required element is empty")
		}
	}

	report.Valid = len(report.Diagnostics) == 0
	if v.Logger != nil {
		v.Logger.Debug("structural validation",
			zap.String("schema", s.Path),
			zap.Bool("valid", report.Valid),
			zap.Int("diagnostics", len(report.Diagnostics)))
	}
	return report, nil
}

// ExecValidator runs an external schema checker reading the document on
// stdin, by default "xmllint --noout --schema <xsd> -". A non-zero exit
// status marks the document invalid; each stderr line becomes a diagnostic.
type ExecValidator struct {
	// SchemaDir is the directory holding the xsd/ tree
	SchemaDir string
	// Command overrides the executable and its leading arguments. The XSD
	// path and "-" are appended.
	Command []string
	Logger  *zap.Logger
}

func (v ExecValidator) Validate(ctx context.Context, xml []byte, s Schema) (*Report, error) {
	args := v.Command
	if len(args) == 0 {
		args = []string{"xmllint", "--noout", "--schema"}
	}
	xsd := filepath.Join(v.SchemaDir, filepath.FromSlash(s.Path))
	cmd := exec.CommandContext(ctx, args[0], append(append([]string{}, args[1:]...), xsd, "-")...)
	cmd.Stdin = bytes.NewReader(xml)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	report := &Report{Schema: s.Path}
	err := cmd.Run()
	if err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			return nil, types.WrapErrorf(types.ErrCodeIOError, err, "cannot run %s", args[0])
		}
		for _, line := range strings.Split(stderr.String(), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasSuffix(line, "fails to validate") {
				continue
			}
			report.add("", "%s", line)
		}
		if len(report.Diagnostics) == 0 {
			report.add("", "%s exited with %v", args[0], err)
		}
	}
	report.Valid = err == nil
	if v.Logger != nil {
		v.Logger.Debug("external schema validation",
			zap.String("command", args[0]),
			zap.String("schema", xsd),
			zap.Bool("valid", report.Valid))
	}
	return report, nil
}
