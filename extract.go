package facturx

import (
	"context"
	"os"

	"github.com/benedoc-inc/facturx/extract"
	"github.com/benedoc-inc/facturx/flavor"
	"github.com/benedoc-inc/facturx/types"
)

// ExtractXML returns the e-invoicing XML embedded in pdf. Schema validation
// runs only when WithCheckSchema(true) or WithValidator is passed explicitly.
func ExtractXML(ctx context.Context, pdf []byte, opts ...Option) (*extract.Result, error) {
	c := newConfig(append([]Option{WithCheckSchema(false)}, opts...))
	eo := extract.Options{
		Classifier: &flavor.Classifier{Strict: c.strict, Logger: c.logger},
		Logger:     c.logger,
	}
	if c.checkSchema {
		eo.Validator = c.validator
	}
	return extract.XML(ctx, pdf, eo)
}

// ExtractFile is ExtractXML on a file
func ExtractFile(ctx context.Context, path string, opts ...Option) (*extract.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.WrapErrorf(types.ErrCodeIOError, err, "cannot read %s", path)
	}
	return ExtractXML(ctx, data, opts...)
}

// ListAttachments returns every embedded file of pdf in name tree order
func ListAttachments(pdf []byte, opts ...Option) ([]extract.Embedded, error) {
	c := newConfig(opts)
	return extract.ListAttachments(pdf, extract.ListOptions{Logger: c.logger})
}
