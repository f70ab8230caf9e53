package facturx

import (
	"context"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/benedoc-inc/facturx/flavor"
	"github.com/benedoc-inc/facturx/schema"
	"github.com/benedoc-inc/facturx/types"
)

// CheckXML classifies xml and, unless disabled with WithCheckSchema(false),
// validates it against the schema of its flavor and level
func CheckXML(ctx context.Context, xml []byte, opts ...Option) (flavor.Descriptor, error) {
	c := newConfig(opts)
	root, err := flavor.ParseRoot(xml)
	if err != nil {
		return flavor.Descriptor{}, err
	}
	d, err := c.classify(root)
	if err != nil {
		return flavor.Descriptor{}, err
	}
	if c.checkSchema {
		if _, err := schema.Check(ctx, xml, d, c.validator); err != nil {
			return d, err
		}
	}
	return d, nil
}

// classify detects the flavor and applies a WithLevel override
func (c *config) classify(root *etree.Element) (flavor.Descriptor, error) {
	classifier := &flavor.Classifier{Strict: c.strict, Logger: c.logger}
	if c.level != "" {
		// the document's own level does not matter when the caller names one
		classifier.Strict = false
	}
	d, err := classifier.ClassifyElement(root)
	if err != nil {
		return flavor.Descriptor{}, err
	}
	if c.level != "" {
		level, err := flavor.ParseLevel(d.Flavor, c.level)
		if err != nil {
			return flavor.Descriptor{}, types.WrapError(types.ErrCodeInvalidInput, "invalid level", err).
				WithContext("level", c.level)
		}
		c.logger.Debug("level overridden", zap.String("detected", string(d.Level)), zap.String("level", string(level)))
		d.Level = level
	}
	return d, nil
}
