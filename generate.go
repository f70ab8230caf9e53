package facturx

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/benedoc-inc/facturx/attach"
	"github.com/benedoc-inc/facturx/compose"
	"github.com/benedoc-inc/facturx/flavor"
	"github.com/benedoc-inc/facturx/schema"
	"github.com/benedoc-inc/facturx/types"
	"github.com/benedoc-inc/facturx/xmp"
)

// Result is a generated hybrid PDF
type Result struct {
	PDF        []byte
	Descriptor flavor.Descriptor
	// Version is the PDF header version of the output
	Version  string
	Report   *schema.Report
	Warnings []*types.Warning
}

// Generate embeds xml in pdf and returns the PDF/A-3 hybrid document.
// ZUGFeRD 1.0 documents are rejected with UNSUPPORTED_LEGACY_OPERATION.
func Generate(pdf, xml []byte, opts ...Option) (*Result, error) {
	return generate(context.Background(), pdf, xml, newConfig(opts))
}

// GenerateContext is Generate with a context for schema validation
func GenerateContext(ctx context.Context, pdf, xml []byte, opts ...Option) (*Result, error) {
	return generate(ctx, pdf, xml, newConfig(opts))
}

func generate(ctx context.Context, pdf, xml []byte, c *config) (*Result, error) {
	if len(pdf) == 0 {
		return nil, types.NewError(types.ErrCodeInvalidInput, "source PDF is empty")
	}
	if len(xml) == 0 {
		return nil, types.NewError(types.ErrCodeInvalidInput, "XML document is empty")
	}

	root, err := flavor.ParseRoot(xml)
	if err != nil {
		return nil, err
	}
	d, err := c.classify(root)
	if err != nil {
		return nil, err
	}
	if !d.CanGenerate() {
		return nil, types.NewErrorf(types.ErrCodeUnsupportedLegacyOperation,
			"%s documents can be extracted but not generated", d.Flavor).
			WithContext("namespace", d.Namespace)
	}
	log := c.logger.With(zap.String("flavor", d.Flavor.String()), zap.String("level", d.LevelOrType()))

	res := &Result{Descriptor: d}
	if c.checkSchema {
		report, err := schema.Check(ctx, xml, d, c.validator)
		if err != nil {
			return nil, err
		}
		res.Report = report
	}

	lang := c.lang
	if lang != "" {
		tag, err := language.Parse(lang)
		if err != nil {
			return nil, types.WrapError(types.ErrCodeInvalidInput, "invalid language tag", err).
				WithContext("lang", lang)
		}
		lang = tag.String()
	}

	var meta types.DocumentMetadata
	if c.metadata != nil {
		meta = *c.metadata
	} else {
		meta = flavor.ExtractBaseInfo(root, d).Metadata(d)
		log.Debug("derived metadata", zap.String("title", meta.Title), zap.String("author", meta.Author))
	}

	now := c.now()
	clock := func() time.Time { return now }

	packet, err := xmp.Build(xmp.Params{
		Descriptor:  d,
		Title:       meta.Title,
		Author:      meta.Author,
		Subject:     meta.Subject,
		Keywords:    meta.Keywords,
		Lang:        lang,
		Producer:    compose.Producer,
		CreatorTool: compose.Producer,
		CreateDate:  now,
		ModifyDate:  now,
	})
	if err != nil {
		return nil, err
	}

	specs, err := (&attach.Assembler{Now: clock}).Assemble(xml, d, c.attachments)
	if err != nil {
		return nil, err
	}

	composed, err := compose.Compose(pdf, specs, packet, compose.Options{
		Lang:     lang,
		Metadata: meta,
		AFFlags:  c.afFlags,
		Now:      clock,
		Logger:   c.logger,
	})
	if err != nil {
		return nil, err
	}
	res.PDF = composed.PDF
	res.Version = composed.Version
	res.Warnings = composed.Warnings

	log.Info("generated hybrid PDF",
		zap.String("filename", d.Filename()),
		zap.Int("attachments", len(specs)),
		zap.Int("size", len(res.PDF)))
	return res, nil
}

// GenerateFile reads the PDF and XML from disk and writes the result to
// outPath. An empty outPath rewrites pdfPath in place. An existing output
// file is only replaced with WithOverwrite(true).
func GenerateFile(ctx context.Context, pdfPath, xmlPath, outPath string, opts ...Option) (*Result, error) {
	c := newConfig(opts)
	if outPath == "" {
		outPath = pdfPath
	}
	if !c.overwrite {
		if _, err := os.Stat(outPath); err == nil {
			return nil, types.NewErrorf(types.ErrCodeInvalidInput, "output file %s already exists", outPath).
				WithContext("path", outPath)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, types.WrapErrorf(types.ErrCodeIOError, err, "cannot stat %s", outPath)
		}
	}

	pdf, err := os.ReadFile(pdfPath)
	if err != nil {
		return nil, types.WrapErrorf(types.ErrCodeIOError, err, "cannot read %s", pdfPath)
	}
	xml, err := os.ReadFile(xmlPath)
	if err != nil {
		return nil, types.WrapErrorf(types.ErrCodeIOError, err, "cannot read %s", xmlPath)
	}

	res, err := generate(ctx, pdf, xml, c)
	if err != nil {
		return nil, err
	}
	if err := writeFile(outPath, res.PDF); err != nil {
		return nil, types.WrapErrorf(types.ErrCodeIOError, err, "cannot write %s", outPath)
	}
	c.logger.Info("wrote hybrid PDF", zap.String("path", outPath), zap.Bool("in_place", outPath == pdfPath))
	return res, nil
}

// writeFile replaces path through a temporary file in the same directory so
// a failed write never truncates the source
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
