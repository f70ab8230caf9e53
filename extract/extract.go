// Package extract lists the embedded files of a PDF and locates the
// e-invoicing XML document among them.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"

	lpdf "github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/benedoc-inc/facturx/attach"
	"github.com/benedoc-inc/facturx/core/parse"
	"github.com/benedoc-inc/facturx/flavor"
	"github.com/benedoc-inc/facturx/schema"
	"github.com/benedoc-inc/facturx/types"
)

// maxTreeDepth bounds name tree recursion on cyclic /Kids
const maxTreeDepth = 32

// Embedded is one file found in the /EmbeddedFiles name tree
type Embedded struct {
	Name         string
	Data         []byte
	MIMEType     string
	Relationship attach.Relationship
	Description  string
}

// ListOptions controls ListAttachments
type ListOptions struct {
	Logger *zap.Logger
}

// ListAttachments returns the embedded files in name tree order. The
// document is read with github.com/ledongthuc/pdf; files it cannot open
// (for example PDF 2.0 headers or leading garbage) are read with core/parse.
func ListAttachments(data []byte, opts ListOptions) ([]Embedded, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	files, err := listWithReader(data)
	if err == nil {
		log.Debug("listed attachments", zap.String("reader", "ledongthuc"), zap.Int("count", len(files)))
		return files, nil
	}
	log.Debug("falling back to core/parse", zap.Error(err))

	pdf, perr := parse.OpenWithOptions(data, parse.ParseOptions{Logger: log})
	if perr != nil {
		return nil, types.WrapError(types.ErrCodeSourceDocument, "PDF cannot be parsed", perr)
	}
	if pdf.IsEncrypted() {
		return nil, types.NewError(types.ErrCodeSourceDocument, "encrypted PDF attachments cannot be read")
	}
	files, err = listWithParser(pdf)
	if err != nil {
		return nil, err
	}
	log.Debug("listed attachments", zap.String("reader", "core/parse"), zap.Int("count", len(files)))
	return files, nil
}

func listWithReader(data []byte) (files []Embedded, err error) {
	defer func() {
		if r := recover(); r != nil {
			files, err = nil, fmt.Errorf("pdf reader: %v", r)
		}
	}()

	r, err := lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	tree := r.Trailer().Key("Root").Key("Names").Key("EmbeddedFiles")
	if tree.IsNull() {
		return nil, nil
	}
	err = walkValue(tree, 0, func(key string, spec lpdf.Value) error {
		f, err := embeddedFromValue(key, spec)
		if err != nil {
			return err
		}
		files = append(files, f)
		return nil
	})
	return files, err
}

func walkValue(node lpdf.Value, depth int, visit func(string, lpdf.Value) error) error {
	if depth > maxTreeDepth {
		return types.NewError(types.ErrCodeSourceDocument, "embedded files name tree is too deep")
	}
	names := node.Key("Names")
	for i := 0; i+1 < names.Len(); i += 2 {
		if err := visit(names.Index(i).Text(), names.Index(i+1)); err != nil {
			return err
		}
	}
	kids := node.Key("Kids")
	for i := 0; i < kids.Len(); i++ {
		if err := walkValue(kids.Index(i), depth+1, visit); err != nil {
			return err
		}
	}
	return nil
}

func embeddedFromValue(key string, spec lpdf.Value) (Embedded, error) {
	f := Embedded{Name: key, Description: spec.Key("Desc").Text()}
	if uf := spec.Key("UF").Text(); uf != "" {
		f.Name = uf
	} else if name := spec.Key("F").Text(); name != "" && f.Name == "" {
		f.Name = name
	}
	f.Relationship, _ = attach.ParseRelationship(spec.Key("AFRelationship").Name())

	ef := spec.Key("EF")
	stream := ef.Key("UF")
	if stream.Kind() != lpdf.Stream {
		stream = ef.Key("F")
	}
	if stream.Kind() != lpdf.Stream {
		return Embedded{}, types.NewErrorf(types.ErrCodeSourceDocument, "file specification %q has no embedded stream", f.Name)
	}
	f.MIMEType = stream.Key("Subtype").Name()

	rc := stream.Reader()
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return Embedded{}, types.WrapErrorf(types.ErrCodeSourceDocument, err, "cannot decode embedded file %q", f.Name)
	}
	f.Data = data
	return f, nil
}

func listWithParser(pdf *parse.PDF) ([]Embedded, error) {
	catalog, err := pdf.Catalog()
	if err != nil {
		return nil, types.WrapError(types.ErrCodeSourceDocument, "catalog cannot be read", err)
	}
	names, err := resolveDict(pdf, catalog["Names"])
	if err != nil || names == nil {
		return nil, err
	}
	tree, err := resolveDict(pdf, names["EmbeddedFiles"])
	if err != nil || tree == nil {
		return nil, err
	}

	var files []Embedded
	err = walkDict(pdf, tree, 0, func(key string, obj parse.Object) error {
		f, err := embeddedFromDict(pdf, key, obj)
		if err != nil {
			return err
		}
		files = append(files, f)
		return nil
	})
	return files, err
}

func resolveDict(pdf *parse.PDF, obj parse.Object) (parse.Dict, error) {
	resolved, err := pdf.Resolve(obj)
	if err != nil {
		return nil, types.WrapError(types.ErrCodeSourceDocument, "object cannot be read", err)
	}
	d, _ := resolved.(parse.Dict)
	return d, nil
}

func resolveArray(pdf *parse.PDF, obj parse.Object) (parse.Array, error) {
	resolved, err := pdf.Resolve(obj)
	if err != nil {
		return nil, types.WrapError(types.ErrCodeSourceDocument, "object cannot be read", err)
	}
	a, _ := resolved.(parse.Array)
	return a, nil
}

func walkDict(pdf *parse.PDF, node parse.Dict, depth int, visit func(string, parse.Object) error) error {
	if depth > maxTreeDepth {
		return types.NewError(types.ErrCodeSourceDocument, "embedded files name tree is too deep")
	}
	names, err := resolveArray(pdf, node["Names"])
	if err != nil {
		return err
	}
	for i := 0; i+1 < len(names); i += 2 {
		key, err := pdf.Resolve(names[i])
		if err != nil {
			return types.WrapError(types.ErrCodeSourceDocument, "name tree key cannot be read", err)
		}
		if err := visit(parse.Text(key), names[i+1]); err != nil {
			return err
		}
	}
	kids, err := resolveArray(pdf, node["Kids"])
	if err != nil {
		return err
	}
	for _, kid := range kids {
		d, err := resolveDict(pdf, kid)
		if err != nil {
			return err
		}
		if d == nil {
			continue
		}
		if err := walkDict(pdf, d, depth+1, visit); err != nil {
			return err
		}
	}
	return nil
}

func embeddedFromDict(pdf *parse.PDF, key string, obj parse.Object) (Embedded, error) {
	spec, err := resolveDict(pdf, obj)
	if err != nil {
		return Embedded{}, err
	}
	if spec == nil {
		return Embedded{}, types.NewErrorf(types.ErrCodeSourceDocument, "file specification %q is not a dictionary", key)
	}
	f := Embedded{Name: key, Description: parse.Text(spec["Desc"])}
	if uf := parse.Text(spec["UF"]); uf != "" {
		f.Name = uf
	} else if name := parse.Text(spec["F"]); name != "" && f.Name == "" {
		f.Name = name
	}
	rel, _ := spec.Name("AFRelationship")
	f.Relationship, _ = attach.ParseRelationship(string(rel))

	ef, err := resolveDict(pdf, spec["EF"])
	if err != nil {
		return Embedded{}, err
	}
	var stream *parse.Stream
	for _, k := range []parse.Name{"UF", "F"} {
		if ef == nil {
			break
		}
		resolved, err := pdf.Resolve(ef[k])
		if err != nil {
			return Embedded{}, types.WrapError(types.ErrCodeSourceDocument, "embedded file cannot be read", err)
		}
		if s, ok := resolved.(*parse.Stream); ok {
			stream = s
			break
		}
	}
	if stream == nil {
		return Embedded{}, types.NewErrorf(types.ErrCodeSourceDocument, "file specification %q has no embedded stream", f.Name)
	}
	subtype, _ := stream.Dict.Name("Subtype")
	f.MIMEType = string(subtype)

	data, err := pdf.StreamData(stream)
	if err != nil {
		return Embedded{}, types.WrapErrorf(types.ErrCodeSourceDocument, err, "cannot decode embedded file %q", f.Name)
	}
	f.Data = data
	return f, nil
}

// Options control XML
type Options struct {
	// Classifier defaults to a strict one using Logger
	Classifier *flavor.Classifier
	// Validator, when set, checks the extracted document
	Validator schema.Validator
	Logger    *zap.Logger
}

// Result is the e-invoicing document found in a PDF
type Result struct {
	Filename    string
	XML         []byte
	Descriptor  flavor.Descriptor
	Attachments []Embedded
	Report      *schema.Report
	Warnings    []*types.Warning
}

// XML finds the first attachment named after a known flavor, in
// flavor.KnownFilenames priority order, that classifies by namespace. When
// no candidate classifies the first candidate's error is returned.
func XML(ctx context.Context, data []byte, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	classifier := opts.Classifier
	if classifier == nil {
		classifier = &flavor.Classifier{Strict: true, Logger: log}
	}

	files, err := ListAttachments(data, ListOptions{Logger: log})
	if err != nil {
		return nil, err
	}
	byName := make(map[string]int, len(files))
	for i, f := range files {
		if _, dup := byName[f.Name]; !dup {
			byName[f.Name] = i
		}
	}

	var firstErr error
	for _, name := range flavor.KnownFilenames {
		i, ok := byName[name]
		if !ok {
			continue
		}
		file := files[i]
		d, err := classifier.Classify(file.Data)
		if err != nil {
			log.Debug("candidate not classified, trying the next one", zap.String("filename", name), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		res := &Result{Filename: name, XML: file.Data, Descriptor: d, Attachments: files}
		var warnings types.Warnings
		if !flavor.HintAgrees(name, d) {
			hint, _ := flavor.FilenameHint(name)
			warnings.Add(types.NewWarningf(types.WarningLevelWarning, types.WarnFilenameHintConflict,
				"attachment %s suggests %s but its namespace is %s", name, hint, d.Flavor).
				WithContext("filename", name).
				WithContext("namespace", d.Namespace))
		}
		if opts.Validator != nil {
			report, err := schema.Check(ctx, file.Data, d, opts.Validator)
			if err != nil {
				return nil, err
			}
			res.Report = report
		}
		res.Warnings = warnings.List()

		log.Info("extracted embedded XML",
			zap.String("filename", name),
			zap.String("flavor", d.Flavor.String()),
			zap.String("level", d.LevelOrType()),
			zap.Int("size", len(file.Data)))
		return res, nil
	}

	if firstErr != nil {
		return nil, firstErr
	}

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	return nil, types.NewErrorf(types.ErrCodeNoEmbeddedXML,
		"no embedded file is named %v", flavor.KnownFilenames).
		WithContext("attachments", names)
}
