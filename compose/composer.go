// Package compose turns an ordinary PDF into a PDF/A-3 hybrid document by
// cloning its object graph and adding the XMP packet and embedded files.
package compose

import (
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/benedoc-inc/facturx/attach"
	"github.com/benedoc-inc/facturx/core/parse"
	"github.com/benedoc-inc/facturx/core/write"
	"github.com/benedoc-inc/facturx/types"
)

// Producer is written as /Producer and /Creator of the Info dictionary
const Producer = "facturx"

// MinVersion is the lowest header version of a composed document
const MinVersion = "1.6"

// AFFlags selects where associated-file relationships are declared
type AFFlags uint8

const (
	// AFCatalog writes the catalog /AF array
	AFCatalog AFFlags = 1 << iota
	// AFFilespec writes /AFRelationship on each file specification
	AFFilespec
)

// DefaultAFFlags declares relationships in both places
const DefaultAFFlags = AFCatalog | AFFilespec

// Options control Compose
type Options struct {
	// Lang is a BCP 47 tag written as the catalog /Lang
	Lang     string
	Metadata types.DocumentMetadata
	AFFlags  AFFlags
	// Now stamps the Info dictionary; defaults to time.Now
	Now    func() time.Time
	Logger *zap.Logger
}

// DefaultOptions returns options with both AF flags set
func DefaultOptions() Options {
	return Options{AFFlags: DefaultAFFlags}
}

// Result is a composed document and the findings collected on the way
type Result struct {
	PDF      []byte
	Version  string
	Warnings []*types.Warning
}

// Compose clones src and adds the XMP packet and the embedded files of specs
func Compose(src []byte, specs []attach.Spec, packet []byte, opts Options) (*Result, error) {
	if len(specs) == 0 {
		return nil, types.NewError(types.ErrCodeInvalidInput, "at least one attachment is required")
	}
	if len(packet) == 0 {
		return nil, types.NewError(types.ErrCodeInvalidInput, "XMP packet is empty")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	lang := ""
	if opts.Lang != "" {
		tag, err := language.Parse(opts.Lang)
		if err != nil {
			return nil, types.WrapErrorf(types.ErrCodeInvalidInput, err, "invalid language tag %q", opts.Lang)
		}
		lang = tag.String()
	}

	pdf, err := parse.OpenWithOptions(src, parse.ParseOptions{Logger: log})
	if err != nil {
		return nil, types.WrapError(types.ErrCodeSourceDocument, "source PDF cannot be parsed", err)
	}
	if pdf.IsEncrypted() {
		return nil, types.NewError(types.ErrCodeSourceDocument, "encrypted source PDF cannot be cloned")
	}

	c := &composer{pdf: pdf, w: write.NewPDFWriter(), opts: opts, log: log}
	if err := c.clone(); err != nil {
		return nil, err
	}
	if err := c.updateCatalog(specs, packet, lang); err != nil {
		return nil, err
	}

	stamp := now()
	info := write.Metadata(opts.Metadata, stamp, stamp)
	info["Creator"] = parse.String(Producer)
	info["Producer"] = parse.String(Producer)
	c.w.SetMetadata(info)

	version := MaxVersion(pdf.Version(), MinVersion)
	c.w.SetVersion(version)

	if id, ok := pdf.ID(); ok {
		c.w.SetFileID(id)
	} else {
		generated := uuid.New()
		c.w.SetFileID([2][]byte{generated[:], generated[:]})
		c.warnings.Add(types.NewWarning(types.WarningLevelInfo, types.WarnGeneratedFileID,
			"source PDF has no /ID, a new one was generated").WithContext("id", generated.String()))
	}

	out, err := c.w.Bytes()
	if err != nil {
		return nil, err
	}
	log.Info("composed hybrid PDF",
		zap.String("version", version),
		zap.Int("attachments", len(specs)),
		zap.Int("size", len(out)))

	return &Result{PDF: out, Version: version, Warnings: c.warnings.List()}, nil
}

type composer struct {
	pdf      *parse.PDF
	w        *write.PDFWriter
	opts     Options
	log      *zap.Logger
	warnings types.Warnings
	root     parse.Ref
}

// clone copies every live object at its original number. Object and
// cross-reference streams are dropped since the writer flattens them.
func (c *composer) clone() error {
	root, ok := c.pdf.Trailer()["Root"].(parse.Ref)
	if !ok {
		return types.NewError(types.ErrCodeSourceDocument, "trailer /Root is not a reference")
	}
	c.root = root

	skip := map[int]bool{}
	if info, ok := c.pdf.Trailer()["Info"].(parse.Ref); ok {
		skip[info.Num] = true
	}

	cloned := 0
	for _, num := range c.pdf.ObjectNumbers() {
		if skip[num] {
			continue
		}
		obj, err := c.pdf.Object(num)
		if err != nil {
			return types.WrapErrorf(types.ErrCodeSourceDocument, err, "object %d cannot be read", num)
		}
		if parse.IsContainer(obj) {
			continue
		}
		c.w.SetObjectWithGeneration(num, c.pdf.Generation(num), obj)
		cloned++
	}
	c.log.Debug("cloned source objects", zap.Int("count", cloned), zap.String("version", c.pdf.Version()))
	return nil
}

func (c *composer) updateCatalog(specs []attach.Spec, packet []byte, lang string) error {
	source, err := c.pdf.Catalog()
	if err != nil {
		return types.WrapError(types.ErrCodeSourceDocument, "catalog cannot be read", err)
	}
	catalog := source.Clone()

	catalog["PageMode"] = parse.Name("UseAttachments")
	catalog["Metadata"] = parse.Ref{Num: c.w.AddStreamObject(parse.Dict{
		"Type":    parse.Name("Metadata"),
		"Subtype": parse.Name("XML"),
	}, packet, true)}

	type entry struct {
		key  parse.String
		spec parse.Ref
	}
	entries := make([]entry, 0, len(specs))
	for _, spec := range specs {
		ref, err := c.embed(spec)
		if err != nil {
			return err
		}
		entries = append(entries, entry{key: write.TextString(spec.Filename), spec: ref})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return string(entries[i].key) < string(entries[j].key)
	})

	tree := make(parse.Array, 0, 2*len(entries))
	af := make(parse.Array, 0, len(entries))
	for _, e := range entries {
		tree = append(tree, e.key, e.spec)
		af = append(af, e.spec)
	}

	names := parse.Dict{}
	if existing, err := c.pdf.Resolve(catalog["Names"]); err == nil {
		if d, ok := existing.(parse.Dict); ok {
			names = d.Clone()
		}
	}
	if _, ok := names["EmbeddedFiles"]; ok {
		c.warnings.Add(types.NewWarning(types.WarningLevelWarning, types.WarnReplacedAttachments,
			"existing embedded files of the source PDF were replaced"))
	}
	names["EmbeddedFiles"] = parse.Dict{"Names": tree}
	catalog["Names"] = names

	if c.opts.AFFlags&AFCatalog != 0 {
		catalog["AF"] = af
	} else {
		delete(catalog, "AF")
	}
	if lang != "" {
		catalog["Lang"] = write.TextString(lang)
	}

	if c.hasOutputIntents(catalog) {
		c.log.Debug("keeping source output intents")
	} else {
		profile := c.w.AddStreamObject(parse.Dict{"N": parse.Integer(3)}, SRGBProfile(), true)
		catalog["OutputIntents"] = parse.Array{parse.Dict{
			"Type":                      parse.Name("OutputIntent"),
			"S":                         parse.Name("GTS_PDFA1"),
			"OutputConditionIdentifier": parse.String(SRGBProfileDescription),
			"RegistryName":              parse.String("http://www.color.org"),
			"Info":                      parse.String(SRGBProfileDescription),
			"DestOutputProfile":         parse.Ref{Num: profile},
		}}
		c.warnings.Add(types.NewWarning(types.WarningLevelInfo, types.WarnNoOutputIntent,
			"source PDF has no output intent; declared sRGB with the built-in ICC profile"))
	}

	c.w.SetObjectWithGeneration(c.root.Num, c.root.Gen, catalog)
	c.w.SetRoot(c.root.Num)
	return nil
}

func (c *composer) hasOutputIntents(catalog parse.Dict) bool {
	obj, err := c.pdf.Resolve(catalog["OutputIntents"])
	if err != nil {
		return false
	}
	arr, ok := obj.(parse.Array)
	return ok && len(arr) > 0
}

// embed writes the embedded file stream and its file specification
func (c *composer) embed(spec attach.Spec) (parse.Ref, error) {
	sum, err := hex.DecodeString(spec.CheckSum())
	if err != nil {
		return parse.Ref{}, types.WrapError(types.ErrCodeWriteError, "checksum", err)
	}
	params := parse.Dict{
		"Size":     parse.Integer(len(spec.Data)),
		"CheckSum": parse.HexString(sum),
	}
	if !spec.CreationDate.IsZero() {
		params["CreationDate"] = parse.String(write.FormatDate(spec.CreationDate))
	}
	if !spec.ModDate.IsZero() {
		params["ModDate"] = parse.String(write.FormatDate(spec.ModDate))
	}

	mimeType := spec.MIMEType
	if mimeType == "" {
		mimeType = attach.OctetStream
	}
	file := c.w.AddStreamObject(parse.Dict{
		"Type":    parse.Name("EmbeddedFile"),
		"Subtype": parse.Name(mimeType),
		"Params":  params,
	}, spec.Data, true)

	filespec := parse.Dict{
		"Type": parse.Name("Filespec"),
		"F":    write.TextString(spec.Filename),
		"UF":   write.TextString(spec.Filename),
		"EF":   parse.Dict{"F": parse.Ref{Num: file}, "UF": parse.Ref{Num: file}},
	}
	if spec.Description != "" {
		filespec["Desc"] = write.TextString(spec.Description)
	}
	if c.opts.AFFlags&AFFilespec != 0 {
		filespec["AFRelationship"] = parse.Name(spec.Relationship.String())
	}

	num := c.w.AddObject(filespec)
	c.log.Debug("embedded file",
		zap.String("filename", spec.Filename),
		zap.String("mime", mimeType),
		zap.Stringer("relationship", spec.Relationship),
		zap.Int("size", len(spec.Data)))
	return parse.Ref{Num: num}, nil
}

// MaxVersion returns the higher of two "major.minor" PDF versions
func MaxVersion(a, b string) string {
	if compareVersions(a, b) >= 0 {
		return a
	}
	return b
}

func compareVersions(a, b string) int {
	pa, pb := splitVersion(a), splitVersion(b)
	for i := 0; i < 2; i++ {
		if pa[i] != pb[i] {
			if pa[i] < pb[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func splitVersion(v string) [2]int {
	var out [2]int
	major, minor, _ := strings.Cut(v, ".")
	out[0], _ = strconv.Atoi(major)
	out[1], _ = strconv.Atoi(minor)
	return out
}
