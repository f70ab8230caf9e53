// Package attach assembles the ordered list of files embedded in a hybrid
// PDF: the main XML document first, followed by any supporting attachments.
package attach

import (
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/benedoc-inc/facturx/flavor"
	"github.com/benedoc-inc/facturx/types"
)

// Relationship is the /AFRelationship of an embedded file
type Relationship int

const (
	Unspecified Relationship = iota
	Data
	Source
	Alternative
	Supplement
)

func (r Relationship) String() string {
	switch r {
	case Data:
		return "Data"
	case Source:
		return "Source"
	case Alternative:
		return "Alternative"
	case Supplement:
		return "Supplement"
	}
	return "Unspecified"
}

// ParseRelationship accepts the relationship names case-insensitively.
// An empty string means Unspecified.
func ParseRelationship(s string) (Relationship, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "/")) {
	case "", "unspecified":
		return Unspecified, nil
	case "data":
		return Data, nil
	case "source":
		return Source, nil
	case "alternative":
		return Alternative, nil
	case "supplement":
		return Supplement, nil
	}
	return Unspecified, types.NewErrorf(types.ErrCodeInvalidRelationship,
		"relationship %q is not one of Data, Source, Alternative, Supplement, Unspecified", s).
		WithContext("relationship", s)
}

// Spec is one file to embed
type Spec struct {
	Filename     string
	Data         []byte
	MIMEType     string
	Relationship Relationship
	CreationDate time.Time
	ModDate      time.Time
	Description  string
}

// CheckSum is the hex MD5 digest of Data
func (s Spec) CheckSum() string {
	sum := md5.Sum(s.Data)
	return hex.EncodeToString(sum[:])
}

// Input describes a caller-supplied attachment
type Input struct {
	Filename     string
	Data         []byte
	MIMEType     string // detected when empty
	Relationship string // Unspecified when empty
	CreationDate time.Time
	ModDate      time.Time
	Description  string
}

// Assembler builds Spec sequences. The zero value uses time.Now.
type Assembler struct {
	Now func() time.Time
}

// Assemble returns the main XML followed by extras in caller order. The main
// document is always named after the flavor and tagged Data.
func (a *Assembler) Assemble(xml []byte, d flavor.Descriptor, extras []Input) ([]Spec, error) {
	if len(xml) == 0 {
		return nil, types.NewError(types.ErrCodeInvalidInput, "main XML document is empty")
	}
	now := a.now()

	specs := make([]Spec, 0, len(extras)+1)
	specs = append(specs, Spec{
		Filename:     d.Filename(),
		Data:         xml,
		MIMEType:     "text/xml",
		Relationship: Data,
		CreationDate: now,
		ModDate:      now,
		Description:  d.Description(),
	})
	seen := map[string]int{d.Filename(): 0}

	for i, in := range extras {
		name := filepath.Base(strings.TrimSpace(in.Filename))
		if name == "" || name == "." || name == string(filepath.Separator) {
			return nil, types.NewErrorf(types.ErrCodeInvalidInput, "attachment %d has no filename", i+1)
		}
		if prev, dup := seen[name]; dup {
			return nil, types.NewErrorf(types.ErrCodeDuplicateFilename,
				"attachment filename %q is used more than once", name).
				WithContext("filename", name).
				WithContext("first", prev).
				WithContext("second", i+1)
		}
		seen[name] = i + 1

		rel, err := ParseRelationship(in.Relationship)
		if err != nil {
			return nil, err
		}
		mimeType := in.MIMEType
		if mimeType == "" {
			mimeType = DetectMIME(name, in.Data)
		}
		spec := Spec{
			Filename:     name,
			Data:         in.Data,
			MIMEType:     mimeType,
			Relationship: rel,
			CreationDate: in.CreationDate,
			ModDate:      in.ModDate,
			Description:  in.Description,
		}
		if spec.CreationDate.IsZero() {
			spec.CreationDate = now
		}
		if spec.ModDate.IsZero() {
			spec.ModDate = now
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func (a *Assembler) now() time.Time {
	if a != nil && a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// LoadFile reads an attachment from disk. The file's modification time
// becomes ModDate; the description defaults to the base filename.
func LoadFile(path, description, relationship string) (Input, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Input{}, types.WrapErrorf(types.ErrCodeIOError, err, "cannot stat attachment %s", path)
	}
	if info.IsDir() {
		return Input{}, types.NewErrorf(types.ErrCodeInvalidInput, "attachment %s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Input{}, types.WrapErrorf(types.ErrCodeIOError, err, "cannot read attachment %s", path)
	}
	if _, err := ParseRelationship(relationship); err != nil {
		return Input{}, err
	}
	name := filepath.Base(path)
	if description == "" {
		description = name
	}
	return Input{
		Filename:     name,
		Data:         data,
		Relationship: relationship,
		ModDate:      info.ModTime(),
		Description:  description,
	}, nil
}
