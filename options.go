package facturx

import (
	"time"

	"go.uber.org/zap"

	"github.com/benedoc-inc/facturx/attach"
	"github.com/benedoc-inc/facturx/compose"
	"github.com/benedoc-inc/facturx/schema"
	"github.com/benedoc-inc/facturx/types"
)

type config struct {
	level       string
	checkSchema bool
	validator   schema.Validator
	metadata    *types.DocumentMetadata
	attachments []attach.Input
	lang        string
	logger      *zap.Logger
	strict      bool
	overwrite   bool
	afFlags     compose.AFFlags
	now         func() time.Time
}

// Option configures Generate, ExtractXML and CheckXML
type Option func(*config)

func newConfig(opts []Option) *config {
	c := &config{
		checkSchema: true,
		validator:   schema.StructuralValidator{},
		logger:      zap.NewNop(),
		strict:      true,
		afFlags:     compose.DefaultAFFlags,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithLevel overrides the detected conformance level, e.g. "basic" or "en16931".
// The flavor is always taken from the XML namespace.
func WithLevel(level string) Option {
	return func(c *config) {
		c.level = level
	}
}

// WithCheckSchema enables or disables schema validation (enabled by default)
func WithCheckSchema(check bool) Option {
	return func(c *config) {
		c.checkSchema = check
	}
}

// WithValidator replaces the default structural validator and turns schema
// checking on
func WithValidator(v schema.Validator) Option {
	return func(c *config) {
		if v != nil {
			c.validator = v
			c.checkSchema = true
		}
	}
}

// WithMetadata sets the document metadata instead of deriving it from the XML
func WithMetadata(m types.DocumentMetadata) Option {
	return func(c *config) {
		c.metadata = &m
	}
}

// WithAttachments adds files embedded after the XML document
func WithAttachments(in ...attach.Input) Option {
	return func(c *config) {
		c.attachments = append(c.attachments, in...)
	}
}

// WithLang sets the document language as a BCP 47 tag
func WithLang(tag string) Option {
	return func(c *config) {
		c.lang = tag
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithStrict controls whether an unresolvable level is an error (the
// default) or falls back to the flavor's default level
func WithStrict(strict bool) Option {
	return func(c *config) {
		c.strict = strict
	}
}

// WithOverwrite allows GenerateFile to replace an existing output file
func WithOverwrite(overwrite bool) Option {
	return func(c *config) {
		c.overwrite = overwrite
	}
}

// WithAFFlags selects where /AFRelationship information is written
func WithAFFlags(flags compose.AFFlags) Option {
	return func(c *config) {
		c.afFlags = flags
	}
}

// WithClock sets the time source for dates written to the document
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}
