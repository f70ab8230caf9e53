package types

import (
	"fmt"
	"time"
)

// WarningLevel represents the severity of a warning
type WarningLevel string

const (
	WarningLevelInfo    WarningLevel = "info"
	WarningLevelWarning WarningLevel = "warning"
)

// Warning codes
const (
	WarnFilenameHintConflict = "FILENAME_HINT_CONFLICT"
	WarnNoOutputIntent       = "NO_OUTPUT_INTENT"
	WarnGeneratedFileID      = "GENERATED_FILE_ID"
	WarnReplacedAttachments  = "REPLACED_ATTACHMENTS"
	WarnLevelDefaulted       = "LEVEL_DEFAULTED"
)

// Warning is a non-fatal finding reported alongside a successful result
type Warning struct {
	Level     WarningLevel
	Code      string
	Message   string
	Context   map[string]interface{}
	Timestamp time.Time
}

// Error implements the error interface so warnings can be used as errors if needed
func (w *Warning) Error() string {
	if w.Code != "" {
		return fmt.Sprintf("[%s] %s: %s", w.Level, w.Code, w.Message)
	}
	return fmt.Sprintf("[%s] %s", w.Level, w.Message)
}

// WithContext adds context to the warning and returns the same warning for chaining
func (w *Warning) WithContext(key string, value interface{}) *Warning {
	if w.Context == nil {
		w.Context = make(map[string]interface{})
	}
	w.Context[key] = value
	return w
}

// NewWarning creates a new warning with a code
func NewWarning(level WarningLevel, code, message string) *Warning {
	return &Warning{
		Level:     level,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewWarningf creates a new warning with a code and a formatted message
func NewWarningf(level WarningLevel, code, format string, args ...interface{}) *Warning {
	return NewWarning(level, code, fmt.Sprintf(format, args...))
}

// Warnings collects warnings during one operation. The zero value is ready to use.
type Warnings struct {
	list []*Warning
}

// Add appends a warning, ignoring nil
func (ws *Warnings) Add(w *Warning) {
	if w != nil {
		ws.list = append(ws.list, w)
	}
}

// Addf appends a warning-level entry with a formatted message
func (ws *Warnings) Addf(code, format string, args ...interface{}) *Warning {
	w := NewWarningf(WarningLevelWarning, code, format, args...)
	ws.Add(w)
	return w
}

// List returns the collected warnings in insertion order
func (ws *Warnings) List() []*Warning {
	return ws.list
}

// Has reports whether a warning with the given code was collected
func (ws *Warnings) Has(code string) bool {
	for _, w := range ws.list {
		if w.Code == code {
			return true
		}
	}
	return false
}

// Len returns the number of collected warnings
func (ws *Warnings) Len() int {
	return len(ws.list)
}
