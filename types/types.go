package types

// DocumentMetadata holds the human-facing properties written to both the
// Info dictionary and the XMP packet of a generated document.
type DocumentMetadata struct {
	Title    string `json:"title,omitempty"`
	Author   string `json:"author,omitempty"`
	Subject  string `json:"subject,omitempty"`
	Keywords string `json:"keywords,omitempty"`
}

// IsZero reports whether no field is set
func (m DocumentMetadata) IsZero() bool {
	return m == DocumentMetadata{}
}
