package video

import (
	"fmt"
	"strings"
)

// SourceKind is the origin category of a video
type SourceKind string

const (
	KindRemoteStream SourceKind = "youtube"
	KindCloud        SourceKind = "drive"
	KindLocal        SourceKind = "local"
)

// ParseSourceKind validates a source_type value
func ParseSourceKind(s string) (SourceKind, error) {
	switch k := SourceKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindRemoteStream, KindCloud, KindLocal:
		return k, nil
	}
	return "", fmt.Errorf("source type must be one of youtube, drive, local; got %q", s)
}

// Cardinality says whether a run targets one video or a collection
type Cardinality string

const (
	Single   Cardinality = "one"
	Multiple Cardinality = "multiple"
)

// ParseCardinality validates a source_format value
func ParseCardinality(s string) (Cardinality, error) {
	switch c := Cardinality(strings.ToLower(strings.TrimSpace(s))); c {
	case Single, Multiple:
		return c, nil
	}
	return "", fmt.Errorf("source format must be one or multiple; got %q", s)
}

// Reference is one addressable video. It is a value and is never modified
// after the locator produces it.
type Reference struct {
	Kind SourceKind
	// ID is the remote video id, the cloud file id, or the local file path
	ID string
	// Name is the display name used for intermediate and output file names
	Name string
	// MimeType and Ext are set for cloud files. Ext is the extension stripped from Name.
	MimeType string
	Ext      string
}

// Stem returns the file-safe base name for files derived from this reference
func (r Reference) Stem() string {
	if r.Name != "" {
		return FileStem(r.Name)
	}
	return FileStem(r.ID)
}

// String identifies the reference in logs and reports
func (r Reference) String() string {
	if r.Name != "" && r.Name != r.ID {
		return fmt.Sprintf("%s (%s)", r.Name, r.ID)
	}
	return r.ID
}
