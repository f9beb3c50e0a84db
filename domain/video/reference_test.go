package video

import (
	"fmt"
	"testing"
)

func TestParseSourceKind(t *testing.T) {
	tests := []struct {
		input   string
		want    SourceKind
		wantErr bool
	}{
		{"youtube", KindRemoteStream, false},
		{"Drive", KindCloud, false},
		{"local", KindLocal, false},
		{"dropbox", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSourceKind(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSourceKind(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseSourceKind(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseCardinality(t *testing.T) {
	if got, err := ParseCardinality("one"); err != nil || got != Single {
		t.Errorf("ParseCardinality(one) = %q, %v", got, err)
	}
	if got, err := ParseCardinality("MULTIPLE"); err != nil || got != Multiple {
		t.Errorf("ParseCardinality(MULTIPLE) = %q, %v", got, err)
	}
	if _, err := ParseCardinality("many"); err == nil {
		t.Error("ParseCardinality(many) expected error")
	}
}

func TestReference_Stem(t *testing.T) {
	tests := []struct {
		name string
		ref  Reference
		want string
	}{
		{"uses name", Reference{ID: "abc", Name: "Weekly Sync"}, "Weekly Sync"},
		{"falls back to id", Reference{ID: "dQw4w9WgXcQ"}, "dQw4w9WgXcQ"},
		{"sanitizes separators", Reference{ID: "x", Name: "a/b:c"}, "a_b_c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ref.Stem(); got != tt.want {
				t.Errorf("Stem() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFileStem(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"clip", "clip"},
		{"  spaced  ", "spaced"},
		{"Café", "Café"},
		{"Cafe\u0301", "Caf\u00e9"},
		{"tab\there", "tabhere"},
		{"...", "untitled"},
		{"", "untitled"},
		{`a\b|c?`, "a_b_c_"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := FileStem(tt.input); got != tt.want {
				t.Errorf("FileStem(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestChunkPattern(t *testing.T) {
	tests := []struct {
		base string
		ext  string
		want string
	}{
		{"temp/talk", ".mp3", "temp/talk.chunk%03d.mp3"},
		{"temp/100% Growth", ".mp3", "temp/100%% Growth.chunk%03d.mp3"},
		{"50%/a%d", ".wav", "50%%/a%%d.chunk%03d.wav"},
	}

	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			got := ChunkPattern(tt.base, tt.ext)
			if got != tt.want {
				t.Errorf("ChunkPattern(%q) = %q, want %q", tt.base, got, tt.want)
			}
			if first := fmt.Sprintf(got, 0); first != tt.base+".chunk000"+tt.ext {
				t.Errorf("first chunk = %q, want the literal base", first)
			}
		})
	}
}
