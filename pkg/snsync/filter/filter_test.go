package filter

import (
	"slices"
	"testing"
)

var (
	deviceSupported = NewSuffixSet(".pdf", ".epub", ".png", ".jpg", ".cbz", ".fb2", ".xps")
	deviceNative    = NewSuffixSet(".note", ".mark")
	convertible     = NewSuffixSet(".org")
)

func exportFilter() *Set {
	return ForExport(deviceSupported, convertible, deviceNative, DefaultArtifactMarkers)
}

func TestForExport(t *testing.T) {
	names := []string{"a.pdf", "b.org", "c.note", ".hidden", "d.txt"}

	got := exportFilter().Exclude("/docs", names)

	want := []string{"c.note", ".hidden", "d.txt"}
	if !slices.Equal(got, want) {
		t.Errorf("Exclude() = %v, want %v", got, want)
	}
}

func TestForExport_Cases(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		excluded bool
	}{
		{name: "supported document", file: "paper.pdf", excluded: false},
		{name: "convertible source", file: "notes.org", excluded: false},
		{name: "comic archive", file: "issue.cbz", excluded: false},
		{name: "native note", file: "sketch.note", excluded: true},
		{name: "native annotation", file: "paper.pdf.mark", excluded: true},
		{name: "hidden supported", file: ".paper.pdf", excluded: true},
		{name: "unsupported", file: "readme.txt", excluded: true},
		{name: "no suffix", file: "Makefile", excluded: true},
		{name: "generated artifact", file: "ltximg_eq1.png", excluded: true},
		{name: "upper-case suffix", file: "SCAN.PDF", excluded: true},
	}

	f := exportFilter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Excludes("/docs", tt.file); got != tt.excluded {
				t.Errorf("Excludes(%q) = %v, want %v", tt.file, got, tt.excluded)
			}
		})
	}
}

func TestForExport_ConvertibleNeedsUnion(t *testing.T) {
	// Without the convertible set, Org files never reach the converter.
	withoutConvertible := ForExport(deviceSupported, NewSuffixSet(), deviceNative, nil)
	if !withoutConvertible.Excludes("/docs", "notes.org") {
		t.Fatal("expected notes.org to be excluded without convertible suffixes")
	}
	if exportFilter().Excludes("/docs", "notes.org") {
		t.Fatal("expected notes.org to survive with convertible suffixes")
	}
}

func TestForBackup(t *testing.T) {
	names := []string{"a.note", "a.pdf.mark", "b.pdf", "c.png", ".x.note"}

	got := ForBackup(deviceNative).Exclude("/device", names)

	want := []string{"b.pdf", "c.png"}
	if !slices.Equal(got, want) {
		t.Errorf("Exclude() = %v, want %v", got, want)
	}
}

func TestForImport(t *testing.T) {
	names := []string{"a.note", "a.pdf.mark", "b.pdf"}

	got := ForImport(".note").Exclude("/device", names)

	want := []string{"a.pdf.mark", "b.pdf"}
	if !slices.Equal(got, want) {
		t.Errorf("Exclude() = %v, want %v", got, want)
	}
}

func TestExclude_IsPure(t *testing.T) {
	names := []string{"a.pdf", "b.txt"}
	original := slices.Clone(names)

	f := exportFilter()
	first := f.Exclude("/docs", names)
	second := f.Exclude("/docs", names)

	if !slices.Equal(names, original) {
		t.Errorf("Exclude() modified input: %v", names)
	}
	if !slices.Equal(first, second) {
		t.Errorf("Exclude() not deterministic: %v vs %v", first, second)
	}
}

func TestSet_With(t *testing.T) {
	base := New(PolicyCustom, Hidden())
	extended := base.With(Containing("draft"))

	if base.Excludes("/d", "draft.pdf") {
		t.Error("With() modified the original filter")
	}
	if !extended.Excludes("/d", "draft.pdf") {
		t.Error("extended filter should exclude draft.pdf")
	}
	if extended.Policy() != PolicyCustom {
		t.Errorf("Policy() = %v, want custom", extended.Policy())
	}
}

func TestFunc(t *testing.T) {
	var f Filter = Func(func(_ string, names []string) []string {
		return names[:1]
	})
	if got := f.Exclude("/d", []string{"x", "y"}); !slices.Equal(got, []string{"x"}) {
		t.Errorf("Func.Exclude() = %v", got)
	}
}

func TestContaining_IgnoresEmptyMarker(t *testing.T) {
	if Containing("")("/d", "anything.pdf") {
		t.Error("empty marker should never match")
	}
}

func TestSuffixSet(t *testing.T) {
	s := NewSuffixSet(".pdf", ".tar.gz")
	if !s.Match("a.tar.gz") {
		t.Error("expected multi-dot suffix to match")
	}
	if s.Match("a.gz") {
		t.Error("did not expect .gz to match")
	}

	u := s.Union(NewSuffixSet(".org"))
	if got := u.Slice(); !slices.Equal(got, []string{".org", ".pdf", ".tar.gz"}) {
		t.Errorf("Union().Slice() = %v", got)
	}
	if s.Len() != 2 {
		t.Errorf("Union() modified the receiver, Len() = %d", s.Len())
	}

	var zero SuffixSet
	if zero.Match("a.pdf") || zero.Len() != 0 || len(zero.Slice()) != 0 {
		t.Error("zero SuffixSet should be empty")
	}
	if got := zero.Union(NewSuffixSet(".pdf")).Slice(); !slices.Equal(got, []string{".pdf"}) {
		t.Errorf("zero.Union() = %v", got)
	}
}


func TestPolicy_String(t *testing.T) {
	tests := []struct {
		policy Policy
		want   string
	}{
		{PolicyExport, "export"},
		{PolicyBackup, "backup"},
		{PolicyImport, "import"},
		{PolicyCustom, "custom"},
		{Policy(42), "custom"},
	}

	for _, tt := range tests {
		if got := tt.policy.String(); got != tt.want {
			t.Errorf("Policy(%d).String() = %q, want %q", int(tt.policy), got, tt.want)
		}
	}
}
