package normalize

import "testing"

func TestClean(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Max Planck Society", "Max Planck Society"},
		{"collapses whitespace", "Max   Planck\n\tSociety", "Max Planck Society"},
		{"trims punctuation", " , European Research Council.;", "European Research Council"},
		{"nfkc ligature", "ﬁnance agency", "finance agency"},
		{"empty", "", ""},
		{"only noise", " ,;.: ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.input); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestKey_CaseVariants(t *testing.T) {
	if Key("MIT") != Key("mit") {
		t.Errorf("Key(MIT) = %q, Key(mit) = %q, want equal", Key("MIT"), Key("mit"))
	}
	if Key("  Max  Planck ") != Key("max planck") {
		t.Error("whitespace variants should share a key")
	}
	if !Equal("Straße", "STRASSE") {
		t.Error("case folding should equate Straße and STRASSE")
	}
	if Equal("MIT", "MITRE") {
		t.Error("different names must not share a key")
	}
}
