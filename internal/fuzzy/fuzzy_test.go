package fuzzy

import "testing"

func TestRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"identical", "deep learning", "deep learning", 100},
		{"both empty", "", "", 100},
		{"one empty", "abc", "", 0},
		{"completely different", "abc", "xyz", 0},
		{"substitution costs two", "kitten", "sitten", 83},
		{"insertion costs one", "aerofoil", "aerofoils", 94},
		{"two substitutions", "genomics", "genetics", 75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Ratio(tt.a, tt.b); got != tt.want {
				t.Errorf("Ratio(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestTokenSetRatio(t *testing.T) {
	tests := []struct {
		name    string
		a, b    string
		wantMin int
		wantMax int
	}{
		{"reordered words", "University of Oxford", "Oxford University of", 100, 100},
		{"subset", "Oxford", "University of Oxford", 100, 100},
		{"case insensitive", "ETH ZURICH", "eth zurich", 100, 100},
		{"unrelated", "University of Oxford", "Max Planck Institute", 0, 69},
		{"empty", "", "anything", 0, 0},
		{"near title", "Benchmarking machine learning models for aerofoils",
			"Benchmarking machine-learning models for predicting aerofoil performance", 70, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TokenSetRatio(tt.a, tt.b)
			if got < tt.wantMin || got > tt.wantMax {
				t.Errorf("TokenSetRatio(%q, %q) = %d, want in [%d, %d]", tt.a, tt.b, got, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestPartialRatio(t *testing.T) {
	tests := []struct {
		name     string
		needle   string
		haystack string
		wantMin  int
	}{
		{"literal substring", "aerofoil", "Predicting aerofoil performance", 100},
		{"case insensitive", "AEROFOIL", "predicting aerofoil performance", 100},
		{"one typo", "aerofoil", "predicting aerofoyl performance", 85},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PartialRatio(tt.needle, tt.haystack); got < tt.wantMin {
				t.Errorf("PartialRatio(%q, %q) = %d, want >= %d", tt.needle, tt.haystack, got, tt.wantMin)
			}
		})
	}

	if got := PartialRatio("", "text"); got != 0 {
		t.Errorf("PartialRatio with empty needle = %d, want 0", got)
	}
	if got := PartialRatio("genomics", "Population genetics of maize"); got >= 85 {
		t.Errorf("PartialRatio(genomics, ...genetics...) = %d, want < 85", got)
	}
	if got := PartialRatio("turbulence", "graph neural networks"); got >= 85 {
		t.Errorf("PartialRatio for unrelated keyword = %d, want < 85", got)
	}
}
