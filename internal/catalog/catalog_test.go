package catalog

import "testing"

func TestParseBaseName(t *testing.T) {
	cases := []struct {
		filename string
		want     string
	}{
		{"The Runoff (1).wav", "The Runoff"},
		{"The Runoff (2).wav", "The Runoff"},
		{"The Runoff.wav", "The Runoff"},
		{"Song (12).wav", "Song"},
		{"Song (1) .wav", "Song"},
		{"No Extension (3)", "No Extension"},
		{"Parens (not a take) (2).wav", "Parens (not a take)"},
		{"Track 2.wav", "Track 2"},
		{"  Spaced (1).wav", "Spaced"},
	}

	for _, tc := range cases {
		got := ParseBaseName(tc.filename)
		if got != tc.want {
			t.Errorf("ParseBaseName(%q) = %q, want %q", tc.filename, got, tc.want)
		}
	}
}
