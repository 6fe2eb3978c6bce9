package lang

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"en", "en", true},
		{"fr-CA", "fr", true},
		{"ES", "es", true},
		{"French", "fr", true},
		{"spanish", "es", true},
		{"Français", "fr", true},
		{"ar", "ar", true},
		{"", "en", false},
		{"klingon-ish language", "en", false},
	}
	for _, tt := range tests {
		got, ok := Normalize(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("Normalize(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestName(t *testing.T) {
	if got := Name("fr"); got != "French" {
		t.Errorf("Name(fr) = %q, want French", got)
	}
}
