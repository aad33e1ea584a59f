package version

import (
	"strings"
	"testing"
)

func TestVersion_DefaultValues(t *testing.T) {
	if Version == "" {
		t.Error("Version should have a default value")
	}
}

func TestColored(t *testing.T) {
	tests := []struct {
		in      string
		enabled bool
		plain   string
	}{
		{"1.2.3", true, "1.2.3"},
		{"0.1.0-dev", true, "0.1.0-dev"},
		{"1.2.3", false, "1.2.3"},
		{"nightly", true, "nightly"},
	}
	for _, tt := range tests {
		got := Colored(tt.in, tt.enabled)
		if stripANSI(got) != tt.plain {
			t.Errorf("Colored(%q) = %q", tt.in, got)
		}
		colored := strings.Contains(got, "\x1b[")
		if want := tt.enabled && tt.in != "nightly"; colored != want {
			t.Errorf("Colored(%q, %v) colored = %v", tt.in, tt.enabled, colored)
		}
	}
}

func stripANSI(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == 0x1b {
			for i < len(s) && s[i] != 'm' {
				i++
			}
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
