package diag

import (
	"testing"

	"envkit/internal/source"
)

func spanAt(off uint32) source.Span {
	return source.Span{File: 1, Start: off, End: off + 1}
}

func TestParseSeverity(t *testing.T) {
	for in, want := range map[string]Severity{"info": SevInfo, " Warn": SevWarning, "WARNING": SevWarning, "error": SevError} {
		got, err := ParseSeverity(in)
		if err != nil || got != want {
			t.Fatalf("ParseSeverity(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseSeverity("fatal"); err == nil {
		t.Fatal("expected error for unknown severity")
	}
	if Severity(9).String() != "UNKNOWN" || SevWarning.String() != "WARNING" {
		t.Fatal("unexpected severity names")
	}
}

func TestBagFilterKeepsOrder(t *testing.T) {
	b := NewBag(10)
	b.Add(New(SevInfo, EnvInfo, spanAt(1), "a"))
	b.Add(New(SevError, EnvCycle, spanAt(2), "b"))
	b.Add(New(SevWarning, EnvAmbiguousLookup, spanAt(3), "c"))
	got := AtLeast(b.Items(), SevWarning)
	if len(got) != 2 || got[0].Message != "b" || got[1].Message != "c" {
		t.Fatalf("AtLeast = %v", got)
	}
}
