package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrinterPlainOutput(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.Success("scan recorded")
	p.Error("request failed")

	want := "✓ scan recorded\n✗ request failed\n"
	if buf.String() != want {
		t.Fatalf("output = %q, want %q", buf.String(), want)
	}
	if got := p.Colorize("x", ColorRed); got != "x" {
		t.Fatalf("non-terminal output must not be colored, got %q", got)
	}
}

func TestWriteCompletion(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCompletion(&buf, "bash"); err != nil {
		t.Fatalf("bash: %v", err)
	}
	if !strings.Contains(buf.String(), "complete -F _loyaltyctl_completion loyaltyctl") {
		t.Fatalf("unexpected bash script")
	}
	if err := WriteCompletion(&buf, "fish"); err == nil {
		t.Fatalf("expected unsupported shell error")
	}
}
