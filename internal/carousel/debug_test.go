package carousel

import (
	"bytes"
	"strings"
	"testing"
)

func TestDebugPrintSelector(t *testing.T) {
	t.Parallel()

	markup := `
		<div class="hit first" id="one">Alpha</div>
		<div class="hit">Beta</div>
		<div class="miss">Gamma</div>
	`

	var buf bytes.Buffer
	if err := DebugPrintSelector(&buf, markup, "div.hit", 0, true); err != nil {
		t.Fatalf("DebugPrintSelector: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"0: div#one .hit .first", "Alpha", "1: div .hit", "Beta"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Gamma") {
		t.Fatalf("output matched the wrong class:\n%s", out)
	}
}

// TestDebugPrintSelector_Max verifies the match cap stops the walk early.
func TestDebugPrintSelector_Max(t *testing.T) {
	t.Parallel()

	markup := `<p>a</p><p>b</p><p>c</p>`

	var buf bytes.Buffer
	if err := DebugPrintSelector(&buf, markup, "p", 2, true); err != nil {
		t.Fatalf("DebugPrintSelector: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "0: p") || !strings.Contains(out, "1: p") {
		t.Fatalf("expected first two matches:\n%s", out)
	}
	if strings.Contains(out, "2: p") {
		t.Fatalf("cap ignored:\n%s", out)
	}
}

// TestDebugPrintSelector_OuterHTML verifies the default mode prints markup,
// not just text.
func TestDebugPrintSelector_OuterHTML(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := DebugPrintSelector(&buf, `<span class="x"><b>deep</b></span>`, "span.x", 0, false); err != nil {
		t.Fatalf("DebugPrintSelector: %v", err)
	}
	if !strings.Contains(buf.String(), "<b>deep</b>") {
		t.Fatalf("expected outer HTML in output:\n%s", buf.String())
	}
}
