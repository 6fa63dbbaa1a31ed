package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/3-lines-studio/toast/internal/core"
)

func TestBuildReport_Success(t *testing.T) {
	var out, errOut bytes.Buffer
	r := NewBuildReport(NewWriterOutput(&out, &errOut), "public")
	r.SetPageCount(2)

	step := r.StartStep("render")
	r.EndStep(step, nil)
	r.AddManifest(core.NewRenderManifest([]core.PageOutcome{
		{File: "src/pages/a.js", Status: core.PageRendered},
		{File: "src/pages/b.js", Status: core.PageRendered},
	}))
	r.Render()

	if r.HasFailures() {
		t.Fatal("expected no failures")
	}
	if !strings.Contains(out.String(), "2 pages sourced, 2 rendered") {
		t.Errorf("unexpected output: %q", out.String())
	}
	if !strings.Contains(out.String(), "Build complete") {
		t.Errorf("missing completion line: %q", out.String())
	}
	if errOut.Len() != 0 {
		t.Errorf("unexpected stderr: %q", errOut.String())
	}
}

func TestBuildReport_Failures(t *testing.T) {
	var out, errOut bytes.Buffer
	r := NewBuildReport(NewWriterOutput(&out, &errOut), "")

	step := r.StartStep("render")
	r.EndStep(step, errors.New("1 page failed"))
	r.AddManifest(core.NewRenderManifest([]core.PageOutcome{
		{File: "src/pages/a.js", Status: core.PageFailed, Error: "boom"},
		{File: "src/pages/b.js", Status: core.PageRendered, WrapperSkipped: true, Error: "bad wrapper"},
	}))
	r.Render()

	if !r.HasFailures() {
		t.Fatal("expected failures")
	}
	if !strings.Contains(errOut.String(), "Errors (1)") || !strings.Contains(errOut.String(), "Build failed") {
		t.Errorf("unexpected stderr: %q", errOut.String())
	}
	if !strings.Contains(out.String(), "Warnings (1)") || !strings.Contains(out.String(), "bad wrapper") {
		t.Errorf("unexpected stdout: %q", out.String())
	}
}

func TestDeduplicateStrings(t *testing.T) {
	got := deduplicateStrings([]string{"a", "b", "a"})
	want := []string{"a (2 occurrences)", "b"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("deduplicateStrings() = %v, want %v", got, want)
	}
}
