package cli

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/3-lines-studio/toast/internal/core"
)

type BuildStep struct {
	Name      string
	StartTime time.Time
	EndTime   time.Time
	Success   bool
	Error     string
}

func (s BuildStep) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

type BuildIssue struct {
	Page    string
	Message string
	Details []string
}

// BuildReport accumulates the steps and per-page issues of one build and
// prints them once at the end. It is safe for concurrent use.
type BuildReport struct {
	out       *Output
	outputDir string
	startTime time.Time

	mu          sync.Mutex
	steps       []*BuildStep
	warnings    []BuildIssue
	errors      []BuildIssue
	pageCount   int
	rendered    int
	hasFailures bool
}

func NewBuildReport(out *Output, outputDir string) *BuildReport {
	return &BuildReport{
		out:       out,
		outputDir: outputDir,
		startTime: time.Now(),
	}
}

func (r *BuildReport) SetPageCount(count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pageCount = count
}

func (r *BuildReport) StartStep(name string) *BuildStep {
	r.mu.Lock()
	defer r.mu.Unlock()
	step := &BuildStep{Name: name, StartTime: time.Now()}
	r.steps = append(r.steps, step)
	return step
}

func (r *BuildReport) EndStep(step *BuildStep, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	step.EndTime = time.Now()
	step.Success = err == nil
	if err != nil {
		step.Error = err.Error()
		r.hasFailures = true
	}
}

func (r *BuildReport) AddWarning(page, message string, details ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, BuildIssue{Page: page, Message: message, Details: details})
}

func (r *BuildReport) AddError(page, message string, details ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, BuildIssue{Page: page, Message: message, Details: details})
	r.hasFailures = true
}

// AddManifest records every failed page and skipped wrapper of a render batch.
func (r *BuildReport) AddManifest(m *core.RenderManifest) {
	for _, p := range m.Pages {
		switch {
		case p.Status == core.PageFailed:
			r.AddError(p.File, "render failed", p.Error)
		case p.WrapperSkipped:
			r.AddWarning(p.File, "rendered without page wrapper", p.Error)
		}
	}
	r.mu.Lock()
	r.rendered = m.Rendered()
	r.mu.Unlock()
}

func (r *BuildReport) HasFailures() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasFailures
}

func (r *BuildReport) Render() {
	r.mu.Lock()
	defer r.mu.Unlock()

	duration := time.Since(r.startTime)
	o := r.out

	fmt.Fprintf(o.out, "  %d pages sourced, %d rendered\n", r.pageCount, r.rendered)

	verbose := len(r.errors) > 0 || len(r.warnings) > 0
	for _, step := range r.steps {
		if step.Success && !verbose {
			continue
		}
		status := o.Green("✓")
		if !step.Success {
			status = o.Red("✗")
		}
		fmt.Fprintf(o.out, "  %s %s %s\n", status, step.Name, o.Gray(formatDuration(step.Duration())))
		if step.Error != "" {
			fmt.Fprintf(o.err, "    %s\n", step.Error)
		}
	}

	if len(r.errors) > 0 {
		fmt.Fprintln(o.err)
		fmt.Fprintf(o.err, "  "+o.Red("✗ ")+"Errors (%d):\n", len(r.errors))
		r.renderIssues(o.err, o.Red("✗"), r.errors)
	}

	if len(r.warnings) > 0 {
		fmt.Fprintln(o.out)
		fmt.Fprintf(o.out, "  "+o.Yellow("⚠ ")+"Warnings (%d):\n", len(r.warnings))
		r.renderIssues(o.out, o.Yellow("⚠"), r.warnings)
	}

	if r.hasFailures {
		fmt.Fprintf(o.err, "\n  %s\n", o.Red("Build failed after "+formatDuration(duration)))
	} else {
		fmt.Fprintf(o.out, "  "+o.Green("✓ ")+"Build complete in %s\n", formatDuration(duration))
	}

	if r.outputDir != "" {
		fmt.Fprintf(o.out, "\n  %s\n", o.Gray("Output: "+r.outputDir))
	}
}

func (r *BuildReport) renderIssues(w io.Writer, mark string, issues []BuildIssue) {
	for _, issue := range issues {
		fmt.Fprintf(w, "  %s %s\n", mark, issue.Page)
		fmt.Fprintf(w, "    %s\n", issue.Message)
		for _, detail := range deduplicateStrings(issue.Details) {
			fmt.Fprintf(w, "      • %s\n", detail)
		}
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%.0fms", float64(d)/float64(time.Millisecond))
	}
	return fmt.Sprintf("%.1fs", float64(d)/float64(time.Second))
}

func deduplicateStrings(items []string) []string {
	if len(items) <= 1 {
		return items
	}

	counts := make(map[string]int)
	var order []string
	for _, item := range items {
		if counts[item] == 0 {
			order = append(order, item)
		}
		counts[item]++
	}

	result := make([]string, 0, len(order))
	for _, item := range order {
		if counts[item] > 1 {
			result = append(result, fmt.Sprintf("%s (%d occurrences)", item, counts[item]))
		} else {
			result = append(result, item)
		}
	}
	return result
}
