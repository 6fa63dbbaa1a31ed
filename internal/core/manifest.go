package core

import (
	"encoding/json"
	"slices"
	"strings"
)

type PageStatus string

const (
	PageRendered PageStatus = "rendered"
	PageFailed   PageStatus = "failed"
)

// PageOutcome is the result of rendering one page file.
type PageOutcome struct {
	File           string     `json:"file"`
	Output         string     `json:"output,omitempty"`
	Status         PageStatus `json:"status"`
	Error          string     `json:"error,omitempty"`
	WrapperSkipped bool       `json:"wrapperSkipped,omitempty"`
}

// RenderManifest lists every page of a render batch, successful or not.
type RenderManifest struct {
	Pages []PageOutcome `json:"pages"`
}

func NewRenderManifest(outcomes []PageOutcome) *RenderManifest {
	pages := slices.Clone(outcomes)
	slices.SortFunc(pages, func(a, b PageOutcome) int {
		return strings.Compare(a.File, b.File)
	})
	return &RenderManifest{Pages: pages}
}

func (m *RenderManifest) Failures() []PageOutcome {
	var failed []PageOutcome
	for _, p := range m.Pages {
		if p.Status == PageFailed {
			failed = append(failed, p)
		}
	}
	return failed
}

func (m *RenderManifest) Rendered() int {
	n := 0
	for _, p := range m.Pages {
		if p.Status == PageRendered {
			n++
		}
	}
	return n
}

func (m *RenderManifest) JSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

func ParseRenderManifest(data []byte) (*RenderManifest, error) {
	var m RenderManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
