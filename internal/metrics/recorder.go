// Package metrics records build and registration metrics in a private
// prometheus registry.
package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// Recorder is nil-safe; a nil *Recorder records nothing.
type Recorder struct {
	reg             *prom.Registry
	registrations   *prom.CounterVec
	sessionDuration prom.Histogram
	renderDuration  *prom.HistogramVec
	pages           *prom.CounterVec
	orphans         prom.Counter
	buildDuration   prom.Histogram
}

func NewRecorder(reg *prom.Registry) *Recorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	r := &Recorder{
		reg: reg,
		registrations: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "toast",
			Name:      "registrations_total",
			Help:      "Registration requests by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		sessionDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "toast",
			Name:      "sourcing_session_duration_seconds",
			Help:      "Duration of sourcing sessions",
			Buckets:   prom.DefBuckets,
		}),
		renderDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "toast",
			Name:      "page_render_duration_seconds",
			Help:      "Duration of individual page renders",
			Buckets:   prom.DefBuckets,
		}, []string{"status"}),
		pages: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "toast",
			Name:      "pages_total",
			Help:      "Rendered pages by final status",
		}, []string{"status"}),
		orphans: prom.NewCounter(prom.CounterOpts{
			Namespace: "toast",
			Name:      "orphan_slugs_total",
			Help:      "Slugs that received data but never a component",
		}),
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "toast",
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		}),
	}
	reg.MustRegister(r.registrations, r.sessionDuration, r.renderDuration, r.pages, r.orphans, r.buildDuration)
	return r
}

func (r *Recorder) Registry() *prom.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

// ObserveRegistration satisfies the ipc listener observer.
func (r *Recorder) ObserveRegistration(endpoint, outcome string) {
	if r == nil {
		return
	}
	r.registrations.WithLabelValues(endpoint, outcome).Inc()
}

func (r *Recorder) ObserveSession(d time.Duration) {
	if r == nil {
		return
	}
	r.sessionDuration.Observe(d.Seconds())
}

func (r *Recorder) ObservePageRender(status string, d time.Duration) {
	if r == nil {
		return
	}
	r.renderDuration.WithLabelValues(status).Observe(d.Seconds())
	r.pages.WithLabelValues(status).Inc()
}

func (r *Recorder) AddOrphans(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.orphans.Add(float64(n))
}

func (r *Recorder) ObserveBuild(d time.Duration) {
	if r == nil {
		return
	}
	r.buildDuration.Observe(d.Seconds())
}

// WriteTextfile dumps the registry in the node exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prom.WriteToTextfile(path, r.reg)
}
