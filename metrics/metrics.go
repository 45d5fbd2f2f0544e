// Package metrics exports bridge counters to prometheus.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/temoto/uasbridge/protocol"
)

var (
	registerOnce sync.Once

	frames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "uasbridge",
			Name:      "frames_total",
			Help:      "Valid frames received, by message kind.",
		},
		[]string{"kind"},
	)
	malformed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "uasbridge",
			Name:      "frames_malformed_total",
			Help:      "Frames dropped by structural decode failure.",
		},
	)
	unknownKinds = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "uasbridge",
			Name:      "unknown_kinds_total",
			Help:      "Distinct undecodable message kinds per vehicle.",
		},
	)
	fanoutFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "uasbridge",
			Name:      "fanout_failures_total",
			Help:      "Outbound frame writes failed, by link.",
		},
		[]string{"link"},
	)
)

func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(frames, malformed, unknownKinds, fanoutFailures)
	})
}

// Stats implements uas.Stats over package counters.
type Stats struct{}

func NewStats() Stats {
	Register()
	return Stats{}
}

func (Stats) Frame(kind protocol.Kind)   { frames.WithLabelValues(kind.String()).Inc() }
func (Stats) Malformed()                 { malformed.Inc() }
func (Stats) Unknown(kind protocol.Kind) { unknownKinds.Inc() }
func (Stats) FanoutFailure(link string)  { fanoutFailures.WithLabelValues(link).Inc() }

// Handler serves default registry in text exposition format.
func Handler() http.Handler {
	Register()
	return promhttp.Handler()
}
