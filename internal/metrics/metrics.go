package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	selectionOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rhymebinder",
			Name:      "selection_ops_total",
			Help:      "Selection operations by op (select, remove) and result",
		},
		[]string{"op", "result"},
	)

	binderRenders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rhymebinder",
			Name:      "binder_renders_total",
			Help:      "Binder renders by grade and result",
		},
		[]string{"grade", "result"},
	)

	binderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rhymebinder",
			Name:      "binder_render_duration_seconds",
			Help:      "Duration of binder renders by grade",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"grade"},
	)

	renderEntries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rhymebinder",
			Name:      "render_entries_total",
			Help:      "Per-entry draws by backend (vector, raster, card) and result",
		},
		[]string{"backend", "result"},
	)

	renderMode = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "rhymebinder",
			Name:      "render_mode",
			Help:      "Probed rendering backend mode (1 = active)",
		},
		[]string{"mode"},
	)
)

// Init registers collectors.
func Init() {
	prometheus.MustRegister(selectionOps, binderRenders, binderLatency, renderEntries, renderMode)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func IncSelectionOp(op, result string) { selectionOps.WithLabelValues(op, result).Inc() }

func ObserveBinder(grade, result string, dur time.Duration) {
	binderRenders.WithLabelValues(grade, result).Inc()
	binderLatency.WithLabelValues(grade).Observe(dur.Seconds())
}

func RenderEntry(backend, result string) { renderEntries.WithLabelValues(backend, result).Inc() }

func SetRenderMode(mode string) { renderMode.WithLabelValues(mode).Set(1) }
