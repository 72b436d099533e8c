package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder receives pricing events.
type Recorder interface {
	ObserveSearch(game, outcome string, d time.Duration)
	IncItem(game, outcome string)
	SetLastRun(game string, t time.Time)
}

type promRecorder struct {
	searchDuration *prometheus.HistogramVec
	items          *prometheus.CounterVec
	lastRun        *prometheus.GaugeVec
}

// NewRecorder registers the pricing metrics with reg.
func NewRecorder(reg prometheus.Registerer) Recorder {
	factory := promauto.With(reg)
	return &promRecorder{
		searchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tcg_pricer",
			Name:      "search_duration_seconds",
			Help:      "Shopping search request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"game", "outcome"}),
		items: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tcg_pricer",
			Name:      "items_total",
			Help:      "Catalog items processed by outcome",
		}, []string{"game", "outcome"}),
		lastRun: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tcg_pricer",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last finished batch",
		}, []string{"game"}),
	}
}

func (r *promRecorder) ObserveSearch(game, outcome string, d time.Duration) {
	r.searchDuration.WithLabelValues(game, outcome).Observe(d.Seconds())
}

func (r *promRecorder) IncItem(game, outcome string) {
	r.items.WithLabelValues(game, outcome).Inc()
}

func (r *promRecorder) SetLastRun(game string, t time.Time) {
	r.lastRun.WithLabelValues(game).Set(float64(t.Unix()))
}

type nop struct{}

// Nop returns a Recorder that drops everything.
func Nop() Recorder { return nop{} }

func (nop) ObserveSearch(string, string, time.Duration) {}
func (nop) IncItem(string, string)                      {}
func (nop) SetLastRun(string, time.Time)                {}
