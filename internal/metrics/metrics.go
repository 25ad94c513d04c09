// Package metrics exposes Prometheus counters for quiz activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Finish reasons.
const (
	ReasonCompleted = "completed"
	ReasonExpired   = "expired"
)

// Recorder receives quiz lifecycle signals.
type Recorder interface {
	SessionOpened()
	LoadFailed()
	RunStarted()
	RunFinished(reason string)
}

// Prometheus records quiz activity as Prometheus counters.
type Prometheus struct {
	sessionsOpened prometheus.Counter
	loadFailures   prometheus.Counter
	runsStarted    prometheus.Counter
	runsFinished   *prometheus.CounterVec
}

// NewPrometheus creates the counters and registers them with reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		sessionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quiz",
			Name:      "sessions_opened_total",
			Help:      "Play sessions opened.",
		}),
		loadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quiz",
			Name:      "load_failures_total",
			Help:      "Question set loads that failed and were reported to the player.",
		}),
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quiz",
			Name:      "runs_started_total",
			Help:      "Quiz runs that became active.",
		}),
		runsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quiz",
			Name:      "runs_finished_total",
			Help:      "Quiz runs that finished, by reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(p.sessionsOpened, p.loadFailures, p.runsStarted, p.runsFinished)
	return p
}

func (p *Prometheus) SessionOpened() { p.sessionsOpened.Inc() }
func (p *Prometheus) LoadFailed()    { p.loadFailures.Inc() }
func (p *Prometheus) RunStarted()    { p.runsStarted.Inc() }

func (p *Prometheus) RunFinished(reason string) {
	p.runsFinished.WithLabelValues(reason).Inc()
}

// Nop discards every signal.
type Nop struct{}

func (Nop) SessionOpened()     {}
func (Nop) LoadFailed()        {}
func (Nop) RunStarted()        {}
func (Nop) RunFinished(string) {}
