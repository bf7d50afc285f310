// Package metrics records installer activity as Prometheus series.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Cornman92/Better11-sub004/internal/ports"
)

// DefaultNamespace prefixes every series.
const DefaultNamespace = "better11"

// Noop implements ports.Metrics without emitting anything.
type Noop struct{}

func (Noop) IncInstall(string, string)              {}
func (Noop) IncDownload(bool)                       {}
func (Noop) IncRetry()                              {}
func (Noop) ObserveInstallDuration(string, float64) {}

// Prom implements ports.Metrics backed by Prometheus collectors registered on
// its own registry.
type Prom struct {
	registry        *prometheus.Registry
	installs        *prometheus.CounterVec
	downloads       *prometheus.CounterVec
	retries         prometheus.Counter
	installDuration *prometheus.HistogramVec
	once            sync.Once
}

// NewProm constructs a Prom under namespace.
func NewProm(namespace string) *Prom {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	p := &Prom{
		registry: prometheus.NewRegistry(),
		installs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "installs_total",
			Help:      "Install and uninstall outcomes by application and status",
		}, []string{"app", "status"}),
		downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Artifact downloads by cache result",
		}, []string{"cache"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_retries_total",
			Help:      "Download attempts retried after a transient failure",
		}),
		installDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "install_duration_seconds",
			Help:      "Wall time of a single application install pipeline",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"app"}),
	}
	p.register()
	return p
}

func (p *Prom) register() {
	p.once.Do(func() {
		p.registry.MustRegister(p.installs, p.downloads, p.retries, p.installDuration)
	})
}

// Registry exposes the collectors for gathering or export.
func (p *Prom) Registry() *prometheus.Registry { return p.registry }

func (p *Prom) IncInstall(appID, status string) {
	p.installs.WithLabelValues(appID, status).Inc()
}

func (p *Prom) IncDownload(cacheHit bool) {
	label := "miss"
	if cacheHit {
		label = "hit"
	}
	p.downloads.WithLabelValues(label).Inc()
}

func (p *Prom) IncRetry() {
	p.retries.Inc()
}

func (p *Prom) ObserveInstallDuration(appID string, seconds float64) {
	p.installDuration.WithLabelValues(appID).Observe(seconds)
}

// WriteFile writes the text exposition of every series to path.
func (p *Prom) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, p.registry)
}

var (
	_ ports.Metrics = Noop{}
	_ ports.Metrics = (*Prom)(nil)
)
