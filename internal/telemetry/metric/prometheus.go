package metric

import (
	"crypto/x509"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yndnr/mtlsclient-go/pkg/mtls"
)

const namespace = "mtls"

// Registry holds all client metrics. It implements mtls.Observer.
type Registry struct {
	reg *prometheus.Registry

	BuildsTotal      *prometheus.CounterVec
	BuildDuration    *prometheus.HistogramVec
	ClientCertExpiry *prometheus.GaugeVec
	ReloadsTotal     *prometheus.CounterVec
}

var _ mtls.Observer = (*Registry)(nil)

// NewRegistry creates a registry with the client metrics and the standard
// Go and process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Registry{
		reg: reg,
		BuildsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "builds_total",
			Help:      "Total number of client builds",
		}, []string{"mode", "result"}), // result: success or the error kind
		BuildDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Duration of client builds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		ClientCertExpiry: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "client_certificate_expiry_timestamp_seconds",
			Help:      "Unix timestamp when the current client certificate expires",
		}, []string{"subject"}),
		ReloadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credential_reloads_total",
			Help:      "Total number of credential reloads",
		}, []string{"result"}), // result: success, failure
	}
}

// ObserveBuild implements mtls.Observer.
func (r *Registry) ObserveBuild(mode mtls.Mode, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
		if kind := mtls.KindOf(err); kind != 0 {
			result = kind.String()
		}
	}
	r.BuildsTotal.WithLabelValues(string(mode), result).Inc()
	r.BuildDuration.WithLabelValues(string(mode)).Observe(duration.Seconds())
}

// ObserveClientCertificate implements mtls.Observer. Only the latest
// certificate is kept.
func (r *Registry) ObserveClientCertificate(leaf *x509.Certificate) {
	r.ClientCertExpiry.Reset()
	r.ClientCertExpiry.WithLabelValues(leaf.Subject.String()).Set(float64(leaf.NotAfter.Unix()))
}

// ObserveReload records the outcome of a credential reload.
func (r *Registry) ObserveReload(err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	r.ReloadsTotal.WithLabelValues(result).Inc()
}

// Gatherer returns the underlying gatherer.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}
