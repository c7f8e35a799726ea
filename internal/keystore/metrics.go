package keystore

import (
	"github.com/prometheus/client_golang/prometheus"
)

var keysDesc = prometheus.NewDesc(
	"jwks_fixture_keys",
	"Number of keys held by the store",
	[]string{"validity"}, nil)

type metrics struct {
	generated *prometheus.CounterVec
}

func newMetrics() *metrics {
	return &metrics{
		generated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jwks_fixture_keys_generated_total",
			Help: "Number of keys generated, by validity at generation time",
		}, []string{"validity"}),
	}
}

var _ prometheus.Collector = (*KeyStore)(nil)

func (s *KeyStore) Describe(ch chan<- *prometheus.Desc) {
	s.metrics.generated.Describe(ch)
	ch <- keysDesc
}

func (s *KeyStore) Collect(ch chan<- prometheus.Metric) {
	s.metrics.generated.Collect(ch)

	s.mu.Lock()
	now := s.now()
	counts := map[Validity]int{}
	for _, e := range s.entries {
		counts[validityOf(e, now)]++
	}
	s.mu.Unlock()

	for _, v := range []Validity{Valid, Expired} {
		ch <- prometheus.MustNewConstMetric(keysDesc, prometheus.GaugeValue, float64(counts[v]), v.String())
	}
}
