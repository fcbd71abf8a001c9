// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unpack

import "github.com/prometheus/client_golang/prometheus"

const metricsNamespace = "unpack"

// Metrics holds the prometheus collectors of unpack runs. A nil *Metrics
// records nothing.
type Metrics struct {
	probeResults   *prometheus.CounterVec
	classified     *prometheus.CounterVec
	extractedBytes prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg, if reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		probeResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "probe_results_total",
			Help:      "Results of format probes by probe and result.",
		}, []string{"probe", "result"}),
		classified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "classified_paths_total",
			Help:      "Classified paths by class.",
		}, []string{"class"}),
		extractedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "extracted_bytes_total",
			Help:      "Bytes written to extracted files.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.probeResults, m.classified, m.extractedBytes)
	}
	return m
}

func (m *Metrics) recordProbe(probe string, kind ProbeKind) {
	if m == nil {
		return
	}
	m.probeResults.WithLabelValues(probe, kind.String()).Inc()
}

func (m *Metrics) recordClass(c Class) {
	if m == nil {
		return
	}
	m.classified.WithLabelValues(c.String()).Inc()
}

func (m *Metrics) recordBytes(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.extractedBytes.Add(float64(n))
}
