package scanner

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/quirkscan/quirkscan/pkg/probe"
)

var (
	probesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quirkscan_probes_total",
		Help: "Probes sent, by outcome.",
	}, []string{"outcome"})

	findingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quirkscan_findings_total",
		Help: "Findings recorded, by module and severity.",
	}, []string{"module", "severity"})

	checkErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quirkscan_check_errors_total",
		Help: "Recovered check failures, by check name.",
	}, []string{"check"})
)

// InstrumentedSender counts every probe a wrapped sender issues.
type InstrumentedSender struct {
	inner probe.Sender
}

// NewInstrumentedSender wraps s with probe counters.
func NewInstrumentedSender(s probe.Sender) *InstrumentedSender {
	return &InstrumentedSender{inner: s}
}

func (s *InstrumentedSender) Send(ctx context.Context, req *probe.Request) (*probe.Result, error) {
	res, err := s.inner.Send(ctx, req)
	if err != nil {
		probesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	probesTotal.WithLabelValues("ok").Inc()
	return res, nil
}
