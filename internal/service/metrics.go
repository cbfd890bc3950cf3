package service

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/totegamma/helm/internal/domain"
)

type Metrics struct {
	operations  *prometheus.CounterVec
	transitions *prometheus.CounterVec
	dueContents prometheus.Counter
}

func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "helm_operations_total",
			Help: "number of operations by type and result code",
		}, []string{"operation", "result"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "helm_content_transitions_total",
			Help: "number of content status transitions",
		}, []string{"from", "to"}),
		dueContents: factory.NewCounter(prometheus.CounterOpts{
			Name: "helm_due_contents_total",
			Help: "number of approved contents announced as due",
		}),
	}
}

func (m *Metrics) Operation(op domain.OperationType, err error) {
	m.operations.WithLabelValues(string(op), resultLabel(err)).Inc()
}

func (m *Metrics) Transition(from, to domain.Status) {
	m.transitions.WithLabelValues(string(from), string(to)).Inc()
}

func (m *Metrics) Due(n int) {
	m.dueContents.Add(float64(n))
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return de.Code
	}
	return domain.KindOf(err).String()
}
