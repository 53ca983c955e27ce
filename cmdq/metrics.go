package cmdq

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Transaction outcomes used as metric labels.
const (
	OutcomeOK        = "ok"
	OutcomeTransport = "transport"
	OutcomeProtocol  = "protocol"
	OutcomeOverflow  = "overflow"
	OutcomeError     = "error"
)

var (
	registerOnce sync.Once

	transactions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mn864xx",
			Subsystem: "cmdq",
			Name:      "transactions_total",
			Help:      "Command queue transactions by outcome.",
		},
		[]string{"channel", "outcome"},
	)
	transactionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mn864xx",
			Subsystem: "cmdq",
			Name:      "transaction_duration_seconds",
			Help:      "Command queue round trip duration in seconds.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"channel", "outcome"},
	)
)

// RegisterMetrics registers the command queue collectors with the default
// Prometheus registry. It is safe to call more than once.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(transactions, transactionDuration)
	})
}

// Outcome classifies the error returned by Execute.
func Outcome(err error) string {
	var te *TransportError
	var pe *ProtocolError
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrBufferOverflow):
		return OutcomeOverflow
	case errors.As(err, &te):
		return OutcomeTransport
	case errors.As(err, &pe):
		return OutcomeProtocol
	}
	return OutcomeError
}

func recordTransaction(channel uint8, err error, d time.Duration) {
	RegisterMetrics()
	ch := strconv.Itoa(int(channel))
	outcome := Outcome(err)
	transactions.WithLabelValues(ch, outcome).Inc()
	transactionDuration.WithLabelValues(ch, outcome).Observe(d.Seconds())
}
