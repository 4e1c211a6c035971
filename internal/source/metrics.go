package source

import "github.com/prometheus/client_golang/prometheus"

var (
	readsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "readback",
			Subsystem: "source",
			Name:      "reads_total",
			Help:      "Number of ReadBack calls made to the underlying source",
		},
		[]string{"kind"},
	)
	bytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "readback",
			Subsystem: "source",
			Name:      "bytes_total",
			Help:      "Number of bytes read back from the underlying source",
		},
		[]string{"kind"},
	)
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "readback",
			Subsystem: "source",
			Name:      "errors_total",
			Help:      "Number of ReadBack calls that failed",
		},
		[]string{"kind"},
	)
	spooledBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "readback",
			Subsystem: "source",
			Name:      "spooled_bytes_total",
			Help:      "Number of bytes copied from non-seekable input into a spool buffer",
		},
		[]string{"location"},
	)
)

func init() {
	prometheus.MustRegister(readsTotal)
	prometheus.MustRegister(bytesTotal)
	prometheus.MustRegister(errorsTotal)
	prometheus.MustRegister(spooledBytes)
}
