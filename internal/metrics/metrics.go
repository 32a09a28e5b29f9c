package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JoinProgramDuration измеряет длительность запросов на вступление в программу
	JoinProgramDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "program_join_duration_seconds",
			Help: "Duration of program join requests in seconds",
			Buckets: []float64{
				0.001, // 1ms
				0.005, // 5ms
				0.01,  // 10ms
				0.025, // 25ms
				0.05,  // 50ms
				0.1,   // 100ms
				0.25,  // 250ms
				0.5,   // 500ms
				1.0,   // 1s
				2.5,   // 2.5s
				5.0,   // 5s
			},
		},
		[]string{"status"}, // success, already or failed
	)

	// DiscountFallbacks считает скидки, которые не удалось распарсить
	// и которые нормализатор привел к fixed/0.
	DiscountFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "program_discount_fallbacks_total",
			Help: "Number of malformed model discount entries defaulted to fixed/0",
		},
	)
)

// RecordJoinProgramDuration фиксирует длительность запроса на вступление
func RecordJoinProgramDuration(status string, duration float64) {
	JoinProgramDuration.WithLabelValues(status).Observe(duration)
}
