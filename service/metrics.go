package service

import "github.com/prometheus/client_golang/prometheus"

var (
	predictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canescan_predictions_total",
			Help: "Processed images by classifier and outcome",
		}, []string{"classifier", "status"},
	)
	predictionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "canescan_prediction_duration_seconds",
			Help:    "Time spent classifying a single image",
			Buckets: prometheus.DefBuckets,
		}, []string{"classifier"},
	)
)

func init() {
	prometheus.MustRegister(predictionsTotal, predictionDuration)
}
