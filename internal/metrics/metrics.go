package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	PredictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "churnd_predictions_total",
			Help: "Scored predictions by resulting tier and source",
		},
		[]string{"tier", "source"}, // Low|Medium|High , ondemand|scan
	)

	ImportRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "churnd_import_rows_total",
			Help: "Import rows by outcome",
		},
		[]string{"result"}, // created|rejected
	)

	AlertsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "churnd_alerts_total",
			Help: "High-risk alerts raised by the scanner",
		},
	)

	TrainRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "churnd_train_runs_total",
			Help: "Model training runs by outcome",
		},
		[]string{"result"}, // ok|error
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		PredictionsTotal,
		ImportRowsTotal,
		AlertsTotal,
		TrainRunsTotal,
	)
}
