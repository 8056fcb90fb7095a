package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/eleveniq/sfexport/pkg/errors"
)

// Push pushes run metrics to a Prometheus Pushgateway. Scheduled batch
// jobs have no endpoint to scrape, so metrics go out at REPORTING.
func (c *Collector) Push(gateway, job string, success bool) error {
	registry := prometheus.NewRegistry()

	records := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sfexport_records_extracted",
		Help: "Records extracted per Salesforce object in the last run",
	}, []string{"object"})
	retries := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sfexport_extraction_retries",
		Help: "Retries consumed per Salesforce object in the last run",
	}, []string{"object"})
	failures := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sfexport_failures",
		Help: "Failed operations in the last run",
	})
	duration := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sfexport_run_duration_seconds",
		Help: "Wall-clock duration of the last run",
	})
	succeeded := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sfexport_run_success",
		Help: "1 when the last run completed, 0 otherwise",
	})

	registry.MustRegister(records, retries, failures, duration, succeeded)

	for _, e := range c.Entries() {
		if e.Object == "" {
			continue
		}
		records.WithLabelValues(e.Object).Set(float64(e.Records))
		retries.WithLabelValues(e.Object).Set(float64(e.Retries))
	}
	failures.Set(float64(c.Failures()))
	duration.Set(c.RunDuration().Seconds())
	if success {
		succeeded.Set(1)
	}

	if err := push.New(gateway, job).Gatherer(registry).Push(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to push run metrics").
			WithDetail("gateway", gateway)
	}
	return nil
}
