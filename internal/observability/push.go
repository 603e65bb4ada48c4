package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus/push"
)

// pushJob is the Pushgateway job name for pipeline runs.
const pushJob = "humidity_tiles_etl"

// Push sends the current metric values to a Prometheus Pushgateway. Batch
// runs exit before a scraper would see them.
func (m *Metrics) Push(gatewayURL string) error {
	if err := push.New(gatewayURL, pushJob).Gatherer(m.Gatherer()).Push(); err != nil {
		return fmt.Errorf("push metrics to %s: %w", gatewayURL, err)
	}
	return nil
}
