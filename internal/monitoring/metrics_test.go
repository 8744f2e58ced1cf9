package monitoring

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func newTestRegistry(t *testing.T) *prometheus.Registry {
	t.Helper()
	return prometheus.NewRegistry()
}
