package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StateSample is one operation's kind and lifecycle state.
type StateSample struct {
	Kind  string
	State string
}

// StateSnapshotFunc returns the kind and state of every tracked operation.
type StateSnapshotFunc func() []StateSample

// operationStatesCollector reports the number of operations per kind and
// state at scrape time, read from the operation registry.
type operationStatesCollector struct {
	snapshots StateSnapshotFunc
	desc      *prometheus.Desc
}

// NewOperationStatesCollector creates a collector that counts operations by
// kind and state each time it is scraped.
func NewOperationStatesCollector(fn StateSnapshotFunc) prometheus.Collector {
	return &operationStatesCollector{
		snapshots: fn,
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "operations_by_state"),
			"Number of tracked operations by kind and state",
			[]string{"kind", "state"}, nil,
		),
	}
}

func (c *operationStatesCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *operationStatesCollector) Collect(ch chan<- prometheus.Metric) {
	counts := make(map[StateSample]int)
	for _, s := range c.snapshots() {
		counts[s]++
	}
	for sample, n := range counts {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue,
			float64(n), sample.Kind, sample.State)
	}
}

// RegisterOperationStates registers the operation-states collector with the
// default registry.
func RegisterOperationStates(fn StateSnapshotFunc) error {
	return prometheus.Register(NewOperationStatesCollector(fn))
}
