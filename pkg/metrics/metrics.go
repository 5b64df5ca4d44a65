package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/uhyunpark/ledgerview/pkg/ledger"
)

const Namespace = "ledgerview"

// Metrics holds the service collectors. It implements memo.Observer.
type Metrics struct {
	MemoRequests    *prometheus.CounterVec
	Anomalies       *prometheus.CounterVec
	EventsIngested  *prometheus.CounterVec
	SnapshotVersion prometheus.Gauge
	SyncedBlock     prometheus.Gauge
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer in
// the service and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		MemoRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "memo_requests_total",
			Help:      "Derivation lookups by cache result.",
		}, []string{"derivation", "result"}),
		Anomalies: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ledger_anomalies_total",
			Help:      "Inconsistencies found in the event log.",
		}, []string{"kind"}),
		EventsIngested: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "events_ingested_total",
			Help:      "Ledger events appended to the log.",
		}, []string{"kind"}),
		SnapshotVersion: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "snapshot_version",
			Help:      "Version of the latest published snapshot.",
		}),
		SyncedBlock: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "synced_block",
			Help:      "Last chain block whose logs were ingested.",
		}),
	}
}

func (m *Metrics) Hit(name string)  { m.MemoRequests.WithLabelValues(name, "hit").Inc() }
func (m *Metrics) Miss(name string) { m.MemoRequests.WithLabelValues(name, "miss").Inc() }

func (m *Metrics) Anomaly(a ledger.Anomaly) {
	m.Anomalies.WithLabelValues(string(a.Kind)).Inc()
}

func (m *Metrics) Ingested(events []ledger.Event) {
	for _, ev := range events {
		m.EventsIngested.WithLabelValues(ev.Kind().String()).Inc()
	}
}

// Published is a ledger.Log subscriber.
func (m *Metrics) Published(s *ledger.Snapshot) {
	m.SnapshotVersion.Set(float64(s.Version()))
}

func (m *Metrics) Synced(block uint64) {
	m.SyncedBlock.Set(float64(block))
}
