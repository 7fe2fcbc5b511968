package storage

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"assistantmemory/internal/models"
)

// Metrics holds the storage Prometheus collectors
type Metrics struct {
	// Operations by backend, collection, operation and outcome kind
	Operations *prometheus.CounterVec
	// Operation latency by backend, collection and operation
	Duration *prometheus.HistogramVec
	// Backend reports 1 for the active mode
	Backend *prometheus.GaugeVec
}

// NewMetrics registers the storage collectors with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "assistant_memory_storage_operations_total",
			Help: "Total number of storage operations by outcome",
		}, []string{"backend", "collection", "op", "outcome"}), // outcome: "ok" or an error kind

		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "assistant_memory_storage_operation_duration_seconds",
			Help:    "Storage operation latency in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"backend", "collection", "op"}),

		Backend: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "assistant_memory_storage_backend",
			Help: "Active storage backend (1 for the selected mode)",
		}, []string{"mode"}),
	}
}

func (m *Metrics) observe(mode Mode, collection, op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(KindOf(err))
	}
	m.Operations.WithLabelValues(string(mode), collection, op, outcome).Inc()
	m.Duration.WithLabelValues(string(mode), collection, op).Observe(time.Since(start).Seconds())
}

// Instrument wraps store so every collection operation is counted and timed.
// The wrapper reports the same Mode as store.
func Instrument(store Store, m *Metrics) Store {
	if m == nil {
		return store
	}
	m.Backend.WithLabelValues(string(store.Mode())).Set(1)

	mode := store.Mode()
	return &instrumentedStore{
		Store:          store,
		users:          instrument(store.Users(), m, mode),
		contexts:       instrument(store.Contexts(), m, mode),
		tasks:          instrument(store.Tasks(), m, mode),
		preferences:    instrument(store.Preferences(), m, mode),
		structuredData: instrument(store.StructuredData(), m, mode),
	}
}

type instrumentedStore struct {
	Store
	users          Collection[*models.User]
	contexts       Collection[*models.Context]
	tasks          Collection[*models.Task]
	preferences    Collection[*models.Preference]
	structuredData Collection[*models.StructuredData]
}

func (s *instrumentedStore) Users() Collection[*models.User]             { return s.users }
func (s *instrumentedStore) Contexts() Collection[*models.Context]       { return s.contexts }
func (s *instrumentedStore) Tasks() Collection[*models.Task]             { return s.tasks }
func (s *instrumentedStore) Preferences() Collection[*models.Preference] { return s.preferences }
func (s *instrumentedStore) StructuredData() Collection[*models.StructuredData] {
	return s.structuredData
}

type instrumentedCollection[T models.Record] struct {
	next    Collection[T]
	metrics *Metrics
	mode    Mode
}

func instrument[T models.Record](next Collection[T], m *Metrics, mode Mode) Collection[T] {
	return &instrumentedCollection[T]{next: next, metrics: m, mode: mode}
}

func (c *instrumentedCollection[T]) Name() string { return c.next.Name() }

func (c *instrumentedCollection[T]) Create(ctx context.Context, rec T) error {
	start := time.Now()
	err := c.next.Create(ctx, rec)
	c.metrics.observe(c.mode, c.next.Name(), "create", start, err)
	return err
}

func (c *instrumentedCollection[T]) GetByID(ctx context.Context, owner, id string) (T, error) {
	start := time.Now()
	rec, err := c.next.GetByID(ctx, owner, id)
	c.metrics.observe(c.mode, c.next.Name(), "get", start, err)
	return rec, err
}

func (c *instrumentedCollection[T]) FindOne(ctx context.Context, field, value string) (T, error) {
	start := time.Now()
	rec, err := c.next.FindOne(ctx, field, value)
	c.metrics.observe(c.mode, c.next.Name(), "find", start, err)
	return rec, err
}

func (c *instrumentedCollection[T]) Query(ctx context.Context, q Query) (*Page[T], error) {
	start := time.Now()
	page, err := c.next.Query(ctx, q)
	c.metrics.observe(c.mode, c.next.Name(), "query", start, err)
	return page, err
}

func (c *instrumentedCollection[T]) UpdateByID(ctx context.Context, owner, id string, patch Patch) (T, error) {
	start := time.Now()
	rec, err := c.next.UpdateByID(ctx, owner, id, patch)
	c.metrics.observe(c.mode, c.next.Name(), "update", start, err)
	return rec, err
}

func (c *instrumentedCollection[T]) DeleteByID(ctx context.Context, owner, id string) error {
	start := time.Now()
	err := c.next.DeleteByID(ctx, owner, id)
	c.metrics.observe(c.mode, c.next.Name(), "delete", start, err)
	return err
}

func (c *instrumentedCollection[T]) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	start := time.Now()
	n, err := c.next.PurgeExpired(ctx, now)
	c.metrics.observe(c.mode, c.next.Name(), "purge", start, err)
	return n, err
}
