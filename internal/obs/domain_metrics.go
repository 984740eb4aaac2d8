package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// OrdersCreatedTotal counts persisted orders by pricing mode.
	OrdersCreatedTotal *prometheus.CounterVec
	// OrderMutationsTotal counts order updates and deletes by operation.
	OrderMutationsTotal *prometheus.CounterVec
	// BookMutationsTotal counts book writes by operation.
	BookMutationsTotal *prometheus.CounterVec
	// LoginAttemptsTotal counts password gate outcomes.
	LoginAttemptsTotal *prometheus.CounterVec
	// StoreBackend reports 1 for the storage backend chosen at startup.
	StoreBackend *prometheus.GaugeVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		OrdersCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Count of purchase orders created by pricing mode.",
		}, []string{"mode"})
		OrderMutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_mutations_total",
			Help:      "Count of order mutations by operation.",
		}, []string{"op"})
		BookMutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "book_mutations_total",
			Help:      "Count of book specification writes by operation.",
		}, []string{"op"})
		LoginAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Count of login attempts by result.",
		}, []string{"result"})
		StoreBackend = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_backend",
			Help:      "Active storage backend (1 for the selected one).",
		}, []string{"backend"})

		for _, cv := range []**prometheus.CounterVec{&OrdersCreatedTotal, &OrderMutationsTotal, &BookMutationsTotal, &LoginAttemptsTotal} {
			target := cv
			mustRegisterCollector(reg, *target, func(existing prometheus.Collector) {
				if v, ok := existing.(*prometheus.CounterVec); ok {
					*target = v
				}
			})
		}
		mustRegisterCollector(reg, StoreBackend, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.GaugeVec); ok {
				StoreBackend = v
			}
		})
	})
}

// RecordOrderCreated increments the created counter when metrics are registered.
func RecordOrderCreated(mode string) {
	if OrdersCreatedTotal != nil {
		OrdersCreatedTotal.WithLabelValues(mode).Inc()
	}
}

// RecordOrderMutation increments the mutation counter when metrics are registered.
func RecordOrderMutation(op string) {
	if OrderMutationsTotal != nil {
		OrderMutationsTotal.WithLabelValues(op).Inc()
	}
}

// RecordBookMutation increments the book counter when metrics are registered.
func RecordBookMutation(op string) {
	if BookMutationsTotal != nil {
		BookMutationsTotal.WithLabelValues(op).Inc()
	}
}

// RecordLogin increments the login counter when metrics are registered.
func RecordLogin(result string) {
	if LoginAttemptsTotal != nil {
		LoginAttemptsTotal.WithLabelValues(result).Inc()
	}
}

// SetStoreBackend marks the active backend.
func SetStoreBackend(active string, known ...string) {
	if StoreBackend == nil {
		return
	}
	for _, name := range known {
		StoreBackend.WithLabelValues(name).Set(0)
	}
	StoreBackend.WithLabelValues(active).Set(1)
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
