package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// ScanEventsTotal counts classifier outcomes by kind (scan or discard) and reason.
	ScanEventsTotal *prometheus.CounterVec
	// ScanLookupsTotal counts product lookups by the rule that matched ("none" for misses).
	ScanLookupsTotal *prometheus.CounterVec
	// TotalsComputedTotal counts totals computations by VAT mode and result.
	TotalsComputedTotal *prometheus.CounterVec
	// DocumentsCreatedTotal counts persisted documents by type.
	DocumentsCreatedTotal *prometheus.CounterVec
	// PaymentsRecordedTotal counts payments by method.
	PaymentsRecordedTotal *prometheus.CounterVec
	// CatalogCacheTotal counts catalog cache lookups by result (hit or miss).
	CatalogCacheTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		ScanEventsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_events_total",
			Help:      "Count of keyboard bursts classified as scans or discarded.",
		}, []string{"kind", "reason"}))
		ScanLookupsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_lookups_total",
			Help:      "Count of scanned code lookups by matching rule.",
		}, []string{"rule"}))
		TotalsComputedTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "totals_computed_total",
			Help:      "Count of cart totals computations.",
		}, []string{"vat_mode", "result"}))
		DocumentsCreatedTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_created_total",
			Help:      "Count of sales documents created by type.",
		}, []string{"type"}))
		PaymentsRecordedTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_recorded_total",
			Help:      "Count of payments recorded against documents by method.",
		}, []string{"method"}))
		CatalogCacheTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_cache_total",
			Help:      "Count of catalog cache lookups by result.",
		}, []string{"result"}))
	})
}

// The helpers below tolerate unregistered metrics so packages can be tested
// without a registry.

// ObserveScanLookup increments ScanLookupsTotal.
func ObserveScanLookup(rule string) {
	if ScanLookupsTotal == nil {
		return
	}
	if rule == "" {
		rule = "none"
	}
	ScanLookupsTotal.WithLabelValues(rule).Inc()
}

// ObserveScanEvent increments ScanEventsTotal.
func ObserveScanEvent(kind, reason string) {
	if ScanEventsTotal != nil {
		ScanEventsTotal.WithLabelValues(kind, reason).Inc()
	}
}

// ObserveTotals increments TotalsComputedTotal.
func ObserveTotals(vatMode string, err error) {
	if TotalsComputedTotal == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "invalid"
	}
	TotalsComputedTotal.WithLabelValues(vatMode, result).Inc()
}

// ObserveDocumentCreated increments DocumentsCreatedTotal.
func ObserveDocumentCreated(docType string) {
	if DocumentsCreatedTotal != nil {
		DocumentsCreatedTotal.WithLabelValues(docType).Inc()
	}
}

// ObservePayment increments PaymentsRecordedTotal.
func ObservePayment(method string) {
	if PaymentsRecordedTotal != nil {
		PaymentsRecordedTotal.WithLabelValues(method).Inc()
	}
}

// ObserveCatalogCache increments CatalogCacheTotal.
func ObserveCatalogCache(hit bool) {
	if CatalogCacheTotal == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	CatalogCacheTotal.WithLabelValues(result).Inc()
}
