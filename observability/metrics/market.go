package metrics

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// MarketMetrics tracks resale market activity.
type MarketMetrics struct {
	listings   *prometheus.CounterVec
	sales      prometheus.Counter
	feeTotal   prometheus.Counter
	volume     prometheus.Counter
	rejections *prometheus.CounterVec
	ledgerSeq  prometheus.Gauge
}

var (
	marketOnce     sync.Once
	marketRegistry *MarketMetrics
)

// Market returns the lazily registered market metrics.
func Market() *MarketMetrics {
	marketOnce.Do(func() {
		marketRegistry = &MarketMetrics{
			listings: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftickets",
				Subsystem: "market",
				Name:      "listings_total",
				Help:      "Count of listing lifecycle transitions by action.",
			}, []string{"action"}),
			sales: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "nftickets",
				Subsystem: "market",
				Name:      "sales_total",
				Help:      "Count of settled resale purchases.",
			}),
			feeTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "nftickets",
				Subsystem: "market",
				Name:      "fees_collected",
				Help:      "Platform fees credited to the treasury by resales.",
			}),
			volume: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "nftickets",
				Subsystem: "market",
				Name:      "volume",
				Help:      "Gross resale volume in the smallest payment unit.",
			}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftickets",
				Subsystem: "ledger",
				Name:      "rejections_total",
				Help:      "Count of rejected operations by operation and reason.",
			}, []string{"op", "reason"}),
			ledgerSeq: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "nftickets",
				Subsystem: "ledger",
				Name:      "height",
				Help:      "Sequence number of the latest committed operation.",
			}),
		}
		prometheus.MustRegister(
			marketRegistry.listings,
			marketRegistry.sales,
			marketRegistry.feeTotal,
			marketRegistry.volume,
			marketRegistry.rejections,
			marketRegistry.ledgerSeq,
		)
	})
	return marketRegistry
}

// ObserveListing counts a listing transition such as "listed" or "delisted".
func (m *MarketMetrics) ObserveListing(action string) {
	if m == nil {
		return
	}
	if action == "" {
		action = "unknown"
	}
	m.listings.WithLabelValues(action).Inc()
}

// ObserveSale records a settled purchase.
func (m *MarketMetrics) ObserveSale(price, fee *big.Int) {
	if m == nil {
		return
	}
	m.sales.Inc()
	m.listings.WithLabelValues("sold").Inc()
	m.volume.Add(toFloat(price))
	m.feeTotal.Add(toFloat(fee))
}

// ObserveRejection counts a rejected operation.
func (m *MarketMetrics) ObserveRejection(op, reason string) {
	if m == nil {
		return
	}
	if op == "" {
		op = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.rejections.WithLabelValues(op, reason).Inc()
}

// SetHeight records the ledger height.
func (m *MarketMetrics) SetHeight(seq uint64) {
	if m == nil {
		return
	}
	m.ledgerSeq.Set(float64(seq))
}

func toFloat(v *big.Int) float64 {
	if v == nil || v.Sign() <= 0 {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
