package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScansTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "funding_scans_total",
		Help: "Completed funding rate scans",
	})

	ScanErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "funding_scan_errors_total",
		Help: "Funding rate scans that failed",
	})

	OrdersPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Orders accepted by the exchange",
	}, []string{"leg", "side"})

	OrderErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_errors_total",
		Help: "Orders rejected or failed",
	})

	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "open_positions",
		Help: "Currently open delta-neutral positions",
	})

	BestFundingAPR = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "best_funding_apr",
		Help: "Highest absolute annualized funding APR seen in the last scan",
	})
)
