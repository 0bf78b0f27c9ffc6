package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics - счётчики синхронизации для /metrics
type Metrics struct {
	SyncTotal    *prometheus.CounterVec
	SyncDuration *prometheus.HistogramVec
	TradesSaved  *prometheus.CounterVec
	PortfolioUSD *prometheus.GaugeVec
}

// NewMetrics создает и регистрирует метрики в переданном registry
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SyncTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portfolio_sync_total",
			Help: "Количество попыток синхронизации по биржам и исходам",
		}, []string{"exchange", "status"}),

		SyncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portfolio_sync_duration_seconds",
			Help:    "Длительность синхронизации одной учётной записи",
			Buckets: prometheus.DefBuckets,
		}, []string{"exchange"}),

		TradesSaved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portfolio_trades_saved_total",
			Help: "Количество новых сделок, сохранённых при синхронизации",
		}, []string{"exchange"}),

		PortfolioUSD: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "portfolio_usd_value",
			Help: "USD стоимость портфеля по последнему снапшоту",
		}, []string{"exchange", "credential_id"}),
	}

	reg.MustRegister(m.SyncTotal, m.SyncDuration, m.TradesSaved, m.PortfolioUSD)
	return m
}

// NopMetrics возвращает метрики без регистрации (для тестов)
func NopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
