package main

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector 查询指标，nil接收者下所有方法为no-op（测试）
type Collector struct {
	reg *prometheus.Registry

	Queries        *prometheus.CounterVec // outcome label: ok|unreachable|invalid
	QueryDuration  prometheus.Histogram
	QueryRounds    prometheus.Histogram
	TimetableStops prometheus.Gauge
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		reg: reg,
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "raptor_queries_total",
			Help: "Number of transit queries by outcome.",
		}, []string{"outcome"}),
		QueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "raptor_query_duration_seconds",
			Help:    "Wall time of a single transit query.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		QueryRounds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "raptor_query_rounds",
			Help:    "Number of rounds executed per query.",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		}),
		TimetableStops: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "raptor_timetable_stops",
			Help: "Number of stops in the loaded timetable.",
		}),
	}
	reg.MustRegister(c.Queries, c.QueryDuration, c.QueryRounds, c.TimetableStops)
	return c
}

func (c *Collector) CountQuery(outcome string) {
	if c == nil {
		return
	}
	c.Queries.WithLabelValues(outcome).Inc()
}

func (c *Collector) ObserveQuery(d time.Duration, rounds int) {
	if c == nil {
		return
	}
	c.QueryDuration.Observe(d.Seconds())
	c.QueryRounds.Observe(float64(rounds))
}

func (c *Collector) SetTimetableStops(n int) {
	if c == nil {
		return
	}
	c.TimetableStops.Set(float64(n))
}

// Serve 在独立端口暴露/metrics
func (c *Collector) Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil {
			log.Warnf("metrics server stopped: %v", err)
		}
	}()
}
