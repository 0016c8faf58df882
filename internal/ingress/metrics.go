package ingress

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "herald_http_requests_total",
		Help: "HTTP requests served by route and status code.",
	}, []string{"method", "route", "code"})

	wsEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "herald_ws_events_total",
		Help: "Events received over the websocket by type and result.",
	}, []string{"type", "result"})

	wsClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "herald_ws_clients",
		Help: "Connected websocket clients.",
	})
)
