// Package metrics exposes Prometheus counters for the API server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "channelboard_http_requests_total",
		Help: "HTTP requests received, by method and route pattern.",
	}, []string{"method", "path"})

	postsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "channelboard_posts_ingested_total",
		Help: "Posts accepted through the ingestion endpoint.",
	})

	reactionToggles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "channelboard_reaction_toggles_total",
		Help: "Successful reaction toggle operations.",
	})
)

func ObserveRequest(method, path string) {
	requestsTotal.WithLabelValues(method, path).Inc()
}

func PostIngested() {
	postsIngested.Inc()
}

func ReactionToggled() {
	reactionToggles.Inc()
}

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
