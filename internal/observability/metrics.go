package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PostsSubmitted counts posts accepted into the feed.
	PostsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "truuo_posts_submitted_total",
		Help: "Total number of posts submitted to the feed",
	})

	// VotesApplied counts applied vote toggles by direction.
	VotesApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "truuo_votes_applied_total",
		Help: "Total number of applied vote toggles",
	}, []string{"direction"})

	// FeedSize is the number of posts held by the feed.
	FeedSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "truuo_feed_posts",
		Help: "Number of posts currently in the feed",
	})

	// PersistenceFailures counts write-through failures by operation.
	PersistenceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "truuo_persistence_failures_total",
		Help: "Total number of failed post write-throughs",
	}, []string{"operation"})

	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "truuo_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// WebSocketConnectionsTotal is the gauge of open feed streams.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "truuo_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped for slow clients.
	WebSocketBackpressureDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "truuo_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	})
)
