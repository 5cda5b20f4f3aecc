package devserver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Domain counters, exported at /metrics alongside the per-route HTTP metrics.
var (
	twitsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "twitline_twits_created_total",
		Help: "Number of twits created.",
	})

	commentsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "twitline_comments_created_total",
		Help: "Number of comments created.",
	})

	likeToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "twitline_like_toggles_total",
		Help: "Number of like and unlike operations.",
	}, []string{"op"})
)
