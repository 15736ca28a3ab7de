package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JoinsAttributed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invitetrack_joins_attributed_total",
		Help: "Joins matched to an invite code.",
	})
	JoinsUnknown = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invitetrack_joins_unknown_total",
		Help: "Joins with no identifiable invite code.",
	})
	JoinsFake = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invitetrack_joins_fake_total",
		Help: "Joins classified as fake by account age.",
	})
	Leaves = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invitetrack_leaves_total",
		Help: "Tracked members who left or were banned.",
	})
	FetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invitetrack_fetch_errors_total",
		Help: "Failed platform invite fetches.",
	})
	StoreErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invitetrack_store_errors_total",
		Help: "Failed durable store operations.",
	})
)
