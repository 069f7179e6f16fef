// Package metrics exposes the process counters served next to the health
// endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CasesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guildwarden_cases_created_total",
		Help: "Moderation cases created, by kind.",
	}, []string{"kind"})

	CasesRetired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guildwarden_cases_retired_total",
		Help: "Active cases transitioned to inactive.",
	})

	ReconcilerTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guildwarden_reconciler_ticks_total",
		Help: "Expiry reconciliation passes completed.",
	})

	CommandErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guildwarden_command_errors_total",
		Help: "Slash commands that ended in an error, by command.",
	}, []string{"command"})

	AutomodDeletions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guildwarden_automod_deletions_total",
		Help: "Messages removed by the link filter.",
	})

	JobFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guildwarden_job_failures_total",
		Help: "Scheduled job runs that returned an error or panicked, by job.",
	}, []string{"job"})
)

// Handler serves the registry in the standard exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
