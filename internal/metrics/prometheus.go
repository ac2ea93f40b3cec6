// Package metrics defines the Prometheus instruments emitted by the action
// dispatcher and auth resolver. The Metrics value is constructed once at
// startup and injected; nothing here is a package-level global.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Action metric labels.
var actionLabels = []string{"org_id", "tool_key", "action_key"}

// Metrics holds every custom instrument the core emits.
type Metrics struct {
	ActionsStarted *prometheus.CounterVec
	ActionsSuccess *prometheus.CounterVec
	ActionsError   *prometheus.CounterVec
	ActionDuration *prometheus.HistogramVec

	TokensRefreshedTotal  prometheus.Counter
	TokenRefreshFailTotal prometheus.Counter
	OAuthCallbacksTotal   *prometheus.CounterVec
}

// New initializes and registers the custom instruments on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "toolbridge_actions_started_total",
			Help: "Total number of action executions attempted.",
		}, actionLabels),
		ActionsSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "toolbridge_actions_success_total",
			Help: "Total number of action executions that succeeded.",
		}, actionLabels),
		ActionsError: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "toolbridge_actions_error_total",
			Help: "Total number of action executions that failed.",
		}, actionLabels),
		ActionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "toolbridge_action_duration_seconds",
			Help:    "Outbound action dispatch duration.",
			Buckets: prometheus.DefBuckets,
		}, actionLabels),
		TokensRefreshedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "toolbridge_tokens_refreshed_total",
			Help: "Total number of user tokens refreshed.",
		}),
		TokenRefreshFailTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "toolbridge_token_refresh_failures_total",
			Help: "Total number of failed token refresh attempts.",
		}),
		OAuthCallbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "toolbridge_oauth_callbacks_total",
			Help: "Total number of OAuth callbacks handled, by result.",
		}, []string{"result"}),
	}

	if reg == nil {
		log.Error().Msg("Prometheus registry is nil, custom metrics will not be exported.")
		return m
	}

	collectors := []prometheus.Collector{
		m.ActionsStarted, m.ActionsSuccess, m.ActionsError, m.ActionDuration,
		m.TokensRefreshedTotal, m.TokenRefreshFailTotal, m.OAuthCallbacksTotal,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Msg("Failed to register metric collector")
		}
	}
	log.Info().Msg("Custom Prometheus metrics registered.")
	return m
}

// NewUnregistered builds the instruments without a registry; used by tests.
func NewUnregistered() *Metrics {
	return New(nil)
}
