package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var registry = prometheus.NewRegistry()

var registerer = prometheus.WrapRegistererWith(nil, registry)

var (
	// ChecksTotal counts guardrail passes by gate ("sanitizer" or "guard").
	ChecksTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "storygate_checks_total",
			Help: "Total number of guardrail checks performed",
		},
		[]string{"gate"},
	)

	// ViolationsTotal counts reported violations by category.
	ViolationsTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "storygate_violations_total",
			Help: "Total number of guardrail violations reported",
		},
		[]string{"category"},
	)

	// RuleReloads counts successful hot reloads of the rule file.
	RuleReloads = promauto.With(registerer).NewCounter(
		prometheus.CounterOpts{
			Name: "storygate_rule_reloads_total",
			Help: "Total number of successful guardrail rule reloads",
		},
	)

	// RuleReloadFailures counts reloads that kept stale rules after a
	// stat or parse failure.
	RuleReloadFailures = promauto.With(registerer).NewCounter(
		prometheus.CounterOpts{
			Name: "storygate_rule_reload_failures_total",
			Help: "Total number of failed guardrail rule reloads",
		},
	)
)

// Initialize registers process collectors and installs the private
// registry as the default, so a host service can mount it directly.
func Initialize() {
	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
}

// Registry exposes the private registry for the host service to gather.
func Registry() *prometheus.Registry {
	return registry
}
