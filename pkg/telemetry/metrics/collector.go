package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"openserver-hq/guardrails/pkg/config"
	"openserver-hq/guardrails/pkg/moderation/breaker"
	"openserver-hq/guardrails/pkg/moderation/types"
)

// otherLabel replaces label values once the cardinality limit is reached.
const otherLabel = "other"

// Collector owns the Prometheus registry and records moderation events. It
// implements the moderation, breaker, translation cache and reload
// observers, so one value is handed to every component.
type Collector struct {
	namespace string
	registry  *prometheus.Registry

	decisionMetrics    *DecisionMetrics
	engineMetrics      *EngineMetrics
	breakerMetrics     *BreakerMetrics
	translationMetrics *TranslationMetrics
	mitigationMetrics  *MitigationMetrics
	reloadMetrics      *ReloadMetrics
	httpMetrics        *HTTPMetrics

	// Engine names come from configuration, but category names come from
	// remote services and are bounded here.
	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a collector registering into registry. A nil
// registry gets a fresh private one so tests and multiple instances never
// collide on the global default registry.
func NewCollector(cfg config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = config.DefaultMetricsNamespace
	}

	return &Collector{
		namespace:          namespace,
		registry:           registry,
		decisionMetrics:    NewDecisionMetrics(namespace, registry),
		engineMetrics:      NewEngineMetrics(namespace, registry),
		breakerMetrics:     NewBreakerMetrics(namespace, registry),
		translationMetrics: NewTranslationMetrics(namespace, registry),
		mitigationMetrics:  NewMitigationMetrics(namespace, registry),
		reloadMetrics:      NewReloadMetrics(namespace, registry),
		httpMetrics:        NewHTTPMetrics(namespace, registry),
		cardinalityLimiter: NewCardinalityLimiter(256),
	}
}

// DecisionMade records a completed decision.
func (c *Collector) DecisionMade(d *types.Decision) {
	categories := make([]string, 0, len(d.Categories))
	for _, cat := range d.Categories {
		categories = append(categories, c.limit("category:"+string(cat), string(cat)))
	}
	c.decisionMetrics.RecordDecision(d.Action.String(), c.limit("profile:"+d.ProfileApplied, d.ProfileApplied), d.Severity, categories)
}

// EngineEvaluated records one engine verdict.
func (c *Collector) EngineEvaluated(v types.EngineVerdict) {
	c.engineMetrics.RecordVerdict(v.Engine, verdictOutcome(v), string(v.FailureReason), v.Latency)
}

// BreakerTransition records a breaker state change.
func (c *Collector) BreakerTransition(t breaker.Transition) {
	c.breakerMetrics.RecordTransition(t.Engine, t.Seq, t.To)
}

// TranslationCompleted records a translation attempt.
func (c *Collector) TranslationCompleted(outcome string) {
	c.translationMetrics.RecordTranslation(outcome)
}

// CacheLookup records a translation cache lookup.
func (c *Collector) CacheLookup(hit bool) {
	if hit {
		c.translationMetrics.RecordHit()
	} else {
		c.translationMetrics.RecordMiss()
	}
}

// MitigationPlanned records a mitigation plan.
func (c *Collector) MitigationPlanned(plan *types.MitigationPlan) {
	c.mitigationMetrics.RecordPlan(plan)
}

// ValidationFailed records a rejected request.
func (c *Collector) ValidationFailed(error) {
	c.decisionMetrics.RecordValidationFailure()
}

// PolicyReloaded records a policy reload attempt.
func (c *Collector) PolicyReloaded(trigger string, err error) {
	c.reloadMetrics.RecordReload(trigger, err, time.Now())
}

// InstrumentHandler records request counts and latency for route.
func (c *Collector) InstrumentHandler(route string, h http.Handler) http.Handler {
	return c.httpMetrics.Instrument(route, h)
}

// TrackCacheSize exposes size as the translation cache entry gauge.
func (c *Collector) TrackCacheSize(size func() int) {
	c.translationMetrics.TrackSize(size)
}

// TrackBreakers seeds the breaker state gauge for every known breaker so
// closed breakers are visible before their first transition.
func (c *Collector) TrackBreakers(statuses []breaker.Status) {
	for _, s := range statuses {
		c.breakerMetrics.SetState(s.Engine, s.State)
	}
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) limit(labelSet, value string) string {
	if c.cardinalityLimiter.Allow(labelSet) {
		return value
	}
	return otherLabel
}

func verdictOutcome(v types.EngineVerdict) string {
	switch {
	case v.Fallback:
		return "fallback"
	case v.Errored:
		return "error"
	default:
		return "success"
	}
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label combinations per metric.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow checks if a label set is allowed. Returns true if the label set
// already exists or if we haven't reached the cardinality limit yet.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	if _, exists := cl.current[labelSet]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
