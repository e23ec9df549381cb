package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Manager struct {
	// counters
	CounterRequests            *prometheus.CounterVec
	CounterPlansGenerated      *prometheus.CounterVec
	CounterPlanCacheHits       *prometheus.CounterVec
	CounterPlanRemoteFetches   prometheus.Counter
	CounterMealsCompleted      prometheus.Counter
	CounterExercisesCompleted  prometheus.Counter
	CounterDaysCompleted       prometheus.Counter
	CounterWaterToggles        prometheus.Counter
	CounterHandleRequestPanic  prometheus.Counter
	CounterRateLimitedRequests prometheus.Counter

	// gauges
	GaugeRequests   prometheus.Gauge
	GaugeLifeSignal prometheus.Gauge

	// histograms
	HistogramRequestDuration *prometheus.HistogramVec
	HistLLMCallDuration      prometheus.Histogram
}

func NewTestManager() *Manager {
	return NewManager("backend", "test_server", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("backend", "test_server", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counterRequests := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request",
		Help:      "The total number of incoming requests",
	}, []string{"method", "status"})
	counterPlansGenerated := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "plans_generated",
		Help:      "The total number of generated plans, per plan kind",
	}, []string{"kind"})
	counterPlanCacheHits := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "plan_cache_hits",
		Help:      "Plan loads served from a cache tier, per tier",
	}, []string{"tier"})
	counterPlanRemoteFetches := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "plan_remote_fetches",
		Help:      "Plan loads that reached the remote plan API",
	})
	counterMealsCompleted := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "meals_completed",
		Help:      "The total number of meal completion marks",
	})
	counterExercisesCompleted := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "exercises_completed",
		Help:      "The total number of exercise completion marks",
	})
	counterDaysCompleted := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "days_completed",
		Help:      "The total number of day completion marks, manual or cascaded",
	})
	counterWaterToggles := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "water_toggles",
		Help:      "The total number of water intake toggles",
	})
	counterHandleRequestPanic := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "handle_request_panic",
		Help:      "The total number of serve request panics",
	})
	counterRateLimitedRequests := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "rate_limited_requests",
		Help:      "The total number of rate limited requests",
	})

	gaugeRequests := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "current_requests",
		Help:      "Current number of requests served",
	})
	gaugeLifeSignal := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "life_signal",
		Help:      "Server life signal",
	})

	histogramRequestDuration := factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_duration",
		Help:      "Request serving duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})
	histLLMCallDuration := factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "llm_call_duration",
		Help:      "Duration of LLM text generation calls in seconds",
		Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120},
	})

	return &Manager{
		CounterRequests:            counterRequests,
		CounterPlansGenerated:      counterPlansGenerated,
		CounterPlanCacheHits:       counterPlanCacheHits,
		CounterPlanRemoteFetches:   counterPlanRemoteFetches,
		CounterMealsCompleted:      counterMealsCompleted,
		CounterExercisesCompleted:  counterExercisesCompleted,
		CounterDaysCompleted:       counterDaysCompleted,
		CounterWaterToggles:        counterWaterToggles,
		CounterHandleRequestPanic:  counterHandleRequestPanic,
		CounterRateLimitedRequests: counterRateLimitedRequests,
		GaugeRequests:              gaugeRequests,
		GaugeLifeSignal:            gaugeLifeSignal,
		HistogramRequestDuration:   histogramRequestDuration,
		HistLLMCallDuration:        histLLMCallDuration,
	}
}
