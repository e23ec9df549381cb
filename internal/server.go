package internal

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/planfit/planfit/internal/auth"
	"github.com/planfit/planfit/internal/completion"
	"github.com/planfit/planfit/internal/config"
	"github.com/planfit/planfit/internal/dashboard"
	"github.com/planfit/planfit/internal/events"
	"github.com/planfit/planfit/internal/kvstore"
	"github.com/planfit/planfit/internal/llm"
	"github.com/planfit/planfit/internal/middleware"
	"github.com/planfit/planfit/internal/plan"
	"github.com/planfit/planfit/internal/telemetry/metrics"

	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string

	config      *config.Config
	redisClient *redis.Client
	store       kvstore.Store
	authService *auth.Service

	planClient   *plan.Client
	dietCache    *plan.Cache[plan.DietPlan]
	workoutCache *plan.Cache[plan.WorkoutPlan]
	generator    *plan.Generator

	bus        *events.Bus
	trackers   *completion.Registry
	aggregator *dashboard.Aggregator

	aggregatorCancel context.CancelFunc

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
}

type NewServerParams struct {
	Config        *config.Config
	LLMApiKey     string
	RedisPassword string
	VersionInfo   string
}

func NewServer(ctx context.Context, params NewServerParams) (*Server, error) {
	promRegistry := metrics.SetupPrometheus()
	metricsManager := metrics.NewManager("backend", "main", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(params.Config.RedisHost, params.Config.RedisPort),
		Password: params.RedisPassword,
		DB:       0, // use default DB
	})

	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	tracedHttpClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	store := kvstore.NewRedisStore(rdb)
	authService := auth.NewService(auth.DefaultTTL, rdb)

	planClient := plan.NewClient(params.Config.PlanApiEndpoint, tracedHttpClient)
	cacheTTL := time.Duration(params.Config.PlanCacheTTLMinutes) * time.Minute
	dietCache := plan.NewDietCache(planClient, store, cacheTTL, metricsManager)
	workoutCache := plan.NewWorkoutCache(planClient, store, cacheTTL, metricsManager)

	llmClient := llm.NewClient(
		params.Config.LLMApiEndpoint,
		params.LLMApiKey,
		params.Config.LLMModel,
		tracedHttpClient,
	)
	generator := plan.NewGenerator(llmClient, dietCache, workoutCache, metricsManager)

	bus := events.NewBus()
	trackers := completion.NewRegistry(store, planClient, bus, metricsManager)
	aggregator := dashboard.NewAggregator(dietCache, workoutCache, trackers, bus)

	return &Server{
		config:         params.Config,
		versionInfo:    params.VersionInfo,
		redisClient:    rdb,
		store:          store,
		authService:    authService,
		planClient:     planClient,
		dietCache:      dietCache,
		workoutCache:   workoutCache,
		generator:      generator,
		bus:            bus,
		trackers:       trackers,
		aggregator:     aggregator,
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
	}, nil
}

// trackerMerger adapts the completion registry to the plan handler, which
// cannot import the completion package directly.
type trackerMerger struct {
	trackers *completion.Registry
}

func (m trackerMerger) ApplySnapshot(ctx context.Context, userID string, mealIDs, dayIDs []string, start time.Time) {
	m.trackers.ForUser(userID).ApplyPlanSnapshot(ctx, mealIDs, dayIDs, start)
}

func (m trackerMerger) Reset(ctx context.Context, userID string) {
	m.trackers.ForUser(userID).Reset(ctx)
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("main-router"))

	authHandler := auth.NewHandler(s.authService)
	r.HandleFunc("/a/login", authHandler.HandleLogin).Methods("POST", "OPTIONS").Name("login")
	r.HandleFunc("/a/logout", authHandler.HandleLogout).Methods("POST", "OPTIONS").Name("logout")

	planHandler := plan.NewHandler(
		s.generator,
		s.dietCache,
		s.workoutCache,
		trackerMerger{s.trackers},
	)
	reqRateLimiter := redis_rate.NewLimiter(s.redisClient)
	generateRateLimit := middleware.RateLimit(
		reqRateLimiter, "generate", s.config.GenerateLimitPerMin, s.metricsManager,
	)
	r.Handle(
		"/plans/diet/generate",
		generateRateLimit(http.HandlerFunc(planHandler.HandleGenerateDiet)),
	).Methods("POST", "OPTIONS").Name("generate-diet")
	r.Handle(
		"/plans/workout/generate",
		generateRateLimit(http.HandlerFunc(planHandler.HandleGenerateWorkout)),
	).Methods("POST", "OPTIONS").Name("generate-workout")
	r.HandleFunc("/plans/diet/active", planHandler.HandleActiveDiet).Methods("GET", "OPTIONS").Name("active-diet")
	r.HandleFunc("/plans/workout/active", planHandler.HandleActiveWorkout).Methods("GET", "OPTIONS").Name("active-workout")
	r.HandleFunc("/plans", planHandler.HandleClear).Methods("DELETE", "OPTIONS").Name("clear-plans")

	completionHandler := completion.NewHandler(s.trackers)
	r.HandleFunc("/completions", completionHandler.HandleGetState).Methods("GET", "OPTIONS").Name("completion-state")
	r.HandleFunc("/completions/meal", completionHandler.HandleMarkMeal).Methods("POST", "OPTIONS").Name("mark-meal")
	r.HandleFunc("/completions/exercise", completionHandler.HandleMarkExercise).Methods("POST", "OPTIONS").Name("mark-exercise")
	r.HandleFunc("/completions/day", completionHandler.HandleMarkDay).Methods("POST", "OPTIONS").Name("mark-day")
	r.HandleFunc("/completions/water", completionHandler.HandleToggleWater).Methods("POST", "OPTIONS").Name("toggle-water")

	dashboardHandler := dashboard.NewHandler(s.aggregator)
	r.HandleFunc("/dashboard", dashboardHandler.HandleGet).Methods("GET", "OPTIONS").Name("dashboard")

	r.HandleFunc("/version", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(s.versionInfo)); err != nil {
			log.Errorf("failed to write version response: %s", err)
		}
	}).Methods("GET").Name("version")
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("GET").Name("health")

	// all the rest - unhandled paths
	r.HandleFunc("/{unknown}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Methods("GET", "POST", "PUT", "OPTIONS").Name("unknown")

	authMiddleware := middleware.NewAuthMiddlewareHandler(s.authService)

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors())
	r.Use(authMiddleware.AuthCheck())

	return r
}

func (s *Server) Serve(ctx context.Context, host string, port int) {
	router := s.routerSetup()

	aggCtx, aggCancel := context.WithCancel(ctx)
	s.aggregatorCancel = aggCancel
	go s.aggregator.Run(aggCtx)

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{},
	))
	metricsAddr := net.JoinHostPort(host, strconv.Itoa(s.config.MetricsPort))
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	if s.aggregatorCancel != nil {
		s.aggregatorCancel()
	}
	s.bus.Close()

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown http server")
		}
		log.Warnln("server shut down")
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown metrics http server")
		}
		log.Warnln("metrics server shut down")
	}
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}
