package plan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/planfit/planfit/internal/kvstore"
	"github.com/planfit/planfit/internal/telemetry/metrics"
	"github.com/planfit/planfit/internal/telemetry/tracing"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
)

const (
	dietPlanBaseKey    = "planfit.dietplan"
	workoutPlanBaseKey = "planfit.workoutplan"

	// DefaultCacheTTL is how long a plan stays valid in the memory tier.
	// A tunable, not a contract.
	DefaultCacheTTL = 30 * time.Minute

	memCacheSizeBytes = 1024 * 1024

	saveAttempts = 3
)

// Remote is the subset of the plan backend a cache needs for one plan kind.
type Remote[P any] interface {
	FetchActive(ctx context.Context, userID string) (*P, error)
	Create(ctx context.Context, p *P) (*P, error)
	Purge(ctx context.Context, userID string) error
}

// cacheEnvelope tags the cached payload with its owning user. Loaders must
// reject entries whose tag does not match the active user: stale cross-user
// data must never be served, TTL or not.
type cacheEnvelope[P any] struct {
	UserID   string    `json:"userId"`
	Plan     *P        `json:"plan"`
	CachedAt time.Time `json:"cachedAt"`
}

// Cache is the local-cache-first, remote-fallback loader for one plan kind.
// Two tiers: an in-process memory cache with a short TTL and a durable
// per-user entry in the key-value store, refreshed on every successful
// remote fetch. Concurrent loads for the same key share one in-flight
// remote request: at most one fetch per cache key at any time.
type Cache[P any] struct {
	kind    Kind
	baseKey string
	mem     *freecache.Cache
	ttl     time.Duration
	store   kvstore.Store
	remote  Remote[P]
	group   singleflight.Group
	metrics *metrics.Manager
}

func NewDietCache(client *Client, store kvstore.Store, ttl time.Duration, m *metrics.Manager) *Cache[DietPlan] {
	return newCache[DietPlan](KindDiet, dietPlanBaseKey, dietRemote{client}, store, ttl, m)
}

func NewWorkoutCache(client *Client, store kvstore.Store, ttl time.Duration, m *metrics.Manager) *Cache[WorkoutPlan] {
	return newCache[WorkoutPlan](KindWorkout, workoutPlanBaseKey, workoutRemote{client}, store, ttl, m)
}

// NewCacheWithRemote exists for tests that count remote calls.
func NewCacheWithRemote[P any](kind Kind, remote Remote[P], store kvstore.Store, ttl time.Duration) *Cache[P] {
	baseKey := dietPlanBaseKey
	if kind == KindWorkout {
		baseKey = workoutPlanBaseKey
	}
	return newCache[P](kind, baseKey, remote, store, ttl, nil)
}

func newCache[P any](kind Kind, baseKey string, remote Remote[P], store kvstore.Store, ttl time.Duration, m *metrics.Manager) *Cache[P] {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache[P]{
		kind:    kind,
		baseKey: baseKey,
		mem:     freecache.NewCache(memCacheSizeBytes),
		ttl:     ttl,
		store:   store,
		remote:  remote,
		metrics: m,
	}
}

// Load returns the user's active plan, or nil when no plan is available.
// It never returns an error to the caller: network and storage failures
// degrade to the next cache tier, and finally to "no plan".
func (c *Cache[P]) Load(ctx context.Context, userID string, forceRefresh bool) *P {
	cacheKey := kvstore.UserKey(c.baseKey, userID)

	result, _, _ := c.group.Do(cacheKey, func() (interface{}, error) {
		return c.load(ctx, cacheKey, userID, forceRefresh), nil
	})

	p, _ := result.(*P)
	return p
}

// Refresh is Load with the cache tiers skipped.
func (c *Cache[P]) Refresh(ctx context.Context, userID string) *P {
	return c.Load(ctx, userID, true)
}

func (c *Cache[P]) load(ctx context.Context, cacheKey, userID string, forceRefresh bool) *P {
	ctx, span := tracing.GlobalTracer.Start(ctx, fmt.Sprintf("planCache.%s.load", c.kind))
	defer span.End()

	if !forceRefresh {
		if p := c.fromMemory(cacheKey, userID); p != nil {
			c.countCacheHit("memory")
			return p
		}
		if p := c.fromDurable(ctx, cacheKey, userID); p != nil {
			c.countCacheHit("durable")
			return p
		}
	}

	if c.metrics != nil {
		c.metrics.CounterPlanRemoteFetches.Inc()
	}
	fetched, err := c.remote.FetchActive(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrPlanNotFound) {
			log.Errorf("fetch active %s plan for user %s: %s", c.kind, userID, err)
			span.SetStatus(codes.Error, err.Error())
		}
		// degrade to the durable tier, whatever its age
		return c.fromDurable(ctx, cacheKey, userID)
	}

	c.setTiers(ctx, cacheKey, userID, fetched)
	return fetched
}

func (c *Cache[P]) fromMemory(cacheKey, userID string) *P {
	raw, err := c.mem.Get([]byte(cacheKey))
	if err != nil {
		return nil
	}
	return decodeEnvelope[P](raw, userID, c.kind)
}

func (c *Cache[P]) fromDurable(ctx context.Context, cacheKey, userID string) *P {
	raw, err := c.store.Get(ctx, cacheKey)
	if err != nil {
		if !errors.Is(err, kvstore.ErrKeyNotFound) {
			log.Errorf("read durable %s plan cache: %s", c.kind, err)
		}
		return nil
	}

	p := decodeEnvelope[P]([]byte(raw), userID, c.kind)
	if p != nil {
		c.setMemory(cacheKey, userID, p)
	}
	return p
}

func decodeEnvelope[P any](raw []byte, userID string, kind Kind) *P {
	var envelope cacheEnvelope[P]
	if err := json.Unmarshal(raw, &envelope); err != nil {
		log.Errorf("unmarshal cached %s plan: %s", kind, err)
		return nil
	}
	if envelope.UserID != userID {
		log.Warnf("cached %s plan belongs to another user, ignoring", kind)
		return nil
	}
	return envelope.Plan
}

func (c *Cache[P]) setMemory(cacheKey, userID string, p *P) {
	envBytes, err := json.Marshal(cacheEnvelope[P]{UserID: userID, Plan: p, CachedAt: time.Now()})
	if err != nil {
		log.Errorf("marshal %s plan cache envelope: %s", c.kind, err)
		return
	}
	if err := c.mem.Set([]byte(cacheKey), envBytes, int(c.ttl.Seconds())); err != nil {
		log.Errorf("set %s plan memory cache: %s", c.kind, err)
	}
}

func (c *Cache[P]) setTiers(ctx context.Context, cacheKey, userID string, p *P) {
	c.setMemory(cacheKey, userID, p)

	envBytes, err := json.Marshal(cacheEnvelope[P]{UserID: userID, Plan: p, CachedAt: time.Now()})
	if err != nil {
		log.Errorf("marshal %s plan cache envelope: %s", c.kind, err)
		return
	}
	if err := c.store.Set(ctx, cacheKey, string(envBytes)); err != nil {
		log.Errorf("write durable %s plan cache: %s", c.kind, err)
	}
}

// Save persists a freshly generated plan: remote with up to three attempts
// and linear backoff, then the local tiers regardless of the remote outcome,
// so the new plan is usable offline immediately.
func (c *Cache[P]) Save(ctx context.Context, userID string, p *P) *P {
	saved := p
	var lastErr error
	for attempt := 1; attempt <= saveAttempts; attempt++ {
		created, err := c.remote.Create(ctx, p)
		if err == nil {
			saved = created
			lastErr = nil
			break
		}
		lastErr = err
		log.Errorf("save %s plan attempt %d/%d: %s", c.kind, attempt, saveAttempts, err)

		if attempt < saveAttempts {
			select {
			case <-time.After(time.Duration(attempt) * time.Second):
			case <-ctx.Done():
				attempt = saveAttempts
			}
		}
	}
	if lastErr != nil {
		log.Errorf("save %s plan remotely failed, keeping local copy only: %s", c.kind, lastErr)
	}

	c.setTiers(ctx, kvstore.UserKey(c.baseKey, userID), userID, saved)
	return saved
}

// Clear purges the user's remote plans (best effort) and both local tiers.
func (c *Cache[P]) Clear(ctx context.Context, userID string) {
	if err := c.remote.Purge(ctx, userID); err != nil {
		log.Errorf("purge remote %s plans for user %s: %s", c.kind, userID, err)
	}

	cacheKey := kvstore.UserKey(c.baseKey, userID)
	c.mem.Del([]byte(cacheKey))
	if err := c.store.Remove(ctx, cacheKey); err != nil {
		log.Errorf("remove durable %s plan cache: %s", c.kind, err)
	}
}

func (c *Cache[P]) countCacheHit(tier string) {
	if c.metrics != nil {
		c.metrics.CounterPlanCacheHits.WithLabelValues(tier).Inc()
	}
}

type dietRemote struct {
	client *Client
}

func (r dietRemote) FetchActive(ctx context.Context, userID string) (*DietPlan, error) {
	return r.client.ActiveDietPlan(ctx, userID)
}

func (r dietRemote) Create(ctx context.Context, p *DietPlan) (*DietPlan, error) {
	return r.client.CreateDietPlan(ctx, p)
}

func (r dietRemote) Purge(ctx context.Context, userID string) error {
	return r.client.DeleteAllPlans(ctx, KindDiet, userID)
}

type workoutRemote struct {
	client *Client
}

func (r workoutRemote) FetchActive(ctx context.Context, userID string) (*WorkoutPlan, error) {
	return r.client.ActiveWorkoutPlan(ctx, userID)
}

func (r workoutRemote) Create(ctx context.Context, p *WorkoutPlan) (*WorkoutPlan, error) {
	return r.client.CreateWorkoutPlan(ctx, p)
}

func (r workoutRemote) Purge(ctx context.Context, userID string) error {
	return r.client.DeleteAllPlans(ctx, KindWorkout, userID)
}
