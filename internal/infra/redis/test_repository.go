package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"mocktest-service/internal/domain"
)

// TestLoader fetches test definitions from a backing store (e.g., document DB).
type TestLoader interface {
	LoadTest(ctx context.Context, testID string) (domain.TestDefinition, error)
}

// TestRepository caches definitions in Redis and falls back to a loader on cache miss.
// Definitions are stored as JSON: SET test:{testID}:definition {json} EX ttl
type TestRepository struct {
	client *redis.Client
	loader TestLoader
	ttl    time.Duration
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand
}

func NewTestRepository(client *redis.Client, loader TestLoader, ttl time.Duration) *TestRepository {
	return &TestRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *TestRepository) GetTest(ctx context.Context, testID string) (domain.TestDefinition, error) {
	if def, ok := r.cached(ctx, testID); ok {
		return def, nil
	}

	result, err, _ := r.sf.Do(testID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if def, ok := r.cached(ctx, testID); ok {
			return def, nil
		}

		def, err := r.loader.LoadTest(ctx, testID)
		if err != nil {
			return domain.TestDefinition{}, err
		}

		if data, err := json.Marshal(def); err == nil {
			_ = r.client.Set(ctx, r.key(testID), data, r.ttlWithJitter()).Err()
		}
		return def, nil
	})
	if err != nil {
		return domain.TestDefinition{}, err
	}
	return result.(domain.TestDefinition), nil
}

// Invalidate drops a cached definition, e.g. after an import.
func (r *TestRepository) Invalidate(ctx context.Context, testID string) error {
	return r.client.Del(ctx, r.key(testID)).Err()
}

func (r *TestRepository) cached(ctx context.Context, testID string) (domain.TestDefinition, bool) {
	data, err := r.client.Get(ctx, r.key(testID)).Bytes()
	if err != nil {
		return domain.TestDefinition{}, false
	}
	var def domain.TestDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return domain.TestDefinition{}, false
	}
	return def, true
}

func (r *TestRepository) key(testID string) string {
	return "test:" + testID + ":definition"
}

func (r *TestRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// isMiss reports a missing key.
func isMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}
