package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"mocktest-service/internal/domain"
)

// TestLoader fetches test definitions from a backing store (e.g., document DB).
type TestLoader interface {
	LoadTest(ctx context.Context, testID string) (domain.TestDefinition, error)
}

// TestRepository caches definitions with TTL to avoid repeated store hits.
type TestRepository struct {
	loader TestLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedTest
}

type cachedTest struct {
	def       domain.TestDefinition
	expiresAt time.Time
}

func NewTestRepository(loader TestLoader, ttl time.Duration) *TestRepository {
	return &TestRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedTest),
	}
}

func (r *TestRepository) GetTest(ctx context.Context, testID string) (domain.TestDefinition, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[testID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.def, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(testID, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[testID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.def, nil
		}
		r.mu.RUnlock()

		def, err := r.loader.LoadTest(ctx, testID)
		if err != nil {
			return domain.TestDefinition{}, err
		}

		r.mu.Lock()
		r.cache[testID] = cachedTest{
			def:       def,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return def, nil
	})
	if err != nil {
		return domain.TestDefinition{}, err
	}
	return result.(domain.TestDefinition), nil
}

func (r *TestRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticTestLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticTestLoader struct {
	tests map[string]domain.TestDefinition
}

func NewStaticTestLoader(tests map[string]domain.TestDefinition) *StaticTestLoader {
	return &StaticTestLoader{tests: tests}
}

func (l *StaticTestLoader) LoadTest(_ context.Context, testID string) (domain.TestDefinition, error) {
	if def, ok := l.tests[testID]; ok {
		return def, nil
	}
	return domain.TestDefinition{}, domain.ErrDefinitionNotFound
}

// FileTestLoader reads validated definitions from <dir>/<testID>.json.
type FileTestLoader struct {
	dir string
}

func NewFileTestLoader(dir string) *FileTestLoader {
	return &FileTestLoader{dir: dir}
}

func (l *FileTestLoader) LoadTest(_ context.Context, testID string) (domain.TestDefinition, error) {
	if testID == "" || filepath.Base(testID) != testID {
		return domain.TestDefinition{}, domain.ErrDefinitionNotFound
	}
	data, err := os.ReadFile(filepath.Join(l.dir, testID+".json"))
	if errors.Is(err, os.ErrNotExist) {
		return domain.TestDefinition{}, domain.ErrDefinitionNotFound
	}
	if err != nil {
		return domain.TestDefinition{}, fmt.Errorf("read test: %w", err)
	}
	var def domain.TestDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return domain.TestDefinition{}, fmt.Errorf("unmarshal test: %w", err)
	}
	if err := domain.Validate(def); err != nil {
		return domain.TestDefinition{}, err
	}
	return def, nil
}
