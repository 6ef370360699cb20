package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"anthem-kiosk/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuestionSource fetches question sets from the backend.
type QuestionSource interface {
	Questions(ctx context.Context, count int, seed string) ([]domain.Question, []domain.QuestionWithAnswer, error)
}

// QuestionCache memoizes seeded question sets with a TTL. Selection is
// deterministic per seed, so a cached set is exactly what the backend
// would return again; the cache only saves the round trip when a
// session is resumed after a restart.
type QuestionCache struct {
	source QuestionSource
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedSet
}

type cachedSet struct {
	questions []domain.Question
	key       []domain.QuestionWithAnswer
	expiresAt time.Time
}

func NewQuestionCache(source QuestionSource, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		source: source,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedSet),
	}
}

func (c *QuestionCache) Questions(ctx context.Context, count int, seed string) ([]domain.Question, []domain.QuestionWithAnswer, error) {
	cacheKey := fmt.Sprintf("%d:%s", count, seed)
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[cacheKey]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.questions, entry.key, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(cacheKey, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[cacheKey]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry, nil
		}
		c.mu.RUnlock()

		questions, key, err := c.source.Questions(ctx, count, seed)
		if err != nil {
			return cachedSet{}, err
		}

		entry := cachedSet{questions: questions, key: key, expiresAt: now.Add(c.ttlWithJitter())}
		c.mu.Lock()
		c.cache[cacheKey] = entry
		c.mu.Unlock()
		return entry, nil
	})
	if err != nil {
		return nil, nil, err
	}
	entry := result.(cachedSet)
	return entry.questions, entry.key, nil
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations; rnd is not goroutine-safe,
	// and fills for different seeds run concurrently
	jitterMax := int64(c.ttl) / 10
	c.mu.Lock()
	jitter := c.rnd.Int63n(jitterMax + 1)
	c.mu.Unlock()
	return c.ttl + time.Duration(jitter)
}
