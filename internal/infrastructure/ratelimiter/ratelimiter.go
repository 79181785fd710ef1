package ratelimiter

import (
	"math"
	"net/http"
	"sync"
	"time"
)

const (
	bucketKeyPrefix   = "rl:bucket:"
	lastFillKeyPrefix = "rl:fill:"
	defaultSourceKey  = "X-RateLimit-Key"
)

type Limiter interface {
	Allow(sourceKey string) bool
	GetSourceKey(r *http.Request) string
	Remaining(sourceKey string) int
	GetMaxBurst() int
	RetryAfter(sourceKey string) time.Duration
	Close() error
}

// TokenBucket refills maxRatePerSecond tokens per second up to maxBurst.
// State lives in a GetterSetter so it can be shared through redis.
type TokenBucket struct {
	maxRatePerMillisecond float64
	maxBurst              int
	cache                 GetterSetter
	cacheTTL              time.Duration
	sourceHeaderKey       string
	now                   func() time.Time

	locks sync.Map // sourceKey -> *sync.Mutex
}

type bucketState struct {
	tokens   int
	lastFill int64 // unix millis
}

type Options struct {
	MaxRatePerSecond int
	MaxBurst         int
	Cache            GetterSetter
	CacheTTL         time.Duration
	SourceHeaderKey  string
}

func New(options Options) *TokenBucket {
	if options.Cache == nil {
		options.Cache = NewInMemory(time.Minute)
	}
	if options.CacheTTL == 0 {
		options.CacheTTL = 10 * time.Second
	}
	if options.MaxRatePerSecond <= 0 {
		options.MaxRatePerSecond = 1
	}
	if options.MaxBurst <= 0 {
		options.MaxBurst = options.MaxRatePerSecond
	}
	if options.SourceHeaderKey == "" {
		options.SourceHeaderKey = defaultSourceKey
	}

	return &TokenBucket{
		maxRatePerMillisecond: float64(options.MaxRatePerSecond) / 1000.0,
		maxBurst:              options.MaxBurst,
		cache:                 options.Cache,
		cacheTTL:              options.CacheTTL,
		sourceHeaderKey:       options.SourceHeaderKey,
		now:                   time.Now,
	}
}

func (tb *TokenBucket) lock(sourceKey string) *sync.Mutex {
	l, _ := tb.locks.LoadOrStore(sourceKey, &sync.Mutex{})
	return l.(*sync.Mutex)
}

func (tb *TokenBucket) state(sourceKey string, now int64) bucketState {
	bucket, bucketErr := tb.cache.Get(bucketKeyPrefix + sourceKey)
	lastFill, fillErr := tb.cache.Get(lastFillKeyPrefix + sourceKey)

	// a miss starts a fresh bucket; any other store error fails open
	if bucketErr != nil || fillErr != nil {
		return bucketState{tokens: tb.maxBurst, lastFill: now}
	}

	return bucketState{tokens: bucket, lastFill: int64(lastFill)}
}

func (tb *TokenBucket) store(sourceKey string, s bucketState) {
	_ = tb.cache.SetWithExpiration(bucketKeyPrefix+sourceKey, s.tokens, tb.cacheTTL)
	_ = tb.cache.SetWithExpiration(lastFillKeyPrefix+sourceKey, int(s.lastFill), tb.cacheTTL)
}

// refill adds whole tokens for the elapsed time. lastFill only advances by the
// time those tokens account for, so partial progress carries over.
func (tb *TokenBucket) refill(s bucketState, now int64) bucketState {
	elapsed := now - s.lastFill
	if elapsed <= 0 {
		return s
	}

	added := int(math.Floor(float64(elapsed) * tb.maxRatePerMillisecond))
	if added == 0 {
		return s
	}

	tokens := s.tokens + added
	if tokens >= tb.maxBurst {
		return bucketState{tokens: tb.maxBurst, lastFill: now}
	}

	consumed := int64(math.Ceil(float64(added) / tb.maxRatePerMillisecond))
	return bucketState{tokens: tokens, lastFill: s.lastFill + consumed}
}

func (tb *TokenBucket) Allow(sourceKey string) bool {
	l := tb.lock(sourceKey)
	l.Lock()
	defer l.Unlock()

	now := tb.now().UnixMilli()
	current := tb.state(sourceKey, now)
	next := tb.refill(current, now)

	if next.tokens > 0 {
		next.tokens--
		tb.store(sourceKey, next)
		return true
	}

	if next != current {
		tb.store(sourceKey, next)
	}
	return false
}

func (tb *TokenBucket) Remaining(sourceKey string) int {
	l := tb.lock(sourceKey)
	l.Lock()
	defer l.Unlock()

	now := tb.now().UnixMilli()
	return tb.refill(tb.state(sourceKey, now), now).tokens
}

// RetryAfter is the time until the next token arrives.
func (tb *TokenBucket) RetryAfter(string) time.Duration {
	return time.Duration(math.Ceil(1/tb.maxRatePerMillisecond)) * time.Millisecond
}

func (tb *TokenBucket) GetMaxBurst() int {
	return tb.maxBurst
}

func (tb *TokenBucket) GetSourceKey(r *http.Request) string {
	return sourceKey(r, tb.sourceHeaderKey)
}

func (tb *TokenBucket) Close() error {
	return tb.cache.Close()
}

func sourceKey(r *http.Request, header string) string {
	if key := r.Header.Get(header); key != "" {
		return key
	}
	return r.RemoteAddr
}
