package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/totegamma/helm"
	"github.com/totegamma/helm/internal/domain"
	"github.com/totegamma/helm/internal/present/rest/presenter"
	"github.com/totegamma/helm/internal/usecase"
)

// RateLimiter keeps one token bucket per requester, or per client ip for anonymous requests.
// Signed commits are additionally limited per signer through Verifier. Idle buckets are evicted.
type RateLimiter struct {
	mu       sync.Mutex
	limiters *cache.Cache
	rps      float64
	burst    int
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiters: cache.New(10*time.Minute, 10*time.Minute),
		rps:      rps,
		burst:    burst,
	}
}

func (r *RateLimiter) get(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.limiters.Get(key); ok {
		r.limiters.SetDefault(key, l)
		return l.(*rate.Limiter)
	}
	l := rate.NewLimiter(rate.Limit(r.rps), r.burst)
	r.limiters.SetDefault(key, l)
	return l
}

func (r *RateLimiter) Allow(key string) bool {
	if r.rps <= 0 {
		return true
	}
	return r.get(key).Allow()
}

func (r *RateLimiter) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		key := "ip:" + c.RealIP()
		if id, ok := Requester(c.Request().Context()); ok {
			key = "id:" + id.Hex()
		}
		if !r.Allow(key) {
			return presenter.Error(c, domain.ErrTooManyRequests)
		}
		return next(c)
	}
}

// Verifier wraps a document verifier so every authenticated signer draws from its own bucket.
// Commits carry no bearer token, so Middleware alone only sees their client ip.
func (r *RateLimiter) Verifier(next usecase.DocumentVerifier) usecase.DocumentVerifier {
	return &limitedVerifier{limiter: r, next: next}
}

type limitedVerifier struct {
	limiter *RateLimiter
	next    usecase.DocumentVerifier
}

func (v *limitedVerifier) Verify(ctx context.Context, sd helm.SignedDocument) (common.Address, error) {
	signer, err := v.next.Verify(ctx, sd)
	if err != nil {
		return signer, err
	}
	if !v.limiter.Allow("signer:" + signer.Hex()) {
		return common.Address{}, domain.ErrTooManyRequests
	}
	return signer, nil
}
