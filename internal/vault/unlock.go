package vault

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/thunder/internal/common"
	"golang.org/x/time/rate"
)

// Unlocker throttles password attempts against one vault file with a token
// bucket: burst attempts right away, then one per interval. A throttled
// attempt fails with common.ErrTooManyAttempts before any key derivation.
// A successful open refills the bucket.
//
// Failed attempts keep returning common.ErrInvalidPasswordOrCorrupt, so
// throttling adds no password-versus-corruption signal.
type Unlocker struct {
	mu       sync.Mutex
	path     string
	burst    int
	interval time.Duration
	limiter  *rate.Limiter
	opts     []Option
}

func NewUnlocker(path string, burst int, interval time.Duration, opts ...Option) *Unlocker {
	if burst < 1 {
		burst = 1
	}
	return &Unlocker{
		path:     path,
		burst:    burst,
		interval: interval,
		limiter:  rate.NewLimiter(rate.Every(interval), burst),
		opts:     opts,
	}
}

func (u *Unlocker) Open(ctx context.Context, password []byte) (*Handle, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.limiter.Allow() {
		return nil, common.ErrTooManyAttempts
	}

	h, err := Open(ctx, u.path, password, u.opts...)
	if err != nil {
		return nil, err
	}

	u.limiter = rate.NewLimiter(rate.Every(u.interval), u.burst)
	return h, nil
}

// Create makes the vault if none exists yet.
func (u *Unlocker) Create(ctx context.Context, password []byte) (*Handle, error) {
	return Create(ctx, u.path, password, u.opts...)
}

func (u *Unlocker) Exists() bool {
	return Exists(u.path)
}
