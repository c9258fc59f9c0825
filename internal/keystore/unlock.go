package keystore

import (
	"errors"
	"time"

	"fuego-wallet/go-agent/internal/platform/ratelimiter"
)

var ErrTooManyAttempts = errors.New("keystore: too many unlock attempts")

// Unlocker throttles password attempts per keystore path so a runaway agent
// cannot brute-force its own wallet file.
type Unlocker struct {
	limiter *ratelimiter.AttemptLimiter
	now     func() time.Time
}

// NewUnlocker allows burst immediate attempts per path, refilling at
// perMinute attempts per minute afterwards.
func NewUnlocker(perMinute float64, burst int) *Unlocker {
	return &Unlocker{
		limiter: ratelimiter.New(perMinute/60.0, burst, 30*time.Minute),
		now:     time.Now,
	}
}

// Unlock loads the record at path and decrypts it with password.
func (u *Unlocker) Unlock(path, password string) (*Secret, error) {
	if u != nil && !u.limiter.Allow(path, u.now()) {
		return nil, ErrTooManyAttempts
	}
	rec, err := Load(path)
	if err != nil {
		return nil, err
	}
	return Unlock(rec, password)
}

// RetryAfter reports how long the caller must wait before the next attempt
// on path can succeed. Zero when an attempt would be allowed now.
func (u *Unlocker) RetryAfter(path string) time.Duration {
	if u == nil {
		return 0
	}
	return u.limiter.RetryAfter(path, u.now())
}
