// ratelimit.go implements an optional client-side token-bucket throttle.
//
// The exchange's own weight-based limits are enforced server-side; this
// bucket exists only so a caller firing a burst of facade calls does not
// immediately trip them. It refills continuously rather than in bursts.
//
// Two buckets are maintained:
//   - Orders: order/modify/cancel/transfer traffic against /exchange
//   - Info:   metadata and account-state reads against /info
package exchange

import (
	"context"
	"sync"
	"time"
)

// TokenBucket implements a token-bucket rate limiter with continuous refill.
// Callers block in Wait() until a token is available or the context is cancelled.
type TokenBucket struct {
	mu       sync.Mutex
	tokens   float64   // current available tokens (fractional allowed)
	capacity float64   // maximum burst size
	rate     float64   // tokens refilled per second
	lastTime time.Time // last time tokens were calculated
}

// NewTokenBucket creates a rate limiter with the given capacity and refill rate.
func NewTokenBucket(capacity, ratePerSecond float64) *TokenBucket {
	return &TokenBucket{
		tokens:   capacity,
		capacity: capacity,
		rate:     ratePerSecond,
		lastTime: time.Now(),
	}
}

// Wait blocks until a token is available or ctx is cancelled.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		tb.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(tb.lastTime).Seconds()
		tb.tokens += elapsed * tb.rate
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastTime = now

		if tb.tokens >= 1 {
			tb.tokens--
			tb.mu.Unlock()
			return nil
		}

		// Calculate wait time for next token
		wait := time.Duration((1 - tb.tokens) / tb.rate * float64(time.Second))
		tb.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
			// retry
		}
	}
}

// Limiter groups token buckets by request category. Each facade operation
// waits on the appropriate bucket before issuing its HTTP request. A nil
// *Limiter disables throttling entirely — New never sets one; the caller
// opts in through Client.WithLimiter.
type Limiter struct {
	Orders *TokenBucket // /exchange traffic: order, cancel, modify, transfers
	Info   *TokenBucket // /info traffic: metadata, clearinghouseState
}

// NewLimiter creates a limiter tuned to a generous default budget. Callers
// with a tighter exchange-assigned weight budget should build their own.
func NewLimiter() *Limiter {
	return &Limiter{
		Orders: NewTokenBucket(200, 20),
		Info:   NewTokenBucket(100, 10),
	}
}

func (l *Limiter) waitOrders(ctx context.Context) error {
	if l == nil || l.Orders == nil {
		return nil
	}
	return l.Orders.Wait(ctx)
}

// WaitInfo blocks until the Info bucket yields a token. It satisfies
// metadata.InfoLimiter and account.InfoLimiter, so Client.WithLimiter wires
// the same Limiter into both /info-reading components as well as /exchange
// traffic — a nil *Limiter (or nil Info bucket) never blocks.
func (l *Limiter) WaitInfo(ctx context.Context) error {
	if l == nil || l.Info == nil {
		return nil
	}
	return l.Info.Wait(ctx)
}
