// Copyright 2025 SGNL.ai, Inc.

package ldapmod

import (
	"context"

	"golang.org/x/time/rate"
)

// RateBudget is a fixed-rate barrier with a one-second window and a maximum
// number of operations per window.
type RateBudget struct {
	limiter *rate.Limiter
}

// NewRateBudget creates a budget of perSecond operations per second. A
// non-positive value returns nil, meaning no budget.
func NewRateBudget(perSecond int) *RateBudget {
	if perSecond <= 0 {
		return nil
	}

	return &RateBudget{limiter: rate.NewLimiter(rate.Limit(perSecond), perSecond)}
}

// Wait blocks until the budget admits one more operation. A nil budget
// admits immediately.
func (b *RateBudget) Wait(ctx context.Context) error {
	if b == nil {
		return nil
	}

	return b.limiter.Wait(ctx)
}
