// Copyright 2025 SGNL.ai, Inc.

package ldapmod_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgnl-ai/ldapmodify/pkg/ldapmod"
)

func TestNilRateBudgetAdmitsImmediately(t *testing.T) {
	budget := ldapmod.NewRateBudget(0)
	require.Nil(t, budget)

	assert.NoError(t, budget.Wait(context.Background()))
}

func TestRateBudgetEnforcesWindow(t *testing.T) {
	budget := ldapmod.NewRateBudget(5)
	ctx := context.Background()

	// The first window's worth of operations is admitted without blocking.
	start := time.Now()

	for i := 0; i < 5; i++ {
		require.NoError(t, budget.Wait(ctx))
	}

	assert.Less(t, time.Since(start), 200*time.Millisecond)

	// The next operation waits for budget to free up.
	require.NoError(t, budget.Wait(ctx))
	assert.Greater(t, time.Since(start), 100*time.Millisecond)
}

func TestRateBudgetHonorsCancellation(t *testing.T) {
	budget := ldapmod.NewRateBudget(1)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, budget.Wait(ctx))

	cancel()

	assert.Error(t, budget.Wait(ctx))
}
