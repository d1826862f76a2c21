package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gearshop/pkg/metrics"
	"gearshop/pkg/session"
)

func TestBeginSupersedesPreviousCall(t *testing.T) {
	reg := metrics.NewRegistry()
	r := session.NewRegistry(time.Minute, reg)

	firstCtx, first := r.Begin(context.Background(), "s1")
	require.True(t, first.Current())

	secondCtx, second := r.Begin(context.Background(), "s1")
	defer second.Release()

	require.Error(t, firstCtx.Err())
	require.True(t, errors.Is(context.Cause(firstCtx), session.ErrSuperseded))
	require.True(t, first.Superseded())
	require.False(t, first.Current())

	require.NoError(t, secondCtx.Err())
	require.True(t, second.Current())
	require.False(t, second.Superseded())
	require.EqualValues(t, 1, reg.Value(metrics.SessionsSuperseded, nil))

	// Releasing a stale ticket must not evict the newer call.
	first.Release()
	require.True(t, second.Current())
	require.Equal(t, 1, r.Len())
}

func TestSessionsAreIndependent(t *testing.T) {
	r := session.NewRegistry(time.Minute, nil)

	aCtx, a := r.Begin(context.Background(), "a")
	bCtx, b := r.Begin(context.Background(), "b")
	defer a.Release()
	defer b.Release()

	require.NoError(t, aCtx.Err())
	require.NoError(t, bCtx.Err())
	require.Equal(t, 2, r.Len())
}

func TestReleaseCancelsAndFrees(t *testing.T) {
	r := session.NewRegistry(time.Minute, nil)

	ctx, ticket := r.Begin(context.Background(), "s")
	ticket.Release()
	ticket.Release()

	require.ErrorIs(t, ctx.Err(), context.Canceled)
	require.False(t, ticket.Superseded())
	require.Zero(t, r.Len())
}

func TestEntriesExpire(t *testing.T) {
	reg := metrics.NewRegistry()
	r := session.NewRegistry(20*time.Millisecond, reg)

	ctx, ticket := r.Begin(context.Background(), "s")

	require.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, 5*time.Millisecond)
	require.Error(t, ctx.Err())
	require.ErrorIs(t, context.Cause(ctx), session.ErrExpired)
	require.True(t, ticket.Expired())
	require.False(t, ticket.Superseded())
	require.False(t, ticket.Current())
	require.EqualValues(t, 1, reg.Value(metrics.SessionsExpired, nil))
}

func TestParentCancellationPropagates(t *testing.T) {
	r := session.NewRegistry(0, nil)

	parent, cancel := context.WithCancel(context.Background())
	ctx, ticket := r.Begin(parent, "s")
	defer ticket.Release()

	cancel()
	require.Error(t, ctx.Err())
	require.False(t, ticket.Superseded())
}
