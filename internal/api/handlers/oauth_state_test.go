package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOAuthStates_RedeemOnce(t *testing.T) {
	states := NewOAuthStates(time.Minute)

	a := states.Issue("u1")
	b := states.Issue("u2")
	require.NotEqual(t, a, b)

	userID, ok := states.Redeem(b)
	require.True(t, ok)
	assert.Equal(t, "u2", userID)

	_, ok = states.Redeem(b)
	assert.False(t, ok)

	userID, ok = states.Redeem(a)
	require.True(t, ok)
	assert.Equal(t, "u1", userID)

	_, ok = states.Redeem("u1|made-up")
	assert.False(t, ok)
}

func TestOAuthStates_Expiry(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	states := NewOAuthStates(0)
	states.now = func() time.Time { return now }

	state := states.Issue("u1")
	now = now.Add(DefaultStateTTL + time.Second)

	_, ok := states.Redeem(state)
	assert.False(t, ok)

	states.Issue("u2")
	assert.Len(t, states.pending, 1)
}
