package payment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAttemptStartsPending(t *testing.T) {
	a, err := NewAttempt("a1", "o1", "u1", "pi_1", 2000, "usd", 30*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, StatusPending, a.Status)
	assert.False(t, a.Status.Terminal())
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), a.ExpiresAt, time.Minute)

	_, err = NewAttempt("a2", "o1", "u1", "", 2000, "usd", time.Minute)
	assert.ErrorIs(t, err, ErrInvalidAttempt)
}

func TestTransitionOnlyLeavesPending(t *testing.T) {
	now := time.Now().UTC()
	a := &Attempt{ID: "a1", Status: StatusPending}

	assert.False(t, a.Transition(StatusPending, false, "", now))
	assert.True(t, a.Transition(StatusFailed, true, "amount_mismatch", now))
	assert.True(t, a.Suspicious)
	assert.Equal(t, "amount_mismatch", a.FailureReason)

	assert.False(t, a.Transition(StatusPaid, false, "", now))
	assert.Equal(t, StatusFailed, a.Status)
}

func TestConflictErrorsShareKind(t *testing.T) {
	assert.ErrorIs(t, ErrDuplicateTransaction, ErrConflict)
	assert.ErrorIs(t, ErrPendingExists, ErrConflict)
}
