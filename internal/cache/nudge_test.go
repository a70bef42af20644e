package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNudge() *FeedbackNudge {
	return NewFeedbackNudge(NewMemoryCache(), time.Hour, 2, 3)
}

func TestFeedbackNudgeCounters(t *testing.T) {
	ctx := context.Background()
	nudge := testNudge()

	sessions, edits, err := nudge.Counters(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, sessions)
	assert.Equal(t, 0, edits)

	require.NoError(t, nudge.RecordSession(ctx, "user-1"))
	require.NoError(t, nudge.RecordSession(ctx, "user-1"))
	require.NoError(t, nudge.RecordEdit(ctx, "user-1"))

	sessions, edits, err = nudge.Counters(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, sessions)
	assert.Equal(t, 1, edits)
}

func TestFeedbackNudgeThresholds(t *testing.T) {
	ctx := context.Background()
	nudge := testNudge()

	ok, err := nudge.ShouldPrompt(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, ok, "fresh user is never prompted")

	require.NoError(t, nudge.RecordSession(ctx, "user-1"))
	require.NoError(t, nudge.RecordSession(ctx, "user-1"))
	require.NoError(t, nudge.RecordEdit(ctx, "user-1"))
	require.NoError(t, nudge.RecordEdit(ctx, "user-1"))

	ok, err = nudge.ShouldPrompt(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, ok, "both thresholds must be met")

	require.NoError(t, nudge.RecordEdit(ctx, "user-1"))

	ok, err = nudge.ShouldPrompt(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFeedbackNudgePromptedArmsCooldown(t *testing.T) {
	ctx := context.Background()
	nudge := testNudge()

	for i := 0; i < 2; i++ {
		require.NoError(t, nudge.RecordSession(ctx, "user-1"))
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, nudge.RecordEdit(ctx, "user-1"))
	}

	require.NoError(t, nudge.Prompted(ctx, "user-1"))

	sessions, edits, err := nudge.Counters(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, sessions)
	assert.Equal(t, 0, edits)

	// Meeting the thresholds again inside the cooldown stays silent
	for i := 0; i < 2; i++ {
		require.NoError(t, nudge.RecordSession(ctx, "user-1"))
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, nudge.RecordEdit(ctx, "user-1"))
	}

	ok, err := nudge.ShouldPrompt(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFeedbackNudgeCooldownExpires(t *testing.T) {
	ctx := context.Background()
	nudge := NewFeedbackNudge(NewMemoryCache(), 10*time.Millisecond, 1, 1)

	require.NoError(t, nudge.RecordSession(ctx, "user-1"))
	require.NoError(t, nudge.RecordEdit(ctx, "user-1"))
	require.NoError(t, nudge.Prompted(ctx, "user-1"))

	require.NoError(t, nudge.RecordSession(ctx, "user-1"))
	require.NoError(t, nudge.RecordEdit(ctx, "user-1"))

	time.Sleep(20 * time.Millisecond)

	ok, err := nudge.ShouldPrompt(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFeedbackNudgeIsPerUser(t *testing.T) {
	ctx := context.Background()
	nudge := NewFeedbackNudge(NewMemoryCache(), time.Hour, 1, 1)

	require.NoError(t, nudge.RecordSession(ctx, "user-1"))
	require.NoError(t, nudge.RecordEdit(ctx, "user-1"))

	ok, err := nudge.ShouldPrompt(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = nudge.ShouldPrompt(ctx, "user-2")
	require.NoError(t, err)
	assert.False(t, ok)
}
