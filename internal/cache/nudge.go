package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// FeedbackNudge tracks per-user activity counters used to decide when to show
// the feedback prompt: after enough sessions and edits, and never during the
// cooldown that follows a prompt.
type FeedbackNudge struct {
	cache Cache

	cooldown    time.Duration
	minSessions int
	minEdits    int
	counterTTL  time.Duration
}

// NewFeedbackNudge creates the nudge tracker
func NewFeedbackNudge(cache Cache, cooldown time.Duration, minSessions, minEdits int) *FeedbackNudge {
	return &FeedbackNudge{
		cache:       cache,
		cooldown:    cooldown,
		minSessions: minSessions,
		minEdits:    minEdits,
		counterTTL:  90 * 24 * time.Hour,
	}
}

func nudgeKey(userID, counter string) string {
	return fmt.Sprintf("nudge:%s:%s", userID, counter)
}

// RecordSession bumps the user's session counter
func (n *FeedbackNudge) RecordSession(ctx context.Context, userID string) error {
	return n.increment(ctx, nudgeKey(userID, "sessions"))
}

// RecordEdit bumps the user's edit counter
func (n *FeedbackNudge) RecordEdit(ctx context.Context, userID string) error {
	return n.increment(ctx, nudgeKey(userID, "edits"))
}

// Counters returns the current session and edit counts
func (n *FeedbackNudge) Counters(ctx context.Context, userID string) (sessions, edits int, err error) {
	sessions, err = n.read(ctx, nudgeKey(userID, "sessions"))
	if err != nil {
		return 0, 0, err
	}
	edits, err = n.read(ctx, nudgeKey(userID, "edits"))
	if err != nil {
		return 0, 0, err
	}
	return sessions, edits, nil
}

// ShouldPrompt reports whether the thresholds are met and no cooldown is active
func (n *FeedbackNudge) ShouldPrompt(ctx context.Context, userID string) (bool, error) {
	cooling, err := n.cache.Get(ctx, nudgeKey(userID, "cooldown"))
	if err != nil {
		return false, err
	}
	if cooling != "" {
		return false, nil
	}

	sessions, edits, err := n.Counters(ctx, userID)
	if err != nil {
		return false, err
	}

	return sessions >= n.minSessions && edits >= n.minEdits, nil
}

// Prompted resets the counters and arms the cooldown
func (n *FeedbackNudge) Prompted(ctx context.Context, userID string) error {
	if err := n.cache.Delete(ctx, nudgeKey(userID, "sessions")); err != nil {
		return err
	}
	if err := n.cache.Delete(ctx, nudgeKey(userID, "edits")); err != nil {
		return err
	}
	return n.cache.Set(ctx, nudgeKey(userID, "cooldown"), "1", n.cooldown)
}

func (n *FeedbackNudge) increment(ctx context.Context, key string) error {
	count, err := n.read(ctx, key)
	if err != nil {
		return err
	}
	return n.cache.Set(ctx, key, strconv.Itoa(count+1), n.counterTTL)
}

func (n *FeedbackNudge) read(ctx context.Context, key string) (int, error) {
	raw, err := n.cache.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return 0, nil
	}
	count, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("corrupt counter %s: %w", key, err)
	}
	return count, nil
}
