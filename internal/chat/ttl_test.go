package chat

import (
	"context"
	"testing"
	"time"

	"github.com/ashureev/handoff-chat/internal/store"
)

type idleUserRepo struct {
	store.Repository
	calls int
	idle  time.Duration
}

func (r *idleUserRepo) DeleteIdleUsers(_ context.Context, idle time.Duration) (int64, error) {
	r.calls++
	r.idle = idle
	return 2, nil
}

func TestSweepExpiredDropsConversationsAndUsers(t *testing.T) {
	t.Parallel()

	reg := NewRegistry("gpt-4o")
	reg.now = func() time.Time { return time.Now().Add(-3 * time.Hour) }
	reg.Acquire("u1", "tab-1")
	reg.now = time.Now

	repo := &idleUserRepo{}
	sweepExpired(context.Background(), reg, repo, time.Hour)

	if reg.Len() != 0 {
		t.Fatalf("expected idle conversation to be dropped, got %d", reg.Len())
	}
	if repo.calls != 1 || repo.idle != time.Hour {
		t.Fatalf("expected DeleteIdleUsers(1h) once, got %d calls with %v", repo.calls, repo.idle)
	}
}

func TestSweepExpiredWithoutRepo(t *testing.T) {
	t.Parallel()

	reg := NewRegistry("gpt-4o")
	reg.Acquire("u1", "tab-1")
	sweepExpired(context.Background(), reg, nil, time.Hour)
	if reg.Len() != 1 {
		t.Fatalf("fresh conversation must survive, got %d", reg.Len())
	}
}
