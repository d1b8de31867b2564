package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/handoff-chat/internal/domain"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestUserRoundTrip(t *testing.T) {
	t.Parallel()

	repo := newTestStore(t)
	ctx := context.Background()

	missing, err := repo.GetUser(ctx, "anon_missing")
	if err != nil || missing != nil {
		t.Fatalf("expected nil user without error, got %v, %v", missing, err)
	}

	now := time.Unix(1_700_000_000, 0)
	if err := repo.UpsertUser(ctx, &domain.User{
		UserID: "anon_1", Username: "anon-1", LastSeenAt: now, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("UpsertUser failed: %v", err)
	}

	later := now.Add(time.Hour)
	if err := repo.UpdateLastSeen(ctx, "anon_1", later); err != nil {
		t.Fatalf("UpdateLastSeen failed: %v", err)
	}

	user, err := repo.GetUser(ctx, "anon_1")
	if err != nil || user == nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if !user.LastSeenAt.Equal(later) {
		t.Fatalf("expected last seen %v, got %v", later, user.LastSeenAt)
	}
}

func TestDeleteIdleUsers(t *testing.T) {
	t.Parallel()

	repo := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for id, seen := range map[string]time.Time{
		"anon_old":   now.Add(-48 * time.Hour),
		"anon_fresh": now,
	} {
		if err := repo.UpsertUser(ctx, &domain.User{UserID: id, Username: id, LastSeenAt: seen, CreatedAt: seen, UpdatedAt: seen}); err != nil {
			t.Fatalf("UpsertUser failed: %v", err)
		}
	}

	deleted, err := repo.DeleteIdleUsers(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("DeleteIdleUsers failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted user, got %d", deleted)
	}
	if u, _ := repo.GetUser(ctx, "anon_fresh"); u == nil {
		t.Fatal("fresh user must survive")
	}
}

func TestEscalationLedger(t *testing.T) {
	t.Parallel()

	repo := newTestStore(t)
	ctx := context.Background()

	first := &domain.Escalation{
		UserID:    "anon_1",
		SessionID: "tab-1",
		Model:     "gpt-4o",
		Reason:    "user explicitly requested human agent",
		Transcript: []domain.Message{
			{Role: domain.RoleAssistant, Content: "Hello! How can I assist you today?"},
			{Role: domain.RoleUser, Content: "I want to speak to a human"},
			{Role: domain.RoleAssistant, Content: "ESCALATE: user explicitly requested human agent"},
		},
		CreatedAt: time.Unix(1_700_000_000, 0),
	}
	if err := repo.CreateEscalation(ctx, first); err != nil {
		t.Fatalf("CreateEscalation failed: %v", err)
	}
	if first.ID == "" {
		t.Fatal("expected generated ID")
	}

	second := &domain.Escalation{UserID: "anon_2", SessionID: "default", Model: "gpt-4", Reason: "distress", CreatedAt: time.Unix(1_700_000_100, 0)}
	if err := repo.CreateEscalation(ctx, second); err != nil {
		t.Fatalf("CreateEscalation failed: %v", err)
	}

	got, err := repo.GetEscalation(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetEscalation failed: %v", err)
	}
	if len(got.Transcript) != 3 || got.Transcript[2].Content != first.Transcript[2].Content {
		t.Fatalf("transcript not preserved: %+v", got.Transcript)
	}
	if !got.Pending() {
		t.Fatal("new escalation must be pending")
	}

	all, err := repo.ListEscalations(ctx, EscalationFilter{})
	if err != nil {
		t.Fatalf("ListEscalations failed: %v", err)
	}
	if len(all) != 2 || all[0].ID != second.ID {
		t.Fatalf("expected newest first, got %d entries", len(all))
	}

	if err := repo.AcknowledgeEscalation(ctx, first.ID, time.Unix(1_700_000_200, 0)); err != nil {
		t.Fatalf("AcknowledgeEscalation failed: %v", err)
	}
	if err := repo.AcknowledgeEscalation(ctx, first.ID, time.Now()); !errors.Is(err, ErrAlreadyAcknowledged) {
		t.Fatalf("expected ErrAlreadyAcknowledged, got %v", err)
	}
	if err := repo.AcknowledgeEscalation(ctx, "missing", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	pending, err := repo.ListEscalations(ctx, EscalationFilter{PendingOnly: true})
	if err != nil {
		t.Fatalf("ListEscalations failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != second.ID {
		t.Fatalf("expected only the second escalation pending, got %d", len(pending))
	}

	byUser, err := repo.ListEscalations(ctx, EscalationFilter{UserID: "anon_1", Limit: 10})
	if err != nil {
		t.Fatalf("ListEscalations failed: %v", err)
	}
	if len(byUser) != 1 || byUser[0].AcknowledgedAt == nil {
		t.Fatalf("expected one acknowledged entry for anon_1, got %+v", byUser)
	}

	if _, err := repo.GetEscalation(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
