package storage

import (
	"context"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestMigrateTwice(t *testing.T) {
	store := newTestStore(t)
	if err := store.Migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestAuditLogs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	entries := []AuditLog{
		{GuildID: "g1", UserID: "u1", Level: "WARN", Event: "anti_alt", Details: "action=kick", CreatedAt: now.Add(-time.Hour)},
		{GuildID: "g1", UserID: "u2", Level: "WARN", Event: "anti_alt", Details: "action=ban", CreatedAt: now},
		{GuildID: "g2", UserID: "u3", Level: "INFO", Event: "anti_alt_config", Details: "enabled=true", CreatedAt: now},
		{GuildID: "g1", UserID: "u4", Level: "WARN", Event: "anti_alt", Details: "action=kick", CreatedAt: now.AddDate(0, 0, -30)},
	}
	for _, entry := range entries {
		if err := store.AddAuditLog(ctx, entry); err != nil {
			t.Fatalf("add audit log: %v", err)
		}
	}

	logs, err := store.ListAuditLogs(ctx, "g1", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 logs, got %d", len(logs))
	}
	if logs[0].UserID != "u2" {
		t.Fatalf("expected newest first, got %s", logs[0].UserID)
	}

	if err := store.CleanupAuditLogs(ctx, 14); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	logs, err = store.ListAuditLogs(ctx, "g1", time.Unix(0, 0))
	if err != nil {
		t.Fatalf("list after cleanup: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected old log removed, got %d logs", len(logs))
	}
}

func TestRecordEnforcement(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	empty, err := store.GetEnforcement(ctx, "g1", "u1", "anti_alt")
	if err != nil {
		t.Fatalf("get empty: %v", err)
	}
	if empty.CountTotal != 0 {
		t.Fatalf("expected zero count, got %d", empty.CountTotal)
	}

	for want := 1; want <= 3; want++ {
		count, err := store.RecordEnforcement(ctx, "g1", "u1", "anti_alt", "kick", now)
		if err != nil {
			t.Fatalf("record: %v", err)
		}
		if count != want {
			t.Fatalf("expected %d, got %d", want, count)
		}
	}
	if _, err := store.RecordEnforcement(ctx, "g1", "u1", "anti_alt", "ban", now); err != nil {
		t.Fatalf("record ban: %v", err)
	}

	rec, err := store.GetEnforcement(ctx, "g1", "u1", "anti_alt")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.CountTotal != 4 || rec.LastAction != "ban" {
		t.Fatalf("unexpected record %+v", rec)
	}
}
