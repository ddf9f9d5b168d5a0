package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"tms.dev/internal/auth"
)

type memStore struct {
	entries []Entry
}

func (m *memStore) AppendAudit(_ context.Context, e Entry) error {
	m.entries = append(m.entries, e)
	return nil
}

func (m *memStore) ListAudit(_ context.Context, offset, limit int) ([]Entry, int, error) {
	sorted := append([]Entry(nil), m.entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.After(sorted[j].Timestamp) })
	if offset >= len(sorted) {
		return nil, len(sorted), nil
	}
	end := offset + limit
	if end > len(sorted) {
		end = len(sorted)
	}
	return sorted[offset:end], len(sorted), nil
}

func TestLogEvent(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(&logrus.JSONFormatter{})

	store := &memStore{}
	a := NewLogger(store, WithLogger(l))

	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-123")
	ctx = auth.ContextWithClaims(ctx, &auth.Claims{Subject: "user-42"})

	if err := a.LogEvent(ctx, "audit.test", map[string]any{"foo": "bar"}); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["type"] != "audit" {
		t.Fatalf("unexpected type: %v", entry["type"])
	}
	if entry["event"] != "audit.test" {
		t.Fatalf("unexpected event: %v", entry["event"])
	}
	if entry["request_id"] != "req-123" {
		t.Fatalf("unexpected request id: %v", entry["request_id"])
	}
	if entry["user_id"] != "user-42" {
		t.Fatalf("unexpected user id: %v", entry["user_id"])
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["foo"] != "bar" {
		t.Fatalf("fields missing or incorrect: %v", entry["fields"])
	}

	if len(store.entries) != 1 {
		t.Fatalf("expected one stored entry, got %d", len(store.entries))
	}
	stored := store.entries[0]
	if stored.ID == "" || stored.UserID != "user-42" || stored.RequestID != "req-123" {
		t.Fatalf("stored entry incomplete: %+v", stored)
	}
}

func TestLogEventRequiresName(t *testing.T) {
	a := NewLogger(nil)
	if err := a.LogEvent(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected error for empty event")
	}
}

func TestListPaginatesNewestFirst(t *testing.T) {
	store := &memStore{}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	quiet := logrus.New()
	quiet.SetOutput(&bytes.Buffer{})
	a := NewLogger(store, WithLogger(quiet), WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}))
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		if err := a.LogEvent(ctx, "task.created", map[string]any{"n": i}); err != nil {
			t.Fatalf("LogEvent: %v", err)
		}
	}

	page, err := a.List(ctx, 0, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Page != 1 || page.Limit != 10 || page.Total != 25 || page.TotalPages != 3 {
		t.Fatalf("unexpected page meta: %+v", page)
	}
	if len(page.Logs) != 10 || page.Logs[0].Fields["n"] != 24 {
		t.Fatalf("expected newest first, got %+v", page.Logs[0])
	}

	last, err := a.List(ctx, 3, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(last.Logs) != 5 || last.Logs[4].Fields["n"] != 0 {
		t.Fatalf("unexpected last page: %d entries", len(last.Logs))
	}

	beyond, err := a.List(ctx, 9, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if beyond.Logs == nil || len(beyond.Logs) != 0 {
		t.Fatalf("expected empty non-nil logs, got %v", beyond.Logs)
	}

	capped, err := a.List(ctx, 1, 1000)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if capped.Limit != MaxLimit || capped.TotalPages != 1 {
		t.Fatalf("unexpected capped page: %+v", capped)
	}
}
