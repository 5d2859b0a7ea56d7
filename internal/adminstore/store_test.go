package adminstore

import (
	"context"
	"errors"
	"testing"

	"github.com/faucetdb/api-maker/internal/apierr"
	"github.com/faucetdb/api-maker/internal/connection"
	"github.com/faucetdb/api-maker/internal/operation"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore("")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSettingsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetSetting(ctx, "instance_id"); err == nil {
		t.Error("expected an error for an unset key")
	}
	if err := s.SetSetting(ctx, "instance_id", "abc"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	if err := s.SetSetting(ctx, "instance_id", "def"); err != nil {
		t.Fatalf("SetSetting upsert: %v", err)
	}
	v, err := s.GetSetting(ctx, "instance_id")
	if err != nil || v != "def" {
		t.Errorf("GetSetting = %q, %v", v, err)
	}
}

func TestConnectionConfigCache(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cfg := connection.ConnectionConfig{
		Engine: "postgres", Host: "db", Port: 5432,
		DBName: "chinook", Username: "u", Password: "p",
	}
	if err := s.PutConnectionConfig(ctx, "chinook-secret", cfg); err != nil {
		t.Fatalf("PutConnectionConfig: %v", err)
	}
	got, err := s.GetConnectionConfig(ctx, "chinook-secret")
	if err != nil {
		t.Fatalf("GetConnectionConfig: %v", err)
	}
	if got != cfg {
		t.Errorf("config = %+v, want %+v", got, cfg)
	}
}

type failingResolver struct{}

func (failingResolver) Resolve(context.Context, string) (connection.ConnectionConfig, error) {
	return connection.ConnectionConfig{}, errors.New("secret store unreachable")
}

type okResolver struct {
	cfg connection.ConnectionConfig
}

func (r okResolver) Resolve(context.Context, string) (connection.ConnectionConfig, error) {
	return r.cfg, nil
}

func TestCachingResolverFallsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cfg := connection.ConnectionConfig{Engine: "mysql", Host: "db", Port: 3306, DBName: "app"}

	// First resolution succeeds and populates the cache.
	caching := CachingResolver{Store: s, Next: okResolver{cfg}}
	if _, err := caching.Resolve(ctx, "app-secret"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	// With the upstream down, the cached config is served.
	caching.Next = failingResolver{}
	got, err := caching.Resolve(ctx, "app-secret")
	if err != nil {
		t.Fatalf("Resolve fallback: %v", err)
	}
	if got != cfg {
		t.Errorf("config = %+v, want cached %+v", got, cfg)
	}

	// A name never resolved still fails.
	if _, err := caching.Resolve(ctx, "ghost"); err == nil {
		t.Error("expected an error for an uncached secret")
	}
}

type fakeExecutor struct {
	records []map[string]any
	err     error
}

func (f fakeExecutor) Execute(context.Context, operation.Operation) ([]map[string]any, error) {
	return f.records, f.err
}

func TestAuditingExecutor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	exec := AuditingExecutor{
		Store: s,
		Next:  fakeExecutor{records: []map[string]any{{"invoice_id": 5}}},
	}
	op := operation.Operation{
		Entity:      "invoice",
		Action:      operation.ActionRead,
		QueryParams: map[string]any{"invoice_id": 5, "billing_country": "Brazil"},
	}
	if _, err := exec.Execute(ctx, op); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	exec.Next = fakeExecutor{err: apierr.NoRecordsModified("update matched no rows on entity %q", "invoice")}
	op.Action = operation.ActionUpdate
	if _, err := exec.Execute(ctx, op); err == nil {
		t.Fatal("expected the wrapped error to pass through")
	}

	entries, err := s.RecentAudit(ctx, 10)
	if err != nil {
		t.Fatalf("RecentAudit: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Status != "no-records-modified" {
		t.Errorf("failed entry status = %q", entries[0].Status)
	}
	if entries[1].Status != "ok" || entries[1].RecordCount != 1 {
		t.Errorf("ok entry = %+v", entries[1])
	}
	if entries[1].ParamNames != "query.billing_country,query.invoice_id" {
		t.Errorf("param names = %q; values must never be recorded", entries[1].ParamNames)
	}
}

func TestAuditLog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, entry := range []AuditEntry{
		{Entity: "invoice", Action: "read", Status: "ok", RecordCount: 3, DurationMs: 1.2},
		{Entity: "invoice", Action: "update", Status: "concurrency-violation"},
	} {
		if err := s.AppendAudit(ctx, entry); err != nil {
			t.Fatalf("AppendAudit: %v", err)
		}
	}

	entries, err := s.RecentAudit(ctx, 10)
	if err != nil {
		t.Fatalf("RecentAudit: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Action != "update" || entries[1].Action != "read" {
		t.Errorf("order = %s, %s; want newest first", entries[0].Action, entries[1].Action)
	}
}
