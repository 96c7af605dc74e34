package store

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)

	tests := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}
	for _, tt := range tests {
		var got string
		if err := s.DB().QueryRow("PRAGMA " + tt.pragma).Scan(&got); err != nil {
			t.Fatalf("PRAGMA %s: %v", tt.pragma, err)
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	for i := range 2 {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("open #%d: %v", i+1, err)
		}
		if err := s.Close(); err != nil {
			t.Fatalf("close #%d: %v", i+1, err)
		}
	}
}

func TestLLMEvents_AppendQueryGet(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	events := []LLMRequestEventData{
		{RunID: "r1", Provider: "mock", Model: "m-small", Purpose: "generate:fill-blank", InputTokens: 100, OutputTokens: 40, LatencyMs: 200, Success: true, RequestBody: "[user]\nhi", ResponseBody: `{"questions":[]}`},
		{RunID: "r1", Provider: "mock", Model: "m-small", Purpose: "rate", InputTokens: 50, OutputTokens: 10, LatencyMs: 100, Success: true},
		{RunID: "r2", Provider: "mock", Model: "m-large", Purpose: "rate", LatencyMs: 300, Success: false, ErrorMessage: "down"},
	}
	for _, e := range events {
		if err := repo.AppendLLMRequest(ctx, e); err != nil {
			t.Fatalf("AppendLLMRequest: %v", err)
		}
	}

	all, err := repo.QueryLLMEvents(ctx, QueryOpts{})
	if err != nil {
		t.Fatalf("QueryLLMEvents: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 events, got %d", len(all))
	}
	if all[0].RunID != "r2" {
		t.Errorf("expected newest first, got run %q", all[0].RunID)
	}
	if all[0].Success || all[0].ErrorMessage != "down" {
		t.Errorf("failure not recorded: %+v", all[0])
	}

	limited, err := repo.QueryLLMEvents(ctx, QueryOpts{Limit: 1})
	if err != nil {
		t.Fatalf("limited query: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("Limit 1 returned %d events", len(limited))
	}

	byRun, err := repo.QueryLLMEvents(ctx, QueryOpts{RunID: "r1", Purpose: "rate"})
	if err != nil {
		t.Fatalf("filtered query: %v", err)
	}
	if len(byRun) != 1 || byRun[0].InputTokens != 50 {
		t.Errorf("run+purpose filter returned %+v", byRun)
	}

	after, err := repo.QueryLLMEvents(ctx, QueryOpts{After: all[1].ID})
	if err != nil {
		t.Fatalf("after query: %v", err)
	}
	if len(after) != 1 {
		t.Errorf("After filter returned %d events, want 1", len(after))
	}

	got, err := repo.GetLLMEvent(ctx, all[2].ID)
	if err != nil {
		t.Fatalf("GetLLMEvent: %v", err)
	}
	if got == nil {
		t.Fatal("expected event, got nil")
	}
	if got.RequestBody != "[user]\nhi" || got.ResponseBody != `{"questions":[]}` {
		t.Errorf("bodies not round-tripped: %q / %q", got.RequestBody, got.ResponseBody)
	}
	if d := time.Since(got.Timestamp); d < -time.Minute || d > time.Minute {
		t.Errorf("timestamp %v too far from now", got.Timestamp)
	}

	missing, err := repo.GetLLMEvent(ctx, 9999)
	if err != nil {
		t.Fatalf("GetLLMEvent missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing event, got %+v", missing)
	}
}

func TestLLMUsageAggregates(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	for _, e := range []LLMRequestEventData{
		{Provider: "mock", Model: "a", Purpose: "rate", InputTokens: 10, OutputTokens: 1, LatencyMs: 100, Success: true},
		{Provider: "mock", Model: "a", Purpose: "rate", InputTokens: 20, OutputTokens: 2, LatencyMs: 300, Success: true},
		{Provider: "mock", Model: "b", Purpose: "generate:true-false", InputTokens: 5, OutputTokens: 5, LatencyMs: 50, Success: true},
	} {
		if err := repo.AppendLLMRequest(ctx, e); err != nil {
			t.Fatalf("AppendLLMRequest: %v", err)
		}
	}

	byPurpose, err := repo.LLMUsageByPurpose(ctx)
	if err != nil {
		t.Fatalf("LLMUsageByPurpose: %v", err)
	}
	wantPurpose := []PurposeUsage{
		{Purpose: "generate:true-false", Calls: 1, InputTokens: 5, OutputTokens: 5, AvgLatencyMs: 50},
		{Purpose: "rate", Calls: 2, InputTokens: 30, OutputTokens: 3, AvgLatencyMs: 200},
	}
	if !reflect.DeepEqual(byPurpose, wantPurpose) {
		t.Errorf("usage by purpose = %+v, want %+v", byPurpose, wantPurpose)
	}

	byModel, err := repo.LLMUsageByModel(ctx)
	if err != nil {
		t.Fatalf("LLMUsageByModel: %v", err)
	}
	wantModel := []ModelUsage{
		{Model: "a", Calls: 2, InputTokens: 30, OutputTokens: 3},
		{Model: "b", Calls: 1, InputTokens: 5, OutputTokens: 5},
	}
	if !reflect.DeepEqual(byModel, wantModel) {
		t.Errorf("usage by model = %+v, want %+v", byModel, wantModel)
	}
}

func TestRuns_SaveAndList(t *testing.T) {
	s := openTestStore(t)
	repo := s.RunRepo()
	ctx := context.Background()

	base := time.Now().Truncate(time.Millisecond)
	if err := repo.SaveRun(ctx, RunSummary{
		ID: "old", StartedAt: base.Add(-time.Hour), FinishedAt: base.Add(-time.Hour + 2*time.Second),
		Types: []string{"fill-blank"}, Target: 1, Accepted: 1, Calls: 1, Scheduled: 5, Complete: true,
		PerType: map[string]int{"fill-blank": 1},
	}); err != nil {
		t.Fatalf("SaveRun old: %v", err)
	}
	if err := repo.SaveRun(ctx, RunSummary{
		ID: "new", StartedAt: base, FinishedAt: base.Add(time.Second),
		Types: []string{"fill-blank", "multiple-choice"}, Target: 3, Accepted: 2, Rejected: 4, Calls: 6, Failed: 1, Scheduled: 6,
	}); err != nil {
		t.Fatalf("SaveRun new: %v", err)
	}

	runs, err := repo.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}

	newest := runs[0]
	if newest.ID != "new" {
		t.Errorf("expected newest run first, got %q", newest.ID)
	}
	if !reflect.DeepEqual(newest.Types, []string{"fill-blank", "multiple-choice"}) {
		t.Errorf("types = %v", newest.Types)
	}
	if newest.Complete {
		t.Error("expected incomplete run")
	}
	if len(newest.PerType) != 0 {
		t.Errorf("expected empty per-type counts, got %v", newest.PerType)
	}
	if newest.Duration() != time.Second {
		t.Errorf("duration = %v, want 1s", newest.Duration())
	}

	if !runs[1].Complete {
		t.Error("expected complete run")
	}
	if !reflect.DeepEqual(runs[1].PerType, map[string]int{"fill-blank": 1}) {
		t.Errorf("per-type = %v", runs[1].PerType)
	}

	one, err := repo.ListRuns(ctx, 1)
	if err != nil {
		t.Fatalf("ListRuns limit: %v", err)
	}
	if len(one) != 1 {
		t.Errorf("limit 1 returned %d runs", len(one))
	}

	if err := repo.SaveRun(ctx, RunSummary{ID: "new"}); err == nil {
		t.Error("expected error saving a duplicate run ID")
	}
}

func TestDefaultDBPath(t *testing.T) {
	dir := t.TempDir()
	want := filepath.Join(dir, "sub", "x.db")
	t.Setenv("CODEQUIZ_DB", want)
	p, err := DefaultDBPath()
	if err != nil {
		t.Fatalf("DefaultDBPath: %v", err)
	}
	if p != want {
		t.Errorf("path = %q, want %q", p, want)
	}
	if fi, err := os.Stat(filepath.Join(dir, "sub")); err != nil || !fi.IsDir() {
		t.Errorf("expected parent directory to be created: %v", err)
	}

	t.Setenv("CODEQUIZ_DB", "")
	t.Setenv("XDG_DATA_HOME", dir)
	p, err = DefaultDBPath()
	if err != nil {
		t.Fatalf("DefaultDBPath: %v", err)
	}
	if want := filepath.Join(dir, "codequiz", "codequiz.db"); p != want {
		t.Errorf("path = %q, want %q", p, want)
	}
}
