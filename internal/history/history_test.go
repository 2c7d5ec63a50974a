package history

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/sydlexius/quarry/internal/database"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.OpenMigrated(context.Background(), database.MemoryPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

func TestRecord_AssignsID(t *testing.T) {
	s := setupTestStore(t)
	r := &Run{
		Endpoint:  "http://dbpedia.org/sparql",
		QueryHash: Fingerprint("SELECT * WHERE { ?s ?p ?o }"),
		Status:    StatusOK,
		RowCount:  3,
		Duration:  1500 * time.Millisecond,
	}
	if err := s.Record(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	if _, err := ulid.ParseStrict(r.ID); err != nil {
		t.Errorf("ID %q is not a ULID: %v", r.ID, err)
	}
	if r.StartedAt.IsZero() {
		t.Error("expected StartedAt to be set")
	}

	runs, err := s.List(context.Background(), Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("len(runs) = %d, want 1", len(runs))
	}
	got := runs[0]
	if got.ID != r.ID || got.RowCount != 3 || got.Duration != 1500*time.Millisecond {
		t.Errorf("got %+v", got)
	}
	if !got.StartedAt.Equal(r.StartedAt) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, r.StartedAt)
	}
}

func TestRecord_ValidationErrors(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	if err := s.Record(ctx, &Run{Status: StatusOK}); err == nil {
		t.Error("expected error for missing endpoint")
	}
	if err := s.Record(ctx, &Run{Endpoint: "http://x"}); err == nil {
		t.Error("expected error for missing status")
	}
}

func TestList_OrderAndFilter(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	hashA, hashB := Fingerprint("A"), Fingerprint("B")
	inputs := []Run{
		{Endpoint: "http://e", QueryHash: hashA, Status: StatusOK, StartedAt: base},
		{Endpoint: "http://e", QueryHash: hashB, Status: StatusHTTP, HTTPStatus: 500, StartedAt: base.Add(500 * time.Millisecond)},
		{Endpoint: "http://e", QueryHash: hashA, Status: StatusEmpty, StartedAt: base.Add(time.Second)},
	}
	for i := range inputs {
		if err := s.Record(ctx, &inputs[i]); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.List(ctx, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].Status != StatusEmpty || all[1].Status != StatusHTTP || all[2].Status != StatusOK {
		t.Fatalf("unexpected order: %+v", all)
	}

	limited, _ := s.List(ctx, Filter{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("Limit: got %d runs", len(limited))
	}

	byHash, _ := s.List(ctx, Filter{QueryHash: hashA})
	if len(byHash) != 2 {
		t.Errorf("QueryHash filter: got %d runs, want 2", len(byHash))
	}

	failed, _ := s.List(ctx, Filter{Status: StatusHTTP})
	if len(failed) != 1 || failed[0].HTTPStatus != 500 {
		t.Errorf("Status filter: got %+v", failed)
	}

	n, err := s.Prune(ctx, base.Add(750*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("pruned %d, want 2", n)
	}
}

func TestFingerprint(t *testing.T) {
	if Fingerprint("SELECT 1") != Fingerprint("SELECT 1") {
		t.Error("fingerprint is not stable")
	}
	if Fingerprint("SELECT 1") == Fingerprint("SELECT 2") {
		t.Error("different queries share a fingerprint")
	}
}

func TestWriteTable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	runs := []Run{{
		ID: "01HV", Endpoint: "http://dbpedia.org/sparql", QueryHash: "abc",
		Status: StatusHTTP, HTTPStatus: 502, Bytes: 2048, StartedAt: now.Add(-time.Hour),
	}}
	var buf bytes.Buffer
	WriteTable(&buf, runs, now)
	out := buf.String()
	for _, want := range []string{"http://dbpedia.org/sparql", "http_error (502)", "2.0 kB", "1 hour ago"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}
