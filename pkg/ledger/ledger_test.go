package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestFileLedgerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	fl, err := NewFileLedger(path)
	if err != nil {
		t.Fatalf("open error: %v", err)
	}
	ctx := context.Background()

	ok, err := fl.HasProcessed(ctx, "a.csv", "abc")
	if err != nil || ok {
		t.Fatalf("expected unseen file, got %v, %v", ok, err)
	}

	entry := Entry{File: "a.csv", SHA256: "abc", Rows: 3, TS: time.Now().UTC()}
	if err := fl.Record(ctx, entry); err != nil {
		t.Fatalf("record error: %v", err)
	}
	ok, err = fl.HasProcessed(ctx, "a.csv", "abc")
	if err != nil || !ok {
		t.Fatalf("expected processed file, got %v, %v", ok, err)
	}

	// Same content under a new name is a different ledger fact.
	ok, _ = fl.HasProcessed(ctx, "b.csv", "abc")
	if ok {
		t.Fatal("expected rename to count as a distinct (file, hash) pair")
	}
}

func TestFileLedgerSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	ctx := context.Background()
	fl, err := NewFileLedger(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := fl.Record(ctx, Entry{File: "a.csv", SHA256: "abc", Rows: 1, TS: time.Now().UTC()}); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewFileLedger(path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	ok, err := reopened.HasProcessed(ctx, "a.csv", "abc")
	if err != nil || !ok {
		t.Fatalf("expected ledger fact to survive reopen, got %v, %v", ok, err)
	}
}

func TestCachedLedgerFallsThroughOnMiss(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	inner, err := NewFileLedger(path)
	if err != nil {
		t.Fatal(err)
	}
	cl, err := NewCachedLedger(inner, 1024)
	if err != nil {
		t.Fatalf("cache error: %v", err)
	}
	ctx := context.Background()

	ok, err := cl.HasProcessed(ctx, "a.csv", "abc")
	if err != nil || ok {
		t.Fatalf("expected miss, got %v, %v", ok, err)
	}
	if err := cl.Record(ctx, Entry{File: "a.csv", SHA256: "abc", Rows: 2, TS: time.Now().UTC()}); err != nil {
		t.Fatal(err)
	}
	ok, err = cl.HasProcessed(ctx, "a.csv", "abc")
	if err != nil || !ok {
		t.Fatalf("expected hit after record, got %v, %v", ok, err)
	}

	// Entries recorded behind the cache's back are still found via the inner
	// ledger.
	if err := inner.Record(ctx, Entry{File: "b.csv", SHA256: "def", Rows: 1, TS: time.Now().UTC()}); err != nil {
		t.Fatal(err)
	}
	ok, err = cl.HasProcessed(ctx, "b.csv", "def")
	if err != nil || !ok {
		t.Fatalf("expected fall-through hit, got %v, %v", ok, err)
	}
}
