package ledger

import (
	"context"
	"time"
)

// Entry records one fully processed input file. Entries are append-only and
// never updated or deleted; the (File, SHA256) pair is the replay-protection
// key, so identical content under a new name is still skipped.
type Entry struct {
	File   string    `json:"file" bson:"file"`
	SHA256 string    `json:"sha256" bson:"sha256"`
	Rows   int       `json:"rows" bson:"rows"`
	TS     time.Time `json:"ts" bson:"ts"`
	RunID  string    `json:"run_id,omitempty" bson:"run_id,omitempty"`
}

// Ledger is the idempotency gate for file ingestion.
type Ledger interface {
	HasProcessed(ctx context.Context, file, sha256 string) (bool, error)
	Record(ctx context.Context, entry Entry) error
}

func key(file, sha256 string) string {
	return file + "|" + sha256
}
