package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	sterrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/oarkflow/errors"
	"github.com/oarkflow/log"
	"github.com/oarkflow/xid/wuid"

	"github.com/careflow/ingest/pkg/adapters/fileadapter"
	"github.com/careflow/ingest/pkg/config"
	"github.com/careflow/ingest/pkg/contracts"
	"github.com/careflow/ingest/pkg/ledger"
	"github.com/careflow/ingest/pkg/transformers"
	"github.com/careflow/ingest/pkg/utils"
)

// ErrStore marks store-connectivity failures. A cycle hitting one is aborted
// and the affected file stays un-ledgered, so the next cycle retries it.
var ErrStore = errors.New("document store unavailable")

// Metrics are cumulative counters over the controller's lifetime.
type Metrics struct {
	Cycles        int64 `json:"cycles"`
	FilesSkipped  int64 `json:"files_skipped"`
	FilesIngested int64 `json:"files_ingested"`
	RowsUpserted  int64 `json:"rows_upserted"`
	Errors        int64 `json:"errors"`
}

// Controller runs the ingestion state machine: discover files, gate them
// through the ledger by content hash, pipe rows through map/normalize/build,
// bulk-upsert the documents, and ledger the file. One file and one row at a
// time; the scheduler provides the cadence.
type Controller struct {
	cfg       config.Config
	loader    contracts.Loader
	ledger    ledger.Ledger
	mapper    contracts.Mapper
	logger    *log.Logger
	metrics   Metrics
	newSource func(path string) contracts.Source
	now       func() time.Time
}

func NewController(cfg config.Config, loader contracts.Loader, ldg ledger.Ledger, mapper contracts.Mapper) *Controller {
	return &Controller{
		cfg:    cfg,
		loader: loader,
		ledger: ldg,
		mapper: mapper,
		logger: &log.DefaultLogger,
		newSource: func(path string) contracts.Source {
			return fileadapter.New(path)
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Snapshot returns a copy of the current counters.
func (c *Controller) Snapshot() Metrics {
	return Metrics{
		Cycles:        atomic.LoadInt64(&c.metrics.Cycles),
		FilesSkipped:  atomic.LoadInt64(&c.metrics.FilesSkipped),
		FilesIngested: atomic.LoadInt64(&c.metrics.FilesIngested),
		RowsUpserted:  atomic.LoadInt64(&c.metrics.RowsUpserted),
		Errors:        atomic.LoadInt64(&c.metrics.Errors),
	}
}

// RunCycle performs one poll: a sorted directory scan, then per-file hash
// check and ingestion. File-level errors skip to the next file; store errors
// abort the cycle so everything unfinished is retried on the next tick.
func (c *Controller) RunCycle(ctx context.Context) {
	atomic.AddInt64(&c.metrics.Cycles, 1)
	runID := wuid.New().String()
	pattern := filepath.Join(c.cfg.DataDir, c.cfg.FilePattern)
	files, err := filepath.Glob(pattern)
	if err != nil {
		atomic.AddInt64(&c.metrics.Errors, 1)
		c.logger.Error().Str("pattern", pattern).Err(err).Msg("directory scan failed")
		return
	}
	sort.Strings(files)
	for _, path := range files {
		if ctx.Err() != nil {
			return
		}
		if err := c.processFile(ctx, runID, path); err != nil {
			atomic.AddInt64(&c.metrics.Errors, 1)
			if sterrors.Is(err, ErrStore) {
				c.logger.Error().Str("run_id", runID).Err(err).Msg("store error, aborting cycle")
				return
			}
			c.logger.Error().Str("run_id", runID).Str("file", path).Err(err).Msg("file error, continuing")
		}
	}
}

func (c *Controller) processFile(ctx context.Context, runID, path string) error {
	base := filepath.Base(path)
	sha, err := hashFile(path)
	if err != nil {
		return fmt.Errorf("hashing %s: %w", base, err)
	}
	processed, err := c.ledger.HasProcessed(ctx, base, sha)
	if err != nil {
		return fmt.Errorf("%w: ledger lookup for %s: %v", ErrStore, base, err)
	}
	if processed {
		atomic.AddInt64(&c.metrics.FilesSkipped, 1)
		return nil
	}

	c.logger.Info().Str("run_id", runID).Str("file", base).Msg("processing")
	src := c.newSource(path)
	if err := src.Setup(ctx); err != nil {
		return fmt.Errorf("opening %s: %w", base, err)
	}
	defer src.Close()
	rows, err := src.Extract(ctx)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", base, err)
	}

	builder := transformers.NewCanonicalBuilder(base)
	builder.Now = c.now
	var docs []utils.Record
	for row := range rows {
		mapped, err := c.mapper.Map(ctx, row)
		if err != nil {
			c.logger.Warn().Str("file", base).Err(err).Msg("skipping row on mapping failure")
			continue
		}
		doc, err := builder.Transform(ctx, mapped)
		if err != nil {
			c.logger.Warn().Str("file", base).Err(err).Msg("skipping row on build failure")
			continue
		}
		docs = append(docs, doc)
	}

	if len(docs) > 0 {
		if err := c.loader.StoreBatch(ctx, docs); err != nil {
			return fmt.Errorf("%w: upserting %s: %v", ErrStore, base, err)
		}
	}
	entry := ledger.Entry{File: base, SHA256: sha, Rows: len(docs), TS: c.now(), RunID: runID}
	if err := c.ledger.Record(ctx, entry); err != nil {
		return fmt.Errorf("%w: ledgering %s: %v", ErrStore, base, err)
	}
	atomic.AddInt64(&c.metrics.FilesIngested, 1)
	atomic.AddInt64(&c.metrics.RowsUpserted, int64(len(docs)))
	c.logger.Info().Str("run_id", runID).Str("file", base).Int("rows", len(docs)).Msg("done")
	return nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
