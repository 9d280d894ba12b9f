package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"

	"searchtrack/internal"
	"searchtrack/internal/config"
	"searchtrack/internal/storage"
	"searchtrack/internal/util"
)

// Pipeline ingests search tracking batches into a TableStore.
//
// Each run reads the stored ids once and appends once. Two pipelines sharing
// a store from different processes can both miss each other's ids and write
// duplicates; within one process LockStore serializes runs.
type Pipeline struct {
	store       storage.TableStore
	cfg         config.Config
	transformer *Transformer
	observer    Observer
	mu          sync.Mutex
}

type Option func(*Pipeline)

func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		if o != nil {
			p.observer = o
		}
	}
}

func WithTransformer(t *Transformer) Option {
	return func(p *Pipeline) {
		if t != nil {
			p.transformer = t
		}
	}
}

func New(store storage.TableStore, cfg config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:       store,
		cfg:         cfg,
		transformer: NewTransformer(util.NewDateNormalizer(cfg.DisplayZone), cfg.AnonEmailDomain),
		observer:    NopObserver{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) Config() config.Config { return p.cfg }

// Ingest appends every record whose id is not stored yet. The append is a
// single store call: on error nothing from this batch has been written.
func (p *Pipeline) Ingest(ctx context.Context, batch []internal.RawSearchRecord) (internal.ProcessingSummary, error) {
	p.lock()
	defer p.unlock()

	start := time.Now()
	if err := p.ensureHeader(ctx); err != nil {
		return internal.ProcessingSummary{}, err
	}
	if len(batch) == 0 {
		return internal.ProcessingSummary{}, nil
	}
	p.observer.BatchStarted(len(batch))

	existing, err := p.store.ReadAll(ctx)
	if err != nil {
		return internal.ProcessingSummary{}, storeErr("read", err)
	}
	part := PartitionCandidates(ExistingIDs(existing), batch)
	for _, id := range part.SkippedIDs {
		p.observer.RecordSkipped(id)
	}

	rows := make([]internal.NormalizedRow, 0, len(part.New))
	for _, rec := range part.New {
		rows = append(rows, p.transformer.Transform(rec))
	}
	if len(rows) > 0 {
		if err := p.store.AppendRows(ctx, rows); err != nil {
			return internal.ProcessingSummary{}, storeErr("append", err)
		}
	}

	summary := internal.ProcessingSummary{
		RecordsProcessed: len(rows),
		RecordsSkipped:   part.SkippedCount,
		TotalRecords:     len(batch),
	}
	p.observer.BatchFinished(summary, time.Since(start))
	return summary, nil
}

// InsertSingle stores one record unless its id is already present.
func (p *Pipeline) InsertSingle(ctx context.Context, rec internal.RawSearchRecord) (internal.SingleInsertResult, error) {
	p.lock()
	defer p.unlock()

	start := time.Now()
	if err := p.ensureHeader(ctx); err != nil {
		return internal.SingleInsertResult{}, err
	}

	row := p.transformer.Transform(rec)
	result := internal.SingleInsertResult{RecordID: row.ID, Action: internal.ActionInserted}

	existing, err := p.store.ReadAll(ctx)
	if err != nil {
		return internal.SingleInsertResult{}, storeErr("read", err)
	}
	if rec.ID.Valid {
		if _, dup := ExistingIDs(existing)[strings.TrimSpace(rec.ID.Value)]; dup {
			result.Action = internal.ActionSkippedDuplicate
			p.observer.RecordSkipped(row.ID)
			p.observer.SingleFinished(result, time.Since(start))
			return result, nil
		}
	}

	if err := p.store.AppendRow(ctx, row); err != nil {
		return internal.SingleInsertResult{}, storeErr("append", err)
	}
	p.observer.SingleFinished(result, time.Since(start))
	return result, nil
}

func (p *Pipeline) ensureHeader(ctx context.Context) error {
	n, err := p.store.RowCount(ctx)
	if err != nil {
		return storeErr("row count", err)
	}
	if n > 0 {
		return nil
	}
	return storeErr("write header", p.store.WriteHeader(ctx, internal.Header))
}

func (p *Pipeline) lock() {
	if p.cfg.LockStore {
		p.mu.Lock()
	}
}

func (p *Pipeline) unlock() {
	if p.cfg.LockStore {
		p.mu.Unlock()
	}
}
