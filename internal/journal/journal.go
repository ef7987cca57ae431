// Package journal persists the inbound event stream to Postgres for
// replay and audit. It is a passive registry consumer; losing the
// journal never stalls cache reconciliation.
package journal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/leadstack/leadsync/internal/event"
	"github.com/leadstack/leadsync/internal/registry"
)

// Config holds journal batching settings.
type Config struct {
	SessionID     string
	BatchSize     int
	FlushInterval time.Duration
	BufferSize    int
}

// Metrics counts journal activity.
type Metrics struct {
	Inserts   int64
	Conflicts int64
	Flushes   int64
	Errors    int64
}

// row is one journaled event.
type row struct {
	Type       string
	Timestamp  time.Time
	ReceivedAt time.Time
	Payload    []byte
}

// Journal batches events into the sync_events table.
type Journal struct {
	cfg    Config
	logger *slog.Logger

	input *spool
	db    *pgxpool.Pool

	batch       []row
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	unsub func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics Metrics
}

// New creates a journal writing to the given pool.
func New(cfg Config, db *pgxpool.Pool, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{
		cfg:    cfg,
		db:     db,
		logger: logger.With("component", "journal"),
		input:  newSpool(cfg.BufferSize),
		batch:  make([]row, 0, cfg.BatchSize),
	}
}

// Bind subscribes the journal to every event on the registry.
func (j *Journal) Bind(reg *registry.Registry) {
	j.unsub = reg.SubscribeAll(j.record)
}

// record spools one event. Called from the dispatch goroutine; must
// not block.
func (j *Journal) record(ev event.Envelope) {
	j.input.push(row{
		Type:       ev.Type,
		Timestamp:  ev.Timestamp,
		ReceivedAt: ev.ReceivedAt,
		Payload:    ev.Payload,
	})
}

// Start begins consuming spooled events and writing batches.
func (j *Journal) Start(ctx context.Context) error {
	j.ctx, j.cancel = context.WithCancel(ctx)
	j.flushTicker = time.NewTicker(j.cfg.FlushInterval)

	j.wg.Add(1)
	go j.consumeLoop()

	j.wg.Add(1)
	go j.flushLoop()

	j.logger.Info("journal started",
		"batch_size", j.cfg.BatchSize,
		"flush_interval", j.cfg.FlushInterval,
	)
	return nil
}

// Stop drains the spool and flushes the final batch.
func (j *Journal) Stop(ctx context.Context) error {
	if j.unsub != nil {
		j.unsub()
	}
	j.input.close()

	if j.cancel != nil {
		j.cancel()
	}
	if j.flushTicker != nil {
		j.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		j.logger.Warn("journal stop timed out")
	}

	// Whatever is still spooled goes into the final flush.
	for _, r := range j.input.drain(0) {
		j.batchMu.Lock()
		j.batch = append(j.batch, r)
		j.batchMu.Unlock()
	}
	j.flush(context.Background())

	j.logger.Info("journal stopped")
	return nil
}

// Stats returns current metrics.
func (j *Journal) Stats() Metrics {
	j.batchMu.Lock()
	defer j.batchMu.Unlock()
	return j.metrics
}

// consumeLoop moves rows from the spool into the batch.
func (j *Journal) consumeLoop() {
	defer j.wg.Done()

	for {
		select {
		case <-j.ctx.Done():
			return
		default:
			rows := j.input.drain(j.cfg.BatchSize)
			if len(rows) == 0 {
				select {
				case <-j.ctx.Done():
					return
				case <-time.After(10 * time.Millisecond):
					continue
				}
			}

			j.batchMu.Lock()
			j.batch = append(j.batch, rows...)
			shouldFlush := len(j.batch) >= j.cfg.BatchSize
			j.batchMu.Unlock()

			if shouldFlush {
				j.flush(j.ctx)
			}
		}
	}
}

// flushLoop periodically flushes the batch.
func (j *Journal) flushLoop() {
	defer j.wg.Done()

	for {
		select {
		case <-j.ctx.Done():
			return
		case <-j.flushTicker.C:
			j.flush(j.ctx)
		}
	}
}

// flush writes the current batch to the database.
func (j *Journal) flush(ctx context.Context) {
	j.batchMu.Lock()
	if len(j.batch) == 0 {
		j.batchMu.Unlock()
		return
	}
	batch := j.batch
	j.batch = make([]row, 0, j.cfg.BatchSize)
	j.batchMu.Unlock()

	start := time.Now()

	conflicts, err := j.batchInsert(ctx, batch)
	if err != nil {
		j.logger.Error("batch insert failed", "error", err, "count", len(batch))
		j.batchMu.Lock()
		j.metrics.Errors++
		j.batchMu.Unlock()
		return
	}

	j.batchMu.Lock()
	j.metrics.Inserts += int64(len(batch) - conflicts)
	j.metrics.Conflicts += int64(conflicts)
	j.metrics.Flushes++
	j.batchMu.Unlock()

	j.logger.Debug("flushed events",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert writes rows with pgx.Batch. The unique index on
// (session_id, event_type, event_ts, received_at) makes replayed
// deliveries conflict instead of duplicating.
func (j *Journal) batchInsert(ctx context.Context, rows []row) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO sync_events (session_id, event_type, event_ts, received_at, payload)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT DO NOTHING
		`, j.cfg.SessionID, r.Type, r.Timestamp, r.ReceivedAt, r.Payload)
	}

	results := j.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
