package persist

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/linchutchinson/shackle-mmo/internal/config"
	"github.com/linchutchinson/shackle-mmo/internal/core/event"
	"go.uber.org/zap"
)

// Journal entry kinds.
const (
	KindJoin  = "join"
	KindLeave = "leave"
	KindChat  = "chat"
)

// JournalEntry is one row of session_journal.
type JournalEntry struct {
	RunID     uuid.UUID
	Kind      string
	NetworkID uint64
	Username  string
	Addr      string
	Body      string
	At        time.Time
}

// Sink stores batches of journal entries.
type Sink interface {
	InsertBatch(ctx context.Context, entries []JournalEntry) error
}

type JournalRepo struct {
	db *DB
}

func NewJournalRepo(db *DB) *JournalRepo {
	return &JournalRepo{db: db}
}

// InsertBatch writes entries in a single transaction.
func (r *JournalRepo) InsertBatch(ctx context.Context, entries []JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("journal begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(
			`INSERT INTO session_journal (run_id, kind, network_id, username, addr, body, occurred_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			e.RunID, e.Kind, int64(e.NetworkID), e.Username, e.Addr, e.Body, e.At,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("journal insert: %w", err)
	}
	return tx.Commit(ctx)
}

// Journal buffers entries from the tick loop and writes them from a
// background goroutine. Record never blocks: when the queue is full the
// entry is dropped.
type Journal struct {
	sink     Sink
	runID    uuid.UUID
	queue    chan JournalEntry
	batch    int
	interval time.Duration
	now      func() time.Time
	log      *zap.Logger

	mu      sync.Mutex
	dropped uint64
	written uint64

	closeOnce sync.Once
	done      chan struct{}
}

func NewJournal(sink Sink, cfg config.DatabaseConfig, log *zap.Logger) *Journal {
	if cfg.JournalQueueSize <= 0 {
		cfg.JournalQueueSize = 1024
	}
	if cfg.JournalBatchSize <= 0 {
		cfg.JournalBatchSize = 64
	}
	if cfg.JournalFlushInterval <= 0 {
		cfg.JournalFlushInterval = 2 * time.Second
	}
	j := &Journal{
		sink:     sink,
		runID:    uuid.New(),
		queue:    make(chan JournalEntry, cfg.JournalQueueSize),
		batch:    cfg.JournalBatchSize,
		interval: cfg.JournalFlushInterval,
		now:      time.Now,
		log:      log,
		done:     make(chan struct{}),
	}
	go j.run()
	return j
}

// RunID identifies this server run in every row it writes.
func (j *Journal) RunID() uuid.UUID { return j.runID }

// Record stamps e with the run id (and the current time if unset) and
// queues it.
func (j *Journal) Record(e JournalEntry) bool {
	e.RunID = j.runID
	if e.At.IsZero() {
		e.At = j.now()
	}
	select {
	case j.queue <- e:
		return true
	default:
		j.mu.Lock()
		j.dropped++
		n := j.dropped
		j.mu.Unlock()
		j.log.Warn("journal queue full, entry dropped", zap.String("kind", e.Kind), zap.Uint64("dropped", n))
		return false
	}
}

// Attach records joins, leaves and chat lines delivered by bus.
func (j *Journal) Attach(bus *event.Bus) {
	event.Subscribe(bus, func(ev event.PlayerJoined) {
		j.Record(JournalEntry{Kind: KindJoin, NetworkID: uint64(ev.ID), Username: ev.Name, Addr: ev.Addr.String()})
	})
	event.Subscribe(bus, func(ev event.PlayerLeft) {
		j.Record(JournalEntry{Kind: KindLeave, NetworkID: uint64(ev.ID), Username: ev.Name, Addr: ev.Addr.String()})
	})
	event.Subscribe(bus, func(ev event.ChatPosted) {
		j.Record(JournalEntry{Kind: KindChat, NetworkID: uint64(ev.ID), Username: ev.Author, Body: ev.Text})
	})
}

func (j *Journal) run() {
	defer close(j.done)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	pending := make([]JournalEntry, 0, j.batch)
	for {
		select {
		case e, ok := <-j.queue:
			if !ok {
				j.flush(pending)
				return
			}
			pending = append(pending, e)
			if len(pending) >= j.batch {
				j.flush(pending)
				pending = make([]JournalEntry, 0, j.batch)
			}
		case <-ticker.C:
			if len(pending) > 0 {
				j.flush(pending)
				pending = make([]JournalEntry, 0, j.batch)
			}
		}
	}
}

func (j *Journal) flush(entries []JournalEntry) {
	if len(entries) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := j.sink.InsertBatch(ctx, entries); err != nil {
		j.log.Error("journal flush failed", zap.Int("entries", len(entries)), zap.Error(err))
		return
	}
	j.mu.Lock()
	j.written += uint64(len(entries))
	j.mu.Unlock()
	j.log.Debug("journal flushed", zap.Int("entries", len(entries)))
}

// Stats reports how many entries were written and dropped so far.
func (j *Journal) Stats() (written, dropped uint64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.written, j.dropped
}

// Close stops accepting entries and flushes what is queued. Record must not
// be called after Close.
func (j *Journal) Close() {
	j.closeOnce.Do(func() {
		close(j.queue)
	})
	<-j.done
}
