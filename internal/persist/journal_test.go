package persist

import (
	"context"
	"errors"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/linchutchinson/shackle-mmo/internal/config"
	"github.com/linchutchinson/shackle-mmo/internal/core/event"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSink struct {
	mu      sync.Mutex
	batches [][]JournalEntry
	flushed chan int
	gate    chan struct{}
	entered chan struct{}
	err     error
}

func newFakeSink() *fakeSink {
	return &fakeSink{flushed: make(chan int, 16)}
}

func (s *fakeSink) InsertBatch(_ context.Context, entries []JournalEntry) error {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.gate != nil {
		<-s.gate
	}
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	s.batches = append(s.batches, append([]JournalEntry(nil), entries...))
	s.mu.Unlock()
	s.flushed <- len(entries)
	return nil
}

func (s *fakeSink) all() []JournalEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []JournalEntry
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}

func waitFlush(t *testing.T, s *fakeSink) int {
	t.Helper()
	select {
	case n := <-s.flushed:
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a flush")
		return 0
	}
}

func testConfig(queue, batch int, interval time.Duration) config.DatabaseConfig {
	return config.DatabaseConfig{
		JournalQueueSize:     queue,
		JournalBatchSize:     batch,
		JournalFlushInterval: interval,
	}
}

func TestJournalFlushesFullBatches(t *testing.T) {
	sink := newFakeSink()
	j := NewJournal(sink, testConfig(16, 2, time.Hour), zap.NewNop())

	for _, name := range []string{"Alaric", "Yslith", "Tyrlia"} {
		if !j.Record(JournalEntry{Kind: KindJoin, Username: name}) {
			t.Fatalf("record %s dropped", name)
		}
	}
	if n := waitFlush(t, sink); n != 2 {
		t.Fatalf("first batch has %d entries, want 2", n)
	}

	j.Close()
	if n := waitFlush(t, sink); n != 1 {
		t.Fatalf("close flushed %d entries, want 1", n)
	}

	got := sink.all()
	if len(got) != 3 || got[2].Username != "Tyrlia" {
		t.Fatalf("entries out of order: %+v", got)
	}
	for _, e := range got {
		if e.RunID != j.RunID() || e.RunID == uuid.Nil {
			t.Fatalf("entry not stamped with the run id: %+v", e)
		}
		if e.At.IsZero() {
			t.Fatalf("entry not timestamped: %+v", e)
		}
	}
	if written, dropped := j.Stats(); written != 3 || dropped != 0 {
		t.Fatalf("stats written=%d dropped=%d", written, dropped)
	}
}

func TestJournalFlushesOnInterval(t *testing.T) {
	sink := newFakeSink()
	j := NewJournal(sink, testConfig(16, 64, 10*time.Millisecond), zap.NewNop())
	defer j.Close()

	j.Record(JournalEntry{Kind: KindChat, Username: "Alaric", Body: "hello"})
	if n := waitFlush(t, sink); n != 1 {
		t.Fatalf("interval flush had %d entries, want 1", n)
	}
}

func TestJournalKeepsExplicitTimestamp(t *testing.T) {
	sink := newFakeSink()
	j := NewJournal(sink, testConfig(4, 1, time.Hour), zap.NewNop())
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	j.Record(JournalEntry{Kind: KindLeave, Username: "Yslith", At: at})
	waitFlush(t, sink)
	j.Close()

	if got := sink.all()[0].At; !got.Equal(at) {
		t.Fatalf("At = %v, want %v", got, at)
	}
}

func TestJournalDropsWhenQueueFull(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	sink := newFakeSink()
	sink.gate = make(chan struct{})
	sink.entered = make(chan struct{}, 4)
	j := NewJournal(sink, testConfig(1, 1, time.Hour), zap.New(core))

	if !j.Record(JournalEntry{Kind: KindJoin, Username: "a"}) {
		t.Fatal("first record dropped")
	}
	// The writer is now stuck in the sink holding the first entry.
	<-sink.entered
	if !j.Record(JournalEntry{Kind: KindJoin, Username: "b"}) {
		t.Fatal("second record should fit in the queue")
	}
	if j.Record(JournalEntry{Kind: KindJoin, Username: "c"}) {
		t.Fatal("third record should be dropped")
	}
	if logs.FilterMessage("journal queue full, entry dropped").Len() != 1 {
		t.Fatal("expected a drop warning")
	}

	close(sink.gate)
	j.Close()
	if written, dropped := j.Stats(); written != 2 || dropped != 1 {
		t.Fatalf("stats written=%d dropped=%d", written, dropped)
	}
}

func TestJournalLogsSinkErrors(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	sink := newFakeSink()
	sink.err = errors.New("connection refused")
	j := NewJournal(sink, testConfig(4, 64, time.Hour), zap.New(core))

	j.Record(JournalEntry{Kind: KindJoin, Username: "Alaric"})
	j.Close()

	if logs.FilterMessage("journal flush failed").Len() != 1 {
		t.Fatal("expected the flush error to be logged")
	}
	if written, _ := j.Stats(); written != 0 {
		t.Fatalf("written = %d after a failed flush", written)
	}
}

func TestJournalAttachRecordsBusEvents(t *testing.T) {
	sink := newFakeSink()
	j := NewJournal(sink, testConfig(16, 64, time.Hour), zap.NewNop())

	bus := event.NewBus()
	j.Attach(bus)

	addr := netip.MustParseAddrPort("10.0.0.7:40000")
	event.Emit(bus, event.PlayerJoined{ID: 1, Name: "Alaric", Addr: addr})
	event.Emit(bus, event.ChatPosted{ID: 1, Author: "Alaric", Text: "anyone here?"})
	event.Emit(bus, event.PlayerLeft{ID: 1, Name: "Alaric", Addr: addr})
	bus.Swap()
	if n := bus.Dispatch(); n != 3 {
		t.Fatalf("dispatched %d, want 3", n)
	}
	j.Close()

	got := sink.all()
	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3", len(got))
	}
	want := []struct{ kind, body, addr string }{
		{KindJoin, "", "10.0.0.7:40000"},
		{KindChat, "anyone here?", ""},
		{KindLeave, "", "10.0.0.7:40000"},
	}
	for i, w := range want {
		e := got[i]
		if e.Kind != w.kind || e.Body != w.body || e.Addr != w.addr || e.Username != "Alaric" || e.NetworkID != 1 {
			t.Fatalf("entry %d = %+v", i, e)
		}
	}
}
