package queue

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/example/tourdesk/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openQueueTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	// One connection so the in-memory database is shared and concurrent
	// transactions serialize instead of hitting SQLITE_BUSY.
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := gdb.AutoMigrate(&models.TourQueueEntry{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return gdb
}

func TestGormQueue_EnqueueRequiresTourID(t *testing.T) {
	q := NewGormQueue(openQueueTestDB(t))
	if err := q.Enqueue(context.Background(), "", 100); err == nil {
		t.Fatal("expected error for empty tourID")
	}
}

func TestGormQueue_EnqueueIdempotent(t *testing.T) {
	ctx := context.Background()
	q := NewGormQueue(openQueueTestDB(t))

	if err := q.Enqueue(ctx, "tour-a", 100); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if err := q.Enqueue(ctx, "tour-a", 100); err != nil {
		t.Fatalf("duplicate enqueue: %v", err)
	}

	entries, err := q.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if entries[0].TourID != "tour-a" {
		t.Errorf("TourID = %q, want tour-a", entries[0].TourID)
	}
}

func TestGormQueue_PriorityOrdering(t *testing.T) {
	ctx := context.Background()
	q := NewGormQueue(openQueueTestDB(t))

	// Enqueue out of order; pop must return earliest departure first.
	for _, e := range []struct {
		id       string
		priority int64
	}{
		{"tour-t2", 200},
		{"tour-t3", 300},
		{"tour-t1", 100},
	} {
		if err := q.Enqueue(ctx, e.id, e.priority); err != nil {
			t.Fatalf("enqueue %s: %v", e.id, err)
		}
	}

	want := []string{"tour-t1", "tour-t2", "tour-t3"}
	for i, wantID := range want {
		entry, err := q.PopTop(ctx)
		if err != nil {
			t.Fatalf("pop %d: %v", i, err)
		}
		if entry.TourID != wantID {
			t.Errorf("pop %d = %q, want %q", i, entry.TourID, wantID)
		}
	}

	if _, err := q.PopTop(ctx); !errors.Is(err, ErrEmptyQueue) {
		t.Errorf("pop on empty = %v, want ErrEmptyQueue", err)
	}
}

func TestGormQueue_EqualPriorityFIFO(t *testing.T) {
	ctx := context.Background()
	q := NewGormQueue(openQueueTestDB(t))

	for _, id := range []string{"tour-first", "tour-second"} {
		if err := q.Enqueue(ctx, id, 500); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}

	entry, err := q.PopTop(ctx)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if entry.TourID != "tour-first" {
		t.Errorf("first pop = %q, want tour-first", entry.TourID)
	}
}

func TestGormQueue_PeekDoesNotClaim(t *testing.T) {
	ctx := context.Background()
	q := NewGormQueue(openQueueTestDB(t))

	if _, err := q.PeekTop(ctx); !errors.Is(err, ErrEmptyQueue) {
		t.Fatalf("peek on empty = %v, want ErrEmptyQueue", err)
	}

	if err := q.Enqueue(ctx, "tour-a", 100); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	for i := 0; i < 3; i++ {
		entry, err := q.PeekTop(ctx)
		if err != nil {
			t.Fatalf("peek %d: %v", i, err)
		}
		if entry.TourID != "tour-a" {
			t.Errorf("peek %d = %q, want tour-a", i, entry.TourID)
		}
		if entry.Status != models.QueueStatusWaiting {
			t.Errorf("peek %d status = %q, want waiting", i, entry.Status)
		}
	}
}

func TestGormQueue_PopAtMostOneClaimant(t *testing.T) {
	ctx := context.Background()
	q := NewGormQueue(openQueueTestDB(t))

	if err := q.Enqueue(ctx, "tour-only", 100); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	const callers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		claimed []string
		empty   int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entry, err := q.PopTop(ctx)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				claimed = append(claimed, entry.TourID)
			case errors.Is(err, ErrEmptyQueue):
				empty++
			default:
				t.Errorf("pop: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(claimed) != 1 {
		t.Fatalf("claimed %d times, want exactly 1", len(claimed))
	}
	if empty != callers-1 {
		t.Errorf("empty results = %d, want %d", empty, callers-1)
	}
}

func TestGormQueue_ListAllFilters(t *testing.T) {
	ctx := context.Background()
	q := NewGormQueue(openQueueTestDB(t))

	for _, e := range []struct {
		id       string
		priority int64
	}{
		{"tour-a", 100},
		{"tour-b", 200},
	} {
		if err := q.Enqueue(ctx, e.id, e.priority); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	if _, err := q.PopTop(ctx); err != nil {
		t.Fatalf("pop: %v", err)
	}

	waiting, err := q.ListAll(ctx, models.QueueStatusWaiting)
	if err != nil {
		t.Fatalf("list waiting: %v", err)
	}
	if len(waiting) != 1 || waiting[0].TourID != "tour-b" {
		t.Errorf("waiting = %+v, want only tour-b", waiting)
	}

	claimed, err := q.ListAll(ctx, models.QueueStatusClaimed)
	if err != nil {
		t.Fatalf("list claimed: %v", err)
	}
	if len(claimed) != 1 || claimed[0].TourID != "tour-a" {
		t.Errorf("claimed = %+v, want only tour-a", claimed)
	}

	all, err := q.ListAll(ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("len(all) = %d, want 2", len(all))
	}
	if all[0].Priority > all[1].Priority {
		t.Errorf("list not priority ordered: %+v", all)
	}
}

func TestGormQueue_RemoveAbsentIsNoOp(t *testing.T) {
	ctx := context.Background()
	q := NewGormQueue(openQueueTestDB(t))

	if err := q.Remove(ctx, "tour-missing"); err != nil {
		t.Fatalf("remove absent: %v", err)
	}

	if err := q.Enqueue(ctx, "tour-a", 100); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Remove(ctx, "tour-a"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := q.PeekTop(ctx); !errors.Is(err, ErrEmptyQueue) {
		t.Errorf("peek after remove = %v, want ErrEmptyQueue", err)
	}
}
