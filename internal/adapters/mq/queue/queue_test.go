package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/fraudwatch/internal/domain/model"
)

func job(row int) Job {
	return Job{Alert: model.Alert{RunID: "run", Row: row}}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if c := q.Capacity(); c != 2 {
		t.Errorf("expected capacity 2, got %d", c)
	}

	if err := q.Enqueue(ctx, job(1)); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	j := <-q.Dequeue(ctx)
	if j.Alert.Row != 1 {
		t.Errorf("expected row 1, got %d", j.Alert.Row)
	}
}

func TestInMemoryQueue_EnqueueBlocksWhenFull(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1))
	ctx := context.Background()

	if err := q.Enqueue(ctx, job(1)); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}

	// Full: a bounded wait gives up with the context error.
	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := q.Enqueue(short, job(2)); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	// Full: an unbounded wait proceeds once a consumer makes room.
	entered := make(chan struct{})
	res := make(chan error, 1)
	go func() {
		close(entered)
		res <- q.Enqueue(ctx, job(3))
	}()
	<-entered
	select {
	case err := <-res:
		t.Fatalf("enqueue should block while full, returned %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	jobs := q.Dequeue(ctx)
	if j := <-jobs; j.Alert.Row != 1 {
		t.Errorf("expected row 1 first, got %d", j.Alert.Row)
	}
	select {
	case err := <-res:
		if err != nil {
			t.Fatalf("expected blocked enqueue to succeed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked enqueue never completed")
	}
	if j := <-jobs; j.Alert.Row != 3 {
		t.Errorf("expected row 3, got %d", j.Alert.Row)
	}
}

func TestInMemoryQueue_CloseReleasesBlockedProducers(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1))
	ctx := context.Background()
	if err := q.Enqueue(ctx, job(1)); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}

	res := make(chan error, 1)
	go func() { res <- q.Enqueue(ctx, job(2)) }()
	time.Sleep(10 * time.Millisecond)

	if err := q.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	select {
	case err := <-res:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked producer was not released")
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(8))
	ctx := context.Background()
	producers, perProducer := 10, 100

	var consumed sync.Map
	var consumers sync.WaitGroup
	for i := 0; i < 4; i++ {
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			for j := range q.Dequeue(ctx) {
				consumed.Store(fmt.Sprintf("%s:%d", j.Alert.RunID, j.Alert.Row), true)
			}
		}()
	}

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for k := 0; k < perProducer; k++ {
				j := Job{Alert: model.Alert{RunID: fmt.Sprint(id), Row: k}}
				if err := q.Enqueue(ctx, j); err != nil {
					t.Errorf("enqueue failed: %v", err)
				}
			}
		}(p)
	}
	wg.Wait()
	_ = q.Close()
	consumers.Wait()

	n := 0
	consumed.Range(func(_, _ any) bool { n++; return true })
	if n != producers*perProducer {
		t.Errorf("expected %d consumed jobs, got %d", producers*perProducer, n)
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		if err := q.Enqueue(ctx, job(i)); err != nil {
			t.Fatalf("expected enqueue to succeed, got %v", err)
		}
	}
	if q.IsClosed() {
		t.Error("expected queue to be open initially")
	}

	if err := q.Close(); err != nil {
		t.Errorf("expected close to succeed, got error: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}
	if err := q.Enqueue(ctx, job(3)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after closing, got %v", err)
	}

	// Queued jobs survive Close and the channel closes once drained.
	var rows []int
	for j := range q.Dequeue(ctx) {
		rows = append(rows, j.Alert.Row)
	}
	if len(rows) != 2 {
		t.Errorf("expected 2 drained jobs, got %v", rows)
	}

	if err := q.Close(); err != nil {
		t.Errorf("expected second close to succeed, got error: %v", err)
	}
}

func TestJob_ReportDoesNotBlock(t *testing.T) {
	done := make(chan Result, 1)
	j := Job{Alert: model.Alert{Row: 4}, Done: done}
	j.Report(nil)
	j.Report(errors.New("second report is dropped"))

	r := <-done
	if r.Row != 4 || r.Err != nil {
		t.Errorf("unexpected result %+v", r)
	}
	Job{}.Report(nil)
}
