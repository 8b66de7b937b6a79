package bus

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTryPublishFull(t *testing.T) {
	q := NewQueue[int](2)

	if err := q.TryPublish(1); err != nil {
		t.Fatalf("publish 1: %v", err)
	}
	if err := q.TryPublish(2); err != nil {
		t.Fatalf("publish 2: %v", err)
	}
	if err := q.TryPublish(3); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("want ErrQueueFull, got %v", err)
	}
}

func TestTryPublishClosed(t *testing.T) {
	q := NewQueue[int](1)
	q.Close()
	if err := q.TryPublish(1); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("want ErrQueueClosed, got %v", err)
	}
	// Close is idempotent.
	q.Close()
}

func TestRunConsumesInOrder(t *testing.T) {
	q := NewQueue[int](8)
	for i := 1; i <= 3; i++ {
		if err := q.TryPublish(i); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	q.Close()

	var got []int
	done := make(chan struct{})
	go func() {
		defer close(done)
		q.Run(context.Background(), func(v int) {
			got = append(got, v)
		})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run did not drain a closed queue")
	}
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("consumed %v", got)
	}
}

func TestRunStopsOnContext(t *testing.T) {
	q := NewQueue[int](1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		q.Run(ctx, func(int) {})
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run did not stop on context cancel")
	}
}
