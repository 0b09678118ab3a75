package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLocalSerializesSameKey(t *testing.T) {
	l := NewLocal()
	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "acme")
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Fatalf("expected exclusive access, saw %d holders", maxSeen)
	}
}

func TestLocalKeysAreIndependent(t *testing.T) {
	l := NewLocal()
	unlockA, err := l.Lock(context.Background(), "a")
	if err != nil {
		t.Fatal(err)
	}
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	unlockB, err := l.Lock(ctx, "b")
	if err != nil {
		t.Fatalf("lock on another key blocked: %v", err)
	}
	unlockB()
}

func TestLocalHonorsContext(t *testing.T) {
	l := NewLocal()
	unlock, _ := l.Lock(context.Background(), "acme")
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "acme"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestLocalUnlockIsIdempotent(t *testing.T) {
	l := NewLocal()
	unlock, _ := l.Lock(context.Background(), "acme")
	unlock()
	unlock()
	again, err := l.Lock(context.Background(), "acme")
	if err != nil {
		t.Fatal(err)
	}
	again()
}
