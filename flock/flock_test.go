package flock_test

import (
	"context"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmscott/blobio/flock"
)

func TestLock(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "blobiod.pid")
	lock := flock.New(lockPath)

	// Uncontended lock/unlock cycles.
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := lock.Lock(ctx); err != nil {
			t.Fatal(err)
		}
		if err := lock.Unlock(); err != nil {
			t.Fatal(err)
		}
	}

	if err := lock.Lock(ctx); err != nil {
		t.Fatal(err)
	}
	locked := int64(0)
	doneCh := make(chan struct{})
	go func() {
		if err := lock.Lock(ctx); err != nil {
			t.Error(err)
		}
		atomic.StoreInt64(&locked, 1)
		if err := lock.Unlock(); err != nil {
			t.Error(err)
		}
		atomic.StoreInt64(&locked, 2)
		doneCh <- struct{}{}
	}()

	time.Sleep(500 * time.Millisecond)
	if atomic.LoadInt64(&locked) != 0 {
		t.Errorf("contended lock acquired while held: locked=%d", locked)
	}

	if err := lock.Unlock(); err != nil {
		t.Fatal(err)
	}
	<-doneCh
	if atomic.LoadInt64(&locked) != 2 {
		t.Errorf("locked=%d", locked)
	}
}

func TestLockContext(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "blobiod.pid")
	lock := flock.New(lockPath)
	ctx := context.Background()
	ctx2, cancel2 := context.WithCancel(ctx)
	if err := lock.Lock(ctx2); err != nil {
		t.Fatal(err)
	}
	if err := lock.Unlock(); err != nil {
		t.Fatal(err)
	}

	if err := lock.Lock(ctx); err != nil {
		t.Fatal(err)
	}
	go func() {
		time.Sleep(500 * time.Millisecond)
		cancel2()
	}()
	err := lock.Lock(ctx2)
	if err == nil || !strings.Contains(err.Error(), "context canceled") {
		t.Fatalf("contended lock under canceled context: %v", err)
	}

	if err := lock.Unlock(); err != nil {
		t.Fatal(err)
	}
	// The lock must still be usable after the canceled attempt.
	if err := lock.Lock(ctx); err != nil {
		t.Fatal(err)
	}
	if err := lock.Unlock(); err != nil {
		t.Fatal(err)
	}
}
