package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/xraph/gate"
)

// ---------------------------------------------------------------------------
// Manager basics
// ---------------------------------------------------------------------------

func TestEnter_IdleKeyAdmitsImmediately(t *testing.T) {
	m := NewManager()

	ok, err := m.Enter(context.Background(), "k", gate.SequentialConfig{})
	if err != nil || !ok {
		t.Fatalf("Enter on idle key = (%v, %v), want (true, nil)", ok, err)
	}
	m.Leave("k")
}

func TestEnter_WaitsForPredecessor(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	ok, _ := m.Enter(ctx, "k", gate.SequentialConfig{})
	if !ok {
		t.Fatal("first Enter should admit immediately")
	}

	admitted := make(chan struct{})
	go func() {
		ok, err := m.Enter(ctx, "k", gate.SequentialConfig{MaxPending: 4})
		if err != nil || !ok {
			t.Errorf("queued Enter = (%v, %v), want (true, nil)", ok, err)
		}
		close(admitted)
	}()

	// The second dispatch must wait until the first leaves.
	select {
	case <-admitted:
		t.Fatal("second Enter admitted while predecessor still running")
	case <-time.After(20 * time.Millisecond):
	}

	m.Leave("k")
	select {
	case <-admitted:
	case <-time.After(time.Second):
		t.Fatal("second Enter not admitted after predecessor left")
	}
	m.Leave("k")
}

func TestEnter_StrictArrivalOrder(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	ok, _ := m.Enter(ctx, "k", gate.SequentialConfig{})
	if !ok {
		t.Fatal("first Enter should admit immediately")
	}

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	queued := make(chan struct{}, 8)
	cfg := gate.SequentialConfig{
		MaxPending: 8,
		OnQueued:   func(gate.Key, int) { queued <- struct{}{} },
	}

	for i := 1; i <= 5; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if ok, _ := m.Enter(ctx, "k", cfg); !ok {
				t.Errorf("dispatch %d dropped unexpectedly", n)
				return
			}
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			m.Leave("k")
		}(i)
		// Wait for each dispatch to be enqueued before starting the
		// next, so arrival order is deterministic.
		<-queued
	}

	m.Leave("k")
	wg.Wait()

	for i, n := range order {
		if n != i+1 {
			t.Fatalf("execution order = %v, want strict arrival order", order)
		}
	}
}

func TestEnter_DifferentKeysAreIndependent(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	if ok, _ := m.Enter(ctx, "a", gate.SequentialConfig{}); !ok {
		t.Fatal("Enter(a) should admit")
	}
	if ok, _ := m.Enter(ctx, "b", gate.SequentialConfig{}); !ok {
		t.Fatal("Enter(b) should admit while a is running")
	}
	m.Leave("a")
	m.Leave("b")
}

// ---------------------------------------------------------------------------
// Bounded queue, drop policies
// ---------------------------------------------------------------------------

func TestEnter_DropNewestWhenFull(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	m.Enter(ctx, "k", gate.SequentialConfig{})

	queued := make(chan struct{}, 1)
	go m.Enter(ctx, "k", gate.SequentialConfig{MaxPending: 1, OnQueued: func(gate.Key, int) { queued <- struct{}{} }})
	<-queued

	var droppedKey gate.Key
	ok, err := m.Enter(ctx, "k", gate.SequentialConfig{
		MaxPending: 1,
		OnDropped:  func(k gate.Key) { droppedKey = k },
	})
	if err != nil {
		t.Fatalf("Enter returned error: %v", err)
	}
	if ok {
		t.Fatal("newest arrival should be refused when the queue is full")
	}
	if droppedKey != "k" {
		t.Fatalf("OnDropped key = %v, want k", droppedKey)
	}

	m.Leave("k")
	m.Leave("k")
}

func TestEnter_DropOldestWhenFull(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	m.Enter(ctx, "k", gate.SequentialConfig{})

	queued := make(chan struct{}, 1)
	firstDropped := make(chan struct{})
	go func() {
		ok, err := m.Enter(ctx, "k", gate.SequentialConfig{
			MaxPending: 1,
			DropOldest: true,
			OnQueued:   func(gate.Key, int) { queued <- struct{}{} },
			OnDropped:  func(gate.Key) { close(firstDropped) },
		})
		if ok || err != nil {
			t.Errorf("evicted Enter = (%v, %v), want (false, nil)", ok, err)
		}
	}()
	<-queued

	admitted := make(chan struct{})
	go func() {
		ok, err := m.Enter(ctx, "k", gate.SequentialConfig{MaxPending: 1, DropOldest: true})
		if !ok || err != nil {
			t.Errorf("newest Enter = (%v, %v), want (true, nil)", ok, err)
		}
		close(admitted)
	}()

	select {
	case <-firstDropped:
	case <-time.After(time.Second):
		t.Fatal("oldest waiter was not dropped")
	}

	m.Leave("k")
	select {
	case <-admitted:
	case <-time.After(time.Second):
		t.Fatal("newest waiter was not admitted after eviction")
	}
	m.Leave("k")
}

// ---------------------------------------------------------------------------
// Cancellation and reset
// ---------------------------------------------------------------------------

func TestEnter_ContextCancelledWhileWaiting(t *testing.T) {
	m := NewManager()

	m.Enter(context.Background(), "k", gate.SequentialConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	queued := make(chan struct{}, 1)
	result := make(chan error, 1)
	go func() {
		_, err := m.Enter(ctx, "k", gate.SequentialConfig{MaxPending: 4, OnQueued: func(gate.Key, int) { queued <- struct{}{} }})
		result <- err
	}()
	<-queued

	cancel()
	if err := <-result; err != context.Canceled {
		t.Fatalf("Enter after cancel = %v, want context.Canceled", err)
	}
	if got := m.Depth("k"); got != 0 {
		t.Fatalf("Depth = %d, want 0 after abandoned waiter removed", got)
	}

	// The running dispatch is unaffected.
	m.Leave("k")
	if ok, _ := m.Enter(context.Background(), "k", gate.SequentialConfig{}); !ok {
		t.Fatal("key should be idle again")
	}
	m.Leave("k")
}

func TestReset_DropsAllWaiters(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	m.Enter(ctx, "k", gate.SequentialConfig{})

	queued := make(chan struct{}, 1)
	result := make(chan bool, 1)
	go func() {
		ok, _ := m.Enter(ctx, "k", gate.SequentialConfig{MaxPending: 4, OnQueued: func(gate.Key, int) { queued <- struct{}{} }})
		result <- ok
	}()
	<-queued

	m.Reset()
	if ok := <-result; ok {
		t.Fatal("waiter should be dropped by Reset")
	}
	if ok, _ := m.Enter(ctx, "k", gate.SequentialConfig{}); !ok {
		t.Fatal("key should be idle after Reset")
	}
	m.Leave("k")
}

// ---------------------------------------------------------------------------
// Limiter
// ---------------------------------------------------------------------------

func TestLimiter_ZeroRateAlwaysAllows(t *testing.T) {
	l := NewLimiter()
	for i := 0; i < 100; i++ {
		if !l.Allow("k", 0, 0) {
			t.Fatal("zero rate should always allow")
		}
	}
}

func TestLimiter_BurstExhaustion(t *testing.T) {
	l := NewLimiter()

	// 1/s with burst 2: first two pass, third is rejected.
	if !l.Allow("k", 1, 2) {
		t.Fatal("first Allow should pass")
	}
	if !l.Allow("k", 1, 2) {
		t.Fatal("second Allow should pass")
	}
	if l.Allow("k", 1, 2) {
		t.Fatal("third Allow should be rejected")
	}
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l := NewLimiter()

	if !l.Allow("a", 1, 1) {
		t.Fatal("Allow(a) should pass")
	}
	if !l.Allow("b", 1, 1) {
		t.Fatal("Allow(b) should pass despite a's bucket being empty")
	}
}

func TestLimiter_ResetRefills(t *testing.T) {
	l := NewLimiter()

	l.Allow("k", 1, 1)
	if l.Allow("k", 1, 1) {
		t.Fatal("bucket should be empty")
	}
	l.Reset()
	if !l.Allow("k", 1, 1) {
		t.Fatal("bucket should be full again after Reset")
	}
}
