package service

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncerCoalesces(t *testing.T) {
	d := newDebouncer(30 * time.Millisecond)

	var fired int32
	for i := 0; i < 5; i++ {
		d.Schedule("doc", func() { atomic.AddInt32(&fired, 1) })
	}

	time.Sleep(120 * time.Millisecond)
	if n := atomic.LoadInt32(&fired); n != 1 {
		t.Errorf("expected one firing after rescheduling, got %d", n)
	}
	if d.PendingCount() != 0 {
		t.Errorf("expected empty task table, got %d", d.PendingCount())
	}
}

func TestDebouncerIndependentKeys(t *testing.T) {
	d := newDebouncer(20 * time.Millisecond)

	var fired int32
	d.Schedule("a", func() { atomic.AddInt32(&fired, 1) })
	d.Schedule("b", func() { atomic.AddInt32(&fired, 1) })

	time.Sleep(100 * time.Millisecond)
	if n := atomic.LoadInt32(&fired); n != 2 {
		t.Errorf("expected both keys to fire, got %d", n)
	}
}

func TestDebouncerCancel(t *testing.T) {
	d := newDebouncer(20 * time.Millisecond)

	var fired int32
	d.Schedule("doc", func() { atomic.AddInt32(&fired, 1) })
	d.Cancel("doc")

	time.Sleep(100 * time.Millisecond)
	if n := atomic.LoadInt32(&fired); n != 0 {
		t.Errorf("cancelled task must not fire, got %d firings", n)
	}
	if d.PendingCount() != 0 {
		t.Errorf("expected empty task table, got %d", d.PendingCount())
	}
}
