package testkit

import (
	"errors"
	"math/rand"
	"testing"
	"time"
)

func TestProbe(t *testing.T) {
	p := NewProbe(t, 1)
	_ = p.Chan()
	p.Observe(1)
	if got := p.Expect(50 * time.Millisecond); got.(int) != 1 {
		t.Fatalf("unexpected: %#v", got)
	}
	p.ExpectNone(10 * time.Millisecond)
	NewProbe(t, 0).ExpectNone(0)

	var failed int
	p.fail = func(string, ...any) { failed++ }
	if v := p.Expect(5 * time.Millisecond); v != nil || failed != 1 {
		t.Fatalf("expected timeout failure")
	}
	p.Observe(2)
	if v := p.Expect(0); v.(int) != 2 {
		t.Fatalf("expected 2")
	}
	p.Observe("x")
	p.ExpectNone(5 * time.Millisecond)
	if failed != 2 {
		t.Fatalf("expected unexpected-observation failure")
	}
}

func TestProbeExpectMatch(t *testing.T) {
	p := NewProbe(t, 4)
	p.Observe("noise")
	p.Observe(42)
	got := p.ExpectMatch(time.Second, func(v any) bool { _, ok := v.(int); return ok })
	if got.(int) != 42 {
		t.Fatalf("unexpected: %#v", got)
	}
}

func TestProbeFailureHandler(t *testing.T) {
	p := NewProbe(t, 1)
	reason := errors.New("boom")
	p.FailureHandler()("actor-1", reason)
	f := p.Expect(time.Second).(Failure)
	if f.ActorID != "actor-1" || !errors.Is(f.Reason, reason) {
		t.Fatalf("unexpected failure record: %#v", f)
	}
}

func TestFakeClock(t *testing.T) {
	c := NewFakeClock(time.Unix(0, 0))
	_ = c.Now()
	_ = NewFakeClock(time.Time{}).Now()
	if got := c.NowFunc()(); !got.Equal(time.Unix(0, 0)) {
		t.Fatalf("unexpected now: %v", got)
	}
	ch := c.After(10 * time.Second)
	c.Advance(9 * time.Second)
	select {
	case <-ch:
		t.Fatalf("should not fire")
	default:
	}
	c.Advance(2 * time.Second)
	select {
	case <-ch:
	default:
		t.Fatalf("should fire")
	}
}

func TestChaos(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	c := Chaos{DropRate: 1, MaxDelay: 0, Rand: r}
	called := false
	if ok := c.Run(func() { called = true }); ok || called {
		t.Fatalf("expected drop")
	}
	c = Chaos{DropRate: 0, MaxDelay: 50 * time.Microsecond, Rand: r}
	if ok := c.Run(func() { called = true }); !ok || !called {
		t.Fatalf("expected call")
	}
	c = Chaos{DropRate: 0, MaxDelay: 0, Rand: nil}
	if ok := c.Run(func() {}); !ok {
		t.Fatalf("expected ok")
	}
}
