package scheduler

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestDefaults(t *testing.T) {
	s := New()
	if s.Interval() != 5000*time.Millisecond {
		t.Errorf("Interval() = %v, want 5s", s.Interval())
	}
	if !s.Idle() {
		t.Error("new scheduler should be idle")
	}
	if _, ran := s.Step(context.Background()); ran {
		t.Error("Step on idle scheduler ran something")
	}
}

func TestWithIntervalIgnoresNonPositive(t *testing.T) {
	if got := New(WithInterval(-time.Second)).Interval(); got != DefaultInterval {
		t.Errorf("Interval() = %v, want default", got)
	}
	if got := New(WithInterval(time.Second)).Interval(); got != time.Second {
		t.Errorf("Interval() = %v, want 1s", got)
	}
}

func TestStepRunsHeadUntilDone(t *testing.T) {
	s := New()
	ctx := context.Background()

	calls := 0
	s.QueueState("a", func(context.Context) bool {
		calls++
		return calls == 3
	})
	s.QueueState("b", func(context.Context) bool { return true })

	for i := 0; i < 3; i++ {
		name, ran := s.Step(ctx)
		if !ran || name != "a" {
			t.Fatalf("step %d ran %q, want a", i, name)
		}
	}
	if name, _ := s.Current(); name != "b" {
		t.Fatalf("Current() = %q after a finished, want b", name)
	}
	if name, _ := s.Step(ctx); name != "b" {
		t.Fatalf("ran %q, want b", name)
	}
	if !s.Idle() {
		t.Error("queue should be empty")
	}
}

func TestStateQueuesFollowUp(t *testing.T) {
	s := New()
	ctx := context.Background()
	var order []string

	s.QueueState("init", func(context.Context) bool {
		order = append(order, "init")
		s.QueueState("organize", func(context.Context) bool {
			order = append(order, "organize")
			return false
		})
		return true
	})

	for range 3 {
		s.Step(ctx)
	}
	if want := []string{"init", "organize", "organize"}; !reflect.DeepEqual(order, want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
}

func TestClearInsideState(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.QueueState("reload", func(context.Context) bool {
		s.Clear()
		s.QueueState("init", func(context.Context) bool { return true })
		return true
	})
	s.QueueState("stale", func(context.Context) bool { return true })

	s.Step(ctx)
	if got, want := s.Pending(), []string{"init"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Pending() = %v, want %v", got, want)
	}
}

func TestClear(t *testing.T) {
	s := New()
	s.QueueState("a", func(context.Context) bool { return false })
	s.QueueState("b", func(context.Context) bool { return false })
	s.Clear()
	if !s.Idle() {
		t.Fatal("queue not empty after Clear")
	}
}

func TestQueueStateDelay(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	s := New(WithClock(clock))
	ctx := context.Background()

	ran := false
	s.QueueStateDelay("later", func(context.Context) bool { ran = true; return true }, 10*time.Second)

	if _, stepped := s.Step(ctx); stepped || ran {
		t.Fatal("delayed state ran early")
	}
	clock.Advance(10 * time.Second)
	if _, stepped := s.Step(ctx); !stepped || !ran {
		t.Fatal("delayed state did not run after delay")
	}
}

func TestConcurrentQueue(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.QueueState("x", func(context.Context) bool { return true })
		}()
	}
	wg.Wait()

	n := 0
	for !s.Idle() {
		s.Step(context.Background())
		n++
	}
	if n != 20 {
		t.Errorf("ran %d states, want 20", n)
	}
}
