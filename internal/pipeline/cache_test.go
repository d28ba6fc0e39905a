package pipeline

import (
	"sync"
	"testing"
)

func TestCachePutGetRoundTrip(t *testing.T) {
	c := NewMemoryCache()

	if _, ok := c.Get("unknown"); ok {
		t.Error("get for unknown session must report absent")
	}

	first := NewEvaluationState("s1")
	first.StrategicFit = DimensionResult{Score: 1.6}
	c.Put("s1", first)

	got, ok := c.Get("s1")
	if !ok {
		t.Fatal("get after put reported absent")
	}
	if got != first {
		t.Error("get must return the exact state written")
	}
}

func TestCacheSecondPutReplacesWholeState(t *testing.T) {
	c := NewMemoryCache()

	first := NewEvaluationState("s1")
	first.RedFlags = []RedFlag{{Flag: "old"}}
	c.Put("s1", first)

	second := NewEvaluationState("s1")
	second.StrategicFit = DimensionResult{Score: 0.9}
	c.Put("s1", second)

	got, _ := c.Get("s1")
	if got != second {
		t.Fatal("second put did not replace the entry")
	}
	if len(got.RedFlags) != 0 {
		t.Error("replacement must not merge fields across runs")
	}
}

func TestCacheSessionsAreIndependent(t *testing.T) {
	c := NewMemoryCache()
	c.Put("a", NewEvaluationState("a"))
	c.Put("b", NewEvaluationState("b"))

	got, _ := c.Get("a")
	if got.SessionID != "a" {
		t.Errorf("session a returned state for %q", got.SessionID)
	}
}

func TestLockSessionSerializesWriters(t *testing.T) {
	c := NewMemoryCache()

	inCritical := 0
	maxInCritical := 0
	var observe sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := c.LockSession("s1")
			defer unlock()

			observe.Lock()
			inCritical++
			if inCritical > maxInCritical {
				maxInCritical = inCritical
			}
			observe.Unlock()

			c.Put("s1", NewEvaluationState("s1"))

			observe.Lock()
			inCritical--
			observe.Unlock()
		}()
	}
	wg.Wait()

	if maxInCritical != 1 {
		t.Errorf("per-session lock admitted %d concurrent writers", maxInCritical)
	}
}

func TestLockSessionDistinctSessionsDoNotBlock(t *testing.T) {
	c := NewMemoryCache()
	unlockA := c.LockSession("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := c.LockSession("b")
		unlockB()
		close(done)
	}()
	<-done
}
