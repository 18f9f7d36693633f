package safego

import (
	"sync"
	"testing"
	"time"
)

func waitOrFail(t *testing.T, wg *sync.WaitGroup, msg string) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error(msg)
	}
}

func TestGo_RunsFunction(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)

	Go("partition_maintainer", func() {
		defer wg.Done()
	})

	waitOrFail(t, &wg, "goroutine did not complete within timeout")
}

func TestGo_RecoversPanic(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)

	// The panic must be recovered or the test binary crashes.
	Go("retention_purger", func() {
		defer wg.Done()
		panic("intentional panic in test")
	})

	waitOrFail(t, &wg, "goroutine did not complete within timeout after panic")
}

func TestGo_OtherTasksKeepRunning(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(2)

	Go("panics", func() {
		defer wg.Done()
		panic("boom")
	})
	Go("survives", func() {
		defer wg.Done()
		time.Sleep(10 * time.Millisecond)
	})

	waitOrFail(t, &wg, "sibling task did not finish after a panic")
}
