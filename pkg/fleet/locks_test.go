package fleet

import (
	"sync"
	"testing"
)

func TestRecordLocksSerialize(t *testing.T) {
	var locks recordLocks
	var mu sync.Mutex
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			locks.lock("srv-1")
			defer locks.unlock("srv-1")

			mu.Lock()
			counter++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("expected 50 increments, got %d", counter)
	}
}

func TestRecordLocksIndependentIDs(t *testing.T) {
	var locks recordLocks

	locks.lock("srv-1")
	// A different record must not block.
	done := make(chan struct{})
	go func() {
		locks.lock("srv-2")
		locks.unlock("srv-2")
		close(done)
	}()
	<-done
	locks.unlock("srv-1")
}

func TestForgetUnknownIsSafe(t *testing.T) {
	var locks recordLocks
	locks.forget("never-seen")
	locks.unlock("never-seen")
}
