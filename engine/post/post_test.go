package post

import (
	"sync"
	"testing"
)

func TestPost(t *testing.T) {
	var a int
	Post(func() {
		a = 1
	})
	Tick()
	if a != 1 {
		t.Errorf("a should be 1")
	}
}

func TestQueueNestedPost(t *testing.T) {
	q := NewQueue()
	var order []int
	q.Post(func() {
		order = append(order, 1)
		q.Post(func() {
			order = append(order, 3)
		})
	})
	q.Post(func() {
		order = append(order, 2)
	})
	q.Tick()
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("wrong order: %v", order)
	}
	if q.Len() != 0 {
		t.Errorf("queue should be drained")
	}
}

func TestQueueConcurrentPost(t *testing.T) {
	q := NewQueue()
	var wg sync.WaitGroup
	count := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Post(func() { count++ })
			}
		}()
	}
	wg.Wait()
	q.Tick()
	if count != 1000 {
		t.Errorf("count should be 1000, but is %d", count)
	}
}

func TestQueuePanicDoesNotStopTick(t *testing.T) {
	q := NewQueue()
	ran := false
	q.Post(func() { panic("boom") })
	q.Post(func() { ran = true })
	q.Tick()
	if !ran {
		t.Errorf("second callback should run")
	}
}
