// Package writequeue implements the per-resource FIFO that serializes
// buffered writes and cross-provider byte pipes against the same canonical
// key, guaranteeing at-most-one outstanding mutating operation per
// resource at a time.
package writequeue

import "sync"

// Task is a unit of work submitted against a canonical key. It runs on its
// own queue's single consumer goroutine once every task submitted ahead of
// it for the same key has finished, and never concurrently with another
// task for that key.
type Task func()

// entry is one canonical key's FIFO: a pending-task slice guarded by its
// own mutex/condvar, and a count of tasks not yet completed (queued or
// running) that the table uses to know when the entry may self-delete.
type entry struct {
	mu      sync.Mutex
	cond    *sync.Cond
	q       []Task
	pending int
}

func newEntry() *entry {
	e := &entry{}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Table maps canonical key to its entry, and self-cleans entries whose
// queue has fully drained so a long-lived service doesn't accumulate one
// goroutine per resource ever touched.
type Table struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New constructs an empty Table.
func New() *Table {
	return &Table{entries: make(map[string]*entry)}
}

// Submit enqueues fn against key in FIFO order relative to every other
// Submit on the same key, and blocks until fn has run and returned.
//
// The lookup-or-create of the entry and the append of this task to its
// queue happen in one critical section under t.mu, the same lock run uses
// to guard its drain-and-delete decision. Without that, a task could be
// appended to an entry the consumer goroutine had already decided to
// delete (because the entry looked empty a moment earlier), orphaning the
// task and deadlocking this call on <-done forever.
func (t *Table) Submit(key string, fn Task) {
	t.mu.Lock()
	e, ok := t.entries[key]
	if !ok {
		e = newEntry()
		t.entries[key] = e
	}

	done := make(chan struct{})
	e.mu.Lock()
	e.pending++
	e.q = append(e.q, func() {
		defer close(done)
		fn()
	})
	e.cond.Signal()
	e.mu.Unlock()

	if !ok {
		go t.run(key, e)
	}
	t.mu.Unlock()

	<-done
}

// run is the single consumer goroutine for one canonical key. It exits,
// and removes the entry from the table, the moment it drains a queue with
// nothing pending.
func (t *Table) run(key string, e *entry) {
	for {
		e.mu.Lock()
		for len(e.q) == 0 {
			e.cond.Wait()
		}
		task := e.q[0]
		e.q = e.q[1:]
		e.mu.Unlock()

		task()

		t.mu.Lock()
		e.mu.Lock()
		e.pending--
		if e.pending == 0 && len(e.q) == 0 {
			delete(t.entries, key)
			e.mu.Unlock()
			t.mu.Unlock()
			return
		}
		e.mu.Unlock()
		t.mu.Unlock()
	}
}

// Depth reports how many canonical keys currently have a live queue, for
// metrics.
func (t *Table) Depth() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
