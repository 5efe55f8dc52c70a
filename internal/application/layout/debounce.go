package layout

import (
	"sort"
	"sync"
	"time"
)

// Debouncer coalesces calls per key: only the most recent function passed
// for a key runs, once no new call for that key arrived for the delay.
type Debouncer struct {
	delay   time.Duration
	mu      sync.Mutex
	timers  map[string]*time.Timer
	pending map[string]func()
	running sync.WaitGroup
}

// NewDebouncer creates a debouncer with the given quiet period.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:   delay,
		timers:  make(map[string]*time.Timer),
		pending: make(map[string]func()),
	}
}

// Trigger schedules fn for key, replacing and postponing anything already
// scheduled for it.
func (d *Debouncer) Trigger(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if t, ok := d.timers[key]; ok {
		t.Stop()
	}
	d.pending[key] = fn

	var t *time.Timer
	t = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if d.timers[key] != t {
			// replaced or flushed meanwhile
			d.mu.Unlock()
			return
		}
		fn := d.pending[key]
		delete(d.timers, key)
		delete(d.pending, key)
		d.running.Add(1)
		d.mu.Unlock()

		defer d.running.Done()
		fn()
	})
	d.timers[key] = t
}

// Flush runs every scheduled function now, in key order, and waits for
// functions already started by their timers.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	keys := make([]string, 0, len(d.pending))
	for key, t := range d.timers {
		t.Stop()
		keys = append(keys, key)
	}
	sort.Strings(keys)
	fns := make([]func(), 0, len(keys))
	for _, key := range keys {
		fns = append(fns, d.pending[key])
	}
	d.timers = make(map[string]*time.Timer)
	d.pending = make(map[string]func())
	d.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	d.running.Wait()
}

// Stop drops everything scheduled without running it.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, t := range d.timers {
		t.Stop()
	}
	d.timers = make(map[string]*time.Timer)
	d.pending = make(map[string]func())
}

// Pending returns the number of keys with a scheduled function.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
