package dataset

import (
	"sync"
	"time"
)

// DefaultSearchDebounce is the quiet period applied to free-text search input.
const DefaultSearchDebounce = 300 * time.Millisecond

// Debouncer delivers only the last pushed value once no new value has arrived
// for the configured delay.
type Debouncer struct {
	delay time.Duration
	fn    func(string)

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	pending string
	armed   bool
}

// NewDebouncer returns a debouncer calling fn. A non-positive delay uses
// DefaultSearchDebounce.
func NewDebouncer(delay time.Duration, fn func(string)) *Debouncer {
	if delay <= 0 {
		delay = DefaultSearchDebounce
	}
	return &Debouncer{delay: delay, fn: fn}
}

// Push records value and restarts the quiet period.
func (d *Debouncer) Push(value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	d.pending = value
	d.armed = true
	if d.timer != nil {
		d.timer.Stop()
	}
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Flush delivers a pending value immediately. It reports whether one was pending.
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	if !d.armed {
		d.mu.Unlock()
		return false
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	value := d.take()
	d.mu.Unlock()
	d.fn(value)
	return true
}

// Stop discards any pending value.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.armed = false
	d.gen++
}

// Pending reports whether a value is waiting for its quiet period to end.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.armed
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if !d.armed || gen != d.gen {
		d.mu.Unlock()
		return
	}
	value := d.take()
	d.mu.Unlock()
	d.fn(value)
}

func (d *Debouncer) take() string {
	d.armed = false
	d.gen++
	value := d.pending
	d.pending = ""
	return value
}
