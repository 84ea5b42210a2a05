// Package reactor provides the host's cooperative timer and callback
// dispatcher. Plugins schedule deferred work against it; timers are
// cancelable and may be re-armed while pending.
package reactor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Timebase sentinels, in monotonic seconds.
const (
	NOW   = 0.0
	NEVER = 9999999999999999.0
)

// TimerCallback is invoked when a timer comes due. It receives the event
// time and returns the next wake time, or NEVER to go idle.
type TimerCallback func(eventtime float64) float64

// Timer is a registered, re-armable timer.
type Timer struct {
	id       uint64
	callback TimerCallback

	mu        sync.Mutex
	waketime  float64
	isRunning bool
}

// Waketime returns the timer's pending wake time (NEVER when idle).
func (t *Timer) Waketime() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.waketime
}

// Reactor dispatches timers and queued callbacks from a single loop.
type Reactor struct {
	mu          sync.Mutex
	timers      []*Timer
	nextTimerID uint64
	nextWake    float64

	asyncQueue chan func()

	ctx    context.Context
	cancel context.CancelFunc

	running   atomic.Bool
	wg        sync.WaitGroup
	startTime time.Time
}

// New creates an idle reactor. Call Run to start dispatching.
func New() *Reactor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Reactor{
		nextWake:   NEVER,
		asyncQueue: make(chan func(), 256),
		ctx:        ctx,
		cancel:     cancel,
		startTime:  time.Now(),
	}
}

// Monotonic returns the reactor clock in seconds.
func (r *Reactor) Monotonic() float64 {
	return time.Since(r.startTime).Seconds()
}

// RegisterTimer adds a timer that first fires at waketime.
func (r *Reactor) RegisterTimer(callback TimerCallback, waketime float64) *Timer {
	r.mu.Lock()
	defer r.mu.Unlock()

	timer := &Timer{
		id:       atomic.AddUint64(&r.nextTimerID, 1),
		callback: callback,
		waketime: waketime,
	}
	r.timers = append(r.timers, timer)
	if waketime < r.nextWake {
		r.nextWake = waketime
	}
	return timer
}

// UnregisterTimer removes a timer; a pending wake never fires afterwards.
func (r *Reactor) UnregisterTimer(timer *Timer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	timer.mu.Lock()
	timer.waketime = NEVER
	timer.mu.Unlock()

	for i, t := range r.timers {
		if t.id == timer.id {
			r.timers = append(r.timers[:i], r.timers[i+1:]...)
			break
		}
	}
}

// UpdateTimer re-arms (or idles, with NEVER) a registered timer.
// A timer currently executing its callback keeps the callback's return
// value instead.
func (r *Reactor) UpdateTimer(timer *Timer, waketime float64) {
	timer.mu.Lock()
	if timer.isRunning {
		timer.mu.Unlock()
		return
	}
	timer.waketime = waketime
	timer.mu.Unlock()

	r.mu.Lock()
	if waketime < r.nextWake {
		r.nextWake = waketime
	}
	r.mu.Unlock()
}

// RegisterAsyncCallback queues fn to run on the dispatch loop. Safe to
// call from any goroutine, including timer callbacks.
func (r *Reactor) RegisterAsyncCallback(fn func(eventtime float64)) {
	select {
	case r.asyncQueue <- func() { fn(r.Monotonic()) }:
	default:
		// Queue full; run inline rather than dropping the event.
		fn(r.Monotonic())
	}
}

// Run starts the dispatch loop.
func (r *Reactor) Run() {
	if r.running.Swap(true) {
		return
	}
	r.wg.Add(1)
	go r.dispatchLoop()
}

// End signals the dispatch loop to stop.
func (r *Reactor) End() {
	r.running.Store(false)
	r.cancel()
}

// Wait blocks until the dispatch loop has exited.
func (r *Reactor) Wait() {
	r.wg.Wait()
}

func (r *Reactor) dispatchLoop() {
	defer r.wg.Done()

	for r.running.Load() {
		r.drainAsync()

		delay := r.checkTimers(r.Monotonic())
		if delay <= 0 {
			continue
		}
		d := time.Duration(delay * float64(time.Second))
		if d > time.Second {
			d = time.Second
		}
		select {
		case <-time.After(d):
		case fn := <-r.asyncQueue:
			fn()
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *Reactor) drainAsync() {
	for {
		select {
		case fn := <-r.asyncQueue:
			fn()
		default:
			return
		}
	}
}

// checkTimers fires due timers and returns seconds until the next wake.
func (r *Reactor) checkTimers(eventtime float64) float64 {
	r.mu.Lock()
	if eventtime < r.nextWake {
		delay := r.nextWake - eventtime
		r.mu.Unlock()
		return delay
	}
	timers := make([]*Timer, len(r.timers))
	copy(timers, r.timers)
	r.nextWake = NEVER
	r.mu.Unlock()

	for _, timer := range timers {
		timer.mu.Lock()
		waketime := timer.waketime
		if eventtime >= waketime {
			timer.waketime = NEVER
			timer.isRunning = true
			timer.mu.Unlock()

			next := timer.callback(eventtime)

			timer.mu.Lock()
			timer.isRunning = false
			if next < timer.waketime {
				timer.waketime = next
			}
		}
		waketime = timer.waketime
		timer.mu.Unlock()

		r.mu.Lock()
		if waketime < r.nextWake {
			r.nextWake = waketime
		}
		r.mu.Unlock()
	}

	r.mu.Lock()
	delay := r.nextWake - eventtime
	r.mu.Unlock()
	if delay < 0 {
		delay = 0
	}
	return delay
}
