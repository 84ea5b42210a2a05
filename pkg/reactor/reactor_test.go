package reactor

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestMonotonic(t *testing.T) {
	r := New()
	defer r.End()

	t1 := r.Monotonic()
	time.Sleep(10 * time.Millisecond)
	t2 := r.Monotonic()

	if t2 <= t1 {
		t.Errorf("Monotonic time not increasing: %f <= %f", t2, t1)
	}
}

func TestTimerFires(t *testing.T) {
	r := New()

	var called atomic.Int32
	r.RegisterTimer(func(eventtime float64) float64 {
		called.Add(1)
		return NEVER
	}, NOW)

	r.Run()
	time.Sleep(50 * time.Millisecond)
	r.End()
	r.Wait()

	if called.Load() != 1 {
		t.Errorf("timer fired %d times, want 1", called.Load())
	}
}

func TestTimerRepeats(t *testing.T) {
	r := New()

	var called atomic.Int32
	r.RegisterTimer(func(eventtime float64) float64 {
		if called.Add(1) < 3 {
			return eventtime + 0.01
		}
		return NEVER
	}, NOW)

	r.Run()
	time.Sleep(150 * time.Millisecond)
	r.End()
	r.Wait()

	if called.Load() < 3 {
		t.Errorf("timer fired %d times, want at least 3", called.Load())
	}
}

func TestUnregisteredTimerNeverFires(t *testing.T) {
	r := New()

	var called atomic.Int32
	timer := r.RegisterTimer(func(eventtime float64) float64 {
		called.Add(1)
		return NEVER
	}, r.Monotonic()+0.05)
	r.UnregisterTimer(timer)

	r.Run()
	time.Sleep(100 * time.Millisecond)
	r.End()
	r.Wait()

	if called.Load() != 0 {
		t.Errorf("timer fired %d times after unregister, want 0", called.Load())
	}
}

func TestUpdateTimerToNeverCancels(t *testing.T) {
	r := New()

	var called atomic.Int32
	timer := r.RegisterTimer(func(eventtime float64) float64 {
		called.Add(1)
		return NEVER
	}, r.Monotonic()+0.05)
	r.UpdateTimer(timer, NEVER)

	r.Run()
	time.Sleep(100 * time.Millisecond)
	r.End()
	r.Wait()

	if called.Load() != 0 {
		t.Errorf("timer fired %d times after UpdateTimer(NEVER), want 0", called.Load())
	}
	if timer.Waketime() != NEVER {
		t.Errorf("Waketime = %f, want NEVER", timer.Waketime())
	}
}

func TestUpdateTimerReArms(t *testing.T) {
	r := New()

	var called atomic.Int32
	timer := r.RegisterTimer(func(eventtime float64) float64 {
		called.Add(1)
		return NEVER
	}, NEVER)

	r.Run()
	time.Sleep(20 * time.Millisecond)
	if called.Load() != 0 {
		t.Fatal("idle timer fired")
	}

	r.UpdateTimer(timer, NOW)
	time.Sleep(50 * time.Millisecond)
	r.End()
	r.Wait()

	if called.Load() != 1 {
		t.Errorf("timer fired %d times after re-arm, want 1", called.Load())
	}
}

func TestTimerNotBeforeDue(t *testing.T) {
	r := New()

	var firedAt atomic.Value
	start := r.Monotonic()
	r.RegisterTimer(func(eventtime float64) float64 {
		firedAt.Store(eventtime)
		return NEVER
	}, start+0.05)

	r.Run()
	time.Sleep(120 * time.Millisecond)
	r.End()
	r.Wait()

	v := firedAt.Load()
	if v == nil {
		t.Fatal("timer never fired")
	}
	if v.(float64) < start+0.045 {
		t.Errorf("timer fired early: %f < %f", v.(float64), start+0.05)
	}
}

func TestRegisterAsyncCallback(t *testing.T) {
	r := New()

	var called atomic.Bool
	r.RegisterAsyncCallback(func(eventtime float64) {
		called.Store(true)
	})

	r.Run()
	time.Sleep(50 * time.Millisecond)
	r.End()
	r.Wait()

	if !called.Load() {
		t.Error("async callback was not run")
	}
}

func TestConstants(t *testing.T) {
	if NOW != 0.0 {
		t.Errorf("NOW = %f, want 0.0", NOW)
	}
	if NEVER < 1e15 {
		t.Errorf("NEVER too small: %f", NEVER)
	}
}
