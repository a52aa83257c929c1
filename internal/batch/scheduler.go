package batch

import (
	"math/rand/v2"
	"time"
)

// scheduler owns the flush timer of one pipeline.
//
// The timer is armed from the first point of a buffer generation, so a
// timed flush never happens earlier than interval after that point and no
// later than interval+jitter. While only retries are pending it ticks on a
// fresh interval+jitter period. The period is redrawn at every arming.
//
// Not safe for concurrent use; only the pipeline loop touches it.
type scheduler struct {
	interval time.Duration
	jitter   time.Duration
	randN    func(n time.Duration) time.Duration
	now      func() time.Time

	timer *time.Timer
	armed bool
	gen   uint64 // buffer generation the timer serves; 0 means retries only
}

func newScheduler(interval, jitter time.Duration, now func() time.Time) *scheduler {
	return &scheduler{
		interval: interval,
		jitter:   jitter,
		randN:    rand.N[time.Duration],
		now:      now,
	}
}

// nextDelay returns interval plus a uniform draw from [0, jitter].
func (s *scheduler) nextDelay() time.Duration {
	d := s.interval
	if s.jitter > 0 {
		d += s.randN(s.jitter + 1)
	}
	return d
}

// reconcile arms, re-arms or stops the timer to match the pending work.
func (s *scheduler) reconcile(buf bufferState, retriesPending bool) {
	switch {
	case buf.count > 0:
		if s.armed && s.gen == buf.gen {
			return
		}
		delay := s.nextDelay() - s.now().Sub(buf.firstAt)
		s.arm(max(delay, 0), buf.gen)
	case retriesPending:
		if s.armed {
			return
		}
		s.arm(s.nextDelay(), 0)
	default:
		s.disarm()
	}
}

func (s *scheduler) arm(d time.Duration, gen uint64) {
	if s.timer == nil {
		s.timer = time.NewTimer(d)
	} else {
		s.timer.Reset(d)
	}
	s.armed = true
	s.gen = gen
}

func (s *scheduler) disarm() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.armed = false
}

// C returns the timer channel, or nil while disarmed so a select on it blocks.
func (s *scheduler) C() <-chan time.Time {
	if !s.armed {
		return nil
	}
	return s.timer.C
}

// fired records that the timer tick was consumed.
func (s *scheduler) fired() {
	s.armed = false
}

// stop releases the timer.
func (s *scheduler) stop() {
	s.disarm()
}
