package job

import "time"

// Estimator turns successive byte-count samples into a speed and an ETA.
type Estimator struct {
	now       func() time.Time
	lastTime  time.Time
	lastBytes int64
	started   bool
}

// NewEstimator uses time.Now when now is nil.
func NewEstimator(now func() time.Time) *Estimator {
	if now == nil {
		now = time.Now
	}
	return &Estimator{now: now}
}

// Sample records bytes at the current time. speed is in bytes per second
// and never negative; the ETA is known only with a positive speed and a
// known total.
func (e *Estimator) Sample(bytes, total int64) (speed float64, eta time.Duration, etaKnown bool) {
	now := e.now()
	if !e.started {
		e.lastTime, e.lastBytes, e.started = now, bytes, true
		return 0, 0, false
	}
	elapsed := now.Sub(e.lastTime).Seconds()
	if elapsed > 0 {
		speed = max(float64(bytes-e.lastBytes)/elapsed, 0)
	}
	e.lastTime, e.lastBytes = now, bytes
	if speed > 0 && total > 0 {
		remaining := max(total-bytes, 0)
		eta = time.Duration(float64(remaining) / speed * float64(time.Second))
		etaKnown = true
	}
	return speed, eta, etaKnown
}
