// Package alarm debounces bad-posture classifications so the alert only
// sounds after bad posture has lasted without interruption.
package alarm

import "time"

// Phase is the debouncer state.
type Phase int

// Debouncer phases.
const (
	Idle Phase = iota
	Accumulating
	Ringing
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case Accumulating:
		return "accumulating"
	case Ringing:
		return "ringing"
	default:
		return "idle"
	}
}

// MarshalText encodes the phase name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Status is a snapshot of the debouncer after an update.
type Status struct {
	Phase    Phase         `json:"phase"`
	BadSince time.Time     `json:"bad_since,omitzero"`
	Delay    time.Duration `json:"delay"`
	Elapsed  time.Duration `json:"elapsed"`
	Ringing  bool          `json:"ringing"`
}

// Remaining returns the time left before the alarm rings. It is zero when
// idle or ringing.
func (s Status) Remaining() time.Duration {
	if s.Phase != Accumulating {
		return 0
	}
	if r := s.Delay - s.Elapsed; r > 0 {
		return r
	}
	return 0
}

// Debouncer is the Idle -> Accumulating -> Ringing state machine. Any good
// update returns it to Idle. It is not safe for concurrent use; the monitor
// drives it from a single goroutine.
type Debouncer struct {
	phase    Phase
	badSince time.Time
}

// New returns an idle debouncer.
func New() *Debouncer {
	return &Debouncer{}
}

// Update feeds one classification. delay is read on every call, so a change
// takes effect on the next comparison.
func (d *Debouncer) Update(bad bool, now time.Time, delay time.Duration) Status {
	if !bad {
		d.Reset()
		return d.status(now, delay)
	}

	switch d.phase {
	case Idle:
		d.phase = Accumulating
		d.badSince = now
		if delay <= 0 {
			d.phase = Ringing
		}
	case Accumulating:
		if now.Sub(d.badSince) >= delay {
			d.phase = Ringing
		}
	case Ringing:
	}
	return d.status(now, delay)
}

// Reset returns the debouncer to Idle.
func (d *Debouncer) Reset() {
	d.phase = Idle
	d.badSince = time.Time{}
}

// Phase returns the current phase.
func (d *Debouncer) Phase() Phase {
	return d.phase
}

func (d *Debouncer) status(now time.Time, delay time.Duration) Status {
	s := Status{Phase: d.phase, Delay: delay, Ringing: d.phase == Ringing}
	if d.phase != Idle {
		s.BadSince = d.badSince
		s.Elapsed = now.Sub(d.badSince)
	}
	return s
}
