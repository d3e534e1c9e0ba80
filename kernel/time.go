package kernel

import (
	"sync/atomic"

	"titan/internal/checked"
)

// Microseconds per unit of each supported time denomination.
const (
	microsPerMilli  = 1000
	microsPerSecond = 1000000
	microsPerMinute = 60000000
	microsPerHour   = 3600000000
	microsPerDay    = 86400000000
)

// Clock is the monotonic microsecond timebase shared by both cores.
//
// The tick handler cannot be blocked by critical sections (time must keep
// advancing while a core sits inside an exclusive section), so readers
// never take a lock. Instead the 64-bit counter is published as two 32-bit
// atomic halves guarded by a sequence counter: the writer makes seq odd,
// stores both halves, and makes seq even again. A reader that observes the
// same even seq before and after its two half-loads has a consistent
// value. Both halves are individual 32-bit atomics because the target
// cores have no 64-bit atomic loads.
type Clock struct {
	seq atomic.Uint32
	lo  atomic.Uint32
	hi  atomic.Uint32

	tickIncrement int64
	lockAttempts  int32
}

func newClock(tickFreq int64, lockAttempts int32) *Clock {
	return &Clock{
		tickIncrement: microsPerSecond / tickFreq,
		lockAttempts:  lockAttempts,
	}
}

// TickIncrement returns the number of microseconds added per tick.
func (c *Clock) TickIncrement() int64 {
	return c.tickIncrement
}

// Tick advances the clock by one tick increment. It must be invoked only
// from the periodic tick handler; the seq-lock discipline assumes a single
// writer.
func (c *Clock) Tick() {
	cur := int64(c.hi.Load())<<32 | int64(c.lo.Load())
	next := cur + c.tickIncrement

	c.seq.Add(1)
	c.lo.Store(uint32(next))
	c.hi.Store(uint32(next >> 32))
	c.seq.Add(1)
}

// Now returns a consistent snapshot of the current time in microseconds.
// If the tick handler keeps interleaving writes for more than the
// configured number of attempts, Now returns -1 and ErrTimeout.
func (c *Clock) Now() (int64, error) {
	for attempt := int32(0); attempt <= c.lockAttempts; attempt++ {
		s0 := c.seq.Load()
		lo := c.lo.Load()
		hi := c.hi.Load()
		s1 := c.seq.Load()
		if s0 == s1 && s0&1 == 0 {
			return int64(hi)<<32 | int64(lo), nil
		}
	}
	return -1, ErrTimeout
}

// Sleep returns after at least duration microseconds of monotonic time
// have elapsed, yielding the scheduler between clock checks.
func (c *Core) Sleep(duration int64) error {
	if duration < 0 {
		return ErrInvalidArg
	}
	clock := c.sys.clock
	start, err := clock.Now()
	if err != nil {
		return ErrInternal
	}
	for {
		now, err := clock.Now()
		if err != nil {
			return ErrInternal
		}
		if now-start >= duration {
			return nil
		}
		c.port.Yield()
	}
}

// SleepUntil returns once the clock has reached or passed target (in
// microseconds). A target already in the past at entry is an error.
func (c *Core) SleepUntil(target int64) error {
	clock := c.sys.clock
	now, err := clock.Now()
	if err != nil {
		return ErrInternal
	}
	if target < now {
		return ErrInvalidArg
	}
	for {
		now, err := clock.Now()
		if err != nil {
			return ErrInternal
		}
		if now >= target {
			return nil
		}
		c.port.Yield()
	}
}

// toTime converts a count of larger units to microseconds.
func toTime(units, mul int64) (int64, error) {
	if units < 0 {
		return -1, ErrInvalidArg
	}
	if units == 0 {
		return 0, nil
	}
	t, ok := checked.Mul(units, mul)
	if !ok {
		return -1, ErrOverflow
	}
	return t, nil
}

// fromTime converts microseconds to a count of larger units, rounding
// toward zero.
func fromTime(t, mul int64) (int64, error) {
	if t < 0 {
		return -1, ErrInvalidArg
	}
	if t == 0 {
		return 0, nil
	}
	return t / mul, nil
}

// MicrosToTime converts microseconds to kernel time (the identity).
func MicrosToTime(micros int64) (int64, error) {
	if micros < 0 {
		return -1, ErrInvalidArg
	}
	return micros, nil
}

// TimeToMicros converts kernel time to microseconds (the identity).
func TimeToMicros(t int64) (int64, error) {
	if t < 0 {
		return -1, ErrInvalidArg
	}
	return t, nil
}

// MillisToTime converts milliseconds to kernel time.
func MillisToTime(millis int64) (int64, error) { return toTime(millis, microsPerMilli) }

// TimeToMillis converts kernel time to whole milliseconds.
func TimeToMillis(t int64) (int64, error) { return fromTime(t, microsPerMilli) }

// SecondsToTime converts seconds to kernel time.
func SecondsToTime(seconds int64) (int64, error) { return toTime(seconds, microsPerSecond) }

// TimeToSeconds converts kernel time to whole seconds.
func TimeToSeconds(t int64) (int64, error) { return fromTime(t, microsPerSecond) }

// MinutesToTime converts minutes to kernel time.
func MinutesToTime(minutes int64) (int64, error) { return toTime(minutes, microsPerMinute) }

// TimeToMinutes converts kernel time to whole minutes.
func TimeToMinutes(t int64) (int64, error) { return fromTime(t, microsPerMinute) }

// HoursToTime converts hours to kernel time.
func HoursToTime(hours int64) (int64, error) { return toTime(hours, microsPerHour) }

// TimeToHours converts kernel time to whole hours.
func TimeToHours(t int64) (int64, error) { return fromTime(t, microsPerHour) }

// DaysToTime converts days to kernel time.
func DaysToTime(days int64) (int64, error) { return toTime(days, microsPerDay) }

// TimeToDays converts kernel time to whole days.
func TimeToDays(t int64) (int64, error) { return fromTime(t, microsPerDay) }
