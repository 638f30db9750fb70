package service

import "time"

// BatchSize converts a velocity in emails per minute into the number of
// recipients to attempt per tick: ceil(velocity / ticksPerMinute), at least 1.
func BatchSize(velocity int, tickInterval time.Duration) int {
	if velocity < 1 || tickInterval <= 0 {
		return 1
	}
	minute := int64(time.Minute)
	n := (int64(velocity)*int64(tickInterval) + minute - 1) / minute
	if n < 1 {
		return 1
	}
	return int(n)
}
