package helpers

import "time"

// DurationDefault converts config integer in units, zero selects def.
func DurationDefault(x int, unit, def time.Duration) time.Duration {
	if x <= 0 {
		return def
	}
	return time.Duration(x) * unit
}
