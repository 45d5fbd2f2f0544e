package uas

import (
	"time"

	"github.com/temoto/atomic_clock"
)

// Onboard timestamps below this many microseconds are time since boot.
// No vehicle runs 40 years without reboot.
const onboardEpochThresholdUsec = uint64(40 * 365 * 24 * time.Hour / time.Microsecond)

// TimeReconciler maps onboard clock of unknown epoch to ground time.
// Offset is fixed on first since-boot sample and never corrected,
// worst case is constant bias of one communication delay.
type TimeReconciler struct {
	now    func() time.Time
	offset atomic_clock.Clock // ground - onboard, nanoseconds
}

func NewTimeReconciler(now func() time.Time) *TimeReconciler {
	if now == nil {
		now = time.Now
	}
	return &TimeReconciler{now: now}
}

// Ground converts onboard microseconds to ground time.
// 0 means onboard did not supply time, returns current ground time.
func (self *TimeReconciler) Ground(usec uint64) time.Time {
	if usec == 0 {
		return self.now()
	}
	if usec >= onboardEpochThresholdUsec {
		// split keeps any uint64 in range of time.Unix
		return time.Unix(int64(usec/1e6), int64(usec%1e6)*int64(time.Microsecond))
	}
	onboard := int64(usec) * int64(time.Microsecond)
	self.offset.SetIfZero(self.now().UnixNano() - onboard)
	return time.Unix(0, onboard+int64(self.offsetNano()))
}

// Offset returns established onboard offset, ok=false until first since-boot sample.
func (self *TimeReconciler) Offset() (time.Duration, bool) {
	if self.offset.IsZero() {
		return 0, false
	}
	return self.offsetNano(), true
}

func (self *TimeReconciler) offsetNano() time.Duration {
	var zero atomic_clock.Clock
	return self.offset.Sub(&zero)
}
