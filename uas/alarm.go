package uas

import (
	"fmt"

	"github.com/temoto/uasbridge/protocol"
)

// AlarmSink is spoken feedback and emergency siren device.
// StartEmergency/StopEmergency must be idempotent.
type AlarmSink interface {
	Say(text string)
	StartEmergency(label string)
	StopEmergency()
}

type NoopAlarm struct{}

func (NoopAlarm) Say(string)            {}
func (NoopAlarm) StartEmergency(string) {}
func (NoopAlarm) StopEmergency()        {}

const alarmLabelBattery = "BATTERY"

// AlarmController keeps one latch per alarm class. Sink plays one alarm at a time:
// emergency status outranks low battery. Sink is called once per change of
// the playing alarm, never per frame.
// Not concurrent safe, owned by Vehicle.
type AlarmController struct {
	sink       AlarmSink
	lowBattery bool
	emergLabel string // "" = no critical status
	playing    string // label started on sink, "" = silent
}

func NewAlarmController(sink AlarmSink) *AlarmController {
	if sink == nil {
		sink = NoopAlarm{}
	}
	return &AlarmController{sink: sink}
}

func (self *AlarmController) LowBattery() bool { return self.lowBattery }
func (self *AlarmController) Emergency() bool  { return self.emergLabel != "" }

// Battery applies charge level hysteresis at LowBatteryLevel.
func (self *AlarmController) Battery(chargePercent float64) {
	self.lowBattery = chargePercent <= LowBatteryLevel
	self.sync()
}

// Status handles SYS_STATUS transitions. Critical status raises emergency and
// mutes announcements; otherwise each change produces one composed utterance.
func (self *AlarmController) Status(uasID uint8, mode protocol.Mode, modeChanged bool, status protocol.Status, statusChanged bool) {
	if status.Critical() {
		self.emergLabel = status.String()
		self.sync()
		return
	}
	self.emergLabel = ""
	self.sync()
	if !modeChanged && !statusChanged {
		return
	}
	self.sink.Say(Announcement(uasID, mode, modeChanged, status, statusChanged))
}

func (self *AlarmController) sync() {
	want := self.emergLabel
	if want == "" && self.lowBattery {
		want = alarmLabelBattery
	}
	if want == self.playing {
		return
	}
	self.playing = want
	if want == "" {
		self.sink.StopEmergency()
		return
	}
	self.sink.StartEmergency(want)
}

// Announcement composes single utterance for mode and/or status change.
func Announcement(uasID uint8, mode protocol.Mode, modeChanged bool, status protocol.Status, statusChanged bool) string {
	s := fmt.Sprintf("System %d", uasID)
	if modeChanged {
		s += " is now in " + mode.Label()
	}
	if modeChanged && statusChanged {
		s += " and"
	}
	if statusChanged {
		s += " changed status to " + status.String()
	}
	return s
}
