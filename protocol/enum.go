package protocol

import "fmt"

// Mode is vehicle operating mode.
type Mode uint8

const (
	ModeUninit Mode = iota
	ModeLocked
	ModeManual
	ModeGuided
	ModeAuto
	ModeTest1
	ModeTest2
	ModeTest3
	ModeReady
)

// Settable modes are ModeLocked..ModeTest3.
func (m Mode) Settable() bool { return m >= ModeLocked && m <= ModeTest3 }

func (m Mode) String() string {
	switch m {
	case ModeUninit:
		return "UNINIT"
	case ModeLocked:
		return "LOCKED"
	case ModeManual:
		return "MANUAL"
	case ModeGuided:
		return "GUIDED"
	case ModeAuto:
		return "AUTO"
	case ModeTest1:
		return "TEST1"
	case ModeTest2:
		return "TEST2"
	case ModeTest3:
		return "TEST3"
	case ModeReady:
		return "READY"
	}
	return fmt.Sprintf("MODE(%d)", uint8(m))
}

// Label is operator facing text, as spoken in announcements.
func (m Mode) Label() string {
	switch m {
	case ModeLocked, ModeManual, ModeGuided, ModeAuto, ModeTest1, ModeTest2, ModeTest3:
		return m.String() + " MODE"
	case ModeReady:
		return "READY"
	}
	return "UNINIT MODE"
}

// Status is vehicle health/activity state.
type Status uint8

const (
	StatusUninit Status = iota
	StatusBoot
	StatusCalibrating
	StatusStandby
	StatusActive
	StatusCritical
	StatusEmergency
	StatusPoweroff
)

func (s Status) String() string {
	switch s {
	case StatusUninit:
		return "UNINIT"
	case StatusBoot:
		return "BOOT"
	case StatusCalibrating:
		return "CALIBRATING"
	case StatusStandby:
		return "STANDBY"
	case StatusActive:
		return "ACTIVE"
	case StatusCritical:
		return "CRITICAL"
	case StatusEmergency:
		return "EMERGENCY"
	case StatusPoweroff:
		return "SHUTDOWN"
	}
	return "UNKNOWN"
}

func (s Status) Description() string {
	switch s {
	case StatusUninit:
		return "Not initialized"
	case StatusBoot:
		return "Booting system, please wait.."
	case StatusCalibrating:
		return "Calibrating sensors.."
	case StatusStandby:
		return "Standby, operational"
	case StatusActive:
		return "Normal operation mode"
	case StatusCritical:
		return "Failure occured!"
	case StatusEmergency:
		return "EMERGENCY: Please land"
	case StatusPoweroff:
		return "Powering off system"
	}
	return "FAILURE: Unknown system state"
}

// Critical statuses raise emergency alarm.
func (s Status) Critical() bool { return s == StatusCritical || s == StatusEmergency }

// Action is discrete command argument of KindAction.
type Action uint8

const (
	ActionHold Action = iota
	ActionMotorsStart
	ActionLaunch
	ActionReturn
	ActionEmergencyLand
	ActionEmergencyKill
	ActionConfirmKill
	ActionContinue
	ActionMotorsStop
	ActionHalt
	ActionShutdown
)

func (a Action) String() string {
	switch a {
	case ActionHold:
		return "HOLD"
	case ActionMotorsStart:
		return "MOTORS_START"
	case ActionLaunch:
		return "LAUNCH"
	case ActionReturn:
		return "RETURN"
	case ActionEmergencyLand:
		return "EMCY_LAND"
	case ActionEmergencyKill:
		return "EMCY_KILL"
	case ActionConfirmKill:
		return "CONFIRM_KILL"
	case ActionContinue:
		return "CONTINUE"
	case ActionMotorsStop:
		return "MOTORS_STOP"
	case ActionHalt:
		return "HALT"
	case ActionShutdown:
		return "SHUTDOWN"
	}
	return fmt.Sprintf("ACTION(%d)", uint8(a))
}

// Destructive actions require operator confirmation before encoding.
func (a Action) Destructive() bool { return a == ActionEmergencyKill || a == ActionShutdown }
