package uas

import (
	"sync"
	"time"

	"github.com/temoto/uasbridge/protocol"
)

// EventHeader is common to all vehicle events.
type EventHeader struct {
	UAS  uint8
	Time time.Time
}

func (h EventHeader) Head() EventHeader { return h }

// Event is one of the concrete *Changed/*Received types below.
// Consumers switch on concrete type.
type Event interface {
	Head() EventHeader
}

type (
	Heartbeat struct {
		EventHeader
	}
	SystemTypeChanged struct {
		EventHeader
		Type uint8
	}
	ModeChanged struct {
		EventHeader
		Mode  protocol.Mode
		Label string
	}
	StatusChanged struct {
		EventHeader
		Status      protocol.Status
		Text        string
		Description string
	}
	BatteryChanged struct {
		EventHeader
		Battery BatteryState
	}
	VoltageChanged struct {
		EventHeader
		Voltage float64
	}
	DropRateChanged struct {
		EventHeader
		Receive float64
		Send    float64
	}
	LoadChanged struct {
		EventHeader
		Percent float64
	}
	ValueChanged struct {
		EventHeader
		Name  string
		Value float64
	}
	AttitudeChanged struct {
		EventHeader
		Attitude Attitude
	}
	LocalPositionChanged struct {
		EventHeader
		Position Position
	}
	ParameterChanged struct {
		EventHeader
		Component uint8
		ParamID   string
		Value     float32
	}
	TextMessageReceived struct {
		EventHeader
		Severity uint8
		Text     string
	}
	DetectionReceived struct {
		EventHeader
		File       string
		Confidence float32
		Detected   bool
	}
	UnknownMessageDetected struct {
		EventHeader
		Kind protocol.Kind
	}
	AttitudeThrustSetpointChanged struct {
		EventHeader
		Setpoint Setpoint
	}
)

// Observer receives events synchronously, in order, while vehicle state is locked.
// OnEvent must not call back into the same Vehicle.
type Observer interface {
	OnEvent(Event)
}

type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

// Observers is concurrent safe observer list, itself an Observer.
type Observers struct {
	mu   sync.RWMutex
	list []Observer
}

func (self *Observers) Add(o Observer) {
	self.mu.Lock()
	self.list = append(self.list, o)
	self.mu.Unlock()
}

func (self *Observers) OnEvent(e Event) {
	self.mu.RLock()
	list := self.list
	self.mu.RUnlock()
	for _, o := range list {
		o.OnEvent(e)
	}
}
