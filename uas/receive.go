package uas

import (
	"fmt"
	"sync/atomic"

	"github.com/juju/errors"
	"github.com/temoto/uasbridge/protocol"
)

// Receive applies one frame that arrived on link.
// Frames from other systems are ignored. Error means malformed payload,
// frame is dropped and state is unchanged.
func (self *Vehicle) Receive(link Link, f protocol.Frame) error {
	if f.SystemID != self.id {
		return nil
	}
	if link != nil && self.links.add(link) {
		self.log.Infof("link=%s added", link.Name())
	}

	m, err := protocol.Decode(f)
	if err != nil {
		self.stats.Malformed()
		return errors.Annotatef(err, "uas=%d", self.id)
	}
	self.stats.Frame(f.Kind)

	self.mu.Lock()
	defer self.mu.Unlock()
	if link != nil {
		self.drops.observe(link, f.Seq)
	}
	self.dispatch(f, m)
	return nil
}

// dispatch is called with mu held.
func (self *Vehicle) dispatch(f protocol.Frame, m protocol.Message) {
	switch m := m.(type) {
	case *protocol.Heartbeat:
		self.onHeartbeat(m)
	case *protocol.Boot:
		self.onBoot(m)
	case *protocol.SysStatus:
		self.onSysStatus(m)
	case *protocol.AuxStatus:
		self.onAuxStatus(m)
	case *protocol.RawIMU:
		self.onRawIMU(m)
	case *protocol.RawAux:
		self.onRawAux(m)
	case *protocol.Attitude:
		self.onAttitude(m)
	case *protocol.VisionPosition:
		self.onVisionPosition(m)
	case *protocol.Position:
		self.onPosition(m)
	case *protocol.ParamValue:
		self.emit(ParameterChanged{EventHeader: self.header(self.now()),
			Component: f.ComponentID, ParamID: m.ParamID, Value: m.Value})
	case *protocol.Debug:
		self.emit(ValueChanged{EventHeader: self.header(self.now()),
			Name: fmt.Sprintf("debug %d", m.Index), Value: float64(m.Value)})
	case *protocol.StatusText:
		self.emit(TextMessageReceived{EventHeader: self.header(self.now()),
			Severity: m.Severity, Text: m.Text})
	case *protocol.PatternDetected:
		self.emit(DetectionReceived{EventHeader: self.header(self.now()),
			File: m.File, Confidence: m.Confidence, Detected: m.Detected})

	case *protocol.Unknown:
		self.onUnknown(f)
	case *protocol.ActionCommand, *protocol.SetMode, *protocol.ParamRequestList, *protocol.ParamSet,
		*protocol.RequestStream, *protocol.ManualControl:
		// ground-to-vehicle kind has no downlink meaning
		self.onUnknown(f)

	default:
		panic(fmt.Sprintf("code error uas dispatch missing kind=%s type=%T", m.Kind().String(), m))
	}
}

func (self *Vehicle) onHeartbeat(m *protocol.Heartbeat) {
	h := self.header(self.now())
	self.emit(Heartbeat{EventHeader: h})
	if self.state.Type != m.Type {
		self.state.Type = m.Type
		self.emit(SystemTypeChanged{EventHeader: h, Type: m.Type})
	}
}

func (self *Vehicle) onBoot(m *protocol.Boot) {
	self.log.Infof("boot version=%d", m.Version)
	self.emit(StatusChanged{EventHeader: self.header(self.now()),
		Status: protocol.StatusBoot, Text: protocol.StatusBoot.String(), Description: protocol.StatusBoot.Description()})
}

func (self *Vehicle) onSysStatus(m *protocol.SysStatus) {
	now := self.now()
	h := self.header(now)
	statusChanged := m.Status != self.state.Status
	if statusChanged {
		self.state.Status = m.Status
		self.emit(StatusChanged{EventHeader: h, Status: m.Status, Text: m.Status.String(), Description: m.Status.Description()})
	}
	modeChanged := m.Mode != self.state.Mode
	if modeChanged {
		self.state.Mode = m.Mode
		self.emit(ModeChanged{EventHeader: h, Mode: m.Mode, Label: m.Mode.Label()})
	}

	raw := float64(m.VBat) / 1000
	b := self.battery.Update(raw, now)
	self.state.Battery = b
	self.emit(BatteryChanged{EventHeader: h, Battery: b})
	self.emit(VoltageChanged{EventHeader: h, Voltage: raw})
	self.alarm.Battery(b.ChargePercent)

	self.state.ReceiveDropRate = self.drops.Rate()
	self.state.SendDropRate = percent(uint64(m.PacketDrop), self.sentCount())
	self.emit(DropRateChanged{EventHeader: h, Receive: self.state.ReceiveDropRate, Send: self.state.SendDropRate})

	self.alarm.Status(self.id, m.Mode, modeChanged, m.Status, statusChanged)
	self.state.LowBattery = self.alarm.LowBattery()
	self.state.Emergency = self.alarm.Emergency()
}

func (self *Vehicle) onAuxStatus(m *protocol.AuxStatus) {
	h := self.header(self.now())
	self.state.Load = float64(m.Load) / 10
	self.emit(LoadChanged{EventHeader: h, Percent: self.state.Load})
	self.emit(ValueChanged{EventHeader: h, Name: "Load", Value: float64(m.Load) / 1000})
}

func (self *Vehicle) onRawIMU(m *protocol.RawIMU) {
	h := self.header(self.clock.Ground(m.Usec))
	self.values(h, []namedValue{
		{"Accel. X", float64(m.XAcc)}, {"Accel. Y", float64(m.YAcc)}, {"Accel. Z", float64(m.ZAcc)},
		{"Gyro Phi", float64(m.XGyro)}, {"Gyro Theta", float64(m.YGyro)}, {"Gyro Psi", float64(m.ZGyro)},
		{"Mag. X", float64(m.XMag)}, {"Mag. Y", float64(m.YMag)}, {"Mag. Z", float64(m.ZMag)}}...)
}

func (self *Vehicle) onRawAux(m *protocol.RawAux) {
	h := self.header(self.clock.Ground(0))
	self.values(h, []namedValue{
		{"Pressure", float64(m.Baro)}, {"Temperature", float64(m.Temp)}}...)
}

func (self *Vehicle) onAttitude(m *protocol.Attitude) {
	h := self.header(self.clock.Ground(m.Usec))
	a := Attitude{
		Roll: m.Roll, Pitch: m.Pitch, Yaw: m.Yaw,
		RollSpeed: m.RollSpeed, PitchSpeed: m.PitchSpeed, YawSpeed: m.YawSpeed,
	}
	self.state.Attitude = a
	self.values(h, []namedValue{
		{"roll IMU", float64(a.Roll)}, {"pitch IMU", float64(a.Pitch)}, {"yaw IMU", float64(a.Yaw)},
		{"rollspeed IMU", float64(a.RollSpeed)}, {"pitchspeed IMU", float64(a.PitchSpeed)}, {"yawspeed IMU", float64(a.YawSpeed)}}...)
	self.emit(AttitudeChanged{EventHeader: h, Attitude: a})
}

func (self *Vehicle) onVisionPosition(m *protocol.VisionPosition) {
	h := self.header(self.clock.Ground(m.Usec))
	self.values(h, []namedValue{
		{"vis. roll", float64(m.Roll)}, {"vis. pitch", float64(m.Pitch)}, {"vis. yaw", float64(m.Yaw)},
		{"vis. x", float64(m.X)}, {"vis. y", float64(m.Y)}, {"vis. z", float64(m.Z)}}...)
}

func (self *Vehicle) onPosition(m *protocol.Position) {
	h := self.header(self.clock.Ground(m.Usec))
	p := Position{X: m.X, Y: m.Y, Z: m.Z, VX: m.VX, VY: m.VY, VZ: m.VZ}
	self.state.Position = p
	self.values(h, []namedValue{
		{"x", float64(p.X)}, {"y", float64(p.Y)}, {"z", float64(p.Z)},
		{"vx", float64(p.VX)}, {"vy", float64(p.VY)}, {"vz", float64(p.VZ)}}...)
	self.emit(LocalPositionChanged{EventHeader: h, Position: p})
}

func (self *Vehicle) onUnknown(f protocol.Frame) {
	if !self.unknown.Observe(f.Kind) {
		return
	}
	self.stats.Unknown(f.Kind)
	self.log.Errorf("unable to decode message kind=%d from system=%d", uint8(f.Kind), f.SystemID)
	self.alarm.sink.Say(unknownText(f.Kind, f.SystemID))
	self.emit(UnknownMessageDetected{EventHeader: self.header(self.now()), Kind: f.Kind})
}

type namedValue struct {
	name  string
	value float64
}

func (self *Vehicle) values(h EventHeader, vs ...namedValue) {
	for _, v := range vs {
		self.emit(ValueChanged{EventHeader: h, Name: v.name, Value: v.value})
	}
}

func (self *Vehicle) sentCount() uint64 { return atomic.LoadUint64(&self.sent) }
