package uas

import (
	"context"

	"github.com/juju/errors"
	"github.com/temoto/uasbridge/protocol"
)

// Manual control gains.
const (
	manualRollPitchScale = 0.2
	manualYawScale       = 0.5
	manualThrustScale    = 1.0
)

// Stream request shortcuts.
const (
	streamAllKind    protocol.Kind = 0 // standard set except heartbeat
	streamAllRate                  = 0 // default rate of each message
	streamRawIMURate               = 200
)

var ErrNotConfirmed = errors.New("action not confirmed by operator")

// SetMode rejects values outside settable range locally: nothing is sent
// and state is unchanged.
func (self *Vehicle) SetMode(mode protocol.Mode) (FanoutReport, error) {
	if !mode.Settable() {
		return FanoutReport{}, errors.NotValidf("uas=%d mode=%d", self.id, uint8(mode))
	}
	self.mu.Lock()
	self.state.Mode = mode
	self.mu.Unlock()
	r := self.send(&protocol.SetMode{Target: self.id, Mode: mode})
	return r, r.Err()
}

// SetParameter id longer than wire field is truncated.
func (self *Vehicle) SetParameter(component uint8, id string, value float32) (FanoutReport, error) {
	if id == "" {
		return FanoutReport{}, errors.NotValidf("uas=%d param id empty", self.id)
	}
	r := self.send(&protocol.ParamSet{
		TargetSystem:    self.id,
		TargetComponent: component,
		ParamID:         id,
		Value:           value,
	})
	return r, r.Err()
}

func (self *Vehicle) RequestParameters() (FanoutReport, error) {
	r := self.send(&protocol.ParamRequestList{TargetSystem: self.id})
	return r, r.Err()
}

// RequestStream starts or stops periodic message kind at rate Hz.
func (self *Vehicle) RequestStream(component uint8, kind protocol.Kind, rateHz uint16, start bool) (FanoutReport, error) {
	r := self.send(&protocol.RequestStream{
		TargetSystem:    self.id,
		TargetComponent: component,
		MessageID:       kind,
		Rate:            rateHz,
		Start:           start,
	})
	return r, r.Err()
}

func (self *Vehicle) EnableAllData(enable bool) (FanoutReport, error) {
	return self.RequestStream(0, streamAllKind, streamAllRate, enable)
}

func (self *Vehicle) EnableRawSensorData(enable bool) (FanoutReport, error) {
	return self.RequestStream(0, protocol.KindRawIMU, streamRawIMURate, enable)
}

// ManualControl scales and stores setpoint, transmits only in manual mode
// and no faster than configured rate. sent=false means nothing was written.
func (self *Vehicle) ManualControl(roll, pitch, yaw, thrust float64) (sent bool, err error) {
	sp := Setpoint{
		Roll:   roll * manualRollPitchScale,
		Pitch:  pitch * manualRollPitchScale,
		Yaw:    yaw * manualYawScale,
		Thrust: thrust * manualThrustScale,
	}
	self.mu.Lock()
	self.state.Manual = sp
	manual := self.state.Mode == protocol.ModeManual
	self.mu.Unlock()
	if !manual || !self.manual.Allow() {
		return false, nil
	}

	r := self.send(&protocol.ManualControl{
		Target: self.id,
		Roll:   float32(sp.Roll), Pitch: float32(sp.Pitch), Yaw: float32(sp.Yaw), Thrust: float32(sp.Thrust),
		RollManual: true, PitchManual: true, YawManual: true, ThrustManual: true,
	})
	self.mu.Lock()
	self.emit(AttitudeThrustSetpointChanged{EventHeader: self.header(self.now()),
		Setpoint: Setpoint{Roll: roll, Pitch: pitch, Yaw: yaw, Thrust: thrust}})
	self.mu.Unlock()
	return r.Sent > 0, r.Err()
}

// Action encodes discrete command. No confirmation here, see Command.
func (self *Vehicle) Action(action protocol.Action) (FanoutReport, error) {
	if action > protocol.ActionShutdown {
		return FanoutReport{}, errors.NotValidf("uas=%d action=%d", self.id, uint8(action))
	}
	r := self.send(&protocol.ActionCommand{Target: self.id, Action: action})
	return r, r.Err()
}

// Command is operator entry point for actions. Destructive actions pass
// ConfirmGate first, rejected ones never reach encoder.
func (self *Vehicle) Command(ctx context.Context, action protocol.Action) (FanoutReport, error) {
	if action.Destructive() {
		if self.confirm == nil {
			return FanoutReport{}, errors.Annotatef(ErrNotConfirmed, "uas=%d action=%s no confirmation gate", self.id, action.String())
		}
		ok, err := self.confirm.Confirm(ctx, self.id, action)
		if err != nil {
			return FanoutReport{}, errors.Annotatef(err, "uas=%d action=%s confirm", self.id, action.String())
		}
		if !ok {
			self.log.Infof("action=%s rejected by operator", action.String())
			return FanoutReport{}, errors.Annotatef(ErrNotConfirmed, "uas=%d action=%s", self.id, action.String())
		}
	}
	return self.Action(action)
}

func (self *Vehicle) Launch() (FanoutReport, error)        { return self.Action(protocol.ActionLaunch) }
func (self *Vehicle) EnableMotors() (FanoutReport, error)  { return self.Action(protocol.ActionMotorsStart) }
func (self *Vehicle) DisableMotors() (FanoutReport, error) { return self.Action(protocol.ActionMotorsStop) }
func (self *Vehicle) Halt() (FanoutReport, error)          { return self.Action(protocol.ActionHalt) }
func (self *Vehicle) Continue() (FanoutReport, error)      { return self.Action(protocol.ActionContinue) }
func (self *Vehicle) Home() (FanoutReport, error)          { return self.Action(protocol.ActionReturn) }
func (self *Vehicle) EmergencyLand() (FanoutReport, error) { return self.Action(protocol.ActionEmergencyLand) }

func (self *Vehicle) EmergencyKill(ctx context.Context) (FanoutReport, error) {
	return self.Command(ctx, protocol.ActionEmergencyKill)
}

func (self *Vehicle) Shutdown(ctx context.Context) (FanoutReport, error) {
	return self.Command(ctx, protocol.ActionShutdown)
}
