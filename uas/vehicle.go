// Package uas is vehicle state model driven by telemetry frames,
// derived battery/time metrics, alarms and outbound commands.
package uas

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/uasbridge/log2"
	"github.com/temoto/uasbridge/protocol"
	uas_config "github.com/temoto/uasbridge/uas/config"
	"golang.org/x/time/rate"
)

// ConfirmGate asks operator to accept destructive action.
type ConfirmGate interface {
	Confirm(ctx context.Context, uasID uint8, action protocol.Action) (bool, error)
}

// Env is collaborators shared by vehicles of one session.
type Env struct {
	Config  uas_config.Config
	Log     *log2.Log
	Alarm   AlarmSink
	Confirm ConfirmGate
	Stats   Stats
	// nil = time.Now
	Now func() time.Time
}

type Attitude struct {
	Roll, Pitch, Yaw                float32
	RollSpeed, PitchSpeed, YawSpeed float32
}

type Position struct {
	X, Y, Z    float32
	VX, VY, VZ float32
}

// Setpoint is scaled manual control vector.
type Setpoint struct {
	Roll, Pitch, Yaw, Thrust float64
}

// State is snapshot of vehicle model.
type State struct {
	ID              uint8
	Type            uint8
	Mode            protocol.Mode
	Status          protocol.Status
	Attitude        Attitude
	Position        Position
	Battery         BatteryState
	Manual          Setpoint
	Load            float64
	ReceiveDropRate float64
	SendDropRate    float64
	LowBattery      bool
	Emergency       bool
}

// Vehicle is one tracked remote system.
// Decode and operator intent paths are serialized by mu.
type Vehicle struct {
	id        uint8
	name      string
	log       *log2.Log
	now       func() time.Time
	startedAt time.Time
	stats     Stats
	confirm   ConfirmGate
	packer    *protocol.Packer
	manual    *rate.Limiter
	observers Observers
	links     linkSet
	sent      uint64

	mu      sync.Mutex
	state   State
	clock   *TimeReconciler
	battery *BatteryEstimator
	alarm   *AlarmController
	unknown UnknownMessageTracker
	drops   dropCounter
}

func NewVehicle(id uint8, env Env) (*Vehicle, error) {
	cfg := env.Config.WithDefaults()
	now := env.Now
	if now == nil {
		now = time.Now
	}
	self := &Vehicle{
		id:        id,
		name:      vehicleName(cfg, id),
		log:       env.Log.Prefixed(fmt.Sprintf("uas=%d ", id)),
		now:       now,
		startedAt: now(),
		stats:     env.Stats,
		confirm:   env.Confirm,
		packer:    protocol.NewPacker(uint8(cfg.GCS.System()), uint8(cfg.GCS.ComponentID)),
		manual:    rate.NewLimiter(rate.Inf, 1),
		clock:     NewTimeReconciler(now),
		alarm:     NewAlarmController(env.Alarm),
	}
	if self.stats == nil {
		self.stats = NoopStats{}
	}
	if cfg.Manual.RateHz > 0 {
		self.manual = rate.NewLimiter(rate.Limit(cfg.Manual.RateHz), 1)
	}
	var err error
	if self.battery, err = NewBatteryEstimator(cfg.Battery, self.startedAt); err != nil {
		return nil, errors.Annotatef(err, "uas=%d", id)
	}
	self.state.ID = id
	self.state.Battery = self.battery.State()
	return self, nil
}

func vehicleName(c uas_config.Config, id uint8) string {
	key := fmt.Sprint(id)
	for _, v := range c.Vehicles {
		if v.ID == key && v.Name != "" {
			return v.Name
		}
	}
	return fmt.Sprintf("MAV %03d", id)
}

func (self *Vehicle) ID() uint8      { return self.id }
func (self *Vehicle) Name() string   { return self.name }
func (self *Vehicle) String() string { return self.name }

func (self *Vehicle) Uptime() time.Duration { return self.now().Sub(self.startedAt) }

func (self *Vehicle) State() State {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.state
}

// Subscribe adds observer for events of this vehicle.
func (self *Vehicle) Subscribe(o Observer) { self.observers.Add(o) }

// AddLink associates transport with vehicle, returns false if already present.
func (self *Vehicle) AddLink(l Link) bool { return self.links.add(l) }

func (self *Vehicle) RemoveLink(l Link) bool {
	self.mu.Lock()
	self.drops.forget(l)
	self.mu.Unlock()
	return self.links.remove(l)
}

func (self *Vehicle) Links() []Link { return self.links.snapshot() }

// TimeOffset of onboard clock, ok=false until established.
func (self *Vehicle) TimeOffset() (time.Duration, bool) { return self.clock.Offset() }

func (self *Vehicle) header(t time.Time) EventHeader {
	return EventHeader{UAS: self.id, Time: t}
}

// emit is called with mu held.
func (self *Vehicle) emit(e Event) { self.observers.OnEvent(e) }

// send packs message and delivers to every connected link.
// Must not be called with mu held.
func (self *Vehicle) send(m protocol.Message) FanoutReport {
	f := self.packer.Pack(m)
	r := fanout(self.links.snapshot(), f.Wire(), self.stats)
	if r.Sent > 0 {
		atomic.AddUint64(&self.sent, 1)
	}
	if err := r.Err(); err != nil {
		self.log.Errorf("send kind=%s %v", m.Kind().String(), err)
	} else {
		self.log.Debugf("send kind=%s sent=%d disconnected=%d", m.Kind().String(), r.Sent, r.Disconnected)
	}
	return r
}
