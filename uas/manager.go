package uas

import (
	"sort"
	"strconv"
	"sync"

	"github.com/juju/errors"
	"github.com/temoto/uasbridge/helpers"
	"github.com/temoto/uasbridge/protocol"
)

// Manager routes frames to vehicles by sender id, creating vehicle on first frame.
// Different vehicles receive concurrently, each Vehicle serializes its own frames.
type Manager struct {
	env       Env
	observers Observers

	mu       sync.RWMutex
	vehicles map[uint8]*Vehicle
}

func NewManager(env Env) *Manager {
	env.Config = env.Config.WithDefaults()
	if env.Stats == nil {
		env.Stats = NoopStats{}
	}
	return &Manager{
		env:      env,
		vehicles: make(map[uint8]*Vehicle),
	}
}

// Subscribe observer to events of all vehicles, present and future.
func (self *Manager) Subscribe(o Observer) { self.observers.Add(o) }

// RegisterConfigured creates vehicles listed in config.
func (self *Manager) RegisterConfigured() error {
	errs := make([]error, 0)
	for _, vc := range self.env.Config.Vehicles {
		id, err := strconv.ParseUint(vc.ID, 10, 8)
		if err != nil {
			errs = append(errs, errors.NotValidf("config vehicle id=%s", vc.ID))
			continue
		}
		if _, _, err = self.Register(uint8(id)); err != nil {
			errs = append(errs, err)
		}
	}
	return helpers.FoldErrors(errs)
}

// Register returns existing or new vehicle, created=true for new.
func (self *Manager) Register(id uint8) (v *Vehicle, created bool, err error) {
	self.mu.Lock()
	defer self.mu.Unlock()
	if v, ok := self.vehicles[id]; ok {
		return v, false, nil
	}
	v, err = NewVehicle(id, self.env)
	if err != nil {
		return nil, false, err
	}
	v.Subscribe(&self.observers)
	self.vehicles[id] = v
	self.env.Log.Infof("uas=%d registered name=%s", id, v.Name())
	return v, true, nil
}

// Deregister destroys vehicle state, returns false if id was not registered.
func (self *Manager) Deregister(id uint8) bool {
	self.mu.Lock()
	defer self.mu.Unlock()
	if _, ok := self.vehicles[id]; !ok {
		return false
	}
	delete(self.vehicles, id)
	self.env.Log.Infof("uas=%d deregistered", id)
	return true
}

func (self *Manager) Get(id uint8) (*Vehicle, bool) {
	self.mu.RLock()
	v, ok := self.vehicles[id]
	self.mu.RUnlock()
	return v, ok
}

// List returns vehicles ordered by id.
func (self *Manager) List() []*Vehicle {
	self.mu.RLock()
	vs := make([]*Vehicle, 0, len(self.vehicles))
	for _, v := range self.vehicles {
		vs = append(vs, v)
	}
	self.mu.RUnlock()
	sort.Slice(vs, func(i, j int) bool { return vs[i].id < vs[j].id })
	return vs
}

// Receive is frame sink for link readers.
func (self *Manager) Receive(link Link, f protocol.Frame) error {
	v, ok := self.Get(f.SystemID)
	if !ok {
		var err error
		if v, _, err = self.Register(f.SystemID); err != nil {
			return errors.Annotate(err, "uas register")
		}
	}
	return v.Receive(link, f)
}

// RemoveLink detaches closed transport from all vehicles.
func (self *Manager) RemoveLink(l Link) {
	for _, v := range self.List() {
		v.RemoveLink(l)
	}
}

// Stats is counters sink shared with link readers.
func (self *Manager) Stats() Stats { return self.env.Stats }
