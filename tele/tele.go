// Package tele exports vehicle events to the station MQTT broker.
//
// Contract:
// - Init fails only with invalid config, network issues are ignored
// - OnEvent/State/Error only encode and hand off to inbox, disk write
//   and network delivery happen in background; full inbox blocks caller
//   until space or Close
// - events are delivered at least once, retained state may be lost
package tele

import (
	"context"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/spq"
	"github.com/temoto/uasbridge/helpers"
	"github.com/temoto/uasbridge/log2"
	tele_config "github.com/temoto/uasbridge/tele/config"
	"github.com/temoto/uasbridge/uas"
)

const (
	DefaultNetworkTimeout = 30 * time.Second
	defaultKeepalive      = 60 * time.Second
	defaultPingTimeout    = 30 * time.Second

	inboxSize = 256

	retryMin = 1 * time.Second
	retryMax = 2 * time.Minute
)

// State is single byte retained on station state topic.
type State byte

const (
	StateDisconnected State = iota
	StateBoot
	StateRunning
	StateStopping
)

// Teler is uas.Observer with persistent delivery.
type Teler interface {
	Init(ctx context.Context, log *log2.Log, c tele_config.Config) error
	Close()
	State(State)
	OnEvent(uas.Event)
	// Error reports station error line, suitable for log2 error hook.
	Error(error)
}

var (
	_ Teler        = &tele{}
	_ uas.Observer = &tele{}
)

type tele struct {
	config    tele_config.Config
	log       *log2.Log
	transport Transporter
	q         *spq.Queue
	inbox     chan qitem
	inboxDone chan struct{}
	// persist step, qpush unless replaced by test
	store     func(qitem) error
	alive     *alive.Alive
	backoff   helpers.Backoff
	// nil = all
	kinds map[EventKind]struct{}
}

func New() Teler { return &tele{} }

func NewWithTransporter(trans Transporter) Teler { return &tele{transport: trans} }

func (self *tele) Init(ctx context.Context, log *log2.Log, c tele_config.Config) error {
	self.config = c
	// own clone without error hook, tele errors must not loop back into tele
	self.log = log.Prefixed("")
	if c.LogDebug {
		self.log = log.Clone(log2.LDebug)
	}
	self.log.SetErrorFunc(nil)
	if !c.Enabled {
		self.log.Infof("tele disabled")
		return nil
	}
	if c.StationID <= 0 {
		return errors.NotValidf("tele station_id=%d", c.StationID)
	}
	if c.PersistPath == "" {
		return errors.NotValidf("tele persist_path empty")
	}
	if len(c.Events) != 0 {
		self.kinds = make(map[EventKind]struct{}, len(c.Events))
		for _, s := range c.Events {
			k, err := ParseEventKind(s)
			if err != nil {
				return errors.Annotate(err, "tele config")
			}
			self.kinds[k] = struct{}{}
		}
	}

	// test code sets .transport
	if self.transport == nil {
		self.transport = &transportMqtt{}
	}
	if err := self.transport.Init(ctx, self.log, c, []byte{byte(StateDisconnected)}); err != nil {
		return errors.Annotate(err, "tele transport")
	}
	var err error
	self.q, err = spq.Open(c.PersistPath)
	if err != nil {
		return errors.Annotate(err, "tele queue")
	}

	self.backoff = helpers.Backoff{Min: retryMin, Max: retryMax, K: 2}
	if self.store == nil {
		self.store = self.qpush
	}
	self.inbox = make(chan qitem, inboxSize)
	self.inboxDone = make(chan struct{})
	self.alive = alive.NewAlive()
	self.alive.Add(1)
	go self.qworker()
	go self.inboxWorker()
	self.State(StateBoot)
	return nil
}

// Close stops delivery. Undelivered messages stay in persistent queue.
func (self *tele) Close() {
	if self.alive == nil {
		return
	}
	self.alive.Stop()
	<-self.inboxDone
	if err := self.q.Close(); err != nil {
		self.log.Errorf("tele queue close err=%v", err)
	}
	self.alive.Wait()
	self.transport.Close()
}

func (self *tele) enabled() bool { return self.alive != nil && self.alive.IsRunning() }

func (self *tele) State(s State) {
	if !self.enabled() {
		return
	}
	self.enqueue(qitem{tag: qState, payload: []byte{byte(s)}})
}

func (self *tele) OnEvent(e uas.Event) {
	if !self.enabled() {
		return
	}
	kind, payload, err := encodeEvent(e)
	if err != nil {
		self.log.Error(err)
		return
	}
	if !self.wants(kind) {
		return
	}
	self.enqueue(qitem{tag: qEvent, uas: e.Head().UAS, payload: payload})
}

func (self *tele) Error(err error) {
	if !self.enabled() || err == nil {
		return
	}
	if !self.wants(EventError) {
		return
	}
	payload, err := encodeError(err, time.Now())
	if err != nil {
		self.log.Errorf("tele error encode err=%v", err)
		return
	}
	self.enqueue(qitem{tag: qEvent, payload: payload})
}

func (self *tele) wants(kind EventKind) bool {
	if self.kinds == nil {
		return true
	}
	_, ok := self.kinds[kind]
	return ok
}

// denote value type in persistent queue bytes form
const (
	qEvent byte = 1
	qState byte = 2
)

type qitem struct {
	tag     byte
	uas     uint8
	payload []byte
}

func (self *tele) enqueue(it qitem) {
	select {
	case self.inbox <- it:
	case <-self.alive.StopChan():
		self.log.Errorf("tele stopping, lost tag=%d uas=%d", it.tag, it.uas)
	}
}

// inboxWorker moves items from memory to persistent queue.
// On stop it drains what is already buffered, then Close may close the queue.
func (self *tele) inboxWorker() {
	defer close(self.inboxDone)
	stopch := self.alive.StopChan()
	for {
		select {
		case it := <-self.inbox:
			self.persist(it)
		case <-stopch:
			for {
				select {
				case it := <-self.inbox:
					self.persist(it)
				default:
					return
				}
			}
		}
	}
}

func (self *tele) persist(it qitem) {
	if err := self.store(it); err != nil {
		self.log.Errorf("tele push tag=%d uas=%d err=%v", it.tag, it.uas, err)
	}
}

func (self *tele) qpush(it qitem) error {
	buf := proto.NewBuffer(make([]byte, 0, 8+len(it.payload)))
	if err := buf.EncodeVarint(uint64(it.tag)); err != nil {
		return err
	}
	if err := buf.EncodeVarint(uint64(it.uas)); err != nil {
		return err
	}
	if err := buf.EncodeRawBytes(it.payload); err != nil {
		return err
	}
	return self.q.Push(buf.Bytes())
}

func (self *tele) qworker() {
	defer self.alive.Done()
	for {
		box, err := self.q.Peek()
		switch err {
		case nil:
			b := box.Bytes()
			var del bool
			del, err = self.qhandle(b)
			if err != nil {
				self.log.Errorf("tele qhandle b=%x err=%v", b, err)
			}
			if del {
				if err = self.q.Delete(box); err != nil {
					self.log.Errorf("tele qhandle Delete b=%x err=%v", b, err)
				}
				self.backoff.Reset()
				continue
			}
			if err = self.q.DeletePush(box); err != nil {
				self.log.Errorf("tele qhandle DeletePush b=%x err=%v", b, err)
			}
			self.retryDelay()

		case spq.ErrClosed:
			if self.alive.IsRunning() {
				self.log.Errorf("CRITICAL tele spq closed unexpectedly")
			}
			return

		default:
			self.log.Errorf("CRITICAL tele spq err=%v", err)
			self.retryDelay()
		}
	}
}

func (self *tele) retryDelay() {
	if !self.backoff.Wait(self.alive.StopChan()) {
		self.log.Debugf("tele retry cancelled by stop")
	}
}

// qhandle returns true when queue item is done: delivered or undeliverable.
func (self *tele) qhandle(b []byte) (bool, error) {
	buf := proto.NewBuffer(b)
	tag, err := buf.DecodeVarint()
	if err != nil {
		return true, errors.Annotate(err, "tele queue tag")
	}
	uasID, err := buf.DecodeVarint()
	if err != nil {
		return true, errors.Annotate(err, "tele queue uas")
	}
	payload, err := buf.DecodeRawBytes(false)
	if err != nil {
		return true, errors.Annotate(err, "tele queue payload")
	}

	switch byte(tag) {
	case qEvent:
		return self.transport.SendEvent(uint8(uasID), payload), nil
	case qState:
		if len(payload) != 1 {
			return true, errors.NotValidf("tele queue state length=%d", len(payload))
		}
		return self.transport.SendState(payload), nil
	default:
		return true, errors.NotValidf("tele queue tag=%d", tag)
	}
}
