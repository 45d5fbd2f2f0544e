package uas

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/temoto/uasbridge/helpers"
	"github.com/temoto/uasbridge/link"
	"github.com/temoto/uasbridge/log2"
	"github.com/temoto/uasbridge/protocol"
	uas_config "github.com/temoto/uasbridge/uas/config"
)

const testSystemID = 7

var testEpoch = time.Date(2020, 5, 17, 10, 0, 0, 0, time.UTC)

type mockAlarm struct {
	mu    sync.Mutex
	calls []string
}

func (m *mockAlarm) record(s string) {
	m.mu.Lock()
	m.calls = append(m.calls, s)
	m.mu.Unlock()
}

func (m *mockAlarm) Say(text string)             { m.record("say:" + text) }
func (m *mockAlarm) StartEmergency(label string) { m.record("start:" + label) }
func (m *mockAlarm) StopEmergency()              { m.record("stop") }

func (m *mockAlarm) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockAlarm) Count(prefix string) int {
	n := 0
	for _, c := range m.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnEvent(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) Count(match func(Event) bool) int {
	n := 0
	for _, e := range r.Events() {
		if match(e) {
			n++
		}
	}
	return n
}

func isModeChanged(e Event) bool   { _, ok := e.(ModeChanged); return ok }
func isStatusChanged(e Event) bool { _, ok := e.(StatusChanged); return ok }
func isUnknown(e Event) bool       { _, ok := e.(UnknownMessageDetected); return ok }

type acceptGate bool

func (g acceptGate) Confirm(context.Context, uint8, protocol.Action) (bool, error) { return bool(g), nil }

type testEnv struct {
	t     testing.TB
	clock *helpers.FixedClock
	alarm *mockAlarm
	rec   *recorder
	v     *Vehicle
	link  *link.Mock
	air   *protocol.Packer
}

func newTestEnv(t testing.TB, cfg uas_config.Config) *testEnv {
	env := &testEnv{
		t:     t,
		clock: helpers.NewFixedClock(testEpoch),
		alarm: &mockAlarm{},
		rec:   &recorder{},
		link:  link.NewMock("mock0", true),
		air:   protocol.NewPacker(testSystemID, 1),
	}
	v, err := NewVehicle(testSystemID, Env{
		Config:  cfg,
		Log:     log2.NewTest(t, log2.LDebug),
		Alarm:   env.alarm,
		Confirm: acceptGate(false),
		Now:     env.clock.Now,
	})
	require.NoError(t, err)
	v.Subscribe(env.rec)
	env.v = v
	return env
}

func (env *testEnv) recv(m protocol.Message) {
	env.t.Helper()
	require.NoError(env.t, env.v.Receive(env.link, env.air.Pack(m)))
}

func (env *testEnv) status(mode protocol.Mode, status protocol.Status, mv uint16) {
	env.t.Helper()
	env.recv(&protocol.SysStatus{Mode: mode, Status: status, VBat: mv})
}

// sent decodes all frames written to mock link.
func sentMessages(t testing.TB, l *link.Mock) []protocol.Message {
	t.Helper()
	fs, err := l.WrittenFrames()
	require.NoError(t, err)
	ms := make([]protocol.Message, 0, len(fs))
	for _, f := range fs {
		m, err := protocol.Decode(f)
		require.NoError(t, err)
		ms = append(ms, m)
	}
	return ms
}
