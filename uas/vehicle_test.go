package uas

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/uasbridge/link"
	"github.com/temoto/uasbridge/protocol"
	uas_config "github.com/temoto/uasbridge/uas/config"
)

func TestModeStatusTransitions(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, uas_config.Config{})

	type step struct {
		mode   protocol.Mode
		status protocol.Status
	}
	steps := []step{
		{protocol.ModeLocked, protocol.StatusStandby},
		{protocol.ModeLocked, protocol.StatusStandby},
		{protocol.ModeManual, protocol.StatusStandby},
		{protocol.ModeManual, protocol.StatusStandby},
		{protocol.ModeManual, protocol.StatusActive},
		{protocol.ModeManual, protocol.StatusActive},
		{protocol.ModeAuto, protocol.StatusActive},
	}
	for _, s := range steps {
		env.status(s.mode, s.status, 12600)
	}
	assert.Equal(t, 3, env.rec.Count(isModeChanged))
	assert.Equal(t, 2, env.rec.Count(isStatusChanged))
	assert.Equal(t, []string{
		"say:System 7 is now in LOCKED MODE and changed status to STANDBY",
		"say:System 7 is now in MANUAL MODE",
		"say:System 7 changed status to ACTIVE",
		"say:System 7 is now in AUTO MODE",
	}, env.alarm.Calls())

	st := env.v.State()
	assert.Equal(t, protocol.ModeAuto, st.Mode)
	assert.Equal(t, protocol.StatusActive, st.Status)
}

func TestEmergencyMutesAnnouncements(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, uas_config.Config{})

	env.status(protocol.ModeAuto, protocol.StatusActive, 12600)
	env.status(protocol.ModeAuto, protocol.StatusCritical, 12600)
	env.status(protocol.ModeAuto, protocol.StatusCritical, 12600)
	env.status(protocol.ModeGuided, protocol.StatusCritical, 12600)
	assert.True(t, env.v.State().Emergency)
	env.status(protocol.ModeGuided, protocol.StatusActive, 12600)
	env.status(protocol.ModeGuided, protocol.StatusActive, 12600)

	assert.Equal(t, []string{
		"say:System 7 is now in AUTO MODE and changed status to ACTIVE",
		"start:CRITICAL",
		"stop",
		"say:System 7 changed status to ACTIVE",
	}, env.alarm.Calls())
	assert.False(t, env.v.State().Emergency)
	// mode/status events are not muted
	assert.Equal(t, 2, env.rec.Count(isModeChanged))
	assert.Equal(t, 3, env.rec.Count(isStatusChanged))
}

func TestBatteryFullNeverAlarms(t *testing.T) {
	t.Parallel()

	type Case struct {
		name    string
		battery uas_config.Battery
		fullMV  uint16
	}
	cases := []Case{
		{"default", uas_config.Battery{}, 12600},
		{"lipo-1s", uas_config.Battery{Type: "lipoly", Cells: 1}, 4200},
		{"lipo-3s", uas_config.Battery{Type: "lipoly", Cells: 3}, 12600},
		{"lipo-4s", uas_config.Battery{Type: "lipoly", Cells: 4}, 16800},
		{"lipo-6s", uas_config.Battery{Type: "lipoly", Cells: 6}, 25200},
		{"override", uas_config.Battery{Type: "life", FullVoltage: 7.2, EmptyVoltage: 6}, 7200},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(t, uas_config.Config{Battery: c.battery})
			full := float64(c.fullMV) / 1000

			for i := 0; i < 60; i++ {
				env.clock.Add(time.Second)
				env.status(protocol.ModeAuto, protocol.StatusActive, c.fullMV)
				b := env.v.State().Battery
				require.InDelta(t, 100, b.ChargePercent, 0.01, "frame=%d filtered=%.3f", i, b.FilteredVoltage)
			}
			b := env.v.State().Battery
			assert.InDelta(t, full, b.FilteredVoltage, 0.001)
			assert.InDelta(t, full, b.StartVoltage, 1e-9)
			assert.Equal(t, 0, env.alarm.Count("start:"))
			assert.Equal(t, 0, env.alarm.Count("stop"))
			assert.False(t, env.v.State().LowBattery)
		})
	}
}

func TestBatteryLowAlarmEdges(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, uas_config.Config{})

	for i := 0; i < 60; i++ {
		env.clock.Add(time.Second)
		env.status(protocol.ModeAuto, protocol.StatusActive, 10500)
	}
	b := env.v.State().Battery
	assert.InDelta(t, 0, b.ChargePercent, 0.01)
	assert.Equal(t, 1, env.alarm.Count("start:BATTERY"))
	assert.Equal(t, 0, env.alarm.Count("stop"))
	assert.True(t, env.v.State().LowBattery)

	for i := 0; i < 60; i++ {
		env.clock.Add(time.Second)
		env.status(protocol.ModeAuto, protocol.StatusActive, 12600)
	}
	assert.InDelta(t, 100, env.v.State().Battery.ChargePercent, 0.01)
	assert.Equal(t, 1, env.alarm.Count("start:BATTERY"))
	assert.Equal(t, 1, env.alarm.Count("stop"))
	assert.False(t, env.v.State().LowBattery)
}

func TestBatteryEvents(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, uas_config.Config{})
	env.status(protocol.ModeAuto, protocol.StatusActive, 12000)

	var battery *BatteryChanged
	var voltage *VoltageChanged
	var drop *DropRateChanged
	for _, e := range env.rec.Events() {
		switch e := e.(type) {
		case BatteryChanged:
			battery = &e
		case VoltageChanged:
			voltage = &e
		case DropRateChanged:
			drop = &e
		}
	}
	require.NotNil(t, battery)
	require.NotNil(t, voltage)
	require.NotNil(t, drop)
	assert.Equal(t, 12.0, voltage.Voltage)
	assert.InDelta(t, 12.42, battery.Battery.FilteredVoltage, 1e-9)
	assert.InDelta(t, 100*(12.42-10.5)/(12.6-10.5), battery.Battery.ChargePercent, 1e-9)
	assert.Equal(t, uint8(testSystemID), battery.UAS)
	assert.Equal(t, 0.0, drop.Receive)
}

func TestUnknownReportedOncePerKind(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, uas_config.Config{})

	for _, kind := range []protocol.Kind{200, 200, 201, 200, 201} {
		env.recv(&protocol.Unknown{ID: kind, Payload: []byte{1, 2, 3}})
	}
	assert.Equal(t, 2, env.rec.Count(isUnknown))
	assert.Equal(t, []string{
		"say:UNABLE TO DECODE MESSAGE WITH ID 200 FROM SYSTEM 7",
		"say:UNABLE TO DECODE MESSAGE WITH ID 201 FROM SYSTEM 7",
	}, env.alarm.Calls())
}

func TestReceiveUplinkKindReportedUnknown(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, uas_config.Config{})

	env.recv(&protocol.SetMode{Target: testSystemID, Mode: protocol.ModeManual})
	env.recv(&protocol.SetMode{Target: testSystemID, Mode: protocol.ModeManual})
	env.recv(&protocol.ActionCommand{Target: testSystemID, Action: protocol.ActionHold})
	assert.Equal(t, 2, env.rec.Count(isUnknown))
	assert.Equal(t, []string{
		"say:UNABLE TO DECODE MESSAGE WITH ID 11 FROM SYSTEM 7",
		"say:UNABLE TO DECODE MESSAGE WITH ID 10 FROM SYSTEM 7",
	}, env.alarm.Calls())
	assert.Equal(t, protocol.ModeUninit, env.v.State().Mode)
}

func TestReceiveMalformedPayload(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, uas_config.Config{})
	f := protocol.Frame{SystemID: testSystemID, Kind: protocol.KindSysStatus, Payload: []byte{1, 2}}
	err := env.v.Receive(env.link, f)
	require.Error(t, err)
	assert.True(t, errors.IsNotValid(err))
	assert.Empty(t, env.rec.Events())
	assert.Equal(t, protocol.ModeUninit, env.v.State().Mode)
}

func TestReceiveIgnoresOtherSystem(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, uas_config.Config{})
	other := protocol.NewPacker(9, 1)
	require.NoError(t, env.v.Receive(env.link, other.Pack(&protocol.SysStatus{Mode: protocol.ModeAuto})))
	assert.Empty(t, env.rec.Events())
	assert.Empty(t, env.v.Links())
	assert.Equal(t, protocol.ModeUninit, env.v.State().Mode)
}

func TestReceiveAddsLinkOnce(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, uas_config.Config{})
	second := link.NewMock("mock1", true)
	env.recv(&protocol.Heartbeat{Type: 2})
	env.recv(&protocol.Heartbeat{Type: 2})
	require.NoError(t, env.v.Receive(second, env.air.Pack(&protocol.Heartbeat{Type: 3})))
	require.Len(t, env.v.Links(), 2)
	assert.Equal(t, "mock0", env.v.Links()[0].Name())

	types := 0
	beats := 0
	for _, e := range env.rec.Events() {
		switch e.(type) {
		case Heartbeat:
			beats++
		case SystemTypeChanged:
			types++
		}
	}
	assert.Equal(t, 3, beats)
	assert.Equal(t, 2, types)
	assert.Equal(t, uint8(3), env.v.State().Type)

	assert.True(t, env.v.RemoveLink(second))
	assert.False(t, env.v.RemoveLink(second))
	assert.Len(t, env.v.Links(), 1)
}

func TestTelemetryEvents(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, uas_config.Config{})

	env.recv(&protocol.Attitude{Usec: 5e6, Roll: 0.1, Pitch: -0.2, Yaw: 1.5, YawSpeed: 0.01})
	env.recv(&protocol.Position{Usec: 6e6, X: 1, Y: 2, Z: -3, VZ: 0.5})
	env.recv(&protocol.ParamValue{ParamID: "ROLL_P", Value: 1.25})
	env.recv(&protocol.StatusText{Severity: 4, Text: "gps lost"})
	env.recv(&protocol.PatternDetected{Confidence: 0.75, File: "/tmp/p.png", Detected: true})
	env.recv(&protocol.AuxStatus{Load: 455})
	env.recv(&protocol.Debug{Index: 3, Value: 42})

	st := env.v.State()
	assert.Equal(t, float32(1.5), st.Attitude.Yaw)
	assert.Equal(t, float32(0.01), st.Attitude.YawSpeed)
	assert.Equal(t, float32(-3), st.Position.Z)
	assert.Equal(t, 45.5, st.Load)

	offset, ok := env.v.TimeOffset()
	require.True(t, ok)
	values := map[string]float64{}
	var att AttitudeChanged
	var pos LocalPositionChanged
	var param ParameterChanged
	var text TextMessageReceived
	var det DetectionReceived
	for _, e := range env.rec.Events() {
		switch e := e.(type) {
		case ValueChanged:
			values[e.Name] = e.Value
		case AttitudeChanged:
			att = e
		case LocalPositionChanged:
			pos = e
		case ParameterChanged:
			param = e
		case TextMessageReceived:
			text = e
		case DetectionReceived:
			det = e
		}
	}
	assert.WithinDuration(t, testEpoch, att.Time, 0, "first since-boot sample fixes offset")
	assert.WithinDuration(t, testEpoch.Add(time.Second), pos.Time, 0)
	assert.Equal(t, testEpoch.Sub(time.Unix(5, 0)), offset)
	assert.Equal(t, float32(2), pos.Position.Y)
	assert.Equal(t, uint8(1), param.Component)
	assert.Equal(t, "ROLL_P", param.ParamID)
	assert.Equal(t, float32(1.25), param.Value)
	assert.Equal(t, "gps lost", text.Text)
	assert.Equal(t, "/tmp/p.png", det.File)
	assert.True(t, det.Detected)
	assert.InDelta(t, -0.2, values["pitch IMU"], 1e-6)
	assert.InDelta(t, 0.5, values["vz"], 1e-6)
	assert.InDelta(t, 0.455, values["Load"], 1e-9)
	assert.Equal(t, 42.0, values["debug 3"])
}

func TestSetModeOutOfRange(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, uas_config.Config{})
	env.v.AddLink(env.link)
	env.status(protocol.ModeAuto, protocol.StatusActive, 12600)

	for _, mode := range []protocol.Mode{protocol.ModeUninit, protocol.ModeReady, 42} {
		r, err := env.v.SetMode(mode)
		require.Error(t, err, "mode=%d", mode)
		assert.True(t, errors.IsNotValid(err))
		assert.Equal(t, 0, r.Sent)
	}
	assert.Empty(t, env.link.Written())
	assert.Equal(t, protocol.ModeAuto, env.v.State().Mode)

	r, err := env.v.SetMode(protocol.ModeGuided)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Sent)
	assert.Equal(t, protocol.ModeGuided, env.v.State().Mode)
	ms := sentMessages(t, env.link)
	require.Len(t, ms, 1)
	assert.Equal(t, &protocol.SetMode{Target: testSystemID, Mode: protocol.ModeGuided}, ms[0])
}

func TestFanoutIsolatesLinks(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, uas_config.Config{})
	links := []*link.Mock{
		link.NewMock("a", true),
		link.NewMock("b", false),
		link.NewMock("c", true),
	}
	for _, l := range links {
		env.v.AddLink(l)
	}

	r, err := env.v.Home()
	require.NoError(t, err)
	assert.Equal(t, 2, r.Sent)
	assert.Equal(t, 1, r.Disconnected)
	assert.Len(t, links[0].Written(), 1)
	assert.Len(t, links[1].Written(), 0)
	assert.Len(t, links[2].Written(), 1)
	assert.Equal(t, links[0].Written(), links[2].Written())

	links[0].SetWriteError(fmt.Errorf("cable cut"))
	r, err = env.v.Halt()
	require.Error(t, err)
	assert.Equal(t, 1, r.Sent)
	require.Len(t, r.Failed, 1)
	assert.Equal(t, "a", r.Failed[0].Link)
	assert.Equal(t, "link=a err=cable cut", err.Error())
	ms := sentMessages(t, links[2])
	require.Len(t, ms, 2)
	assert.Equal(t, &protocol.ActionCommand{Target: testSystemID, Action: protocol.ActionHalt}, ms[1])
}

func TestCommandConfirmation(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, uas_config.Config{})
	env.v.AddLink(env.link)
	ctx := context.Background()

	_, err := env.v.Shutdown(ctx)
	require.Error(t, err)
	assert.Equal(t, ErrNotConfirmed, errors.Cause(err))
	_, err = env.v.EmergencyKill(ctx)
	assert.Equal(t, ErrNotConfirmed, errors.Cause(err))
	assert.Empty(t, env.link.Written())

	env.v.confirm = acceptGate(true)
	_, err = env.v.EmergencyKill(ctx)
	require.NoError(t, err)
	_, err = env.v.Command(ctx, protocol.ActionLaunch)
	require.NoError(t, err)
	ms := sentMessages(t, env.link)
	require.Len(t, ms, 2)
	assert.Equal(t, protocol.ActionEmergencyKill, ms[0].(*protocol.ActionCommand).Action)
	assert.Equal(t, protocol.ActionLaunch, ms[1].(*protocol.ActionCommand).Action)

	env.v.confirm = nil
	_, err = env.v.Shutdown(ctx)
	assert.Equal(t, ErrNotConfirmed, errors.Cause(err))
}

func TestManualControl(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, uas_config.Config{})
	env.v.AddLink(env.link)

	sent, err := env.v.ManualControl(1, -1, 1, 0.5)
	require.NoError(t, err)
	assert.False(t, sent, "not in manual mode")
	assert.Empty(t, env.link.Written())
	assert.Equal(t, Setpoint{Roll: 0.2, Pitch: -0.2, Yaw: 0.5, Thrust: 0.5}, env.v.State().Manual)

	env.status(protocol.ModeManual, protocol.StatusActive, 12600)
	sent, err = env.v.ManualControl(0.5, 0, -1, 1)
	require.NoError(t, err)
	assert.True(t, sent)
	ms := sentMessages(t, env.link)
	require.Len(t, ms, 1)
	mc := ms[0].(*protocol.ManualControl)
	assert.Equal(t, uint8(testSystemID), mc.Target)
	assert.InDelta(t, 0.1, mc.Roll, 1e-6)
	assert.InDelta(t, -0.5, mc.Yaw, 1e-6)
	assert.Equal(t, float32(1), mc.Thrust)
	assert.True(t, mc.ThrustManual)

	var sp *AttitudeThrustSetpointChanged
	for _, e := range env.rec.Events() {
		if e, ok := e.(AttitudeThrustSetpointChanged); ok {
			sp = &e
		}
	}
	require.NotNil(t, sp)
	assert.Equal(t, Setpoint{Roll: 0.5, Pitch: 0, Yaw: -1, Thrust: 1}, sp.Setpoint)
}

func TestManualControlRateLimit(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, uas_config.Config{Manual: uas_config.Manual{RateHz: 1}})
	env.v.AddLink(env.link)
	env.status(protocol.ModeManual, protocol.StatusActive, 12600)

	sent := 0
	for i := 0; i < 10; i++ {
		ok, err := env.v.ManualControl(0, 0, 0, 0.5)
		require.NoError(t, err)
		if ok {
			sent++
		}
	}
	assert.Equal(t, 1, sent)
	assert.Len(t, env.link.Written(), 1)
}

func TestStreamAndParameterCommands(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, uas_config.Config{})
	env.v.AddLink(env.link)

	_, err := env.v.EnableAllData(true)
	require.NoError(t, err)
	_, err = env.v.EnableRawSensorData(false)
	require.NoError(t, err)
	_, err = env.v.RequestParameters()
	require.NoError(t, err)
	_, err = env.v.SetParameter(1, "A_VERY_LONG_PARAMETER", 0.5)
	require.NoError(t, err)
	_, err = env.v.SetParameter(1, "", 0.5)
	assert.True(t, errors.IsNotValid(err))

	ms := sentMessages(t, env.link)
	require.Len(t, ms, 4)
	assert.Equal(t, &protocol.RequestStream{TargetSystem: testSystemID, MessageID: 0, Rate: 0, Start: true}, ms[0])
	assert.Equal(t, &protocol.RequestStream{TargetSystem: testSystemID, MessageID: protocol.KindRawIMU, Rate: 200, Start: false}, ms[1])
	assert.Equal(t, &protocol.ParamRequestList{TargetSystem: testSystemID}, ms[2])
	assert.Equal(t, &protocol.ParamSet{TargetSystem: testSystemID, TargetComponent: 1, ParamID: "A_VERY_LONG_PA", Value: 0.5}, ms[3])

	fs, err := env.link.WrittenFrames()
	require.NoError(t, err)
	for i, f := range fs {
		assert.Equal(t, uint8(i), f.Seq)
		assert.Equal(t, uint8(uas_config.DefaultSystemID), f.SystemID)
	}
}

func TestDropRate(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, uas_config.Config{})
	for _, seq := range []uint8{254, 255, 0, 3} {
		f := env.air.Pack(&protocol.Heartbeat{})
		f.Seq = seq
		require.NoError(t, env.v.Receive(env.link, f))
	}
	env.recv(&protocol.SysStatus{Mode: protocol.ModeAuto, PacketDrop: 0})
	// 5 received, 2 lost
	assert.InDelta(t, 100*2.0/7.0, env.v.State().ReceiveDropRate, 1e-9)
}

func TestNameAndUptime(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, uas_config.Config{})
	assert.Equal(t, "MAV 007", env.v.Name())
	env.clock.Add(90 * time.Second)
	assert.Equal(t, 90*time.Second, env.v.Uptime())

	env2 := newTestEnv(t, uas_config.Config{Vehicles: []uas_config.Vehicle{{ID: "7", Name: "alpha"}}})
	assert.Equal(t, "alpha", env2.v.Name())
}

func TestConcurrentReceive(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, uas_config.Config{})
	const workers, each = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			l := link.NewMock(fmt.Sprintf("l%d", w), true)
			for i := 0; i < each; i++ {
				_ = env.v.Receive(l, env.air.Pack(&protocol.SysStatus{Mode: protocol.Mode(1 + i%2), Status: protocol.StatusActive, VBat: 12600}))
			}
		}(w)
	}
	wg.Wait()
	assert.Len(t, env.v.Links(), workers)
	battery := env.rec.Count(func(e Event) bool { _, ok := e.(BatteryChanged); return ok })
	assert.Equal(t, workers*each, battery)
}
