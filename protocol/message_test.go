package protocol

import (
	"strings"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadLengthMatchesSchema(t *testing.T) {
	t.Parallel()
	for kind, info := range kinds {
		m := info.new()
		require.Equal(t, kind, m.Kind(), "kind=%s", info.name)
		assert.Equal(t, info.length, len(Payload(m)), "kind=%s", info.name)
	}
}

func TestDecode(t *testing.T) {
	t.Parallel()
	type Case struct {
		name      string
		frame     Frame
		check     func(t testing.TB, m Message)
		expectErr string
	}
	cases := []Case{
		{"sys-status",
			Frame{Kind: KindSysStatus, Payload: []byte{0x02, 0x00, 0x04, 0x01, 0xf4, 0x2b, 0x5c, 0x00, 0x03}},
			func(t testing.TB, m Message) {
				s := m.(*SysStatus)
				assert.Equal(t, ModeManual, s.Mode)
				assert.Equal(t, StatusActive, s.Status)
				assert.Equal(t, uint16(500), s.Load)
				assert.Equal(t, uint16(11100), s.VBat)
				assert.Equal(t, uint16(3), s.PacketDrop)
			}, ""},
		{"unknown",
			Frame{Kind: 200, Payload: []byte{1, 2, 3}},
			func(t testing.TB, m Message) {
				u := m.(*Unknown)
				assert.Equal(t, Kind(200), u.Kind())
				assert.Equal(t, []byte{1, 2, 3}, u.Payload)
			}, ""},
		{"short-payload",
			Frame{Kind: KindHeartbeat, Payload: []byte{1, 2}},
			nil, "kind=HEARTBEAT payload length=2 expected=3 not valid"},
		{"long-payload",
			Frame{Kind: KindDebug, Payload: make([]byte, 6)},
			nil, "kind=DEBUG payload length=6 expected=5 not valid"},
		{"param-value-nul",
			Frame{Kind: KindParamValue, Payload: append([]byte("ROLL_P\x00garbage\x00"), 0x3f, 0x80, 0, 0)},
			func(t testing.TB, m Message) {
				p := m.(*ParamValue)
				assert.Equal(t, "ROLL_P", p.ParamID)
				assert.Equal(t, float32(1), p.Value)
			}, ""},
		{"statustext-full-width",
			Frame{Kind: KindStatusText, Payload: append([]byte{3}, []byte(strings.Repeat("x", StatusTextLength))...)},
			func(t testing.TB, m Message) {
				s := m.(*StatusText)
				assert.Equal(t, uint8(3), s.Severity)
				assert.Equal(t, strings.Repeat("x", StatusTextLength), s.Text)
			}, ""},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			m, err := Decode(c.frame)
			if c.expectErr != "" {
				require.Error(t, err)
				assert.True(t, errors.IsNotValid(err))
				assert.Equal(t, c.expectErr, err.Error())
				return
			}
			require.NoError(t, err)
			c.check(t, m)
		})
	}
}

func TestParamIDFieldWidth(t *testing.T) {
	t.Parallel()
	type Case struct {
		input  string
		expect string
	}
	cases := []Case{
		{"", ""},
		{"PID_YAW", "PID_YAW"},
		{"EXACTLY_14_CHR", "EXACTLY_14_CHR"},
		{"FIFTEEN_CHARS_X", "FIFTEEN_CHARS_"},
		{"A_MUCH_LONGER_PARAMETER_NAME", "A_MUCH_LONGER_"},
	}
	for _, c := range cases {
		b := Payload(&ParamSet{TargetSystem: 7, TargetComponent: 1, ParamID: c.input, Value: 2.5})
		require.Len(t, b, KindParamSet.PayloadLength())
		field := b[2 : 2+ParamIDLength]
		// always NUL terminated within field
		assert.Equal(t, byte(0), field[ParamIDLength-1], "input=%s", c.input)
		for _, x := range field[len(c.expect):] {
			assert.Equal(t, byte(0), x, "input=%s zero fill", c.input)
		}
		m, err := Decode(Frame{Kind: KindParamSet, Payload: b})
		require.NoError(t, err)
		ps := m.(*ParamSet)
		assert.Equal(t, c.expect, ps.ParamID)
		assert.Equal(t, float32(2.5), ps.Value)
		assert.Equal(t, uint8(1), ps.TargetComponent)
	}
}

func TestCommandPayloadLayout(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []byte{7, 0, 30, 0x00, 0xc8, 1},
		Payload(&RequestStream{TargetSystem: 7, MessageID: KindRawIMU, Rate: 200, Start: true}))
	assert.Equal(t, []byte{7, byte(ActionEmergencyKill)},
		Payload(&ActionCommand{Target: 7, Action: ActionEmergencyKill}))
	mc := Payload(&ManualControl{Target: 7, Roll: 1, Thrust: -2, RollManual: true, ThrustManual: true})
	assert.Equal(t, []byte{7, 0x3f, 0x80, 0, 0}, mc[:5])
	assert.Equal(t, []byte{0xc0, 0, 0, 0}, mc[13:17])
	assert.Equal(t, []byte{1, 0, 0, 1}, mc[17:])
}

func TestEnumText(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "MANUAL MODE", ModeManual.Label())
	assert.Equal(t, "READY", ModeReady.Label())
	assert.Equal(t, "UNINIT MODE", Mode(42).Label())
	assert.Equal(t, "EMERGENCY: Please land", StatusEmergency.Description())
	assert.Equal(t, "UNKNOWN", Status(99).String())
	assert.True(t, StatusCritical.Critical())
	assert.False(t, StatusActive.Critical())
	assert.True(t, ModeLocked.Settable())
	assert.True(t, ModeTest3.Settable())
	assert.False(t, ModeUninit.Settable())
	assert.False(t, ModeReady.Settable())
	assert.True(t, ActionShutdown.Destructive())
	assert.False(t, ActionEmergencyLand.Destructive())
	assert.Equal(t, "KIND(200)", Kind(200).String())
	assert.Equal(t, -1, Kind(200).PayloadLength())
}
