package tele

import (
	"math"
	"strings"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/juju/errors"
	"github.com/temoto/uasbridge/uas"
)

type EventKind uint8

const (
	EventInvalid EventKind = iota
	EventHeartbeat
	EventSystemType
	EventMode
	EventStatus
	EventBattery
	EventVoltage
	EventDropRate
	EventLoad
	EventValue
	EventAttitude
	EventPosition
	EventParameter
	EventText
	EventDetection
	EventUnknownMessage
	EventSetpoint
	EventError
)

var eventKindNames = [...]string{
	EventInvalid:        "invalid",
	EventHeartbeat:      "heartbeat",
	EventSystemType:     "system_type",
	EventMode:           "mode",
	EventStatus:         "status",
	EventBattery:        "battery",
	EventVoltage:        "voltage",
	EventDropRate:       "drop_rate",
	EventLoad:           "load",
	EventValue:          "value",
	EventAttitude:       "attitude",
	EventPosition:       "position",
	EventParameter:      "parameter",
	EventText:           "text",
	EventDetection:      "detection",
	EventUnknownMessage: "unknown_message",
	EventSetpoint:       "setpoint",
	EventError:          "error",
}

func (k EventKind) String() string {
	if int(k) < len(eventKindNames) {
		return eventKindNames[k]
	}
	return "invalid"
}

func ParseEventKind(s string) (EventKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range eventKindNames {
		if i != int(EventInvalid) && name == s {
			return EventKind(i), nil
		}
	}
	return EventInvalid, errors.NotValidf("tele event kind=%s", s)
}

// Event payload field numbers. Header fields are shared by all kinds,
// kind specific fields start at fieldBody.
const (
	fieldKind = 1
	fieldUAS  = 2
	fieldTime = 3 // unix nanoseconds, fixed64
	fieldBody = 10
)

// fieldWriter emits protobuf wire format without generated code.
type fieldWriter struct {
	buf *proto.Buffer
	err error
}

func newFieldWriter(capacity int) *fieldWriter {
	return &fieldWriter{buf: proto.NewBuffer(make([]byte, 0, capacity))}
}

func (w *fieldWriter) key(field int, wire int) {
	if w.err == nil {
		w.err = w.buf.EncodeVarint(uint64(field)<<3 | uint64(wire))
	}
}

func (w *fieldWriter) varint(field int, v uint64) {
	w.key(field, proto.WireVarint)
	if w.err == nil {
		w.err = w.buf.EncodeVarint(v)
	}
}

func (w *fieldWriter) boolean(field int, v bool) {
	var x uint64
	if v {
		x = 1
	}
	w.varint(field, x)
}

func (w *fieldWriter) fixed64(field int, v uint64) {
	w.key(field, proto.WireFixed64)
	if w.err == nil {
		w.err = w.buf.EncodeFixed64(v)
	}
}

func (w *fieldWriter) double(field int, v float64) { w.fixed64(field, math.Float64bits(v)) }

func (w *fieldWriter) float(field int, v float32) {
	w.key(field, proto.WireFixed32)
	if w.err == nil {
		w.err = w.buf.EncodeFixed32(uint64(math.Float32bits(v)))
	}
}

func (w *fieldWriter) str(field int, s string) {
	w.key(field, proto.WireBytes)
	if w.err == nil {
		w.err = w.buf.EncodeStringBytes(s)
	}
}

func (w *fieldWriter) floats(first int, vs ...float32) {
	for i, v := range vs {
		w.float(first+i, v)
	}
}

func (w *fieldWriter) doubles(first int, vs ...float64) {
	for i, v := range vs {
		w.double(first+i, v)
	}
}

// encodeEvent returns protobuf wire encoding of event: header then kind specific fields.
func encodeEvent(e uas.Event) (EventKind, []byte, error) {
	body := newFieldWriter(64)
	var kind EventKind
	switch e := e.(type) {
	case uas.Heartbeat:
		kind = EventHeartbeat
	case uas.SystemTypeChanged:
		kind = EventSystemType
		body.varint(fieldBody, uint64(e.Type))
	case uas.ModeChanged:
		kind = EventMode
		body.varint(fieldBody, uint64(e.Mode))
		body.str(fieldBody+1, e.Label)
	case uas.StatusChanged:
		kind = EventStatus
		body.varint(fieldBody, uint64(e.Status))
		body.str(fieldBody+1, e.Text)
		body.str(fieldBody+2, e.Description)
	case uas.BatteryChanged:
		kind = EventBattery
		b := e.Battery
		body.doubles(fieldBody, b.RawVoltage, b.FilteredVoltage, b.StartVoltage, b.ChargePercent, b.TimeRemaining)
	case uas.VoltageChanged:
		kind = EventVoltage
		body.double(fieldBody, e.Voltage)
	case uas.DropRateChanged:
		kind = EventDropRate
		body.doubles(fieldBody, e.Receive, e.Send)
	case uas.LoadChanged:
		kind = EventLoad
		body.double(fieldBody, e.Percent)
	case uas.ValueChanged:
		kind = EventValue
		body.str(fieldBody, e.Name)
		body.double(fieldBody+1, e.Value)
	case uas.AttitudeChanged:
		kind = EventAttitude
		a := e.Attitude
		body.floats(fieldBody, a.Roll, a.Pitch, a.Yaw, a.RollSpeed, a.PitchSpeed, a.YawSpeed)
	case uas.LocalPositionChanged:
		kind = EventPosition
		p := e.Position
		body.floats(fieldBody, p.X, p.Y, p.Z, p.VX, p.VY, p.VZ)
	case uas.ParameterChanged:
		kind = EventParameter
		body.varint(fieldBody, uint64(e.Component))
		body.str(fieldBody+1, e.ParamID)
		body.float(fieldBody+2, e.Value)
	case uas.TextMessageReceived:
		kind = EventText
		body.varint(fieldBody, uint64(e.Severity))
		body.str(fieldBody+1, e.Text)
	case uas.DetectionReceived:
		kind = EventDetection
		body.str(fieldBody, e.File)
		body.float(fieldBody+1, e.Confidence)
		body.boolean(fieldBody+2, e.Detected)
	case uas.UnknownMessageDetected:
		kind = EventUnknownMessage
		body.varint(fieldBody, uint64(e.Kind))
	case uas.AttitudeThrustSetpointChanged:
		kind = EventSetpoint
		sp := e.Setpoint
		body.doubles(fieldBody, sp.Roll, sp.Pitch, sp.Yaw, sp.Thrust)
	default:
		return EventInvalid, nil, errors.NotSupportedf("tele event type=%T", e)
	}
	if body.err != nil {
		return kind, nil, errors.Annotatef(body.err, "tele encode kind=%s", kind)
	}

	h := e.Head()
	return encodeHeader(kind, h.UAS, h.Time, body)
}

// encodeError is station error line, not bound to vehicle.
func encodeError(err error, t time.Time) ([]byte, error) {
	body := newFieldWriter(64)
	body.str(fieldBody, err.Error())
	if body.err != nil {
		return nil, errors.Annotatef(body.err, "tele encode kind=%s", EventError)
	}
	_, b, err := encodeHeader(EventError, 0, t, body)
	return b, err
}

func encodeHeader(kind EventKind, uasID uint8, t time.Time, body *fieldWriter) (EventKind, []byte, error) {
	w := newFieldWriter(16 + len(body.buf.Bytes()))
	w.varint(fieldKind, uint64(kind))
	w.varint(fieldUAS, uint64(uasID))
	w.fixed64(fieldTime, uint64(t.UnixNano()))
	if w.err != nil {
		return kind, nil, errors.Annotatef(w.err, "tele encode kind=%s", kind)
	}
	return kind, append(w.buf.Bytes(), body.buf.Bytes()...), nil
}
