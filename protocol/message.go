package protocol

import (
	"fmt"

	"github.com/juju/errors"
)

// Kind is message-kind identifier on the wire.
type Kind uint8

const (
	KindHeartbeat        Kind = 0
	KindBoot             Kind = 1
	KindAction           Kind = 10
	KindSetMode          Kind = 11
	KindParamRequestList Kind = 21
	KindParamValue       Kind = 22
	KindParamSet         Kind = 23
	KindRawIMU           Kind = 28
	KindAttitude         Kind = 30
	KindPosition         Kind = 31
	KindSysStatus        Kind = 34
	KindRequestStream    Kind = 66
	KindManualControl    Kind = 69
	KindRawAux           Kind = 141
	KindAuxStatus        Kind = 142
	KindVisionPosition   Kind = 143
	KindPatternDetected  Kind = 190
	KindStatusText       Kind = 254
	KindDebug            Kind = 255
)

const (
	ParamIDLength     = 15
	StatusTextLength  = 50
	PatternFileLength = 100
)

type kindInfo struct {
	name   string
	length int
	new    func() Message
}

var kinds = map[Kind]kindInfo{
	KindHeartbeat:        {"HEARTBEAT", 3, func() Message { return new(Heartbeat) }},
	KindBoot:             {"BOOT", 4, func() Message { return new(Boot) }},
	KindAction:           {"ACTION", 2, func() Message { return new(ActionCommand) }},
	KindSetMode:          {"SET_MODE", 2, func() Message { return new(SetMode) }},
	KindParamRequestList: {"PARAM_REQUEST_LIST", 2, func() Message { return new(ParamRequestList) }},
	KindParamValue:       {"PARAM_VALUE", ParamIDLength + 4, func() Message { return new(ParamValue) }},
	KindParamSet:         {"PARAM_SET", 2 + ParamIDLength + 4, func() Message { return new(ParamSet) }},
	KindRawIMU:           {"RAW_IMU", 8 + 9*2, func() Message { return new(RawIMU) }},
	KindAttitude:         {"ATTITUDE", 8 + 6*4, func() Message { return new(Attitude) }},
	KindPosition:         {"POSITION", 8 + 6*4, func() Message { return new(Position) }},
	KindSysStatus:        {"SYS_STATUS", 9, func() Message { return new(SysStatus) }},
	KindRequestStream:    {"REQUEST_STREAM", 6, func() Message { return new(RequestStream) }},
	KindManualControl:    {"MANUAL_CONTROL", 1 + 4*4 + 4, func() Message { return new(ManualControl) }},
	KindRawAux:           {"RAW_AUX", 16, func() Message { return new(RawAux) }},
	KindAuxStatus:        {"AUX_STATUS", 12, func() Message { return new(AuxStatus) }},
	KindVisionPosition:   {"VISION_POSITION_ESTIMATE", 8 + 6*4, func() Message { return new(VisionPosition) }},
	KindPatternDetected:  {"PATTERN_DETECTED", 1 + 4 + PatternFileLength + 1, func() Message { return new(PatternDetected) }},
	KindStatusText:       {"STATUSTEXT", 1 + StatusTextLength, func() Message { return new(StatusText) }},
	KindDebug:            {"DEBUG", 5, func() Message { return new(Debug) }},
}

func (k Kind) String() string {
	if info, ok := kinds[k]; ok {
		return info.name
	}
	return fmt.Sprintf("KIND(%d)", uint8(k))
}

// Known reports whether kind has a payload schema in this dialect.
func (k Kind) Known() bool {
	_, ok := kinds[k]
	return ok
}

// PayloadLength of known kind, -1 for unknown.
func (k Kind) PayloadLength() int {
	if info, ok := kinds[k]; ok {
		return info.length
	}
	return -1
}

// Message is decoded payload of one kind.
// Concrete types are listed in kinds; *Unknown stands for anything else.
type Message interface {
	Kind() Kind
	encode(w *writer)
	decode(r *reader)
}

// Decode interprets frame payload.
// Unrecognized kind is a normal outcome and returns *Unknown, nil.
// errors.IsNotValid(err) means payload does not match kind schema (Malformed).
func Decode(f Frame) (Message, error) {
	info, ok := kinds[f.Kind]
	if !ok {
		payload := make([]byte, len(f.Payload))
		copy(payload, f.Payload)
		return &Unknown{ID: f.Kind, Payload: payload}, nil
	}
	if len(f.Payload) != info.length {
		return nil, errors.NotValidf("kind=%s payload length=%d expected=%d", info.name, len(f.Payload), info.length)
	}
	m := info.new()
	r := reader{b: f.Payload}
	m.decode(&r)
	return m, nil
}

// Payload encodes message fields.
func Payload(m Message) []byte {
	w := writer{b: make([]byte, 0, 64)}
	m.encode(&w)
	return w.b
}

type Unknown struct {
	ID      Kind
	Payload []byte
}

func (m *Unknown) Kind() Kind       { return m.ID }
func (m *Unknown) encode(w *writer) { w.b = append(w.b, m.Payload...) }
func (m *Unknown) decode(r *reader) { m.Payload = append([]byte(nil), r.b...) }

type Heartbeat struct {
	Type           uint8
	Autopilot      uint8
	MavlinkVersion uint8
}

func (*Heartbeat) Kind() Kind { return KindHeartbeat }
func (m *Heartbeat) encode(w *writer) {
	w.u8(m.Type)
	w.u8(m.Autopilot)
	w.u8(m.MavlinkVersion)
}
func (m *Heartbeat) decode(r *reader) {
	m.Type = r.u8()
	m.Autopilot = r.u8()
	m.MavlinkVersion = r.u8()
}

type Boot struct {
	Version uint32
}

func (*Boot) Kind() Kind         { return KindBoot }
func (m *Boot) encode(w *writer) { w.u32(m.Version) }
func (m *Boot) decode(r *reader) { m.Version = r.u32() }

type ActionCommand struct {
	Target uint8
	Action Action
}

func (*ActionCommand) Kind() Kind { return KindAction }
func (m *ActionCommand) encode(w *writer) {
	w.u8(m.Target)
	w.u8(uint8(m.Action))
}
func (m *ActionCommand) decode(r *reader) {
	m.Target = r.u8()
	m.Action = Action(r.u8())
}

type SetMode struct {
	Target uint8
	Mode   Mode
}

func (*SetMode) Kind() Kind { return KindSetMode }
func (m *SetMode) encode(w *writer) {
	w.u8(m.Target)
	w.u8(uint8(m.Mode))
}
func (m *SetMode) decode(r *reader) {
	m.Target = r.u8()
	m.Mode = Mode(r.u8())
}

type ParamRequestList struct {
	TargetSystem    uint8
	TargetComponent uint8
}

func (*ParamRequestList) Kind() Kind { return KindParamRequestList }
func (m *ParamRequestList) encode(w *writer) {
	w.u8(m.TargetSystem)
	w.u8(m.TargetComponent)
}
func (m *ParamRequestList) decode(r *reader) {
	m.TargetSystem = r.u8()
	m.TargetComponent = r.u8()
}

type ParamValue struct {
	ParamID string
	Value   float32
}

func (*ParamValue) Kind() Kind { return KindParamValue }
func (m *ParamValue) encode(w *writer) {
	w.str(m.ParamID, ParamIDLength)
	w.f32(m.Value)
}
func (m *ParamValue) decode(r *reader) {
	m.ParamID = r.str(ParamIDLength)
	m.Value = r.f32()
}

// ParamSet.ParamID longer than ParamIDLength-1 is truncated on the wire.
type ParamSet struct {
	TargetSystem    uint8
	TargetComponent uint8
	ParamID         string
	Value           float32
}

func (*ParamSet) Kind() Kind { return KindParamSet }
func (m *ParamSet) encode(w *writer) {
	w.u8(m.TargetSystem)
	w.u8(m.TargetComponent)
	w.str(m.ParamID, ParamIDLength)
	w.f32(m.Value)
}
func (m *ParamSet) decode(r *reader) {
	m.TargetSystem = r.u8()
	m.TargetComponent = r.u8()
	m.ParamID = r.str(ParamIDLength)
	m.Value = r.f32()
}

type RawIMU struct {
	Usec                uint64
	XAcc, YAcc, ZAcc    int16
	XGyro, YGyro, ZGyro int16
	XMag, YMag, ZMag    int16
}

func (*RawIMU) Kind() Kind { return KindRawIMU }
func (m *RawIMU) encode(w *writer) {
	w.u64(m.Usec)
	for _, v := range [...]int16{m.XAcc, m.YAcc, m.ZAcc, m.XGyro, m.YGyro, m.ZGyro, m.XMag, m.YMag, m.ZMag} {
		w.i16(v)
	}
}
func (m *RawIMU) decode(r *reader) {
	m.Usec = r.u64()
	m.XAcc, m.YAcc, m.ZAcc = r.i16(), r.i16(), r.i16()
	m.XGyro, m.YGyro, m.ZGyro = r.i16(), r.i16(), r.i16()
	m.XMag, m.YMag, m.ZMag = r.i16(), r.i16(), r.i16()
}

type Attitude struct {
	Usec                            uint64
	Roll, Pitch, Yaw                float32
	RollSpeed, PitchSpeed, YawSpeed float32
}

func (*Attitude) Kind() Kind { return KindAttitude }
func (m *Attitude) encode(w *writer) {
	w.u64(m.Usec)
	for _, v := range [...]float32{m.Roll, m.Pitch, m.Yaw, m.RollSpeed, m.PitchSpeed, m.YawSpeed} {
		w.f32(v)
	}
}
func (m *Attitude) decode(r *reader) {
	m.Usec = r.u64()
	m.Roll, m.Pitch, m.Yaw = r.f32(), r.f32(), r.f32()
	m.RollSpeed, m.PitchSpeed, m.YawSpeed = r.f32(), r.f32(), r.f32()
}

// Position is local position estimate, meters and meters per second.
type Position struct {
	Usec       uint64
	X, Y, Z    float32
	VX, VY, VZ float32
}

func (*Position) Kind() Kind { return KindPosition }
func (m *Position) encode(w *writer) {
	w.u64(m.Usec)
	for _, v := range [...]float32{m.X, m.Y, m.Z, m.VX, m.VY, m.VZ} {
		w.f32(v)
	}
}
func (m *Position) decode(r *reader) {
	m.Usec = r.u64()
	m.X, m.Y, m.Z = r.f32(), r.f32(), r.f32()
	m.VX, m.VY, m.VZ = r.f32(), r.f32(), r.f32()
}

// SysStatus.VBat is millivolts, PacketDrop counts ground frames lost by vehicle.
type SysStatus struct {
	Mode       Mode
	NavMode    uint8
	Status     Status
	Load       uint16
	VBat       uint16
	PacketDrop uint16
}

func (*SysStatus) Kind() Kind { return KindSysStatus }
func (m *SysStatus) encode(w *writer) {
	w.u8(uint8(m.Mode))
	w.u8(m.NavMode)
	w.u8(uint8(m.Status))
	w.u16(m.Load)
	w.u16(m.VBat)
	w.u16(m.PacketDrop)
}
func (m *SysStatus) decode(r *reader) {
	m.Mode = Mode(r.u8())
	m.NavMode = r.u8()
	m.Status = Status(r.u8())
	m.Load = r.u16()
	m.VBat = r.u16()
	m.PacketDrop = r.u16()
}

// RequestStream.MessageID=0 selects standard message set except heartbeat,
// Rate=0 means default rate of each message.
type RequestStream struct {
	TargetSystem    uint8
	TargetComponent uint8
	MessageID       Kind
	Rate            uint16
	Start           bool
}

func (*RequestStream) Kind() Kind { return KindRequestStream }
func (m *RequestStream) encode(w *writer) {
	w.u8(m.TargetSystem)
	w.u8(m.TargetComponent)
	w.u8(uint8(m.MessageID))
	w.u16(m.Rate)
	w.bool8(m.Start)
}
func (m *RequestStream) decode(r *reader) {
	m.TargetSystem = r.u8()
	m.TargetComponent = r.u8()
	m.MessageID = Kind(r.u8())
	m.Rate = r.u16()
	m.Start = r.bool8()
}

type ManualControl struct {
	Target                                           uint8
	Roll, Pitch, Yaw, Thrust                         float32
	RollManual, PitchManual, YawManual, ThrustManual bool
}

func (*ManualControl) Kind() Kind { return KindManualControl }
func (m *ManualControl) encode(w *writer) {
	w.u8(m.Target)
	w.f32(m.Roll)
	w.f32(m.Pitch)
	w.f32(m.Yaw)
	w.f32(m.Thrust)
	w.bool8(m.RollManual)
	w.bool8(m.PitchManual)
	w.bool8(m.YawManual)
	w.bool8(m.ThrustManual)
}
func (m *ManualControl) decode(r *reader) {
	m.Target = r.u8()
	m.Roll, m.Pitch, m.Yaw, m.Thrust = r.f32(), r.f32(), r.f32(), r.f32()
	m.RollManual, m.PitchManual = r.bool8(), r.bool8()
	m.YawManual, m.ThrustManual = r.bool8(), r.bool8()
}

type RawAux struct {
	Adc1, Adc2, Adc3, Adc4 uint16
	VBat                   uint16
	Temp                   int16
	Baro                   int32
}

func (*RawAux) Kind() Kind { return KindRawAux }
func (m *RawAux) encode(w *writer) {
	w.u16(m.Adc1)
	w.u16(m.Adc2)
	w.u16(m.Adc3)
	w.u16(m.Adc4)
	w.u16(m.VBat)
	w.i16(m.Temp)
	w.i32(m.Baro)
}
func (m *RawAux) decode(r *reader) {
	m.Adc1, m.Adc2, m.Adc3, m.Adc4 = r.u16(), r.u16(), r.u16(), r.u16()
	m.VBat = r.u16()
	m.Temp = r.i16()
	m.Baro = r.i32()
}

// AuxStatus.Load is per mille CPU load.
type AuxStatus struct {
	Load                   uint16
	I2C0Errors, I2C1Errors uint16
	SPI0Errors, SPI1Errors uint16
	UARTErrors             uint16
}

func (*AuxStatus) Kind() Kind { return KindAuxStatus }
func (m *AuxStatus) encode(w *writer) {
	for _, v := range [...]uint16{m.Load, m.I2C0Errors, m.I2C1Errors, m.SPI0Errors, m.SPI1Errors, m.UARTErrors} {
		w.u16(v)
	}
}
func (m *AuxStatus) decode(r *reader) {
	m.Load = r.u16()
	m.I2C0Errors, m.I2C1Errors = r.u16(), r.u16()
	m.SPI0Errors, m.SPI1Errors = r.u16(), r.u16()
	m.UARTErrors = r.u16()
}

type VisionPosition struct {
	Usec             uint64
	X, Y, Z          float32
	Roll, Pitch, Yaw float32
}

func (*VisionPosition) Kind() Kind { return KindVisionPosition }
func (m *VisionPosition) encode(w *writer) {
	w.u64(m.Usec)
	for _, v := range [...]float32{m.X, m.Y, m.Z, m.Roll, m.Pitch, m.Yaw} {
		w.f32(v)
	}
}
func (m *VisionPosition) decode(r *reader) {
	m.Usec = r.u64()
	m.X, m.Y, m.Z = r.f32(), r.f32(), r.f32()
	m.Roll, m.Pitch, m.Yaw = r.f32(), r.f32(), r.f32()
}

type PatternDetected struct {
	Type       uint8
	Confidence float32
	File       string
	Detected   bool
}

func (*PatternDetected) Kind() Kind { return KindPatternDetected }
func (m *PatternDetected) encode(w *writer) {
	w.u8(m.Type)
	w.f32(m.Confidence)
	w.str(m.File, PatternFileLength)
	w.bool8(m.Detected)
}
func (m *PatternDetected) decode(r *reader) {
	m.Type = r.u8()
	m.Confidence = r.f32()
	m.File = r.str(PatternFileLength)
	m.Detected = r.bool8()
}

type StatusText struct {
	Severity uint8
	Text     string
}

func (*StatusText) Kind() Kind { return KindStatusText }
func (m *StatusText) encode(w *writer) {
	w.u8(m.Severity)
	w.str(m.Text, StatusTextLength)
}
func (m *StatusText) decode(r *reader) {
	m.Severity = r.u8()
	m.Text = r.str(StatusTextLength)
}

type Debug struct {
	Index uint8
	Value float32
}

func (*Debug) Kind() Kind { return KindDebug }
func (m *Debug) encode(w *writer) {
	w.u8(m.Index)
	w.f32(m.Value)
}
func (m *Debug) decode(r *reader) {
	m.Index = r.u8()
	m.Value = r.f32()
}
