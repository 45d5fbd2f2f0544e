package uas

import (
	"math"
	"strings"
	"time"

	"github.com/juju/errors"
	uas_config "github.com/temoto/uasbridge/uas/config"
)

type Chemistry string

const (
	ChemistryNiCd   Chemistry = "nicd"
	ChemistryNiMH   Chemistry = "nimh"
	ChemistryLiIon  Chemistry = "liion"
	ChemistryLiPoly Chemistry = "lipoly"
	ChemistryLiFe   Chemistry = "life"
	ChemistryAgZn   Chemistry = "agzn"
)

// per cell
const (
	lipoFull  = 4.2
	lipoEmpty = 3.5
)

const (
	filterKeep = 0.7
	filterNew  = 0.3

	voltDropEpsilon  = 1e-11
	elapsedEpsilon   = 1e-3 // seconds
	LowBatteryLevel  = 10.0 // percent
	defaultLiPoCells = 3
)

type BatteryState struct {
	Chemistry    Chemistry
	Cells        int
	FullVoltage  float64
	EmptyVoltage float64

	RawVoltage      float64
	FilteredVoltage float64
	StartVoltage    float64
	ChargePercent   float64
	// seconds
	TimeRemaining float64
}

func (b BatteryState) Remaining() time.Duration {
	if b.TimeRemaining >= float64(math.MaxInt64/int64(time.Second)) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(b.TimeRemaining * float64(time.Second))
}

// BatteryEstimator is low-pass voltage filter with charge and time remaining estimate.
// Not concurrent safe, owned by Vehicle.
type BatteryEstimator struct {
	state        BatteryState
	sessionStart time.Time
}

func NewBatteryEstimator(c uas_config.Battery, sessionStart time.Time) (*BatteryEstimator, error) {
	self := &BatteryEstimator{sessionStart: sessionStart}
	// placeholder chemistries keep default pack bounds
	self.state.FullVoltage = defaultLiPoCells * lipoFull
	self.state.EmptyVoltage = defaultLiPoCells * lipoEmpty

	chem := Chemistry(strings.ToLower(c.Type))
	if chem == "" {
		chem = ChemistryLiPoly
	}
	cells := c.Cells
	if cells == 0 {
		cells = defaultLiPoCells
	}
	if cells < 0 {
		return nil, errors.NotValidf("battery cells=%d", cells)
	}
	switch chem {
	case ChemistryLiPoly:
		self.state.FullVoltage = float64(cells) * lipoFull
		self.state.EmptyVoltage = float64(cells) * lipoEmpty
	case ChemistryNiCd, ChemistryNiMH, ChemistryLiIon, ChemistryLiFe, ChemistryAgZn:
	default:
		return nil, errors.NotValidf("battery type=%s", c.Type)
	}
	self.state.Chemistry = chem
	self.state.Cells = cells
	if c.FullVoltage != 0 {
		self.state.FullVoltage = c.FullVoltage
	}
	if c.EmptyVoltage != 0 {
		self.state.EmptyVoltage = c.EmptyVoltage
	}
	if self.state.FullVoltage <= self.state.EmptyVoltage {
		return nil, errors.NotValidf("battery full_voltage=%.2f <= empty_voltage=%.2f", self.state.FullVoltage, self.state.EmptyVoltage)
	}
	// filter starts at nominal full voltage of configured pack, not at first sample
	self.state.FilteredVoltage = self.state.FullVoltage
	return self, nil
}

// Update consumes raw voltage sample and recomputes charge and time remaining.
func (self *BatteryEstimator) Update(raw float64, now time.Time) BatteryState {
	s := &self.state
	s.RawVoltage = raw
	s.FilteredVoltage = s.FilteredVoltage*filterKeep + raw*filterNew
	if s.StartVoltage == 0 {
		s.StartVoltage = raw
	}
	s.ChargePercent = 100 * (s.FilteredVoltage - s.EmptyVoltage) / (s.FullVoltage - s.EmptyVoltage)

	elapsed := now.Sub(self.sessionStart).Seconds()
	if elapsed < elapsedEpsilon {
		elapsed = elapsedEpsilon
	}
	drop := s.StartVoltage - s.FilteredVoltage
	if drop < voltDropEpsilon {
		drop = voltDropEpsilon
	}
	rate := drop / elapsed
	s.TimeRemaining = (s.FilteredVoltage - s.EmptyVoltage) / rate
	if s.TimeRemaining < 0 {
		s.TimeRemaining = 0
	}
	return *s
}

func (self *BatteryEstimator) State() BatteryState { return self.state }
