package uas_config

// Config is the vehicle-facing part of the bridge configuration.
type Config struct {
	GCS      GCS       `hcl:"gcs"`
	Battery  Battery   `hcl:"battery"`
	Manual   Manual    `hcl:"manual"`
	Vehicles []Vehicle `hcl:"vehicle"`
}

// GCS is the identity this station uses on outbound frames.
// SystemID is a pointer so explicit 0 is distinct from unset.
type GCS struct {
	SystemID    *int `hcl:"system_id"`
	ComponentID int  `hcl:"component_id"`
}

func (g GCS) System() int {
	if g.SystemID == nil {
		return DefaultSystemID
	}
	return *g.SystemID
}

// Battery chemistry and cell count. Explicit full/empty voltages
// override values derived from chemistry.
type Battery struct {
	Type         string  `hcl:"type"`
	Cells        int     `hcl:"cells"`
	FullVoltage  float64 `hcl:"full_voltage"`
	EmptyVoltage float64 `hcl:"empty_voltage"`
}

type Manual struct {
	// 0 = no pacing
	RateHz int `hcl:"rate_hz"`
}

// Vehicle is registered at startup, before any frame from it arrives.
type Vehicle struct {
	ID   string `hcl:"id,key"`
	Name string `hcl:"name"`
}

const (
	DefaultSystemID     = 255
	DefaultBatteryType  = "lipoly"
	DefaultBatteryCells = 3
)

// WithDefaults fills zero values.
func (c Config) WithDefaults() Config {
	if c.GCS.SystemID == nil {
		id := DefaultSystemID
		c.GCS.SystemID = &id
	}
	if c.Battery.Type == "" {
		c.Battery.Type = DefaultBatteryType
	}
	if c.Battery.Cells == 0 {
		c.Battery.Cells = DefaultBatteryCells
	}
	return c
}
