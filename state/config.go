package state

import (
	"path/filepath"

	"github.com/hashicorp/hcl"
	"github.com/juju/errors"
	"github.com/temoto/uasbridge/helpers"
	"github.com/temoto/uasbridge/link"
	"github.com/temoto/uasbridge/log2"
	tele_config "github.com/temoto/uasbridge/tele/config"
	uas_config "github.com/temoto/uasbridge/uas/config"
)

type Config struct {
	// includeSeen contains absolute paths to prevent include loops
	includeSeen map[string]struct{}
	// only used for Unmarshal, do not access
	XXX_Include []ConfigSource `hcl:"include"`

	GCS      uas_config.GCS       `hcl:"gcs"`
	Battery  uas_config.Battery   `hcl:"battery"`
	Manual   uas_config.Manual    `hcl:"manual"`
	Vehicles []uas_config.Vehicle `hcl:"vehicle"`
	Links    []link.Config        `hcl:"link"`

	Tele    tele_config.Config `hcl:"tele"`
	Metrics struct {
		Listen string `hcl:"listen"`
	} `hcl:"metrics"`
	Persist struct {
		Root string `hcl:"root"`
	} `hcl:"persist"`
	LogDebug bool `hcl:"log_debug"`
}

type ConfigSource struct {
	Name     string `hcl:"name,key"`
	Optional bool   `hcl:"optional"`
}

// UAS is vehicle-facing subset with defaults applied.
func (c *Config) UAS() uas_config.Config {
	return uas_config.Config{
		GCS:      c.GCS,
		Battery:  c.Battery,
		Manual:   c.Manual,
		Vehicles: c.Vehicles,
	}.WithDefaults()
}

func (c *Config) read(log *log2.Log, fs FullReader, source ConfigSource, errs *[]error) {
	norm := fs.Normalize(source.Name)
	if _, ok := c.includeSeen[norm]; ok {
		*errs = append(*errs, errors.Errorf("config duplicate source=%s", source.Name))
		return
	}
	log.Debugf("config reading source='%s' path=%s", source.Name, norm)
	c.includeSeen[source.Name] = struct{}{}
	c.includeSeen[norm] = struct{}{}

	bs, err := fs.ReadAll(norm)
	if bs == nil && err == nil {
		if !source.Optional {
			err = errors.NotFoundf("config required name=%s path=%s", source.Name, norm)
			*errs = append(*errs, err)
		}
		return
	}
	if err != nil {
		*errs = append(*errs, errors.Annotatef(err, "config source=%s", source.Name))
		return
	}

	err = hcl.Unmarshal(bs, c)
	if err != nil {
		err = errors.Annotatef(err, "config unmarshal source=%s content='%s'", source.Name, string(bs))
		*errs = append(*errs, err)
		return
	}

	var includes []ConfigSource
	includes, c.XXX_Include = c.XXX_Include, nil
	for _, include := range includes {
		includeNorm := fs.Normalize(include.Name)
		if _, ok := c.includeSeen[includeNorm]; ok {
			err = errors.Errorf("config include loop: from=%s include=%s", source.Name, include.Name)
			*errs = append(*errs, err)
			continue
		}
		c.read(log, fs, include, errs)
	}
}

func (c *Config) validate() error {
	errs := make([]error, 0)
	if id := c.GCS.System(); id < 0 || id > 255 {
		errs = append(errs, errors.NotValidf("config gcs.system_id=%d", id))
	}
	if c.GCS.ComponentID < 0 || c.GCS.ComponentID > 255 {
		errs = append(errs, errors.NotValidf("config gcs.component_id=%d", c.GCS.ComponentID))
	}
	if c.Manual.RateHz < 0 {
		errs = append(errs, errors.NotValidf("config manual.rate_hz=%d", c.Manual.RateHz))
	}
	seen := make(map[string]struct{}, len(c.Links))
	for _, l := range c.Links {
		if _, ok := seen[l.Name]; ok {
			errs = append(errs, errors.NotValidf("config link=%s duplicate", l.Name))
		}
		seen[l.Name] = struct{}{}
	}
	return helpers.FoldErrors(errs)
}

func ReadConfig(log *log2.Log, fs FullReader, names ...string) (*Config, error) {
	if len(names) == 0 {
		log.Fatal("code error [Must]ReadConfig() without names")
	}

	if osfs, ok := fs.(*OsFullReader); ok {
		dir, name := filepath.Split(names[0])
		osfs.SetBase(dir)
		names[0] = name
	}
	c := &Config{
		includeSeen: make(map[string]struct{}),
	}
	errs := make([]error, 0, 8)
	for _, name := range names {
		c.read(log, fs, ConfigSource{Name: name}, &errs)
	}
	if len(errs) == 0 {
		if err := c.validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return c, helpers.FoldErrors(errs)
}

func MustReadConfig(log *log2.Log, fs FullReader, names ...string) *Config {
	c, err := ReadConfig(log, fs, names...)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	return c
}
