// Package config holds the bring-up configuration.
//
// The defaults for the USB driver variant and legacy ATA support are chosen
// at build time with the usbmini and atad build tags. A YAML file can
// override them before the bring-up starts, they are never re-evaluated
// afterwards.
package config

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/joomcode/errorx"
	"gopkg.in/yaml.v3"

	"github.com/clktmr/ps2/drivers/mass"
	"github.com/clktmr/ps2/drivers/modules"
	"github.com/clktmr/ps2/iop/irx"
)

var (
	ErrNamespace  = errorx.NewNamespace("config")
	InvalidConfig = ErrNamespace.NewType("invalid_config")
)

type Config struct {
	// USB selects the USB host driver variant.
	USB modules.USBVariant `yaml:"usb"`
	// LegacyATA appends the ps2atad driver to the HDD batch.
	LegacyATA bool `yaml:"legacy_ata"`
	// ResetIOP reboots the IOP before patching it.
	ResetIOP bool `yaml:"reset_iop"`

	// Modules is a directory or irxfs archive holding the module images.
	Modules string `yaml:"modules"`
	// Args maps module names to shell style argument strings.
	Args map[string]string `yaml:"args"`

	Mass Mass `yaml:"mass"`
}

// Mass configures the wait for the USB mass storage device. Values given in
// the file are used as they are, so `retries: 0` skips the wait and
// `initial_delay: 0s` probes right away. Omitted fields keep the defaults.
type Mass struct {
	Path         string        `yaml:"path"`
	Retries      int           `yaml:"retries"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	Interval     time.Duration `yaml:"interval"`
}

// Default returns the configuration selected by build tags.
func Default() Config {
	return Config{
		USB:       defaultUSB,
		LegacyATA: defaultLegacyATA,
		Mass: Mass{
			Path:         mass.DefaultPath,
			Retries:      mass.DefaultRetries,
			InitialDelay: mass.DefaultInitialDelay,
			Interval:     mass.DefaultInterval,
		},
	}
}

// Load reads a YAML configuration from r. Fields not present keep their
// defaults.
func Load(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, InvalidConfig.Wrap(err, "decoding config")
	}
	return cfg, cfg.Validate()
}

func LoadFile(name string) (Config, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return Config{}, err
	}
	return Load(bytes.NewReader(data))
}

func (c Config) Validate() error {
	if !c.USB.Valid() {
		return InvalidConfig.New("unknown usb variant %q", c.USB)
	}
	if c.Mass.Retries < 0 {
		return InvalidConfig.New("mass.retries must not be negative")
	}
	if c.Mass.InitialDelay < 0 || c.Mass.Interval < 0 {
		return InvalidConfig.New("mass delays must not be negative")
	}
	for name := range c.Args {
		if _, err := c.ModuleArgs(name); err != nil {
			return err
		}
	}
	return nil
}

// ModuleArgs returns the arguments configured for module name.
func (c Config) ModuleArgs(name string) (irx.Args, error) {
	s, ok := c.Args[name]
	if !ok {
		return nil, nil
	}
	args, err := irx.ParseArgs(s)
	if err != nil {
		return nil, InvalidConfig.Wrap(err, "args for %s", name)
	}
	return args, nil
}

// MassQuery returns the readiness poll described by c.
func (c Config) MassQuery() mass.Query {
	return mass.Query{
		Path:         c.Mass.Path,
		Retries:      c.Mass.Retries,
		InitialDelay: c.Mass.InitialDelay,
		Interval:     c.Mass.Interval,
	}
}
