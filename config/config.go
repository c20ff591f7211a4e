package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/JeanRibes/groovecast/music"

	"gopkg.in/yaml.v3"
)

type Output struct {
	Port    string `yaml:"port"`
	Virtual bool   `yaml:"virtual"`
	Serial  string `yaml:"serial"`
	Baud    int    `yaml:"baud"`
}

type Config struct {
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	Output       Output           `yaml:"output"`
	Capacity     int              `yaml:"capacity"`
	DesiredLoops int              `yaml:"desired_loops"`
	Granularity  time.Duration    `yaml:"granularity"`
	Channels     map[string]uint8 `yaml:"channels"`
	Enabled      map[string]bool  `yaml:"enabled"`
	// Controllers maps actions to the CC numbers that trigger them from a
	// MIDI controller.
	Controllers map[string]uint8 `yaml:"controllers"`
	Library      struct {
		Dir  string `yaml:"dir"`
		Seed int64  `yaml:"seed"`
	} `yaml:"library"`
	Log struct {
		Level  string `yaml:"level"`
		Caller bool   `yaml:"caller"`
	} `yaml:"log"`
}

func Default() *Config {
	c := &Config{
		Output: Output{
			Port:    music.VirtualPortName,
			Virtual: true,
			Baud:    music.MIDIBaudRate,
		},
		Capacity:     music.DefaultCapacity,
		DesiredLoops: 0,
		Granularity:  music.DefaultGranularity,
		Channels:     map[string]uint8{},
		Controllers:  map[string]uint8{"pause": 64, "stop": 67},
	}
	c.HTTP.Addr = "127.0.0.1:5005"
	c.Library.Dir = "grooves"
	c.Library.Seed = time.Now().UnixNano()
	c.Log.Level = "info"
	for name, ch := range music.DefaultChannels {
		c.Channels[name] = ch
	}
	return c
}

// Load reads filename over the defaults. A missing file yields the defaults.
func Load(filename string) (*Config, error) {
	c := Default()
	data, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return c, c.Validate()
}

func (c *Config) Validate() (errs error) {
	if c.Capacity < 1 {
		errs = errors.Join(errs, fmt.Errorf("capacity must be at least 1, got %d", c.Capacity))
	}
	if c.DesiredLoops < 0 {
		errs = errors.Join(errs, fmt.Errorf("desired_loops must not be negative, got %d", c.DesiredLoops))
	}
	if c.Granularity <= 0 {
		errs = errors.Join(errs, fmt.Errorf("granularity must be positive, got %s", c.Granularity))
	}
	for name, ch := range c.Channels {
		if ch > 15 {
			errs = errors.Join(errs, fmt.Errorf("channel for %s out of range: %d", name, ch))
		}
	}
	for action, cc := range c.Controllers {
		if cc > 127 {
			errs = errors.Join(errs, fmt.Errorf("controller for %s out of range: %d", action, cc))
		}
	}
	return errs
}

// Open opens the port output, plus the serial one when a device is set.
func (o Output) Open() (music.Output, error) {
	port, err := music.OpenPortOutput(o.Port, o.Virtual)
	if err != nil {
		return nil, err
	}
	if o.Serial == "" {
		return port, nil
	}
	uart, err := music.OpenSerialOutput(o.Serial, o.Baud)
	if err != nil {
		port.Close()
		return nil, err
	}
	return music.MultiOutput{port, uart}, nil
}
