// Package config loads the arm controller configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/mastercactapus/armctl/link"
	"github.com/mastercactapus/armctl/machine"
)

// Config is the content of the configuration file.
type Config struct {
	Serial Serial `yaml:"serial"`
	Arm    Arm    `yaml:"arm"`
	Timing Timing `yaml:"timing"`
	Server Server `yaml:"server"`
}

type Serial struct {
	Port        string        `yaml:"port" validate:"required"`
	Baud        int           `yaml:"baud" validate:"gt=0"`
	SettleDelay time.Duration `yaml:"settle_delay" validate:"gte=0"`
	ReadTimeout time.Duration `yaml:"read_timeout" validate:"gt=0"`

	// SPJS is the websocket URL of a Serial Port JSON Server.
	// If set, Port is opened through it instead of locally.
	SPJS string `yaml:"spjs" validate:"omitempty,url"`
}

type Arm struct {
	Microsteps int  `yaml:"microsteps" validate:"gt=0"`
	Quantize   bool `yaml:"quantize"`
}

type Timing struct {
	Window         time.Duration `yaml:"window" validate:"gt=0"`
	Poll           time.Duration `yaml:"poll" validate:"gt=0"`
	RecordRead     time.Duration `yaml:"record_read" validate:"gt=0"`
	Inactivity     time.Duration `yaml:"inactivity" validate:"gt=0"`
	Ready          time.Duration `yaml:"ready" validate:"gt=0"`
	Ack            time.Duration `yaml:"ack" validate:"gt=0"`
	Done           time.Duration `yaml:"done" validate:"gt=0"`
	SampleInterval time.Duration `yaml:"sample_interval" validate:"gt=0"`
}

type Server struct {
	Addr    string `yaml:"addr" validate:"required"`
	DataDir string `yaml:"data_dir" validate:"required"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	opt := machine.DefaultOptions()
	return &Config{
		Serial: Serial{
			Port:        "/dev/ttyUSB0",
			Baud:        link.DefaultBaudRate,
			SettleDelay: 2500 * time.Millisecond,
			ReadTimeout: 100 * time.Millisecond,
		},
		Arm: Arm{
			Microsteps: opt.Microsteps,
			Quantize:   opt.Quantize,
		},
		Timing: Timing{
			Window:         opt.Window,
			Poll:           opt.PollTimeout,
			RecordRead:     opt.RecordReadTimeout,
			Inactivity:     opt.InactivityTimeout,
			Ready:          opt.ReadyTimeout,
			Ack:            opt.AckTimeout,
			Done:           opt.DoneTimeout,
			SampleInterval: opt.SampleInterval,
		},
		Server: Server{
			Addr:    ":9091",
			DataDir: "./data",
		},
	}
}

// Parse decodes data over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	err := yaml.Unmarshal(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	err = cfg.Validate()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads the file name. An empty name returns the defaults.
func Load(name string) (*Config, error) {
	if name == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

var validate = validator.New()

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var valErrors validator.ValidationErrors
	if !errors.As(err, &valErrors) {
		return fmt.Errorf("config: %w", err)
	}
	errs := make([]error, 0, len(valErrors))
	for _, e := range valErrors {
		errs = append(errs, fmt.Errorf("config: field '%s' failed on the '%s' tag", e.Namespace(), e.Tag()))
	}
	return errors.Join(errs...)
}

// Link returns the serial settings.
func (c *Config) Link() link.Config {
	return link.Config{
		Port:        c.Serial.Port,
		Baud:        c.Serial.Baud,
		ReadTimeout: c.Serial.ReadTimeout,
		SettleDelay: c.Serial.SettleDelay,
	}
}

// Machine returns the protocol options.
func (c *Config) Machine() machine.Options {
	return machine.Options{
		Window:            c.Timing.Window,
		PollTimeout:       c.Timing.Poll,
		RecordReadTimeout: c.Timing.RecordRead,
		InactivityTimeout: c.Timing.Inactivity,
		ReadyTimeout:      c.Timing.Ready,
		AckTimeout:        c.Timing.Ack,
		DoneTimeout:       c.Timing.Done,
		SampleInterval:    c.Timing.SampleInterval,
		Microsteps:        c.Arm.Microsteps,
		Quantize:          c.Arm.Quantize,
	}
}
