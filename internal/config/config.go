// Package config loads the gvf configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/gvf/internal/filter"
	"github.com/ayusman/gvf/internal/geometry"
)

// Config is the top level configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Log     LogConfig     `yaml:"log"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Plugins PluginsConfig `yaml:"plugins"`
	Filter  FilterConfig  `yaml:"filter"`
	// Seed feeds the filter random source. Zero picks a time based seed.
	Seed uint64 `yaml:"seed"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
}

// StoreConfig configures template persistence.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// LogConfig configures log rotation. An empty File logs to stderr.
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"` // megabytes
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"` // days
	Compress   bool   `yaml:"compress"`
}

// MQTTConfig configures the MQTT bridge.
type MQTTConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Broker          string `yaml:"broker"`
	ClientID        string `yaml:"client_id"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	SampleTopic     string `yaml:"sample_topic"`
	ActivationTopic string `yaml:"activation_topic"`
	QoS             byte   `yaml:"qos"`
}

// PluginsConfig binds gestures to plugin actions.
type PluginsConfig struct {
	Dir      string          `yaml:"dir"`
	Timeout  time.Duration   `yaml:"timeout"`
	Bindings []BindingConfig `yaml:"bindings,omitempty"`
}

// BindingConfig runs a plugin action when a gesture activates.
type BindingConfig struct {
	Gesture int                    `yaml:"gesture"`
	Plugin  string                 `yaml:"plugin"`
	Action  string                 `yaml:"action"`
	Params  map[string]interface{} `yaml:"params,omitempty"`
}

// Vector is a 3D value in the configuration file.
type Vector struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

func vector(p geometry.Point3D) Vector {
	return Vector{X: p.X, Y: p.Y, Z: p.Z}
}

func (v Vector) point() geometry.Point3D {
	return geometry.Point3D{X: v.X, Y: v.Y, Z: v.Z}
}

// FilterConfig mirrors filter.Params.
type FilterConfig struct {
	Particles           int     `yaml:"particles"`
	ResamplingThreshold int     `yaml:"resampling_threshold"`
	PredictionSteps     int     `yaml:"prediction_steps"`
	Tolerance           float64 `yaml:"tolerance"` // 0 derives it from the templates
	Distribution        float64 `yaml:"distribution"`
	Dimensions          int     `yaml:"dimensions"`
	DimWeights          Vector  `yaml:"dim_weights"`
	Translate           bool    `yaml:"translate"`
	Segmentation        bool    `yaml:"segmentation"`

	AlignmentVariance float64 `yaml:"alignment_variance"`
	DynamicsVariance  float64 `yaml:"dynamics_variance"`
	ScalingsVariance  Vector  `yaml:"scalings_variance"`
	RotationsVariance Vector  `yaml:"rotations_variance"`

	AlignmentSpreading filter.Spreading         `yaml:"alignment_spreading"`
	DynamicsSpreading  filter.DynamicsSpreading `yaml:"dynamics_spreading"`
	ScalingsSpreading  filter.Spreading         `yaml:"scalings_spreading"`
	RotationsSpreading filter.Spreading         `yaml:"rotations_spreading"`

	ActivationAlignment   float64 `yaml:"activation_alignment"`
	ActivationProbability float64 `yaml:"activation_probability"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	p := filter.DefaultParams()
	return Config{
		Server: ServerConfig{
			Addr: "127.0.0.1:8080",
		},
		Store: StoreConfig{
			Path: "gvf.db",
		},
		Log: LogConfig{
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		},
		MQTT: MQTTConfig{
			Broker:          "tcp://127.0.0.1:1883",
			ClientID:        "gvf",
			SampleTopic:     "gvf/samples",
			ActivationTopic: "gvf/activations",
		},
		Plugins: PluginsConfig{
			Dir:     "plugins",
			Timeout: 5 * time.Second,
		},
		Filter: FilterConfig{
			Particles:             p.NumberOfParticles,
			ResamplingThreshold:   p.ResamplingThreshold,
			PredictionSteps:       p.PredictionSteps,
			Tolerance:             p.Tolerance,
			Distribution:          p.Distribution,
			Dimensions:            p.Dimensions,
			DimWeights:            vector(p.DimWeights),
			Translate:             p.Translate,
			Segmentation:          p.Segmentation,
			AlignmentVariance:     p.AlignmentVariance,
			DynamicsVariance:      p.DynamicsVariance,
			ScalingsVariance:      vector(p.ScalingsVariance),
			RotationsVariance:     vector(p.RotationsVariance),
			AlignmentSpreading:    p.AlignmentSpreading,
			DynamicsSpreading:     p.DynamicsSpreading,
			ScalingsSpreading:     p.ScalingsSpreading,
			RotationsSpreading:    p.RotationsSpreading,
			ActivationAlignment:   p.ActivationAlignment,
			ActivationProbability: p.ActivationProbability,
		},
	}
}

// Load reads a YAML file over the defaults. Keys missing from the file
// keep their default value.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports settings that cannot work. Degenerate filter values are
// not errors; the engine clamps them.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			return errors.New("mqtt.broker is required when mqtt is enabled")
		}
		if c.MQTT.SampleTopic == "" && c.MQTT.ActivationTopic == "" {
			return errors.New("mqtt needs a sample or activation topic")
		}
		if c.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos %d out of range", c.MQTT.QoS)
		}
	}
	for i, b := range c.Plugins.Bindings {
		if b.Plugin == "" {
			return fmt.Errorf("plugins.bindings[%d]: plugin is required", i)
		}
	}
	if len(c.Plugins.Bindings) > 0 && c.Plugins.Timeout <= 0 {
		return errors.New("plugins.timeout must be positive")
	}
	return nil
}

// FilterParams converts the filter section to engine parameters.
func (c Config) FilterParams() filter.Params {
	f := c.Filter
	return filter.Params{
		NumberOfParticles:     f.Particles,
		ResamplingThreshold:   f.ResamplingThreshold,
		PredictionSteps:       f.PredictionSteps,
		Tolerance:             f.Tolerance,
		Distribution:          f.Distribution,
		Dimensions:            f.Dimensions,
		DimWeights:            f.DimWeights.point(),
		Translate:             f.Translate,
		Segmentation:          f.Segmentation,
		AlignmentVariance:     f.AlignmentVariance,
		DynamicsVariance:      f.DynamicsVariance,
		ScalingsVariance:      f.ScalingsVariance.point(),
		RotationsVariance:     f.RotationsVariance.point(),
		AlignmentSpreading:    f.AlignmentSpreading,
		DynamicsSpreading:     f.DynamicsSpreading,
		ScalingsSpreading:     f.ScalingsSpreading,
		RotationsSpreading:    f.RotationsSpreading,
		ActivationAlignment:   f.ActivationAlignment,
		ActivationProbability: f.ActivationProbability,
	}
}

// Write saves the configuration as YAML.
func (c Config) Write(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
