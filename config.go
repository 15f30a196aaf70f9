package collide

import (
	"bytes"
	"encoding/json"
	"io"
	"math"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Config holds the tunable constants of the resolver and the builder.
// The defaults are empirically tuned, not derived.
type Config struct {
	// PenetrationThreshold is the overlap with a surface tolerated before a
	// correction triggers.
	PenetrationThreshold float64 `json:"penetration_threshold"`
	// MaxStepHeight is the highest ledge walked up without jumping.
	MaxStepHeight float64 `json:"max_step_height"`
	// DescentLimit is the largest drop the ground snap follows downwards.
	DescentLimit float64 `json:"descent_limit"`
	// GroundProbeHeight lifts the ground ray origin above the feet.
	GroundProbeHeight float64 `json:"ground_probe_height"`
	// GroundProbeDistance is the length of the ground ray.
	GroundProbeDistance float64 `json:"ground_probe_distance"`
	// MinSpeed is the step length below which no movement is requested.
	MinSpeed float64 `json:"min_speed"`
	// SlideFrontality is how squarely the motion must face a surface,
	// as -dir·n, before the surface obstructs it. Zero means any opposing
	// surface obstructs.
	SlideFrontality float64 `json:"slide_frontality"`
	// SlideEpsilon is the slide length below which a contact blocks.
	SlideEpsilon float64 `json:"slide_epsilon"`
	LeafSize     int     `json:"leaf_size"`
	// DebugRayCapacity sizes the ray ring of a DebugHandle.
	DebugRayCapacity int `json:"debug_ray_capacity"`
}

func NewConfig() Config {
	return Config{
		PenetrationThreshold: 0.15,
		MaxStepHeight:        0.35,
		DescentLimit:         2.0,
		GroundProbeHeight:    2.0,
		GroundProbeDistance:  10.0,
		MinSpeed:             0.001,
		SlideFrontality:      0,
		SlideEpsilon:         1e-6,
		LeafSize:             4,
		DebugRayCapacity:     256,
	}
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var err error
	check := func(name string, v float64, allowZero bool) {
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			err = multierr.Append(err, errors.Errorf("%s must be finite, got %v", name, v))
		case v < 0 || (v == 0 && !allowZero):
			err = multierr.Append(err, errors.Errorf("%s must be positive, got %v", name, v))
		}
	}
	check("penetration_threshold", c.PenetrationThreshold, true)
	check("max_step_height", c.MaxStepHeight, true)
	check("descent_limit", c.DescentLimit, true)
	check("ground_probe_height", c.GroundProbeHeight, false)
	check("ground_probe_distance", c.GroundProbeDistance, false)
	check("min_speed", c.MinSpeed, true)
	check("slide_epsilon", c.SlideEpsilon, true)
	check("slide_frontality", c.SlideFrontality, true)
	if c.SlideFrontality >= 1 {
		err = multierr.Append(err, errors.Errorf("slide_frontality must be below 1, got %v", c.SlideFrontality))
	}

	if c.GroundProbeDistance < c.GroundProbeHeight {
		err = multierr.Append(err, errors.Errorf(
			"ground_probe_distance (%v) must reach below the feet (ground_probe_height %v)",
			c.GroundProbeDistance, c.GroundProbeHeight))
	}
	if c.LeafSize <= 0 {
		err = multierr.Append(err, errors.Errorf("leaf_size must be positive, got %d", c.LeafSize))
	}
	if c.DebugRayCapacity < 0 {
		err = multierr.Append(err, errors.Errorf("debug_ray_capacity must not be negative, got %d", c.DebugRayCapacity))
	}
	return err
}

// ReadConfig reads a JSON config file, expanding ${VAR} references from the
// environment first. Fields missing from the file keep their defaults.
func ReadConfig(path string) (Config, error) {
	buf, err := envsubst.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "reading config %q", path)
	}
	cfg, err := ConfigFromReader(bytes.NewReader(buf))
	if err != nil {
		return Config{}, errors.Wrapf(err, "config %q", path)
	}
	return cfg, nil
}

// ConfigFromReader decodes and validates a JSON config over the defaults.
func ConfigFromReader(r io.Reader) (Config, error) {
	cfg := NewConfig()
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "decoding config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
