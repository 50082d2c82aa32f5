package particles

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

type WindowConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Title  string `yaml:"title"`
}

type SimulationConfig struct {
	Particles    int        `yaml:"particles"`
	ParticleSize float32    `yaml:"particle_size"` // pixels
	Gravity      [2]float32 `yaml:"gravity"`       // pixels/s^2, +Y is down
	Damping      float32    `yaml:"damping"`       // fraction of speed kept after a bounce
	InitialSpeed float32    `yaml:"initial_speed"` // per-axis bound, pixels/s
	ColorMin     float32    `yaml:"color_min"`
	ColorMax     float32    `yaml:"color_max"`
	Seed         int64      `yaml:"seed"` // 0 seeds from the clock

	// MaxFrameStep caps the dt fed to the integrator. Zero disables the cap.
	MaxFrameStep time.Duration `yaml:"max_frame_step"`
}

type RenderConfig struct {
	ClearColor [4]float64 `yaml:"clear_color"`
	HUD        bool       `yaml:"hud"`
	FontPath   string     `yaml:"font_path"` // optional TTF for the HUD, built-in face otherwise
	FontSize   float64    `yaml:"font_size"`
}

type Config struct {
	Window     WindowConfig     `yaml:"window"`
	Simulation SimulationConfig `yaml:"simulation"`
	Render     RenderConfig     `yaml:"render"`
	Debug      bool             `yaml:"debug"`
}

func DefaultConfig() Config {
	return Config{
		Window: WindowConfig{
			Width:  800,
			Height: 600,
			Title:  "Particle Simulation",
		},
		Simulation: SimulationConfig{
			Particles:    5000,
			ParticleSize: 3.0,
			Gravity:      [2]float32{0, 9.8},
			Damping:      0.7,
			InitialSpeed: 50.0,
			ColorMin:     0.3,
			ColorMax:     1.0,
		},
		Render: RenderConfig{
			ClearColor: [4]float64{0.1, 0.1, 0.1, 1.0},
			FontSize:   16,
		},
	}
}

// LoadConfig reads a YAML file over DefaultConfig. An empty path returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	s := c.Simulation
	switch {
	case c.Window.Width <= 0 || c.Window.Height <= 0:
		return fmt.Errorf("%w: window size %dx%d", ErrInvalidConfig, c.Window.Width, c.Window.Height)
	case s.Particles < 0:
		return fmt.Errorf("%w: particles must not be negative, got %d", ErrInvalidConfig, s.Particles)
	case s.ParticleSize <= 0:
		return fmt.Errorf("%w: particle_size must be positive, got %g", ErrInvalidConfig, s.ParticleSize)
	case s.Damping < 0 || s.Damping >= 1:
		return fmt.Errorf("%w: damping must be in [0,1), got %g", ErrInvalidConfig, s.Damping)
	case s.InitialSpeed < 0:
		return fmt.Errorf("%w: initial_speed must not be negative, got %g", ErrInvalidConfig, s.InitialSpeed)
	case s.ColorMin < 0 || s.ColorMax > 1 || s.ColorMin >= s.ColorMax:
		return fmt.Errorf("%w: color range [%g,%g)", ErrInvalidConfig, s.ColorMin, s.ColorMax)
	case s.MaxFrameStep < 0:
		return fmt.Errorf("%w: max_frame_step must not be negative", ErrInvalidConfig)
	}
	return nil
}
