package blit

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gogpu/blit/backend"
	"github.com/gogpu/blit/gpucore"
)

// Config is the file form of the engine options.
//
//	backend: software
//	width: 1280
//	height: 720
//	workers: 4
//	engine:
//	  slots: 3
//	  fence_timeout: 5s
//	  shader_mode: remap
type Config struct {
	Backend string       `yaml:"backend"` // substrate name, empty selects the default
	Width   int          `yaml:"width"`
	Height  int          `yaml:"height"`
	Buffers int          `yaml:"buffers"` // swapchain back buffers
	Workers int          `yaml:"workers"` // software composite goroutines
	Engine  EngineConfig `yaml:"engine"`
}

// EngineConfig holds the engine tuning knobs. Zero values keep defaults.
type EngineConfig struct {
	Slots         int      `yaml:"slots"`
	RemapCapacity int      `yaml:"remap_capacity"` // bytes per slot
	FenceTimeout  Duration `yaml:"fence_timeout"`
	BatchCapacity int      `yaml:"batch_capacity"`
	DrawPath      string   `yaml:"draw_path"`   // "batched" or "per_request"
	ShaderMode    string   `yaml:"shader_mode"` // "remap", "palette" or "program"
	VerifyRemap   *bool    `yaml:"verify_remap"`
	MaxSprites    int      `yaml:"max_sprites"`
	SpriteBudget  int64    `yaml:"sprite_budget"` // bytes, 0 disables eviction
}

// Duration wraps time.Duration for YAML unmarshalling from strings like "5s", "10m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = dur
	return nil
}

// LoadConfig reads a YAML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

// ParseConfig parses a YAML configuration.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("blit: parse config: %w", err)
	}
	return &cfg, nil
}

// Options converts the configuration into engine options. Unset fields
// produce no option.
func (c *Config) Options() ([]Option, error) {
	var opts []Option
	e := c.Engine
	if c.Width > 0 && c.Height > 0 {
		opts = append(opts, WithSize(c.Width, c.Height))
	}
	if e.Slots > 0 {
		opts = append(opts, WithSlots(e.Slots))
	}
	if e.RemapCapacity > 0 {
		opts = append(opts, WithRemapCapacity(e.RemapCapacity))
	}
	if e.FenceTimeout.Duration > 0 {
		opts = append(opts, WithFenceTimeout(e.FenceTimeout.Duration))
	}
	if e.BatchCapacity > 0 {
		opts = append(opts, WithBatchCapacity(e.BatchCapacity))
	}
	switch e.DrawPath {
	case "", "batched":
	case "per_request":
		opts = append(opts, WithDrawPath(DrawPathPerRequest))
	default:
		return nil, fmt.Errorf("blit: unknown draw path %q", e.DrawPath)
	}
	if e.ShaderMode != "" {
		m, err := gpucore.ParseShaderMode(e.ShaderMode)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithShaderMode(m))
	}
	if e.VerifyRemap != nil {
		opts = append(opts, WithVerifyRemapContent(*e.VerifyRemap))
	}
	if e.MaxSprites > 0 {
		opts = append(opts, WithMaxSprites(e.MaxSprites))
	}
	if e.SpriteBudget > 0 {
		opts = append(opts, WithSpriteBudget(e.SpriteBudget))
	}
	return opts, nil
}

// BackendConfig returns the substrate factory configuration.
func (c *Config) BackendConfig() backend.Config {
	return backend.Config{Width: c.Width, Height: c.Height, Buffers: c.Buffers, Workers: c.Workers}
}
