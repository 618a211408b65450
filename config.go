package particles

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Duration decodes Go duration strings ("5s", "250ms") from TOML and YAML.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

type ParticlesConfig struct {
	SpriteSize    int        `toml:"sprite_size" yaml:"sprite_size"`
	Color         [3]float32 `toml:"color" yaml:"color"`
	Intensity     float32    `toml:"intensity" yaml:"intensity"`
	PointSize     float32    `toml:"point_size" yaml:"point_size"`
	SizePerVertex bool       `toml:"size_per_vertex" yaml:"size_per_vertex"`
}

type WindowConfig struct {
	Width      int     `toml:"width" yaml:"width"`
	Height     int     `toml:"height" yaml:"height"`
	Title      string  `toml:"title" yaml:"title"`
	ClearColor uint32  `toml:"clear_color" yaml:"clear_color"`
	Fov        float32 `toml:"fov" yaml:"fov"`
	Near       float32 `toml:"near" yaml:"near"`
	Far        float32 `toml:"far" yaml:"far"`
	CameraZ    float32 `toml:"camera_z" yaml:"camera_z"`
}

// Config is the viewer configuration. Zero fields in a file keep their
// defaults because files are decoded over DefaultConfig.
type Config struct {
	Assets      []string        `toml:"assets" yaml:"assets"`
	AssetRoot   string          `toml:"asset_root" yaml:"asset_root"`
	LoadTimeout Duration        `toml:"load_timeout" yaml:"load_timeout"`
	ModelScale  float32         `toml:"model_scale" yaml:"model_scale"`
	ShaderDir   string          `toml:"shader_dir" yaml:"shader_dir"`
	Debug       bool            `toml:"debug" yaml:"debug"`
	Particles   ParticlesConfig `toml:"particles" yaml:"particles"`
	Window      WindowConfig    `toml:"window" yaml:"window"`
}

func DefaultConfig() Config {
	return Config{
		Assets:     []string{"public/assets/qr.json"},
		AssetRoot:  ".",
		ModelScale: 100,
		Particles: ParticlesConfig{
			SpriteSize: 64,
			Color:      [3]float32{1, 1, 1},
			Intensity:  1,
			PointSize:  4,
		},
		Window: WindowConfig{
			Width:      1280,
			Height:     720,
			Title:      "Particles",
			ClearColor: 0x05050c,
			Fov:        60,
			Near:       1,
			Far:        10000,
			CameraZ:    150,
		},
	}
}

// LoadConfig reads a TOML or YAML file chosen by extension. An empty path
// returns DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := ParseConfig(data, filepath.Ext(path), &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func ParseConfig(data []byte, ext string, cfg *Config) error {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "toml":
		return toml.Unmarshal(data, cfg)
	case "yaml", "yml":
		return yaml.Unmarshal(data, cfg)
	}
	return fmt.Errorf("unknown config format %q", ext)
}

// ParticleOptions converts the particles section into builder options.
func (c Config) ParticleOptions() ParticleOptions {
	opts := DefaultParticleOptions()
	if c.Particles.SpriteSize > 0 {
		opts.SpriteSize = c.Particles.SpriteSize
	}
	opts.Color = c.Particles.Color
	opts.Intensity = c.Particles.Intensity
	if c.Particles.PointSize > 0 {
		opts.PointSize = c.Particles.PointSize
	}
	opts.SizePerVertex = c.Particles.SizePerVertex
	return opts
}
