// Package emu holds the host-side runtime configuration.
package emu

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"glint/emu/log"
)

// Backend selects which TextureRuntime the replay tool uses.
type Backend string

const (
	BackendOpenGL   Backend = "opengl"
	BackendSoftware Backend = "software"
)

type Config struct {
	Video VideoConfig `toml:"video"`
}

type VideoConfig struct {
	Scale        uint16  `toml:"scale"`
	Backend      Backend `toml:"backend"`
	DisableVSync bool    `toml:"disable_vsync"`
}

func defaultConfig() Config {
	return Config{
		Video: VideoConfig{
			Scale:   1,
			Backend: BackendOpenGL,
		},
	}
}

const cfgFilename = "config.toml"

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return cfgFilename
	}
	return filepath.Join(dir, "glint", cfgFilename)
}

// LoadConfigOrDefault loads the configuration from path, from the default
// location when path is empty, or provides the default one.
func LoadConfigOrDefault(path string) Config {
	if path == "" {
		path = configPath()
	}
	cfg := defaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if !os.IsNotExist(err) {
			log.ModEmu.Warnf("unreadable config %s: %v", path, err)
		}
		return defaultConfig()
	}
	if cfg.Video.Scale == 0 {
		cfg.Video.Scale = 1
	}
	return cfg
}

// SaveConfig writes the configuration to the default location.
func SaveConfig(cfg Config) error {
	path := configPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	buf, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o644)
}
