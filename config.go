package wsiview

import (
	"fmt"

	"code.cloudfoundry.org/bytefmt"
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Config stores the server configuration.
type Config struct {
	Host   string `toml:"host"`
	Port   int    `toml:"port"`
	Images string `toml:"images"`

	MaxWidth  int `toml:"maxWidth"`
	MaxHeight int `toml:"maxHeight"`
	MaxArea   int `toml:"maxArea"`

	JPEGQuality   int   `toml:"jpegQuality"`
	SourceTimeout int64 `toml:"sourceTimeout"`

	Cache CacheConfig `toml:"cache"`
}

// CacheConfig represents the configuration information regarding the
// plane cache. Planes takes a human-readable size such as "128M".
type CacheConfig struct {
	HTTP       int64    `toml:"http"`
	Planes     string   `toml:"planes"`
	Peers      []string `toml:"peers"`
	PlanesSize int64
}

// DefaultConfig is the configuration used where no file overrides it.
func DefaultConfig() *Config {
	return &Config{
		Host:          "0.0.0.0",
		Port:          8080,
		Images:        "images",
		MaxWidth:      10000,
		MaxHeight:     10000,
		MaxArea:       10000000,
		JPEGQuality:   90,
		SourceTimeout: 30,
		Cache: CacheConfig{
			HTTP:   86400,
			Planes: "128M",
		},
	}
}

// LoadConfig reads a TOML file over the defaults and resolves the
// human-readable cache size.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if path != "" {
		if _, err := toml.DecodeFile(path, config); err != nil {
			return nil, err
		}
	}
	size, err := bytefmt.ToBytes(config.Cache.Planes)
	if err != nil {
		return nil, errors.Wrap(err, "cache.planes")
	}
	config.Cache.PlanesSize = int64(size)
	return config, nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%v:%v", c.Host, c.Port)
}
