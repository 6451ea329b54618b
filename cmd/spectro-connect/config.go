package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/matst80/spectroconnect/internal/inventory"
	"gopkg.in/yaml.v3"
)

// DefaultGatewayPort is where SpectroServer accepts relay handshakes.
const DefaultGatewayPort = 31415

// Config holds everything that is not per invocation. Precedence, lowest
// first: defaults, YAML file, environment, flags.
type Config struct {
	Inventory   inventory.Config      `yaml:"spectrum"`
	GatewayHost string                `yaml:"gateway_host"`
	GatewayPort int                   `yaml:"gateway_port"`
	Cache       inventory.CacheConfig `yaml:"cache"`
	Username    string                `yaml:"username"`
	MetricsAddr string                `yaml:"metrics"`
}

// loadDotEnv reads .env files into the process environment without
// overriding variables that are already set. Missing files are fine.
func loadDotEnv(files ...string) error {
	err := godotenv.Load(files...)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func loadConfig(path string, getenv func(string) string) (Config, error) {
	c := Config{GatewayPort: DefaultGatewayPort}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return c, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	setString(&c.Inventory.URL, getenv("SPECTRUM_URL"))
	setString(&c.Inventory.Username, getenv("SPECTRUM_USERNAME"))
	setString(&c.Inventory.Password, getenv("SPECTRUM_PASSWORD"))
	setString(&c.GatewayHost, getenv("SPECTROSERVER_HOST"))
	setString(&c.Cache.Addr, getenv("SPECTRO_REDIS_ADDR"))
	setString(&c.Cache.Password, getenv("SPECTRO_REDIS_PASSWORD"))
	if v := getenv("SPECTROSERVER_PORT"); v != "" {
		p, err := parsePort(v)
		if err != nil {
			return c, fmt.Errorf("SPECTROSERVER_PORT: %w", err)
		}
		c.GatewayPort = p
	}
	if v := getenv("SPECTRO_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return c, fmt.Errorf("SPECTRO_CACHE_TTL: %w", err)
		}
		c.Cache.TTL = d
	}
	return c, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func parsePort(s string) (int, error) {
	p, err := strconv.Atoi(s)
	if err != nil || !validPort(p) {
		return 0, fmt.Errorf("%s is not a valid port", s)
	}
	return p, nil
}

func validPort(p int) bool { return p >= 1 && p <= 65535 }
