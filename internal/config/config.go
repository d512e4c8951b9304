package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"

	defaultAddr        = "localhost:8080"
	defaultTimeout     = 4 * time.Second
	defaultIdleTimeout = 60 * time.Second
)

type Config struct {
	Env        string `yaml:"env" env-default:"local"`
	DBURL      string `yaml:"db_url" env-required:"true"`
	HTTPServer `yaml:"http_server"`
	DBPool     `yaml:"db_pool"`
	Migrations `yaml:"migrations"`
}

type HTTPServer struct {
	Addr        string        `yaml:"addr" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// DBPool tunes pkg/postgres. Zero values keep its defaults.
type DBPool struct {
	MaxSize         int           `yaml:"max_size"`
	ConnAttempts    int           `yaml:"conn_attempts"`
	ConnTimeout     time.Duration `yaml:"conn_timeout"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type Migrations struct {
	// Auto applies the embedded migrations on startup.
	Auto bool `yaml:"auto"`
}

func MustLoadConfig() *Config {
	configPath, ok := getConfigPath()
	if !ok {
		panic("config path is not set")
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		panic(err)
	}

	return config
}

func LoadConfig(configPath string) (*Config, error) {
	configData, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err = yaml.Unmarshal(configData, &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.setDefaults()

	if err = config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) setDefaults() {
	if c.Env == "" {
		c.Env = EnvLocal
	}
	if c.Addr == "" {
		c.Addr = defaultAddr
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = defaultIdleTimeout
	}
}

func (c *Config) validate() error {
	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return fmt.Errorf("unknown env %q", c.Env)
	}
	if c.DBURL == "" {
		return errors.New("db_url is required")
	}
	return nil
}

func getConfigPath() (configPath string, ok bool) {
	flag.StringVar(&configPath, "config_path", "", "path to config")
	flag.Parse()

	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}

	return configPath, configPath != ""
}
