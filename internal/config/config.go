// Package config loads settings from an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

type Config struct {
	Env      string `yaml:"env" env:"APP_ENV" env-default:"local"`
	HTTP     HTTP   `yaml:"http"`
	Database DB     `yaml:"database"`
	Auth     Auth   `yaml:"auth"`
	Sweep    Sweep  `yaml:"sweep"`
}

type HTTP struct {
	Address      string        `yaml:"address" env:"SERVER_ADDRESS" env-default:"0.0.0.0:8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"15s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	// таймаут обработчика (chi middleware.Timeout)
	RequestTimeout time.Duration `yaml:"request_timeout" env:"HTTP_REQUEST_TIMEOUT" env-default:"30s"`
}

type DB struct {
	Driver    string        `yaml:"driver" env:"DB_DRIVER" env-default:"postgres"`
	DSN       string        `yaml:"dsn" env:"POSTGRES_CONN" env-required:"true"`
	OpTimeout time.Duration `yaml:"op_timeout" env:"DB_OP_TIMEOUT" env-default:"5s"`
}

type Auth struct {
	Secret    string        `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	TTL       time.Duration `yaml:"jwt_ttl" env:"JWT_TTL" env-default:"24h"`
	UsersFile string        `yaml:"users_file" env:"USERS_FILE"`
}

type Sweep struct {
	Interval     time.Duration `yaml:"interval" env:"SWEEP_INTERVAL" env-default:"30s"`
	ReminderLead time.Duration `yaml:"reminder_lead" env:"SWEEP_REMINDER_LEAD" env-default:"72h"`
}

// Load reads .env when present, then CONFIG_PATH (if set) and the environment.
// Environment values override the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad is Load for main.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) validate() error {
	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return fmt.Errorf("APP_ENV must be one of local, dev, prod; got %q", c.Env)
	}
	switch c.Database.Driver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite3; got %q", c.Database.Driver)
	}
	if len(c.Auth.Secret) < 16 {
		return errors.New("JWT_SECRET must be at least 16 bytes")
	}
	if c.Sweep.Interval <= 0 {
		return errors.New("SWEEP_INTERVAL must be positive")
	}
	return nil
}
