// Package config carga la configuración YAML del servicio con overrides
// por variables de entorno para los valores operativos.
package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	} `yaml:"server"`

	Storage struct {
		Driver string `yaml:"driver"` // file | postgres
		DSN    string `yaml:"dsn"`
		File   struct {
			Dir string `yaml:"dir"`
		} `yaml:"file"`
	} `yaml:"storage"`

	// Resolver configura la variante HTTP del cache de signers.
	Resolver struct {
		Scheme    string `yaml:"scheme"`     // https (default) | http para dev
		Timeout   string `yaml:"timeout"`    // ej: "10s"
		SharedTTL string `yaml:"shared_ttl"` // TTL del nivel redis; "" = sin expiración
	} `yaml:"resolver"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Admin struct {
		JWTSecret string `yaml:"jwt_secret"`
		TokenTTL  string `yaml:"token_ttl"`
	} `yaml:"admin"`

	SMTP struct {
		Host               string `yaml:"host"`
		Port               int    `yaml:"port"`
		Username           string `yaml:"username"`
		Password           string `yaml:"password"`
		From               string `yaml:"from"`
		InsecureSkipVerify bool   `yaml:"insecure_skip_verify"` // sólo dev
	} `yaml:"smtp"`

	Email struct {
		NotifyRotation bool `yaml:"notify_rotation"`
	} `yaml:"email"`
}

// Load lee el YAML, aplica defaults y overrides de entorno.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "file"
	}
	if c.Resolver.Scheme == "" {
		c.Resolver.Scheme = "https"
	}
	if c.Resolver.Timeout == "" {
		c.Resolver.Timeout = "10s"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Admin.TokenTTL == "" {
		c.Admin.TokenTTL = "1h"
	}

	applyEnv(&c)
	return &c, nil
}

// applyEnv pisa valores con el entorno (deploys sin YAML).
func applyEnv(c *Config) {
	if v := getenv("OWID_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := getenv("STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := getenv("STORAGE_DSN"); v != "" {
		c.Storage.DSN = v
	}
	if v := getenv("STORAGE_FILE_DIR"); v != "" {
		c.Storage.File.Dir = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Cache.Kind = "redis"
		c.Cache.Redis.Addr = v
	}
	if v := getenv("ADMIN_JWT_SECRET"); v != "" {
		c.Admin.JWTSecret = v
	}
	if v := getenv("RESOLVER_SCHEME"); v != "" {
		c.Resolver.Scheme = v
	}
	if v := getenv("APP_ENV"); v != "" {
		c.App.Env = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// ResolverTimeout parsea el timeout del resolver (fallback 10s).
func (c *Config) ResolverTimeout() time.Duration {
	if d, err := time.ParseDuration(c.Resolver.Timeout); err == nil && d > 0 {
		return d
	}
	return 10 * time.Second
}

// ResolverSharedTTL parsea el TTL del nivel compartido (0 = sin expiración).
func (c *Config) ResolverSharedTTL() time.Duration {
	if d, err := time.ParseDuration(c.Resolver.SharedTTL); err == nil && d > 0 {
		return d
	}
	return 0
}

// AdminTokenTTL parsea el TTL de tokens admin (fallback 1h).
func (c *Config) AdminTokenTTL() time.Duration {
	if d, err := time.ParseDuration(c.Admin.TokenTTL); err == nil && d > 0 {
		return d
	}
	return time.Hour
}

func getenv(k string) string {
	return strings.TrimSpace(os.Getenv(k))
}
