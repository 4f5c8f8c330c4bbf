package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port        int      `yaml:"port"`
		CORSOrigins []string `yaml:"corsOrigins"`
	} `yaml:"server"`

	Store struct {
		// Backend: jsonfile | bolt | mysql | postgres
		Backend string `yaml:"backend"`
		// Path of the jsonfile document or bolt database file
		Path string `yaml:"path"`
	} `yaml:"store"`

	Database struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
	} `yaml:"database"`

	Upstream struct {
		// Provider: ark | openai
		Provider       string `yaml:"provider"`
		Endpoint       string `yaml:"endpoint"`
		Model          string `yaml:"model"`
		TimeoutSeconds int    `yaml:"timeoutSeconds"`
		// APIKey comes from ARK_API_KEY / OPENAI_API_KEY, never the file
		APIKey string `yaml:"-"`
	} `yaml:"upstream"`

	Analysis struct {
		MinImages     int   `yaml:"minImages"`
		MaxImages     int   `yaml:"maxImages"`
		MaxImageBytes int64 `yaml:"maxImageBytes"`
		Retention     int   `yaml:"retention"`
	} `yaml:"analysis"`

	Archive struct {
		Enabled   bool   `yaml:"enabled"`
		Endpoint  string `yaml:"endpoint"`
		AccessKey string `yaml:"accessKey"`
		SecretKey string `yaml:"secretKey"`
		Bucket    string `yaml:"bucket"`
		Region    string `yaml:"region"`
		UseSSL    bool   `yaml:"useSSL"`
	} `yaml:"archive"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load reads config.yaml and applies defaults and env overrides. A missing
// file is fine; the service then runs on defaults plus environment.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "jsonfile"
	}
	if c.Store.Path == "" {
		if c.Store.Backend == "bolt" {
			c.Store.Path = "history.db"
		} else {
			c.Store.Path = "history.json"
		}
	}
	if c.Upstream.Provider == "" {
		c.Upstream.Provider = "ark"
	}
	if c.Upstream.TimeoutSeconds == 0 {
		c.Upstream.TimeoutSeconds = 120
	}
	if c.Analysis.MinImages == 0 {
		c.Analysis.MinImages = 5
	}
	if c.Analysis.MaxImages == 0 {
		c.Analysis.MaxImages = 20
	}
	if c.Analysis.MaxImageBytes == 0 {
		c.Analysis.MaxImageBytes = 10 << 20
	}
	if c.Analysis.Retention == 0 {
		c.Analysis.Retention = 50
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) applyEnv() {
	switch c.Upstream.Provider {
	case "openai":
		c.Upstream.APIKey = os.Getenv("OPENAI_API_KEY")
	default:
		c.Upstream.APIKey = os.Getenv("ARK_API_KEY")
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
}

// UpstreamTimeout as a duration.
func (c *Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.Upstream.TimeoutSeconds) * time.Second
}

// MySQLDSN builds the MySQL connection string.
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds the Postgres connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
	)
}
