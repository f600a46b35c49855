package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. CHAT_POSTGRES_DSN or
// CHAT_REALTIME_OUTBOUND_QUEUE.
const EnvPrefix = "CHAT"

type GRPC struct {
	Addr string `yaml:"addr" split_words:"true"`
}

type HTTP struct {
	Addr         string        `yaml:"addr" split_words:"true"`
	ReadTimeout  time.Duration `yaml:"readTimeout" split_words:"true"`
	WriteTimeout time.Duration `yaml:"writeTimeout" split_words:"true"`
	IdleTimeout  time.Duration `yaml:"idleTimeout" split_words:"true"`
	CORSOrigins  []string      `yaml:"corsOrigins" split_words:"true"`
}

type Logging struct {
	Env       string `yaml:"env" split_words:"true"`       // dev|stage|prod
	Service   string `yaml:"service" split_words:"true"`   // chat-service
	Version   string `yaml:"version" split_words:"true"`   // v0.1.0
	Backend   string `yaml:"backend" split_words:"true"`   // std|zap
	AddSource bool   `yaml:"addSource" split_words:"true"` // false|true
	Debug     bool   `yaml:"debug" split_words:"true"`     // false|true
}

const (
	StorageBackendPostgres = "postgres"
	StorageBackendBadger   = "badger"
)

type Badger struct {
	Path     string `yaml:"path" split_words:"true"`
	InMemory bool   `yaml:"inMemory" split_words:"true"`
}

type Storage struct {
	Backend string `yaml:"backend" split_words:"true"` // postgres|badger
	Badger  Badger `yaml:"badger" split_words:"true"`
}

type Postgres struct {
	DSN             string        `yaml:"dsn" split_words:"true"`
	MaxConns        int32         `yaml:"maxConns" split_words:"true"`
	MinConns        int32         `yaml:"minConns" split_words:"true"`
	MaxConnLifetime time.Duration `yaml:"maxConnLifetime" split_words:"true"`
	Migrate         bool          `yaml:"migrate" split_words:"true"`
}

const (
	AuthModeJWT    = "jwt"
	AuthModeHeader = "header"
)

type Auth struct {
	Mode          string        `yaml:"mode" split_words:"true"` // jwt|header
	PublicKeyPath string        `yaml:"publicKeyPath" split_words:"true"`
	Issuer        string        `yaml:"issuer" split_words:"true"`
	Audience      string        `yaml:"audience" split_words:"true"`
	ClockSkew     time.Duration `yaml:"clockSkew" split_words:"true"`
}

type Realtime struct {
	OutboundQueue   int           `yaml:"outboundQueue" split_words:"true"`
	PingInterval    time.Duration `yaml:"pingInterval" split_words:"true"`
	WriteTimeout    time.Duration `yaml:"writeTimeout" split_words:"true"`
	MaxMessageBytes int64         `yaml:"maxMessageBytes" split_words:"true"`
	RatePerSecond   float64       `yaml:"ratePerSecond" split_words:"true"`
	Burst           int           `yaml:"burst" split_words:"true"`
}

const (
	ProfileSourcePostgres = "postgres"
	ProfileSourceStatic   = "static"
)

type Profiles struct {
	Source   string        `yaml:"source" split_words:"true"` // postgres|static
	SeedPath string        `yaml:"seedPath" split_words:"true"`
	CacheTTL time.Duration `yaml:"cacheTTL" split_words:"true"`
}

// Redis is optional; an empty Addr disables the profile cache.
type Redis struct {
	Addr     string `yaml:"addr" split_words:"true"`
	Password string `yaml:"password" split_words:"true"`
	DB       int    `yaml:"db" split_words:"true"`
}

// NATS is optional; an empty URL disables the cross-instance relay.
type NATS struct {
	URL           string `yaml:"url" split_words:"true"`
	SubjectPrefix string `yaml:"subjectPrefix" split_words:"true"`
}

type Config struct {
	HTTP     HTTP     `yaml:"http" split_words:"true"`
	GRPC     GRPC     `yaml:"grpc" split_words:"true"`
	Logging  Logging  `yaml:"logging" split_words:"true"`
	Storage  Storage  `yaml:"storage" split_words:"true"`
	Postgres Postgres `yaml:"postgres" split_words:"true"`
	Auth     Auth     `yaml:"auth" split_words:"true"`
	Realtime Realtime `yaml:"realtime" split_words:"true"`
	Profiles Profiles `yaml:"profiles" split_words:"true"`
	Redis    Redis    `yaml:"redis" split_words:"true"`
	NATS     NATS     `yaml:"nats" split_words:"true"`
}

// LoadConfig reads CONFIG_PATH (default ./config/config.yaml) after loading an
// optional .env file, then applies CHAT_* environment overrides.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	return Load(path)
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.GRPC.Addr == "" {
		return errors.New("grpc.addr is required")
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = StorageBackendPostgres
	}
	switch c.Storage.Backend {
	case StorageBackendPostgres:
		if c.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required")
		}
	case StorageBackendBadger:
		if c.Storage.Badger.Path == "" && !c.Storage.Badger.InMemory {
			return errors.New("storage.badger.path is required unless storage.badger.inMemory is set")
		}
	default:
		return fmt.Errorf("storage.backend %q: want postgres or badger", c.Storage.Backend)
	}

	if c.Auth.Mode == "" {
		c.Auth.Mode = AuthModeJWT
	}
	switch c.Auth.Mode {
	case AuthModeJWT:
		if c.Auth.PublicKeyPath == "" {
			return errors.New("auth.publicKeyPath is required in jwt mode")
		}
	case AuthModeHeader:
	default:
		return fmt.Errorf("auth.mode %q: want jwt or header", c.Auth.Mode)
	}

	if c.Profiles.Source == "" {
		c.Profiles.Source = ProfileSourcePostgres
	}
	switch c.Profiles.Source {
	case ProfileSourcePostgres:
		if c.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required for profiles.source=postgres")
		}
	case ProfileSourceStatic:
		if c.Profiles.SeedPath == "" {
			return errors.New("profiles.seedPath is required for profiles.source=static")
		}
	default:
		return fmt.Errorf("profiles.source %q: want postgres or static", c.Profiles.Source)
	}

	// defaults
	if c.Logging.Service == "" {
		c.Logging.Service = "chat-service"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	c.HTTP.ReadTimeout = durationOr(c.HTTP.ReadTimeout, 10*time.Second)
	c.HTTP.WriteTimeout = durationOr(c.HTTP.WriteTimeout, 15*time.Second)
	c.HTTP.IdleTimeout = durationOr(c.HTTP.IdleTimeout, 60*time.Second)
	c.Auth.ClockSkew = durationOr(c.Auth.ClockSkew, 30*time.Second)
	c.Realtime.PingInterval = durationOr(c.Realtime.PingInterval, 30*time.Second)
	c.Realtime.WriteTimeout = durationOr(c.Realtime.WriteTimeout, 10*time.Second)
	c.Profiles.CacheTTL = durationOr(c.Profiles.CacheTTL, 5*time.Minute)
	if c.Realtime.OutboundQueue <= 0 {
		c.Realtime.OutboundQueue = 64
	}
	if c.Realtime.MaxMessageBytes <= 0 {
		c.Realtime.MaxMessageBytes = 64 << 10
	}
	if c.Realtime.RatePerSecond <= 0 {
		c.Realtime.RatePerSecond = 10
	}
	if c.Realtime.Burst <= 0 {
		c.Realtime.Burst = 20
	}
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = "chat.rooms"
	}
	return nil
}

func durationOr(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
