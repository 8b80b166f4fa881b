package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"

	"github.com/xenking/kart-storefront/pkg/health"
)

// Blob store backends of the client.
const (
	BlobFile   = "file"
	BlobMemory = "memory"
	BlobRedis  = "redis"
)

// ClientConfig configures the storefront client, loadable from environment
// variables (STOREFRONT_ prefix) or YAML config files.
type ClientConfig struct {
	BaseURL       string        `default:"http://localhost:8080/api" env:"BASE_URL" usage:"Remote store API base URL" flag:"base-url"`
	Timeout       time.Duration `default:"10s" usage:"HTTP request timeout"`
	ConfigID      int64         `default:"1" usage:"Id of the shared tax config record" flag:"config-id"`
	InvoicePrefix string        `default:"FAC" usage:"Prefix of generated invoice numbers" flag:"invoice-prefix"`
	Blob          BlobConfig
}

// BlobConfig selects where the cart and the session markers persist.
type BlobConfig struct {
	Backend     string `default:"file" usage:"Blob store backend: file, memory or redis"`
	Path        string `default:".storefront.json" usage:"Blob file path for the file backend"`
	RedisAddr   string `default:"localhost:6379" usage:"Redis address for the redis backend" flag:"redis-addr"`
	RedisPrefix string `default:"storefront" usage:"Redis key prefix" flag:"redis-prefix"`
}

// ServerConfig configures the store server, loadable from environment
// variables (STORE_ prefix), flags, or YAML config files.
type ServerConfig struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL, empty for the in-memory backend (STORE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	ImageBaseURL string `default:"" usage:"Base URL prepended to product image paths" flag:"image-base-url"`
	ConfigID     int64  `default:"1" usage:"Id of the shared tax config record" flag:"config-id"`
	Seed         SeedConfig
	Health       health.Config
	Graceful     GracefulConfig
}

// SeedConfig holds what the in-memory backend starts with. The tax config
// fields apply only when the fixture has no config record.
type SeedConfig struct {
	File         string `default:"" usage:"Fixture file (.json or .json.gz) loaded into the in-memory backend" flag:"seed-file"`
	TaxPercent   string `default:"18" usage:"Initial tax percent" flag:"seed-tax-percent"`
	NextSequence int64  `default:"1" usage:"Initial invoice sequence" flag:"seed-next-sequence"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

func load(dst any, prefix string, skipFlags bool, files ...string) error {
	// A missing .env is the normal case outside development.
	_ = godotenv.Load()

	loader := aconfig.LoaderFor(dst, aconfig.Config{
		EnvPrefix: prefix,
		SkipFlags: skipFlags,
		Files:     files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return errors.Wrap(err, "load config")
	}
	return nil
}

// LoadClientConfig loads the client configuration. Flags are not parsed
// because the command line carries the subcommand.
func LoadClientConfig() (*ClientConfig, error) {
	var cfg ClientConfig
	if err := load(&cfg, "STOREFRONT", true, "storefront.yaml"); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *ClientConfig) validate() error {
	switch c.Blob.Backend {
	case BlobFile:
		if c.Blob.Path == "" {
			return errors.New("blob path is required for the file backend")
		}
	case BlobMemory, BlobRedis:
	default:
		return errors.Errorf("unknown blob backend %q", c.Blob.Backend)
	}
	if c.BaseURL == "" {
		return errors.New("base URL is required: set STOREFRONT_BASE_URL")
	}
	return nil
}

// LoadServerConfig loads the store server configuration.
func LoadServerConfig() (*ServerConfig, error) {
	var cfg ServerConfig
	if err := load(&cfg, "STORE", false, "config.yaml", "/etc/store/config.yaml"); err != nil {
		return nil, err
	}
	cfg.applyPlatformDefaults()
	return &cfg, nil
}

// applyPlatformDefaults maps the platform-provided DATABASE_URL and PORT to
// the STORE_-prefixed configuration.
func (c *ServerConfig) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
