package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config is the full server configuration. Values come from the defaults
// below, then an optional YAML file, then environment variables.
type Config struct {
	Addr            string        `yaml:"addr"            envconfig:"ADDR"`
	LogLevel        string        `yaml:"logLevel"        envconfig:"LOG_LEVEL"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"  envconfig:"REQUEST_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" envconfig:"SHUTDOWN_TIMEOUT"`
	StoreTxTimeout  time.Duration `yaml:"storeTxTimeout"  envconfig:"STORE_TX_TIMEOUT"`

	Database  DatabaseConfig  `yaml:"database"  envconfig:"DATABASE"`
	Redis     RedisConfig     `yaml:"redis"     envconfig:"REDIS"`
	Kafka     KafkaConfig     `yaml:"kafka"     envconfig:"KAFKA"`
	Auth      AuthConfig      `yaml:"auth"      ignored:"true"`
	Documents DocumentsConfig `yaml:"documents" ignored:"true"`
}

// DatabaseConfig selects the entity store. An empty URL runs the in-memory
// store.
type DatabaseConfig struct {
	URL             string        `yaml:"url"             envconfig:"URL"`
	MaxOpenConns    int           `yaml:"maxOpenConns"    envconfig:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"maxIdleConns"    envconfig:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime" envconfig:"CONN_MAX_LIFETIME"`
	AutoMigrate     bool          `yaml:"autoMigrate"     envconfig:"AUTO_MIGRATE"`
}

// RedisConfig configures the session revocation list. An empty URL keeps
// revocations in memory.
type RedisConfig struct {
	URL          string        `yaml:"url"          envconfig:"URL"`
	PoolSize     int           `yaml:"poolSize"     envconfig:"POOL_SIZE"`
	MinIdleConns int           `yaml:"minIdleConns" envconfig:"MIN_IDLE_CONNS"`
	DialTimeout  time.Duration `yaml:"dialTimeout"  envconfig:"DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `yaml:"readTimeout"  envconfig:"READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"writeTimeout" envconfig:"WRITE_TIMEOUT"`
}

// KafkaConfig enables the audit stream producer when Brokers is set.
type KafkaConfig struct {
	Brokers string `yaml:"brokers" envconfig:"BROKERS"`
	Topic   string `yaml:"topic"   envconfig:"TOPIC"`
}

// BrokerList splits the comma-separated broker list.
func (k KafkaConfig) BrokerList() []string {
	var out []string
	for _, b := range strings.Split(k.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

type AuthConfig struct {
	JWTSigningKey   string        `yaml:"jwtSigningKey"   envconfig:"JWT_SIGNING_KEY"`
	JWTIssuer       string        `yaml:"jwtIssuer"       envconfig:"JWT_ISSUER"`
	TokenTTL        time.Duration `yaml:"tokenTTL"        envconfig:"TOKEN_TTL"`
	RequireSessions bool          `yaml:"requireSessions" envconfig:"REQUIRE_SESSIONS"`
	AdminToken      string        `yaml:"adminToken"      envconfig:"ADMIN_TOKEN"`
}

// DocumentsConfig picks the pinning backend: Pinata when both keys are set,
// else S3 when a bucket is set, else the local directory.
type DocumentsConfig struct {
	PinataAPIKey    string `yaml:"pinataApiKey"     envconfig:"PINATA_API_KEY"`
	PinataSecretKey string `yaml:"pinataSecretKey"  envconfig:"PINATA_SECRET_API_KEY"`
	PinataEndpoint  string `yaml:"pinataEndpoint"   envconfig:"PINATA_ENDPOINT"`
	PinataGateway   string `yaml:"pinataGateway"    envconfig:"PINATA_GATEWAY"`
	S3Bucket        string `yaml:"s3Bucket"         envconfig:"DOCUMENTS_S3_BUCKET"`
	S3Region        string `yaml:"s3Region"         envconfig:"DOCUMENTS_S3_REGION"`
	LocalDir        string `yaml:"localDir"         envconfig:"DOCUMENTS_LOCAL_DIR"`
	LocalURLPrefix  string `yaml:"localUrlPrefix"   envconfig:"DOCUMENTS_LOCAL_URL_PREFIX"`
	MaxUploadBytes  int64  `yaml:"maxUploadBytes"   envconfig:"DOCUMENTS_MAX_UPLOAD_BYTES"`
}

const devSigningKey = "dev-secret-key-change-in-production"

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Addr:            ":8080",
		LogLevel:        "info",
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		StoreTxTimeout:  5 * time.Second,
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Topic: "chariblock.audit",
		},
		Auth: AuthConfig{
			JWTSigningKey: devSigningKey,
			JWTIssuer:     "chariblock",
			TokenTTL:      time.Hour,
		},
		Documents: DocumentsConfig{
			PinataEndpoint: "https://api.pinata.cloud/pinning/pinFileToIPFS",
			PinataGateway:  "https://gateway.pinata.cloud/ipfs/",
			LocalDir:       "media/documents",
			LocalURLPrefix: "http://localhost:8080/media/documents/",
			MaxUploadBytes: 10 << 20,
		},
	}
}

// Load builds the configuration from an optional YAML file and the
// environment. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, &cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	// Auth and document settings keep their historical unprefixed names.
	for _, spec := range []any{&cfg, &cfg.Auth, &cfg.Documents} {
		if err := envconfig.Process("", spec); err != nil {
			return nil, fmt.Errorf("error processing environment: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.StoreTxTimeout <= 0 {
		errs = append(errs, errors.New("store tx timeout must be positive"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if c.Auth.JWTSigningKey == "" {
		errs = append(errs, errors.New("jwt signing key is required"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("token ttl must be positive"))
	}
	if len(c.Kafka.BrokerList()) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka topic is required when brokers are set"))
	}
	return errors.Join(errs...)
}

// UsesDevSigningKey reports whether the built-in development key is active.
func (c *Config) UsesDevSigningKey() bool {
	return c.Auth.JWTSigningKey == devSigningKey
}
