package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"luacrypt/classifier"
	"luacrypt/obfuscator"
	"luacrypt/store"
)

// Config holds server configuration. It is built once at startup and
// passed to the server; nothing reads the environment after that.
type Config struct {
	HTTP        HTTPConfig       `yaml:"http"`
	Database    DatabaseConfig   `yaml:"database"`
	Auth        AuthConfig       `yaml:"auth"`
	Obfuscator  ObfuscatorConfig `yaml:"obfuscator"`
	Classifier  ClassifierConfig `yaml:"classifier"`
	Log         LogConfig        `yaml:"log"`
	SeedWelcome bool             `yaml:"seed_welcome"`
}

type HTTPConfig struct {
	Listen     string `yaml:"listen"`
	PublicURL  string `yaml:"public_url"`
	TrustProxy bool   `yaml:"trust_proxy"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type AuthConfig struct {
	Password     string        `yaml:"password"`
	PasswordHash string        `yaml:"password_hash"`
	Enforce      bool          `yaml:"enforce"`
	JWTSecret    string        `yaml:"jwt_secret"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
}

type ObfuscatorConfig struct {
	Key       int  `yaml:"key"`
	CharCodes bool `yaml:"charcodes"`
}

type ClassifierConfig struct {
	Browser []string `yaml:"browser"`
	Client  []string `yaml:"client"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Persist bool   `yaml:"persist"`
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Listen: defaultListenAddr,
		},
		Database: DatabaseConfig{
			Driver: store.DriverSQLite,
			DSN:    defaultSQLitePath,
		},
		Auth: AuthConfig{
			TokenTTL: defaultTokenTTL,
		},
		Obfuscator: ObfuscatorConfig{
			Key: int(obfuscator.DefaultKey),
		},
		Classifier: ClassifierConfig{
			Browser: append([]string(nil), classifier.DefaultBrowserSignatures...),
			Client:  append([]string(nil), classifier.DefaultClientSignatures...),
		},
		Log: LogConfig{
			Level: zerolog.InfoLevel.String(),
		},
		SeedWelcome: true,
	}
}

// NewConfig layers defaults, the optional YAML file at path, a .env file
// in the working directory and the process environment, in that order.
func NewConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	var errs []error

	envString("HTTP_LISTENER", &c.HTTP.Listen)
	envString("PUBLIC_URL", &c.HTTP.PublicURL)
	errs = append(errs, envBool("TRUST_PROXY", &c.HTTP.TrustProxy))

	envString("DB_DRIVER", &c.Database.Driver)
	envString("DB_DSN", &c.Database.DSN)

	envString("ADMIN_PASSWORD", &c.Auth.Password)
	envString("ADMIN_PASSWORD_HASH", &c.Auth.PasswordHash)
	errs = append(errs, envBool("AUTH_ENFORCE", &c.Auth.Enforce))
	envString("JWT_SECRET", &c.Auth.JWTSecret)
	errs = append(errs, envDuration("AUTH_TOKEN_TTL", &c.Auth.TokenTTL))

	errs = append(errs, envInt("XOR_KEY", &c.Obfuscator.Key))
	errs = append(errs, envBool("OBFUSCATOR_CHARCODES", &c.Obfuscator.CharCodes))

	envList("BROWSER_SIGNATURES", &c.Classifier.Browser)
	envList("CLIENT_SIGNATURES", &c.Classifier.Client)

	envString("LOG_LEVEL", &c.Log.Level)
	errs = append(errs, envBool("LOG_PERSIST", &c.Log.Persist))
	errs = append(errs, envBool("SEED_WELCOME", &c.SeedWelcome))

	return errors.Join(errs...)
}

// Validate checks everything the server needs to start.
func (c *Config) Validate() error {
	var errs []error

	if c.HTTP.Listen == "" {
		errs = append(errs, errors.New("http listen address is required"))
	}

	switch c.Database.Driver {
	case store.DriverSQLite, store.DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver %q", c.Database.Driver))
	}

	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database dsn is required"))
	}

	if c.Auth.Password == "" && c.Auth.PasswordHash == "" {
		errs = append(errs, errors.New("ADMIN_PASSWORD or ADMIN_PASSWORD_HASH must be set"))
	}

	if c.Auth.Enforce {
		if c.Auth.JWTSecret == "" {
			errs = append(errs, errors.New("JWT_SECRET is required when AUTH_ENFORCE is on"))
		}
		if c.Auth.TokenTTL <= 0 {
			errs = append(errs, errors.New("AUTH_TOKEN_TTL must be positive"))
		}
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Log.Level))
	}

	errs = append(errs, c.validateObfuscator())

	return errors.Join(errs...)
}

func (c *Config) validateObfuscator() error {
	if c.Obfuscator.Key < 0 || c.Obfuscator.Key > 255 {
		return fmt.Errorf("XOR key %d out of range 0-255", c.Obfuscator.Key)
	}

	return nil
}

func (c *Config) NewObfuscator() *obfuscator.Obfuscator {
	var opts []obfuscator.Option
	if c.Obfuscator.CharCodes {
		opts = append(opts, obfuscator.WithCharCodes())
	}

	return obfuscator.New(byte(c.Obfuscator.Key), opts...)
}

func (c *Config) NewClassifier() *classifier.Classifier {
	return classifier.New(c.Classifier.Browser, c.Classifier.Client)
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = strings.TrimSpace(v)
	}
}

func envBool(key string, dst *bool) error {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}

	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: invalid boolean %q", key, v)
	}

	*dst = b
	return nil
}

func envInt(key string, dst *int) error {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}

	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: invalid integer %q", key, v)
	}

	*dst = n
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}

	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q", key, v)
	}

	*dst = d
	return nil
}

func envList(key string, dst *[]string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}

	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}

	*dst = out
}
