package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/kvault/internal/index"
	"github.com/starford/kvault/internal/models"
	pkgconfig "github.com/starford/kvault/pkg/config"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// DefaultSearchLimit is the number of results returned when none is given.
const DefaultSearchLimit = 10

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app" toml:"app"`
	Corpus CorpusConfig      `yaml:"corpus" toml:"corpus"`
	Search SearchConfig      `yaml:"search" toml:"search"`
	Auth   AuthConfig        `yaml:"auth" toml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Corpus.Validate(); err != nil {
		return err
	}
	if err := c.Search.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level" toml:"log_level"`
	HTTP     HTTPConfig `yaml:"http" toml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Host string `yaml:"host" toml:"host"`
	Port int    `yaml:"port" toml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// CorpusConfig lists the corpus roots in priority order. New documents go
// to the first root.
type CorpusConfig struct {
	Paths []string `yaml:"paths" toml:"paths"`
}

// Validate validates the corpus configuration.
func (c *CorpusConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Paths, validation.Each(validation.Required)),
	)
}

// ExpandedPaths returns Paths with a leading ~ resolved to the home directory.
func (c *CorpusConfig) ExpandedPaths() []string {
	out := make([]string, len(c.Paths))
	for i, p := range c.Paths {
		out[i] = pkgconfig.ExpandTilde(p)
	}
	return out
}

// SearchConfig holds search defaults and ranking parameters.
type SearchConfig struct {
	DefaultLimit int        `yaml:"default_limit" toml:"default_limit"`
	Backend      string     `yaml:"backend" toml:"backend"`
	BM25         BM25Config `yaml:"bm25" toml:"bm25"`
}

// Validate validates the search configuration.
func (c *SearchConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.DefaultLimit, validation.Min(0)),
		validation.Field(&c.Backend, validation.By(func(v any) error {
			_, err := models.ParseBackend(v.(string))
			return err
		})),
	); err != nil {
		return err
	}
	return c.BM25.Validate()
}

// DefaultBackend returns the configured backend, auto when unset.
func (c *SearchConfig) DefaultBackend() models.Backend {
	b, err := models.ParseBackend(c.Backend)
	if err != nil {
		return models.BackendAuto
	}
	return b
}

// BM25Config holds the BM25 free parameters.
type BM25Config struct {
	K1 float64 `yaml:"k1" toml:"k1"`
	B  float64 `yaml:"b" toml:"b"`
}

// Validate validates the BM25 parameters.
func (c *BM25Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.K1, validation.Min(0.0)),
		validation.Field(&c.B, validation.Min(0.0), validation.Max(1.0)),
	)
}

// Params converts to index parameters.
func (c *BM25Config) Params() index.BM25Params {
	return index.BM25Params{K1: c.K1, B: c.B}
}

// AuthConfig holds authentication configuration for the HTTP API.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode" toml:"mode"`
	Token string `yaml:"token" toml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	bm25 := index.DefaultBM25()
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelWarn,
			HTTP: HTTPConfig{
				Host: "127.0.0.1",
				Port: 8080,
			},
		},
		Corpus: CorpusConfig{
			Paths: []string{"~/.kvault"},
		},
		Search: SearchConfig{
			DefaultLimit: DefaultSearchLimit,
			Backend:      string(models.BackendAuto),
			BM25:         BM25Config{K1: bm25.K1, B: bm25.B},
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
