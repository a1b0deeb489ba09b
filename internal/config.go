package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// API auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Media backend modes.
const (
	MediaModeLocal  = "local"
	MediaModeRemote = "remote"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Relay  RelayConfig       `yaml:"relay"`
	Media  MediaConfig       `yaml:"media"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Signer SignerConfig      `yaml:"signer"`
	Token  TokenConfig       `yaml:"token"`
	Locale LocaleConfig      `yaml:"locale"`
	Auth   AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Relay.Validate(); err != nil {
		return err
	}
	if err := c.Media.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Signer.Validate(); err != nil {
		return err
	}
	if err := c.Token.Validate(); err != nil {
		return err
	}
	if err := c.Locale.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// RelayConfig holds the endpoint of the social-protocol relay that serves
// auth challenges, profile management, and post submission.
type RelayConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Validate validates the relay configuration.
func (c *RelayConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required, is.URL),
		validation.Field(&c.TimeoutSeconds, validation.Min(0)),
	)
}

// MediaConfig selects the off-chain media backend.
//
// Mode controls where attachments are stored:
//   - "local" (default): content-addressed files under Dir, served at /media.
//   - "remote": multipart upload to the storage service at URL.
type MediaConfig struct {
	Mode string `yaml:"mode"`
	Dir  string `yaml:"dir"`
	URL  string `yaml:"url"`
}

// Validate validates the media configuration.
func (c *MediaConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = MediaModeLocal
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(MediaModeLocal, MediaModeRemote)),
	); err != nil {
		return err
	}
	if c.Mode == MediaModeLocal && c.Dir == "" {
		return fmt.Errorf("media: mode is %q but dir is empty", MediaModeLocal)
	}
	if c.Mode == MediaModeRemote && c.URL == "" {
		return fmt.Errorf("media: mode is %q but url is empty", MediaModeRemote)
	}
	return nil
}

// SQLiteConfig holds SQLite database configuration for the credential cache
// and submission log.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SignerConfig holds the key used to sign relay auth challenges.
type SignerConfig struct {
	Key string `yaml:"key"`
}

// Validate validates the signer configuration.
func (c *SignerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Key, validation.Required),
	)
}

// TokenConfig holds the reward-token balance endpoint and contract address.
type TokenConfig struct {
	Contract    string  `yaml:"contract"`
	BalanceURL  string  `yaml:"balance_url"`
	DefaultGoal float64 `yaml:"default_goal"`
}

// Validate validates the token configuration.
func (c *TokenConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Contract, validation.Required),
		validation.Field(&c.BalanceURL, validation.Required, is.URL),
		validation.Field(&c.DefaultGoal, validation.Min(0.0)),
	)
}

// LocaleConfig holds the message catalog directory and default language.
type LocaleConfig struct {
	Dir     string `yaml:"dir"`
	Default string `yaml:"default"`
}

// Validate validates the locale configuration.
func (c *LocaleConfig) Validate() error {
	if c.Default == "" {
		c.Default = "en"
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
	)
}

// AuthConfig holds API authentication configuration.
//
// Mode controls how API authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
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

// AuthEnabled returns true when API authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Relay: RelayConfig{
			URL:            "http://localhost:9090",
			TimeoutSeconds: 30,
		},
		Media: MediaConfig{
			Mode: MediaModeLocal,
			Dir:  "./media",
		},
		SQLite: SQLiteConfig{
			Path: "./gebo.db",
		},
		Signer: SignerConfig{
			Key: "dev-signing-key",
		},
		Token: TokenConfig{
			Contract:    "0x0000000000000000000000000000000000000000",
			BalanceURL:  "http://localhost:9091",
			DefaultGoal: 600,
		},
		Locale: LocaleConfig{
			Dir:     "./locales",
			Default: "en",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
