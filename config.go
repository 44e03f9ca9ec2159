package auth

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultTokenExpiration = 30
	DefaultAuthScheme      = "Bearer"
	DefaultRequestTimeout  = 10 * time.Second
)

// Config holds auth options. It is loaded once at startup and must not be
// mutated afterwards.
type Config struct {
	SigningKey      string        `yaml:"signing_key" json:"-"`
	SigningMethod   string        `yaml:"signing_method" json:"signing_method"`
	TokenExpiration int           `yaml:"token_expiration" json:"token_expiration"`
	Issuer          string        `yaml:"issuer" json:"issuer,omitempty"`
	Audience        []string      `yaml:"audience" json:"audience,omitempty"`
	AuthScheme      string        `yaml:"auth_scheme" json:"auth_scheme"`
	HashAlgorithm   string        `yaml:"hash_algorithm" json:"hash_algorithm"`
	HashCost        int           `yaml:"hash_cost" json:"hash_cost,omitempty"`
	RequestTimeout  time.Duration `yaml:"request_timeout" json:"request_timeout"`
	// DeterministicIDs derives user ids from the email at registration
	DeterministicIDs bool `yaml:"deterministic_ids" json:"deterministic_ids"`
}

// DefaultConfig returns the defaults used by the original service:
// HS256 tokens valid for 30 minutes and bcrypt password hashes.
func DefaultConfig() Config {
	return Config{
		SigningMethod:   string(HS256),
		TokenExpiration: DefaultTokenExpiration,
		AuthScheme:      DefaultAuthScheme,
		HashAlgorithm:   HashAlgorithmBcrypt,
		RequestTimeout:  DefaultRequestTimeout,
	}
}

// LoadConfigFile reads a YAML file on top of DefaultConfig.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	file, err := os.Open(path)
	if err != nil {
		return cfg, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open auth config file")
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
		return cfg, goerrors.Wrap(err, goerrors.CategoryValidation, "failed to decode auth config file")
	}

	return cfg, nil
}

// ApplyEnv overrides fields from environment variables. The variable names
// match the ones the service has always used.
func (c Config) ApplyEnv(lookup func(string) (string, bool)) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if v, ok := lookup("SECRET_KEY"); ok && v != "" {
		c.SigningKey = v
	}

	if v, ok := lookup("ALGORITHM"); ok && v != "" {
		c.SigningMethod = v
	}

	if v, ok := lookup("ACCESS_TOKEN_EXPIRE_MINUTES"); ok && v != "" {
		minutes, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return c, goerrors.Wrap(err, goerrors.CategoryValidation, "ACCESS_TOKEN_EXPIRE_MINUTES must be an integer").
				WithTextCode(TextCodeInvalidConfig)
		}
		c.TokenExpiration = minutes
	}

	if v, ok := lookup("TOKEN_ISSUER"); ok && v != "" {
		c.Issuer = v
	}

	if v, ok := lookup("PASSWORD_HASH_ALGORITHM"); ok && v != "" {
		c.HashAlgorithm = v
	}

	if v, ok := lookup("DETERMINISTIC_USER_IDS"); ok && v != "" {
		enabled, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return c, goerrors.Wrap(err, goerrors.CategoryValidation, "DETERMINISTIC_USER_IDS must be a boolean").
				WithTextCode(TextCodeInvalidConfig)
		}
		c.DeterministicIDs = enabled
	}

	return c, nil
}

// Validate checks the configuration is usable
func (c Config) Validate() error {
	if strings.TrimSpace(c.SigningKey) == "" {
		return invalidConfig("signing key is required")
	}

	if _, err := ParseSigningAlgorithm(c.SigningMethod); err != nil {
		return invalidConfig(fmt.Sprintf("unsupported signing method %q", c.SigningMethod))
	}

	if c.TokenExpiration <= 0 {
		return invalidConfig("token expiration must be at least one minute")
	}

	switch strings.ToLower(c.HashAlgorithm) {
	case "", HashAlgorithmBcrypt, HashAlgorithmArgon2id:
	default:
		return invalidConfig(fmt.Sprintf("unsupported hash algorithm %q", c.HashAlgorithm))
	}

	return nil
}

func invalidConfig(msg string) error {
	return goerrors.New(msg, goerrors.CategoryValidation).
		WithTextCode(TextCodeInvalidConfig).
		WithCode(goerrors.CodeBadRequest)
}

func (c Config) GetSigningKey() string {
	return c.SigningKey
}

func (c Config) GetSigningMethod() string {
	if c.SigningMethod == "" {
		return string(HS256)
	}
	return c.SigningMethod
}

// GetTokenExpiration returns the token lifetime in minutes
func (c Config) GetTokenExpiration() int {
	return c.TokenExpiration
}

func (c Config) GetTokenTTL() time.Duration {
	return time.Duration(c.TokenExpiration) * time.Minute
}

func (c Config) GetIssuer() string {
	return c.Issuer
}

func (c Config) GetAudience() []string {
	return c.Audience
}

func (c Config) GetAuthScheme() string {
	if c.AuthScheme == "" {
		return DefaultAuthScheme
	}
	return c.AuthScheme
}

func (c Config) GetHashAlgorithm() string {
	if c.HashAlgorithm == "" {
		return HashAlgorithmBcrypt
	}
	return strings.ToLower(c.HashAlgorithm)
}

func (c Config) GetDeterministicIDs() bool {
	return c.DeterministicIDs
}

func (c Config) GetRequestTimeout() time.Duration {
	if c.RequestTimeout <= 0 {
		return DefaultRequestTimeout
	}
	return c.RequestTimeout
}
