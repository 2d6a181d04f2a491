package auth

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"
)

// Environment overrides applied by LoadOptions.
const (
	EnvSigningKey = "FOLIO_AUTH_SIGNING_KEY"
	EnvDSN        = "FOLIO_AUTH_DSN"
	EnvListen     = "FOLIO_AUTH_LISTEN"
	EnvTokenTTL   = "FOLIO_AUTH_TOKEN_TTL"
	EnvDebug      = "FOLIO_AUTH_DEBUG"

	// EnvRetiredKeys is a comma separated list of previous signing keys.
	EnvRetiredKeys = "FOLIO_AUTH_RETIRED_SIGNING_KEYS"
)

// MinSigningKeyLength is the smallest HS256 key we accept.
const MinSigningKeyLength = 32

// Options is the file backed configuration for the server.
type Options struct {
	SigningKey        string        `yaml:"signing_key"`
	RetiredKeys       []string      `yaml:"retired_signing_keys"`
	TokenTTL          time.Duration `yaml:"token_ttl"`
	Issuer            string        `yaml:"issuer"`
	Audience          []string      `yaml:"audience"`
	DefaultRole       string        `yaml:"default_role"`
	MinPasswordLength int           `yaml:"min_password_length"`
	ContextKey        string        `yaml:"context_key"`
	Listen            string        `yaml:"listen"`
	DSN               string        `yaml:"dsn"`
	DeterministicIDs  bool          `yaml:"deterministic_ids"`
	Debug             bool          `yaml:"debug"`
}

var _ Config = Options{}

// DefaultOptions returns the baseline configuration.
func DefaultOptions() Options {
	return Options{
		TokenTTL:          60 * time.Minute,
		Issuer:            "folio-auth",
		Audience:          []string{"folio-web"},
		DefaultRole:       RoleUser,
		MinPasswordLength: 8,
		ContextKey:        "user",
		Listen:            ":4040",
		DSN:               "file::memory:?cache=shared",
	}
}

// LoadOptions reads path (when not empty) over the defaults and then applies
// environment overrides. The result is validated.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return opts, errors.Wrap(err, errors.CategoryBadInput, "unable to read config file").
				WithMetadata(map[string]any{"path": path})
		}
		if err := yaml.Unmarshal(raw, &opts); err != nil {
			return opts, errors.Wrap(err, errors.CategoryBadInput, "unable to parse config file").
				WithMetadata(map[string]any{"path": path})
		}
	}

	if err := opts.applyEnv(os.LookupEnv); err != nil {
		return opts, err
	}

	return opts, opts.Validate()
}

func (o *Options) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvSigningKey); ok {
		o.SigningKey = v
	}
	if v, ok := lookup(EnvRetiredKeys); ok {
		o.RetiredKeys = o.RetiredKeys[:0]
		for _, key := range strings.Split(v, ",") {
			if key = strings.TrimSpace(key); key != "" {
				o.RetiredKeys = append(o.RetiredKeys, key)
			}
		}
	}
	if v, ok := lookup(EnvDSN); ok {
		o.DSN = v
	}
	if v, ok := lookup(EnvListen); ok {
		o.Listen = v
	}
	if v, ok := lookup(EnvTokenTTL); ok {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrap(err, errors.CategoryBadInput, fmt.Sprintf("invalid %s", EnvTokenTTL))
		}
		o.TokenTTL = ttl
	}
	if v, ok := lookup(EnvDebug); ok {
		debug, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrap(err, errors.CategoryBadInput, fmt.Sprintf("invalid %s", EnvDebug))
		}
		o.Debug = debug
	}
	return nil
}

// Validate checks the options are usable for issuing tokens.
func (o Options) Validate() error {
	err := validation.ValidateStruct(&o,
		validation.Field(&o.SigningKey, validation.Required, validation.Length(MinSigningKeyLength, 0)),
		validation.Field(&o.TokenTTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&o.Issuer, validation.Required),
		validation.Field(&o.Audience, validation.Required),
		validation.Field(&o.DefaultRole, validation.Required),
		validation.Field(&o.MinPasswordLength, validation.Min(1)),
	)
	if err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "invalid auth options")
	}
	for i, key := range o.RetiredKeys {
		if len(key) < MinSigningKeyLength {
			return errors.New("retired signing key is too short", errors.CategoryValidation).
				WithMetadata(map[string]any{"index": i})
		}
	}
	return nil
}

func (o Options) GetSigningKey() string      { return o.SigningKey }
func (o Options) GetTokenTTL() time.Duration { return o.TokenTTL }
func (o Options) GetIssuer() string          { return o.Issuer }
func (o Options) GetAudience() []string      { return o.Audience }
func (o Options) GetDefaultRole() string     { return o.DefaultRole }
func (o Options) GetMinPasswordLength() int  { return o.MinPasswordLength }
func (o Options) GetContextKey() string      { return o.ContextKey }
func (o Options) GetRetiredKeys() []string   { return o.RetiredKeys }
