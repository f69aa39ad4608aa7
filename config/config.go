// Package config loads gridstore's StoreConfig from environment variables,
// following the teacher's config/config.go EnvConfig pattern: a thin
// prefix-aware wrapper over os.Getenv with typed Get/MustGet accessors, a
// Validator for the same "collect every error, report them together"
// convention the teacher uses for its own service configs, panicking only
// at construction time per spec.md §7's ConfigurationError-never-retried
// rule.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/evalgo/gridstore/common"
	"github.com/evalgo/gridstore/idgen"
	"github.com/sirupsen/logrus"
)

// EnvConfig provides utilities for loading configuration from environment variables.
type EnvConfig struct {
	prefix string // Optional prefix for all environment variables
}

// NewEnvConfig creates a new environment configuration loader.
func NewEnvConfig(prefix string) *EnvConfig {
	return &EnvConfig{prefix: prefix}
}

// GetString retrieves a string value from environment with optional default.
func (ec *EnvConfig) GetString(key, defaultValue string) string {
	return common.GetEnv(ec.buildKey(key), defaultValue)
}

// MustGetString retrieves a required string value from environment or panics.
func (ec *EnvConfig) MustGetString(key string) string {
	fullKey := ec.buildKey(key)
	return common.Must(requiredEnvValue(fullKey))
}

func requiredEnvValue(fullKey string) (string, error) {
	value := common.GetEnv(fullKey, "")
	if value == "" {
		return "", fmt.Errorf("required environment variable %s not set", fullKey)
	}
	return value, nil
}

// GetInt retrieves an integer value from environment with optional default.
func (ec *EnvConfig) GetInt(key string, defaultValue int) int {
	return common.GetEnvInt(ec.buildKey(key), defaultValue)
}

// GetBool retrieves a boolean value from environment with optional default.
func (ec *EnvConfig) GetBool(key string, defaultValue bool) bool {
	return common.GetEnvBool(ec.buildKey(key), defaultValue)
}

// GetDuration retrieves a duration value (seconds, parsed as an integer)
// from environment with optional default.
func (ec *EnvConfig) GetDuration(key string, defaultValue time.Duration) time.Duration {
	defaultSeconds := int(defaultValue / time.Second)
	seconds := common.GetEnvInt(ec.buildKey(key), defaultSeconds)
	return time.Duration(seconds) * time.Second
}

func (ec *EnvConfig) buildKey(key string) string {
	if ec.prefix != "" {
		return ec.prefix + "_" + key
	}
	return key
}

// Validator collects configuration validation errors, matching the
// teacher's "gather everything, report once" style used across its own
// service configs.
type Validator struct {
	errors []string
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{errors: make([]string, 0)}
}

// RequireString validates that a string field is not empty.
func (v *Validator) RequireString(field, value string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
	}
}

// RequireOneOf validates that a value is one of the allowed options.
func (v *Validator) RequireOneOf(field, value string, allowed []string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
		return
	}
	for _, option := range allowed {
		if value == option {
			return
		}
	}
	v.errors = append(v.errors, fmt.Sprintf("%s must be one of: %s", field, strings.Join(allowed, ", ")))
}

// RequirePositiveInt validates that an integer field is positive.
func (v *Validator) RequirePositiveInt(field string, value int) {
	if value <= 0 {
		v.errors = append(v.errors, fmt.Sprintf("%s must be positive", field))
	}
}

// IsValid returns true if there are no validation errors.
func (v *Validator) IsValid() bool {
	return len(v.errors) == 0
}

// Validate runs validation and returns an error if invalid.
func (v *Validator) Validate() error {
	if !v.IsValid() {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(v.errors, "; "))
	}
	return nil
}

// StorageProviderKind is the configured value of ARTIFACT_PROVIDER / the
// storage_provider option, enumerated per spec.md §6.
type StorageProviderKind string

const (
	ProviderMemory         StorageProviderKind = "memory"
	ProviderFilesystem     StorageProviderKind = "filesystem"
	ProviderS3             StorageProviderKind = "s3"
	ProviderIBMCOS         StorageProviderKind = "ibm_cos"
	ProviderVFSMemory      StorageProviderKind = "vfs-memory"
	ProviderVFSFilesystem  StorageProviderKind = "vfs-filesystem"
	ProviderVFSS3          StorageProviderKind = "vfs-s3"
	ProviderVFSSqlite      StorageProviderKind = "vfs-sqlite"
)

// SessionProviderKind is the configured value of SESSION_PROVIDER / the
// session_provider option.
type SessionProviderKind string

const (
	SessionProviderMemory SessionProviderKind = "memory"
	SessionProviderRedis  SessionProviderKind = "redis"
)

var validStorageProviders = []string{
	string(ProviderMemory), string(ProviderFilesystem), string(ProviderS3), string(ProviderIBMCOS),
	string(ProviderVFSMemory), string(ProviderVFSFilesystem), string(ProviderVFSS3), string(ProviderVFSSqlite),
}

var validSessionProviders = []string{string(SessionProviderMemory), string(SessionProviderRedis)}

// StoreConfig is the full set of options recognized by spec.md §6, loaded
// from environment overrides read once at construction (never re-read at
// runtime, matching the spec's ConfigurationError-at-construction policy).
type StoreConfig struct {
	SandboxID       string
	StorageProvider StorageProviderKind
	SessionProvider SessionProviderKind
	Bucket          string
	FSRoot          string
	MaxRetries      int
	DefaultTTLSeconds int
	FederationEnabled bool
	FederationTTLDays int

	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSRegion          string
	S3EndpointURL      string

	IBMCOSEndpoint     string
	IBMCOSAPIKey       string
	IBMCOSInstanceCRN  string

	SessionRedisURL string
}

// DefaultMaxRetries, DefaultTTLSeconds, and DefaultFederationTTLDays mirror
// the numeric defaults named in spec.md §4.3.1 and §6.
const (
	DefaultMaxRetries       = 3
	DefaultTTLSeconds       = 900
	DefaultFederationTTLDays = 30
)

// Load reads a StoreConfig from the environment variables named in
// spec.md §6. sandboxID, storageProvider, sessionProvider, and bucket
// are caller-supplied construction-time overrides (the values an
// ArtifactStore builder would otherwise pass directly); when empty, the
// matching environment variable (or documented default) is used instead.
func Load() (StoreConfig, error) {
	env := NewEnvConfig("")

	cfg := StoreConfig{
		SandboxID:       env.GetString("ARTIFACT_SANDBOX_ID", ""),
		StorageProvider: StorageProviderKind(env.GetString("ARTIFACT_PROVIDER", string(ProviderMemory))),
		SessionProvider: SessionProviderKind(env.GetString("SESSION_PROVIDER", string(SessionProviderMemory))),
		Bucket:          env.GetString("ARTIFACT_BUCKET", ""),
		FSRoot:          env.GetString("ARTIFACT_FS_ROOT", ""),
		MaxRetries:      env.GetInt("ARTIFACT_MAX_RETRIES", DefaultMaxRetries),
		DefaultTTLSeconds: env.GetInt("ARTIFACT_DEFAULT_TTL_SECONDS", DefaultTTLSeconds),
		FederationEnabled: env.GetBool("ARTIFACT_FEDERATION_ENABLED", false),
		FederationTTLDays: env.GetInt("ARTIFACT_FEDERATION_TTL_DAYS", DefaultFederationTTLDays),

		AWSAccessKeyID:     env.GetString("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: env.GetString("AWS_SECRET_ACCESS_KEY", ""),
		AWSRegion:          env.GetString("AWS_REGION", ""),
		S3EndpointURL:      env.GetString("S3_ENDPOINT_URL", ""),

		IBMCOSEndpoint:    env.GetString("IBM_COS_ENDPOINT", ""),
		IBMCOSAPIKey:      env.GetString("IBM_COS_APIKEY", ""),
		IBMCOSInstanceCRN: env.GetString("IBM_COS_INSTANCE_CRN", ""),

		SessionRedisURL: env.GetString("SESSION_REDIS_URL", ""),
	}

	if cfg.SandboxID == "" {
		cfg.SandboxID = idgen.Sandbox()
	}

	common.Logger.WithFields(logrus.Fields{
		"sandbox_id":            cfg.SandboxID,
		"storage_provider":      cfg.StorageProvider,
		"session_provider":      cfg.SessionProvider,
		"aws_secret_access_key": common.MaskSecret(cfg.AWSSecretAccessKey),
		"ibm_cos_apikey":        common.MaskSecret(cfg.IBMCOSAPIKey),
	}).Debug("config: loaded store configuration from environment")

	if err := cfg.validate(); err != nil {
		return StoreConfig{}, err
	}
	return cfg, nil
}

func (cfg StoreConfig) validate() error {
	v := NewValidator()
	v.RequireOneOf("storage_provider", string(cfg.StorageProvider), validStorageProviders)
	v.RequireOneOf("session_provider", string(cfg.SessionProvider), validSessionProviders)

	switch cfg.StorageProvider {
	case ProviderS3, ProviderIBMCOS, ProviderVFSS3:
		v.RequireString("bucket", cfg.Bucket)
	case ProviderFilesystem, ProviderVFSFilesystem, ProviderVFSSqlite:
		v.RequireString("bucket (root directory)", cfg.Bucket)
	}
	if cfg.SessionProvider == SessionProviderRedis {
		v.RequireString("session_redis_url", cfg.SessionRedisURL)
	}
	v.RequirePositiveInt("max_retries", cfg.MaxRetries)
	return v.Validate()
}
