// Package config loads process configuration from INTERDIAG_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Config holds process-level settings shared by the commands.
type Config struct {
	// Logging
	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=console json"`

	Blob   Blob
	Ledger Ledger

	// Observability
	MetricsTextfile string
	OTLPEndpoint    string
	OTLPInsecure    bool
	ServiceName     string `validate:"required"`
}

// Blob selects the artifact store.
type Blob struct {
	Driver      string `validate:"oneof=fs s3 memory"`
	FSRoot      string
	S3Bucket    string `validate:"required_if=Driver s3"`
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool
}

// Ledger selects the run ledger backend.
type Ledger struct {
	Driver      string `validate:"oneof=memory sqlite postgres"`
	SQLitePath  string `validate:"required_if=Driver sqlite"`
	PostgresDSN string `validate:"required_if=Driver postgres"`
}

// Environment variables read by Load.
const (
	EnvLogLevel        = "INTERDIAG_LOG_LEVEL"
	EnvLogFormat       = "INTERDIAG_LOG_FORMAT"
	EnvBlobDriver      = "INTERDIAG_BLOB_DRIVER"
	EnvBlobFSRoot      = "INTERDIAG_BLOB_FS_ROOT"
	EnvBlobS3Bucket    = "INTERDIAG_BLOB_S3_BUCKET"
	EnvBlobS3Region    = "INTERDIAG_BLOB_S3_REGION"
	EnvBlobS3Endpoint  = "INTERDIAG_BLOB_S3_ENDPOINT"
	EnvBlobS3PathStyle = "INTERDIAG_BLOB_S3_PATH_STYLE"
	EnvLedgerDriver    = "INTERDIAG_LEDGER_DRIVER"
	EnvSQLitePath      = "INTERDIAG_SQLITE_PATH"
	EnvPostgresDSN     = "INTERDIAG_POSTGRES_DSN"
	EnvMetricsTextfile = "INTERDIAG_METRICS_TEXTFILE"
	EnvOTLPEndpoint    = "INTERDIAG_OTLP_ENDPOINT"
	EnvOTLPInsecure    = "INTERDIAG_OTLP_INSECURE"
	EnvServiceName     = "INTERDIAG_SERVICE_NAME"
)

// Load reads the environment and validates the result.
func Load() (Config, error) {
	cfg := Config{
		LogLevel:  strings.ToLower(getEnv(EnvLogLevel, "info")),
		LogFormat: strings.ToLower(getEnv(EnvLogFormat, "console")),
		Blob: Blob{
			Driver:      getEnv(EnvBlobDriver, "fs"),
			FSRoot:      getEnv(EnvBlobFSRoot, "./artifacts"),
			S3Bucket:    os.Getenv(EnvBlobS3Bucket),
			S3Region:    os.Getenv(EnvBlobS3Region),
			S3Endpoint:  os.Getenv(EnvBlobS3Endpoint),
			S3PathStyle: getEnvBool(EnvBlobS3PathStyle, false),
		},
		Ledger: Ledger{
			Driver:      getEnv(EnvLedgerDriver, "sqlite"),
			SQLitePath:  getEnv(EnvSQLitePath, "interdiag.db"),
			PostgresDSN: os.Getenv(EnvPostgresDSN),
		},
		MetricsTextfile: os.Getenv(EnvMetricsTextfile),
		OTLPEndpoint:    os.Getenv(EnvOTLPEndpoint),
		OTLPInsecure:    getEnvBool(EnvOTLPInsecure, false),
		ServiceName:     getEnv(EnvServiceName, "interdiag"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return FormatValidationError("configuration", err)
	}
	return nil
}

// FormatValidationError flattens validator errors into one message naming
// what was validated.
func FormatValidationError(what string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, formatFieldError(e))
	}
	return fmt.Errorf("invalid %s: %s", what, strings.Join(msgs, "; "))
}

func formatFieldError(e validator.FieldError) string {
	field := e.Namespace()
	switch e.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", field)
	case "required_without":
		return fmt.Sprintf("%s is required when %s is not set", field, e.Param())
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", field, e.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := strings.ToLower(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v == "true" || v == "1" || v == "yes"
}
