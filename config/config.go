// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

// ServerEnvironment holds every environment-driven setting of the pass
// service.
type ServerEnvironment struct {

	// http server settings
	Environment     string        `env:"ENVIRONMENT,default=dev"`
	Host            string        `env:"HOST,default=0.0.0.0"`
	Port            int           `env:"PORT,default=8080"`
	LogLevel        string        `env:"LOG_LEVEL,default=info"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT,default=30s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT,default=60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`

	// pass generation settings
	PendingTokenTTL time.Duration `env:"PENDING_TOKEN_TTL,default=5m"`
	MaxDrawingBytes int           `env:"MAX_DRAWING_BYTES,default=1048576"`
	RenderWorkers   int           `env:"RENDER_WORKERS,default=4"`

	// tracing settings
	TraceExporter string `env:"TRACE_EXPORTER,default=none"`
	OTLPEndpoint  string `env:"OTLP_ENDPOINT,default=localhost:4317"`

	// Required signing and template material
	CertificatePath        string `env:"PASS_CERTIFICATE_PATH,required=true"`
	CertificatePassword    string `env:"PASS_CERTIFICATE_PASSWORD"`
	IntermediateCertPath   string `env:"INTERMEDIATE_CERT_PATH,required=true"`
	TemplateDir            string `env:"PASS_TEMPLATE_DIR,required=true"`
}

var validEnvs = map[string]bool{
	"dev":     true,
	"test":    true,
	"staging": true,
	"prod":    true,
}

var validExporters = map[string]bool{
	"none":   true,
	"stdout": true,
	"otlp":   true,
}

// NewServerConfig loads and validates the environment.
func NewServerConfig() (*ServerEnvironment, error) {
	var cfg ServerEnvironment

	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal environment variables: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validateConfig(cfg *ServerEnvironment) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}
	if !validEnvs[cfg.Environment] {
		return fmt.Errorf("invalid ENVIRONMENT: %s", cfg.Environment)
	}
	if !validExporters[cfg.TraceExporter] {
		return fmt.Errorf("invalid TRACE_EXPORTER: %s", cfg.TraceExporter)
	}
	if cfg.PendingTokenTTL <= 0 {
		return fmt.Errorf("PENDING_TOKEN_TTL must be positive")
	}
	if cfg.MaxDrawingBytes < 1 {
		return fmt.Errorf("MAX_DRAWING_BYTES must be at least 1")
	}
	if cfg.RenderWorkers < 1 {
		return fmt.Errorf("RENDER_WORKERS must be at least 1")
	}
	return nil
}
