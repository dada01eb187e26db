// Package config loads relay server configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// DefaultSessionsURL is the ChatKit session issuance endpoint.
const DefaultSessionsURL = "https://api.openai.com/v1/chatkit/sessions"

// DefaultWorkflowID is the published Dojo workflow.
const DefaultWorkflowID = "wf_69504ca5bd048190a8e10c1486defe7a07130d0df37f6b51"

// Config is the relay server configuration.
//
// The upstream secret is read from the environment only; it has no flag.
type Config struct {
	Addr       string `env:"DOJO_RELAY_ADDR"        envDefault:":8080"`
	HealthAddr string `env:"DOJO_RELAY_HEALTH_ADDR" envDefault:":8081"`
	TLSCert    string `env:"DOJO_RELAY_TLS_CERT"`
	TLSKey     string `env:"DOJO_RELAY_TLS_KEY"`
	Dev        bool   `env:"DOJO_RELAY_DEV"`

	APIKey      string `env:"OPENAI_API_KEY"`
	SessionsURL string `env:"CHATKIT_SESSIONS_URL" envDefault:"https://api.openai.com/v1/chatkit/sessions"`
	WorkflowID  string `env:"CHATKIT_WORKFLOW_ID"  envDefault:"wf_69504ca5bd048190a8e10c1486defe7a07130d0df37f6b51"`

	// UpstreamTimeout of zero leaves the upstream call bounded only by the request context.
	UpstreamTimeout time.Duration `env:"CHATKIT_UPSTREAM_TIMEOUT" envDefault:"0s"`
	MaxBodyBytes    int64         `env:"DOJO_RELAY_MAX_BODY_BYTES" envDefault:"65536"`
	ShutdownTimeout time.Duration `env:"DOJO_RELAY_SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

// Load parses Config from the environment and fills empty values with defaults.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if strings.TrimSpace(cfg.SessionsURL) == "" {
		cfg.SessionsURL = DefaultSessionsURL
	}
	if strings.TrimSpace(cfg.WorkflowID) == "" {
		cfg.WorkflowID = DefaultWorkflowID
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 << 10
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	return cfg, nil
}

// HasSecret reports whether the upstream credential is configured.
func (c Config) HasSecret() bool { return c.APIKey != "" }

// TLSEnabled reports whether both certificate and key were provided.
func (c Config) TLSEnabled() bool { return c.TLSCert != "" && c.TLSKey != "" }
