// Package config loads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joelkehle/venture-assessment/internal/analysisclient"
	"github.com/joelkehle/venture-assessment/internal/venture"
)

const (
	BackendHTTP      = "http"
	BackendAnthropic = "anthropic"
)

type Config struct {
	Backend         string
	APIToken        string
	AnthropicAPIKey string
	Endpoints       map[venture.Domain]string
	Timeouts        map[venture.Domain]time.Duration
	DBPath          string
	WebDir          string
	Port            int
	OTLPEndpoint    string
}

// FromEnv reads the configuration. Missing values take their defaults;
// malformed values are errors.
func FromEnv() (Config, error) {
	c := Config{
		Backend:         strings.ToLower(envOr("ANALYSIS_BACKEND", BackendHTTP)),
		APIToken:        strings.TrimSpace(os.Getenv("ANALYSIS_API_TOKEN")),
		AnthropicAPIKey: strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")),
		Endpoints:       map[venture.Domain]string{},
		Timeouts:        map[venture.Domain]time.Duration{},
		DBPath:          envOr("DB_PATH", "./data/assessments.db"),
		WebDir:          envOr("WEB_DIR", "./web"),
		Port:            8080,
		OTLPEndpoint:    strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
	}
	for _, d := range domains {
		prefix := envPrefix(d)
		c.Endpoints[d] = strings.TrimSpace(os.Getenv(prefix + "_ENDPOINT"))
		c.Timeouts[d] = analysisclient.DefaultTimeouts[d]
		if raw := strings.TrimSpace(os.Getenv(prefix + "_TIMEOUT")); raw != "" {
			dur, err := time.ParseDuration(raw)
			if err != nil || dur <= 0 {
				return Config{}, fmt.Errorf("invalid %s_TIMEOUT %q", prefix, raw)
			}
			c.Timeouts[d] = dur
		}
	}
	if raw := strings.TrimSpace(os.Getenv("PORT")); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil || p <= 0 || p > 65535 {
			return Config{}, fmt.Errorf("invalid PORT %q", raw)
		}
		c.Port = p
	}
	return c, nil
}

// Validate reports every setting the chosen backend is missing.
func (c Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendHTTP:
		for _, d := range domains {
			if c.Endpoints[d] == "" {
				errs = append(errs, fmt.Errorf("missing %s_ENDPOINT", envPrefix(d)))
			}
		}
	case BackendAnthropic:
		if c.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("missing ANTHROPIC_API_KEY"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ANALYSIS_BACKEND %q", c.Backend))
	}
	if strings.TrimSpace(c.DBPath) == "" {
		errs = append(errs, errors.New("missing DB_PATH"))
	}
	return errors.Join(errs...)
}

// Endpoint returns the HTTP endpoint settings for d.
func (c Config) Endpoint(d venture.Domain) analysisclient.Endpoint {
	return analysisclient.Endpoint{
		URL:     c.Endpoints[d],
		Token:   c.APIToken,
		Timeout: c.Timeouts[d],
	}
}

func (c Config) Addr() string { return fmt.Sprintf(":%d", c.Port) }

var domains = []venture.Domain{
	venture.DomainCompany,
	venture.DomainTeam,
	venture.DomainFunding,
	venture.DomainCompetitive,
	venture.DomainMarket,
	venture.DomainIPRisk,
}

func envPrefix(d venture.Domain) string { return strings.ToUpper(string(d)) }

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
