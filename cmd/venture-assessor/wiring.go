package main

import (
	"fmt"

	"github.com/joelkehle/venture-assessment/internal/analysisclient"
	"github.com/joelkehle/venture-assessment/internal/config"
	"github.com/joelkehle/venture-assessment/internal/pipeline"
)

const serviceName = "venture-assessor"

func loadConfig() (config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// buildClients creates one analysis client per phase for the configured
// backend.
func buildClients(cfg config.Config) analysisclient.Set {
	set := analysisclient.Set{}
	var messages analysisclient.Messager
	if cfg.Backend == config.BackendAnthropic {
		messages = analysisclient.NewMessager(cfg.AnthropicAPIKey)
	}
	for _, spec := range pipeline.DefaultPhases {
		if messages != nil {
			set[spec.Key] = analysisclient.NewAnthropicClient(spec.Key, messages, cfg.Timeouts[spec.Key])
			continue
		}
		set[spec.Key] = analysisclient.NewHTTPClient(spec.Key, cfg.Endpoint(spec.Key))
	}
	return set
}
