// Package analysisclient issues one hosted-inference call per analysis phase.
package analysisclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/joelkehle/venture-assessment/internal/venture"
)

// Analyzer runs one domain's external analysis. Implementations must honor
// ctx cancellation promptly and never retry.
type Analyzer interface {
	Analyze(ctx context.Context, req venture.Request) (venture.Envelope, error)
}

// Set holds one Analyzer per domain.
type Set map[venture.Domain]Analyzer

func (s Set) For(d venture.Domain) (Analyzer, error) {
	a, ok := s[d]
	if !ok || a == nil {
		return nil, fmt.Errorf("no analysis client configured for %s", d)
	}
	return a, nil
}

// Endpoint describes one hosted inference flow.
type Endpoint struct {
	URL     string
	Token   string
	Timeout time.Duration
	// PrimarySlot and SecondarySlot are the request input ids.
	PrimarySlot   string
	SecondarySlot string
}

// DefaultInputSlots is the request input layout per domain.
var DefaultInputSlots = map[venture.Domain][2]string{
	venture.DomainCompany:     {"in-0", ""},
	venture.DomainTeam:        {"in-0", ""},
	venture.DomainFunding:     {"in-0", ""},
	venture.DomainCompetitive: {"in-0", ""},
	venture.DomainMarket:      {"in-1", "in-2"},
	venture.DomainIPRisk:      {"in-0", ""},
}

// DefaultTimeouts bound each external call.
var DefaultTimeouts = map[venture.Domain]time.Duration{
	venture.DomainCompany:     10 * time.Minute,
	venture.DomainTeam:        10 * time.Minute,
	venture.DomainFunding:     10 * time.Minute,
	venture.DomainCompetitive: 8 * time.Minute,
	venture.DomainMarket:      700 * time.Second,
	venture.DomainIPRisk:      10 * time.Minute,
}

type HTTPClient struct {
	domain   venture.Domain
	endpoint Endpoint
	http     *http.Client
}

func NewHTTPClient(d venture.Domain, ep Endpoint) *HTTPClient {
	slots := DefaultInputSlots[d]
	if ep.PrimarySlot == "" {
		ep.PrimarySlot = slots[0]
	}
	if ep.SecondarySlot == "" {
		ep.SecondarySlot = slots[1]
	}
	if ep.Timeout <= 0 {
		ep.Timeout = DefaultTimeouts[d]
	}
	return &HTTPClient{
		domain:   d,
		endpoint: ep,
		// Deadlines come from the per-call context.
		http: &http.Client{},
	}
}

func (c *HTTPClient) Analyze(ctx context.Context, req venture.Request) (venture.Envelope, error) {
	payload := map[string]string{
		"user_id":              req.Identifier,
		c.endpoint.PrimarySlot: strings.TrimSpace(req.PrimaryInput),
	}
	if c.endpoint.SecondarySlot != "" && req.SecondaryInput != "" {
		payload[c.endpoint.SecondarySlot] = req.SecondaryInput
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return venture.Envelope{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, c.endpoint.Timeout)
	defer cancel()

	headers := map[string]string{}
	if c.endpoint.Token != "" {
		headers["Authorization"] = "Bearer " + c.endpoint.Token
	}
	blob, status, err := c.doJSON(callCtx, http.MethodPost, body, headers)
	if err != nil {
		return venture.Envelope{}, classify(ctx, callCtx, c.domain, c.endpoint.Timeout, status, blob, err)
	}

	var env venture.Envelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return venture.Envelope{}, &CallError{Domain: c.domain, Status: status, Err: fmt.Errorf("decode response: %w", err)}
	}
	return env, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method string, payload []byte, headers map[string]string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	if resp.StatusCode >= 400 {
		return blob, resp.StatusCode, fmt.Errorf("status=%d", resp.StatusCode)
	}
	return blob, resp.StatusCode, nil
}
