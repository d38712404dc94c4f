package taskclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// WellKnownPath is where every agent publishes its capability card.
const WellKnownPath = "/.well-known/agent.json"

// AgentCard describes an agent's identity and task endpoint.
type AgentCard struct {
	AgentID        string   `json:"agent_id"`
	Endpoint       string   `json:"endpoint"`
	Capabilities   []string `json:"capabilities"`
	Authentication string   `json:"authentication"`
	InputFormats   []string `json:"input_formats"`
	OutputFormats  []string `json:"output_formats"`
	Description    string   `json:"description"`
}

// CardURL derives the capability card location from a worker task endpoint.
func CardURL(endpoint string) (string, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse worker url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("worker url %q is not absolute", endpoint)
	}
	return (&url.URL{Scheme: parsed.Scheme, Host: parsed.Host, Path: WellKnownPath}).String(), nil
}

// Discover fetches the capability card of the worker serving endpoint. It is
// used for readiness checks and never retried.
func (c *Client) Discover(ctx context.Context, endpoint string) (AgentCard, error) {
	var card AgentCard
	cardURL, err := CardURL(endpoint)
	if err != nil {
		return card, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cardURL, nil)
	if err != nil {
		return card, fmt.Errorf("discover %s: %w", cardURL, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return card, &TransportError{Kind: KindUnreachable, URL: cardURL, Err: err}
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return card, &TransportError{Kind: KindUnreachable, URL: cardURL, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return card, &TransportError{Kind: KindRemoteRejected, URL: cardURL, Status: resp.StatusCode, Body: truncate(string(payload), bodyLimit)}
	}
	if err := json.Unmarshal(payload, &card); err != nil {
		return card, &TransportError{Kind: KindMalformedResponse, URL: cardURL, Raw: summarize(string(payload)), Err: err}
	}
	return card, nil
}
