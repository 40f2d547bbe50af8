package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/nshruti113/netguard-dashboard/internal/models"
	"github.com/nshruti113/netguard-dashboard/internal/normalize"
)

// Resource names used in logs, metrics and errors
const (
	ResourceStatus = "status"
	ResourceFlows  = "flows"
	ResourceAlerts = "alerts"
	ResourceAuth   = "auth"
	ResourceConfig = "config"
)

// Status fetches the aggregate network status
func (c *Client) Status(ctx context.Context) (models.Status, error) {
	cl := call{resource: ResourceStatus, method: http.MethodGet, path: "/status/"}
	body, err := c.do(ctx, cl)
	if err != nil {
		return models.Status{}, err
	}
	s, ok := normalize.Status(body)
	if !ok {
		return models.Status{}, malformed(cl)
	}
	return s, nil
}

// Flows fetches every flow. Malformed elements are dropped.
func (c *Client) Flows(ctx context.Context) ([]models.NetworkFlow, error) {
	body, err := c.do(ctx, call{resource: ResourceFlows, method: http.MethodGet, path: "/flows/"})
	if err != nil {
		return nil, err
	}
	return normalize.Flows(body), nil
}

// RecentFlows fetches the latest limit flows
func (c *Client) RecentFlows(ctx context.Context, limit int) ([]models.NetworkFlow, error) {
	path := fmt.Sprintf("/flows/recent/?limit=%d", max(limit, 1))
	body, err := c.do(ctx, call{resource: ResourceFlows, method: http.MethodGet, path: path})
	if err != nil {
		return nil, err
	}
	return normalize.Flows(body), nil
}

// Flow fetches a single flow by id
func (c *Client) Flow(ctx context.Context, id string) (models.NetworkFlow, error) {
	cl := call{resource: ResourceFlows, method: http.MethodGet, path: "/flows/" + url.PathEscape(id) + "/"}
	body, err := c.do(ctx, cl)
	if err != nil {
		return models.NetworkFlow{}, err
	}
	f, ok := normalize.Flow(body)
	if !ok {
		return models.NetworkFlow{}, malformed(cl)
	}
	return f, nil
}

// CreateFlow submits a flow record and returns the stored version
func (c *Client) CreateFlow(ctx context.Context, flow models.NetworkFlow) (models.NetworkFlow, error) {
	cl := call{resource: ResourceFlows, method: http.MethodPost, path: "/flows/", body: flow}
	body, err := c.do(ctx, cl)
	if err != nil {
		return models.NetworkFlow{}, err
	}
	f, ok := normalize.Flow(body)
	if !ok {
		return models.NetworkFlow{}, malformed(cl)
	}
	return f, nil
}

// Alerts fetches every alert, with severities filled in
func (c *Client) Alerts(ctx context.Context) ([]models.Alert, error) {
	body, err := c.do(ctx, call{resource: ResourceAlerts, method: http.MethodGet, path: "/alerts/"})
	if err != nil {
		return nil, err
	}
	return normalize.Alerts(body), nil
}

// RecentAlerts fetches the latest limit alerts
func (c *Client) RecentAlerts(ctx context.Context, limit int) ([]models.Alert, error) {
	path := fmt.Sprintf("/alerts/recent/?limit=%d", max(limit, 1))
	body, err := c.do(ctx, call{resource: ResourceAlerts, method: http.MethodGet, path: path})
	if err != nil {
		return nil, err
	}
	return normalize.Alerts(body), nil
}

// AlertsBySeverity asks the API for alerts already tagged with sev
func (c *Client) AlertsBySeverity(ctx context.Context, sev models.Severity) ([]models.Alert, error) {
	if !sev.Valid() {
		return nil, fmt.Errorf("invalid severity %d", sev)
	}
	path := "/alerts/severity/" + sev.String() + "/"
	body, err := c.do(ctx, call{resource: ResourceAlerts, method: http.MethodGet, path: path})
	if err != nil {
		return nil, err
	}
	return normalize.Alerts(body), nil
}

// Alert fetches a single alert by id
func (c *Client) Alert(ctx context.Context, id string) (models.Alert, error) {
	cl := call{resource: ResourceAlerts, method: http.MethodGet, path: "/alerts/" + url.PathEscape(id) + "/"}
	body, err := c.do(ctx, cl)
	if err != nil {
		return models.Alert{}, err
	}
	a, ok := normalize.Alert(body)
	if !ok {
		return models.Alert{}, malformed(cl)
	}
	return a, nil
}

// Login exchanges credentials for a token and stores it in the session
func (c *Client) Login(ctx context.Context, req models.LoginRequest) (models.Credential, error) {
	return c.authenticate(ctx, call{resource: ResourceAuth, method: http.MethodPost, path: "/auth/login/", body: req, public: true})
}

// Register creates an account and stores the issued token in the session
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (models.Credential, error) {
	return c.authenticate(ctx, call{resource: ResourceAuth, method: http.MethodPost, path: "/auth/register/", body: req, public: true})
}

func (c *Client) authenticate(ctx context.Context, cl call) (models.Credential, error) {
	body, err := c.do(ctx, cl)
	if err != nil {
		return models.Credential{}, err
	}
	cred, ok := normalize.Credential(body)
	if !ok {
		return models.Credential{}, malformed(cl)
	}
	if err := c.session.SetToken(cred.Token); err != nil {
		return models.Credential{}, fmt.Errorf("store credential: %w", err)
	}
	return cred, nil
}

// Logout forgets the stored credential
func (c *Client) Logout() error {
	return c.session.Clear()
}

// APIKey fetches the account's API key material
func (c *Client) APIKey(ctx context.Context) (models.APIKey, error) {
	cl := call{resource: ResourceAuth, method: http.MethodGet, path: "/auth/api-key/"}
	body, err := c.do(ctx, cl)
	if err != nil {
		return models.APIKey{}, err
	}
	k, ok := normalize.APIKey(body)
	if !ok {
		return models.APIKey{}, malformed(cl)
	}
	return k, nil
}

// Config fetches the server-side configuration document
func (c *Client) Config(ctx context.Context) (models.RemoteConfig, error) {
	cl := call{resource: ResourceConfig, method: http.MethodGet, path: "/config/"}
	body, err := c.do(ctx, cl)
	if err != nil {
		return nil, err
	}
	var cfg models.RemoteConfig
	if err := json.Unmarshal(body, &cfg); err != nil || cfg == nil {
		return nil, malformed(cl)
	}
	return cfg, nil
}
