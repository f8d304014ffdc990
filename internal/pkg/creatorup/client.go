package creatorup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/digiup/backend/internal/pkg/env"
)

const (
	pushTimeout = 10 * time.Second
	readTimeout = 5 * time.Second
)

// APIError carries a non-2xx partner response so callers can persist the raw
// body alongside the failure.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("creatorup api returned status %d", e.Status)
}

// Client talks to the CreatorUp platform. Outbound profile pushes use the
// calling user's own bearer token (delegated credentials); webhook-style
// pushes toward the partner are HMAC-signed instead.
type Client struct {
	creatorUpAPIURL string
	digiUpAPIURL    string
	webhookSecret   string
	pushClient      *http.Client
	readClient      *http.Client
}

// NewClient builds a client from the environment configuration.
func NewClient() *Client {
	return &Client{
		creatorUpAPIURL: env.GetEnv("CREATORUP_API_URL", "https://api.creatorup.com"),
		digiUpAPIURL:    env.GetEnv("DIGIUP_API_URL", "https://api.digiup.com"),
		webhookSecret:   env.GetEnv("WEBHOOK_SECRET", "your-webhook-secret"),
		pushClient:      &http.Client{Timeout: pushTimeout},
		readClient:      &http.Client{Timeout: readTimeout},
	}
}

// WebhookSecret exposes the shared secret for inbound verification.
func (c *Client) WebhookSecret() string {
	return c.webhookSecret
}

// PushUserProfile pushes a user profile to CreatorUp, authenticated as the
// calling user via their DigiUp token.
func (c *Client) PushUserProfile(ctx context.Context, userData map[string]interface{}, digiupToken string) (map[string]interface{}, error) {
	url := c.creatorUpAPIURL + "/api/v1/digiup/sync-user"

	body, err := json.Marshal(userData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal user data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+digiupToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-DigiUp-Source", "digiup-api")
	req.Header.Set("X-Request-ID", uuid.New().String())

	return c.do(c.pushClient, req)
}

// PushUsageUpdate sends a signed usage notification to the DigiUp-facing
// webhook endpoint on the partner side.
func (c *Client) PushUsageUpdate(ctx context.Context, usageData map[string]interface{}) (map[string]interface{}, error) {
	return c.pushSigned(ctx, c.digiUpAPIURL+"/api/v1/creatorup/webhook/usage-update", usageData)
}

// PushSubscriptionUpdate sends a signed subscription notification.
func (c *Client) PushSubscriptionUpdate(ctx context.Context, subscriptionData map[string]interface{}) (map[string]interface{}, error) {
	return c.pushSigned(ctx, c.digiUpAPIURL+"/api/v1/creatorup/webhook/subscription-update", subscriptionData)
}

func (c *Client) pushSigned(ctx context.Context, url string, data map[string]interface{}) (map[string]interface{}, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", SignRaw(body, c.webhookSecret))
	req.Header.Set("X-CreatorUp-Source", "creatorup-api")
	req.Header.Set("X-Request-ID", uuid.New().String())

	return c.do(c.pushClient, req)
}

// VerifyAccess checks that the given DigiUp token is accepted by CreatorUp.
func (c *Client) VerifyAccess(ctx context.Context, digiupToken string) (map[string]interface{}, error) {
	return c.getDelegated(ctx, c.creatorUpAPIURL+"/api/v1/digiup/verify", digiupToken)
}

// FetchProfile loads the caller's CreatorUp profile.
func (c *Client) FetchProfile(ctx context.Context, digiupToken string) (map[string]interface{}, error) {
	return c.getDelegated(ctx, c.creatorUpAPIURL+"/api/v1/digiup/profile", digiupToken)
}

// CheckFeatureAccess asks CreatorUp whether the caller may use a feature.
func (c *Client) CheckFeatureAccess(ctx context.Context, digiupToken, feature string) (map[string]interface{}, error) {
	url := fmt.Sprintf("%s/api/v1/membership/feature/%s/access", c.creatorUpAPIURL, feature)
	return c.getDelegated(ctx, url, digiupToken)
}

func (c *Client) getDelegated(ctx context.Context, url, digiupToken string) (map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+digiupToken)
	req.Header.Set("Content-Type", "application/json")

	return c.do(c.readClient, req)
}

// HealthCheck probes the partner liveness endpoint. Any error or non-200
// status means unhealthy; errors are never propagated.
func (c *Client) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.creatorUpAPIURL+"/api/v1/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.readClient.Do(req)
	if err != nil {
		log.Errorf("[CreatorUp] Health check failed: %v", err)
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

func (c *Client) do(hc *http.Client, req *http.Request) (map[string]interface{}, error) {
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	result := map[string]interface{}{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("failed to decode creatorup response: %w", err)
		}
	}
	return result, nil
}
