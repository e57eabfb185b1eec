package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// ERPClient talks to the ERP API over HTTP.
type ERPClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// APIError is the error body returned by the server.
type APIError struct {
	Status    int               `json:"-"`
	Title     string            `json:"error"`
	Message   string            `json:"message"`
	RequestID string            `json:"request_id,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("server error %d: %s - %s", e.Status, e.Title, e.Message)
	fields := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		msg += fmt.Sprintf("\n  %s: %s", field, e.Fields[field])
	}
	return msg
}

type LoginRequest struct {
	TenantID string `json:"tenantId"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token        string `json:"token" yaml:"token"`
	RefreshToken string `json:"refreshToken" yaml:"refreshToken"`
	TokenType    string `json:"tokenType" yaml:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn" yaml:"expiresIn"`
	User         struct {
		ID    string   `json:"id" yaml:"id"`
		Email string   `json:"email" yaml:"email"`
		Name  string   `json:"name" yaml:"name"`
		Roles []string `json:"roles" yaml:"roles"`
	} `json:"user" yaml:"user"`
}

type MeResponse struct {
	UserID      string    `json:"userId" yaml:"userId"`
	Email       string    `json:"email" yaml:"email"`
	TenantID    string    `json:"tenantId" yaml:"tenantId"`
	BranchID    string    `json:"branchId,omitempty" yaml:"branchId,omitempty"`
	Roles       []string  `json:"roles" yaml:"roles"`
	Permissions []string  `json:"permissions" yaml:"permissions"`
	ExpiresAt   time.Time `json:"expiresAt" yaml:"expiresAt"`
}

type CanResponse struct {
	Mode        string   `json:"mode" yaml:"mode"`
	Permissions []string `json:"permissions" yaml:"permissions"`
	Allowed     bool     `json:"allowed" yaml:"allowed"`
}

type FeaturesResponse struct {
	TenantID string          `json:"tenantId" yaml:"tenantId"`
	State    string          `json:"state" yaml:"state"`
	Source   string          `json:"source" yaml:"source"`
	Flags    map[string]bool `json:"flags" yaml:"flags"`
	Error    string          `json:"error,omitempty" yaml:"error,omitempty"`
}

type NavigationItem struct {
	Key     string `json:"key" yaml:"key"`
	Label   string `json:"label" yaml:"label"`
	Path    string `json:"path" yaml:"path"`
	Section string `json:"section" yaml:"section"`
}

type NavigationResponse struct {
	State string           `json:"state" yaml:"state"`
	Items []NavigationItem `json:"items" yaml:"items"`
}

func NewERPClient(baseURL, token string, timeout time.Duration) *ERPClient {
	return &ERPClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *ERPClient) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	var out LoginResponse
	if err := c.do(ctx, http.MethodPost, "/v1/auth/login", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *ERPClient) Logout(ctx context.Context, refreshToken string) error {
	body := map[string]string{}
	if refreshToken != "" {
		body["refreshToken"] = refreshToken
	}
	return c.do(ctx, http.MethodPost, "/v1/auth/logout", body, nil)
}

func (c *ERPClient) Me(ctx context.Context) (*MeResponse, error) {
	var out MeResponse
	if err := c.do(ctx, http.MethodGet, "/v1/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *ERPClient) Can(ctx context.Context, permissions []string, mode string) (*CanResponse, error) {
	q := url.Values{}
	q.Set("permission", strings.Join(permissions, ","))
	if mode != "" {
		q.Set("mode", mode)
	}
	var out CanResponse
	if err := c.do(ctx, http.MethodGet, "/v1/auth/can?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *ERPClient) Features(ctx context.Context) (*FeaturesResponse, error) {
	var out FeaturesResponse
	if err := c.do(ctx, http.MethodGet, "/v1/features", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *ERPClient) SetFeatures(ctx context.Context, flags map[string]bool) (*FeaturesResponse, error) {
	var out FeaturesResponse
	if err := c.do(ctx, http.MethodPut, "/v1/features", map[string]any{"flags": flags}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *ERPClient) RefreshFeatures(ctx context.Context) (*FeaturesResponse, error) {
	var out FeaturesResponse
	if err := c.do(ctx, http.MethodPost, "/v1/features/refresh", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *ERPClient) Navigation(ctx context.Context) (*NavigationResponse, error) {
	var out NavigationResponse
	if err := c.do(ctx, http.MethodGet, "/v1/me/navigation", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *ERPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		jsonData, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.Unmarshal(respBody, apiErr); err != nil || apiErr.Message == "" {
			return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}
		return apiErr
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
