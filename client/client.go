package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/totegamma/helm"
)

const (
	defaultTimeout   = 3 * time.Second
	defaultUserAgent = "helm-client"
)

// Client talks to one helm node over its REST surface.
type Client struct {
	client    *http.Client
	cache     *cache.Cache
	userAgent string
	baseURL   string
	token     string
}

func New(baseURL string) *Client {
	httpClient := http.Client{
		Timeout: defaultTimeout,
	}

	c := &Client{
		client:    &httpClient,
		cache:     cache.New(10*time.Minute, 15*time.Minute),
		userAgent: defaultUserAgent,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
	}
	httpClient.Transport = c
	return c
}

// WithToken makes every request carry token as bearer authorization.
func (c *Client) WithToken(token string) *Client {
	c.token = token
	return c
}

func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return http.DefaultTransport.RoundTrip(req)
}

// APIError is a non 2xx answer from the node.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("helm: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("helm: %d: %s", e.Status, e.Message)
}

func (c *Client) HttpRequest(ctx context.Context, method, path string, body any, response any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if response == nil {
		return nil
	}
	err = json.NewDecoder(resp.Body).Decode(response)
	if err != nil {
		return fmt.Errorf("failed to decode response: %v", err)
	}

	return nil
}

func (c *Client) Commit(ctx context.Context, sd helm.SignedDocument) (helm.CommitResult, error) {
	var result helm.CommitResult
	err := c.HttpRequest(ctx, http.MethodPost, "/commit", sd, &result)
	return result, err
}

// WellKnown fetches the node description. Answers are cached.
func (c *Client) WellKnown(ctx context.Context) (helm.WellKnown, error) {
	cacheKey := "wellknown:" + c.baseURL
	if x, found := c.cache.Get(cacheKey); found {
		return x.(helm.WellKnown), nil
	}

	var wk helm.WellKnown
	if err := c.HttpRequest(ctx, http.MethodGet, "/.well-known/helm", nil, &wk); err != nil {
		return helm.WellKnown{}, err
	}

	c.cache.Set(cacheKey, wk, cache.DefaultExpiration)
	return wk, nil
}

// Get decodes the record at a query path such as /accounts/{address} into result.
func (c *Client) Get(ctx context.Context, path string, result any) error {
	return c.HttpRequest(ctx, http.MethodGet, path, nil, result)
}
