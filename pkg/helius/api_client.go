package helius

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.helius.xyz"
	DefaultRPCURL  = "https://mainnet.helius-rpc.com"
)

// Client represents a Helius API client
type Client struct {
	apiKey     string
	baseURL    string
	rpcURL     string
	httpClient *http.Client
}

// Option customises a Client
type Option func(*Client)

// WithBaseURL points the REST endpoints at another host
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithRPCURL points the JSON-RPC endpoint at another host
func WithRPCURL(rpcURL string) Option {
	return func(c *Client) {
		c.rpcURL = strings.TrimRight(rpcURL, "/")
	}
}

// WithHTTPClient replaces the underlying http client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a new Helius API client
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		rpcURL:  DefaultRPCURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				IdleConnTimeout:       10 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RPCURL returns the JSON-RPC endpoint including the api key
func (c *Client) RPCURL() string {
	return fmt.Sprintf("%s/?api-key=%s", c.rpcURL, c.apiKey)
}

// postJSON sends payload to the REST path and decodes the response into out
func (c *Client) postJSON(ctx context.Context, path string, payload interface{}, out interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request payload: %w", err)
	}

	url := fmt.Sprintf("%s%s?api-key=%s", c.baseURL, path, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// APIError is returned for non-200 responses
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API request failed with status code: %d", e.StatusCode)
}

// GetEnhancedTransactions retrieves enhanced transactions by their signatures
func (c *Client) GetEnhancedTransactions(ctx context.Context, signatures []string) ([]EnhancedTransaction, error) {
	payload := map[string]interface{}{
		"transactions": signatures,
	}

	var transactions []EnhancedTransaction
	if err := c.postJSON(ctx, "/v0/transactions", payload, &transactions); err != nil {
		return nil, err
	}
	return transactions, nil
}

// GetActiveListings returns one page of active marketplace listings for a collection filter
func (c *Client) GetActiveListings(ctx context.Context, req ActiveListingsRequest) (*ActiveListingsResponse, error) {
	var out ActiveListingsResponse
	if err := c.postJSON(ctx, "/v1/active-listings", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchNFTEvents returns one page of NFT events matching the query
func (c *Client) SearchNFTEvents(ctx context.Context, req NFTEventsRequest) (*NFTEventsResponse, error) {
	var out NFTEventsResponse
	if err := c.postJSON(ctx, "/v1/nft-events", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
