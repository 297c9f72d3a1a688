// Package api is the typed HTTP client for the open2log remote service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/open2log/open2log-go/internal/model"
)

// Client talks JSON to the remote service. All requests carry JSON
// content-type headers; authenticated requests add a bearer token.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// New creates a client for the given API base URL, e.g.
// "https://api.open2log.com/api/v1". A zero timeout defaults to 30s.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetToken sets the bearer token attached to subsequent requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// AuthResponse is returned by the register and login endpoints.
type AuthResponse struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a new account and returns its session token.
func (c *Client) Register(ctx context.Context, email, password string) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.post(ctx, "/auth/register", credentials{email, password}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login authenticates an existing account and returns its session token.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.post(ctx, "/auth/login", credentials{email, password}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CurrentUser fetches the account owning the current token.
func (c *Client) CurrentUser(ctx context.Context) (*model.User, error) {
	var out model.User
	if err := c.get(ctx, "/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchProducts searches the catalog by free text.
func (c *Client) SearchProducts(ctx context.Context, query string, limit int) ([]model.Product, error) {
	if limit <= 0 {
		limit = 20
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))

	var out []model.Product
	if err := c.get(ctx, "/products", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetProduct fetches a single catalog record.
func (c *Client) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	var out model.Product
	if err := c.get(ctx, "/products/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// NearbyShops fetches shops within radiusKm of the given coordinate.
func (c *Client) NearbyShops(ctx context.Context, lat, lon, radiusKm float64) ([]model.Shop, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("radius", strconv.FormatFloat(radiusKm, 'f', -1, 64))

	var out []model.Shop
	if err := c.get(ctx, "/shops/nearby", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SubmitPrice creates a price record and returns the stored copy.
func (c *Client) SubmitPrice(ctx context.Context, sub model.PriceSubmission) (*model.Price, error) {
	var out model.Price
	if err := c.post(ctx, "/prices", sub, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitPriceRecord submits the flattened price form. Only success or
// failure is reported; the response body is discarded.
func (c *Client) SubmitPriceRecord(ctx context.Context, rec model.PriceRecord) error {
	return c.post(ctx, "/prices", rec, nil)
}

// UploadURLResponse is a presigned object-storage destination.
type UploadURLResponse struct {
	UploadURL string `json:"upload_url"`
	PublicURL string `json:"public_url"`
	ExpiresAt int64  `json:"expires_at"`
}

type uploadURLRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	UploadType  string `json:"upload_type"`
}

// UploadURL requests a presigned upload destination for an image.
func (c *Client) UploadURL(ctx context.Context, filename, contentType, uploadType string) (*UploadURLResponse, error) {
	var out UploadURLResponse
	req := uploadURLRequest{Filename: filename, ContentType: contentType, UploadType: uploadType}
	if err := c.post(ctx, "/prices/upload_url", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// get performs a GET request. Transient failures (network errors and 5xx
// statuses) are retried with fibonacci backoff; GETs are safe to repeat.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	backoff := retry.WithMaxRetries(2, retry.NewFibonacci(250*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.do(ctx, http.MethodGet, path, query, nil, out)
		if err == nil {
			return nil
		}
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && httpErr.Status >= 500 {
			return retry.RetryableError(err)
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) && ctx.Err() == nil {
			return retry.RetryableError(err)
		}
		return err
	})
}

// post performs a POST request. POSTs are never retried.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var errBody struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &errBody) == nil && errBody.Error != "" {
			return &ServerError{Message: errBody.Error}
		}
		return &HTTPError{Status: resp.StatusCode}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}
