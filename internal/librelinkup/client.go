// Package librelinkup is a small client for the LibreLinkUp follower API.
package librelinkup

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"opent1d/internal/observability"
)

const (
	apiVersion = "4.7.0"
	apiProduct = "llu.ios"

	statusBadCredentials = 2
)

var (
	// ErrLoginFailed is returned when LibreLinkUp rejects the credentials.
	ErrLoginFailed = errors.New("could not login to LibreLinkUp, make sure the username and password is correct")
	// ErrWrongRegionEndpoint is returned when the account lives in another region.
	ErrWrongRegionEndpoint = errors.New("user called wrong region")
)

// Client talks to LibreLinkUp.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     observability.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.httpClient = c }
}

// WithBaseURL sends every request to baseURL instead of the regional host.
func WithBaseURL(baseURL string) ClientOption {
	return func(cl *Client) { cl.baseURL = baseURL }
}

// WithLogger sets the logger used for request tracing at debug level.
func WithLogger(l observability.Logger) ClientOption {
	return func(cl *Client) { cl.logger = l }
}

// NewClient returns a Client with a 30 second timeout.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{httpClient: &http.Client{Timeout: 30 * time.Second}}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = observability.NewLogger(observability.DefaultConfig())
	}
	return c
}

// Ticket is an authenticated session bound to one endpoint.
type Ticket struct {
	Token    string `json:"token"`
	Expires  int64  `json:"expires"`
	Duration int64  `json:"duration"`

	client   *Client
	endpoint Endpoint
}

// Endpoint returns the endpoint the ticket was issued by.
func (t *Ticket) Endpoint() Endpoint { return t.endpoint }

func (t *Ticket) refresh(from Ticket) {
	if from.Token == "" {
		return
	}
	t.Token = from.Token
	t.Expires = from.Expires
	t.Duration = from.Duration
}

func (c *Client) url(endpointURL string, e Endpoint) string {
	if c.baseURL == "" {
		return endpointURL
	}
	return c.baseURL + endpointURL[len(e.baseURL()):]
}

func (c *Client) callLogin(ctx context.Context, email, password string, endpoint Endpoint) (loginResponse, error) {
	body, err := json.Marshal(struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{Email: email, Password: password})
	if err != nil {
		return loginResponse{}, fmt.Errorf("marshal credentials: %w", err)
	}

	target := c.url(endpoint.LoginURL(), endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return loginResponse{}, fmt.Errorf("create request to %q: %w", target, err)
	}

	var lr loginResponse
	if err := c.do(req, "", &lr); err != nil {
		return loginResponse{}, err
	}
	switch lr.Status {
	case 0:
		return lr, nil
	case statusBadCredentials:
		return loginResponse{}, ErrLoginFailed
	default:
		return loginResponse{}, fmt.Errorf("login failed with status %d: %s", lr.Status, lr.Error.Message)
	}
}

// Login signs in at endpoint. It returns ErrWrongRegionEndpoint when the
// account belongs to another region.
func (c *Client) Login(ctx context.Context, email, password string, endpoint Endpoint) (*Ticket, error) {
	resp, err := c.callLogin(ctx, email, password, endpoint)
	if err != nil {
		return nil, err
	}
	if resp.Data.Redirect {
		return nil, ErrWrongRegionEndpoint
	}
	t := resp.Data.AuthTicket
	t.client = c
	t.endpoint = endpoint
	return &t, nil
}

// FindEndpoint signs in at the default endpoint and follows a region redirect.
func (c *Client) FindEndpoint(ctx context.Context, email, password string) (Endpoint, error) {
	resp, err := c.callLogin(ctx, email, password, EndpointDefault)
	if err != nil {
		return Endpoint{}, err
	}
	if !resp.Data.Redirect {
		return EndpointDefault, nil
	}
	e, ok := EndpointByRegion(resp.Data.Region)
	if !ok {
		return Endpoint{}, fmt.Errorf("endpoint with region %q could not be found", resp.Data.Region)
	}
	return e, nil
}

// Connections lists the patients the account follows.
func (t *Ticket) Connections(ctx context.Context) ([]Connection, error) {
	target := t.client.url(t.endpoint.ConnectionsURL(), t.endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	var cr connectionsResponse
	if err := t.client.do(req, t.Token, &cr); err != nil {
		return nil, err
	}
	if cr.Status != 0 {
		return nil, fmt.Errorf("connections failed with status %d: %s", cr.Status, cr.Error.Message)
	}
	t.refresh(cr.Ticket)
	return cr.Data, nil
}

// Graph returns the recent glucose history of a patient.
func (t *Ticket) Graph(ctx context.Context, patientID string) (Connection, []GlucoseMeasurement, error) {
	target := t.client.url(t.endpoint.GraphURL(patientID), t.endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Connection{}, nil, err
	}
	var gr graphResponse
	if err := t.client.do(req, t.Token, &gr); err != nil {
		return Connection{}, nil, err
	}
	if gr.Status != 0 {
		return Connection{}, nil, fmt.Errorf("graph failed with status %d: %s", gr.Status, gr.Error.Message)
	}
	t.refresh(gr.Ticket)
	return gr.Data.Connection, gr.Data.GraphData, nil
}

func (c *Client) do(req *http.Request, token string, out any) error {
	req.Header.Set("User-Agent", "LibreLink")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Version", apiVersion)
	req.Header.Set("Product", apiProduct)
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Cache-Control", "no-cache")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.logger.DebugContext(req.Context(), "librelinkup request", "method", req.Method, "url", req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %q: %w", req.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server responded with status %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := readBody(resp)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	c.logger.DebugContext(req.Context(), "librelinkup response", "status", resp.StatusCode, "bytes", len(body))

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func readBody(resp *http.Response) ([]byte, error) {
	if resp.Header.Get("Content-Encoding") != "gzip" || resp.Uncompressed {
		return io.ReadAll(resp.Body)
	}
	zr, err := gzip.NewReader(resp.Body)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
