// Package gqlclient talks to the OpenT1D GraphQL endpoint and implements
// form.Client.
package gqlclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	graphql "github.com/hasura/go-graphql-client"

	"opent1d/internal/domain"
)

const (
	opGetSettings  = "GetSettings"
	opSaveSettings = "SaveSettings"

	defaultCacheSize = 64
)

// DefaultURL is the endpoint of a locally running server.
const DefaultURL = "http://localhost:8080/query"

type settingsFields struct {
	LibreLinkUpUsername string `graphql:"LibreLinkUpUsername"`
	LibreLinkUpPassword string `graphql:"LibreLinkUpPassword"`
	LibreLinkUpRegion   string `graphql:"LibreLinkUpRegion"`
}

func (f settingsFields) settings() domain.Settings {
	return domain.Settings{
		LibreLinkUpUsername: f.LibreLinkUpUsername,
		LibreLinkUpPassword: f.LibreLinkUpPassword,
		LibreLinkUpRegion:   f.LibreLinkUpRegion,
	}
}

// Client is a GraphQL client with an in-memory response cache keyed by
// operation and variables.
type Client struct {
	gql   *graphql.Client
	cache *lru.Cache[string, domain.Settings]
}

// Option configures a Client.
type Option func(*options)

type options struct {
	httpClient *http.Client
	cacheSize  int
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option { return func(o *options) { o.httpClient = c } }

// WithCacheSize bounds the number of cached responses.
func WithCacheSize(n int) Option { return func(o *options) { o.cacheSize = n } }

// New returns a Client for the GraphQL endpoint at url.
func New(url string, opts ...Option) (*Client, error) {
	o := options{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cacheSize:  defaultCacheSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	cache, err := lru.New[string, domain.Settings](o.cacheSize)
	if err != nil {
		return nil, err
	}
	return &Client{gql: graphql.NewClient(url, o.httpClient), cache: cache}, nil
}

func cacheKey(op string, vars map[string]any) string {
	if len(vars) == 0 {
		return op
	}
	b, _ := json.Marshal(vars)
	return op + ":" + string(b)
}

// FetchSettings runs the GetSettings query, answering from the cache when
// possible.
func (c *Client) FetchSettings(ctx context.Context) (domain.Settings, error) {
	key := cacheKey(opGetSettings, nil)
	if s, ok := c.cache.Get(key); ok {
		return s, nil
	}
	var q struct {
		Settings settingsFields `graphql:"settings"`
	}
	if err := c.gql.Query(ctx, &q, nil, graphql.OperationName(opGetSettings)); err != nil {
		return domain.Settings{}, friendly(err)
	}
	s := q.Settings.settings()
	c.cache.Add(key, s)
	return s, nil
}

// SaveSettings runs the SaveSettings mutation. The result replaces the cached
// GetSettings response.
func (c *Client) SaveSettings(ctx context.Context, username, password string) (domain.Settings, error) {
	var m struct {
		SaveSettings settingsFields `graphql:"saveSettings(username: $username, password: $password)"`
	}
	vars := map[string]any{
		"username": graphql.String(username),
		"password": graphql.String(password),
	}
	if err := c.gql.Mutate(ctx, &m, vars, graphql.OperationName(opSaveSettings)); err != nil {
		return domain.Settings{}, friendly(err)
	}
	s := m.SaveSettings.settings()
	c.cache.Add(cacheKey(opGetSettings, nil), s)
	return s, nil
}

// friendly joins GraphQL error messages so they can be shown as is.
func friendly(err error) error {
	var gqlErrs graphql.Errors
	if !errors.As(err, &gqlErrs) || len(gqlErrs) == 0 {
		return err
	}
	msgs := make([]string, 0, len(gqlErrs))
	for _, e := range gqlErrs {
		msgs = append(msgs, e.Message)
	}
	return errors.New(strings.Join(msgs, "; "))
}
