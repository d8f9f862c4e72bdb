package postalcodes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-formflow/pkg/enrich"
	"github.com/goliatone/go-formflow/pkg/model"
)

// Client looks addresses up over HTTP. It implements enrich.Lookup.
type Client struct {
	endpoint string
	param    string
	http     *http.Client
	fields   FieldMap
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the transport client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithFieldMap sets the fields the address is written to.
func WithFieldMap(fields FieldMap) ClientOption {
	return func(c *Client) {
		c.fields = fields
	}
}

// WithClientCodeParam sets the query parameter carrying the code.
func WithClientCodeParam(name string) ClientOption {
	return func(c *Client) {
		if strings.TrimSpace(name) != "" {
			c.param = name
		}
	}
}

// NewClient targets endpoint, the full URL of a mounted handler.
func NewClient(endpoint string, opts ...ClientOption) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, model.Misconfigured("postalcodes", fmt.Sprintf("invalid endpoint %q", endpoint), err)
	}
	c := &Client{
		endpoint: parsed.String(),
		param:    DefaultOptions().CodeParam,
		http:     &http.Client{Timeout: 10 * time.Second},
		fields:   DefaultFieldMap(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Targets lists the fields the client writes.
func (c *Client) Targets() []model.FieldName { return c.fields.Targets() }

// Lookup fetches the address for key. Unknown codes map to enrich.ErrNotFound.
func (c *Client) Lookup(ctx context.Context, key string) (model.Values, error) {
	target, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, err
	}
	query := target.Query()
	query.Set(c.param, key)
	target.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("postalcodes: lookup %s: %w", key, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, enrich.ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, StatusError{Code: resp.StatusCode, Err: fmt.Errorf("postalcodes: lookup %s: %s", key, resp.Status)}
	}

	var body addressResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("postalcodes: decode response: %w", err)
	}
	if body.Data == nil {
		return nil, enrich.ErrNotFound
	}
	return c.fields.Values(*body.Data), nil
}

// DirectoryLookup serves lookups from memory. It implements enrich.Lookup.
type DirectoryLookup struct {
	Directory Directory
	Fields    FieldMap
}

// Lookup returns the mapped address or enrich.ErrNotFound.
func (l DirectoryLookup) Lookup(ctx context.Context, key string) (model.Values, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	addr, ok := l.Directory.Find(key)
	if !ok {
		return nil, enrich.ErrNotFound
	}
	return l.Fields.Values(addr), nil
}
