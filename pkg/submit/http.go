package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/wizard"
)

const maxErrorBody = 64 << 10

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient swaps the underlying *http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *HTTPClient) {
		if client != nil {
			c.client = client
		}
	}
}

// WithMethod overrides the HTTP method (POST by default, PUT for edits).
func WithMethod(method string) Option {
	return func(c *HTTPClient) {
		if trimmed := strings.ToUpper(strings.TrimSpace(method)); trimmed != "" {
			c.method = trimmed
		}
	}
}

// WithHeader adds a request header, for example an Authorization token.
func WithHeader(key, value string) Option {
	return func(c *HTTPClient) {
		c.headers.Set(key, value)
	}
}

// WithForm lets error payloads be mapped back onto known fields.
func WithForm(form model.FormModel) Option {
	return func(c *HTTPClient) {
		c.form = form
	}
}

// HTTPClient posts payloads as JSON. It performs a single attempt; retry and
// timeout policy belong to the caller's context.
type HTTPClient struct {
	endpoint string
	method   string
	client   *http.Client
	headers  http.Header
	form     model.FormModel
}

var _ wizard.Service = (*HTTPClient)(nil)

// NewHTTPClient targets endpoint.
func NewHTTPClient(endpoint string, opts ...Option) (*HTTPClient, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, model.Misconfigured("submit", "endpoint is required", nil)
	}
	c := &HTTPClient{
		endpoint: endpoint,
		method:   http.MethodPost,
		client:   &http.Client{Timeout: 30 * time.Second},
		headers:  http.Header{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Submit sends payload and maps non-2xx responses to *Error.
func (c *HTTPClient) Submit(ctx context.Context, payload wizard.Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("submit: encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, c.method, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("submit: build request: %w", err)
	}
	for key, values := range c.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &Error{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return c.decodeError(resp.StatusCode, raw)
}

type errorBody struct {
	Message string              `json:"message"`
	Error   string              `json:"error"`
	Errors  map[string][]string `json:"errors"`
}

func (c *HTTPClient) decodeError(status int, raw []byte) error {
	out := &Error{StatusCode: status}
	var body errorBody
	if len(bytes.TrimSpace(raw)) == 0 || json.Unmarshal(raw, &body) != nil {
		if text := strings.TrimSpace(string(raw)); text != "" && len(text) < 200 {
			out.Form = []string{text}
		}
		out.Err = errors.New(http.StatusText(status))
		return out
	}
	out.Fields, out.Form = MapErrorPayload(c.form, body.Errors)
	out.Form = normalizeMessages(append([]string{body.Message, body.Error}, out.Form...))
	return out
}

// WriterSink encodes payloads as indented JSON onto a writer. The CLI uses it
// to print what would be submitted.
type WriterSink struct {
	W io.Writer
}

var _ wizard.Service = WriterSink{}

// Submit writes payload.
func (s WriterSink) Submit(_ context.Context, payload wizard.Payload) error {
	enc := json.NewEncoder(s.W)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return fmt.Errorf("submit: write payload: %w", err)
	}
	return nil
}
