// Package remote implements the storefront repositories against the remote
// store HTTP API.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/kart-storefront/internal/storeapi"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 4 << 20

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method  string
	Path    string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 StatusError.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// Config holds the client settings.
type Config struct {
	// BaseURL is the API root, e.g. http://localhost:8080/api.
	BaseURL string
	// Timeout bounds every request. Zero means no timeout.
	Timeout time.Duration
	// ConfigID is the id of the tax config record. Defaults to 1.
	ConfigID int64

	// Transport is the underlying round tripper. Defaults to
	// http.DefaultTransport.
	Transport      http.RoundTripper
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Client talks to the remote store. It implements product.Repository,
// invoice.Repository, invoice.ConfigRepository and session.UserRepository.
type Client struct {
	base     *url.URL
	http     *http.Client
	configID int64
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse base URL")
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, errors.Errorf("unsupported base URL scheme %q", base.Scheme)
	}
	if cfg.ConfigID == 0 {
		cfg.ConfigID = 1
	}
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}

	var opts []otelhttp.Option
	if cfg.TracerProvider != nil {
		opts = append(opts, otelhttp.WithTracerProvider(cfg.TracerProvider))
	}
	if cfg.MeterProvider != nil {
		opts = append(opts, otelhttp.WithMeterProvider(cfg.MeterProvider))
	}

	return &Client{
		base: base,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(cfg.Transport, opts...),
		},
		configID: cfg.ConfigID,
	}, nil
}

// request describes one API call.
type request struct {
	method string
	path   string
	query  url.Values
	// encode writes the request body; nil means no body.
	encode func(e *jx.Encoder) error
	// decode reads the response body; nil means the body is discarded.
	decode func(d *jx.Decoder) error
}

func (c *Client) do(ctx context.Context, req request) error {
	u := c.base.JoinPath(req.path)
	if len(req.query) > 0 {
		u.RawQuery = req.query.Encode()
	}

	var body io.Reader
	if req.encode != nil {
		e := jx.GetEncoder()
		defer jx.PutEncoder(e)
		if err := req.encode(e); err != nil {
			return errors.Wrap(err, "encode request")
		}
		body = bytes.NewReader(e.Bytes())
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), body)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return errors.Wrapf(err, "%s %s", req.method, req.path)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return errors.Wrapf(err, "read %s %s response", req.method, req.path)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Method: req.method, Path: req.path, Code: resp.StatusCode}
		if apiErr, err := storeapi.DecodeError(data); err == nil {
			se.Message = apiErr.Message
		}
		return se
	}

	if req.decode == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := req.decode(jx.DecodeBytes(data)); err != nil {
		return errors.Wrapf(err, "decode %s %s response", req.method, req.path)
	}
	return nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
