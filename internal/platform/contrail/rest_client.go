package contrail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"k8s.io/client-go/util/flowcontrol"
)

// RESTClient implements API against the controller's JSON REST endpoint.
//
// Collections live at /<kind>s and single objects at /<kind>/<uuid>. Bodies
// wrap the object in a single key named after the kind, as the controller does.
type RESTClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    flowcontrol.RateLimiter
}

// ClientOption configures a RESTClient.
type ClientOption func(*RESTClient)

// WithToken sets the X-Auth-Token sent with every request.
func WithToken(token string) ClientOption {
	return func(c *RESTClient) {
		c.token = token
	}
}

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *RESTClient) {
		c.httpClient = hc
	}
}

// WithRateLimit bounds the request rate with a token bucket.
func WithRateLimit(qps float32, burst int) ClientOption {
	return func(c *RESTClient) {
		c.limiter = flowcontrol.NewTokenBucketRateLimiter(qps, burst)
	}
}

// NewRESTClient creates a new RESTClient with optional configuration.
func NewRESTClient(baseURL string, opts ...ClientOption) *RESTClient {
	c := &RESTClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
		limiter:    flowcontrol.NewFakeAlwaysRateLimiter(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Create implements API.
func (c *RESTClient) Create(ctx context.Context, kind Kind, obj *Object) error {
	_, err := c.do(ctx, "create", http.MethodPost, kind, "", collectionPath(kind), wrap(kind, obj))
	return err
}

// Update implements API.
func (c *RESTClient) Update(ctx context.Context, kind Kind, uuid string, obj *Object) error {
	_, err := c.do(ctx, "update", http.MethodPut, kind, uuid, objectPath(kind, uuid), wrap(kind, obj))
	return err
}

// Delete implements API.
func (c *RESTClient) Delete(ctx context.Context, kind Kind, uuid string) error {
	_, err := c.do(ctx, "delete", http.MethodDelete, kind, uuid, objectPath(kind, uuid), nil)
	return err
}

// Get implements API.
func (c *RESTClient) Get(ctx context.Context, kind Kind, uuid string) (*Object, error) {
	body, err := c.do(ctx, "get", http.MethodGet, kind, uuid, objectPath(kind, uuid), nil)
	if err != nil {
		return nil, err
	}
	var envelope map[string]*Object
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &APIError{Op: "get", Kind: kind, UUID: uuid, Err: fmt.Errorf("decode response: %w", err)}
	}
	obj := envelope[string(kind)]
	if obj == nil {
		return nil, &APIError{Op: "get", Kind: kind, UUID: uuid, Err: ErrNotFound}
	}
	obj.Kind = kind
	return obj, nil
}

// List implements API.
func (c *RESTClient) List(ctx context.Context, kind Kind, selector map[string]string) ([]*Object, error) {
	path := collectionPath(kind) + "?detail=true"
	if len(selector) > 0 {
		path += "&labels=" + url.QueryEscape(encodeSelector(selector))
	}
	body, err := c.do(ctx, "list", http.MethodGet, kind, "", path, nil)
	if err != nil {
		return nil, err
	}
	var envelope map[string][]*Object
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &APIError{Op: "list", Kind: kind, Err: fmt.Errorf("decode response: %w", err)}
	}
	var out []*Object
	for _, obj := range envelope[string(kind)+"s"] {
		if obj == nil || !matchesSelector(obj.Labels, selector) {
			continue
		}
		obj.Kind = kind
		out = append(out, obj)
	}
	return out, nil
}

func (c *RESTClient) do(ctx context.Context, op, method string, kind Kind, uuid, path string, payload any) ([]byte, error) {
	fail := func(status int, err error) error {
		return &APIError{Op: op, Kind: kind, UUID: uuid, Status: status, Err: err}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fail(0, err)
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fail(0, fmt.Errorf("encode request: %w", err))
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fail(0, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("X-Auth-Token", c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fail(0, err)
		}
		return nil, fail(0, fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fail(resp.StatusCode, fmt.Errorf("%w: read body: %v", ErrUnavailable, err))
	}

	if err := classifyStatus(resp.StatusCode, data); err != nil {
		return nil, fail(resp.StatusCode, err)
	}
	return data, nil
}

// classifyStatus maps an HTTP status to the sentinel error taxonomy.
func classifyStatus(status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrConflict, strings.TrimSpace(string(body)))
	case status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("%w: %s", ErrUnavailable, strings.TrimSpace(string(body)))
	default:
		return fmt.Errorf("unexpected status: %s", strings.TrimSpace(string(body)))
	}
}

func collectionPath(kind Kind) string {
	return "/" + string(kind) + "s"
}

func objectPath(kind Kind, uuid string) string {
	return "/" + string(kind) + "/" + url.PathEscape(uuid)
}

func wrap(kind Kind, obj *Object) map[string]*Object {
	return map[string]*Object{string(kind): obj}
}

func encodeSelector(selector map[string]string) string {
	pairs := make([]string, 0, len(selector))
	for k, v := range selector {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}
