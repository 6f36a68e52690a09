package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gallery/internal/config"
	"gallery/internal/logging"
	"gallery/internal/services"
)

const (
	userAgent          = "gallery/0.1.0"
	defaultHTTPTimeout = 30 * time.Second
	defaultSimilarPath = "/similar-to"
	maxResponseBytes   = 16 << 20
)

// Client calls the search backend.
type Client struct {
	baseURL     string
	similarPath string
	httpClient  *http.Client
	logger      *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithSimilarPath overrides the path used for similar-image lookups.
func WithSimilarPath(path string) Option {
	return func(c *Client) {
		path = strings.TrimSpace(path)
		if path == "" {
			return
		}
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		c.similarPath = path
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient constructs a client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		similarPath: defaultSimilarPath,
		httpClient:  &http.Client{Timeout: defaultHTTPTimeout},
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.logger = logging.NewComponentLogger(c.logger, "backend")
	return c
}

// NewFromConfig builds a client for the configured backend.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *Client {
	return NewClient(cfg.Backend.URL,
		WithTimeout(cfg.BackendTimeout()),
		WithSimilarPath(cfg.Backend.SimilarPath),
		WithLogger(logger),
	)
}

// BaseURL returns the root all paths are resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ForwardRequest describes a request relayed without interpretation.
type ForwardRequest struct {
	Method        string
	Path          string
	Query         url.Values
	Body          io.Reader
	ContentType   string
	Authorization string
}

// Response is a raw backend response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// IsJSON reports whether the response declares a JSON content type.
func (r *Response) IsJSON() bool {
	if r == nil {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// Forward performs req and returns the response whatever its status. Only
// transport failures are returned as errors.
func (c *Client) Forward(ctx context.Context, req ForwardRequest) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	endpoint := c.baseURL + req.Path
	if len(req.Query) > 0 {
		endpoint += "?" + req.Query.Encode()
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, req.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "backend", req.Path, "build request", err)
	}
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("Accept", "application/json")
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	if req.Authorization != "" {
		httpReq.Header.Set("Authorization", req.Authorization)
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		httpReq.Header.Set("X-Request-ID", rid)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, services.Wrap(services.Classify(err), "backend", req.Path, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, services.Wrap(services.Classify(err), "backend", req.Path, "read response", err)
	}
	logging.WithContext(ctx, c.logger).Debug("backend call",
		logging.String("method", method),
		logging.String("path", req.Path),
		logging.Int("status", resp.StatusCode),
		logging.Duration("elapsed", time.Since(started)),
	)
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// do forwards req and decodes a successful JSON body into out.
func (c *Client) do(ctx context.Context, req ForwardRequest, out any) error {
	resp, err := c.Forward(ctx, req)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return &HTTPError{StatusCode: resp.StatusCode, Message: ErrorMessage(resp.StatusCode, resp.Body)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return services.Wrap(services.ErrTransient, "backend", req.Path, "decode response", err)
	}
	return nil
}

func jsonBody(v any) (io.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return bytes.NewReader(data), nil
}

// Gallery fetches one browse page. An empty cursor requests the first page.
func (c *Client) Gallery(ctx context.Context, limit int, cursor string) (GalleryPage, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	var page GalleryPage
	if err := c.do(ctx, ForwardRequest{Method: http.MethodGet, Path: "/gallery", Query: query}, &page); err != nil {
		return GalleryPage{}, err
	}
	if page.Items == nil {
		page.Items = []GalleryImage{}
	}
	return page, nil
}

// Search runs a text query.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]GalleryImage, error) {
	body, err := jsonBody(searchRequest{Query: query, Limit: limit})
	if err != nil {
		return nil, err
	}
	var results []GalleryImage
	err = c.do(ctx, ForwardRequest{Method: http.MethodPost, Path: "/search", Body: body, ContentType: "application/json"}, &results)
	return results, err
}

// Similar finds images that look like the image at imageURL.
func (c *Client) Similar(ctx context.Context, imageURL string, limit int) ([]GalleryImage, error) {
	body, err := jsonBody(similarRequest{ImageURL: imageURL, Limit: limit})
	if err != nil {
		return nil, err
	}
	var results []GalleryImage
	err = c.do(ctx, ForwardRequest{Method: http.MethodPost, Path: c.similarPath, Body: body, ContentType: "application/json"}, &results)
	return results, err
}

// RandomQuery asks the backend for a sample search query.
func (c *Client) RandomQuery(ctx context.Context) (string, error) {
	var resp randomQueryResponse
	if err := c.do(ctx, ForwardRequest{Method: http.MethodGet, Path: "/generate-random-query"}, &resp); err != nil {
		return "", err
	}
	return resp.Query, nil
}

// Autocomplete returns query suggestions for prefix.
func (c *Client) Autocomplete(ctx context.Context, prefix string) ([]string, error) {
	var resp autocompleteResponse
	query := url.Values{"q": {prefix}}
	if err := c.do(ctx, ForwardRequest{Method: http.MethodGet, Path: "/autocomplete", Query: query}, &resp); err != nil {
		return nil, err
	}
	return resp.Suggestions, nil
}

// Health checks that the backend answers.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, ForwardRequest{Method: http.MethodGet, Path: "/health"}, nil)
}
