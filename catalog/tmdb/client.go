// Package tmdb implements catalog.Provider over The Movie Database v3 REST API.
package tmdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/next-trace/scg-recommender/catalog"
)

const (
	// DefaultBaseURL is the public TMDb v3 endpoint.
	DefaultBaseURL = "https://api.themoviedb.org/3"
	// DefaultTimeout bounds every outbound request.
	DefaultTimeout = 10 * time.Second

	// maxErrorBodySize limits how much of an error response is kept for diagnostics.
	maxErrorBodySize = 64 * 1024
)

// Config configures the TMDb client.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration

	// RequestsPerSecond paces outbound calls with a token bucket. Zero disables pacing.
	RequestsPerSecond float64
	Burst             int
}

// Client is a TMDb-backed catalog.Provider. It is safe for concurrent use and
// reuses connections through a single pooled transport.
type Client struct {
	baseURL  string
	apiKey   string
	http     *http.Client
	limiter  *rate.Limiter
	observer catalog.RequestObserver
	logger   *slog.Logger
}

var _ catalog.Provider = (*Client)(nil)

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the pooled HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithObserver reports per-operation latency and outcome.
func WithObserver(o catalog.RequestObserver) Option {
	return func(c *Client) { c.observer = o }
}

// WithLogger sets the logger used for failed requests.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New builds a Client. An API key is required.
func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("tmdb: api key required")
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}

	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("tmdb: invalid base url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.MaxIdleConnsPerHost = 32

	c := &Client{
		baseURL: base,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout, Transport: tr},
		logger:  slog.New(slog.DiscardHandler),
	}

	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}

		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	for _, o := range opts {
		o(c)
	}

	return c, nil
}

// Close releases idle pooled connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// SearchByText searches movies by free text.
func (c *Client) SearchByText(ctx context.Context, query string, page int) (catalog.Page, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("page", pageParam(page))

	return getJSON[catalog.Page](ctx, c, catalog.OpSearch, "/search/movie", q)
}

// GetDetails fetches a single movie.
func (c *Client) GetDetails(ctx context.Context, id int64) (catalog.Details, error) {
	return getJSON[catalog.Details](ctx, c, catalog.OpDetails, "/movie/"+strconv.FormatInt(id, 10), nil)
}

// GetSimilar returns movies similar to id.
func (c *Client) GetSimilar(ctx context.Context, id int64, page int) (catalog.Page, error) {
	q := url.Values{}
	q.Set("page", pageParam(page))

	return getJSON[catalog.Page](ctx, c, catalog.OpSimilar, "/movie/"+strconv.FormatInt(id, 10)+"/similar", q)
}

// DiscoverByCategory lists movies in the given genres. No genres means all movies.
func (c *Client) DiscoverByCategory(ctx context.Context, ids []int64, sortBy string, page int) (catalog.Page, error) {
	q := url.Values{}
	if len(ids) > 0 {
		parts := make([]string, len(ids))
		for i, id := range ids {
			parts[i] = strconv.FormatInt(id, 10)
		}

		q.Set("with_genres", strings.Join(parts, ","))
	}

	if sortBy != "" {
		q.Set("sort_by", sortBy)
	}

	q.Set("page", pageParam(page))

	return getJSON[catalog.Page](ctx, c, catalog.OpDiscover, "/discover/movie", q)
}

// GetAvailability returns per-region watch providers for id.
func (c *Client) GetAvailability(ctx context.Context, id int64) (catalog.Availability, error) {
	a, err := getJSON[catalog.Availability](ctx, c, catalog.OpAvailability, "/movie/"+strconv.FormatInt(id, 10)+"/watch/providers", nil)
	if err != nil {
		return catalog.Availability{}, err
	}

	if a.ItemID == 0 {
		a.ItemID = id
	}

	return a, nil
}

type genreList struct {
	Genres []catalog.Genre `json:"genres"`
}

// GetCategoryMap returns the movie genre list keyed by lower-cased name.
func (c *Client) GetCategoryMap(ctx context.Context) (catalog.CategoryMap, error) {
	gl, err := getJSON[genreList](ctx, c, catalog.OpCategories, "/genre/movie/list", nil)
	if err != nil {
		return nil, err
	}

	m := make(catalog.CategoryMap, len(gl.Genres))
	for _, g := range gl.Genres {
		m[strings.ToLower(g.Name)] = g.ID
	}

	return m, nil
}

func getJSON[T any](ctx context.Context, c *Client, op, path string, q url.Values) (T, error) {
	var out T

	start := time.Now()
	err := c.do(ctx, op, path, q, &out)
	c.observe(op, err, time.Since(start))

	if err != nil {
		c.logger.WarnContext(ctx, "catalog request failed", "op", op, "error", err)
		return out, err
	}

	return out, nil
}

func (c *Client) do(ctx context.Context, op, path string, q url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return catalog.TransportError(op, err)
		}
	}

	if q == nil {
		q = url.Values{}
	}

	q.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return catalog.TransportError(op, err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return catalog.TransportError(op, redactURL(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &catalog.StatusError{Op: op, StatusCode: resp.StatusCode, Body: string(readBodyForError(resp.Body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return catalog.TransportError(op, fmt.Errorf("decode: %w", err))
	}

	return nil
}

func (c *Client) observe(op string, err error, elapsed time.Duration) {
	if c.observer == nil {
		return
	}

	outcome := "ok"

	var se *catalog.StatusError

	switch {
	case errors.As(err, &se):
		outcome = "status_" + strconv.Itoa(se.StatusCode)
	case err != nil:
		outcome = "error"
	}

	c.observer.ObserveCatalogRequest(op, outcome, elapsed)
}

// readBodyForError reads at most maxErrorBodySize bytes of an error response.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}

	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}

	return body
}

// redactURL strips the query string (and with it the api key) from transport errors.
func redactURL(err error) error {
	var ue *url.Error
	if !errors.As(err, &ue) {
		return err
	}

	if i := strings.IndexByte(ue.URL, '?'); i >= 0 {
		ue.URL = ue.URL[:i]
	}

	return err
}

func pageParam(page int) string {
	if page <= 0 {
		page = 1
	}

	return strconv.Itoa(page)
}
