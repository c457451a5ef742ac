// Package catalog is the HTTP client for the upstream tool catalog: the
// entity query, the filter options query and the organization preview.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"toolatlas/internal/dataset"
	"toolatlas/internal/drill"
	"toolatlas/internal/facet"
	"toolatlas/pkg/catalogapi"
)

// ErrUnexpectedStatus matches every StatusError.
var ErrUnexpectedStatus = errors.New("unexpected upstream status")

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream %s returned %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("upstream %s returned %d: %s", e.URL, e.StatusCode, e.Body)
}

// Is lets errors.Is match ErrUnexpectedStatus.
func (e *StatusError) Is(target error) bool { return target == ErrUnexpectedStatus }

const maxErrorBody = 512

// Envelope keys that may wrap a result list, in lookup order.
var (
	entityEnvelopes       = []string{"results", "data", "items", "tools"}
	organizationEnvelopes = []string{"results", "data", "items", "organizations"}
)

// Client talks to the catalog API rooted at a base URL.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient builds a client for base, which must be an absolute URL.
func NewClient(base string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse catalog base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("catalog base url %q must be absolute", base)
	}
	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchEntities runs the dataset query. The response may be a bare list or a
// list wrapped under a conventional envelope key.
func (c *Client) FetchEntities(ctx context.Context, q dataset.Query) ([]catalogapi.Entity, error) {
	body, err := c.get(ctx, "tools", EntityParams(q))
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, errors.New("decode tools: malformed JSON payload")
	}
	list, ok := unwrapList(gjson.ParseBytes(body), entityEnvelopes)
	if !ok {
		return nil, errors.New("decode tools: no entity list in payload")
	}
	entities := make([]catalogapi.Entity, 0, len(list))
	for i, item := range list {
		if !item.IsObject() {
			c.logger.DebugContext(ctx, "skipping non-object tool record", "index", i)
			continue
		}
		var e catalogapi.Entity
		if err := json.Unmarshal([]byte(item.Raw), &e); err != nil {
			return nil, fmt.Errorf("decode tool %d: %w", i, err)
		}
		entities = append(entities, e)
	}
	return entities, nil
}

// FetchOptions returns the distinct raw values per filter field. A malformed
// payload yields empty lists rather than an error; transport failures are
// still returned.
func (c *Client) FetchOptions(ctx context.Context) (catalogapi.FilterOptions, error) {
	body, err := c.get(ctx, "tools/options", nil)
	if err != nil {
		return nil, err
	}
	return ParseOptions(body), nil
}

// ParseOptions decodes an options payload, optionally wrapped under "options".
func ParseOptions(body []byte) catalogapi.FilterOptions {
	out := make(catalogapi.FilterOptions, len(catalogapi.FilterFields()))
	for _, field := range catalogapi.FilterFields() {
		out[field] = []string{}
	}
	if !gjson.ValidBytes(body) {
		return out
	}
	root := gjson.ParseBytes(body)
	if wrapped := root.Get("options"); wrapped.IsObject() {
		root = wrapped
	}
	if !root.IsObject() {
		return out
	}
	for _, field := range catalogapi.FilterFields() {
		values := root.Get(string(field))
		if !values.IsArray() {
			continue
		}
		for _, v := range values.Array() {
			if s := strings.TrimSpace(v.String()); s != "" && v.Type != gjson.JSON {
				out[field] = append(out[field], s)
			}
		}
	}
	return out
}

// PreviewOrganizations fetches one page of organizations tagged with any of
// the preview's tools.
func (c *Client) PreviewOrganizations(ctx context.Context, p drill.Preview) (catalogapi.OrganizationPage, error) {
	body, err := c.get(ctx, "organizations", p.Values())
	if err != nil {
		return catalogapi.OrganizationPage{}, err
	}
	if !gjson.ValidBytes(body) {
		return catalogapi.OrganizationPage{}, errors.New("decode organizations: malformed JSON payload")
	}
	root := gjson.ParseBytes(body)
	list, ok := unwrapList(root, organizationEnvelopes)
	if !ok {
		return catalogapi.OrganizationPage{}, errors.New("decode organizations: no organization list in payload")
	}
	page := catalogapi.OrganizationPage{
		Results:  make([]catalogapi.OrganizationSummary, 0, len(list)),
		Total:    len(list),
		Page:     p.Page,
		PageSize: p.PageSize,
	}
	if total := root.Get("total"); total.Exists() {
		page.Total = int(total.Int())
	} else if count := root.Get("count"); count.Exists() {
		page.Total = int(count.Int())
	}
	for _, item := range list {
		if item.IsObject() {
			page.Results = append(page.Results, organizationFrom(item))
		}
	}
	return page, nil
}

// EntityParams encodes a dataset query for the tools endpoint.
func EntityParams(q dataset.Query) url.Values {
	v := url.Values{}
	for _, field := range catalogapi.FilterFields() {
		if values := dataset.CanonicalValues(q.Filters[field]); len(values) > 0 {
			v.Set(string(field), strings.Join(values, ","))
		}
	}
	if search := strings.TrimSpace(q.Search); search != "" {
		v.Set("search", search)
	}
	if q.YearMin != nil {
		v.Set("year_min", strconv.Itoa(*q.YearMin))
	}
	if q.YearMax != nil {
		v.Set("year_max", strconv.Itoa(*q.YearMax))
	}
	if q.Limit > 0 {
		v.Set("page", strconv.Itoa(q.Offset/q.Limit+1))
		v.Set("page_size", strconv.Itoa(q.Limit))
	}
	return v
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.base.JoinPath(path)
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	c.logger.DebugContext(ctx, "catalog request", "path", path, "status", resp.StatusCode, "bytes", len(body), "elapsed", time.Since(started))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: u.Redacted(), Body: snippet}
	}
	return body, nil
}

func unwrapList(root gjson.Result, envelopes []string) ([]gjson.Result, bool) {
	if root.IsArray() {
		return root.Array(), true
	}
	if !root.IsObject() {
		return nil, false
	}
	for _, key := range envelopes {
		if list := root.Get(key); list.IsArray() {
			return list.Array(), true
		}
	}
	return nil, false
}

func organizationFrom(item gjson.Result) catalogapi.OrganizationSummary {
	org := catalogapi.OrganizationSummary{
		Name:    strings.TrimSpace(item.Get("name").String()),
		Country: strings.TrimSpace(item.Get("country").String()),
		Website: strings.TrimSpace(item.Get("website").String()),
	}
	if tools := item.Get("tools"); tools.IsArray() {
		for _, t := range tools.Array() {
			if s := strings.TrimSpace(t.String()); s != "" {
				org.Tools = append(org.Tools, s)
			}
		}
	} else {
		org.Tools = facet.SplitTokens(tools.String())
	}
	item.ForEach(func(key, value gjson.Result) bool {
		switch key.String() {
		case "name", "country", "website", "tools":
		default:
			if org.Extensions == nil {
				org.Extensions = make(map[string]any)
			}
			org.Extensions[key.String()] = value.Value()
		}
		return true
	})
	return org
}
