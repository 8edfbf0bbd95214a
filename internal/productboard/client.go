// Package productboard implements the ProductBoard planning adapter and the
// parsing of inbound ProductBoard webhook events.
package productboard

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/AlieInmar1/pbtoado-sub002/internal/mapping"
	"github.com/AlieInmar1/pbtoado-sub002/internal/remote"
	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

// DefaultBaseURL is the ProductBoard public API root.
const DefaultBaseURL = "https://api.productboard.com"

// Client talks to the ProductBoard v1 API.
type Client struct {
	http *remote.Client
}

// Option customizes a Client.
type Option func(*remote.Options)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *remote.Options) { o.HTTPClient = hc }
}

// New creates a ProductBoard client for cfg.
func New(cfg types.ProductBoardConfig, opts ...Option) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	timeout, _ := time.ParseDuration(cfg.Timeout)
	ro := remote.Options{
		System:            "productboard",
		BaseURL:           base,
		Auth:              remote.BearerAuth(cfg.Token),
		Headers:           map[string]string{"X-Version": "1"},
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		Timeout:           timeout,
	}
	for _, opt := range opts {
		opt(&ro)
	}
	return &Client{http: remote.New(ro)}
}

type envelope[T any] struct {
	Data  T `json:"data"`
	Links struct {
		Next string `json:"next"`
	} `json:"links"`
}

// TestConnection verifies the token with a one-item feature listing.
func (c *Client) TestConnection(ctx context.Context) error {
	return c.http.Do(ctx, remote.Request{
		Method: http.MethodGet,
		Path:   "/features",
		Query:  url.Values{"pageLimit": {"1"}},
	}, nil)
}

// GetFeature fetches a single feature by id.
func (c *Client) GetFeature(ctx context.Context, id string) (mapping.Feature, error) {
	var resp envelope[mapping.Feature]
	err := c.http.Do(ctx, remote.Request{Method: http.MethodGet, Path: "/features/" + url.PathEscape(id)}, &resp)
	if err != nil {
		return mapping.Feature{}, fmt.Errorf("fetching feature %s: %w", id, err)
	}
	return resp.Data, nil
}

// ListFeatures returns features updated at or after since, following
// pagination links. A zero since lists everything.
func (c *Client) ListFeatures(ctx context.Context, since time.Time) ([]mapping.Feature, error) {
	var out []mapping.Feature
	next := "/features"
	for next != "" {
		var page envelope[[]mapping.Feature]
		if err := c.http.Do(ctx, remote.Request{Method: http.MethodGet, Path: next}, &page); err != nil {
			return nil, fmt.Errorf("listing features: %w", err)
		}
		for _, f := range page.Data {
			if !since.IsZero() && (f.UpdatedAt == nil || f.UpdatedAt.Before(since)) {
				continue
			}
			out = append(out, f)
		}
		next = page.Links.Next
	}
	return out, nil
}

type customFieldValue struct {
	CustomField struct {
		ID string `json:"id"`
	} `json:"customField"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// GetCustomFieldValues returns the custom field values of one feature keyed by
// custom field id.
func (c *Client) GetCustomFieldValues(ctx context.Context, featureID string) (mapping.CustomValues, error) {
	values := mapping.CustomValues{}
	next := "/hierarchy-entities/custom-fields-values"
	query := url.Values{"hierarchyEntity.id": {featureID}}
	for next != "" {
		var page envelope[[]customFieldValue]
		if err := c.http.Do(ctx, remote.Request{Method: http.MethodGet, Path: next, Query: query}, &page); err != nil {
			return nil, fmt.Errorf("fetching custom fields of %s: %w", featureID, err)
		}
		for _, v := range page.Data {
			if v.CustomField.ID != "" {
				values[v.CustomField.ID] = v.Value
			}
		}
		// next links already carry the query
		next, query = page.Links.Next, nil
	}
	return values, nil
}

// SetCustomFieldValue writes one custom field value on a feature.
func (c *Client) SetCustomFieldValue(ctx context.Context, featureID, fieldID string, value any) error {
	body := map[string]any{"data": map[string]any{"type": customFieldType(value), "value": value}}
	err := c.http.Do(ctx, remote.Request{
		Method: http.MethodPut,
		Path:   "/hierarchy-entities/custom-fields-values/value",
		Query:  url.Values{"customField.id": {fieldID}, "hierarchyEntity.id": {featureID}},
		Body:   body,
	}, nil)
	if err != nil {
		return fmt.Errorf("setting custom field %s on %s: %w", fieldID, featureID, err)
	}
	return nil
}

func customFieldType(v any) string {
	switch v.(type) {
	case float64, float32, int, int64:
		return "number"
	case []string, []any:
		return "multi-dropdown"
	default:
		return "text"
	}
}

// CreateFeature creates a feature and returns it as stored.
func (c *Client) CreateFeature(ctx context.Context, f mapping.Feature) (mapping.Feature, error) {
	f.ID = ""
	var resp envelope[mapping.Feature]
	err := c.http.Do(ctx, remote.Request{
		Method: http.MethodPost,
		Path:   "/features",
		Body:   map[string]any{"data": f},
	}, &resp)
	if err != nil {
		return mapping.Feature{}, fmt.Errorf("creating feature: %w", err)
	}
	return resp.Data, nil
}

// UpdateFeature patches a feature and returns it as stored.
func (c *Client) UpdateFeature(ctx context.Context, id string, f mapping.Feature) (mapping.Feature, error) {
	f.ID = ""
	f.Links = nil
	var resp envelope[mapping.Feature]
	err := c.http.Do(ctx, remote.Request{
		Method: http.MethodPatch,
		Path:   "/features/" + url.PathEscape(id),
		Body:   map[string]any{"data": f},
	}, &resp)
	if err != nil {
		return mapping.Feature{}, fmt.Errorf("updating feature %s: %w", id, err)
	}
	return resp.Data, nil
}

// WriteItem creates or updates the feature for a canonical item and sets its
// custom field values.
func (c *Client) WriteItem(ctx context.Context, m *mapping.Mapper, item types.Item) (mapping.Feature, error) {
	f, values := m.Feature(item)
	var (
		stored mapping.Feature
		err    error
	)
	if item.ProductBoardID == "" {
		stored, err = c.CreateFeature(ctx, f)
	} else {
		stored, err = c.UpdateFeature(ctx, item.ProductBoardID, f)
	}
	if err != nil {
		return mapping.Feature{}, err
	}
	if stored.ID == "" {
		stored.ID = item.ProductBoardID
	}
	for fieldID, v := range values {
		if err := c.SetCustomFieldValue(ctx, stored.ID, fieldID, v); err != nil {
			return stored, err
		}
	}
	return stored, nil
}
