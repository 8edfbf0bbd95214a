// Package ado implements the Azure DevOps work tracking adapter.
package ado

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/AlieInmar1/pbtoado-sub002/internal/mapping"
	"github.com/AlieInmar1/pbtoado-sub002/internal/remote"
	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

// Defaults for Azure DevOps calls.
const (
	DefaultBaseURL        = "https://dev.azure.com"
	DefaultAPIVersion     = "7.0"
	DefaultBatchSize      = 200 // workitems batch endpoint limit
	DefaultQueryBatchSize = 50
	DefaultAreaDepth      = 10

	patchContentType = "application/json-patch+json"
)

// Client talks to one Azure DevOps project.
type Client struct {
	http           *remote.Client
	mapper         *mapping.Mapper
	baseURL        string
	org            string
	project        string
	apiVersion     string
	batchSize      int
	queryBatchSize int
	areaDepth      int
}

// Option customizes a Client.
type Option func(*remote.Options)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *remote.Options) { o.HTTPClient = hc }
}

// New creates an Azure DevOps client for cfg.
func New(cfg types.ADOConfig, m *mapping.Mapper, opts ...Option) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	timeout, _ := time.ParseDuration(cfg.Timeout)
	ro := remote.Options{
		System:            "ado",
		BaseURL:           base,
		Auth:              remote.BasicAuth("", cfg.PAT),
		Headers:           cfg.Headers,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		Timeout:           timeout,
	}
	for _, opt := range opts {
		opt(&ro)
	}

	c := &Client{
		http:           remote.New(ro),
		mapper:         m,
		baseURL:        strings.TrimRight(base, "/"),
		org:            cfg.Organization,
		project:        cfg.Project,
		apiVersion:     cfg.APIVersion,
		batchSize:      cfg.BatchSize,
		queryBatchSize: cfg.QueryBatchSize,
		areaDepth:      cfg.AreaDepth,
	}
	if c.apiVersion == "" {
		c.apiVersion = DefaultAPIVersion
	}
	if c.batchSize <= 0 || c.batchSize > DefaultBatchSize {
		c.batchSize = DefaultBatchSize
	}
	if c.queryBatchSize <= 0 {
		c.queryBatchSize = DefaultQueryBatchSize
	}
	if c.areaDepth <= 0 {
		c.areaDepth = DefaultAreaDepth
	}
	return c
}

// Organization returns the configured organization.
func (c *Client) Organization() string { return c.org }

// Project returns the configured project.
func (c *Client) Project() string { return c.project }

func (c *Client) projectPath(suffix string) string {
	return "/" + url.PathEscape(c.org) + "/" + url.PathEscape(c.project) + suffix
}

func (c *Client) query(extra url.Values) url.Values {
	q := url.Values{"api-version": {c.apiVersion}}
	for k, v := range extra {
		q[k] = v
	}
	return q
}

// TestConnection verifies credentials by reading the project.
func (c *Client) TestConnection(ctx context.Context) error {
	path := "/" + url.PathEscape(c.org) + "/_apis/projects/" + url.PathEscape(c.project)
	return c.http.Do(ctx, remote.Request{Method: http.MethodGet, Path: path, Query: c.query(nil)}, nil)
}

type workItemList struct {
	Count int                   `json:"count"`
	Value []mapping.ADOWorkItem `json:"value"`
}

// GetWorkItemsRaw fetches work items with relations in chunks of the batch size.
// Results keep the order the API returns within each chunk, chunks in input order.
func (c *Client) GetWorkItemsRaw(ctx context.Context, ids []int) ([]mapping.ADOWorkItem, error) {
	var out []mapping.ADOWorkItem
	for _, chunk := range remote.Chunk(ids, c.batchSize) {
		strIDs := make([]string, len(chunk))
		for i, id := range chunk {
			strIDs[i] = strconv.Itoa(id)
		}
		var list workItemList
		err := c.http.Do(ctx, remote.Request{
			Method: http.MethodGet,
			Path:   c.projectPath("/_apis/wit/workitems"),
			Query: c.query(url.Values{
				"ids":         {strings.Join(strIDs, ",")},
				"$expand":     {"relations"},
				"errorPolicy": {"omit"},
			}),
		}, &list)
		if err != nil {
			return nil, fmt.Errorf("fetching work items: %w", err)
		}
		for _, raw := range list.Value {
			// errorPolicy=omit returns null entries for deleted or inaccessible ids
			if raw.ID == 0 {
				continue
			}
			out = append(out, raw)
		}
	}
	return out, nil
}

// GetWorkItems fetches work items by id and converts them to the cached shape.
func (c *Client) GetWorkItems(ctx context.Context, ids []int) ([]types.WorkItem, error) {
	raws, err := c.GetWorkItemsRaw(ctx, ids)
	if err != nil {
		return nil, err
	}
	items := make([]types.WorkItem, 0, len(raws))
	for _, raw := range raws {
		items = append(items, c.mapper.ExtractWorkItem(raw))
	}
	return items, nil
}

type wiqlResult struct {
	WorkItems []struct {
		ID int `json:"id"`
	} `json:"workItems"`
}

// QueryIDs runs a WIQL query and returns the matching work item ids.
func (c *Client) QueryIDs(ctx context.Context, wiql string) ([]int, error) {
	var res wiqlResult
	err := c.http.Do(ctx, remote.Request{
		Method: http.MethodPost,
		Path:   c.projectPath("/_apis/wit/wiql"),
		Query:  c.query(url.Values{"timePrecision": {"true"}}),
		Body:   map[string]string{"query": wiql},
	}, &res)
	if err != nil {
		return nil, fmt.Errorf("running WIQL query: %w", err)
	}
	ids := make([]int, 0, len(res.WorkItems))
	for _, wi := range res.WorkItems {
		ids = append(ids, wi.ID)
	}
	return ids, nil
}

// TypeQuery returns the WIQL selecting all work items of a type in the project.
func TypeQuery(workItemType string) string {
	return "SELECT [System.Id] FROM WorkItems WHERE [System.TeamProject] = @project AND [System.WorkItemType] = " +
		quote(workItemType) + " ORDER BY [System.Id]"
}

// QueryByType returns work items of a type, limited to those changed since the
// cutoff when since is non-zero.
func (c *Client) QueryByType(ctx context.Context, workItemType string, since time.Time) ([]types.WorkItem, error) {
	ids, err := c.QueryIDs(ctx, WithChangedSince(TypeQuery(workItemType), since))
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return c.GetWorkItems(ctx, ids)
}

// FindByProductBoardID looks up the work item carrying a ProductBoard id in its
// cross-reference field. It returns nil when none exists.
func (c *Client) FindByProductBoardID(ctx context.Context, psID string) (*types.WorkItem, error) {
	q := "SELECT [System.Id] FROM WorkItems WHERE [System.TeamProject] = @project AND [" +
		c.mapper.Fields().ProductBoardID + "] = " + quote(psID) + " ORDER BY [System.Id]"
	ids, err := c.QueryIDs(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	items, err := c.GetWorkItems(ctx, ids[:1])
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

type workItemTypeList struct {
	Value []struct {
		Name          string `json:"name"`
		ReferenceName string `json:"referenceName"`
		Description   string `json:"description"`
		Color         string `json:"color"`
		Icon          struct {
			URL string `json:"url"`
		} `json:"icon"`
		IsDisabled bool `json:"isDisabled"`
	} `json:"value"`
}

// ListWorkItemTypes returns the project's work item types.
func (c *Client) ListWorkItemTypes(ctx context.Context) ([]types.WorkItemType, error) {
	var list workItemTypeList
	err := c.http.Do(ctx, remote.Request{
		Method: http.MethodGet,
		Path:   c.projectPath("/_apis/wit/workitemtypes"),
		Query:  c.query(nil),
	}, &list)
	if err != nil {
		return nil, fmt.Errorf("listing work item types: %w", err)
	}
	out := make([]types.WorkItemType, 0, len(list.Value))
	for _, v := range list.Value {
		out = append(out, types.WorkItemType{
			Name:          v.Name,
			ReferenceName: v.ReferenceName,
			Description:   v.Description,
			Color:         v.Color,
			Icon:          v.Icon.URL,
			IsDisabled:    v.IsDisabled,
		})
	}
	return out, nil
}

type classificationNode struct {
	ID            int                  `json:"id"`
	Identifier    string               `json:"identifier"`
	Name          string               `json:"name"`
	StructureType string               `json:"structureType"`
	HasChildren   bool                 `json:"hasChildren"`
	Path          string               `json:"path"`
	Children      []classificationNode `json:"children"`
}

// ListAreaPaths returns the area tree flattened depth-first.
func (c *Client) ListAreaPaths(ctx context.Context) ([]types.AreaPath, error) {
	var root classificationNode
	err := c.http.Do(ctx, remote.Request{
		Method: http.MethodGet,
		Path:   c.projectPath("/_apis/wit/classificationnodes/areas"),
		Query:  c.query(url.Values{"$depth": {strconv.Itoa(c.areaDepth)}}),
	}, &root)
	if err != nil {
		return nil, fmt.Errorf("listing area paths: %w", err)
	}
	var out []types.AreaPath
	var walk func(n classificationNode)
	walk = func(n classificationNode) {
		out = append(out, types.AreaPath{
			ID:            n.ID,
			Identifier:    n.Identifier,
			Name:          n.Name,
			Path:          NormalizeAreaPath(n.Path),
			StructureType: n.StructureType,
			HasChildren:   n.HasChildren || len(n.Children) > 0,
		})
		for _, child := range n.Children {
			walk(child)
		}
	}
	walk(root)
	return out, nil
}

// NormalizeAreaPath converts a classification node path such as
// \Project\Area\Team into the work item form Project\Team.
func NormalizeAreaPath(p string) string {
	parts := strings.Split(strings.TrimPrefix(p, `\`), `\`)
	if len(parts) >= 2 && strings.EqualFold(parts[1], "Area") {
		parts = append(parts[:1], parts[2:]...)
	}
	return strings.Join(parts, `\`)
}

type teamList struct {
	Count int `json:"count"`
	Value []struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		URL         string `json:"url"`
	} `json:"value"`
}

// ListTeams returns all project teams, paging by the query batch size.
func (c *Client) ListTeams(ctx context.Context) ([]types.Team, error) {
	path := "/" + url.PathEscape(c.org) + "/_apis/projects/" + url.PathEscape(c.project) + "/teams"
	var out []types.Team
	for skip := 0; ; skip += c.queryBatchSize {
		var page teamList
		err := c.http.Do(ctx, remote.Request{
			Method: http.MethodGet,
			Path:   path,
			Query: c.query(url.Values{
				"$top":  {strconv.Itoa(c.queryBatchSize)},
				"$skip": {strconv.Itoa(skip)},
			}),
		}, &page)
		if err != nil {
			return nil, fmt.Errorf("listing teams: %w", err)
		}
		for _, v := range page.Value {
			out = append(out, types.Team{ID: v.ID, Name: v.Name, Description: v.Description, URL: v.URL})
		}
		if len(page.Value) < c.queryBatchSize {
			return out, nil
		}
	}
}

// CreateWorkItem creates a work item of the given type from patch operations.
func (c *Client) CreateWorkItem(ctx context.Context, workItemType string, ops []mapping.PatchOp) (types.WorkItem, error) {
	var raw mapping.ADOWorkItem
	err := c.http.Do(ctx, remote.Request{
		Method:      http.MethodPost,
		Path:        c.projectPath("/_apis/wit/workitems/$" + url.PathEscape(workItemType)),
		Query:       c.query(nil),
		Body:        ops,
		ContentType: patchContentType,
	}, &raw)
	if err != nil {
		return types.WorkItem{}, fmt.Errorf("creating %s: %w", workItemType, err)
	}
	return c.mapper.ExtractWorkItem(raw), nil
}

// UpdateWorkItem applies patch operations to an existing work item.
func (c *Client) UpdateWorkItem(ctx context.Context, id int, ops []mapping.PatchOp) (types.WorkItem, error) {
	var raw mapping.ADOWorkItem
	err := c.http.Do(ctx, remote.Request{
		Method:      http.MethodPatch,
		Path:        c.projectPath("/_apis/wit/workitems/" + strconv.Itoa(id)),
		Query:       c.query(nil),
		Body:        ops,
		ContentType: patchContentType,
	}, &raw)
	if err != nil {
		return types.WorkItem{}, fmt.Errorf("updating work item %d: %w", id, err)
	}
	return c.mapper.ExtractWorkItem(raw), nil
}

// WebURL returns the browser URL of a work item.
func (c *Client) WebURL(id int) string {
	return c.baseURL + c.projectPath("/_workitems/edit/"+strconv.Itoa(id))
}
