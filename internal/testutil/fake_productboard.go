package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/AlieInmar1/pbtoado-sub002/internal/mapping"
	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

// FakeProductBoard is an in-memory ProductBoard API.
type FakeProductBoard struct {
	Server *httptest.Server

	// PageSize bounds list responses so pagination gets exercised.
	PageSize int

	mu         sync.Mutex
	features   map[string]mapping.Feature
	values     map[string]mapping.CustomValues
	nextID     int
	failStatus int
	calls      map[string]int
	lastAuth   string
	lastVer    string
}

// NewFakeProductBoard starts a fake ProductBoard server closed on test cleanup.
func NewFakeProductBoard(t *testing.T) *FakeProductBoard {
	t.Helper()
	f := &FakeProductBoard{
		PageSize: 100,
		features: make(map[string]mapping.Feature),
		values:   make(map[string]mapping.CustomValues),
		nextID:   1,
		calls:    make(map[string]int),
	}

	r := chi.NewRouter()
	r.Use(f.middleware)
	r.Get("/features", f.handleList)
	r.Post("/features", f.handleCreate)
	r.Get("/features/{id}", f.handleGet)
	r.Patch("/features/{id}", f.handlePatch)
	r.Get("/hierarchy-entities/custom-fields-values", f.handleGetValues)
	r.Put("/hierarchy-entities/custom-fields-values/value", f.handlePutValue)

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Server.Close)
	return f
}

// Config returns a ProductBoardConfig pointing at the fake.
func (f *FakeProductBoard) Config() types.ProductBoardConfig {
	return types.ProductBoardConfig{BaseURL: f.Server.URL, Token: "test-token"}
}

// AddFeature stores a feature. UpdatedAt defaults to now.
func (f *FakeProductBoard) AddFeature(feat mapping.Feature) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if feat.UpdatedAt == nil {
		now := time.Now().UTC()
		feat.UpdatedAt = &now
	}
	f.features[feat.ID] = feat
}

// SetCustomValues replaces the custom field values of a feature.
func (f *FakeProductBoard) SetCustomValues(featureID string, values mapping.CustomValues) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[featureID] = values
}

// Feature returns a stored feature.
func (f *FakeProductBoard) Feature(id string) (mapping.Feature, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	feat, ok := f.features[id]
	return feat, ok
}

// CustomValues returns a copy of the stored custom values of a feature.
func (f *FakeProductBoard) CustomValues(id string) mapping.CustomValues {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := mapping.CustomValues{}
	for k, v := range f.values[id] {
		out[k] = v
	}
	return out
}

// FailWith makes every request fail with status until reset with 0.
func (f *FakeProductBoard) FailWith(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failStatus = status
}

// Calls returns how many requests hit an endpoint: "list", "get", "create",
// "patch", "values" or "put_value".
func (f *FakeProductBoard) Calls(endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[endpoint]
}

// LastHeaders returns the Authorization and X-Version headers of the last request.
func (f *FakeProductBoard) LastHeaders() (auth, version string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastAuth, f.lastVer
}

func (f *FakeProductBoard) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.lastAuth = r.Header.Get("Authorization")
		f.lastVer = r.Header.Get("X-Version")
		status := f.failStatus
		f.mu.Unlock()
		if status != 0 {
			writeJSON(w, status, map[string]any{"errors": []map[string]string{{"title": "injected failure"}}})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeProductBoard) count(endpoint string) {
	f.mu.Lock()
	f.calls[endpoint]++
	f.mu.Unlock()
}

func (f *FakeProductBoard) page(r *http.Request, path string, total int) (start, end int, next string) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("pageOffset"))
	size := f.PageSize
	if size <= 0 {
		size = total
	}
	start, end = offset, offset+size
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	if end < total {
		q := r.URL.Query()
		q.Set("pageOffset", strconv.Itoa(end))
		next = f.Server.URL + path + "?" + q.Encode()
	}
	return start, end, next
}

func (f *FakeProductBoard) handleList(w http.ResponseWriter, r *http.Request) {
	f.count("list")
	f.mu.Lock()
	ids := make([]string, 0, len(f.features))
	for id := range f.features {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	all := make([]mapping.Feature, 0, len(ids))
	for _, id := range ids {
		all = append(all, f.features[id])
	}
	f.mu.Unlock()

	if limit, err := strconv.Atoi(r.URL.Query().Get("pageLimit")); err == nil && limit < len(all) {
		all = all[:limit]
	}
	start, end, next := f.page(r, "/features", len(all))
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  all[start:end],
		"links": map[string]string{"next": next},
	})
}

func (f *FakeProductBoard) handleGet(w http.ResponseWriter, r *http.Request) {
	f.count("get")
	f.mu.Lock()
	feat, ok := f.features[chi.URLParam(r, "id")]
	f.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"errors": []map[string]string{{"title": "not found"}}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": feat})
}

type featureBody struct {
	Data mapping.Feature `json:"data"`
}

func (f *FakeProductBoard) handleCreate(w http.ResponseWriter, r *http.Request) {
	f.count("create")
	var body featureBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	f.mu.Lock()
	feat := body.Data
	feat.ID = fmt.Sprintf("pb-%04d", f.nextID)
	f.nextID++
	now := time.Now().UTC()
	feat.CreatedAt, feat.UpdatedAt = &now, &now
	feat.Links = &mapping.FeatureLinks{HTML: "https://acme.productboard.com/feature-board/features/" + feat.ID}
	f.features[feat.ID] = feat
	f.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]any{"data": feat})
}

func (f *FakeProductBoard) handlePatch(w http.ResponseWriter, r *http.Request) {
	f.count("patch")
	id := chi.URLParam(r, "id")
	var body featureBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	f.mu.Lock()
	feat, ok := f.features[id]
	if !ok {
		f.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]any{"errors": []map[string]string{{"title": "not found"}}})
		return
	}
	patch := body.Data
	if patch.Name != "" {
		feat.Name = patch.Name
	}
	if patch.Description != "" {
		feat.Description = patch.Description
	}
	if patch.Status != nil {
		feat.Status = patch.Status
	}
	if patch.Owner != nil {
		feat.Owner = patch.Owner
	}
	if patch.Parent != nil {
		feat.Parent = patch.Parent
	}
	now := time.Now().UTC()
	feat.UpdatedAt = &now
	f.features[id] = feat
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"data": feat})
}

func (f *FakeProductBoard) handleGetValues(w http.ResponseWriter, r *http.Request) {
	f.count("values")
	id := r.URL.Query().Get("hierarchyEntity.id")
	f.mu.Lock()
	fieldIDs := make([]string, 0, len(f.values[id]))
	for k := range f.values[id] {
		fieldIDs = append(fieldIDs, k)
	}
	sort.Strings(fieldIDs)
	data := make([]map[string]any, 0, len(fieldIDs))
	for _, k := range fieldIDs {
		data = append(data, map[string]any{
			"customField":     map[string]string{"id": k},
			"hierarchyEntity": map[string]string{"id": id},
			"value":           f.values[id][k],
		})
	}
	f.mu.Unlock()

	start, end, next := f.page(r, "/hierarchy-entities/custom-fields-values", len(data))
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  data[start:end],
		"links": map[string]string{"next": next},
	})
}

func (f *FakeProductBoard) handlePutValue(w http.ResponseWriter, r *http.Request) {
	f.count("put_value")
	fieldID := r.URL.Query().Get("customField.id")
	entityID := r.URL.Query().Get("hierarchyEntity.id")
	var body struct {
		Data struct {
			Type  string `json:"type"`
			Value any    `json:"value"`
		} `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || fieldID == "" || entityID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad custom field value"})
		return
	}
	f.mu.Lock()
	if f.values[entityID] == nil {
		f.values[entityID] = mapping.CustomValues{}
	}
	f.values[entityID][fieldID] = body.Data.Value
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"data": body.Data})
}
