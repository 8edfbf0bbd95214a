package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/AlieInmar1/pbtoado-sub002/internal/mapping"
	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

var (
	wiqlChangedRe = regexp.MustCompile(`\[System\.ChangedDate\] >= '([^']+)'`)
	wiqlFieldRe   = regexp.MustCompile(`\[([A-Za-z0-9_.]+)\] = '((?:[^']|'')*)'`)
)

// FakeADO is an in-memory Azure DevOps REST API serving one organization and project.
type FakeADO struct {
	Server  *httptest.Server
	Org     string
	Project string

	mu         sync.Mutex
	items      map[int]mapping.ADOWorkItem
	nextID     int
	types      []types.WorkItemType
	areaRoot   map[string]any
	teams      []types.Team
	failStatus int
	calls      map[string]int
	batchSizes []int
	lastAuth   string
}

// NewFakeADO starts a fake ADO server closed on test cleanup.
func NewFakeADO(t *testing.T) *FakeADO {
	t.Helper()
	f := &FakeADO{
		Org:     "acme",
		Project: "Shop",
		items:   make(map[int]mapping.ADOWorkItem),
		nextID:  1000,
		calls:   make(map[string]int),
	}

	r := chi.NewRouter()
	r.Use(f.middleware)
	r.Get("/{org}/_apis/projects/{project}", f.handleProject)
	r.Get("/{org}/_apis/projects/{project}/teams", f.handleTeams)
	r.Route("/{org}/{project}/_apis/wit", func(r chi.Router) {
		r.Get("/workitems", f.handleBatch)
		r.Post("/wiql", f.handleWIQL)
		r.Post("/workitems/{ref}", f.handleCreate)
		r.Patch("/workitems/{ref}", f.handleUpdate)
		r.Get("/workitemtypes", f.handleTypes)
		r.Get("/classificationnodes/areas", f.handleAreas)
	})

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Server.Close)
	return f
}

// Config returns an ADOConfig pointing at the fake.
func (f *FakeADO) Config() types.ADOConfig {
	return types.ADOConfig{
		Organization: f.Org,
		Project:      f.Project,
		BaseURL:      f.Server.URL,
		PAT:          "test-pat",
	}
}

// AddWorkItem stores a raw work item and returns it.
func (f *FakeADO) AddWorkItem(wi mapping.ADOWorkItem) mapping.ADOWorkItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	if wi.Fields == nil {
		wi.Fields = map[string]any{}
	}
	if wi.Rev == 0 {
		wi.Rev = 1
	}
	if _, ok := wi.Fields[mapping.FieldChangedDate]; !ok {
		wi.Fields[mapping.FieldChangedDate] = time.Now().UTC().Format(time.RFC3339Nano)
	}
	wi.URL = f.itemURL(wi.ID)
	f.items[wi.ID] = wi
	if wi.ID >= f.nextID {
		f.nextID = wi.ID + 1
	}
	return wi
}

// AddTyped stores a work item of the given type and title, optionally under a parent.
func (f *FakeADO) AddTyped(id int, workItemType, title string, parentID int) mapping.ADOWorkItem {
	wi := mapping.ADOWorkItem{ID: id, Fields: map[string]any{
		mapping.FieldWorkItemType: workItemType,
		mapping.FieldTitle:        title,
	}}
	if parentID > 0 {
		wi.Relations = []mapping.ADORelation{{Rel: mapping.RelParent, URL: f.itemURL(parentID)}}
	}
	return f.AddWorkItem(wi)
}

// WorkItem returns a stored work item.
func (f *FakeADO) WorkItem(id int) (mapping.ADOWorkItem, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wi, ok := f.items[id]
	return wi, ok
}

// WorkItemCount returns the number of stored work items.
func (f *FakeADO) WorkItemCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

// SetReferenceData replaces the types, area tree and teams served by the fake.
func (f *FakeADO) SetReferenceData(wits []types.WorkItemType, areaRoot map[string]any, teams []types.Team) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types = wits
	f.areaRoot = areaRoot
	f.teams = teams
}

// FailWith makes every request fail with status until reset with 0.
func (f *FakeADO) FailWith(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failStatus = status
}

// Calls returns how many requests hit an endpoint: "batch", "wiql", "create",
// "update", "types", "areas", "teams" or "project".
func (f *FakeADO) Calls(endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[endpoint]
}

// BatchSizes returns the number of ids requested by each batch call.
func (f *FakeADO) BatchSizes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.batchSizes...)
}

// LastAuthorization returns the Authorization header of the last request.
func (f *FakeADO) LastAuthorization() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastAuth
}

func (f *FakeADO) itemURL(id int) string {
	base := ""
	if f.Server != nil {
		base = f.Server.URL
	}
	return base + "/" + f.Org + "/_apis/wit/workItems/" + strconv.Itoa(id)
}

func (f *FakeADO) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.lastAuth = r.Header.Get("Authorization")
		status := f.failStatus
		f.mu.Unlock()
		if status != 0 {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"message":"injected failure"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeADO) count(endpoint string) {
	f.mu.Lock()
	f.calls[endpoint]++
	f.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *FakeADO) handleProject(w http.ResponseWriter, r *http.Request) {
	f.count("project")
	writeJSON(w, http.StatusOK, map[string]any{"id": "p-1", "name": f.Project})
}

func (f *FakeADO) handleBatch(w http.ResponseWriter, r *http.Request) {
	f.count("batch")
	var ids []int
	for _, s := range strings.Split(r.URL.Query().Get("ids"), ",") {
		if id, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			ids = append(ids, id)
		}
	}
	f.mu.Lock()
	f.batchSizes = append(f.batchSizes, len(ids))
	var out []any
	for _, id := range ids {
		if wi, ok := f.items[id]; ok {
			out = append(out, wi)
		} else {
			out = append(out, nil)
		}
	}
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"count": len(out), "value": out})
}

func (f *FakeADO) handleWIQL(w http.ResponseWriter, r *http.Request) {
	f.count("wiql")
	var body struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	conds := map[string]string{}
	for _, m := range wiqlFieldRe.FindAllStringSubmatch(body.Query, -1) {
		conds[m[1]] = strings.ReplaceAll(m[2], "''", "'")
	}
	var since time.Time
	if m := wiqlChangedRe.FindStringSubmatch(body.Query); m != nil {
		since, _ = time.Parse(time.RFC3339, m[1])
	}

	f.mu.Lock()
	var ids []int
	for id, wi := range f.items {
		match := true
		for field, want := range conds {
			if got, _ := wi.Fields[field].(string); got != want {
				match = false
				break
			}
		}
		if match && !since.IsZero() {
			changed, _ := time.Parse(time.RFC3339Nano, stringField(wi.Fields, mapping.FieldChangedDate))
			match = !changed.Before(since)
		}
		if match {
			ids = append(ids, id)
		}
	}
	f.mu.Unlock()
	sort.Ints(ids)

	refs := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, map[string]any{"id": id, "url": f.itemURL(id)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"workItems": refs})
}

func (f *FakeADO) handleCreate(w http.ResponseWriter, r *http.Request) {
	f.count("create")
	typ, _ := url.PathUnescape(chi.URLParam(r, "ref"))
	typ = strings.TrimPrefix(typ, "$")
	var ops []mapping.PatchOp
	if err := json.NewDecoder(r.Body).Decode(&ops); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	wi := mapping.ApplyPatch(id, typ, ops)
	wi.Fields[mapping.FieldChangedDate] = time.Now().UTC().Format(time.RFC3339Nano)
	wi.Fields[mapping.FieldState] = "New"
	wi.URL = f.itemURL(id)
	f.items[id] = wi
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, wi)
}

func (f *FakeADO) handleUpdate(w http.ResponseWriter, r *http.Request) {
	f.count("update")
	id, err := strconv.Atoi(chi.URLParam(r, "ref"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad id"})
		return
	}
	var ops []mapping.PatchOp
	if err := json.NewDecoder(r.Body).Decode(&ops); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	f.mu.Lock()
	wi, ok := f.items[id]
	if !ok {
		f.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "work item not found"})
		return
	}
	wi = mapping.MergePatch(wi, ops)
	wi.Rev++
	wi.Fields[mapping.FieldChangedDate] = time.Now().UTC().Format(time.RFC3339Nano)
	f.items[id] = wi
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, wi)
}

func (f *FakeADO) handleTypes(w http.ResponseWriter, r *http.Request) {
	f.count("types")
	f.mu.Lock()
	defer f.mu.Unlock()
	value := make([]map[string]any, 0, len(f.types))
	for _, t := range f.types {
		value = append(value, map[string]any{
			"name": t.Name, "referenceName": t.ReferenceName, "description": t.Description,
			"color": t.Color, "icon": map[string]any{"url": t.Icon}, "isDisabled": t.IsDisabled,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(value), "value": value})
}

func (f *FakeADO) handleAreas(w http.ResponseWriter, r *http.Request) {
	f.count("areas")
	f.mu.Lock()
	root := f.areaRoot
	f.mu.Unlock()
	if root == nil {
		root = map[string]any{"id": 1, "name": f.Project, "structureType": "area", "path": `\` + f.Project + `\Area`}
	}
	writeJSON(w, http.StatusOK, root)
}

func (f *FakeADO) handleTeams(w http.ResponseWriter, r *http.Request) {
	f.count("teams")
	top, _ := strconv.Atoi(r.URL.Query().Get("$top"))
	skip, _ := strconv.Atoi(r.URL.Query().Get("$skip"))
	f.mu.Lock()
	all := f.teams
	f.mu.Unlock()
	if top <= 0 {
		top = 100
	}
	var page []map[string]any
	for i := skip; i < len(all) && i < skip+top; i++ {
		t := all[i]
		page = append(page, map[string]any{"id": t.ID, "name": t.Name, "description": t.Description, "url": t.URL})
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(page), "value": page})
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}
