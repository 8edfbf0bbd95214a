package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/AlieInmar1/pbtoado-sub002/internal/ado"
	"github.com/AlieInmar1/pbtoado-sub002/internal/bulksync"
	"github.com/AlieInmar1/pbtoado-sub002/internal/cache"
	"github.com/AlieInmar1/pbtoado-sub002/internal/export"
	"github.com/AlieInmar1/pbtoado-sub002/internal/mapping"
	"github.com/AlieInmar1/pbtoado-sub002/internal/productboard"
	"github.com/AlieInmar1/pbtoado-sub002/internal/server/handlers"
	"github.com/AlieInmar1/pbtoado-sub002/internal/testutil"
	"github.com/AlieInmar1/pbtoado-sub002/internal/webhook"
	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

const (
	hookSecret     = "hook-secret"
	featureUpdated = `{"data":{"eventType":"feature.updated","id":"F1"}}`
)

type env struct {
	ts    *httptest.Server
	store *testutil.MockStore
	ado   *testutil.FakeADO
	pb    *testutil.FakeProductBoard
}

func setupTestServer(t *testing.T) *env {
	t.Helper()
	return setupTestServerWithOpts(t, "", 0)
}

func setupTestServerWithOpts(t *testing.T, apiKey string, maxBody int64) *env {
	t.Helper()
	e := &env{
		store: testutil.NewMockStore(),
		ado:   testutil.NewFakeADO(t),
		pb:    testutil.NewFakeProductBoard(t),
	}
	mapper := mapping.MustNew(mapping.Config{})
	adoClient := ado.New(e.ado.Config(), mapper)
	pbClient := productboard.New(e.pb.Config())
	ctrl := webhook.New(webhook.Config{Secret: hookSecret, LiveWrites: true, LockWait: 200 * time.Millisecond},
		e.store, pbClient, adoClient, mapper)
	bulk := bulksync.New(e.ado.Config(), adoClient, nil, e.store, nil, nil)
	exp := export.New(adoClient, pbClient, mapper, e.store)

	srv := New(":0", ctrl, bulk, e.store, apiKey, maxBody, nil, WithExporter(exp))
	e.ts = httptest.NewServer(srv.Handler())
	t.Cleanup(e.ts.Close)
	return e
}

func (e *env) do(t *testing.T, method, path, body string, header map[string]string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, r)
	require.NoError(t, err)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealthEndpoint(t *testing.T) {
	e := setupTestServer(t)

	resp := e.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	body := decode[map[string]any](t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["liveWrites"])
}

func TestWebhook_CreatesWorkItem(t *testing.T) {
	e := setupTestServer(t)
	e.pb.AddFeature(mapping.Feature{ID: "F1", Name: "Checkout", Type: "feature", Status: &mapping.FeatureStatus{Name: "With Engineering"}})

	resp := e.do(t, http.MethodPost, "/webhooks/productboard", featureUpdated,
		map[string]string{"Authorization": hookSecret, "Content-Type": "application/json"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	res := decode[webhook.Result](t, resp)
	assert.Equal(t, types.LogADOCreated, res.Status)
	assert.Equal(t, "F1", res.ItemID)
	assert.NotZero(t, res.ADOID)
	assert.Equal(t, 1, e.ado.Calls("create"))

	resp = e.do(t, http.MethodGet, "/api/mappings/F1", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	m := decode[types.Mapping](t, resp)
	assert.Equal(t, res.ADOID, m.WTSID)

	resp = e.do(t, http.MethodGet, "/api/sync-logs/"+res.SyncLogID, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	log := decode[types.SyncLog](t, resp)
	assert.Equal(t, types.LogADOCreated, log.Status)
}

func TestWebhook_BearerPrefixAccepted(t *testing.T) {
	e := setupTestServer(t)
	e.pb.AddFeature(mapping.Feature{ID: "F1", Status: &mapping.FeatureStatus{Name: "Planned"}})

	resp := e.do(t, http.MethodPost, "/webhooks/productboard", featureUpdated,
		map[string]string{"Authorization": "Bearer " + hookSecret})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[webhook.Result](t, resp)
	assert.Equal(t, types.LogSkippedStatusCheck, res.Status)
}

func TestWebhook_RejectsBadSecret(t *testing.T) {
	e := setupTestServer(t)

	for _, hdr := range []map[string]string{nil, {"Authorization": "wrong"}} {
		resp := e.do(t, http.MethodPost, "/webhooks/productboard", featureUpdated, hdr)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		body := decode[map[string]string](t, resp)
		assert.Equal(t, "unauthorized", body["error"])
	}
	assert.Empty(t, e.store.SyncLogs(), "rejected deliveries leave no audit row")
	assert.Equal(t, 0, e.pb.Calls("get"))
}

func TestWebhook_AuditStoreDown(t *testing.T) {
	e := setupTestServer(t)
	e.pb.AddFeature(mapping.Feature{ID: "F1", Status: &mapping.FeatureStatus{Name: "With Engineering"}})
	e.store.FailWrites(true)

	resp := e.do(t, http.MethodPost, "/webhooks/productboard", featureUpdated,
		map[string]string{"Authorization": hookSecret})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "audit store unavailable", body["error"])
	assert.Equal(t, 0, e.pb.Calls("get"))
	assert.Equal(t, 0, e.ado.Calls("create"))
}

func TestWebhook_Handshake(t *testing.T) {
	e := setupTestServer(t)

	resp := e.do(t, http.MethodGet, "/webhooks/productboard?validationToken=abc123", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "abc123", string(body))

	resp = e.do(t, http.MethodGet, "/webhooks/productboard", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ = io.ReadAll(resp.Body)
	assert.Equal(t, handlers.LivenessMessage, string(body))
}

func TestWebhook_Preflight(t *testing.T) {
	e := setupTestServer(t)

	resp := e.do(t, http.MethodOptions, "/webhooks/productboard", "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestWebhook_BodyTooLarge(t *testing.T) {
	e := setupTestServerWithOpts(t, "", 16)

	resp := e.do(t, http.MethodPost, "/webhooks/productboard", featureUpdated,
		map[string]string{"Authorization": hookSecret})
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestSyncEndpoint(t *testing.T) {
	e := setupTestServer(t)
	e.ado.SetReferenceData([]types.WorkItemType{{Name: "Epic"}}, nil, nil)
	e.ado.AddTyped(1, types.ADOTypeEpic, "Platform", 0)

	resp := e.do(t, http.MethodPost, "/api/sync", `{"forceFullSync":true}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[bulksync.Result](t, resp)
	assert.True(t, res.Success, res.Message)
	assert.Equal(t, 1, res.Counts[types.EntityEpics])

	resp = e.do(t, http.MethodPost, "/api/sync", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "empty body runs an incremental sync")

	resp = e.do(t, http.MethodGet, "/api/sync-history", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	recs := decode[[]types.SyncHistoryRecord](t, resp)
	assert.Len(t, recs, 6)

	resp = e.do(t, http.MethodGet, "/api/hierarchy", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]json.RawMessage](t, resp), 1)
}

func TestSyncEndpoint_Errors(t *testing.T) {
	e := setupTestServer(t)

	resp := e.do(t, http.MethodPost, "/api/sync", `{not json`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/api/sync", `{"pat":"other"}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "no remote factory configured")

	e.ado.FailWith(http.StatusInternalServerError)
	resp = e.do(t, http.MethodPost, "/api/sync", `{}`, nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	res := decode[bulksync.Result](t, resp)
	assert.False(t, res.Success)
}

func TestWorkItemsEndpoint(t *testing.T) {
	e := setupTestServer(t)
	e.ado.AddTyped(1, types.ADOTypeEpic, "Platform", 0)
	e.ado.AddTyped(2, types.ADOTypeFeature, "Billing", 1)

	resp := e.do(t, http.MethodGet, "/api/work-items?ids=1,2", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[handlers.WorkItemsResponse](t, resp)
	assert.Equal(t, cache.SourceRemote, body.Source)
	assert.Len(t, body.Items, 2)
	assert.Equal(t, 1, e.ado.Calls("batch"))

	resp = e.do(t, http.MethodGet, "/api/work-items?ids=2,1", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decode[handlers.WorkItemsResponse](t, resp)
	assert.Equal(t, cache.SourceCache, body.Source)
	assert.False(t, body.Degraded)
	assert.Len(t, body.Items, 2)
	assert.Equal(t, 1, e.ado.Calls("batch"), "second read is served from the cache")

	e.ado.FailWith(http.StatusInternalServerError)
	resp = e.do(t, http.MethodGet, "/api/work-items?ids=1,2&refresh=true", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decode[handlers.WorkItemsResponse](t, resp)
	assert.Equal(t, cache.SourceCache, body.Source)
	assert.True(t, body.Degraded)

	resp = e.do(t, http.MethodGet, "/api/work-items?ids=77", "", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "work items unavailable", decode[map[string]string](t, resp)["error"])
}

func TestWorkItemsEndpoint_BadIDs(t *testing.T) {
	e := setupTestServer(t)

	for _, q := range []string{"", "?ids=", "?ids=1,x", "?ids=0", "?ids=" + strings.Repeat("1,", 200) + "1"} {
		resp := e.do(t, http.MethodGet, "/api/work-items"+q, "", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
	assert.Equal(t, 0, e.ado.Calls("batch"))
}

func TestExportEndpoint(t *testing.T) {
	e := setupTestServer(t)
	e.ado.AddTyped(5, types.ADOTypeFeature, "Audit log", 0)

	resp := e.do(t, http.MethodPost, "/api/work-items/5/export", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[export.Result](t, resp)
	assert.True(t, res.Created)
	assert.Equal(t, "pb-0001", res.ProductBoardID)

	resp = e.do(t, http.MethodGet, "/api/mappings/pb-0001", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 5, decode[types.Mapping](t, resp).WTSID)

	resp = e.do(t, http.MethodPost, "/api/work-items/5/export", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[export.Result](t, resp).Created, "linked work items update their feature")
	assert.Equal(t, 1, e.pb.Calls("create"))

	resp = e.do(t, http.MethodPost, "/api/work-items/999/export", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = e.do(t, http.MethodPost, "/api/work-items/abc/export", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExportEndpoint_NotMountedWithoutExporter(t *testing.T) {
	store := testutil.NewMockStore()
	fake := testutil.NewFakeADO(t)
	mapper := mapping.MustNew(mapping.Config{})
	adoClient := ado.New(fake.Config(), mapper)
	bulk := bulksync.New(fake.Config(), adoClient, nil, store, nil, nil)
	srv := New(":0", nil, bulk, store, "", 0, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/work-items/5/export", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMappingAndLogEndpoints_NotFound(t *testing.T) {
	e := setupTestServer(t)

	resp := e.do(t, http.MethodGet, "/api/mappings/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = e.do(t, http.MethodGet, "/api/sync-logs/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = e.do(t, http.MethodGet, "/api/mappings?limit=5", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]types.Mapping](t, resp))
}

func TestMetricsEndpoint(t *testing.T) {
	e := setupTestServer(t)

	resp := e.do(t, http.MethodGet, "/api/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	vars := decode[map[string]json.RawMessage](t, resp)
	assert.Contains(t, vars, "webhook_events_total")
	assert.Contains(t, vars, "bulk_sync_runs")
}

func TestStoreFailureIsSanitized(t *testing.T) {
	e := setupTestServer(t)
	e.store.FailReads(true)

	resp := e.do(t, http.MethodGet, "/api/sync-logs", "", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "failed to list sync logs", body["error"])
}

func TestAPIKeyAuth(t *testing.T) {
	e := setupTestServerWithOpts(t, "test-secret", 0)

	resp := e.do(t, http.MethodGet, "/api/mappings", "", map[string]string{"X-API-Key": "test-secret"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.do(t, http.MethodGet, "/api/mappings", "", map[string]string{"X-API-Key": "wrong-key"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = e.do(t, http.MethodGet, "/api/mappings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = e.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "health bypasses the API key")

	resp = e.do(t, http.MethodGet, "/webhooks/productboard", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "webhook endpoint uses its own secret")
}

func TestStartStop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	store := testutil.NewMockStore()
	srv := New("127.0.0.1:0", stubWebhook{}, nil, store, "", 0, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	testutil.WaitFor(t, 2*time.Second, func() bool {
		resp, err := client.Get("http://" + ln.Addr().String() + "/api/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, "server did not come up")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
	assert.NoError(t, <-done)
}

type stubWebhook struct{}

func (stubWebhook) Authorize(string) error { return nil }
func (stubWebhook) Handle(context.Context, []byte) (webhook.Result, error) {
	return webhook.Result{}, nil
}
func (stubWebhook) LiveWrites() bool { return false }
