package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlieInmar1/pbtoado-sub002/internal/bulksync"
	"github.com/AlieInmar1/pbtoado-sub002/internal/lock"
	"github.com/AlieInmar1/pbtoado-sub002/internal/mapping"
	"github.com/AlieInmar1/pbtoado-sub002/internal/provider/sqlite"
	"github.com/AlieInmar1/pbtoado-sub002/internal/testutil"
	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

func testConfig(t *testing.T) (*types.ProjectConfig, *testutil.FakeADO, *testutil.FakeProductBoard) {
	t.Helper()
	fakeADO := testutil.NewFakeADO(t)
	fakePB := testutil.NewFakeProductBoard(t)
	return &types.ProjectConfig{
		ADO:          fakeADO.Config(),
		ProductBoard: fakePB.Config(),
		Webhook:      types.WebhookConfig{Secret: "s", LiveWrites: true},
		Store:        types.StoreConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "cache.db")},
		Alerts:       []types.AlertConfig{{Type: types.AlertConsole}},
	}, fakeADO, fakePB
}

func TestBuild_EndToEnd(t *testing.T) {
	cfg, fakeADO, fakePB := testConfig(t)
	ctx := context.Background()

	d, err := Build(ctx, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	assert.IsType(t, &sqlite.Store{}, d.Store)
	assert.IsType(t, &lock.Memory{}, d.Locker)
	require.NoError(t, d.Store.Ping(ctx))

	fakePB.AddFeature(mapping.Feature{ID: "F1", Name: "Checkout", Type: "feature", Status: &mapping.FeatureStatus{Name: "With Engineering"}})
	res, err := d.Controller.Handle(ctx, []byte(`{"data":{"eventType":"feature.updated","id":"F1"}}`))
	require.NoError(t, err)
	assert.Equal(t, types.LogADOCreated, res.Status, res.Details)

	m, err := d.Store.GetMapping(ctx, "F1")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, res.ADOID, m.WTSID)

	exported, err := d.Exporter.Export(ctx, res.ADOID)
	require.NoError(t, err)
	assert.False(t, exported.Created)
	assert.Equal(t, "F1", exported.ProductBoardID)
	assert.Equal(t, 1, fakePB.Calls("patch"))

	fakeADO.SetReferenceData([]types.WorkItemType{{Name: "Feature"}}, nil, nil)
	out, err := d.BulkSync.Run(ctx, bulksync.Request{ForceFullSync: true})
	require.NoError(t, err)
	assert.True(t, out.Success, out.Message)
	assert.Equal(t, 1, out.Counts[types.EntityFeatures])
}

func TestNewStore_UnknownDriver(t *testing.T) {
	_, err := NewStore(context.Background(), types.StoreConfig{Driver: "mysql"})
	assert.Error(t, err)
}

func TestBuild_InvalidLockBackend(t *testing.T) {
	cfg, _, _ := testConfig(t)
	cfg.Lock.Backend = "redis"

	_, err := Build(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock backend")
}

func TestMapperConfig(t *testing.T) {
	cfg := &types.ProjectConfig{
		ADO:          types.ADOConfig{AreaPath: `Shop\Web`, WorkItemType: "User Story"},
		ProductBoard: types.ProductBoardConfig{FeatureURLPattern: "https://pb/{id}"},
	}
	mc := MapperConfig(cfg)
	assert.Equal(t, `Shop\Web`, mc.DefaultAreaPath)
	assert.Equal(t, "User Story", mc.DefaultType)
	assert.Equal(t, "https://pb/{id}", mc.FeatureURLPattern)
}
