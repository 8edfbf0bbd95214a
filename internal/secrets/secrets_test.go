package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

type mockSM struct {
	values map[string]string
	calls  int
}

func (m *mockSM) GetSecretValue(_ context.Context, input *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	m.calls++
	v, ok := m.values[*input.SecretId]
	if !ok {
		return nil, errors.New("ResourceNotFoundException")
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: &v}, nil
}

func TestResolve_Literal(t *testing.T) {
	r := NewResolverWithClient(&mockSM{})
	v, err := r.Resolve(context.Background(), "plain-value")
	require.NoError(t, err)
	assert.Equal(t, "plain-value", v)
}

func TestResolve_Env(t *testing.T) {
	t.Setenv("PBTOADO_SECRET_TEST", "s3cret")
	r := NewResolverWithClient(&mockSM{})

	v, err := r.Resolve(context.Background(), "env:PBTOADO_SECRET_TEST")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", v)

	_, err = r.Resolve(context.Background(), "env:PBTOADO_SECRET_UNSET")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PBTOADO_SECRET_UNSET")
}

func TestResolve_SecretsManager(t *testing.T) {
	sm := &mockSM{values: map[string]string{
		"pbtoado/ado":  "raw-pat",
		"pbtoado/json": `{"token":"pb-token","n":3}`,
	}}
	r := NewResolverWithClient(sm)
	ctx := context.Background()

	v, err := r.Resolve(ctx, "secretsmanager:pbtoado/ado")
	require.NoError(t, err)
	assert.Equal(t, "raw-pat", v)

	v, err = r.Resolve(ctx, "secretsmanager:pbtoado/json#token")
	require.NoError(t, err)
	assert.Equal(t, "pb-token", v)

	_, err = r.Resolve(ctx, "secretsmanager:pbtoado/json#missing")
	assert.Error(t, err)
	_, err = r.Resolve(ctx, "secretsmanager:pbtoado/json#n")
	assert.Error(t, err)
	_, err = r.Resolve(ctx, "secretsmanager:pbtoado/ado#token")
	assert.Error(t, err, "raw secret is not JSON")
	_, err = r.Resolve(ctx, "secretsmanager:nope")
	assert.Error(t, err)
	_, err = r.Resolve(ctx, "secretsmanager:")
	assert.Error(t, err)

	assert.Equal(t, 3, sm.calls, "secret strings are fetched once per id")
}

func TestResolveConfig(t *testing.T) {
	t.Setenv("PBTOADO_PAT_TEST", "pat-from-env")
	sm := &mockSM{values: map[string]string{"hook": "hook-secret"}}
	r := NewResolverWithClient(sm)

	cfg := &types.ProjectConfig{
		ADO:          types.ADOConfig{PAT: "env:PBTOADO_PAT_TEST"},
		ProductBoard: types.ProductBoardConfig{Token: "literal-token"},
		Webhook:      types.WebhookConfig{Secret: "secretsmanager:hook"},
		Server:       &types.ServerConfig{APIKey: "k"},
		Lock:         types.LockConfig{Redis: &types.RedisConfig{Password: "env:PBTOADO_MISSING_PW"}},
	}
	err := r.ResolveConfig(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock.redis.password")

	cfg.Lock.Redis.Password = ""
	require.NoError(t, r.ResolveConfig(context.Background(), cfg))
	assert.Equal(t, "pat-from-env", cfg.ADO.PAT)
	assert.Equal(t, "literal-token", cfg.ProductBoard.Token)
	assert.Equal(t, "hook-secret", cfg.Webhook.Secret)
	assert.Equal(t, "k", cfg.Server.APIKey)
}
