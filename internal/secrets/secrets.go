// Package secrets resolves credential references in configuration.
//
// A credential value is one of:
//
//	env:NAME                       read from the environment
//	secretsmanager:<id>            an AWS Secrets Manager secret string
//	secretsmanager:<id>#<key>      one key of a JSON secret string
//	anything else                  used literally
package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

const (
	envPrefix = "env:"
	smPrefix  = "secretsmanager:"
)

// SecretsManagerAPI is the subset of the Secrets Manager client used here.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, input *secretsmanager.GetSecretValueInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Resolver expands credential references. The Secrets Manager client is
// created lazily so configs without secretsmanager references never touch AWS.
type Resolver struct {
	newClient func(ctx context.Context) (SecretsManagerAPI, error)

	mu     sync.Mutex
	client SecretsManagerAPI
	cache  map[string]string
}

// NewResolver returns a Resolver that loads the default AWS config on first use.
func NewResolver() *Resolver {
	return &Resolver{newClient: defaultClient, cache: make(map[string]string)}
}

// NewResolverWithClient returns a Resolver using the given client. Useful for tests.
func NewResolverWithClient(client SecretsManagerAPI) *Resolver {
	return &Resolver{client: client, cache: make(map[string]string)}
}

func defaultClient(ctx context.Context) (SecretsManagerAPI, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return secretsmanager.NewFromConfig(awsCfg), nil
}

// Resolve returns the plain value for ref.
func (r *Resolver) Resolve(ctx context.Context, ref string) (string, error) {
	switch {
	case strings.HasPrefix(ref, envPrefix):
		name := strings.TrimPrefix(ref, envPrefix)
		v, ok := os.LookupEnv(name)
		if !ok || v == "" {
			return "", fmt.Errorf("environment variable %s is not set", name)
		}
		return v, nil
	case strings.HasPrefix(ref, smPrefix):
		return r.fromSecretsManager(ctx, strings.TrimPrefix(ref, smPrefix))
	default:
		return ref, nil
	}
}

func (r *Resolver) fromSecretsManager(ctx context.Context, spec string) (string, error) {
	id, key, _ := strings.Cut(spec, "#")
	if id == "" {
		return "", fmt.Errorf("secretsmanager reference has no secret id")
	}

	raw, err := r.secretString(ctx, id)
	if err != nil {
		return "", err
	}
	if key == "" {
		return raw, nil
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return "", fmt.Errorf("secret %s is not a JSON object: %w", id, err)
	}
	v, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("secret %s has no key %q", id, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("secret %s key %q is not a string", id, key)
	}
	return s, nil
}

func (r *Resolver) secretString(ctx context.Context, id string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.cache[id]; ok {
		return v, nil
	}
	if r.client == nil {
		c, err := r.newClient(ctx)
		if err != nil {
			return "", err
		}
		r.client = c
	}
	out, err := r.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: &id})
	if err != nil {
		return "", fmt.Errorf("getting secret %s: %w", id, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", id)
	}
	r.cache[id] = *out.SecretString
	return *out.SecretString, nil
}

// ResolveConfig replaces every credential field of cfg in place.
func (r *Resolver) ResolveConfig(ctx context.Context, cfg *types.ProjectConfig) error {
	fields := []struct {
		name string
		ptr  *string
	}{
		{"ado.pat", &cfg.ADO.PAT},
		{"productboard.token", &cfg.ProductBoard.Token},
		{"webhook.secret", &cfg.Webhook.Secret},
		{"store.dsn", &cfg.Store.DSN},
	}
	if cfg.Server != nil {
		fields = append(fields, struct {
			name string
			ptr  *string
		}{"server.apiKey", &cfg.Server.APIKey})
	}
	if cfg.Lock.Redis != nil {
		fields = append(fields, struct {
			name string
			ptr  *string
		}{"lock.redis.password", &cfg.Lock.Redis.Password})
	}

	for _, f := range fields {
		if *f.ptr == "" {
			continue
		}
		v, err := r.Resolve(ctx, *f.ptr)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", f.name, err)
		}
		*f.ptr = v
	}
	return nil
}
