// bulksync Lambda refreshes the local cache from Azure DevOps. Invoked by an
// EventBridge schedule, or manually with {"forceFullSync": true}.
package main

import (
	"context"
	"log/slog"
	"os"
	"sync"

	awslambda "github.com/aws/aws-lambda-go/lambda"

	"github.com/AlieInmar1/pbtoado-sub002/internal/app"
	"github.com/AlieInmar1/pbtoado-sub002/internal/bulksync"
	intlambda "github.com/AlieInmar1/pbtoado-sub002/internal/lambda"
)

var (
	deps     *app.Deps
	depsOnce sync.Once
	depsErr  error
)

func getDeps() (*app.Deps, error) {
	depsOnce.Do(func() {
		deps, depsErr = intlambda.Init(context.Background())
	})
	return deps, depsErr
}

func handler(ctx context.Context, ev intlambda.SyncEvent) (bulksync.Result, error) {
	d, err := getDeps()
	if err != nil {
		return bulksync.Result{}, err
	}
	return intlambda.HandleSync(ctx, d.BulkSync, d.Logger, ev)
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	awslambda.Start(handler)
}
