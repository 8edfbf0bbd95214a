// webhook Lambda receives ProductBoard webhook deliveries through an API
// Gateway HTTP API or a function URL.
package main

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	awslambda "github.com/aws/aws-lambda-go/lambda"

	"github.com/AlieInmar1/pbtoado-sub002/internal/app"
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

func handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	d, err := getDeps()
	if err != nil {
		return events.APIGatewayV2HTTPResponse{}, err
	}
	return intlambda.HandleWebhook(ctx, d.Controller, d.Logger, req)
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	awslambda.Start(handler)
}
