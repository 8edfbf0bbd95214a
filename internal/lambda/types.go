// Package lambda provides shared handlers and initialization for the AWS
// Lambda entrypoints.
package lambda

import (
	"context"

	"github.com/AlieInmar1/pbtoado-sub002/internal/bulksync"
	"github.com/AlieInmar1/pbtoado-sub002/internal/webhook"
)

// Webhook is the subset of the webhook controller the Lambda handler uses.
type Webhook interface {
	Authorize(presented string) error
	Handle(ctx context.Context, body []byte) (webhook.Result, error)
}

// Syncer runs one bulk sync.
type Syncer interface {
	Run(ctx context.Context, req bulksync.Request) (bulksync.Result, error)
}

// SyncEvent is the payload of a scheduled or manual bulk sync invocation.
// An EventBridge schedule sends an empty object, which runs an incremental
// sync with the configured credentials.
type SyncEvent struct {
	ForceFullSync bool `json:"forceFullSync"`
}
