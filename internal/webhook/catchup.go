package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AlieInmar1/pbtoado-sub002/internal/mapping"
	"github.com/AlieInmar1/pbtoado-sub002/internal/metrics"
	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

// FeatureLister lists ProductBoard features changed since a cutoff.
type FeatureLister interface {
	ListFeatures(ctx context.Context, since time.Time) ([]mapping.Feature, error)
}

// CatchUpResult counts the terminal statuses of a catch-up run.
type CatchUpResult struct {
	Features int                         `json:"features"`
	Statuses map[types.SyncLogStatus]int `json:"statuses"`
}

// CatchUp replays a feature.updated event for every unarchived feature changed
// since the cutoff, recovering deliveries ProductBoard dropped. Each replay is
// an ordinary event: it is audited, locked and only pushes on a transition
// into the ready status. A zero since replays every feature.
func (c *Controller) CatchUp(ctx context.Context, lister FeatureLister, since time.Time) (CatchUpResult, error) {
	metrics.CatchUpRuns.Add(1)
	res := CatchUpResult{Statuses: map[types.SyncLogStatus]int{}}

	feats, err := lister.ListFeatures(ctx, since)
	if err != nil {
		return res, err
	}
	for _, f := range feats {
		if f.Archived || f.ID == "" {
			continue
		}
		body, err := json.Marshal(replayEvent(f.ID))
		if err != nil {
			return res, err
		}
		r, err := c.Handle(ctx, body)
		if err != nil {
			return res, fmt.Errorf("replaying feature %s: %w", f.ID, err)
		}
		res.Features++
		res.Statuses[r.Status]++
	}
	c.logger.Info("catch-up finished", "since", since, "features", res.Features)
	return res, nil
}

func replayEvent(id string) map[string]any {
	return map[string]any{"data": map[string]string{"eventType": "feature.updated", "id": id}}
}
