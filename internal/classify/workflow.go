package classify

import (
	"context"

	"golang.org/x/sync/errgroup"

	"plumage/internal/config"
	"plumage/internal/logging"
	"plumage/internal/model"
)

// Classified pairs a tweet with its labels.
type Classified struct {
	Tweet          model.Tweet
	Classification model.Classification
}

// ClassifyAll labels every tweet with spec's model, running at most
// maxParallel calls at once. A failed call yields the neutral classification
// so the output corresponds one-to-one with the input; results land in
// per-index slots, so completion order never matters.
func ClassifyAll(ctx context.Context, c Completer, spec config.ModelSpec, tweets []model.Tweet, maxParallel int) []Classified {
	out := make([]Classified, len(tweets))
	g := new(errgroup.Group)
	if maxParallel > 0 {
		g.SetLimit(maxParallel)
	}
	for i, tw := range tweets {
		i, tw := i, tw
		g.Go(func() error {
			cl, err := c.Classify(ctx, spec, tw.Text)
			if err != nil {
				logging.Warn("classify_failed", map[string]any{
					"tweet_id": tw.ID, "model": spec.Name, "error": err.Error(),
				})
				cl = model.Neutral()
			}
			out[i] = Classified{Tweet: tw, Classification: cl}
			return nil
		})
	}
	_ = g.Wait()
	return out
}
