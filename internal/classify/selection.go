package classify

import (
	"context"
	"errors"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"plumage/internal/config"
	"plumage/internal/logging"
	"plumage/internal/model"
)

// AgreementRow is one candidate-vs-reference comparison on one tweet.
type AgreementRow struct {
	TweetID    string
	TweetText  string
	Engagement int
	Model      string
	Agreement  float64
	RefHumor   string
	RefTopic   string
	ModelHumor string
	ModelTopic string
}

// ModelScore aggregates a candidate's agreement with the reference.
type ModelScore struct {
	Model string
	Mean  float64
	Std   float64
	N     int
}

// Evaluation is the outcome of one model-selection run.
type Evaluation struct {
	Rows   []AgreementRow
	Scores []ModelScore
	Best   string
}

// EvaluateModels classifies every sampled tweet with the reference model and
// each candidate, scores per-tweet agreement, and picks the candidate with
// the highest mean. Tweets whose reference call failed are skipped entirely;
// a failed candidate call counts as the neutral classification.
func EvaluateModels(ctx context.Context, c Completer, llm config.LLMConfig, sample []model.Tweet) (Evaluation, error) {
	var ev Evaluation
	if len(llm.Candidates) == 0 {
		return ev, errors.New("no candidate models configured")
	}
	specs := append([]config.ModelSpec{llm.Reference}, llm.Candidates...)

	for _, tw := range sample {
		results := make([]model.Classification, len(specs))
		errs := make([]error, len(specs))
		g := new(errgroup.Group)
		if llm.MaxParallel > 0 {
			g.SetLimit(llm.MaxParallel)
		}
		for i, sp := range specs {
			i, sp := i, sp
			g.Go(func() error {
				results[i], errs[i] = c.Classify(ctx, sp, tw.Text)
				return nil
			})
		}
		_ = g.Wait()

		if errs[0] != nil {
			logging.Warn("reference_classify_failed", map[string]any{
				"tweet_id": tw.ID, "error": errs[0].Error(),
			})
			continue
		}
		ref := results[0]
		for i, sp := range llm.Candidates {
			got := results[i+1]
			if errs[i+1] != nil {
				got = model.Neutral()
			}
			ev.Rows = append(ev.Rows, AgreementRow{
				TweetID:    tw.ID,
				TweetText:  tw.Text,
				Engagement: tw.WeightedEngagement,
				Model:      sp.Name,
				Agreement:  Agreement(ref, got),
				RefHumor:   ref.HumorType,
				RefTopic:   ref.TopicCategory,
				ModelHumor: got.HumorType,
				ModelTopic: got.TopicCategory,
			})
		}
	}

	ev.Scores = scoreRows(ev.Rows)
	if len(ev.Scores) == 0 {
		return ev, errors.New("no usable evaluations: every reference call failed")
	}
	ev.Best = ev.Scores[0].Model
	return ev, nil
}

func scoreRows(rows []AgreementRow) []ModelScore {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, r := range rows {
		sums[r.Model] += r.Agreement
		counts[r.Model]++
	}
	var scores []ModelScore
	for m, n := range counts {
		mean := sums[m] / float64(n)
		var varsum float64
		for _, r := range rows {
			if r.Model == m {
				varsum += (r.Agreement - mean) * (r.Agreement - mean)
			}
		}
		scores = append(scores, ModelScore{Model: m, Mean: mean, Std: math.Sqrt(varsum / float64(n)), N: n})
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Mean != scores[j].Mean {
			return scores[i].Mean > scores[j].Mean
		}
		return scores[i].Model < scores[j].Model
	})
	return scores
}
