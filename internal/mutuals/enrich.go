package mutuals

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"plumage/internal/logging"
	"plumage/internal/metrics"
	"plumage/internal/model"
)

// Runner executes one account-lookup for a batch of ids and returns the raw
// JSON response.
type Runner interface {
	Lookup(ctx context.Context, ids []string) ([]byte, error)
}

// ExecRunner shells out to the configured CLI, appending the ids to its
// arguments.
type ExecRunner struct {
	Command string
	Args    []string
}

func (r *ExecRunner) Lookup(ctx context.Context, ids []string) ([]byte, error) {
	args := append(append([]string{}, r.Args...), ids...)
	cmd := exec.CommandContext(ctx, r.Command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", r.Command, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// EnrichAll looks up ids in batches, writing each raw response to a numbered
// batch file in dir. Batch files already on disk are reused, so interrupted
// runs resume where they left off. A failed or non-JSON batch is logged and
// skipped rather than failing the run.
func EnrichAll(ctx context.Context, runner Runner, ids []string, batchSize int, dir string) ([]string, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var files []string
	for i := 0; i*batchSize < len(ids); i++ {
		end := (i + 1) * batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[i*batchSize : end]
		path := filepath.Join(dir, fmt.Sprintf("mutuals_batch%d.json", i+1))
		if _, err := os.Stat(path); err == nil {
			files = append(files, path)
			continue
		}
		out, err := runner.Lookup(ctx, batch)
		if err != nil {
			logging.Error("enrich_batch_failed", map[string]any{"batch": i + 1, "error": err.Error()})
			continue
		}
		if !json.Valid(out) {
			logging.Error("enrich_batch_invalid_json", map[string]any{"batch": i + 1})
			continue
		}
		if err := os.WriteFile(path, out, 0o644); err != nil {
			return files, err
		}
		metrics.EnrichBatches.Inc()
		files = append(files, path)
	}
	return files, nil
}

type lookupResponse struct {
	Data []struct {
		ID                string `json:"id"`
		Username          string `json:"username"`
		Name              string `json:"name"`
		Location          string `json:"location"`
		Description       string `json:"description"`
		MostRecentTweetID string `json:"most_recent_tweet_id"`
		PublicMetrics     struct {
			FollowersCount int `json:"followers_count"`
		} `json:"public_metrics"`
	} `json:"data"`
	Includes struct {
		Tweets []struct {
			ID        string `json:"id"`
			CreatedAt string `json:"created_at"`
		} `json:"tweets"`
	} `json:"includes"`
}

// Combine merges batch files into one account list, resolving each
// account's most recent tweet date from the included tweet objects.
func Combine(paths []string) ([]model.MutualAccount, error) {
	tweetDates := make(map[string]string)
	var raws []lookupResponse
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		var resp lookupResponse
		if err := json.Unmarshal(b, &resp); err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		for _, t := range resp.Includes.Tweets {
			tweetDates[t.ID] = t.CreatedAt
		}
		raws = append(raws, resp)
	}
	var out []model.MutualAccount
	for _, resp := range raws {
		for _, u := range resp.Data {
			out = append(out, model.MutualAccount{
				ID:                  u.ID,
				Username:            u.Username,
				Name:                u.Name,
				Location:            u.Location,
				Description:         u.Description,
				FollowersCount:      u.PublicMetrics.FollowersCount,
				MostRecentTweetID:   u.MostRecentTweetID,
				MostRecentTweetDate: tweetDates[u.MostRecentTweetID],
			})
		}
	}
	return out, nil
}
