package classify

import (
	"math/rand"
	"sort"
	"unicode/utf8"

	"plumage/internal/model"
	"plumage/internal/schema"
	"plumage/internal/table"
	"plumage/internal/util"
)

// retweetWeight makes a retweet count ten likes toward weighted engagement.
const retweetWeight = 10

// TweetsFromTable extracts classifiable tweets from a feature-engineered
// table, dropping texts at or under minChars once whitespace is collapsed.
func TweetsFromTable(t *table.Table, minChars int) ([]model.Tweet, error) {
	s, err := schema.Resolve(t)
	if err != nil {
		return nil, err
	}
	var out []model.Tweet
	for _, r := range t.Rows {
		text, _ := r.String(s.Text)
		if utf8.RuneCountInString(util.NormalizeWhitespace(text)) <= minChars {
			continue
		}
		id, _ := r.String(s.ID)
		rt := r.Int(s.RetweetCount)
		fav := r.Int(s.FavoriteCount)
		tw := model.Tweet{
			ID:                 id,
			Text:               text,
			RetweetCount:       rt,
			FavoriteCount:      fav,
			WeightedEngagement: fav + retweetWeight*rt,
			CharCount:          utf8.RuneCountInString(text),
		}
		if tm, ok := r.Time("post_datetime"); ok {
			tw.CreatedAt = tm
		}
		if s.ReplyToStatusID != "" && !r.IsNull(s.ReplyToStatusID) {
			tw.IsReply = true
		}
		if name, ok := r.String("in_reply_to_screen_name"); ok {
			tw.ReplyToScreenName = name
		}
		out = append(out, tw)
	}
	return out, nil
}

// StratifiedSample draws up to n tweets balanced across weighted-engagement
// quartiles, deduplicated by id. The seeded RNG makes the draw reproducible.
func StratifiedSample(tweets []model.Tweet, n int, seed int64) []model.Tweet {
	if n <= 0 || len(tweets) == 0 {
		return nil
	}
	sorted := make([]model.Tweet, len(tweets))
	copy(sorted, tweets)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].WeightedEngagement != sorted[j].WeightedEngagement {
			return sorted[i].WeightedEngagement > sorted[j].WeightedEngagement
		}
		return sorted[i].ID < sorted[j].ID
	})

	quartiles := [][]model.Tweet{
		sorted[:len(sorted)/4],
		sorted[len(sorted)/4 : len(sorted)/2],
		sorted[len(sorted)/2 : 3*len(sorted)/4],
		sorted[3*len(sorted)/4:],
	}
	per := n / 4
	if per == 0 {
		per = 1
	}

	rng := rand.New(rand.NewSource(seed))
	var picked []model.Tweet
	for _, q := range quartiles {
		take := per
		if take > len(q) {
			take = len(q)
		}
		for _, idx := range rng.Perm(len(q))[:take] {
			picked = append(picked, q[idx])
		}
	}

	seen := make(map[string]struct{}, len(picked))
	var out []model.Tweet
	for _, tw := range picked {
		if _, dup := seen[tw.ID]; dup {
			continue
		}
		seen[tw.ID] = struct{}{}
		out = append(out, tw)
		if len(out) == n {
			break
		}
	}
	return out
}
