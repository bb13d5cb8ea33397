package features

import (
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"plumage/internal/schema"
	"plumage/internal/table"
	"plumage/internal/util"
)

// Engineer returns a copy of t with the derived feature columns attached:
// detection flags, content metrics, reply classification, calendar fields,
// account tier, engagement totals with winsorization, and thread fields.
// The input table is never mutated. A table with no resolvable id, text, or
// timestamp column fails with a schema.SchemaError; missing optional
// concepts default silently.
func Engineer(t *table.Table, cfg Config) (*table.Table, error) {
	s, err := schema.Resolve(t)
	if err != nil {
		return nil, err
	}

	out := t.Copy()

	// Timestamps first: thread step ordering and the calendar fields both
	// depend on the chronological sort. Unparsable timestamps keep no
	// post_datetime and sort after every valid row, stably.
	for _, r := range out.Rows {
		if raw, ok := r.String(s.CreatedAt); ok {
			if tm, ok := parseTime(raw); ok {
				r["post_datetime"] = tm.UTC()
			}
		}
	}
	out.SortStable(func(a, b table.Row) bool {
		ta, aok := a.Time("post_datetime")
		tb, bok := b.Time("post_datetime")
		if aok && bok {
			return ta.Before(tb)
		}
		return aok && !bok
	})

	selfID := cfg.SelfUserID
	if selfID == "" {
		selfID = inferSelfID(out, s, cfg.UsernameHint)
	}

	for _, r := range out.Rows {
		id, _ := r.String(s.ID)
		r["id_str"] = id

		text, _ := r.String(s.Text)
		r[s.Text] = text

		r["is_retweet"] = detectRetweet(r, s, text)
		r["is_quote_tweet"] = detectQuote(r, s)

		r["has_link"] = strings.Contains(text, "https://t.co/")
		r["has_media"] = detectMedia(r, s)
		r["text_length_chars"] = utf8.RuneCountInString(text)
		r["num_hashtags"] = listLen(r, s.Hashtags)
		r["num_mentions"] = listLen(r, s.Mentions)
		r["has_question_mark"] = strings.Contains(text, "?")

		r["reply_type"] = classifyReply(r, s, selfID)

		if tm, ok := r.Time("post_datetime"); ok {
			r["weekday"] = tm.Weekday().String()
			r["hour_of_day"] = tm.Hour()
			r["month"] = tm.Format("2006-01")
			r["account_tier"] = tier(tm, cfg)
		}

		likes := countOrZero(r, s.FavoriteCount)
		retweets := countOrZero(r, s.RetweetCount)
		replies := countOrZero(r, s.ReplyCount)
		bookmarks := countOrZero(r, s.BookmarkCount)
		r["likes"] = likes
		r["retweets"] = retweets
		r["replies"] = replies
		r["bookmarks"] = bookmarks
		r["total_engagement"] = likes + retweets + replies + bookmarks
	}

	winsorize(out, cfg.WinsorizeQuantile)
	Reconstruct(out, "id_str", s.ReplyToStatusID)
	return out, nil
}

func detectRetweet(r table.Row, s schema.Schema, text string) bool {
	if s.RetweetFlag != "" {
		if b, ok := r.Bool(s.RetweetFlag); ok && b {
			return true
		}
	}
	for _, col := range s.RetweetedStatus {
		if !r.IsNull(col) {
			return true
		}
	}
	return strings.HasPrefix(text, "RT @")
}

func detectQuote(r table.Row, s schema.Schema) bool {
	if s.QuoteFlag != "" {
		if b, ok := r.Bool(s.QuoteFlag); ok && b {
			return true
		}
	}
	if s.QuotedStatusID != "" && !r.IsNull(s.QuotedStatusID) {
		return true
	}
	for _, u := range r.List(s.URLs) {
		m, ok := u.(map[string]any)
		if !ok {
			continue
		}
		expanded, _ := m["expanded_url"].(string)
		if util.ContainsAnyCaseInsensitive(expanded, []string{"twitter.com", "x.com"}) &&
			strings.Contains(expanded, "/status/") {
			return true
		}
	}
	return false
}

func detectMedia(r table.Row, s schema.Schema) bool {
	if s.Media == "" {
		return false
	}
	if l := r.List(s.Media); l != nil {
		return len(l) > 0
	}
	return !r.IsNull(s.Media)
}

func classifyReply(r table.Row, s schema.Schema, selfID string) string {
	if s.ReplyToUserID == "" || r.IsNull(s.ReplyToUserID) {
		return "none"
	}
	target, _ := r.String(s.ReplyToUserID)
	if selfID != "" && target == selfID {
		return "reply_own"
	}
	return "reply_other"
}

func listLen(r table.Row, col string) int {
	if col == "" {
		return 0
	}
	return len(r.List(col))
}

func countOrZero(r table.Row, col string) int {
	if col == "" {
		return 0
	}
	n := r.Int(col)
	if n < 0 {
		return 0
	}
	return n
}

// inferSelfID picks the archive owner's user id from the table when it was
// not configured. Ties in frequency break toward the smaller id so the
// inference is deterministic.
func inferSelfID(t *table.Table, s schema.Schema, hint string) string {
	if hint != "" && s.ScreenName != "" && s.AuthorID != "" {
		var matching []string
		for _, r := range t.Rows {
			name, ok := r.String(s.ScreenName)
			if !ok || !strings.EqualFold(name, hint) {
				continue
			}
			if id, ok := r.String(s.AuthorID); ok && id != "" {
				matching = append(matching, id)
			}
		}
		if id := mode(matching); id != "" {
			return id
		}
	}
	if s.AuthorID != "" {
		var ids []string
		for _, r := range t.Rows {
			if id, ok := r.String(s.AuthorID); ok && id != "" {
				ids = append(ids, id)
			}
		}
		if id := mode(ids); id != "" {
			return id
		}
	}
	if s.ReplyToUserID != "" {
		var ids []string
		for _, r := range t.Rows {
			if r.IsNull(s.ReplyToUserID) {
				continue
			}
			if id, ok := r.String(s.ReplyToUserID); ok && id != "" {
				ids = append(ids, id)
			}
		}
		if id := mode(ids); id != "" {
			return id
		}
	}
	return ""
}

func mode(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	counts := make(map[string]int, len(vals))
	for _, v := range vals {
		counts[v]++
	}
	best, bestN := "", 0
	for v, n := range counts {
		if n > bestN || (n == bestN && v < best) {
			best, bestN = v, n
		}
	}
	return best
}

// winsorize caps total_engagement at its own quantile across the current
// table; ties at the cap keep the cap value rather than being dropped.
func winsorize(t *table.Table, q float64) {
	totals := make([]float64, 0, len(t.Rows))
	for _, r := range t.Rows {
		totals = append(totals, float64(r.Int("total_engagement")))
	}
	upper := quantile(totals, q)
	for _, r := range t.Rows {
		r["winsorized_engagement"] = math.Min(float64(r.Int("total_engagement")), upper)
	}
}

// quantile computes q over vals with linear interpolation between order
// statistics.
func quantile(vals []float64, q float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

var timeLayouts = []string{
	time.RubyDate, // the raw export's created_at form
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if tm, err := time.Parse(layout, raw); err == nil {
			return tm, true
		}
	}
	return time.Time{}, false
}
