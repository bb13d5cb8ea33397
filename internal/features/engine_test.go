package features

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"plumage/internal/schema"
	"plumage/internal/table"
)

const rubyDate = "Mon Jan 02 15:04:05 -0700 2006"

func baseRow(id, text, created string) table.Row {
	return table.Row{"id_str": id, "full_text": text, "created_at": created}
}

func ts(t time.Time) string { return t.Format(rubyDate) }

func TestEngineerMissingRequiredColumn(t *testing.T) {
	tab := table.New([]table.Row{{"id_str": "1", "created_at": "x"}})
	_, err := Engineer(tab, DefaultConfig())
	var se *schema.SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
}

func TestEngineerDoesNotMutateInput(t *testing.T) {
	tab := table.New([]table.Row{baseRow("1", "hello world?", "Wed Sep 13 10:00:00 +0000 2023")})
	if _, err := Engineer(tab, DefaultConfig()); err != nil {
		t.Fatal(err)
	}
	if _, ok := tab.Rows[0]["is_retweet"]; ok {
		t.Fatal("input table was mutated")
	}
}

func TestRetweetDetection(t *testing.T) {
	rows := []table.Row{
		baseRow("1", "plain tweet", "Wed Sep 13 10:00:00 +0000 2023"),
		baseRow("2", "RT @someone: lol", "Wed Sep 13 10:01:00 +0000 2023"),
	}
	rows[0]["retweeted"] = false
	// Flag false but the text marker still counts: any positive signal wins.
	rows[1]["retweeted"] = false
	flagged := baseRow("3", "quiet text", "Wed Sep 13 10:02:00 +0000 2023")
	flagged["retweeted"] = true
	structural := baseRow("4", "quiet text", "Wed Sep 13 10:03:00 +0000 2023")
	structural["retweeted_status.id_str"] = "99"
	rows = append(rows, flagged, structural)

	out, err := Engineer(table.New(rows), DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{"1": false, "2": true, "3": true, "4": true}
	for _, r := range out.Rows {
		id, _ := r.String("id_str")
		if got, _ := r.Bool("is_retweet"); got != want[id] {
			t.Fatalf("row %s: is_retweet = %v, want %v", id, got, want[id])
		}
	}
}

func TestQuoteDetection(t *testing.T) {
	plain := baseRow("1", "nothing here", "Wed Sep 13 10:00:00 +0000 2023")
	flagged := baseRow("2", "quoting", "Wed Sep 13 10:01:00 +0000 2023")
	flagged["is_quote_status"] = true
	byURL := baseRow("3", "look https://t.co/abc", "Wed Sep 13 10:02:00 +0000 2023")
	byURL["entities.urls"] = []any{
		map[string]any{"expanded_url": "https://x.com/u/status/123"},
	}
	plainURL := baseRow("4", "link https://t.co/def", "Wed Sep 13 10:03:00 +0000 2023")
	plainURL["entities.urls"] = []any{
		map[string]any{"expanded_url": "https://example.com/article"},
	}

	out, err := Engineer(table.New([]table.Row{plain, flagged, byURL, plainURL}), DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{"1": false, "2": true, "3": true, "4": false}
	for _, r := range out.Rows {
		id, _ := r.String("id_str")
		if got, _ := r.Bool("is_quote_tweet"); got != want[id] {
			t.Fatalf("row %s: is_quote_tweet = %v, want %v", id, got, want[id])
		}
	}
}

func TestContentFeatures(t *testing.T) {
	r := baseRow("1", "héllo? https://t.co/x", "Wed Sep 13 10:00:00 +0000 2023")
	r["entities.hashtags"] = []any{map[string]any{"text": "go"}, map[string]any{"text": "x"}}
	r["entities.user_mentions"] = []any{map[string]any{"screen_name": "a"}}
	out, err := Engineer(table.New([]table.Row{r}), DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	got := out.Rows[0]
	if n := got.Int("text_length_chars"); n != 21 {
		t.Fatalf("text_length_chars = %d, want 21 (runes, not bytes)", n)
	}
	if n := got.Int("num_hashtags"); n != 2 {
		t.Fatalf("num_hashtags = %d", n)
	}
	if n := got.Int("num_mentions"); n != 1 {
		t.Fatalf("num_mentions = %d", n)
	}
	if b, _ := got.Bool("has_question_mark"); !b {
		t.Fatal("has_question_mark should be true")
	}
	if b, _ := got.Bool("has_link"); !b {
		t.Fatal("has_link should be true")
	}
}

func TestReplyClassification(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SelfUserID = "42"
	none := baseRow("1", "standalone", "Wed Sep 13 10:00:00 +0000 2023")
	own := baseRow("2", "thread cont.", "Wed Sep 13 10:01:00 +0000 2023")
	own["in_reply_to_user_id_str"] = "42"
	other := baseRow("3", "reply to friend", "Wed Sep 13 10:02:00 +0000 2023")
	other["in_reply_to_user_id_str"] = "7"

	out, err := Engineer(table.New([]table.Row{none, own, other}), cfg)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{"1": "none", "2": "reply_own", "3": "reply_other"}
	for _, r := range out.Rows {
		id, _ := r.String("id_str")
		if got, _ := r.String("reply_type"); got != want[id] {
			t.Fatalf("row %s: reply_type = %q, want %q", id, got, want[id])
		}
	}
}

func TestSelfIDInference(t *testing.T) {
	rows := []table.Row{}
	for i := 0; i < 3; i++ {
		r := baseRow(fmt.Sprint(i), "mine", ts(time.Date(2023, 9, 13, 10, i, 0, 0, time.UTC)))
		r["user.id_str"] = "42"
		r["user.screen_name"] = "MyHandle"
		rows = append(rows, r)
	}
	reply := baseRow("9", "talking to myself", ts(time.Date(2023, 9, 13, 11, 0, 0, 0, time.UTC)))
	reply["user.id_str"] = "42"
	reply["user.screen_name"] = "MyHandle"
	reply["in_reply_to_user_id_str"] = "42"
	rows = append(rows, reply)

	cfg := DefaultConfig()
	cfg.UsernameHint = "myhandle" // case-insensitive match
	out, err := Engineer(table.New(rows), cfg)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range out.Rows {
		if id, _ := r.String("id_str"); id == "9" {
			if got, _ := r.String("reply_type"); got != "reply_own" {
				t.Fatalf("inferred self id missed; reply_type = %q", got)
			}
		}
	}
}

func TestTierBoundaries(t *testing.T) {
	cfg := DefaultConfig()
	cases := []struct {
		when time.Time
		want string
	}{
		{time.Date(2023, 9, 11, 23, 59, 59, 0, time.UTC), TierPreUpgrade},
		{time.Date(2023, 9, 12, 0, 0, 0, 0, time.UTC), TierUpgraded},
		{time.Date(2024, 9, 12, 0, 0, 0, 0, time.UTC), TierUpgraded},
		{time.Date(2024, 9, 12, 0, 0, 1, 0, time.UTC), TierPostUpgrade},
	}
	for _, c := range cases {
		if got := tier(c.when, cfg); got != c.want {
			t.Fatalf("tier(%v) = %q, want %q", c.when, got, c.want)
		}
	}
}

func TestCalendarFieldsSkippedForBadTimestamps(t *testing.T) {
	good := baseRow("1", "dated", "Wed Sep 13 10:30:00 +0000 2023")
	bad := baseRow("2", "undated", "not a date")
	out, err := Engineer(table.New([]table.Row{bad, good}), DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	// Valid timestamps sort first; the unparsable row goes last.
	first, last := out.Rows[0], out.Rows[1]
	if id, _ := first.String("id_str"); id != "1" {
		t.Fatalf("expected dated row first, got %s", id)
	}
	if first.Int("hour_of_day") != 10 {
		t.Fatalf("hour_of_day = %d", first.Int("hour_of_day"))
	}
	if wd, _ := first.String("weekday"); wd != "Wednesday" {
		t.Fatalf("weekday = %q", wd)
	}
	if mo, _ := first.String("month"); mo != "2023-09" {
		t.Fatalf("month = %q", mo)
	}
	if !last.IsNull("account_tier") {
		t.Fatal("undated row should have no account_tier")
	}
}

func TestEngagementAndWinsorize(t *testing.T) {
	rows := make([]table.Row, 0, 100)
	for i := 1; i <= 100; i++ {
		r := baseRow(fmt.Sprintf("%03d", i), "tweet body text", ts(time.Date(2023, 1, 1, 0, i%60, i/60, 0, time.UTC)))
		r["favorite_count"] = i
		rows = append(rows, r)
	}
	out, err := Engineer(table.New(rows), DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	var maxW float64
	for _, r := range out.Rows {
		if w, ok := r["winsorized_engagement"].(float64); ok && w > maxW {
			maxW = w
		}
	}
	// 95th percentile of 1..100 with linear interpolation.
	if math.Abs(maxW-95.05) > 1e-9 {
		t.Fatalf("winsorized cap = %v, want 95.05", maxW)
	}
}

func TestNegativeCountsClampToZero(t *testing.T) {
	r := baseRow("1", "weird export", "Wed Sep 13 10:00:00 +0000 2023")
	r["favorite_count"] = -5
	r["retweet_count"] = 3
	out, err := Engineer(table.New([]table.Row{r}), DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	got := out.Rows[0]
	if got.Int("likes") != 0 {
		t.Fatalf("likes = %d, want 0", got.Int("likes"))
	}
	if got.Int("total_engagement") != 3 {
		t.Fatalf("total_engagement = %d, want 3", got.Int("total_engagement"))
	}
}

func TestQuantileInterpolation(t *testing.T) {
	vals := []float64{1, 2, 3, 4}
	if got := quantile(vals, 0.5); got != 2.5 {
		t.Fatalf("median = %v, want 2.5", got)
	}
	if got := quantile(vals, 0); got != 1 {
		t.Fatalf("q0 = %v", got)
	}
	if got := quantile(vals, 1); got != 4 {
		t.Fatalf("q1 = %v", got)
	}
	if got := quantile(nil, 0.5); got != 0 {
		t.Fatalf("empty = %v", got)
	}
}

func TestParseTimeLayouts(t *testing.T) {
	cases := []string{
		"Wed Sep 13 10:00:00 +0000 2023",
		"2023-09-13T10:00:00Z",
		"2023-09-13 10:00:00",
		"2023-09-13",
	}
	for _, raw := range cases {
		if _, ok := parseTime(raw); !ok {
			t.Fatalf("parseTime(%q) failed", raw)
		}
	}
	if _, ok := parseTime(""); ok {
		t.Fatal("empty string should not parse")
	}
}
