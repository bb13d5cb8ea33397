// Package schema resolves the archive's historical column-name variants into
// one canonical view per table. Each semantic concept carries an ordered
// alias list: the first exact match wins, then the first column containing a
// recognized token, and required concepts fail with a SchemaError when
// nothing matches. Resolution happens once per load, not per row.
package schema

import (
	"fmt"
	"strings"

	"plumage/internal/table"
)

// SchemaError reports a required concept with no matching column.
type SchemaError struct {
	Concept string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("no column found for required concept %q", e.Concept)
}

// Schema maps semantic concepts to resolved column names. Optional concepts
// that did not resolve are empty strings.
type Schema struct {
	ID        string
	Text      string
	CreatedAt string

	ReplyToStatusID string
	ReplyToUserID   string
	AuthorID        string
	ScreenName      string

	RetweetFlag    string
	QuoteFlag      string
	QuotedStatusID string

	URLs     string
	Hashtags string
	Mentions string
	Media    string

	FavoriteCount string
	RetweetCount  string
	ReplyCount    string
	BookmarkCount string

	// RetweetedStatus holds every column belonging to a nested
	// retweeted-status object; any non-null value marks the row structurally
	// as a retweet.
	RetweetedStatus []string
}

// Resolve probes the table's columns and returns the canonical schema.
func Resolve(t *table.Table) (Schema, error) {
	cols := t.Columns()

	var s Schema
	var err error
	if s.ID, err = require(cols, "id",
		[]string{"id_str", "tweet.id_str", "id", "tweet.id"},
		[]string{"id_str"}); err != nil {
		return s, err
	}
	if s.Text, err = require(cols, "text",
		[]string{"full_text", "text", "tweet.full_text", "tweet.text"},
		[]string{"full_text", "text"}); err != nil {
		return s, err
	}
	if s.CreatedAt, err = require(cols, "created_at",
		[]string{"created_at", "tweet.created_at", "time", "date"},
		[]string{"created_at"}); err != nil {
		return s, err
	}

	s.ReplyToStatusID = optional(cols,
		"in_reply_to_status_id_str", "tweet.in_reply_to_status_id_str",
		"in_reply_to_status_id", "tweet.in_reply_to_status_id")
	s.ReplyToUserID = optional(cols,
		"in_reply_to_user_id_str", "tweet.in_reply_to_user_id_str",
		"in_reply_to_user_id", "tweet.in_reply_to_user_id")
	s.AuthorID = optional(cols, "user.id_str", "tweet.user.id_str", "user.id", "tweet.user.id")
	s.ScreenName = optional(cols,
		"user.screen_name", "tweet.user.screen_name", "user.screen_name_str", "screen_name")

	s.RetweetFlag = optional(cols, "retweeted", "tweet.retweeted")
	s.QuoteFlag = optional(cols, "is_quote_status", "tweet.is_quote_status")
	s.QuotedStatusID = optional(cols, "quoted_status_id_str", "tweet.quoted_status_id_str")

	s.URLs = optional(cols, "entities.urls", "tweet.entities.urls")
	s.Hashtags = optional(cols, "entities.hashtags", "tweet.entities.hashtags")
	s.Mentions = optional(cols, "entities.user_mentions", "tweet.entities.user_mentions")
	s.Media = optional(cols, "extended_entities.media", "tweet.extended_entities.media")

	s.FavoriteCount = optional(cols, "favorite_count", "tweet.favorite_count")
	s.RetweetCount = optional(cols, "retweet_count", "tweet.retweet_count")
	s.ReplyCount = optional(cols, "reply_count", "tweet.reply_count")
	s.BookmarkCount = optional(cols, "bookmark_count", "tweet.bookmark_count")

	for _, c := range cols {
		if c == "retweeted_status" || c == "tweet.retweeted_status" ||
			strings.HasPrefix(c, "retweeted_status.") || strings.HasPrefix(c, "tweet.retweeted_status.") {
			s.RetweetedStatus = append(s.RetweetedStatus, c)
		}
	}
	return s, nil
}

func require(cols []string, concept string, exact, tokens []string) (string, error) {
	if c := match(cols, exact, tokens); c != "" {
		return c, nil
	}
	return "", &SchemaError{Concept: concept}
}

func optional(cols []string, exact ...string) string {
	return match(cols, exact, nil)
}

func match(cols []string, exact, tokens []string) string {
	have := make(map[string]bool, len(cols))
	for _, c := range cols {
		have[c] = true
	}
	for _, e := range exact {
		if have[e] {
			return e
		}
	}
	for _, tok := range tokens {
		for _, c := range cols {
			if strings.Contains(c, tok) {
				return c
			}
		}
	}
	return ""
}
