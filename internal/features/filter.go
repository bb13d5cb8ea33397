package features

import "plumage/internal/table"

// CoreSample returns the analysis-ready subset of a feature-engineered
// table: no retweets, no quote tweets, and no replies to the archive
// owner's own account. Pure predicate; the result shares no row maps with
// the input.
func CoreSample(t *table.Table) *table.Table {
	return t.Filter(func(r table.Row) bool {
		if rt, _ := r.Bool("is_retweet"); rt {
			return false
		}
		if qt, _ := r.Bool("is_quote_tweet"); qt {
			return false
		}
		reply, _ := r.String("reply_type")
		return reply == "none" || reply == "reply_other"
	})
}
