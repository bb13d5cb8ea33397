package model

import "time"

// Tweet is the subset of archive fields the classification and reporting
// workflows operate on, extracted from the feature table.
type Tweet struct {
	ID                 string
	Text               string
	CreatedAt          time.Time
	RetweetCount       int
	FavoriteCount      int
	WeightedEngagement int
	IsReply            bool
	ReplyToScreenName  string
	CharCount          int
}

// MutualAccount is one enriched mutual follower as returned by the
// account-lookup CLI.
type MutualAccount struct {
	ID                  string
	Username            string
	Name                string
	Location            string
	Description         string
	FollowersCount      int
	MostRecentTweetID   string
	MostRecentTweetDate string
}
